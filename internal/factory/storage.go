package factory

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jwgray1010/PawCoin/internal/config"
	"github.com/jwgray1010/PawCoin/internal/store"
	"github.com/jwgray1010/PawCoin/internal/store/filestore"
	"github.com/jwgray1010/PawCoin/internal/store/postgres"
	"github.com/jwgray1010/PawCoin/internal/store/sqlite"
)

// NewAnchorSet opens the persistence driver selected by cfg.DBDriver.
func NewAnchorSet(ctx context.Context, cfg *config.Config, log zerolog.Logger) (store.AnchorSet, error) {
	switch cfg.DBDriver {
	case "", "file":
		s, err := filestore.Open(cfg.DataFile)
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", cfg.DataFile).Msg("using file anchor store")
		return s, nil
	case "sqlite":
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		s, err := sqlite.New(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		log.Info().Str("path", cfg.SQLitePath).Msg("using sqlite anchor store")
		return s, nil
	case "postgres":
		db, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		s := postgres.NewWithDB(db)
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		log.Info().Msg("using postgres anchor store")
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER: %s", cfg.DBDriver)
	}
}
