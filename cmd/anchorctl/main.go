package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jwgray1010/PawCoin/internal/anchor"
	"github.com/jwgray1010/PawCoin/internal/config"
	"github.com/jwgray1010/PawCoin/internal/remote"
	"github.com/jwgray1010/PawCoin/internal/remote/httpstore"
	"github.com/jwgray1010/PawCoin/internal/remote/memstore"
	"github.com/jwgray1010/PawCoin/internal/remote/redisstore"
	"github.com/jwgray1010/PawCoin/internal/syncclient"
)

var (
	apiURL        string
	apiToken      string
	backendKind   string
	redisAddr     string
	redisPassword string
	debug         bool
)

const commandTimeout = 15 * time.Second

// memory backs --backend memory for the life of the process.
var memory = memstore.NewCollection()

func main() {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// NewRootCmd constructs the root CLI command; exposed for unit testing.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "anchorctl",
		Short:         "anchorctl manages chore anchors",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
			log.Logger = log.Output(zerolog.ConsoleWriter{
				Out:        os.Stderr,
				TimeFormat: "2006-01-02 15:04:05",
				NoColor:    true,
			})
			if debug {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
				log.Debug().Msg("debug logging enabled")
			} else {
				zerolog.SetGlobalLevel(zerolog.WarnLevel)
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&apiURL, "api", getEnv("ANCHOR_API_URL", "http://localhost:4000"), "Base URL of the anchor sync server")
	flags.StringVar(&apiToken, "token", getEnv("ANCHOR_API_TOKEN", config.DefaultAPIToken), "Bearer token for the sync server")
	flags.StringVar(&backendKind, "backend", getEnv("ANCHOR_BACKEND", "http"), "Anchor store: http, redis or memory")
	flags.StringVar(&redisAddr, "redis-addr", getEnv("ANCHOR_REDIS_ADDR", "localhost:6379"), "Redis address for --backend redis")
	flags.StringVar(&redisPassword, "redis-password", os.Getenv("ANCHOR_REDIS_PASSWORD"), "Redis password for --backend redis")
	flags.BoolVarP(&debug, "debug", "d", false, "Enable verbose debug output")

	rootCmd.AddCommand(
		newListCmd(),
		newAddCmd(),
		newUpdateCmd(),
		newRemoveCmd(),
		newAssignCmd(),
		newStartCmd(),
		newFinishCmd(),
		newCompleteCmd(),
		newHistoryCmd(),
		newQRCmd(),
		newNearestCmd(),
		newKidCmd(),
		newPullCmd(),
		newPushCmd(),
		newClearCmd(),
		newReportCmd(),
		newHealthCmd(),
	)
	return rootCmd
}

// session is one command's manager plus the resources behind it.
type session struct {
	mgr   *anchor.Manager
	close func()
}

func newSyncClient() (*syncclient.Client, error) {
	return syncclient.New(apiURL,
		syncclient.WithToken(apiToken),
		syncclient.WithLogger(log.Logger),
	)
}

func openStore(ctx context.Context) (remote.Store, func(), error) {
	switch backendKind {
	case "http":
		c, err := newSyncClient()
		if err != nil {
			return nil, nil, err
		}
		return httpstore.New(c), func() {}, nil
	case "redis":
		s, err := redisstore.Dial(ctx, redisAddr, redisPassword, redisstore.WithLogger(log.Logger))
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case "memory":
		return memory.Connect(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported backend %q", backendKind)
	}
}

func openSession(ctx context.Context) (*session, error) {
	st, closeFn, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	mgr, err := anchor.NewManager(st, anchor.WithLogger(log.Logger))
	if err != nil {
		closeFn()
		return nil, err
	}
	log.Debug().Str("backend", backendKind).Str("api", apiURL).Msg("session opened")
	return &session{mgr: mgr, close: closeFn}, nil
}

// withSession runs fn against a fresh manager under the command timeout.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.close()
	return fn(ctx, s)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
