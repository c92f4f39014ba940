package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/jwgray1010/PawCoin/syncservice"
)

func main() {
	if err := syncservice.Run(); err != nil {
		log.Error().Err(err).Msg("anchor-sync exited with error")
		os.Exit(1)
	}
}
