// Command dispatchd runs the job scheduler's HTTP statistics surface
// standalone, for load-testing and local development. Production embedders
// typically import internal/scheduler, internal/sendqueue and
// internal/statsapi directly rather than running this binary.
package main

import (
	"os"

	"github.com/rs/zerolog/log"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("dispatchd: command failed")
		os.Exit(1)
	}
}
