package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/custodia-labs/corpus-cli/internal/adapters/driving/cli"
	"github.com/custodia-labs/corpus-cli/internal/core/domain"
)

// Exit codes. Partial failure means some documents failed while the
// rest were processed.
const (
	exitOK             = 0
	exitError          = 1
	exitInvalidConfig  = 2
	exitPartialFailure = 3
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		switch {
		case errors.Is(err, domain.ErrInvalidConfig):
			os.Exit(exitInvalidConfig)
		case errors.Is(err, domain.ErrPartialFailure):
			os.Exit(exitPartialFailure)
		default:
			os.Exit(exitError)
		}
	}
}
