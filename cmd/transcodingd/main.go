// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Command transcodingd runs the priority transcoding service.
package main

import (
	"os"

	"github.com/ManuGH/mediatranscoding/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logger := log.WithComponent("cli")
		logger.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
