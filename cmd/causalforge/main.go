// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/AleutianAI/CausalForge/pkg/logging"
)

// initLogging builds the process logger from LOG_LEVEL and LOG_DIR and
// installs it as the slog default, so every package that logs through
// log/slog picks up the configured level, service attribute, and file
// destination. Callers must Close the returned logger.
func initLogging() *logging.Logger {
	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(os.Getenv("LOG_LEVEL")),
		LogDir:  os.Getenv("LOG_DIR"),
		Service: "causalforge",
	})
	slog.SetDefault(logger.Slog())
	return logger
}

func main() {
	logger := initLogging()
	defer logger.Close()

	// Execute the root command. Cobra handles parsing the arguments.
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}
