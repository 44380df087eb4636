package main

import (
	"context"
	"os"

	"bbledger/internal/cli"
	"bbledger/internal/commands"
	"bbledger/internal/log"
)

func main() {
	// Load .env file for local development (ignore errors in production)
	cli.LoadEnvFile()

	// Logs go to stderr so command output stays clean
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentCLI, os.Stderr)
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.LogLevel, log.ComponentCLI, os.Stderr)

	ctx := log.IntoContext(context.Background(), logger)
	if err := commands.Execute(ctx, cfg, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}
