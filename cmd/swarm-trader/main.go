package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"swarm-trader/internal/cli"
	"swarm-trader/internal/config"
	"swarm-trader/internal/logging"
)

func main() {
	// Optional .env for credentials in development.
	_ = godotenv.Load()

	cfg, err := config.Load(configDirFromArgs(os.Args[1:]))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger()

	rootCmd := cli.NewRootCmd(cfg, logger)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// configDirFromArgs finds a --config override before cobra parses
// flags, since configuration must exist before the commands are built.
func configDirFromArgs(args []string) string {
	for i, arg := range args {
		if arg == "--config" && i+1 < len(args) {
			return args[i+1]
		}
		if len(arg) > len("--config=") && arg[:len("--config=")] == "--config=" {
			return arg[len("--config="):]
		}
	}
	return config.DefaultConfigDir()
}
