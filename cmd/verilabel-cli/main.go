// Package main provides the VeriLabel CLI entrypoint.
package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/verilabel-ai/verilabel/cmd/verilabel-cli/commands"
)

func main() {
	_ = godotenv.Load()

	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
