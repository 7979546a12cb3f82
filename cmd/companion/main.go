// Package main is the entry point for the companion CLI.
//
// Usage:
//
//	companion [flags] <command>
//
// Commands:
//
//	run      - start the companion API, gesture loop, and session coordinator
//	devices  - list microphone capture sources
//	config   - show or change the stored configuration
package main

import (
	"fmt"
	"os"

	"github.com/shelajev/slowly-unhinged/cmd/companion/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
