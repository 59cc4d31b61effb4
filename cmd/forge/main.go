// Package main provides the CLI entry point for forge.
package main

import (
	"fmt"
	"os"

	"github.com/harrison/forge/internal/cmd"
)

// Version is the current version of forge.
const Version = "1.0.0"

func main() {
	rootCmd := cmd.NewRootCommand()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
