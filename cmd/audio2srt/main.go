// Package main implements audio2srt, a command-line client for the
// audio2srt server.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

var (
	// Version information - will be set at build time
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		os.Exit(1)
	}
}
