// Package main is the entry point for the cookguide CLI.
//
// Usage:
//
//	cookguide [flags] <command> [subcommand] [args]
//
// Commands:
//
//	serve      - WebSocket server for cooking sessions
//	chat       - Interactive session on the terminal
//	policy     - Check, dump and render the prompt policy
//	knowledge  - Inspect and query video knowledge documents
//	memory     - Show, export and clear persisted session memory
//	config     - Configuration management (contexts, services)
//	version    - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/haivivi/cookguide/cmd/cookguide/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
