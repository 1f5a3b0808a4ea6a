// Package main is the entry point for the voicegate CLI.
//
// Usage:
//
//	voicegate [flags] <command> [subcommand] [args]
//
// Commands:
//
//	listen     - Live capture with gate, activity meter and verification
//	enroll     - Enroll a speaker from the microphone or a WAV file
//	verify     - Verify the current speaker against enrolled profiles
//	analyze    - Offline per-window activity report for a WAV file
//	profiles   - List, show, export and delete enrolled profiles
//	serve      - Websocket server for remote capture clients
//	devices    - List capture devices
//	version    - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/haivivi/voicegate/cmd/voicegate/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
