// Package cli provides output helpers for the voicegate command line.
//
// This package includes:
//   - Output formatting (YAML, JSON, table) with optional jq filtering
//   - A one-line activity meter for live sessions
//
// Example usage:
//
//	cli.Output(profiles, cli.OutputOptions{
//	    Format: cli.FormatTable,
//	    Query:  ".[] | select(.name == \"Alice\")",
//	})
package cli
