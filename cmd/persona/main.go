// Command persona is the entry point for the persona Q&A agent.
// It provides a CLI interface (via Cobra) and an optional HTTP server with
// a web chat UI for interactive use.
package main

import (
	"fmt"
	"os"

	"github.com/calvia/persona/cmd/persona/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
