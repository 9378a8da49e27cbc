// Command refmatch serves the people-matching API and runs its maintenance
// jobs.
package main

import (
	"fmt"
	"os"

	"github.com/scrypster/refmatch/cmd/refmatch/commands"
)

// Version information, set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersion(version, commit, date)

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
