// Command pedro drives a feature from objective to commit, one gated step at
// a time.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/pedro/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
