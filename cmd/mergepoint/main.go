// Command mergepoint declares merge points over origin tables and admits keys
// into them.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/mergepoint/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
