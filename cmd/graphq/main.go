// Command graphq loads entity graphs and runs predicate queries over them.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/graphq/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
