// Command entitle reconciles storefront transaction streams into
// entitlements.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/entitle/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
