package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// nolint:all
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	root := &cobra.Command{
		Use:     "satsub",
		Short:   "Broadcast messages over satellite, paid with a submarine swap",
		Version: fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
	}
	root.AddCommand(runCmd(), messageCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
