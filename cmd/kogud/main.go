// Command kogud runs the Kogu condominium management backend.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "kogud",
		Short:         "Kogu condominium management server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newSeedManagerCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "kogud:", err)
		os.Exit(1)
	}
}
