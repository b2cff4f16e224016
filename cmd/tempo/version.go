package main

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/aretw0/tempo"
	httpAdapter "github.com/aretw0/tempo/pkg/adapters/http"
	"github.com/aretw0/tempo/pkg/algorithms"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of tempo",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "tempo version %s\n", strings.TrimSpace(tempo.Version))

		if verbose, _ := cmd.Flags().GetBool("verbose"); !verbose {
			return nil
		}
		spec, err := httpAdapter.LoadSpec()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "http api:   %s\n", spec.Info.Version)
		fmt.Fprintf(w, "algorithms: %d built-in\n", len(algorithms.Builtins()))
		fmt.Fprintf(w, "go:         %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		return nil
	},
}

func init() {
	versionCmd.Flags().Bool("verbose", false, "Also print the HTTP API version, built-in algorithm count and Go runtime")
	rootCmd.AddCommand(versionCmd)
}
