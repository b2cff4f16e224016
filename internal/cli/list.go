package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"text/tabwriter"

	"github.com/aretw0/tempo/internal/config"
	"github.com/aretw0/tempo/pkg/adapters/loam"
	"github.com/aretw0/tempo/pkg/algorithms"
)

// List prints the algorithm catalog followed by the scenario presets found in
// the configured directory. A missing directory is not an error.
func List(ctx context.Context, w io.Writer, cfg config.Config) error {
	catalog := algorithms.Default()

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ALGORITHM\tDESCRIPTION")
	for _, info := range catalog.List() {
		fmt.Fprintf(tw, "%s\t%s\n", info.Name, info.Description)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	dir := cfg.Scenarios.Dir
	if dir == "" {
		dir = DefaultScenarioDir
	}
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	presets, err := loam.Open(dir)
	if err != nil {
		return err
	}
	scenarios, err := presets.List(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(w)
	if len(scenarios) == 0 {
		printSystemMessage(w, "No scenarios in %s", dir)
		return nil
	}
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCENARIO\tALGORITHM\tDESCRIPTION")
	for _, sc := range scenarios {
		status := sc.Description
		if err := sc.Validate(catalog); err != nil {
			status = "invalid: " + err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", sc.Name, sc.Algorithm, status)
	}
	return tw.Flush()
}
