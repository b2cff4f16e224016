package main

import (
	"os"

	"github.com/aretw0/tempo"
	"github.com/aretw0/tempo/internal/cli"
	"github.com/aretw0/tempo/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play [algorithm]",
	Short: "Replay an algorithm in the terminal",
	Long: `Replays an algorithm as animated frames.

Keys (when stdin is a terminal):
  p, space  pause / resume
  s         step one snapshot (pauses first)
  + / -     faster / slower
  r         restart
  q         quit`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		opts := cli.PlayOptions{
			Config: cfg,
			Out:    cmd.OutOrStdout(),
			Err:    cmd.ErrOrStderr(),
			In:     os.Stdin,
		}
		if len(args) > 0 {
			opts.Algorithm = args[0]
		}
		opts.Input, _ = cmd.Flags().GetString("input")
		opts.Scenario, _ = cmd.Flags().GetString("scenario")
		opts.Debug, _ = cmd.Flags().GetBool("debug")
		if cmd.Flags().Changed("speed") {
			speed, _ := cmd.Flags().GetInt("speed")
			opts.Speed = &speed
		}
		if quiet, _ := cmd.Flags().GetBool("no-keys"); quiet {
			opts.In = nil
		}

		if banner, _ := cmd.Flags().GetBool("banner"); banner {
			tui.PrintBanner(opts.Out, tempo.Version)
		}

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()
		return cli.Play(ctx, opts)
	},
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().StringP("input", "i", "", "Input as a JSON object (defaults to the algorithm's sample)")
	playCmd.Flags().IntP("speed", "s", 0, "Delay between steps in milliseconds (0-1000)")
	playCmd.Flags().String("scenario", "", "Play a preset from the scenario directory")
	playCmd.Flags().Bool("no-keys", false, "Ignore stdin; play straight through")
	playCmd.Flags().Bool("banner", true, "Print the banner before playing")
}
