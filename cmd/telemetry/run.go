package main

import (
	"github.com/spf13/cobra"

	"github.com/banshee-data/telemetry.replay/internal/appstate"
	"github.com/banshee-data/telemetry.replay/internal/harness"
)

func newRunCmd() *cobra.Command {
	var suite, function string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run named test functions against the stdin state",
		Long: `run reads the app state from stdin and runs one function of a test suite
(--function) or all of them in order. Each function prints pass, fail or
neutral, or echoes the state.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := harness.LoadSuite(suite, nil)
			if err != nil {
				return err
			}
			state, err := appstate.Read(cmd.InOrStdin())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if function != "" {
				return reg.Run(cmd.Context(), function, state, out)
			}
			return reg.RunAll(cmd.Context(), state, out)
		},
	}
	cmd.Flags().StringVar(&suite, "suite", "echo", "Test suite: echo or circuit")
	cmd.Flags().StringVar(&function, "function", "", "Run only this function")
	return cmd
}
