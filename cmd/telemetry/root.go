package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/banshee-data/telemetry.replay/internal/monitoring"
)

func newRootCmd() *cobra.Command {
	var debug bool
	root := &cobra.Command{
		Use:   "telemetry",
		Short: "Stream synthetic or replayed telemetry to a push socket",
		Long: `telemetry reads an initial app state as one JSON object on stdin and
publishes samples as flat JSON messages, one per socket message.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.SetOutput(cmd.ErrOrStderr())
			monitoring.SetDebug(debug)
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Log every published sample")

	root.AddCommand(
		newSyntheticCmd(),
		newReplayCmd(),
		newRunCmd(),
		newVersionCmd(),
	)
	return root
}
