package main

import (
	"github.com/spf13/cobra"

	"github.com/banshee-data/telemetry.replay/internal/appstate"
	"github.com/banshee-data/telemetry.replay/internal/monitoring"
	"github.com/banshee-data/telemetry.replay/internal/source"
	"github.com/banshee-data/telemetry.replay/internal/stream"
	"github.com/banshee-data/telemetry.replay/internal/transform"
)

func newSyntheticCmd() *cobra.Command {
	var (
		flags    streamFlags
		streamID string
		step     float64
	)
	cmd := &cobra.Command{
		Use:   "synthetic",
		Short: "Stream sin(t*frequency) + y_axis_offset",
		Long: `synthetic streams value = sin(t * frequency) + y_axis_offset with t
advancing by --step per sample. frequency and y_axis_offset are read from
slider_values in the stdin state and default to 1.0 and 0.0.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.streamConfig()
			if err != nil {
				return err
			}
			setup := stream.Setup{
				Source: func(state *appstate.AppState) (source.Source, error) {
					s := source.NewSyntheticFromState(state)
					if step > 0 {
						s.Step = step
					}
					monitoring.Logf("[Synthetic] frequency=%g y_axis_offset=%g step=%g", s.Frequency, s.Offset, s.Step)
					return s, nil
				},
				Channels: transform.SyntheticChannels(streamID),
			}
			return runStream(cmd.Context(), cmd, &flags, cfg, setup)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&streamID, "stream-id", transform.SineWaveStream, "Stream ID of the generated channel")
	cmd.Flags().Float64Var(&step, "step", source.DefaultStep, "Simulated seconds per sample")
	return cmd
}
