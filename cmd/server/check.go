package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"version-gate/internal/engine"
	"version-gate/internal/gate"
	"version-gate/props"
)

func newCheckCommand() *cobra.Command {
	var (
		overlays []string
		version  string
		deviceID string
	)
	cmd := &cobra.Command{
		Use:   "check <fixture.yaml>",
		Short: "Evaluate a YAML rule fixture offline and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := props.Load(args[0], overlays...)
			if err != nil {
				return err
			}
			if version != "" {
				f.Context.CurrentVersion = version
			}
			if deviceID != "" {
				f.Context.DeviceID = deviceID
			}

			res := gate.Decide(engine.New(), f.Selection(), f.Context)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringSliceVar(&overlays, "overlay", nil, "fixture files applied on top, in order")
	cmd.Flags().StringVar(&version, "version", "", "override the client version")
	cmd.Flags().StringVar(&deviceID, "device", "", "override the device id")
	return cmd
}
