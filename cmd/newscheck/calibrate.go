package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func newCalibrateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "calibrate",
		Short: "Calibrate recent analyses against the reference corpus",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			entry, err := a.calibration.Calibrate(cmd.Context())
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(entry)
		},
	}
}
