package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newRetrainCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "retrain",
		Short: "Retrain the local classifier with accumulated feedback",
		Long: `Retrain the local classifier with accumulated feedback. With redis_addr
set the retrain is queued for the worker instead of running here.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			// The worker owns retrains whenever a queue is configured
			if a.queue != nil {
				taskID, err := a.queue.EnqueueRetrain(cmd.Context(), "manual")
				if err != nil {
					return err
				}
				if taskID == "" {
					fmt.Fprintln(cmd.OutOrStdout(), "retrain already queued")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "retrain queued as task %s\n", taskID)
				return nil
			}

			result := a.trigger.RetrainNow(cmd.Context())

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return err
			}
			if !result.Trained {
				return fmt.Errorf("retrain did not complete: %s", result.Reason)
			}
			return nil
		},
	}
}
