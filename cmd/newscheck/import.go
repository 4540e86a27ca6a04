package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zombar/newscheck/internal/dataset"
)

func newImportCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Load a labeled CSV or XLSX file into the reference corpus",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := dataset.ReadFile(args[0])
			if err != nil {
				return err
			}
			if !ds.Labeled {
				return fmt.Errorf("%s has no label column", args[0])
			}

			a, err := newApp(opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			inserted, err := a.db.InsertReferenceArticles(cmd.Context(), ds.Articles)
			if err != nil {
				return err
			}

			opts.logger.Info("reference corpus imported",
				"file", args[0],
				"rows", len(ds.Articles),
				"inserted", inserted,
				"skipped", ds.Skipped,
			)
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d of %d articles\n", inserted, len(ds.Articles))
			return nil
		},
	}
}
