package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/smallnest/ragduel/compare"
	"github.com/smallnest/ragduel/runlog"
)

var runsDB string

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List logged runs, or summarize one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		log, err := runlog.NewStore(runlog.Options{Path: runsDB})
		if err != nil {
			return err
		}
		defer log.Close()

		if len(args) == 0 {
			runs, err := log.Runs(ctx)
			if err != nil {
				return err
			}
			for _, id := range runs {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		}

		records, err := log.List(ctx, args[0])
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return fmt.Errorf("no records for run %s", args[0])
		}

		for i, record := range records {
			printProgress(cmd, record, i+1, len(records))
		}
		fmt.Fprintln(cmd.OutOrStdout(), compare.CollectStats(slices.Values(records)).String())
		return nil
	},
}

func init() {
	runsCmd.Flags().StringVar(&runsDB, "db", "ragduel.db", "SQLite run log to read")

	rootCmd.AddCommand(runsCmd)
}
