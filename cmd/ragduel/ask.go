package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer one question both ways and judge the pair",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		llm, err := newLLM()
		if err != nil {
			return err
		}
		fs, err := loadFactStore(ctx, llm)
		if err != nil {
			return err
		}
		defer fs.Close()

		record, err := newOrchestrator(llm, fs, pipelineConfig()).Compare(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), renderRecord(record))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
}
