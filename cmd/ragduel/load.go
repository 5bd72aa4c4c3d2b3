package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/smallnest/ragduel/llms/openai"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Validate a dataset by loading it and printing what it yields",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// The embedder is only exercised when vector search is on, so a plain
		// validation run works without an API key.
		var llm *openai.Client
		if viper.GetBool("vector-search") {
			var err error
			if llm, err = newLLM(); err != nil {
				return err
			}
		}

		fs, err := loadFactStore(ctx, llm)
		if err != nil {
			return err
		}
		defer fs.Close()

		docs, entities, relationships := fs.Counts()
		fmt.Fprintf(cmd.OutOrStdout(), "%d documents, %d entities, %d relationships\n",
			docs, entities, relationships)

		schema, err := fs.Schema(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), schema.Describe())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loadCmd)
}
