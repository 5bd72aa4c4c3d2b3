package main

import (
	"bufio"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/smallnest/ragduel"
	"github.com/smallnest/ragduel/compare"
	"github.com/smallnest/ragduel/runlog"
)

var (
	batchOut           string
	batchRunID         string
	batchMaxConcurrent int
	batchRateLimit     float64
)

var batchCmd = &cobra.Command{
	Use:   "batch [questions-file]",
	Short: "Compare a file of questions (one per line) and log the results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		questions, err := readQuestions(args[0])
		if err != nil {
			return err
		}
		if len(questions) == 0 {
			return fmt.Errorf("no questions in %s", args[0])
		}

		llm, err := newLLM()
		if err != nil {
			return err
		}
		fs, err := loadFactStore(ctx, llm)
		if err != nil {
			return err
		}
		defer fs.Close()

		cfg := pipelineConfig()
		cfg.MaxConcurrent = batchMaxConcurrent
		cfg.RateLimit = batchRateLimit

		runID := batchRunID
		if runID == "" {
			runID = uuid.NewString()
		}

		records := make([]*ragduel.ComparisonRecord, 0, len(questions))
		for record := range newOrchestrator(llm, fs, cfg).CompareMany(ctx, questions) {
			records = append(records, record)
			printProgress(cmd, record, len(records), len(questions))
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if batchOut != "" {
			log, err := runlog.NewStore(runlog.Options{Path: batchOut})
			if err != nil {
				return err
			}
			defer log.Close()
			if err := log.SaveAll(ctx, runID, records); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved run %s to %s\n", runID, batchOut)
		}

		fmt.Fprintln(cmd.OutOrStdout(), compare.CollectStats(slices.Values(records)).String())
		return nil
	},
}

func printProgress(cmd *cobra.Command, record *ragduel.ComparisonRecord, done, total int) {
	status := "tie"
	switch {
	case record.Failed:
		status = failureStyle.Render("failed: " + record.FailureReason)
	case record.Verdict != nil && record.Verdict.Winner == ragduel.WinnerFirst:
		status = "retrieval"
	case record.Verdict != nil && record.Verdict.Winner == ragduel.WinnerSecond:
		status = "structured"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "[%d/%d] %s %s\n",
		done, total, faintStyle.Render(record.Question), status)
}

// readQuestions loads one question per line, skipping blanks and # comments.
func readQuestions(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var questions []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		questions = append(questions, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return questions, nil
}

func init() {
	batchCmd.Flags().StringVar(&batchOut, "out", "ragduel.db", "SQLite file for the run log (empty disables logging)")
	batchCmd.Flags().StringVar(&batchRunID, "run-id", "", "run identifier (default: random UUID)")
	batchCmd.Flags().IntVar(&batchMaxConcurrent, "max-concurrent", 4, "questions compared in parallel")
	batchCmd.Flags().Float64Var(&batchRateLimit, "rate-limit", 0, "comparisons started per second (0 disables)")

	rootCmd.AddCommand(batchCmd)
}
