package compare

import (
	"fmt"
	"iter"
	"time"

	"github.com/smallnest/ragduel"
)

// MeanScores holds per-criterion means over the fully scored questions of a
// batch, i.e. those where neither answer was degraded.
type MeanScores struct {
	Accuracy      float64
	Completeness  float64
	Precision     float64
	Verifiability float64
}

// Stats aggregates a batch of comparison records.
type Stats struct {
	Total  int
	Failed int

	RetrievalWins  int
	StructuredWins int
	Ties           int

	MeanRetrieval  MeanScores
	MeanStructured MeanScores
	MeanGap        float64

	TotalElapsed time.Duration
}

// CollectStats drains the record sequence and aggregates it. Failed records
// count toward Total and Failed but not toward wins or means. Records where
// either answer was degraded count toward wins but not toward the means: their
// verdicts carry zero criterion scores (no LLM scoring happened), which would
// drag the means down.
func CollectStats(records iter.Seq[*ragduel.ComparisonRecord]) Stats {
	var s Stats
	var retrievalSum, structuredSum [4]int
	var gapSum, scored int

	for record := range records {
		s.Total++
		s.TotalElapsed += record.Elapsed
		if record.Failed || record.Verdict == nil {
			s.Failed++
			continue
		}

		switch record.Verdict.Winner {
		case ragduel.WinnerFirst:
			s.RetrievalWins++
		case ragduel.WinnerSecond:
			s.StructuredWins++
		default:
			s.Ties++
		}

		if degradedSide(record) {
			continue
		}
		scored++
		addScores(&retrievalSum, record.Verdict.First)
		addScores(&structuredSum, record.Verdict.Second)
		gapSum += record.Verdict.Gap()
	}

	if scored > 0 {
		s.MeanRetrieval = meanOf(retrievalSum, scored)
		s.MeanStructured = meanOf(structuredSum, scored)
		s.MeanGap = float64(gapSum) / float64(scored)
	}
	return s
}

func degradedSide(record *ragduel.ComparisonRecord) bool {
	return (record.Retrieval != nil && record.Retrieval.Degraded) ||
		(record.Structured != nil && record.Structured.Degraded)
}

func addScores(sum *[4]int, scores ragduel.CriterionScores) {
	sum[0] += scores.Accuracy
	sum[1] += scores.Completeness
	sum[2] += scores.Precision
	sum[3] += scores.Verifiability
}

func meanOf(sum [4]int, n int) MeanScores {
	return MeanScores{
		Accuracy:      float64(sum[0]) / float64(n),
		Completeness:  float64(sum[1]) / float64(n),
		Precision:     float64(sum[2]) / float64(n),
		Verifiability: float64(sum[3]) / float64(n),
	}
}

// String renders a one-paragraph batch summary.
func (s Stats) String() string {
	return fmt.Sprintf(
		"%d questions (%d failed): retrieval %d, structured %d, ties %d; mean gap %.1f; total time %s",
		s.Total, s.Failed, s.RetrievalWins, s.StructuredWins, s.Ties, s.MeanGap, s.TotalElapsed.Round(time.Millisecond))
}
