// Package status classifies a document's integrity from its version history.
//
// The classification is a drafting heuristic, not a security control: a
// document that appears complete on its first save, or that grows by an
// implausibly large amount in a single save, is flagged for review.
package status

import (
	"strings"

	"doccloud/internal/document/model"
)

type Status string

const (
	Verified Status = "verified"
	Flagged  Status = "flagged"
	Pending  Status = "pending"
)

const (
	// MinWords is the latest-version word count below which a document is
	// still considered in progress.
	MinWords = 100
	// MaxFirstWords is the largest word count a first save may have.
	MaxFirstWords = 200
	// MaxEditDelta is the word-count change between adjacent versions at
	// which an edit is flagged.
	MaxEditDelta = 500
)

// WordCount counts maximal runs of non-whitespace characters.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// Classify evaluates the rules in order; the first match wins.
func Classify(versions []model.VersionRecord) Status {
	counts := make([]int, len(versions))
	for i, v := range versions {
		counts[i] = WordCount(v.Text)
	}
	return ClassifyCounts(counts)
}

// ClassifyCounts is Classify over precomputed word counts in chronological
// order.
func ClassifyCounts(counts []int) Status {
	if len(counts) == 0 || counts[len(counts)-1] < MinWords {
		return Pending
	}
	if counts[0] > MaxFirstWords {
		return Flagged
	}
	for i := 1; i < len(counts); i++ {
		if abs(counts[i]-counts[i-1]) >= MaxEditDelta {
			return Flagged
		}
	}
	return Verified
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
