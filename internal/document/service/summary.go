package service

import (
	"fmt"
	"sort"
	"strconv"
	"unicode/utf8"

	"doccloud/internal/document/model"
	"doccloud/internal/document/status"
)

// Summaries describes every document for the dashboard, sorted by title.
func (s *DocumentService) Summaries() []model.DocumentSummary {
	all := s.ListAll()
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]model.DocumentSummary, 0, len(names))
	for i, name := range names {
		out = append(out, Summarize(strconv.Itoa(i+1), all[name]))
	}
	return out
}

// Summarize builds the summary of h. Versions are listed newest first.
func Summarize(id string, h model.DocumentHistory) model.DocumentSummary {
	counts := make([]int, len(h.Versions))
	versions := make([]model.VersionSummary, len(h.Versions))
	for i, v := range h.Versions {
		counts[i] = status.WordCount(v.Text)
		versions[len(h.Versions)-1-i] = model.VersionSummary{
			CID:        v.ContentAddress,
			Timestamp:  v.Timestamp,
			WordCount:  counts[i],
			Characters: utf8.RuneCountInString(v.Text),
			Size:       formatSize(len(v.Text)),
			Content:    v.Text,
		}
	}

	summary := model.DocumentSummary{
		ID:            id,
		Title:         h.Name,
		TotalVersions: len(h.Versions),
		Status:        string(status.ClassifyCounts(counts)),
		Versions:      versions,
	}
	if first, ok := firstVersion(h); ok {
		summary.CreatedAt = first.Timestamp
	}
	if last, ok := h.Latest(); ok {
		summary.LastModified = last.Timestamp
		summary.CurrentWordCount = counts[len(counts)-1]
	}
	return summary
}

// HistoryResponse is the history endpoint's view of h.
func HistoryResponse(h model.DocumentHistory) model.HistoryResponse {
	counts := make([]int, len(h.Versions))
	versions := make([]model.VersionResponse, len(h.Versions))
	for i, v := range h.Versions {
		versions[i] = VersionResponse(v)
		counts[i] = versions[i].WordCount
	}
	return model.HistoryResponse{
		Name:     h.Name,
		Status:   string(status.ClassifyCounts(counts)),
		Versions: versions,
	}
}

func VersionResponse(v model.VersionRecord) model.VersionResponse {
	return model.VersionResponse{
		VersionNumber: v.VersionNumber,
		Text:          v.Text,
		Timestamp:     v.Timestamp.UnixMilli(),
		CID:           v.ContentAddress,
		ExternalID:    v.ExternalID,
		WordCount:     status.WordCount(v.Text),
	}
}

func firstVersion(h model.DocumentHistory) (model.VersionRecord, bool) {
	if len(h.Versions) == 0 {
		return model.VersionRecord{}, false
	}
	return h.Versions[0], true
}

func formatSize(bytes int) string {
	return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
}
