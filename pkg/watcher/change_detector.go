package watcher

import (
	"fmt"
	"strings"
)

// ChangeAnalysis describes what a batch of revision changes means for a
// running merge session.
type ChangeAnalysis struct {
	// NeedRestart is set when base changed: every diff is computed
	// against it, so the change lists are no longer valid.
	NeedRestart bool `json:"needRestart"`
	// StaleSides lists the sides whose diffs no longer match the files.
	StaleSides   []Revision `json:"staleSides"`
	ChangedFiles []string   `json:"changedFiles"`
}

// AnalyzeChanges determines how stale a session becomes after event.
func AnalyzeChanges(event ChangeEvent) *ChangeAnalysis {
	analysis := &ChangeAnalysis{ChangedFiles: event.Paths}
	for _, rev := range event.Revisions {
		switch rev {
		case RevisionBase:
			analysis.NeedRestart = true
		case RevisionLocal, RevisionRemote:
			analysis.StaleSides = append(analysis.StaleSides, rev)
		}
	}
	return analysis
}

// Message is a one-line description for logs and UI banners.
func (a *ChangeAnalysis) Message() string {
	if a.NeedRestart {
		return "base revision changed on disk; restart the merge"
	}
	names := make([]string, len(a.StaleSides))
	for i, r := range a.StaleSides {
		names[i] = r.String()
	}
	return fmt.Sprintf("%s revision changed on disk", strings.Join(names, " and "))
}
