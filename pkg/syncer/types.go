package syncer

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

type Action string

const (
	ActionCopied    Action = "copied"
	ActionWouldCopy Action = "would-copy"
	ActionDuplicate Action = "skipped-duplicate"
	ActionFailed    Action = "failed"
)

// FileResult records what happened to one candidate.
type FileResult struct {
	Action Action `json:"action"`
	Source string `json:"source"`
	Target string `json:"target,omitempty"`
	Error  string `json:"error,omitempty"`
}

type Summary struct {
	Found       int   `json:"found"`
	Copied      int   `json:"copied"`
	WouldCopy   int   `json:"would_copy"`
	Duplicates  int   `json:"duplicates"`
	Failed      int   `json:"failed"`
	BytesCopied int64 `json:"bytes_copied"`
}

// Result describes a run. It is returned alongside errors so partial
// progress can still be reported.
type Result struct {
	DryRun        bool         `json:"dry_run"`
	Cutoff        *time.Time   `json:"cutoff"`
	NextCutoff    *time.Time   `json:"next_cutoff,omitempty"`
	MarkerWritten bool         `json:"marker_written"`
	Files         []FileResult `json:"files"`
	Summary       Summary      `json:"summary"`
}

func (r *Result) add(fr FileResult) {
	r.Files = append(r.Files, fr)
	switch fr.Action {
	case ActionCopied:
		r.Summary.Copied++
	case ActionWouldCopy:
		r.Summary.WouldCopy++
	case ActionDuplicate:
		r.Summary.Duplicates++
	case ActionFailed:
		r.Summary.Failed++
	}
}

// formatBytes formats bytes in human readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// WriteResult writes the result as indented JSON.
func WriteResult(path string, result *Result) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}
