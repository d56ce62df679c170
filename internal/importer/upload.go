package importer

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/chatvault/chatvault/internal/htmlexport"
	"github.com/chatvault/chatvault/internal/record"
)

// FileResult reports a single uploaded file's import.
type FileResult struct {
	Kind          string `json:"kind"`
	Conversations int    `json:"conversations"`
	Messages      int    `json:"messages"`
	Feedback      int    `json:"feedback"`
	Comparisons   int    `json:"comparisons"`
	SkipReason    string `json:"skip_reason,omitempty"`
}

// ImportFile imports one uploaded file, detecting its kind from the
// filename and, when the name is ambiguous, from the content shape.
// Uploaded exports are filed under the "uploads" folder label.
func (r *Runner) ImportFile(ctx context.Context, filename string, data []byte) (FileResult, error) {
	name := strings.ToLower(filepath.Base(filename))
	var c counters

	switch {
	case strings.HasSuffix(name, ".html"):
		f := htmlexport.File{
			Name:    filepath.Base(filename),
			RelPath: "uploads/" + filepath.Base(filename),
			ModTime: time.Now(),
		}
		convs, msgs, skipReason, err := r.applyHTML(ctx, f, data)
		if err != nil {
			return FileResult{}, err
		}
		return FileResult{Kind: "html", Conversations: convs, Messages: msgs, SkipReason: skipReason}, nil

	case strings.Contains(name, "feedback"):
		if err := r.importFeedback(ctx, data, &c); err != nil {
			return FileResult{}, err
		}
		return FileResult{Kind: "feedback", Feedback: c.Feedback}, nil

	case strings.Contains(name, "comparison"):
		if err := r.importComparisons(ctx, data, &c); err != nil {
			return FileResult{}, err
		}
		return FileResult{Kind: "comparisons", Comparisons: c.Comparisons}, nil

	case strings.Contains(name, "user"):
		if err := r.importUser(ctx, data, "uploads"); err != nil {
			return FileResult{}, err
		}
		return FileResult{Kind: "user"}, nil

	case strings.Contains(name, "conversation"):
		if err := r.importConversations(ctx, data, "uploads", &c); err != nil {
			return FileResult{}, err
		}
		return FileResult{Kind: "conversations", Conversations: c.Conversations, Messages: c.Messages}, nil
	}

	return r.sniffFile(ctx, data)
}

// sniffFile classifies a JSON payload by shape: a list whose entries
// carry mapping graphs is a conversations export, a list with ratings
// is feedback, and objects are comparisons.
func (r *Runner) sniffFile(ctx context.Context, data []byte) (FileResult, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return FileResult{}, fmt.Errorf("%w: empty file", record.ErrUnrecognizedFormat)
	}

	var c counters
	switch trimmed[0] {
	case '[':
		if bytes.Contains(trimmed, []byte(`"mapping"`)) {
			if err := r.importConversations(ctx, data, "uploads", &c); err != nil {
				return FileResult{}, err
			}
			return FileResult{Kind: "conversations", Conversations: c.Conversations, Messages: c.Messages}, nil
		}
		if bytes.Contains(trimmed, []byte(`"rating"`)) {
			if err := r.importFeedback(ctx, data, &c); err != nil {
				return FileResult{}, err
			}
			return FileResult{Kind: "feedback", Feedback: c.Feedback}, nil
		}
	case '{':
		if bytes.Contains(trimmed, []byte(`"email"`)) {
			if err := r.importUser(ctx, data, "uploads"); err != nil {
				return FileResult{}, err
			}
			return FileResult{Kind: "user"}, nil
		}
		if err := r.importComparisons(ctx, data, &c); err != nil {
			return FileResult{}, err
		}
		return FileResult{Kind: "comparisons", Comparisons: c.Comparisons}, nil
	}
	return FileResult{}, fmt.Errorf("%w: unable to classify upload", record.ErrUnrecognizedFormat)
}
