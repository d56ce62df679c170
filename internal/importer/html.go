package importer

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/chatvault/chatvault/internal/events"
	"github.com/chatvault/chatvault/internal/htmlexport"
	"github.com/chatvault/chatvault/internal/record"
	"github.com/chatvault/chatvault/internal/resolver"
)

// HTMLRunSummary reports one HTML-import run.
type HTMLRunSummary struct {
	HTMLFilesFound        int         `json:"html_files_found"`
	ConversationsImported int         `json:"conversations_imported"`
	MessagesImported      int         `json:"messages_imported"`
	Errors                []HTMLError `json:"errors"`
	Skipped               []HTMLSkip  `json:"skipped,omitempty"`
}

type HTMLError struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

type HTMLSkip struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
}

// ImportHTMLDir imports every HTML file under the HTML directory.
// Unrecognized and already-imported files are reported as skips; a
// failing file is recorded and the run continues.
func (r *Runner) ImportHTMLDir(ctx context.Context) (HTMLRunSummary, error) {
	files, err := htmlexport.ScanDir(r.htmlDir)
	if err != nil {
		return HTMLRunSummary{}, err
	}

	summary := HTMLRunSummary{HTMLFilesFound: len(files)}
	for _, f := range files {
		convs, msgs, skipReason, err := r.importHTMLFile(ctx, f)
		switch {
		case err != nil:
			summary.Errors = append(summary.Errors, HTMLError{File: f.RelPath, Error: err.Error()})
			r.logger.Error("html import failed", "file", f.RelPath, "error", err)
		case skipReason != "":
			summary.Skipped = append(summary.Skipped, HTMLSkip{File: f.RelPath, Reason: skipReason})
			r.logger.Info("html file skipped", "file", f.RelPath, "reason", skipReason)
		default:
			summary.ConversationsImported += convs
			summary.MessagesImported += msgs
		}
	}

	r.bus.Publish(events.SubjectHTMLCompleted, summary)
	return summary, nil
}

func (r *Runner) importHTMLFile(ctx context.Context, f htmlexport.File) (convs, msgs int, skipReason string, err error) {
	data, err := os.ReadFile(f.Path(r.htmlDir))
	if err != nil {
		return 0, 0, "", fmt.Errorf("read html file: %w", err)
	}
	return r.applyHTML(ctx, f, data)
}

// applyHTML extracts a saved page and feeds it through the resolver.
// Re-extracted pages from services without stable message ids would
// produce drifting duplicates on update, so a non-ChatGPT page whose
// conversation already exists is skipped whole.
func (r *Runner) applyHTML(ctx context.Context, f htmlexport.File, data []byte) (convs, msgs int, skipReason string, err error) {
	export, vendor, err := htmlexport.Extract(f, data)
	switch {
	case errors.Is(err, record.ErrUnrecognizedFormat):
		return 0, 0, "not_chatgpt", nil
	case errors.Is(err, htmlexport.ErrNoMessages):
		return 0, 0, "no_messages", nil
	case err != nil:
		return 0, 0, "", err
	}

	if vendor != "chatgpt" {
		existing, err := r.store.FindConversation(ctx, export.Conversation.ConversationID)
		if err != nil {
			return 0, 0, "", err
		}
		if existing != nil {
			return 0, 0, "already_exists", nil
		}
	}

	d, err := r.resolver.UpsertConversation(ctx, export.Conversation)
	if err != nil {
		return 0, 0, "", err
	}
	if d.Action == resolver.ActionSkip {
		return 0, 0, d.Reason, nil
	}
	if d.Action == resolver.ActionInsert {
		convs = 1
	}

	for _, m := range export.Messages {
		d, err := r.resolver.AddMessage(ctx, m)
		if err != nil {
			return convs, msgs, "", err
		}
		if d.Action == resolver.ActionInsert {
			msgs++
		}
	}
	return convs, msgs, "", nil
}

// CleanupHTMLDuplicates runs the HTML/JSON duplicate sweep and
// publishes the result.
func (r *Runner) CleanupHTMLDuplicates(ctx context.Context) (resolver.CleanupResult, error) {
	res, err := r.resolver.CleanupHTMLDuplicates(ctx)
	if err != nil {
		return resolver.CleanupResult{}, err
	}
	r.bus.Publish(events.SubjectCleanupCompleted, res)
	r.logger.Info("html duplicate cleanup", "removed", res.Removed, "kept", res.Kept)
	return res, nil
}
