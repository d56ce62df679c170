// Package importer drives import runs: a directory of export folders,
// a directory of saved HTML pages, or a single uploaded file. It
// enumerates inputs deterministically, feeds candidates through the
// resolver, and isolates failures per folder or file so one bad input
// never aborts a run.
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/chatvault/chatvault/internal/events"
	"github.com/chatvault/chatvault/internal/resolver"
	"github.com/chatvault/chatvault/internal/store"
)

const ttlSuffix = " - ttl"

// Runner executes import runs against one store.
type Runner struct {
	store    store.Store
	resolver *resolver.Resolver
	bus      *events.Publisher
	logger   *slog.Logger

	chatlogDir string
	htmlDir    string
}

func New(s store.Store, bus *events.Publisher, logger *slog.Logger, chatlogDir, htmlDir string) *Runner {
	return &Runner{
		store:      s,
		resolver:   resolver.New(s),
		bus:        bus,
		logger:     logger,
		chatlogDir: chatlogDir,
		htmlDir:    htmlDir,
	}
}

// RunSummary reports one folder-import run.
type RunSummary struct {
	TotalFolders  int      `json:"total_folders"`
	Processed     int      `json:"processed"`
	Skipped       int      `json:"skipped"`
	Errors        int      `json:"errors"`
	Conversations int      `json:"conversations"`
	Messages      int      `json:"messages"`
	Feedback      int      `json:"feedback"`
	Comparisons   int      `json:"comparisons"`
	TTLAuth       int      `json:"ttl_auth"`
	TTLSessions   int      `json:"ttl_sessions"`
	ErrorsList    []string `json:"errors_list"`
}

// ScanFolders lists the export folders under the chatlog directory in
// deterministic order. A TTL folder paired with a conversation folder
// is imported alongside it and not listed separately; standalone TTL
// folders are listed on their own.
func (r *Runner) ScanFolders() ([]string, error) {
	entries, err := os.ReadDir(r.chatlogDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan chatlog dir: %w", err)
	}

	var folders []string
	present := make(map[string]bool)
	var ttlFolders []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ttlSuffix) || strings.EqualFold(name, "ttl") {
			ttlFolders = append(ttlFolders, name)
			continue
		}
		folders = append(folders, name)
		present[name] = true
	}
	for _, name := range ttlFolders {
		base := strings.TrimSuffix(name, ttlSuffix)
		if strings.EqualFold(name, "ttl") || !present[base] {
			folders = append(folders, name)
		}
	}
	sort.Strings(folders)
	return folders, nil
}

// ImportAll imports every pending folder under the chatlog directory.
// Folders whose import log says completed are skipped; a failing
// folder is recorded and the run continues.
func (r *Runner) ImportAll(ctx context.Context) (RunSummary, error) {
	folders, err := r.ScanFolders()
	if err != nil {
		return RunSummary{}, err
	}

	summary := RunSummary{TotalFolders: len(folders)}
	r.bus.Publish(events.SubjectImportStarted, map[string]any{
		"total_folders": len(folders),
	})

	for _, folder := range folders {
		res, err := r.importFolder(ctx, folder)
		switch {
		case err != nil:
			summary.Errors++
			summary.ErrorsList = append(summary.ErrorsList, fmt.Sprintf("%s: %v", folder, err))
			r.logger.Error("folder import failed", "folder", folder, "error", err)
		case res.skipped:
			summary.Skipped++
			r.logger.Info("folder skipped", "folder", folder, "reason", res.skipReason)
		default:
			summary.Processed++
			summary.Conversations += res.counters.Conversations
			summary.Messages += res.counters.Messages
			summary.Feedback += res.counters.Feedback
			summary.Comparisons += res.counters.Comparisons
			summary.TTLAuth += res.counters.TTLAuth
			summary.TTLSessions += res.counters.TTLSessions
			r.logger.Info("folder imported", "folder", folder,
				"conversations", res.counters.Conversations, "messages", res.counters.Messages)
		}
	}

	r.bus.Publish(events.SubjectImportCompleted, summary)
	return summary, nil
}

// counters accumulates row-level outcomes for one folder.
type counters struct {
	Conversations int
	Messages      int
	Feedback      int
	Comparisons   int
	TTLAuth       int
	TTLSessions   int
}

type folderResult struct {
	skipped    bool
	skipReason string
	counters   counters
}

func (r *Runner) importFolder(ctx context.Context, folder string) (folderResult, error) {
	existing, err := r.store.FindImportLog(ctx, folder)
	if err != nil {
		return folderResult{}, fmt.Errorf("find import log: %w", err)
	}
	if existing != nil && existing.Status == "completed" {
		return folderResult{skipped: true, skipReason: "already_imported"}, nil
	}

	isTTL := strings.HasSuffix(folder, ttlSuffix) || strings.EqualFold(folder, "ttl")
	path := filepath.Join(r.chatlogDir, folder)
	if !isTTL {
		if _, err := os.Stat(filepath.Join(path, "conversations.json")); os.IsNotExist(err) {
			return folderResult{skipped: true, skipReason: "no_conversations_file"}, nil
		}
	}

	log := store.ImportLog{
		ExportFolder: folder,
		Status:       "in_progress",
		StartedAt:    float64(time.Now().Unix()),
	}
	if err := r.store.UpsertImportLog(ctx, log); err != nil {
		return folderResult{}, fmt.Errorf("start import log: %w", err)
	}

	var c counters
	if isTTL {
		err = r.importTTLFolder(ctx, path, folder, "", &c)
	} else {
		err = r.importExportFolder(ctx, path, folder, &c)
	}
	if err != nil {
		log.Status = "error"
		log.ErrorLog = err.Error()
		log.CompletedAt = float64(time.Now().Unix())
		if upErr := r.store.UpsertImportLog(ctx, log); upErr != nil {
			r.logger.Error("record import failure", "folder", folder, "error", upErr)
		}
		return folderResult{}, err
	}

	log.Status = "completed"
	log.CompletedAt = float64(time.Now().Unix())
	log.Conversations = c.Conversations
	log.Messages = c.Messages
	log.Feedback = c.Feedback
	log.Comparisons = c.Comparisons
	log.TTLAuth = c.TTLAuth
	log.TTLSessions = c.TTLSessions
	if err := r.store.UpsertImportLog(ctx, log); err != nil {
		return folderResult{}, fmt.Errorf("complete import log: %w", err)
	}
	return folderResult{counters: c}, nil
}
