package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chatvault/chatvault/internal/jsonexport"
	"github.com/chatvault/chatvault/internal/resolver"
	"github.com/chatvault/chatvault/internal/ttl"
)

// importExportFolder imports one conversation export folder, then any
// paired "<folder> - ttl" sibling.
func (r *Runner) importExportFolder(ctx context.Context, path, folder string, c *counters) error {
	if data, err := os.ReadFile(filepath.Join(path, "user.json")); err == nil {
		if err := r.importUser(ctx, data, folder); err != nil {
			return err
		}
	}

	data, err := os.ReadFile(filepath.Join(path, "conversations.json"))
	if err != nil {
		return fmt.Errorf("read conversations.json: %w", err)
	}
	if err := r.importConversations(ctx, data, folder, c); err != nil {
		return err
	}

	if data, err := os.ReadFile(filepath.Join(path, "message_feedback.json")); err == nil {
		if err := r.importFeedback(ctx, data, c); err != nil {
			return err
		}
	}
	if data, err := os.ReadFile(filepath.Join(path, "model_comparisons.json")); err == nil {
		if err := r.importComparisons(ctx, data, c); err != nil {
			return err
		}
	}

	ttlFolder := folder + ttlSuffix
	ttlPath := filepath.Join(filepath.Dir(path), ttlFolder)
	if info, err := os.Stat(ttlPath); err == nil && info.IsDir() {
		if err := r.importTTLFolder(ctx, ttlPath, ttlFolder, folder, c); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) importUser(ctx context.Context, data []byte, folder string) error {
	u, err := jsonexport.ParseUser(data)
	if err != nil {
		return err
	}
	u.ExportFolder = folder
	if _, err := r.resolver.AddUser(ctx, *u); err != nil {
		return err
	}
	return nil
}

func (r *Runner) importConversations(ctx context.Context, data []byte, folder string, c *counters) error {
	exports, err := jsonexport.ParseConversations(data)
	if err != nil {
		return err
	}
	for _, exp := range exports {
		conv := exp.Conversation
		conv.ExportFolder = folder
		d, err := r.resolver.UpsertConversation(ctx, conv)
		if err != nil {
			return err
		}
		if d.Action == resolver.ActionInsert {
			c.Conversations++
		}
		for _, m := range exp.Messages {
			d, err := r.resolver.AddMessage(ctx, m)
			if err != nil {
				return err
			}
			if d.Action == resolver.ActionInsert {
				c.Messages++
			}
		}
	}
	return nil
}

func (r *Runner) importFeedback(ctx context.Context, data []byte, c *counters) error {
	fbs, err := jsonexport.ParseFeedback(data)
	if err != nil {
		return err
	}
	for _, f := range fbs {
		d, err := r.resolver.AddFeedback(ctx, f)
		if err != nil {
			return err
		}
		if d.Action == resolver.ActionInsert {
			c.Feedback++
		}
	}
	return nil
}

func (r *Runner) importComparisons(ctx context.Context, data []byte, c *counters) error {
	comps, err := jsonexport.ParseComparisons(data)
	if err != nil {
		return err
	}
	for _, cmp := range comps {
		d, err := r.resolver.AddComparison(ctx, cmp)
		if err != nil {
			return err
		}
		if d.Action == resolver.ActionInsert {
			c.Comparisons++
		}
	}
	return nil
}

// importTTLFolder imports the auth and billing dumps under a TTL
// folder. relatedFolder is the paired conversation folder, empty for
// standalone TTL folders; the pair forms the dedup key so identically
// named TTL folders from different exports stay distinct.
func (r *Runner) importTTLFolder(ctx context.Context, path, folder, relatedFolder string, c *counters) error {
	dumps, err := ttl.ScanFolder(path)
	if err != nil {
		return err
	}
	folderID := folder
	if relatedFolder != "" {
		folderID = relatedFolder + "|" + folder
	}

	for _, d := range dumps {
		if d.AuthPath != "" {
			data, err := os.ReadFile(d.AuthPath)
			if err != nil {
				return fmt.Errorf("read ttl auth: %w", err)
			}
			auth, sessions, err := ttl.ParseAuth(data)
			if err != nil {
				return err
			}
			if auth != nil {
				auth.ExportFolder = folderID
				dec, err := r.resolver.AddTTLAuth(ctx, *auth)
				if err != nil {
					return err
				}
				if dec.Action == resolver.ActionInsert {
					c.TTLAuth++
					for _, s := range sessions {
						dec, err := r.resolver.AddTTLSession(ctx, s)
						if err != nil {
							return err
						}
						if dec.Action == resolver.ActionInsert {
							c.TTLSessions++
						}
					}
				}
			}
		}
		if d.BillingPath != "" {
			data, err := os.ReadFile(d.BillingPath)
			if err != nil {
				return fmt.Errorf("read ttl billing: %w", err)
			}
			billing, err := ttl.ParseBilling(data)
			if err != nil {
				return err
			}
			if billing != nil {
				billing.ExportFolder = folderID
				if _, err := r.resolver.AddTTLBilling(ctx, *billing); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
