package htmlexport

import (
	"crypto/md5"
	"fmt"
	"regexp"
	"time"

	"golang.org/x/net/html"

	"github.com/chatvault/chatvault/internal/record"
)

// genericMaxMessages caps how many candidate blocks one page yields.
const genericMaxMessages = 50

// genericMinContent filters out navigation scraps and button labels.
const genericMinContent = 10

var genericBlockRe = regexp.MustCompile(`(?i)message|chat|user|assistant`)

// generic extracts conversations from pages without structured message
// markup. Ids derive from the filename so re-imports are stable, roles
// alternate user/assistant by turn order, and timestamps are spaced
// backwards from the file's mtime.
type generic struct {
	name  string
	model string
	hints []string
}

func (g generic) Name() string { return g.name }

func (g generic) Detect(f File, _ []byte) bool {
	return hintMatches(f, g.hints)
}

func (g generic) Extract(f File, doc *html.Node, _ []byte) (*record.ConversationExport, error) {
	id := fmt.Sprintf("%s_%x", g.name, md5.Sum([]byte(f.Name)))
	mtime := float64(f.ModTime.Unix())

	blocks := findAll(doc, func(n *html.Node) bool {
		return (n.Data == "div" || n.Data == "article") && classMatches(n, genericBlockRe)
	})

	var msgs []record.Message
	for idx, block := range blocks {
		if idx >= genericMaxMessages {
			break
		}
		content := textContent(block)
		if len(content) <= genericMinContent {
			continue
		}
		role := "user"
		if idx%2 == 1 {
			role = "assistant"
		}
		m := record.Message{
			ConversationID: id,
			MessageID:      fmt.Sprintf("%s_msg_%d", g.name, idx),
			Role:           role,
			Author:         role,
			Content:        content,
			Model:          g.model,
			ModelSlug:      g.model,
			CreateTime:     mtime - float64((len(blocks)-idx)*60),
			Status:         "finished_successfully",
			Source:         record.SourceHTMLExport,
		}
		if len(msgs) > 0 {
			m.ParentID = msgs[len(msgs)-1].MessageID
		}
		m.RawData = rawMessage(g.name+"_html_export", f.Name, m)
		msgs = append(msgs, m)
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoMessages, f.RelPath)
	}

	conv := record.Conversation{
		ConversationID: id,
		Title:          fmt.Sprintf("[%s] %s", titleTag(g.name), baseTitle(f, doc)),
		CreateTime:     mtime - float64(len(msgs)*60),
		UpdateTime:     mtime,
		ExportFolder:   "HTMLS/" + f.RelPath,
		Source:         record.SourceHTMLExport,
		RawData:        rawConversation(g.name+"_html_export", f.Name, mtime),
	}
	return &record.ConversationExport{Conversation: conv, Messages: msgs}, nil
}

func titleTag(name string) string {
	switch name {
	case "grok":
		return "Grok"
	case "anthropic":
		return "Anthropic"
	case "perplexity":
		return "Perplexity"
	}
	return name
}

func parseISOTime(s string) float64 {
	if s == "" {
		return 0
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0
	}
	return float64(t.UnixNano()) / float64(time.Second)
}
