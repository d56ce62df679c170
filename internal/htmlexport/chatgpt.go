package htmlexport

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/chatvault/chatvault/internal/record"
)

// ErrNoMessages reports a recognized page that yielded no extractable
// messages. Callers treat it as a skip, not a failure.
var ErrNoMessages = errors.New("no messages extracted")

var (
	convPathRe = regexp.MustCompile(`/c/([a-f0-9-]+)`)
	convHrefRe = regexp.MustCompile(`href=["']https://chatgpt\.com/c/([a-f0-9-]+)`)
	convDataRe = regexp.MustCompile(`(?i)["']conversation[_-]?id["']\s*:\s*["']([a-f0-9-]+)["']`)
	turnRe     = regexp.MustCompile(`conversation-turn`)
	embeddedTS = regexp.MustCompile(`(?i)["']timestamp["']\s*:\s*["']?(\d{10,13})`)
)

type chatGPT struct{}

func (chatGPT) Name() string { return "chatgpt" }

func (chatGPT) Detect(f File, content []byte) bool {
	return conversationID(content) != "" || strings.EqualFold(f.Subfolder, "chatgpt")
}

func (chatGPT) Extract(f File, doc *html.Node, content []byte) (*record.ConversationExport, error) {
	id := conversationID(content)
	if id == "" {
		return nil, fmt.Errorf("%w: %s: no conversation id in page", record.ErrParse, f.RelPath)
	}

	articles := findAll(doc, func(n *html.Node) bool {
		if n.Data != "article" {
			return false
		}
		testid, ok := attr(n, "data-testid")
		return ok && turnRe.MatchString(testid)
	})

	mtime := float64(f.ModTime.Unix())
	var msgs []record.Message
	for idx, article := range articles {
		msgDiv := findFirst(article, func(n *html.Node) bool {
			_, ok := attr(n, "data-message-id")
			return n.Data == "div" && ok
		})
		if msgDiv == nil {
			continue
		}
		messageID, _ := attr(msgDiv, "data-message-id")
		role, ok := attr(msgDiv, "data-message-author-role")
		if !ok {
			role = "unknown"
		}
		model, _ := attr(msgDiv, "data-message-model-slug")

		m := record.Message{
			ConversationID: id,
			MessageID:      messageID,
			Role:           role,
			Author:         role,
			Content:        articleContent(article),
			Model:          model,
			ModelSlug:      model,
			CreateTime:     turnTimestamp(article, content, mtime, idx, len(articles)),
			Status:         "finished_successfully",
			Source:         record.SourceHTMLExport,
		}
		if len(msgs) > 0 {
			m.ParentID = msgs[len(msgs)-1].MessageID
		}
		m.RawData = rawMessage("html_export", f.Name, m)
		msgs = append(msgs, m)
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoMessages, f.RelPath)
	}

	conv := record.Conversation{
		ConversationID: id,
		Title:          baseTitle(f, doc),
		CreateTime:     mtime - float64(len(msgs)*60),
		UpdateTime:     mtime,
		ExportFolder:   "HTMLS/" + f.RelPath,
		Source:         record.SourceHTMLExport,
		RawData:        rawConversation("html_export", f.Name, mtime),
	}
	return &record.ConversationExport{Conversation: conv, Messages: msgs}, nil
}

func conversationID(content []byte) string {
	for _, re := range []*regexp.Regexp{convPathRe, convHrefRe, convDataRe} {
		if m := re.FindSubmatch(content); m != nil {
			return string(m[1])
		}
	}
	return ""
}

var contentClassRe = regexp.MustCompile(`whitespace-pre-wrap|markdown|text-message`)

// articleContent prefers the rendered message body over chrome like
// buttons and disclaimers, falling back to the whole turn's text.
func articleContent(article *html.Node) string {
	div := findFirst(article, func(n *html.Node) bool {
		if n.Data != "div" {
			return false
		}
		if classMatches(n, contentClassRe) {
			return true
		}
		_, ok := attr(n, "data-message-author-role")
		return ok
	})
	if div != nil {
		if text := textContent(div); text != "" {
			return text
		}
	}
	return textContent(article)
}

// turnTimestamp tries a <time datetime> element, then an embedded
// timestamp field anywhere in the page, then spaces turns one minute
// apart ending at the file's mtime.
func turnTimestamp(article *html.Node, content []byte, mtime float64, idx, total int) float64 {
	if t := findFirst(article, func(n *html.Node) bool { return n.Data == "time" }); t != nil {
		if dt, ok := attr(t, "datetime"); ok {
			if ts := parseISOTime(dt); ts != 0 {
				return ts
			}
		}
	}
	if m := embeddedTS.FindSubmatch(content); m != nil {
		if ts, err := strconv.ParseInt(string(m[1]), 10, 64); err == nil {
			if ts > 1e12 {
				return float64(ts) / 1000
			}
			return float64(ts)
		}
	}
	return mtime - float64((total-idx-1)*60)
}

func rawConversation(source, filename string, mtime float64) string {
	b, _ := json.Marshal(map[string]any{
		"source":     source,
		"filename":   filename,
		"file_mtime": mtime,
	})
	return string(b)
}

func rawMessage(source, filename string, m record.Message) string {
	b, _ := json.Marshal(map[string]any{
		"source":   source,
		"filename": filename,
		"message_data": map[string]any{
			"message_id": m.MessageID,
			"role":       m.Role,
			"model":      m.Model,
			"timestamp":  m.CreateTime,
		},
	})
	return string(b)
}
