// Package htmlexport extracts conversation candidates from saved chat
// pages. ChatGPT pages carry real message ids and roles in data
// attributes; Grok, Anthropic, and Perplexity pages have no stable
// markup, so those extractors derive ids from the filename and guess
// roles by turn order.
package htmlexport

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/chatvault/chatvault/internal/record"
)

// File identifies one HTML file under the HTML directory. ModTime is
// the only date signal most saved pages have.
type File struct {
	Name      string
	Subfolder string
	RelPath   string
	ModTime   time.Time
}

// Vendor recognizes and extracts one chat service's saved pages.
type Vendor interface {
	Name() string
	Detect(f File, content []byte) bool
	Extract(f File, doc *html.Node, content []byte) (*record.ConversationExport, error)
}

// Vendors in detection order. ChatGPT goes first because its pages are
// identified by content, not by folder or filename.
func Vendors() []Vendor {
	return []Vendor{
		chatGPT{},
		generic{name: "grok", model: "grok", hints: []string{"grok"}},
		generic{name: "anthropic", model: "claude", hints: []string{"anthropic", "claude"}},
		generic{name: "perplexity", model: "perplexity", hints: []string{"perplexity"}},
	}
}

// Extract parses one saved page into a conversation candidate and
// reports which vendor claimed it. Files no vendor recognizes return
// ErrUnrecognizedFormat.
func Extract(f File, content []byte) (*record.ConversationExport, string, error) {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s: %v", record.ErrParse, f.RelPath, err)
	}
	for _, v := range Vendors() {
		if !v.Detect(f, content) {
			continue
		}
		export, err := v.Extract(f, doc, content)
		if err != nil {
			return nil, v.Name(), err
		}
		return export, v.Name(), nil
	}
	return nil, "", fmt.Errorf("%w: %s", record.ErrUnrecognizedFormat, f.RelPath)
}

// baseTitle falls back from the page <title> to the filename.
func baseTitle(f File, doc *html.Node) string {
	if t := pageTitle(doc); t != "" {
		return t
	}
	return strings.TrimSuffix(f.Name, ".html")
}

func hintMatches(f File, hints []string) bool {
	sub := strings.ToLower(f.Subfolder)
	name := strings.ToLower(f.Name)
	for _, h := range hints {
		if sub == h || strings.Contains(name, h) {
			return true
		}
	}
	return false
}
