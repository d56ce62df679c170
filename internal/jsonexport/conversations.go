// Package jsonexport parses the JSON files of a ChatGPT data export
// (conversations.json, message_feedback.json, model_comparisons.json,
// user.json) into normalized record candidates. Parsing is pure: no
// store access, no dedup decisions.
package jsonexport

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/chatvault/chatvault/internal/record"
)

// maxContentLen caps flattened message content.
const maxContentLen = 100000

type conversationDoc struct {
	ConversationID   string                 `json:"conversation_id"`
	Title            string                 `json:"title"`
	CreateTime       float64                `json:"create_time"`
	UpdateTime       float64                `json:"update_time"`
	CurrentNode      string                 `json:"current_node"`
	GizmoID          string                 `json:"gizmo_id"`
	GizmoType        string                 `json:"gizmo_type"`
	DefaultModelSlug string                 `json:"default_model_slug"`
	TemplateID       string                 `json:"conversation_template_id"`
	IsArchived       bool                   `json:"is_archived"`
	IsStarred        bool                   `json:"is_starred"`
	Origin           string                 `json:"conversation_origin"`
	Voice            string                 `json:"voice"`
	AsyncStatus      json.RawMessage        `json:"async_status"`
	WorkspaceID      string                 `json:"workspace_id"`
	Mapping          map[string]mappingNode `json:"mapping"`
}

type mappingNode struct {
	Parent   string          `json:"parent"`
	Children []string        `json:"children"`
	Message  json.RawMessage `json:"message"`
}

// ParseConversations parses a conversations.json payload. Entries
// without a conversation_id are dropped, matching the export format's
// occasional placeholder rows.
func ParseConversations(data []byte) ([]record.ConversationExport, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("%w: conversations.json: %v", record.ErrParse, err)
	}

	var out []record.ConversationExport
	for i, raw := range raws {
		var doc conversationDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("%w: conversations.json entry %d: %v", record.ErrParse, i, err)
		}
		if doc.ConversationID == "" {
			continue
		}

		conv := record.Conversation{
			ConversationID:   doc.ConversationID,
			Title:            doc.Title,
			CreateTime:       doc.CreateTime,
			UpdateTime:       doc.UpdateTime,
			CurrentNode:      doc.CurrentNode,
			GizmoID:          doc.GizmoID,
			GizmoType:        doc.GizmoType,
			DefaultModelSlug: doc.DefaultModelSlug,
			TemplateID:       doc.TemplateID,
			IsArchived:       doc.IsArchived,
			IsStarred:        doc.IsStarred,
			Origin:           doc.Origin,
			Voice:            doc.Voice,
			AsyncStatus:      rawString(doc.AsyncStatus),
			WorkspaceID:      doc.WorkspaceID,
			Source:           record.SourceJSONExport,
			RawData:          string(raw),
		}

		export := record.ConversationExport{Conversation: conv}
		for _, n := range walkMapping(doc.Mapping) {
			if m, ok := buildMessage(doc.ConversationID, n); ok {
				export.Messages = append(export.Messages, m)
			}
		}
		out = append(out, export)
	}
	return out, nil
}

type walkedNode struct {
	id     string
	parent string
	raw    json.RawMessage
}

// walkMapping flattens the mapping graph depth-first from its roots.
// A root is a node whose parent is missing, absent from the mapping,
// or itself. Nodes unreachable from any root are appended afterwards
// so cyclic or corrupt exports still yield every message exactly once.
func walkMapping(mapping map[string]mappingNode) []walkedNode {
	roots := make([]string, 0, 1)
	for id, node := range mapping {
		if node.Parent == "" || node.Parent == id {
			roots = append(roots, id)
			continue
		}
		if _, ok := mapping[node.Parent]; !ok {
			roots = append(roots, id)
		}
	}
	sort.Strings(roots)

	var out []walkedNode
	seen := make(map[string]bool, len(mapping))
	stack := roots
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[id] {
			continue
		}
		node, ok := mapping[id]
		if !ok {
			continue
		}
		seen[id] = true
		out = append(out, walkedNode{id: id, parent: node.Parent, raw: node.Message})

		// Push children reversed so the first child pops first.
		for i := len(node.Children) - 1; i >= 0; i-- {
			c := node.Children[i]
			if c != "" && c != id && !seen[c] {
				stack = append(stack, c)
			}
		}
	}

	if len(out) < len(mapping) {
		orphans := make([]string, 0, len(mapping)-len(out))
		for id := range mapping {
			if !seen[id] {
				orphans = append(orphans, id)
			}
		}
		sort.Strings(orphans)
		for _, id := range orphans {
			node := mapping[id]
			out = append(out, walkedNode{id: id, parent: node.Parent, raw: node.Message})
		}
	}
	return out
}

// buildMessage converts one mapping node's message object into a
// Message candidate. Nodes with no message object (the synthetic root,
// for instance) report ok=false.
func buildMessage(conversationID string, n walkedNode) (record.Message, bool) {
	if len(n.raw) == 0 {
		return record.Message{}, false
	}
	var fields map[string]any
	if err := json.Unmarshal(n.raw, &fields); err != nil || len(fields) == 0 {
		return record.Message{}, false
	}

	m := record.Message{
		ConversationID: conversationID,
		MessageID:      n.id,
		ParentID:       n.parent,
		Content:        flattenContent(fields["content"]),
		Recipient:      asString(fields["recipient"]),
		FinishReason:   asString(fields["finish_reason"]),
		CreateTime:     asFloat(fields["create_time"]),
		UpdateTime:     asFloat(fields["update_time"]),
		Status:         asString(fields["status"]),
		Weight:         asFloat(fields["weight"]),
		MessageType:    asString(fields["message_type"]),
		Source:         record.SourceJSONExport,
		RawData:        string(n.raw),
	}

	m.Role = asString(fields["role"])
	switch author := fields["author"].(type) {
	case map[string]any:
		m.Author = asString(author["role"])
		if m.Role == "" {
			m.Role = m.Author
		}
	case string:
		m.Author = author
	}

	m.Model = asString(fields["model"])
	m.ModelSlug = asString(fields["model_slug"])
	if meta, ok := fields["metadata"].(map[string]any); ok {
		if slug := asString(meta["model_slug"]); slug != "" {
			if m.Model == "" {
				m.Model = slug
			}
			if m.ModelSlug == "" {
				m.ModelSlug = slug
			}
		}
	}

	if usage, ok := fields["usage"]; ok {
		m.Tokens = marshalJSON(usage)
	} else if tokens, ok := fields["tokens"]; ok {
		switch tokens.(type) {
		case map[string]any, []any:
			m.Tokens = marshalJSON(tokens)
		default:
			m.Tokens = asString(tokens)
		}
	}

	m.Metadata, m.BrowserInfo, m.GeoData = splitMetadata(fields)
	return m, true
}

// flattenContent reduces the polymorphic content field to plain text.
// The export uses a bare string, a {parts: [...]} object, or a list.
func flattenContent(v any) string {
	var content string
	switch c := v.(type) {
	case string:
		content = c
	case map[string]any:
		parts, ok := c["parts"].([]any)
		if !ok {
			content = marshalJSON(c)
			break
		}
		content = joinParts(parts)
	case []any:
		content = joinParts(c)
	}
	if len(content) > maxContentLen {
		content = content[:maxContentLen]
	}
	return content
}

func joinParts(parts []any) string {
	var s string
	for _, p := range parts {
		if p == nil {
			continue
		}
		text, ok := p.(string)
		if !ok {
			text = marshalJSON(p)
		}
		if text == "" {
			continue
		}
		if s != "" {
			s += "\n"
		}
		s += text
	}
	return s
}

// splitMetadata gathers every field not already mapped to a column
// into the metadata blob, routing browser- and geo-flavored keys into
// their own blobs as well.
func splitMetadata(fields map[string]any) (metadata, browserInfo, geoData string) {
	skip := map[string]bool{
		"content": true, "id": true, "parent": true,
		"conversation_id": true, "message_id": true,
	}
	meta := make(map[string]any)
	browser := make(map[string]any)
	geo := make(map[string]any)
	for key, value := range fields {
		if skip[key] {
			continue
		}
		meta[key] = value
		switch value.(type) {
		case map[string]any, []any:
			if keyMatches(key, "browser", "user_agent", "client") {
				browser[key] = value
			}
			if keyMatches(key, "geo", "location", "lat", "lon", "ip") {
				geo[key] = value
			}
		}
	}
	if len(meta) > 0 {
		metadata = marshalJSON(meta)
	}
	if len(browser) > 0 {
		browserInfo = marshalJSON(browser)
	}
	if len(geo) > 0 {
		geoData = marshalJSON(geo)
	}
	return metadata, browserInfo, geoData
}
