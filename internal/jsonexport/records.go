package jsonexport

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/chatvault/chatvault/internal/record"
)

type feedbackDoc struct {
	ID                  string          `json:"id"`
	ConversationID      string          `json:"conversation_id"`
	MessageID           string          `json:"message_id"`
	UserID              string          `json:"user_id"`
	Rating              string          `json:"rating"`
	CreateTime          string          `json:"create_time"`
	Content             json.RawMessage `json:"content"`
	EvaluationName      string          `json:"evaluation_name"`
	EvaluationTreatment string          `json:"evaluation_treatment"`
	WorkspaceID         string          `json:"workspace_id"`
}

// ParseFeedback parses a message_feedback.json payload. Records
// without a vendor id are kept; the resolver falls back to the
// (message, rating, content) key for those.
func ParseFeedback(data []byte) ([]record.Feedback, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("%w: message_feedback.json: %v", record.ErrParse, err)
	}

	var out []record.Feedback
	for i, raw := range raws {
		var doc feedbackDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("%w: message_feedback.json entry %d: %v", record.ErrParse, i, err)
		}
		out = append(out, record.Feedback{
			FeedbackID:          doc.ID,
			ConversationID:      doc.ConversationID,
			MessageID:           doc.MessageID,
			UserID:              doc.UserID,
			Rating:              doc.Rating,
			CreateTime:          parseISOTime(doc.CreateTime),
			Content:             rawString(doc.Content),
			EvaluationName:      doc.EvaluationName,
			EvaluationTreatment: doc.EvaluationTreatment,
			WorkspaceID:         doc.WorkspaceID,
			RawData:             string(raw),
		})
	}
	return out, nil
}

// ParseComparisons parses a model_comparisons.json payload, which is
// either an object keyed by conversation id or a flat list. The
// payload hash keys dedup since the format carries no record id.
func ParseComparisons(data []byte) ([]record.ModelComparison, error) {
	var byConv map[string]json.RawMessage
	if err := json.Unmarshal(data, &byConv); err == nil {
		ids := make([]string, 0, len(byConv))
		for id := range byConv {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		var out []record.ModelComparison
		for _, id := range ids {
			payload := string(byConv[id])
			out = append(out, record.ModelComparison{
				ConversationID: id,
				PayloadHash:    hashPayload(payload),
				ComparisonData: payload,
				RawData:        payload,
			})
		}
		return out, nil
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("%w: model_comparisons.json: %v", record.ErrParse, err)
	}
	var out []record.ModelComparison
	for _, raw := range raws {
		var doc struct {
			ConversationID string `json:"conversation_id"`
		}
		if err := json.Unmarshal(raw, &doc); err != nil || doc.ConversationID == "" {
			continue
		}
		payload := string(raw)
		out = append(out, record.ModelComparison{
			ConversationID: doc.ConversationID,
			PayloadHash:    hashPayload(payload),
			ComparisonData: payload,
			RawData:        payload,
		})
	}
	return out, nil
}

// ParseUser parses a user.json payload.
func ParseUser(data []byte) (*record.User, error) {
	var doc struct {
		Email       string `json:"email"`
		PlusUser    bool   `json:"chatgpt_plus_user"`
		PhoneNumber string `json:"phone_number"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: user.json: %v", record.ErrParse, err)
	}
	return &record.User{
		Email:       doc.Email,
		PlusUser:    doc.PlusUser,
		PhoneNumber: doc.PhoneNumber,
		RawData:     string(data),
	}, nil
}

func hashPayload(payload string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(payload)))
}

// parseISOTime converts an RFC 3339 timestamp to epoch seconds,
// returning 0 when the value is absent or malformed.
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
