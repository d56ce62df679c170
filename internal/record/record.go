// Package record defines the normalized entities shared by the parsers,
// the resolver, and the store. Parsers emit candidates of these types;
// the resolver decides whether each candidate becomes a row.
package record

// Source tags where a record came from. JSON exports are authoritative;
// HTML scrapes fill gaps for conversations that were never exported.
type Source string

const (
	SourceJSONExport Source = "json_export"
	SourceHTMLExport Source = "html_export"
)

// EventType enumerates the timeline event kinds.
type EventType string

const (
	EventConversationCreated EventType = "conversation_created"
	EventMessageSent         EventType = "message_sent"
	EventFeedbackGiven       EventType = "feedback_given"
)

// Conversation is one chat session keyed by its vendor-assigned id.
// Timestamps are Unix epoch seconds; zero means unknown.
type Conversation struct {
	ConversationID string
	Title          string
	CreateTime     float64
	UpdateTime     float64
	CurrentNode    string

	GizmoID          string
	GizmoType        string
	DefaultModelSlug string
	TemplateID       string

	IsArchived bool
	IsStarred  bool
	Origin     string
	Voice      string
	AsyncStatus string
	WorkspaceID string

	// IsHidden is user-set through the API and never touched by imports.
	IsHidden bool

	ExportFolder string
	Source       Source
	RawData      string // original source object, verbatim JSON
}

// Message is one turn within a conversation. MessageID is a
// vendor-generated UUID, unique globally in practice.
type Message struct {
	ConversationID string
	MessageID      string
	ParentID       string

	Role      string
	Author    string
	Content   string
	Recipient string

	Model        string
	ModelSlug    string
	FinishReason string

	CreateTime float64
	UpdateTime float64

	Status      string
	Weight      float64
	MessageType string

	Tokens      string // usage object or count, JSON
	Metadata    string // JSON
	BrowserInfo string // JSON
	GeoData     string // JSON

	Source   Source
	IsHidden bool
	RawData  string
}

// Feedback is one rating event attached to a message.
type Feedback struct {
	FeedbackID     string // vendor id when present
	ConversationID string
	MessageID      string
	UserID         string
	Rating         string // thumbs_up / thumbs_down
	CreateTime     float64
	Content        string // JSON
	EvaluationName      string
	EvaluationTreatment string
	WorkspaceID         string
	RawData             string
}

// ModelComparison is a side-by-side model response record. PayloadHash
// is the dedup key since the source data carries no stable id.
type ModelComparison struct {
	ConversationID string
	PayloadHash    string
	ComparisonData string // JSON
	RawData        string
}

// User is the account info from user.json, one row per export folder.
type User struct {
	Email        string
	PlusUser     bool
	PhoneNumber  string
	ExportFolder string
	RawData      string
}

// TTLAuth is one auth.json record from a TTL dump.
type TTLAuth struct {
	UserID           string
	ExportFolder     string
	Email            string
	GivenName        string
	FamilyName       string
	ProfileImage     string
	SubscriptionType string
	Sessions         string // JSON array
	APIKeys          string // JSON array
	Invitations      string // JSON array
	Teams            string // JSON array
	TeamRoles        string // JSON object
	RawData          string
}

// TTLBilling is one billing.json record from a TTL dump.
type TTLBilling struct {
	UserID       string
	ExportFolder string
	BillingData  string
	RawData      string
}

// TTLSession is one authentication session with geolocation and
// network metadata. Timestamps are normalized to epoch seconds
// whether the source carried ISO-8601 strings or epoch millis.
type TTLSession struct {
	UserID    string
	SessionID string

	CreateTime     float64
	ExpirationTime float64
	LastAuthTime   float64

	Status string

	IPAddress  string
	City       string
	Country    string
	Region     string
	RegionCode string
	PostalCode string
	Latitude   float64
	Longitude  float64
	Timezone   string
	Metro      string
	Continent  string

	UserAgent string
	RawData   string
}

// TimelineEvent is a read-time projection, never persisted.
type TimelineEvent struct {
	Timestamp      float64        `json:"timestamp"`
	EventType      EventType      `json:"event_type"`
	ConversationID string         `json:"conversation_id"`
	MessageID      string         `json:"message_id,omitempty"`
	TitlePreview   string         `json:"title_preview,omitempty"`
	ContentPreview string         `json:"content_preview,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// ConversationExport bundles a conversation candidate with its message
// candidates, as produced by one parser invocation.
type ConversationExport struct {
	Conversation Conversation
	Messages     []Message
}
