package api

import "github.com/chatvault/chatvault/internal/record"

// The view types are the wire shapes. They exist so the record types
// stay free of transport concerns and raw source blobs stay out of
// list responses.

type conversationView struct {
	ConversationID string  `json:"conversation_id"`
	Title          string  `json:"title"`
	CreateTime     float64 `json:"create_time"`
	UpdateTime     float64 `json:"update_time"`
	CurrentNode    string  `json:"current_node,omitempty"`
	GizmoID        string  `json:"gizmo_id,omitempty"`
	DefaultModel   string  `json:"default_model_slug,omitempty"`
	IsArchived     bool    `json:"is_archived"`
	IsStarred      bool    `json:"is_starred"`
	IsHidden       bool    `json:"is_hidden"`
	ExportFolder   string  `json:"export_folder"`
	Source         string  `json:"source"`
}

func toConversationView(c record.Conversation) conversationView {
	return conversationView{
		ConversationID: c.ConversationID,
		Title:          c.Title,
		CreateTime:     c.CreateTime,
		UpdateTime:     c.UpdateTime,
		CurrentNode:    c.CurrentNode,
		GizmoID:        c.GizmoID,
		DefaultModel:   c.DefaultModelSlug,
		IsArchived:     c.IsArchived,
		IsStarred:      c.IsStarred,
		IsHidden:       c.IsHidden,
		ExportFolder:   c.ExportFolder,
		Source:         string(c.Source),
	}
}

type messageView struct {
	ConversationID string  `json:"conversation_id"`
	MessageID      string  `json:"message_id"`
	ParentID       string  `json:"parent_id,omitempty"`
	Role           string  `json:"role"`
	Author         string  `json:"author,omitempty"`
	Content        string  `json:"content"`
	Model          string  `json:"model,omitempty"`
	CreateTime     float64 `json:"create_time"`
	UpdateTime     float64 `json:"update_time,omitempty"`
	Status         string  `json:"status,omitempty"`
	IsHidden       bool    `json:"is_hidden"`
	Source         string  `json:"source"`
}

func toMessageView(m record.Message) messageView {
	return messageView{
		ConversationID: m.ConversationID,
		MessageID:      m.MessageID,
		ParentID:       m.ParentID,
		Role:           m.Role,
		Author:         m.Author,
		Content:        m.Content,
		Model:          m.Model,
		CreateTime:     m.CreateTime,
		UpdateTime:     m.UpdateTime,
		Status:         m.Status,
		IsHidden:       m.IsHidden,
		Source:         string(m.Source),
	}
}

type feedbackView struct {
	FeedbackID     string  `json:"feedback_id,omitempty"`
	ConversationID string  `json:"conversation_id"`
	MessageID      string  `json:"message_id"`
	UserID         string  `json:"user_id,omitempty"`
	Rating         string  `json:"rating"`
	CreateTime     float64 `json:"create_time"`
	Content        string  `json:"content,omitempty"`
}

func toFeedbackView(f record.Feedback) feedbackView {
	return feedbackView{
		FeedbackID:     f.FeedbackID,
		ConversationID: f.ConversationID,
		MessageID:      f.MessageID,
		UserID:         f.UserID,
		Rating:         f.Rating,
		CreateTime:     f.CreateTime,
		Content:        f.Content,
	}
}

type comparisonView struct {
	ConversationID string `json:"conversation_id"`
	PayloadHash    string `json:"payload_hash"`
	ComparisonData string `json:"comparison_data"`
}

func toComparisonView(c record.ModelComparison) comparisonView {
	return comparisonView{
		ConversationID: c.ConversationID,
		PayloadHash:    c.PayloadHash,
		ComparisonData: c.ComparisonData,
	}
}

type ttlAuthView struct {
	UserID           string `json:"user_id"`
	ExportFolder     string `json:"export_folder"`
	Email            string `json:"email,omitempty"`
	GivenName        string `json:"given_name,omitempty"`
	FamilyName       string `json:"family_name,omitempty"`
	SubscriptionType string `json:"subscription_type,omitempty"`
}

func toTTLAuthView(a record.TTLAuth) ttlAuthView {
	return ttlAuthView{
		UserID:           a.UserID,
		ExportFolder:     a.ExportFolder,
		Email:            a.Email,
		GivenName:        a.GivenName,
		FamilyName:       a.FamilyName,
		SubscriptionType: a.SubscriptionType,
	}
}

type ttlSessionView struct {
	UserID         string  `json:"user_id"`
	SessionID      string  `json:"session_id"`
	CreateTime     float64 `json:"create_time"`
	ExpirationTime float64 `json:"expiration_time,omitempty"`
	LastAuthTime   float64 `json:"last_auth_time,omitempty"`
	Status         string  `json:"status,omitempty"`
	IPAddress      string  `json:"ip_address,omitempty"`
	City           string  `json:"city,omitempty"`
	Country        string  `json:"country,omitempty"`
	Region         string  `json:"region,omitempty"`
	Latitude       float64 `json:"latitude,omitempty"`
	Longitude      float64 `json:"longitude,omitempty"`
	Timezone       string  `json:"timezone,omitempty"`
	UserAgent      string  `json:"user_agent,omitempty"`
}

func toTTLSessionView(s record.TTLSession) ttlSessionView {
	return ttlSessionView{
		UserID:         s.UserID,
		SessionID:      s.SessionID,
		CreateTime:     s.CreateTime,
		ExpirationTime: s.ExpirationTime,
		LastAuthTime:   s.LastAuthTime,
		Status:         s.Status,
		IPAddress:      s.IPAddress,
		City:           s.City,
		Country:        s.Country,
		Region:         s.Region,
		Latitude:       s.Latitude,
		Longitude:      s.Longitude,
		Timezone:       s.Timezone,
		UserAgent:      s.UserAgent,
	}
}
