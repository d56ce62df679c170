// Package ttl parses the auth and billing dumps found in "<name> - ttl"
// folders next to conversation exports. The interesting payload is the
// session list inside prod-mc-auth.json, which carries per-login
// Cloudflare geolocation metadata.
package ttl

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/chatvault/chatvault/internal/record"
)

const (
	authFileName    = "prod-mc-auth.json"
	billingFileName = "prod-mc-billing.json"
)

// Dump is one export_data bundle inside a TTL folder.
type Dump struct {
	AuthPath    string
	BillingPath string
}

// ScanFolder locates the dumps under folder/30d/export_data/<uuid>/.
// A folder without that layout yields no dumps and no error.
func ScanFolder(folder string) ([]Dump, error) {
	base := filepath.Join(folder, "30d", "export_data")
	entries, err := os.ReadDir(base)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan ttl folder: %w", err)
	}

	var dumps []Dump
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(base, e.Name())
		var d Dump
		if _, err := os.Stat(filepath.Join(dir, authFileName)); err == nil {
			d.AuthPath = filepath.Join(dir, authFileName)
		}
		if _, err := os.Stat(filepath.Join(dir, billingFileName)); err == nil {
			d.BillingPath = filepath.Join(dir, billingFileName)
		}
		if d.AuthPath != "" || d.BillingPath != "" {
			dumps = append(dumps, d)
		}
	}
	sort.Slice(dumps, func(i, j int) bool { return dumps[i].AuthPath < dumps[j].AuthPath })
	return dumps, nil
}

type authDoc struct {
	User struct {
		UserID           string `json:"userId"`
		Email            string `json:"email"`
		GivenName        string `json:"givenName"`
		FamilyName       string `json:"familyName"`
		ProfileImage     string `json:"profileImage"`
		SubscriptionType string `json:"xSubscriptionType"`
	} `json:"user"`
	Sessions    []json.RawMessage `json:"sessions"`
	APIKeys     json.RawMessage   `json:"api_keys"`
	Invitations json.RawMessage   `json:"invitations"`
	Teams       json.RawMessage   `json:"teams"`
	TeamRoles   json.RawMessage   `json:"team_roles"`
}

// ParseAuth parses a prod-mc-auth.json payload into the account record
// and its sessions. A payload without a user id is skipped: both
// returns are nil.
func ParseAuth(data []byte) (*record.TTLAuth, []record.TTLSession, error) {
	var doc authDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", record.ErrParse, authFileName, err)
	}
	if doc.User.UserID == "" {
		return nil, nil, nil
	}

	auth := &record.TTLAuth{
		UserID:           doc.User.UserID,
		Email:            doc.User.Email,
		GivenName:        doc.User.GivenName,
		FamilyName:       doc.User.FamilyName,
		ProfileImage:     doc.User.ProfileImage,
		SubscriptionType: doc.User.SubscriptionType,
		Sessions:         rawOr(doc.Sessions, "[]"),
		APIKeys:          rawJSON(doc.APIKeys, "[]"),
		Invitations:      rawJSON(doc.Invitations, "[]"),
		Teams:            rawJSON(doc.Teams, "[]"),
		TeamRoles:        rawJSON(doc.TeamRoles, "{}"),
		RawData:          string(data),
	}

	var sessions []record.TTLSession
	for _, raw := range doc.Sessions {
		if s, ok := parseSession(doc.User.UserID, raw); ok {
			sessions = append(sessions, s)
		}
	}
	return auth, sessions, nil
}

type sessionDoc struct {
	SessionID      string          `json:"sessionId"`
	CreateTime     json.RawMessage `json:"createTime"`
	ExpirationTime json.RawMessage `json:"expirationTime"`
	LastAuthTime   json.RawMessage `json:"lastAuthTime"`
	Status         string          `json:"status"`
	UserAgent      string          `json:"userAgent"`
	CFMetadata     struct {
		IPAddress  string          `json:"ipAddress"`
		City       string          `json:"city"`
		Country    string          `json:"country"`
		Region     string          `json:"region"`
		RegionCode string          `json:"regionCode"`
		PostalCode string          `json:"postalCode"`
		Latitude   json.RawMessage `json:"latitude"`
		Longitude  json.RawMessage `json:"longitude"`
		Timezone   string          `json:"timezone"`
		Metro      string          `json:"metro"`
		Continent  string          `json:"continent"`
	} `json:"cfMetadata"`
}

func parseSession(userID string, raw json.RawMessage) (record.TTLSession, bool) {
	var doc sessionDoc
	if err := json.Unmarshal(raw, &doc); err != nil || doc.SessionID == "" {
		return record.TTLSession{}, false
	}
	return record.TTLSession{
		UserID:         userID,
		SessionID:      doc.SessionID,
		CreateTime:     epochSeconds(doc.CreateTime),
		ExpirationTime: epochSeconds(doc.ExpirationTime),
		LastAuthTime:   epochSeconds(doc.LastAuthTime),
		Status:         doc.Status,
		IPAddress:      doc.CFMetadata.IPAddress,
		City:           doc.CFMetadata.City,
		Country:        doc.CFMetadata.Country,
		Region:         doc.CFMetadata.Region,
		RegionCode:     doc.CFMetadata.RegionCode,
		PostalCode:     doc.CFMetadata.PostalCode,
		Latitude:       looseFloat(doc.CFMetadata.Latitude),
		Longitude:      looseFloat(doc.CFMetadata.Longitude),
		Timezone:       doc.CFMetadata.Timezone,
		Metro:          doc.CFMetadata.Metro,
		Continent:      doc.CFMetadata.Continent,
		UserAgent:      doc.UserAgent,
		RawData:        string(raw),
	}, true
}

// ParseBilling parses a prod-mc-billing.json payload. The user id may
// appear under either key; without one the dump is skipped.
func ParseBilling(data []byte) (*record.TTLBilling, error) {
	var doc struct {
		UserID    string `json:"userId"`
		AltUserID string `json:"user_id"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", record.ErrParse, billingFileName, err)
	}
	userID := doc.UserID
	if userID == "" {
		userID = doc.AltUserID
	}
	if userID == "" {
		return nil, nil
	}
	return &record.TTLBilling{
		UserID:      userID,
		BillingData: string(data),
		RawData:     string(data),
	}, nil
}

// epochSeconds normalizes a timestamp that may be an RFC 3339 string,
// epoch seconds, or epoch milliseconds.
func epochSeconds(raw json.RawMessage) float64 {
	if len(raw) == 0 || string(raw) == "null" {
		return 0
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return 0
		}
		return float64(t.UnixNano()) / float64(time.Second)
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0
	}
	if n > 1e12 {
		return n / 1000
	}
	return n
}

// looseFloat accepts both number and quoted-number encodings.
func looseFloat(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return n
}

func rawJSON(raw json.RawMessage, fallback string) string {
	if len(raw) == 0 || string(raw) == "null" {
		return fallback
	}
	return string(raw)
}

func rawOr(sessions []json.RawMessage, fallback string) string {
	if sessions == nil {
		return fallback
	}
	b, err := json.Marshal(sessions)
	if err != nil {
		return fallback
	}
	return string(b)
}
