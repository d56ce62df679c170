package ttl

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/chatvault/chatvault/internal/record"
)

const sampleAuth = `{
	"user": {
		"userId": "user-abc",
		"email": "a@b.c",
		"givenName": "Ada",
		"familyName": "Lovelace",
		"xSubscriptionType": "plus"
	},
	"sessions": [
		{
			"sessionId": "sess-1",
			"createTime": "2024-03-01T10:00:00Z",
			"expirationTime": 1712345678901,
			"lastAuthTime": 1709287200,
			"status": "active",
			"userAgent": "Mozilla/5.0",
			"cfMetadata": {
				"ipAddress": "203.0.113.9",
				"city": "Lisbon",
				"country": "PT",
				"latitude": "38.7223",
				"longitude": -9.1393,
				"timezone": "Europe/Lisbon"
			}
		},
		{"status": "no session id, dropped"}
	],
	"api_keys": [{"id": "k1"}]
}`

func TestParseAuth(t *testing.T) {
	auth, sessions, err := ParseAuth([]byte(sampleAuth))
	if err != nil {
		t.Fatalf("ParseAuth: %v", err)
	}
	if auth.UserID != "user-abc" || auth.Email != "a@b.c" {
		t.Errorf("auth = %+v", auth)
	}
	if auth.SubscriptionType != "plus" {
		t.Errorf("subscription_type = %q", auth.SubscriptionType)
	}
	if auth.APIKeys != `[{"id": "k1"}]` {
		t.Errorf("api_keys = %q", auth.APIKeys)
	}
	if auth.Teams != "[]" || auth.TeamRoles != "{}" {
		t.Errorf("defaults: teams = %q, team_roles = %q", auth.Teams, auth.TeamRoles)
	}

	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}
	s := sessions[0]
	if s.SessionID != "sess-1" || s.UserID != "user-abc" {
		t.Errorf("session = %+v", s)
	}
	// ISO string, epoch millis, and epoch seconds all normalize to seconds.
	if s.CreateTime != 1709287200 {
		t.Errorf("create_time = %v, want 1709287200", s.CreateTime)
	}
	if math.Abs(s.ExpirationTime-1712345678.901) > 1e-6 {
		t.Errorf("expiration_time = %v", s.ExpirationTime)
	}
	if s.LastAuthTime != 1709287200 {
		t.Errorf("last_auth_time = %v", s.LastAuthTime)
	}
	if s.City != "Lisbon" || s.Country != "PT" {
		t.Errorf("geo = %q %q", s.City, s.Country)
	}
	if s.Latitude != 38.7223 || s.Longitude != -9.1393 {
		t.Errorf("lat/lon = %v/%v", s.Latitude, s.Longitude)
	}
}

func TestParseAuth_NoUserID(t *testing.T) {
	auth, sessions, err := ParseAuth([]byte(`{"user": {}}`))
	if err != nil {
		t.Fatalf("ParseAuth: %v", err)
	}
	if auth != nil || sessions != nil {
		t.Fatalf("expected skip, got %+v / %+v", auth, sessions)
	}
}

func TestParseAuth_Malformed(t *testing.T) {
	_, _, err := ParseAuth([]byte(`[1,2,3]`))
	if !errors.Is(err, record.ErrParse) {
		t.Fatalf("err = %v, want ErrParse", err)
	}
}

func TestParseBilling(t *testing.T) {
	b, err := ParseBilling([]byte(`{"user_id": "user-abc", "plan": "plus"}`))
	if err != nil {
		t.Fatalf("ParseBilling: %v", err)
	}
	if b.UserID != "user-abc" {
		t.Errorf("user_id = %q", b.UserID)
	}
	if b.BillingData == "" || b.RawData == "" {
		t.Error("payload not preserved")
	}
}

func TestParseBilling_NoUserID(t *testing.T) {
	b, err := ParseBilling([]byte(`{"plan": "free"}`))
	if err != nil {
		t.Fatalf("ParseBilling: %v", err)
	}
	if b != nil {
		t.Fatalf("expected skip, got %+v", b)
	}
}

func TestScanFolder(t *testing.T) {
	dir := t.TempDir()
	bundle := filepath.Join(dir, "30d", "export_data", "0000-1111")
	if err := os.MkdirAll(bundle, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(bundle, "prod-mc-auth.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(bundle, "prod-mc-billing.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	dumps, err := ScanFolder(dir)
	if err != nil {
		t.Fatalf("ScanFolder: %v", err)
	}
	if len(dumps) != 1 {
		t.Fatalf("got %d dumps, want 1", len(dumps))
	}
	if dumps[0].AuthPath == "" || dumps[0].BillingPath == "" {
		t.Errorf("dump = %+v", dumps[0])
	}
}

func TestScanFolder_NoLayout(t *testing.T) {
	dumps, err := ScanFolder(t.TempDir())
	if err != nil || dumps != nil {
		t.Fatalf("ScanFolder = %v, %v; want nil, nil", dumps, err)
	}
}
