package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"lantern.fyi/grantmatch/internal/db"
)

func TestNewServerDefaults(t *testing.T) {
	t.Parallel()

	server := NewServer(nil, nil, nil, zerolog.Nop(), Options{})
	if server == nil {
		t.Fatalf("expected server")
	}
	if server.opts.Host != "0.0.0.0" {
		t.Fatalf("unexpected default host: %q", server.opts.Host)
	}
	if server.opts.Port != 8090 {
		t.Fatalf("unexpected default port: %d", server.opts.Port)
	}
	if server.opts.SessionCookie != "gm_session" {
		t.Fatalf("unexpected default session cookie: %q", server.opts.SessionCookie)
	}
	if server.opts.SessionTTL != 7*24*time.Hour {
		t.Fatalf("unexpected default session ttl: %s", server.opts.SessionTTL)
	}
}

func TestIsUUID(t *testing.T) {
	t.Parallel()

	if !isUUID("6ba7b810-9dad-11d1-80b4-00c04fd430c8") {
		t.Fatalf("expected canonical uuid to be accepted")
	}
	if isUUID("6ba7b810-9dad-11d1-80b4-00c04fd430c") {
		t.Fatalf("expected short value to be rejected")
	}
	if isUUID("6ba7b810x9dad-11d1-80b4-00c04fd430c8") {
		t.Fatalf("expected misplaced separator to be rejected")
	}
	if isUUID("6ba7b810-9dad-11d1-80b4-00c04fd430zz") {
		t.Fatalf("expected non-hex characters to be rejected")
	}
}

func TestParsePositiveInt(t *testing.T) {
	t.Parallel()

	got, err := parsePositiveInt("", 25, 1, 200)
	if err != nil || got != 25 {
		t.Fatalf("blank input should use the default, got %d err %v", got, err)
	}
	got, err = parsePositiveInt(" 50 ", 25, 1, 200)
	if err != nil || got != 50 {
		t.Fatalf("trimmed integer should parse, got %d err %v", got, err)
	}
	if _, err := parsePositiveInt("abc", 25, 1, 200); err == nil {
		t.Fatalf("non-integer input should fail")
	}
	if _, err := parsePositiveInt("500", 25, 1, 200); err == nil {
		t.Fatalf("out-of-range input should fail")
	}
}

func TestDecodeJSONBodyRejectsTrailingContent(t *testing.T) {
	t.Parallel()

	e := echo.New()
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"email":"a@b.c"}{"extra":true}`))
	c := e.NewContext(req, httptest.NewRecorder())

	var target loginRequest
	if err := decodeJSONBody(c, &target); err == nil {
		t.Fatalf("trailing JSON content must be rejected")
	}
}

func TestDecodeJSONBodyDecodesSingleDocument(t *testing.T) {
	t.Parallel()

	e := echo.New()
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"email":"a@b.c","password":"secret"}`))
	c := e.NewContext(req, httptest.NewRecorder())

	var target loginRequest
	if err := decodeJSONBody(c, &target); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if target.Email != "a@b.c" || target.Password != "secret" {
		t.Fatalf("unexpected decoded body: %+v", target)
	}
}

func TestBuildOpportunityResponseDecodesArrays(t *testing.T) {
	t.Parallel()

	number := "OPP-42"
	record := &db.Opportunity{
		OpportunityUUID:   "6ba7b810-9dad-11d1-80b4-00c04fd430c8",
		Source:            "grants.gov",
		SourceID:          "42",
		OpportunityNumber: &number,
		Title:             "Rural Broadband Pilot",
		Status:            "active",
		FocusAreas:        db.EncodeStringSlice([]string{"technology", "social"}),
		Embedding:         []byte(`[0.1,0.2]`),
	}

	resp := buildOpportunityResponse(record)
	if resp.Title != "Rural Broadband Pilot" {
		t.Fatalf("unexpected title: %q", resp.Title)
	}
	if len(resp.FocusAreas) != 2 || resp.FocusAreas[0] != "technology" {
		t.Fatalf("unexpected focus areas: %v", resp.FocusAreas)
	}
	if !resp.HasEmbedding {
		t.Fatalf("embedding presence flag must be set")
	}
}

func feedbackContext(t *testing.T, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/matches/feedback", strings.NewReader(body))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("auth.principal", authPrincipal{ProfileID: 1})
	return c, rec
}

func TestHandleMatchFeedbackRejectsUnknownType(t *testing.T) {
	t.Parallel()

	server := NewServer(nil, nil, nil, zerolog.Nop(), Options{})
	c, rec := feedbackContext(t,
		`{"opportunity_uuid":"6ba7b810-9dad-11d1-80b4-00c04fd430c8","feedback_type":"liked"}`)

	if err := server.handleMatchFeedback(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown feedback type must be rejected, got status %d", rec.Code)
	}
}

func TestHandleMatchFeedbackRejectsBadUUID(t *testing.T) {
	t.Parallel()

	server := NewServer(nil, nil, nil, zerolog.Nop(), Options{})
	c, rec := feedbackContext(t,
		`{"opportunity_uuid":"not-a-uuid","feedback_type":"dismissed"}`)

	if err := server.handleMatchFeedback(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("a malformed opportunity uuid must be rejected, got status %d", rec.Code)
	}
}

func TestHandleMatchFeedbackRequiresAuth(t *testing.T) {
	t.Parallel()

	server := NewServer(nil, nil, nil, zerolog.Nop(), Options{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/matches/feedback",
		strings.NewReader(`{"opportunity_uuid":"6ba7b810-9dad-11d1-80b4-00c04fd430c8","feedback_type":"saved"}`))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := server.handleMatchFeedback(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing principal must be unauthorized, got status %d", rec.Code)
	}
}

func TestOptionalTrimmed(t *testing.T) {
	t.Parallel()

	if got := optionalTrimmed("   "); got != nil {
		t.Fatalf("whitespace must map to nil, got %q", *got)
	}
	got := optionalTrimmed("  Nonprofit  ")
	if got == nil || *got != "Nonprofit" {
		t.Fatalf("unexpected trimmed value: %v", got)
	}
}
