package adapthttp_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	adapthttp "medreminder/internal/adapter/http"
	"medreminder/internal/adapter/memory"
	"medreminder/internal/app"

	"github.com/rs/zerolog"
)

// ---------------------------------------------------------------------------
// Test-server helpers
// ---------------------------------------------------------------------------

// fixedNow makes "today" 2025-12-09.
var fixedNow = time.Date(2025, 12, 9, 10, 0, 0, 0, time.UTC)

func newServer(t *testing.T, withAuth bool, tweak func(*adapthttp.Options)) *httptest.Server {
	t.Helper()

	db := memory.New()
	meds := app.NewMedicationService(db)
	reports := app.NewReportService(db)
	authSvc := app.NewAuthService(db, db.NewSessionRepo())

	webDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(webDir, "index.html"), []byte("<html></html>"), 0o600); err != nil {
		t.Fatal(err)
	}

	opts := adapthttp.Options{
		WebDir:   webDir,
		Logger:   zerolog.Nop(),
		Location: time.UTC,
		Now:      func() time.Time { return fixedNow },
	}
	if tweak != nil {
		tweak(&opts)
	}

	srv := adapthttp.New(meds, reports, authSvc, opts)
	if !withAuth {
		srv = srv.WithoutAuth()
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func newTestServer(t *testing.T) *httptest.Server {
	return newServer(t, false, nil)
}

func doJSON(t *testing.T, method, url string, payload any, cookies ...*http.Cookie) *http.Response {
	t.Helper()
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			t.Fatal(err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return m
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected %d, got %d: %s", want, resp.StatusCode, b)
	}
}

func createMedication(t *testing.T, ts *httptest.Server, start, end, times string) int {
	t.Helper()
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/medications", map[string]any{
		"name": "Dolo 650", "dosage": "1 tablet", "times": times,
		"startDate": start, "endDate": end,
	})
	expectStatus(t, resp, http.StatusCreated)
	return int(decodeBody(t, resp)["id"].(float64))
}

func medURL(ts *httptest.Server, id int, suffix string) string {
	return ts.URL + "/api/medications/" + strconv.Itoa(id) + suffix
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/health", nil)
	expectStatus(t, resp, http.StatusOK)

	body := decodeBody(t, resp)
	if body["ok"] != true {
		t.Fatalf("expected ok=true, got %v", body["ok"])
	}
	if resp.Header.Get("Cache-Control") != "no-store" {
		t.Errorf("expected no-store, got %q", resp.Header.Get("Cache-Control"))
	}
}

func TestMedicationLifecycle(t *testing.T) {
	ts := newTestServer(t)
	id := createMedication(t, ts, "2025-12-01", "2025-12-05", "20:00, 08:00")

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/medications", nil)
	expectStatus(t, resp, http.StatusOK)
	list := decodeBody(t, resp)["medications"].([]any)
	if len(list) != 1 {
		t.Fatalf("expected 1 medication, got %d", len(list))
	}
	if got := list[0].(map[string]any)["times"]; got != "20:00,08:00" {
		t.Errorf("expected times in entered order, got %v", got)
	}

	resp = doJSON(t, http.MethodPost, medURL(ts, id, "/record"), map[string]any{"taken": true, "day": "2025-12-04"})
	expectStatus(t, resp, http.StatusOK)
	if got := decodeBody(t, resp)["written"]; got != float64(2) {
		t.Fatalf("expected 2 entries written, got %v", got)
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/reports/weekly?end=2025-12-09", nil)
	expectStatus(t, resp, http.StatusOK)
	report := decodeBody(t, resp)
	want := map[string]any{
		"from": "2025-12-03", "to": "2025-12-09",
		"totalDoses": float64(6), "takenDoses": float64(2),
		"missedDoses": float64(4), "adherencePercent": float64(33),
	}
	for k, v := range want {
		if report[k] != v {
			t.Errorf("%s: expected %v, got %v", k, v, report[k])
		}
	}

	resp = doJSON(t, http.MethodDelete, medURL(ts, id, ""), nil)
	expectStatus(t, resp, http.StatusNoContent)

	resp = doJSON(t, http.MethodGet, medURL(ts, id, ""), nil)
	expectStatus(t, resp, http.StatusNotFound)
	if decodeBody(t, resp)["error"] == nil {
		t.Error("expected error body")
	}
}

func TestCreateMedicationValidation(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
	}{
		{"start after end", map[string]any{"name": "x", "times": "08:00", "startDate": "2025-12-06", "endDate": "2025-12-05"}},
		{"empty times", map[string]any{"name": "x", "times": " , ", "startDate": "2025-12-01", "endDate": "2025-12-05"}},
		{"bad time", map[string]any{"name": "x", "times": "25:00", "startDate": "2025-12-01", "endDate": "2025-12-05"}},
		{"missing name", map[string]any{"times": "08:00", "startDate": "2025-12-01", "endDate": "2025-12-05"}},
		{"unknown field", map[string]any{"name": "x", "times": "08:00", "startDate": "2025-12-01", "endDate": "2025-12-05", "color": "red"}},
	}

	ts := newTestServer(t)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := doJSON(t, http.MethodPost, ts.URL+"/api/medications", tc.payload)
			expectStatus(t, resp, http.StatusBadRequest)
		})
	}
}

func TestGetMedication_BadID(t *testing.T) {
	ts := newTestServer(t)

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/medications/abc", nil)
	expectStatus(t, resp, http.StatusBadRequest)

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/medications/999", nil)
	expectStatus(t, resp, http.StatusNotFound)
}

func TestRecordDefaultsToToday(t *testing.T) {
	ts := newTestServer(t)
	id := createMedication(t, ts, "2025-12-08", "2025-12-12", "09:00")

	resp := doJSON(t, http.MethodPost, medURL(ts, id, "/record"), map[string]any{"taken": true})
	expectStatus(t, resp, http.StatusOK)
	body := decodeBody(t, resp)
	if body["day"] != "2025-12-09" || body["written"] != float64(1) {
		t.Fatalf("expected one dose on 2025-12-09, got %v", body)
	}

	resp = doJSON(t, http.MethodPost, medURL(ts, id, "/record"), map[string]any{"day": "2025-12-09"})
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestRecordOutsideSchedule(t *testing.T) {
	ts := newTestServer(t)
	id := createMedication(t, ts, "2025-12-01", "2025-12-05", "08:00")

	resp := doJSON(t, http.MethodPost, medURL(ts, id, "/record"), map[string]any{"taken": true, "day": "2025-12-09"})
	expectStatus(t, resp, http.StatusOK)
	body := decodeBody(t, resp)
	if body["written"] != float64(0) {
		t.Fatalf("expected nothing written, got %v", body["written"])
	}
}

func TestRecordDose(t *testing.T) {
	tests := []struct {
		name       string
		payload    map[string]any
		wantStatus int
	}{
		{"scheduled", map[string]any{"dateTime": "2025-12-02T20:00", "taken": false}, http.StatusOK},
		{"not scheduled", map[string]any{"dateTime": "2025-12-09T08:00", "taken": true}, http.StatusBadRequest},
		{"wrong time", map[string]any{"dateTime": "2025-12-02T09:00", "taken": true}, http.StatusBadRequest},
		{"malformed", map[string]any{"dateTime": "garbage", "taken": true}, http.StatusBadRequest},
		{"missing taken", map[string]any{"dateTime": "2025-12-02T20:00"}, http.StatusBadRequest},
	}

	ts := newTestServer(t)
	id := createMedication(t, ts, "2025-12-01", "2025-12-05", "08:00,20:00")

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := doJSON(t, http.MethodPost, medURL(ts, id, "/doses"), tc.payload)
			expectStatus(t, resp, tc.wantStatus)
		})
	}

	resp := doJSON(t, http.MethodGet, medURL(ts, id, ""), nil)
	expectStatus(t, resp, http.StatusOK)
	records := decodeBody(t, resp)["takenRecords"].(map[string]any)
	if len(records) != 1 || records["2025-12-02T20:00"] != false {
		t.Fatalf("expected a single missed dose, got %v", records)
	}
}

func TestListDoses(t *testing.T) {
	ts := newTestServer(t)
	id := createMedication(t, ts, "2025-12-01", "2025-12-05", "08:00,20:00")
	doJSON(t, http.MethodPost, medURL(ts, id, "/doses"), map[string]any{"dateTime": "2025-12-05T08:00", "taken": true})

	resp := doJSON(t, http.MethodGet, medURL(ts, id, "/doses?from=2025-12-04&to=2025-12-09"), nil)
	expectStatus(t, resp, http.StatusOK)
	doses := decodeBody(t, resp)["doses"].([]any)
	if len(doses) != 4 {
		t.Fatalf("expected 4 doses, got %d", len(doses))
	}
	first := doses[0].(map[string]any)
	if first["key"] != "2025-12-05T08:00" || first["taken"] != true {
		t.Errorf("unexpected first dose: %v", first)
	}
	if doses[1].(map[string]any)["taken"] != nil {
		t.Errorf("expected unrecorded dose, got %v", doses[1])
	}

	// Defaults to the weekly window ending today.
	resp = doJSON(t, http.MethodGet, medURL(ts, id, "/doses"), nil)
	expectStatus(t, resp, http.StatusOK)
	body := decodeBody(t, resp)
	if body["from"] != "2025-12-03" || len(body["doses"].([]any)) != 6 {
		t.Fatalf("unexpected default window: %v", body)
	}

	resp = doJSON(t, http.MethodGet, medURL(ts, id, "/doses?from=12/01/2025"), nil)
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestUpdateSchedule(t *testing.T) {
	ts := newTestServer(t)
	id := createMedication(t, ts, "2025-12-01", "2025-12-05", "08:00")

	resp := doJSON(t, http.MethodPut, medURL(ts, id, "/schedule"), map[string]any{
		"times": "07:00,19:00", "startDate": "2025-12-01", "endDate": "2025-12-10",
	})
	expectStatus(t, resp, http.StatusOK)
	body := decodeBody(t, resp)
	if body["times"] != "07:00,19:00" || body["endDate"] != "2025-12-10" {
		t.Fatalf("schedule not replaced: %v", body)
	}

	resp = doJSON(t, http.MethodPut, medURL(ts, id, "/schedule"), map[string]any{
		"times": "", "startDate": "2025-12-01", "endDate": "2025-12-10",
	})
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestDailyReport(t *testing.T) {
	ts := newTestServer(t)
	createMedication(t, ts, "2025-12-01", "2025-12-31", "08:00")

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/reports/daily?days=3", nil)
	expectStatus(t, resp, http.StatusOK)
	days := decodeBody(t, resp)["days"].([]any)
	if len(days) != 3 {
		t.Fatalf("expected 3 days, got %d", len(days))
	}
	first := days[0].(map[string]any)
	if first["day"] != "2025-12-09" || first["totalDoses"] != float64(1) {
		t.Fatalf("unexpected newest day: %v", first)
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/reports/weekly?end=tomorrow", nil)
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestConfigEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/config", nil)
	expectStatus(t, resp, http.StatusOK)
	if decodeBody(t, resp)["sso_enabled"] != false {
		t.Fatal("expected sso disabled")
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/auth/sso/login", nil)
	expectStatus(t, resp, http.StatusNotFound)
}

func TestAuthFlow(t *testing.T) {
	ts := newServer(t, true, nil)

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/medications", nil)
	expectStatus(t, resp, http.StatusUnauthorized)

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/auth/setup", map[string]any{"username": "alice", "password": "s3cret"})
	expectStatus(t, resp, http.StatusOK)

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/auth/setup", map[string]any{"username": "mallory", "password": "x"})
	expectStatus(t, resp, http.StatusBadRequest)

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/auth/login", map[string]any{"username": "alice", "password": "wrong"})
	expectStatus(t, resp, http.StatusUnauthorized)

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/auth/login", map[string]any{"username": "alice", "password": "s3cret"})
	expectStatus(t, resp, http.StatusOK)
	var session *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "session" {
			session = c
		}
	}
	if session == nil || session.Value == "" {
		t.Fatal("expected session cookie")
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/medications", nil, session)
	expectStatus(t, resp, http.StatusOK)

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/auth/logout", nil, session)
	expectStatus(t, resp, http.StatusOK)

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/medications", nil, session)
	expectStatus(t, resp, http.StatusUnauthorized)
}

func TestForwardAuthIsolatesUsers(t *testing.T) {
	ts := newServer(t, true, nil)

	as := func(user, method, url string, payload any) *http.Response {
		t.Helper()
		var body io.Reader
		if payload != nil {
			b, _ := json.Marshal(payload)
			body = bytes.NewReader(b)
		}
		req, _ := http.NewRequest(method, url, body)
		req.Header.Set("Remote-User", user)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}

	resp := as("bob", http.MethodPost, ts.URL+"/api/medications", map[string]any{
		"name": "Vitamin C", "times": "09:00", "startDate": "2025-12-01", "endDate": "2025-12-05",
	})
	expectStatus(t, resp, http.StatusCreated)
	id := int(decodeBody(t, resp)["id"].(float64))

	resp = as("carol", http.MethodGet, medURL(ts, id, ""), nil)
	expectStatus(t, resp, http.StatusNotFound)

	resp = as("carol", http.MethodGet, ts.URL+"/api/medications", nil)
	expectStatus(t, resp, http.StatusOK)
	if n := len(decodeBody(t, resp)["medications"].([]any)); n != 0 {
		t.Fatalf("expected carol to see no medications, got %d", n)
	}
}

func TestLoginRateLimited(t *testing.T) {
	ts := newServer(t, true, func(o *adapthttp.Options) {
		o.LoginRate = 0.001
		o.LoginBurst = 2
	})

	creds := map[string]any{"username": "nobody", "password": "guess"}
	expectStatus(t, doJSON(t, http.MethodPost, ts.URL+"/api/auth/login", creds), http.StatusUnauthorized)
	expectStatus(t, doJSON(t, http.MethodPost, ts.URL+"/api/auth/login", creds), http.StatusUnauthorized)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/auth/login", creds)
	expectStatus(t, resp, http.StatusTooManyRequests)
	if resp.Header.Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func postLoginFrom(t *testing.T, ts *httptest.Server, forwardedFor string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/auth/login",
		strings.NewReader(`{"username":"nobody","password":"guess"}`))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", forwardedFor)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestLoginRateLimited_IgnoresForwardedFor(t *testing.T) {
	ts := newServer(t, true, func(o *adapthttp.Options) {
		o.LoginRate = 0.001
		o.LoginBurst = 2
	})

	throttled := 0
	for i := range 20 {
		resp := postLoginFrom(t, ts, "10.0.0."+strconv.Itoa(i+1))
		if resp.StatusCode == http.StatusTooManyRequests {
			throttled++
		}
	}
	if throttled != 18 {
		t.Errorf("expected 18 of 20 attempts throttled, got %d", throttled)
	}
}

func TestLoginRateLimited_TrustedProxy(t *testing.T) {
	ts := newServer(t, true, func(o *adapthttp.Options) {
		o.LoginRate = 0.001
		o.LoginBurst = 1
		o.TrustProxy = true
	})

	expectStatus(t, postLoginFrom(t, ts, "10.0.0.1"), http.StatusUnauthorized)
	expectStatus(t, postLoginFrom(t, ts, "10.0.0.1"), http.StatusTooManyRequests)
	expectStatus(t, postLoginFrom(t, ts, "10.0.0.2"), http.StatusUnauthorized)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	id := createMedication(t, ts, "2025-12-01", "2025-12-05", "08:00,20:00")
	doJSON(t, http.MethodPost, medURL(ts, id, "/record"), map[string]any{"taken": true, "day": "2025-12-02"})

	resp := doJSON(t, http.MethodGet, ts.URL+"/metrics", nil)
	expectStatus(t, resp, http.StatusOK)
	b, _ := io.ReadAll(resp.Body)
	out := string(b)

	for _, want := range []string{
		`medreminder_http_requests_total{method="POST",route="/api/medications`,
		`status="201"`,
		`medreminder_dose_outcomes_recorded_total{taken="true"} 2`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestRequestID(t *testing.T) {
	ts := newTestServer(t)

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/health", nil)
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("expected generated request id")
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close() //nolint:errcheck
	if got := resp2.Header.Get("X-Request-ID"); got != "abc-123" {
		t.Fatalf("expected propagated id, got %q", got)
	}
}

func TestSPAFallback(t *testing.T) {
	ts := newTestServer(t)

	resp := doJSON(t, http.MethodGet, ts.URL+"/medications/42", nil)
	expectStatus(t, resp, http.StatusOK)
	b, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(b), "<html>") {
		t.Fatalf("expected index.html, got %q", b)
	}
}
