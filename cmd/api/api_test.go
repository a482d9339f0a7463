package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"golang.org/x/crypto/bcrypt"

	"github.com/crucial707/logsink/internal/auth"
	"github.com/crucial707/logsink/internal/config"
	"github.com/crucial707/logsink/internal/models"
)

const testSecret = "test-secret-for-integration"

var (
	userCols = []string{"id", "username", "password_hash", "is_admin", "created_at"}
	logCols  = []string{"id", "domain", "ip_address", "service_name", "message", "severity", "timestamp"}
)

func testConfig() config.Config {
	return config.Config{
		JWTSecret:        testSecret,
		JWTExpireMinutes: 30,
		BcryptCost:       bcrypt.MinCost,
		AuthRatePerMin:   60,
	}
}

func newTestServer(t *testing.T, cfg config.Config) (*httptest.Server, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	r, err := newRouter(db, cfg)
	if err != nil {
		t.Fatalf("newRouter: %v", err)
	}
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, mock
}

func doJSON(t *testing.T, method, url, token string, body interface{}) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req, _ := http.NewRequest(method, url, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// TestAPI_LogLifecycle registers a user, exchanges credentials for a token, ingests a
// record, reads it back, and checks that only an administrator may delete it.
func TestAPI_LogLifecycle(t *testing.T) {
	srv, mock := newTestServer(t, testConfig())

	hash, _ := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	now := time.Now().UTC().Truncate(time.Second)
	aliceRow := func() *sqlmock.Rows {
		return sqlmock.NewRows(userCols).AddRow(1, "alice", string(hash), false, now)
	}

	// 1) register
	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("alice", sqlmock.AnyArg(), false).
		WillReturnRows(aliceRow())
	// 2) token
	mock.ExpectQuery(`SELECT id, username, password_hash, is_admin, created_at`).
		WithArgs("alice").WillReturnRows(aliceRow())
	// 3) create log
	mock.ExpectQuery(`SELECT id, username, password_hash, is_admin, created_at`).
		WithArgs("alice").WillReturnRows(aliceRow())
	mock.ExpectQuery(`INSERT INTO logs`).
		WithArgs("example.com", "10.0.0.1", "auth", "login ok", "info").
		WillReturnRows(sqlmock.NewRows(logCols).AddRow(1, "example.com", "10.0.0.1", "auth", "login ok", "info", now))
	// 4) list
	mock.ExpectQuery(`SELECT id, username, password_hash, is_admin, created_at`).
		WithArgs("alice").WillReturnRows(aliceRow())
	mock.ExpectQuery(`FROM logs ORDER BY id LIMIT \$1 OFFSET \$2`).
		WithArgs(100, 0).
		WillReturnRows(sqlmock.NewRows(logCols).AddRow(1, "example.com", "10.0.0.1", "auth", "login ok", "info", now))
	// 5) delete as non-admin: resolved, then refused before any DELETE
	mock.ExpectQuery(`SELECT id, username, password_hash, is_admin, created_at`).
		WithArgs("alice").WillReturnRows(aliceRow())
	// 6) delete as admin
	mock.ExpectQuery(`SELECT id, username, password_hash, is_admin, created_at`).
		WithArgs("root").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(2, "root", "x", true, now))
	mock.ExpectExec(`DELETE FROM logs WHERE id = \$1`).
		WithArgs(int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO audit_log`).
		WithArgs(int64(2), "delete", "log", int64(1), "").WillReturnResult(sqlmock.NewResult(1, 1))

	resp := doJSON(t, "POST", srv.URL+"/register", "", map[string]string{"username": "alice", "password": "pw"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status: got %d, want 201", resp.StatusCode)
	}

	form := url.Values{"username": {"alice"}, "password": {"pw"}}
	tokResp, err := http.Post(srv.URL+"/token", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatalf("token request: %v", err)
	}
	defer tokResp.Body.Close()
	if tokResp.StatusCode != http.StatusOK {
		t.Fatalf("token status: got %d, want 200", tokResp.StatusCode)
	}
	var tok auth.Token
	if err := json.NewDecoder(tokResp.Body).Decode(&tok); err != nil || tok.AccessToken == "" || tok.TokenType != "bearer" {
		t.Fatalf("token response: %+v (%v)", tok, err)
	}

	resp = doJSON(t, "POST", srv.URL+"/logs/", tok.AccessToken, map[string]string{
		"domain": "example.com", "ip_address": "10.0.0.1", "service_name": "auth", "message": "login ok", "severity": "info",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create log status: got %d, want 201", resp.StatusCode)
	}
	var created models.LogRecord
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	if created.ID == 0 || created.Timestamp.IsZero() {
		t.Errorf("created record should carry id and timestamp: %+v", created)
	}

	resp = doJSON(t, "GET", srv.URL+"/logs/info", tok.AccessToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /logs/info status: got %d, want 200", resp.StatusCode)
	}
	var list []models.LogRecord
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0].ID != created.ID {
		t.Errorf("list should include the created record: %+v", list)
	}

	resp = doJSON(t, "DELETE", srv.URL+"/logs/1", tok.AccessToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non-admin delete status: got %d, want 403", resp.StatusCode)
	}

	tokens, err := auth.NewTokens([]byte(testSecret), time.Minute, nil)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	adminTok, err := tokens.Issue("root")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	resp = doJSON(t, "DELETE", srv.URL+"/logs/1", adminTok.AccessToken, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("admin delete status: got %d, want 204", resp.StatusCode)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestAPI_ProtectedRoutesRequireToken(t *testing.T) {
	srv, mock := newTestServer(t, testConfig())

	for _, tc := range []struct{ method, path string }{
		{"GET", "/logs/"},
		{"GET", "/logs/info"},
		{"GET", "/logs/7"},
		{"POST", "/logs/"},
		{"PUT", "/logs/7"},
		{"DELETE", "/logs/7"},
		{"GET", "/users/me"},
		{"GET", "/audit"},
	} {
		resp := doJSON(t, tc.method, srv.URL+tc.path, "", nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s %s without token: got %d, want 401", tc.method, tc.path, resp.StatusCode)
		}
	}

	// A token signed with another key never reaches the database.
	other, _ := auth.NewTokens([]byte("not-the-server-secret"), time.Minute, nil)
	forged, _ := other.Issue("alice")
	resp := doJSON(t, "GET", srv.URL+"/logs/", forged.AccessToken, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("forged token: got %d, want 401", resp.StatusCode)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestAPI_UsersMe(t *testing.T) {
	srv, mock := newTestServer(t, testConfig())

	mock.ExpectQuery(`SELECT id, username, password_hash, is_admin, created_at`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(1, "alice", "$2a$04$secret", false, time.Now()))

	tokens, _ := auth.NewTokens([]byte(testSecret), time.Minute, nil)
	tok, _ := tokens.Issue("alice")

	resp := doJSON(t, "GET", srv.URL+"/users/me", tok.AccessToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /users/me status: got %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if strings.Contains(string(body), "$2a$04$secret") {
		t.Errorf("password hash leaked: %s", body)
	}
	if !strings.Contains(string(body), `"username":"alice"`) {
		t.Errorf("unexpected body: %s", body)
	}
}

// TestAPI_Health is a quick smoke test for the health endpoint.
func TestAPI_Health(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("health request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /health status: got %d, want 200", resp.StatusCode)
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
}

// TestAPI_Ready checks that /ready pings the DB and returns 200 when DB is reachable.
func TestAPI_Ready(t *testing.T) {
	srv, mock := newTestServer(t, testConfig())
	mock.ExpectPing()

	resp, err := http.Get(srv.URL + "/ready")
	if err != nil {
		t.Fatalf("ready request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /ready status: got %d, want 200", resp.StatusCode)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestAPI_Metrics(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics request: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "logsink_logs_ingested_total") {
		t.Error("metrics output should include logsink_logs_ingested_total")
	}
}

func TestNewRouter_RejectsBadTokenConfig(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	cfg := testConfig()
	cfg.JWTSecret = ""
	if _, err := newRouter(db, cfg); err == nil {
		t.Error("expected error for empty JWT secret")
	}
}

type seederFunc func(ctx context.Context, username, hash string) (*models.User, error)

func (f seederFunc) EnsureAdmin(ctx context.Context, username, hash string) (*models.User, error) {
	return f(ctx, username, hash)
}

func TestBootstrapAdmin(t *testing.T) {
	var gotHash string
	seeder := seederFunc(func(_ context.Context, username, hash string) (*models.User, error) {
		gotHash = hash
		return &models.User{ID: 1, Username: username, IsAdmin: true}, nil
	})

	hasher := auth.NewPasswordHasher(bcrypt.MinCost)
	if err := bootstrapAdmin(context.Background(), seeder, hasher, "root", "toor"); err != nil {
		t.Fatalf("bootstrapAdmin: %v", err)
	}
	if gotHash == "toor" {
		t.Fatal("plaintext password passed to storage")
	}
	if err := hasher.Verify(gotHash, "toor"); err != nil {
		t.Errorf("stored hash does not verify: %v", err)
	}
}
