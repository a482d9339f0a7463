package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/crucial707/logsink/cmd/cli/config"
	"github.com/crucial707/logsink/internal/models"
)

func useServer(t *testing.T, h http.HandlerFunc) string {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	tokenFile := filepath.Join(t.TempDir(), "token")
	t.Setenv("LOGCTL_API_URL", srv.URL)
	t.Setenv("LOGCTL_TOKEN_FILE", tokenFile)
	return tokenFile
}

func TestLogin_StoresToken(t *testing.T) {
	tokenFile := useServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/token" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("Content-Type: got %q", ct)
		}
		_ = r.ParseForm()
		if r.PostForm.Get("username") != "alice" || r.PostForm.Get("password") != "pw" {
			t.Errorf("unexpected form: %v", r.PostForm)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "abc", "token_type": "bearer"})
	})

	cmd := loginCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	_ = cmd.Flags().Set("username", "alice")
	_ = cmd.Flags().Set("password", "pw")

	if err := cmd.RunE(cmd, nil); err != nil {
		t.Fatalf("RunE: %v", err)
	}
	data, err := os.ReadFile(tokenFile)
	if err != nil || string(data) != "abc" {
		t.Fatalf("token file: %q, %v", data, err)
	}
	if !strings.Contains(out.String(), "Login successful") {
		t.Errorf("unexpected output: %s", out.String())
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	tokenFile := useServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"incorrect username or password"}`))
	})

	cmd := loginCmd()
	cmd.SetOut(&bytes.Buffer{})
	_ = cmd.Flags().Set("username", "alice")
	_ = cmd.Flags().Set("password", "nope")

	err := cmd.RunE(cmd, nil)
	if err == nil || !strings.Contains(err.Error(), "incorrect username or password") {
		t.Fatalf("expected credential error, got %v", err)
	}
	if _, err := os.Stat(tokenFile); !os.IsNotExist(err) {
		t.Error("no token should be stored on failure")
	}
}

func TestRegister_PromptsForPassword(t *testing.T) {
	useServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/register" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["username"] != "bob" || body["password"] != "s3cret" {
			t.Errorf("unexpected body: %v", body)
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(models.User{ID: 4, Username: "bob"})
	})

	cmd := registerCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader("s3cret\n"))
	_ = cmd.Flags().Set("username", "bob")

	if err := cmd.RunE(cmd, nil); err != nil {
		t.Fatalf("RunE: %v", err)
	}
	if !strings.Contains(out.String(), "User bob registered (id 4)") {
		t.Errorf("unexpected output: %s", out.String())
	}
}

func TestWhoami_JSON(t *testing.T) {
	useServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer abc" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(models.User{ID: 1, Username: "alice", IsAdmin: true})
	})
	if err := config.SaveToken("abc"); err != nil {
		t.Fatal(err)
	}

	cmd := whoamiCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	_ = cmd.Flags().Set("json", "true")

	if err := cmd.RunE(cmd, nil); err != nil {
		t.Fatalf("RunE: %v", err)
	}
	if !strings.Contains(out.String(), `"is_admin": true`) {
		t.Errorf("unexpected output: %s", out.String())
	}
}

func TestLogout(t *testing.T) {
	useServer(t, func(w http.ResponseWriter, r *http.Request) {})
	if err := config.SaveToken("abc"); err != nil {
		t.Fatal(err)
	}

	cmd := logoutCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	if err := cmd.RunE(cmd, nil); err != nil {
		t.Fatalf("RunE: %v", err)
	}
	if _, err := config.LoadToken(); err != config.ErrNotLoggedIn {
		t.Errorf("token should be gone, got %v", err)
	}

	out.Reset()
	_ = cmd.RunE(cmd, nil)
	if !strings.Contains(out.String(), "No user logged in") {
		t.Errorf("unexpected output: %s", out.String())
	}
}
