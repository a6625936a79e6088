package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bookbazaar/bazaar/internal/config"
	"github.com/bookbazaar/bazaar/internal/market"
	"github.com/bookbazaar/bazaar/pkg/domain"
)

// fakeProject serves the handful of rows and auth endpoints the commands use.
func fakeProject(t *testing.T, books []map[string]any) *httptest.Server {
	t.Helper()
	user := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/rest/v1/books" && r.Method == http.MethodGet:
			json.NewEncoder(w).Encode(books) //nolint:errcheck
		case r.URL.Path == "/auth/v1/token" && r.URL.Query().Get("grant_type") == "password":
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body) //nolint:errcheck
			if body["password"] != "hunter22" {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid login credentials"}`)) //nolint:errcheck
				return
			}
			json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
				"access_token":  "access",
				"refresh_token": "refresh-token-long-enough",
				"expires_in":    3600,
				"user": map[string]any{
					"id":            user.String(),
					"email":         body["email"],
					"user_metadata": map[string]string{"username": "meera"},
				},
			})
		case r.URL.Path == "/auth/v1/logout":
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// useConfig points the global config at a temp home and the given backend.
func useConfig(t *testing.T, backendURL string) {
	t.Helper()
	c := config.DefaultConfig()
	c.Home = t.TempDir()
	c.Backend.URL = backendURL
	c.Backend.AnonKey = "anon"
	cfg = c
	configPath = filepath.Join(c.Home, "config.yaml")
	logger = zap.NewNop()

	t.Cleanup(func() {
		cfg, configPath, logger = nil, "", nil
		listQuery, listCategory = "", domain.CategoryAll
		loginEmail, signupEmail, signupUsername = "", "", ""
		initURL, initAnonKey = "", ""
	})
}

func testCmd(stdin string) (*cobra.Command, *bytes.Buffer) {
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader(stdin))
	return cmd, &out
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	t.Cleanup(func() { versionCmd.SetOut(nil) })
	versionCmd.Run(versionCmd, nil)
	assert.Equal(t, "bazaar dev\n", out.String())
}

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"login", "signup", "logout", "whoami", "listings", "outbox", "config", "version"} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestListings(t *testing.T) {
	books := []map[string]any{
		{"id": uuid.NewString(), "user_id": uuid.NewString(), "title": "Engineering Mathematics", "author": "B.S. Grewal",
			"category": "Engineering", "condition": "Good", "price": 450, "is_swap": false,
			"profiles": map[string]string{"username": "arjun"}},
		{"id": uuid.NewString(), "user_id": uuid.NewString(), "title": "Godaan", "author": "Premchand",
			"category": "Literature", "condition": "Fair", "price": nil, "is_swap": true},
	}
	useConfig(t, fakeProject(t, books).URL)

	cmd, out := testCmd("")
	require.NoError(t, runListings(cmd, nil))
	got := out.String()
	assert.Contains(t, got, "TITLE")
	assert.Contains(t, got, "Engineering Mathematics")
	assert.Contains(t, got, "arjun")
	assert.Contains(t, got, "Godaan")

	listCategory = "Literature"
	cmd, out = testCmd("")
	require.NoError(t, runListings(cmd, nil))
	assert.NotContains(t, out.String(), "Engineering Mathematics")
	assert.Contains(t, out.String(), "Godaan")

	listCategory, listQuery = domain.CategoryAll, "tolstoy"
	cmd, out = testCmd("")
	require.NoError(t, runListings(cmd, nil))
	assert.Equal(t, "No books match.\n", out.String())
}

func TestListingsRejectsUnknownCategory(t *testing.T) {
	useConfig(t, "http://127.0.0.1:1")
	listCategory = "Cooking"
	cmd, _ := testCmd("")
	err := runListings(cmd, nil)
	assert.ErrorIs(t, err, domain.ErrUnknownCategory)
}

func TestCommandsNeedBackendConfig(t *testing.T) {
	useConfig(t, "")
	cmd, _ := testCmd("")
	err := runWhoami(cmd, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrMissingURL)
	assert.Contains(t, err.Error(), "bazaar config init")
}

func TestLoginWhoamiLogout(t *testing.T) {
	useConfig(t, fakeProject(t, nil).URL)

	cmd, out := testCmd("")
	require.NoError(t, runWhoami(cmd, nil))
	assert.Contains(t, out.String(), "Not signed in")

	cmd, out = testCmd("meera@example.com\nhunter22\n")
	require.NoError(t, runLogin(cmd, nil))
	assert.Contains(t, out.String(), "Signed in as meera")
	assert.FileExists(t, cfg.SessionPath())

	cmd, out = testCmd("")
	require.NoError(t, runWhoami(cmd, nil))
	assert.Contains(t, out.String(), "meera <meera@example.com>")

	cmd, out = testCmd("")
	require.NoError(t, runLogout(cmd, nil))
	assert.Contains(t, out.String(), "Logged out.")
	assert.NoFileExists(t, cfg.SessionPath())

	cmd, out = testCmd("")
	require.NoError(t, runLogout(cmd, nil))
	assert.Contains(t, out.String(), "Already logged out.")
}

func TestLoginBadPassword(t *testing.T) {
	useConfig(t, fakeProject(t, nil).URL)
	loginEmail = "meera@example.com"
	cmd, _ := testCmd("wrong\n")
	require.Error(t, runLogin(cmd, nil))
	assert.NoFileExists(t, cfg.SessionPath())
}

func TestOutboxCommands(t *testing.T) {
	useConfig(t, fakeProject(t, nil).URL)

	cmd, _ := testCmd("")
	assert.ErrorIs(t, runOutboxFlush(cmd, nil), market.ErrNotAuthenticated)
	cmd, _ = testCmd("")
	assert.ErrorIs(t, runOutboxStatus(cmd, nil), market.ErrNotAuthenticated)

	cmd, _ = testCmd("meera@example.com\nhunter22\n")
	require.NoError(t, runLogin(cmd, nil))

	cmd, out := testCmd("")
	require.NoError(t, runOutboxStatus(cmd, nil))
	assert.Contains(t, out.String(), "0 queued notification(s) for meera")

	cmd, out = testCmd("")
	require.NoError(t, runOutboxFlush(cmd, nil))
	assert.Contains(t, out.String(), "Delivered 0, still queued 0")
}

func TestConfigInitWritesFile(t *testing.T) {
	useConfig(t, "")
	cfg.Backend.AnonKey = ""
	initURL, initAnonKey = "https://abc.supabase.co", "anon-key"

	cmd, out := testCmd("")
	require.NoError(t, runConfigInit(cmd, nil))
	assert.Contains(t, out.String(), configPath)

	loaded, err := config.Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "https://abc.supabase.co", loaded.Backend.URL)
	assert.Equal(t, "anon-key", loaded.Backend.AnonKey)

	cmd, out = testCmd("")
	require.NoError(t, runConfigShow(cmd, nil))
	assert.Contains(t, out.String(), "https://abc.supabase.co")
	assert.Contains(t, out.String(), "anon key: (set)")
	assert.NotContains(t, out.String(), "anon-key")
}

func TestConfigInitRequiresBackend(t *testing.T) {
	useConfig(t, "")
	cmd, _ := testCmd("")
	assert.ErrorIs(t, runConfigInit(cmd, nil), config.ErrMissingURL)
	assert.NoFileExists(t, configPath)
}
