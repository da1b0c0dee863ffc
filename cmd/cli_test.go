package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type deskFixture struct {
	mu      sync.Mutex
	deletes []string
}

func (d *deskFixture) deleted() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.deletes...)
}

func startDesk(t *testing.T) *deskFixture {
	t.Helper()

	desk := &deskFixture{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/playback/status":
			_, _ = fmt.Fprint(w, `{"state":"stopped"}`)
		case r.Method == http.MethodGet && r.URL.Path == "/api/nodes":
			_, _ = fmt.Fprint(w, `[]`)
		case r.Method == http.MethodGet && r.URL.Path == "/api/scenes":
			_, _ = fmt.Fprint(w, `{"message":"3 scenes stored","scenes":["Warm Wash","Blue","Sunset"]}`)
		case r.Method == http.MethodDelete:
			desk.mu.Lock()
			desk.deletes = append(desk.deletes, r.URL.Path)
			desk.mu.Unlock()
			_, _ = fmt.Fprint(w, `{"message":"Scene deleted"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = fmt.Fprint(w, `{"error":"no such route"}`)
		}
	}))
	t.Cleanup(server.Close)

	t.Setenv("CUEDESK_DEVICE_BASE_URL", server.URL)
	return desk
}

func TestVersionPrintsBuildVersion(t *testing.T) {
	home := t.TempDir()

	stdout, _, err := executeCLI(t, home, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", stdout)
}

func TestChatOfflineListsScenes(t *testing.T) {
	home := t.TempDir()
	startDesk(t)

	stdout, _, err := executeCLI(t, home, "", "chat", "list", "scenes")
	require.NoError(t, err)
	assert.Contains(t, stdout, "[offline]")
	assert.Contains(t, stdout, "3 scenes stored")
	assert.Contains(t, stdout, "actions: list_scenes")
}

func TestChatJSONAsksBeforeDeleting(t *testing.T) {
	home := t.TempDir()
	desk := startDesk(t)

	stdout, _, err := executeCLI(t, home, "", "chat", "--json", "delete scene sc-7")
	require.NoError(t, err)
	require.True(t, json.Valid([]byte(stdout)))

	var resp struct {
		Message           string `json:"message"`
		Mode              string `json:"mode"`
		NeedsConfirmation bool   `json:"needs_confirmation"`
		SessionID         string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.True(t, resp.NeedsConfirmation)
	assert.Equal(t, "offline", resp.Mode)
	assert.Equal(t, "default", resp.SessionID)
	assert.NotEmpty(t, resp.Message)
	assert.Empty(t, desk.deleted())
}

func TestChatRequiresText(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home, "", "chat")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg")
}

func TestChatStreamPrintsModeLast(t *testing.T) {
	home := t.TempDir()
	startDesk(t)

	stdout, _, err := executeCLI(t, home, "", "chat", "--stream", "banana")
	require.NoError(t, err)
	assert.Contains(t, stdout, "I didn't understand that.")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(stdout), "[offline]"))
}

func TestAuditReadsArchivedActions(t *testing.T) {
	home := t.TempDir()
	startDesk(t)

	_, _, err := executeCLI(t, home, "", "chat", "--json", "list scenes")
	require.NoError(t, err)

	stdout, _, err := executeCLI(t, home, "", "audit", "--json")
	require.NoError(t, err)
	require.True(t, json.Valid([]byte(stdout)))
	assert.Contains(t, stdout, "list_scenes")

	stdout, _, err = executeCLI(t, home, "", "audit", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, stdout, "entries: 1")
	assert.Contains(t, stdout, "3 scenes stored")
}

func TestAuditRejectsNonPositiveLimit(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home, "", "audit", "--limit", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--limit must be positive")
}

func TestConfigSetPersistsSettings(t *testing.T) {
	home := t.TempDir()
	startDesk(t)

	stdout, _, err := executeCLI(t, home, "", "config", "set", "--mode", "offline", "--model", "gpt-test", "--temperature", "0")
	require.NoError(t, err)
	assert.Contains(t, stdout, "mode=offline model=gpt-test")
	assert.FileExists(t, filepath.Join(home, ".cuedesk", "settings.toml"))

	stdout, _, err = executeCLI(t, home, "", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, stdout, "mode:          offline")
	assert.Contains(t, stdout, "model:         gpt-test")
	assert.Contains(t, stdout, "temperature:   0")
}

func TestConfigSetValidatesInput(t *testing.T) {
	home := t.TempDir()
	startDesk(t)

	_, _, err := executeCLI(t, home, "", "config", "set")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to change")

	_, _, err = executeCLI(t, home, "", "config", "set", "--mode", "turbo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid mode")
}

func TestKeySetAndRemoveUseFileStore(t *testing.T) {
	home := t.TempDir()
	t.Setenv("CUEDESK_CREDENTIALS_BACKENDS", "env,file")

	stdout, _, err := executeCLI(t, home, "sk-from-stdin\n", "key", "set")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Stored API key as cuedesk/reasoning/api_key")

	keyPath := filepath.Join(home, ".cuedesk", "secrets", "cuedesk", "reasoning", "api_key")
	raw, err := os.ReadFile(keyPath)
	require.NoError(t, err)
	assert.Equal(t, "sk-from-stdin", string(raw))

	_, _, err = executeCLI(t, home, "", "key", "remove")
	require.NoError(t, err)
	assert.NoFileExists(t, keyPath)
}

func TestKeySetRejectsEmptyValue(t *testing.T) {
	home := t.TempDir()
	t.Setenv("CUEDESK_CREDENTIALS_BACKENDS", "file")

	_, _, err := executeCLI(t, home, "", "key", "set", "--value", "  ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api key is empty")
}

func TestUnknownLogLevelFailsEveryCommand(t *testing.T) {
	home := t.TempDir()
	t.Setenv("CUEDESK_LOG_LEVEL", "chatty")

	_, _, err := executeCLI(t, home, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}

func TestReplRunsSlashCommandsAndTurns(t *testing.T) {
	home := t.TempDir()
	startDesk(t)

	input := strings.Join([]string{
		"/status",
		"/mode offline",
		"list scenes",
		"/audit 5",
		"/bogus",
		"/clear",
		"/quit",
	}, "\n") + "\n"

	stdout, _, err := executeCLI(t, home, input, "repl", "--session", "booth")
	require.NoError(t, err)
	assert.Contains(t, stdout, "cuedesk ready.")
	assert.Contains(t, stdout, "reachability:")
	assert.Contains(t, stdout, "Mode set to offline.")
	assert.Contains(t, stdout, "3 scenes stored")
	assert.Contains(t, stdout, "entries: 1")
	assert.Contains(t, stdout, "unknown command /bogus")
	assert.Contains(t, stdout, `Session "booth" cleared.`)
}

func executeCLI(t *testing.T, home string, stdin string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", home)
	if os.Getenv("CUEDESK_MODE") == "" {
		t.Setenv("CUEDESK_MODE", "offline")
	}
	t.Setenv("CUEDESK_REASONING_ENDPOINT", "http://127.0.0.1:1")

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}
