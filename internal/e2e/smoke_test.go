package e2e

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmokeFlow(t *testing.T) {
	home := t.TempDir()
	binaryPath := buildBinary(t)
	desk := startDesk(t)

	stdout, stderr, err := runCuedesk(t, binaryPath, home, desk.URL, "chat", "--json", "play scene Warm Wash")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, `"mode": "offline"`)
	assert.Contains(t, stdout, "Now playing Warm Wash")

	stdout, stderr, err = runCuedesk(t, binaryPath, home, desk.URL, "audit", "--json")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "play_scene")
}

func startDesk(t *testing.T) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/playback/status":
			_, _ = fmt.Fprint(w, `{"state":"stopped"}`)
		case "/api/nodes":
			_, _ = fmt.Fprint(w, `[]`)
		case "/api/scenes/Warm%20Wash/play", "/api/scenes/Warm Wash/play":
			_, _ = fmt.Fprint(w, `{"message":"Now playing Warm Wash","scene_id":"sc-7","name":"Warm Wash"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func buildBinary(t *testing.T) string {
	t.Helper()

	binaryPath := filepath.Join(t.TempDir(), "cuedesk-e2e")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/cuedesk")
	cmd.Dir = repoRoot(t)

	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "build cuedesk binary: %s", string(output))
	return binaryPath
}

func runCuedesk(t *testing.T, binaryPath, home, deskURL string, args ...string) (string, string, error) {
	t.Helper()

	cmd := exec.Command(binaryPath, args...)
	cmd.Env = append(os.Environ(),
		"HOME="+home,
		"CUEDESK_MODE=offline",
		"CUEDESK_DEVICE_BASE_URL="+deskURL,
		"CUEDESK_CREDENTIALS_BACKENDS=file",
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func repoRoot(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err)
	return filepath.Clean(filepath.Join(wd, "..", ".."))
}
