package e2e

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmokeFlow(t *testing.T) {
	platform := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/auth/login":
			_, _ = io.WriteString(w, `{"session_token":"tok-1","refresh_token":"refresh-1","expires_in":3600,"profile_id":"7"}`)
		case "/me/profile":
			assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
			_, _ = io.WriteString(w, `{"profile_id":7,"display_name":"Alex"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = fmt.Fprintf(w, `{"code":"not_found","message":%q}`, r.URL.Path)
		}
	}))
	defer platform.Close()

	home := t.TempDir()
	binaryPath := buildBinary(t)

	_, stderr, err := runNearby(t, binaryPath, home, platform.URL, "hunter2\n",
		"account", "add", "--account", "acc-1", "--username", "alex", "--name", "Primary", "--password-stdin",
	)
	require.NoError(t, err, "stderr: %s", stderr)

	_, stderr, err = runNearby(t, binaryPath, home, platform.URL, "", "login", "--json")
	require.NoError(t, err, "stderr: %s", stderr)

	stdout, stderr, err := runNearby(t, binaryPath, home, platform.URL, "", "profile", "show")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "name: Alex")

	stdout, stderr, err = runNearby(t, binaryPath, home, platform.URL, "", "status", "--account", "acc-1")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "Primary (acc-1, alex)")
	assert.Contains(t, stdout, "logged in")
}

func buildBinary(t *testing.T) string {
	t.Helper()

	binaryPath := filepath.Join(t.TempDir(), "nearby-e2e")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/nearby")
	cmd.Dir = repoRoot(t)

	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "build nearby binary: %s", string(output))
	return binaryPath
}

func runNearby(t *testing.T, binaryPath, home, baseURL, input string, args ...string) (string, string, error) {
	t.Helper()

	cmd := exec.Command(binaryPath, args...)
	cmd.Env = append(os.Environ(),
		"HOME="+home,
		"NEARBY_API_BASE_URL="+baseURL,
		"NEARBY_SECRETS_BACKEND=file",
		"NEARBY_LOG_LEVEL=error",
	)
	cmd.Stdin = strings.NewReader(input)

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
