package controller

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// DefaultScriptURL is the upstream location of the helper script copied to
// each node during Preparing.
const DefaultScriptURL = "https://raw.githubusercontent.com/retis-org/retis/main/tools/retis_in_container.sh"

const scriptFetchTimeout = 60 * time.Second

// FetchScript downloads the helper script to a local temporary file with
// execute permissions. The returned cleanup removes the file and must be
// called on every exit path, including cancellation.
func FetchScript(ctx context.Context, url string) (path string, cleanup func(), err error) {
	ctx, cancel := context.WithTimeout(ctx, scriptFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", nil, fmt.Errorf("failed to build script request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("failed to download helper script from %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("failed to download helper script from %s: status %s", url, resp.Status)
	}

	tmp, err := os.CreateTemp("", "retis_in_container_*.sh")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp file for helper script: %w", err)
	}
	cleanup = func() { _ = os.Remove(tmp.Name()) }

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		cleanup()
		return "", nil, fmt.Errorf("failed to write helper script: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to close helper script file: %w", err)
	}

	if err := os.Chmod(tmp.Name(), 0o755); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to set helper script permissions: %w", err)
	}

	return tmp.Name(), cleanup, nil
}
