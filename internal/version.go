package internal

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"
)

// Version is bumped on every tagged release.
const Version = "0.3.0"

const (
	releaseOwner = "watchroom"
	releaseRepo  = "watchroom"
)

type releaseInfo struct {
	TagName string `json:"tag_name"`
}

// GetLatestVersion asks the GitHub releases API for the newest tag,
// stripped of its "v" prefix.
func GetLatestVersion() (string, error) {
	url := fmt.Sprintf("https://api.github.com/repos/%s/%s/releases/latest", releaseOwner, releaseRepo)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GitHub API returned status %d", resp.StatusCode)
	}

	var release releaseInfo
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return "", err
	}
	return strings.TrimPrefix(release.TagName, "v"), nil
}

// CompareVersions returns 1 when v1 is newer, -1 when older, 0 when
// equal. Lexicographic, which holds for the x.y.z tags this repo cuts.
func CompareVersions(v1, v2 string) int {
	v1 = strings.TrimPrefix(v1, "v")
	v2 = strings.TrimPrefix(v2, "v")
	switch {
	case v1 == v2:
		return 0
	case v1 > v2:
		return 1
	default:
		return -1
	}
}

// GetPlatform maps GOOS/GOARCH onto the published binary name.
func GetPlatform() string {
	arch := runtime.GOARCH
	if arch == "aarch64" {
		arch = "arm64"
	}
	if arch != "arm64" {
		arch = "amd64"
	}
	switch runtime.GOOS {
	case "darwin":
		return "watchroom-macos-" + arch
	case "linux":
		return "watchroom-linux-" + arch
	case "windows":
		return "watchroom-windows-amd64.exe"
	default:
		return "watchroom-unknown"
	}
}
