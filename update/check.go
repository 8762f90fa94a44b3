package update

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

const (
	cacheFile     = "update_check.json"
	cacheTTL      = 24 * time.Hour
	checkInterval = 5 * time.Minute
)

func assetName() string {
	return fmt.Sprintf("%s_%s_%s", BinaryName, runtime.GOOS, runtime.GOARCH)
}

// CheckLatest asks the GitHub API for the latest release. It returns
// nil without error when the running build is current, or when it is
// a dev build with no version to compare.
func CheckLatest(currentVersion string) (*Release, error) {
	if currentVersion == "dev" {
		return nil, nil
	}
	rel, err := latestRelease()
	if err != nil {
		return nil, err
	}
	if !rel.NewerThan(currentVersion) {
		return nil, nil
	}
	return rel, nil
}

// latestRelease fetches release metadata and resolves the download
// URLs for this platform's asset and the checksums file.
func latestRelease() (*Release, error) {
	url := fmt.Sprintf("https://api.github.com/repos/%s/releases/latest", Repo)
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("github api: %s", resp.Status)
	}

	var gh struct {
		TagName string `json:"tag_name"`
		Assets  []struct {
			Name               string `json:"name"`
			BrowserDownloadURL string `json:"browser_download_url"`
		} `json:"assets"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&gh); err != nil {
		return nil, err
	}

	rel := &Release{Version: gh.TagName}
	want := assetName()
	for _, a := range gh.Assets {
		switch a.Name {
		case want:
			rel.AssetURL = a.BrowserDownloadURL
		case "checksums.txt":
			rel.ChecksumURL = a.BrowserDownloadURL
		}
	}
	if rel.AssetURL == "" {
		return nil, fmt.Errorf("no asset %q in release %s", want, gh.TagName)
	}
	return rel, nil
}

// A check result is cached for a day so repeated polls cost nothing.
// An empty version records "checked, nothing newer".
type checkCache struct {
	Version     string `json:"version"`
	AssetURL    string `json:"asset_url"`
	ChecksumURL string `json:"checksum_url"`
	CheckedAt   int64  `json:"checked_at"`
}

func readCache(cacheDir string) (*Release, bool) {
	data, err := os.ReadFile(filepath.Join(cacheDir, cacheFile))
	if err != nil {
		return nil, false
	}
	var c checkCache
	if json.Unmarshal(data, &c) != nil {
		return nil, false
	}
	if time.Since(time.Unix(c.CheckedAt, 0)) > cacheTTL {
		return nil, false
	}
	if c.Version == "" {
		return nil, true
	}
	return &Release{Version: c.Version, AssetURL: c.AssetURL, ChecksumURL: c.ChecksumURL}, true
}

func writeCache(cacheDir string, rel *Release) {
	c := checkCache{CheckedAt: time.Now().Unix()}
	if rel != nil {
		c.Version, c.AssetURL, c.ChecksumURL = rel.Version, rel.AssetURL, rel.ChecksumURL
	}
	data, err := json.Marshal(c)
	if err != nil {
		return
	}
	_ = os.MkdirAll(cacheDir, 0755)
	_ = os.WriteFile(filepath.Join(cacheDir, cacheFile), data, 0644)
}

// CheckLatestCached answers from the day-old cache when it can, so the
// periodic check does not hammer the API.
func CheckLatestCached(currentVersion, cacheDir string) (*Release, error) {
	if currentVersion == "dev" {
		return nil, nil
	}
	if rel, ok := readCache(cacheDir); ok {
		return rel, nil
	}
	rel, err := CheckLatest(currentVersion)
	if err != nil {
		return nil, err
	}
	writeCache(cacheDir, rel)
	return rel, nil
}

// StartBackgroundCheck polls for a newer release and calls notify for
// each poll that finds one. Dev builds never check.
func StartBackgroundCheck(currentVersion, cacheDir string, notify func(Release)) {
	if currentVersion == "dev" {
		return
	}
	go func() {
		check := func() {
			rel, err := CheckLatestCached(currentVersion, cacheDir)
			if err == nil && rel != nil {
				notify(*rel)
			}
		}
		check()
		ticker := time.NewTicker(checkInterval)
		defer ticker.Stop()
		for range ticker.C {
			check()
		}
	}()
}
