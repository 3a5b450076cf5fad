package manifest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	gogithttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"

	"github.com/deptrack/deptrack/pkg/hostlimit"
)

const (
	// DefaultFetchTimeout bounds one manifest retrieval end to end.
	DefaultFetchTimeout = 30 * time.Second

	// maxManifestBytes caps the response body read from a manifest host.
	maxManifestBytes = 4 << 20

	defaultGitBranch = "main"
	defaultGitPath   = "deptrack.yaml"
)

// Fetcher retrieves manifest bytes from a team-configured URL. Supported
// schemes are http(s) for a direct GET and git+https for a shallow in-memory
// clone. Every fetch holds a per-hostname slot from the shared limiter for
// its full duration.
type Fetcher struct {
	client  *http.Client
	limiter *hostlimit.Limiter
	timeout time.Duration
}

// NewFetcher creates a fetcher using the given host limiter. A nil client
// gets a default one; the timeout falls back to DefaultFetchTimeout.
func NewFetcher(limiter *hostlimit.Limiter, client *http.Client, timeout time.Duration) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &Fetcher{
		client:  client,
		limiter: limiter,
		timeout: timeout,
	}
}

// Fetch retrieves the manifest at rawURL. authToken, when set, is sent as a
// bearer token for http(s) URLs and as token auth for git URLs.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, authToken string) ([]byte, error) {
	host, err := hostlimit.HostOf(rawURL)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}

	if !f.limiter.Acquire(host) {
		return nil, &FetchError{
			URL: rawURL,
			Err: fmt.Errorf("host concurrency limit reached for %s", host),
		}
	}
	defer f.limiter.Release(host)

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	if strings.HasPrefix(rawURL, "git+") {
		return f.fetchGit(ctx, rawURL, authToken)
	}
	return f.fetchHTTP(ctx, rawURL, authToken)
}

func (f *Fetcher) fetchHTTP(ctx context.Context, rawURL, authToken string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	req.Header.Set("Accept", "application/yaml, application/json, text/plain")
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestBytes))
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: fmt.Errorf("reading response: %w", err)}
	}
	return data, nil
}

// fetchGit clones the repository shallowly into memory and reads the
// manifest file from the worktree. URL form:
// git+https://host/org/repo.git#branch:path/to/manifest.yaml
func (f *Fetcher) fetchGit(ctx context.Context, rawURL, authToken string) ([]byte, error) {
	repoURL, branch, path := splitGitURL(rawURL)

	cloneOpts := &gogit.CloneOptions{
		URL:           repoURL,
		ReferenceName: plumbing.NewBranchReferenceName(branch),
		SingleBranch:  true,
		Depth:         1,
	}
	if authToken != "" {
		cloneOpts.Auth = &gogithttp.BasicAuth{
			Username: "git", // Username is ignored for token auth.
			Password: authToken,
		}
	}

	fs := memfs.New()
	if _, err := gogit.CloneContext(ctx, memory.NewStorage(), fs, cloneOpts); err != nil {
		return nil, &FetchError{URL: rawURL, Err: fmt.Errorf("git clone %s: %w", repoURL, err)}
	}

	file, err := fs.Open(path)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: fmt.Errorf("manifest %s not found in %s: %w", path, repoURL, err)}
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxManifestBytes))
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: fmt.Errorf("reading %s: %w", path, err)}
	}
	return data, nil
}

// splitGitURL decomposes a git+https URL into the clone URL, branch and
// in-repo manifest path, applying defaults for omitted parts.
func splitGitURL(rawURL string) (repoURL, branch, path string) {
	repoURL = strings.TrimPrefix(rawURL, "git+")
	branch = defaultGitBranch
	path = defaultGitPath

	if idx := strings.LastIndex(repoURL, "#"); idx >= 0 {
		ref := repoURL[idx+1:]
		repoURL = repoURL[:idx]
		if colon := strings.Index(ref, ":"); colon >= 0 {
			if ref[:colon] != "" {
				branch = ref[:colon]
			}
			if ref[colon+1:] != "" {
				path = ref[colon+1:]
			}
		} else if ref != "" {
			branch = ref
		}
	}
	return repoURL, branch, path
}
