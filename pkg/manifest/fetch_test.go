package manifest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deptrack/deptrack/pkg/hostlimit"
)

func TestFetchHTTPSuccess(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte("version: 1\n"))
	}))
	defer srv.Close()

	f := NewFetcher(hostlimit.New(2), srv.Client(), 0)
	data, err := f.Fetch(context.Background(), srv.URL, "tok-123")
	require.NoError(t, err)
	assert.Equal(t, "version: 1\n", string(data))
	assert.Equal(t, "Bearer tok-123", gotAuth)
}

func TestFetchHTTPNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := NewFetcher(hostlimit.New(2), srv.Client(), 0)
	_, err := f.Fetch(context.Background(), srv.URL, "")

	var ferr *FetchError
	require.True(t, errors.As(err, &ferr))
	assert.Equal(t, http.StatusServiceUnavailable, ferr.StatusCode)
}

func TestFetchRejectedWhenHostBudgetExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("version: 1\n"))
	}))
	defer srv.Close()

	limiter := hostlimit.New(1)
	host, err := hostlimit.HostOf(srv.URL)
	require.NoError(t, err)
	require.True(t, limiter.Acquire(host)) // exhaust the budget

	f := NewFetcher(limiter, srv.Client(), 0)
	_, err = f.Fetch(context.Background(), srv.URL, "")

	var ferr *FetchError
	require.True(t, errors.As(err, &ferr))
	assert.Contains(t, ferr.Error(), "host concurrency limit")

	// The slot held before the fetch is still held; the rejected fetch must
	// not have released it.
	assert.Equal(t, 1, limiter.InFlight(host))
}

func TestFetchReleasesSlotAfterRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	limiter := hostlimit.New(1)
	f := NewFetcher(limiter, srv.Client(), 0)

	_, err := f.Fetch(context.Background(), srv.URL, "")
	require.NoError(t, err)

	host, _ := hostlimit.HostOf(srv.URL)
	assert.Equal(t, 0, limiter.InFlight(host))
}

func TestFetchInvalidURL(t *testing.T) {
	f := NewFetcher(hostlimit.New(1), nil, 0)
	_, err := f.Fetch(context.Background(), "not a url", "")
	var ferr *FetchError
	require.True(t, errors.As(err, &ferr))
}

func TestSplitGitURL(t *testing.T) {
	tests := []struct {
		in     string
		repo   string
		branch string
		path   string
	}{
		{
			"git+https://git.example.com/org/repo.git#release:manifests/team.yaml",
			"https://git.example.com/org/repo.git", "release", "manifests/team.yaml",
		},
		{
			"git+https://git.example.com/org/repo.git#develop",
			"https://git.example.com/org/repo.git", "develop", "deptrack.yaml",
		},
		{
			"git+https://git.example.com/org/repo.git",
			"https://git.example.com/org/repo.git", "main", "deptrack.yaml",
		},
	}
	for _, tc := range tests {
		repo, branch, path := splitGitURL(tc.in)
		assert.Equal(t, tc.repo, repo, tc.in)
		assert.Equal(t, tc.branch, branch, tc.in)
		assert.Equal(t, tc.path, path, tc.in)
	}
}
