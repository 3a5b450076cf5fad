package sync

import (
	"context"
	"net/http"
	"net/http/httptest"
	gosync "sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/deptrack/deptrack/pkg/hostlimit"
	"github.com/deptrack/deptrack/pkg/manifest"
	"github.com/deptrack/deptrack/pkg/model"
	"github.com/deptrack/deptrack/pkg/store"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.Team{},
		&model.TeamManifestConfig{},
		&model.Service{},
		&model.DependencyAlias{},
		&model.CanonicalOverride{},
		&model.DependencyAssociation{},
		&model.DriftFlag{},
		&model.SyncHistoryEntry{},
	))
	return db
}

// manifestServer serves a mutable manifest body so tests can change desired
// state between runs.
type manifestServer struct {
	mu   gosync.Mutex
	body string
	srv  *httptest.Server

	// hold, when non-nil, blocks request handling until closed.
	hold chan struct{}
}

func newManifestServer(t *testing.T, body string) *manifestServer {
	t.Helper()
	ms := &manifestServer{body: body}
	ms.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		ms.mu.Lock()
		hold := ms.hold
		body := ms.body
		ms.mu.Unlock()
		if hold != nil {
			<-hold
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ms.srv.Close)
	return ms
}

func (ms *manifestServer) setBody(body string) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.body = body
}

func (ms *manifestServer) holdRequests() chan struct{} {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.hold = make(chan struct{})
	return ms.hold
}

func (ms *manifestServer) releaseRequests() {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.hold != nil {
		close(ms.hold)
		ms.hold = nil
	}
}

type testEnv struct {
	db          *gorm.DB
	coordinator *Coordinator
	server      *manifestServer
	teamID      string
}

func setupEnv(t *testing.T, manifestBody string, opts ...Option) *testEnv {
	t.Helper()
	db := setupTestDB(t)
	server := newManifestServer(t, manifestBody)

	teamID := uuid.New().String()
	require.NoError(t, store.NewTeamStore(db).Create(&model.Team{ID: teamID, Name: "payments"}))
	require.NoError(t, store.NewManifestConfigStore(db).Upsert(&model.TeamManifestConfig{
		TeamID:      teamID,
		ManifestURL: server.srv.URL,
		Enabled:     true,
	}))

	fetcher := manifest.NewFetcher(hostlimit.New(4), server.srv.Client(), 5*time.Second)
	return &testEnv{
		db:          db,
		coordinator: NewCoordinator(db, fetcher, opts...),
		server:      server,
		teamID:      teamID,
	}
}

func (e *testEnv) run(t *testing.T) *Outcome {
	t.Helper()
	outcome, err := e.coordinator.RunSync(context.Background(), e.teamID, Trigger{Type: model.TriggerManual, By: "tester"})
	require.NoError(t, err)
	return outcome
}

func (e *testEnv) serviceByKey(t *testing.T, key string) *model.Service {
	t.Helper()
	var svc model.Service
	err := e.db.Where("team_id = ? AND manifest_key = ?", e.teamID, key).First(&svc).Error
	require.NoError(t, err)
	return &svc
}

func (e *testEnv) historyCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, e.db.Model(&model.SyncHistoryEntry{}).Where("team_id = ?", e.teamID).Count(&count).Error)
	return count
}
