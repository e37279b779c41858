package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aigoflow/catdog-classifier/internal/repository"
	"github.com/aigoflow/catdog-classifier/internal/store"
)

func newTestRepo(t *testing.T) repository.Repository {
	t.Helper()
	db, err := store.Open("sqlite://" + filepath.Join(t.TempDir(), "services.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return repository.NewSQLRepository(db)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(ctx context.Context, eventType string, data interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}
