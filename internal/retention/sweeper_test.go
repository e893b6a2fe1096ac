package retention

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sandeshaa/backend/internal/config"
	"sandeshaa/backend/internal/domain"
	"sandeshaa/backend/internal/monitoring"
	"sandeshaa/backend/internal/storage/memory"
)

// 包内共享一份指标实例：promauto 注册在默认 Registry，重复注册会 panic
var testMetrics = monitoring.NewMetrics()

// fakeBlobStore 记录删除调用，可按存储名注入删除失败
type fakeBlobStore struct {
	mu      sync.Mutex
	deleted []string
	failOn  map[string]bool
}

func (f *fakeBlobStore) Delete(storedName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn[storedName] {
		return errors.New("disk unavailable")
	}
	f.deleted = append(f.deleted, storedName)
	return nil
}

func newTestSweeper(t *testing.T, store *memory.Store, blobs *fakeBlobStore, cfg config.RetentionConfig) *Sweeper {
	t.Helper()
	if cfg.MessageMaxAge == 0 {
		cfg.MessageMaxAge = 7 * 24 * time.Hour
	}
	if cfg.FileMaxAge == 0 {
		cfg.FileMaxAge = 24 * time.Hour
	}
	cfg.MessageSweepInterval = time.Hour
	cfg.FileSweepInterval = time.Hour
	return NewSweeper(store, blobs, testMetrics, zap.NewNop(), cfg)
}

func TestSweeper_SweepMessages(t *testing.T) {
	store := memory.NewStore()
	blobs := &fakeBlobStore{}
	sweeper := newTestSweeper(t, store, blobs, config.RetentionConfig{})

	require.NoError(t, store.AppendEnvelope(&domain.Envelope{FromUserID: "a", ToUserID: "b", Payload: "x"}))

	t.Run("窗口内的消息保留", func(t *testing.T) {
		sweeper.SweepMessages()
		backlog, err := store.ListUndeliveredEnvelopes("b")
		require.NoError(t, err)
		assert.Len(t, backlog, 1)
	})

	t.Run("窗口外的消息被清除", func(t *testing.T) {
		// 把时钟拨到窗口之后
		sweeper.now = func() time.Time { return time.Now().UTC().Add(8 * 24 * time.Hour) }
		sweeper.SweepMessages()

		backlog, err := store.ListUndeliveredEnvelopes("b")
		require.NoError(t, err)
		assert.Empty(t, backlog)
	})

	t.Run("重复清扫幂等", func(t *testing.T) {
		sweeper.SweepMessages()
		backlog, err := store.ListUndeliveredEnvelopes("b")
		require.NoError(t, err)
		assert.Empty(t, backlog)
	})
}

func TestSweeper_SweepFiles(t *testing.T) {
	store := memory.NewStore()
	blobs := &fakeBlobStore{}
	sweeper := newTestSweeper(t, store, blobs, config.RetentionConfig{})

	envelope := &domain.FileEnvelope{
		FromUserID: "a", ToUserID: "b",
		Filename: "doc.pdf", StoredName: "blob-1", Size: 10,
	}
	require.NoError(t, store.CreateFileEnvelope(envelope))

	t.Run("窗口内的文件保留", func(t *testing.T) {
		sweeper.SweepFiles()
		_, err := store.GetFileEnvelope(envelope.ID)
		assert.NoError(t, err)
		assert.Empty(t, blobs.deleted)
	})

	t.Run("窗口外先删文件再删记录", func(t *testing.T) {
		sweeper.now = func() time.Time { return time.Now().UTC().Add(48 * time.Hour) }
		sweeper.SweepFiles()

		assert.Equal(t, []string{"blob-1"}, blobs.deleted)
		_, err := store.GetFileEnvelope(envelope.ID)
		assert.Error(t, err)
	})
}

func TestSweeper_SweepFilesBlobFailureStillDeletesRecord(t *testing.T) {
	store := memory.NewStore()
	blobs := &fakeBlobStore{failOn: map[string]bool{"blob-bad": true}}
	sweeper := newTestSweeper(t, store, blobs, config.RetentionConfig{})
	sweeper.now = func() time.Time { return time.Now().UTC().Add(48 * time.Hour) }

	bad := &domain.FileEnvelope{FromUserID: "a", ToUserID: "b", Filename: "bad.pdf", StoredName: "blob-bad"}
	good := &domain.FileEnvelope{FromUserID: "a", ToUserID: "b", Filename: "good.pdf", StoredName: "blob-good"}
	require.NoError(t, store.CreateFileEnvelope(bad))
	require.NoError(t, store.CreateFileEnvelope(good))

	sweeper.SweepFiles()

	// 磁盘删除失败不拦截记录删除，也不影响同轮其它条目
	_, err := store.GetFileEnvelope(bad.ID)
	assert.Error(t, err)
	_, err = store.GetFileEnvelope(good.ID)
	assert.Error(t, err)
	assert.Equal(t, []string{"blob-good"}, blobs.deleted)
}

func TestSweeper_IndependentWindows(t *testing.T) {
	store := memory.NewStore()
	blobs := &fakeBlobStore{}
	sweeper := newTestSweeper(t, store, blobs, config.RetentionConfig{
		MessageMaxAge: 7 * 24 * time.Hour,
		FileMaxAge:    24 * time.Hour,
	})

	require.NoError(t, store.AppendEnvelope(&domain.Envelope{FromUserID: "a", ToUserID: "b", Payload: "x"}))
	file := &domain.FileEnvelope{FromUserID: "a", ToUserID: "b", Filename: "f.pdf", StoredName: "blob-f"}
	require.NoError(t, store.CreateFileEnvelope(file))

	// 过了文件窗口但还在消息窗口内：只清文件
	sweeper.now = func() time.Time { return time.Now().UTC().Add(48 * time.Hour) }
	sweeper.sweepOnce()

	backlog, err := store.ListUndeliveredEnvelopes("b")
	require.NoError(t, err)
	assert.Len(t, backlog, 1)

	_, err = store.GetFileEnvelope(file.ID)
	assert.Error(t, err)
}

func TestSweeper_RunStopsOnContextCancel(t *testing.T) {
	store := memory.NewStore()
	sweeper := newTestSweeper(t, store, &fakeBlobStore{}, config.RetentionConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sweeper.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop after context cancel")
	}
}
