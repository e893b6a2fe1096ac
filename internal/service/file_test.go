package service

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sandeshaa/backend/internal/domain"
	"sandeshaa/backend/internal/security"
	"sandeshaa/backend/internal/storage"
	"sandeshaa/backend/internal/storage/filesystem"
	"sandeshaa/backend/internal/storage/memory"
)

func newTestFileService(t *testing.T) (*FileService, *memory.Store, *filesystem.Store) {
	t.Helper()
	store := memory.NewStore()
	blobs, err := filesystem.NewStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.CreateUser(&domain.User{ID: "a", Username: "alice", IsActive: true}))
	require.NoError(t, store.CreateUser(&domain.User{ID: "b", Username: "bob", IsActive: true}))

	return NewFileService(store, blobs, 1024*1024, zap.NewNop()), store, blobs
}

func validUpload(content string) UploadInput {
	return UploadInput{
		FromUserID:  "a",
		ToUsername:  "bob",
		Filename:    "report.pdf",
		Size:        int64(len(content)),
		ContentType: "application/pdf",
		Content:     strings.NewReader(content),
	}
}

func TestFileService_Upload(t *testing.T) {
	service, store, blobs := newTestFileService(t)

	t.Run("正常上传", func(t *testing.T) {
		envelope, err := service.Upload(validUpload("encrypted file"))
		require.NoError(t, err)
		assert.NotEmpty(t, envelope.ID)
		assert.Equal(t, "b", envelope.ToUserID)
		assert.Equal(t, "report.pdf", envelope.Filename)
		assert.False(t, envelope.Delivered)
		assert.True(t, blobs.Exists(envelope.StoredName))
	})

	t.Run("收件人大小写不敏感", func(t *testing.T) {
		input := validUpload("x")
		input.ToUsername = "  BOB  "
		envelope, err := service.Upload(input)
		require.NoError(t, err)
		assert.Equal(t, "b", envelope.ToUserID)
	})

	t.Run("危险扩展名被拒", func(t *testing.T) {
		input := validUpload("x")
		input.Filename = "payload.exe"
		_, err := service.Upload(input)
		require.Error(t, err)

		var validationErr *security.ValidationError
		assert.True(t, errors.As(err, &validationErr))
	})

	t.Run("未知收件人不留孤儿Blob", func(t *testing.T) {
		input := validUpload("x")
		input.ToUsername = "ghost"
		_, err := service.Upload(input)
		assert.ErrorIs(t, err, storage.ErrUserNotFound)
	})

	t.Run("超大文件被拒", func(t *testing.T) {
		input := validUpload("x")
		input.Size = 2 * 1024 * 1024
		_, err := service.Upload(input)
		assert.Error(t, err)
	})

	// 只有两次成功上传留下记录
	expired, err := store.ListFileEnvelopesOlderThan(time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, expired, 2)
}

func TestFileService_Download(t *testing.T) {
	service, store, _ := newTestFileService(t)

	envelope, err := service.Upload(validUpload("encrypted file"))
	require.NoError(t, err)

	t.Run("发送方下载不翻转投递标志", func(t *testing.T) {
		got, content, err := service.Download(envelope.ID, "a")
		require.NoError(t, err)
		defer content.Close()

		data, err := io.ReadAll(content)
		require.NoError(t, err)
		assert.Equal(t, "encrypted file", string(data))
		assert.False(t, got.Delivered)

		stored, err := store.GetFileEnvelope(envelope.ID)
		require.NoError(t, err)
		assert.False(t, stored.Delivered)
	})

	t.Run("收件人下载即投递完成", func(t *testing.T) {
		got, content, err := service.Download(envelope.ID, "b")
		require.NoError(t, err)
		content.Close()
		assert.True(t, got.Delivered)

		stored, err := store.GetFileEnvelope(envelope.ID)
		require.NoError(t, err)
		assert.True(t, stored.Delivered)
	})

	t.Run("第三方访问被拒", func(t *testing.T) {
		_, _, err := service.Download(envelope.ID, "c")
		assert.ErrorIs(t, err, ErrFileAccessDenied)
	})

	t.Run("未知文件", func(t *testing.T) {
		_, _, err := service.Download("ghost", "a")
		assert.ErrorIs(t, err, storage.ErrFileEnvelopeNotFound)
	})
}

func TestFileService_DownloadMissingBlob(t *testing.T) {
	service, _, blobs := newTestFileService(t)

	envelope, err := service.Upload(validUpload("encrypted file"))
	require.NoError(t, err)

	// 模拟保留清理先删了磁盘内容
	require.NoError(t, blobs.Delete(envelope.StoredName))

	_, _, err = service.Download(envelope.ID, "b")
	assert.ErrorIs(t, err, ErrFileContentMissing)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"report.pdf", "report.pdf"},
		{"my file (1).pdf", "my file 1.pdf"},
		{"路径/evil.pdf", "evil.pdf"},
		{"semi;colon.pdf", "semicolon.pdf"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeFilename(tt.in))
	}
}
