package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sandeshaa/backend/internal/domain"
	"sandeshaa/backend/internal/storage"
	"sandeshaa/backend/internal/storage/memory"
)

func seedConversation(t *testing.T, store *memory.Store) {
	t.Helper()
	require.NoError(t, store.CreateUser(&domain.User{ID: "a", Username: "alice", IsActive: true}))
	require.NoError(t, store.CreateUser(&domain.User{ID: "b", Username: "bob", IsActive: true}))

	for _, pair := range [][2]string{{"a", "b"}, {"b", "a"}, {"a", "b"}} {
		require.NoError(t, store.AppendEnvelope(&domain.Envelope{
			FromUserID: pair[0], ToUserID: pair[1], Payload: "m",
		}))
	}
}

func TestMessageService_History(t *testing.T) {
	store := memory.NewStore()
	seedConversation(t, store)
	service := NewMessageService(store)

	t.Run("返回双向历史", func(t *testing.T) {
		envelopes, err := service.History("a", "bob", 0)
		require.NoError(t, err)
		assert.Len(t, envelopes, 3)
	})

	t.Run("对端大小写不敏感", func(t *testing.T) {
		envelopes, err := service.History("a", "BOB", 0)
		require.NoError(t, err)
		assert.Len(t, envelopes, 3)
	})

	t.Run("limit 截取最近N条", func(t *testing.T) {
		envelopes, err := service.History("a", "bob", 2)
		require.NoError(t, err)
		assert.Len(t, envelopes, 2)
	})

	t.Run("未知对端", func(t *testing.T) {
		_, err := service.History("a", "ghost", 0)
		assert.ErrorIs(t, err, storage.ErrUserNotFound)
	})
}

func TestMessageService_ListConversations(t *testing.T) {
	store := memory.NewStore()
	seedConversation(t, store)
	service := NewMessageService(store)

	conversations, err := service.ListConversations("a")
	require.NoError(t, err)
	require.Len(t, conversations, 1)
	assert.Equal(t, "bob", conversations[0].PeerUsername)
	assert.EqualValues(t, 3, conversations[0].MessageCount)
}

func TestMessageService_ClearConversation(t *testing.T) {
	store := memory.NewStore()
	seedConversation(t, store)
	service := NewMessageService(store)

	deleted, err := service.ClearConversation("a", "bob")
	require.NoError(t, err)
	assert.EqualValues(t, 3, deleted)

	t.Run("清空后历史为空", func(t *testing.T) {
		envelopes, err := service.History("a", "bob", 0)
		require.NoError(t, err)
		assert.Empty(t, envelopes)
	})

	t.Run("重复清空幂等", func(t *testing.T) {
		deleted, err := service.ClearConversation("a", "bob")
		require.NoError(t, err)
		assert.Zero(t, deleted)
	})

	t.Run("未知对端", func(t *testing.T) {
		_, err := service.ClearConversation("a", "ghost")
		assert.ErrorIs(t, err, storage.ErrUserNotFound)
	})
}
