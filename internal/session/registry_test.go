package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// fakeChannel 测试用通道
type fakeChannel struct {
	mu        sync.Mutex
	delivered [][]byte
	closed    bool
}

func (f *fakeChannel) Deliver(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = append(f.delivered, data)
	return nil
}

func (f *fakeChannel) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	registry := NewRegistry()
	ch := &fakeChannel{}

	t.Run("注册后可查找", func(t *testing.T) {
		prev := registry.Register("user-1", ch)
		assert.Nil(t, prev)
		assert.Same(t, ch, registry.Lookup("user-1"))
		assert.Equal(t, 1, registry.Len())
	})

	t.Run("未注册身份查找返回nil", func(t *testing.T) {
		assert.Nil(t, registry.Lookup("user-2"))
	})
}

func TestRegistry_RegisterReplacesPrevious(t *testing.T) {
	registry := NewRegistry()
	first := &fakeChannel{}
	second := &fakeChannel{}

	registry.Register("user-1", first)
	prev := registry.Register("user-1", second)

	assert.Same(t, first, prev)
	assert.Same(t, second, registry.Lookup("user-1"))
	assert.Equal(t, 1, registry.Len())
}

func TestRegistry_UnregisterGuard(t *testing.T) {
	registry := NewRegistry()
	first := &fakeChannel{}
	second := &fakeChannel{}

	t.Run("当前通道注销成功", func(t *testing.T) {
		registry.Register("user-1", first)
		assert.True(t, registry.Unregister("user-1", first))
		assert.Nil(t, registry.Lookup("user-1"))
	})

	t.Run("过期通道注销为空操作", func(t *testing.T) {
		registry.Register("user-1", first)
		registry.Register("user-1", second)

		// 旧连接的延迟清理不得摘掉新连接
		assert.False(t, registry.Unregister("user-1", first))
		assert.Same(t, second, registry.Lookup("user-1"))
	})

	t.Run("未注册身份注销为空操作", func(t *testing.T) {
		assert.False(t, registry.Unregister("ghost", first))
	})
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	registry := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch := &fakeChannel{}
			prev := registry.Register("user-1", ch)
			if prev != nil {
				prev.Close()
			}
			registry.Lookup("user-1")
			registry.Unregister("user-1", ch)
		}()
	}
	wg.Wait()

	// 最终要么为空，要么恰好剩最后胜出的通道
	assert.LessOrEqual(t, registry.Len(), 1)
}
