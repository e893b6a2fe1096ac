// Package session 维护「身份 -> 当前活跃通道」的进程级目录。
//
// 目录是整个服务唯一的共享可变内存结构：每个身份至多占一个槽位，
// 注册即原子替换，注销带通道校验防止旧连接误踢新连接。
// 目录不持久化，进程重启后为空，由重连时的积压回放补齐缺口。
package session

import "sync"

// Channel 是可向单个连接推送数据的通道抽象。
//
// Deliver 把一帧数据交给通道的发送队列，队列满或通道已关闭时返回错误，
// 调用方据此把这次推送按失败处理（信封保持未投递）。
type Channel interface {
	Deliver(data []byte) error
	Close()
}

// Registry 身份到活跃通道的并发安全目录
type Registry struct {
	mu       sync.RWMutex
	channels map[string]Channel // userID -> channel
}

// NewRegistry 创建一个空目录
func NewRegistry() *Registry {
	return &Registry{
		channels: make(map[string]Channel),
	}
}

// Register 注册身份的活跃通道，返回被替换的旧通道（可能为 nil）
//
// 同一身份的第二条连接替换而不是并存第一条；调用方负责关闭返回的旧通道，
// 保证任何时刻只有一条连接自认为是该身份的权威通道。
func (r *Registry) Register(userID string, ch Channel) Channel {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.channels[userID]
	r.channels[userID] = ch
	return prev
}

// Unregister 注销身份的通道
//
// 仅当 ch 仍是该身份当前注册的通道时才移除，
// 否则为空操作——迟到的断开事件不能踢掉更新的会话。
func (r *Registry) Unregister(userID string, ch Channel) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.channels[userID]
	if !ok || current != ch {
		return false
	}
	delete(r.channels, userID)
	return true
}

// Lookup 查询身份的当前活跃通道，离线返回 nil
func (r *Registry) Lookup(userID string) Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.channels[userID]
}

// Len 返回当前在线会话数
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.channels)
}
