// memory.Store 的模拟实现，支持错误注入。
package mocks

import (
	"context"
	"sync"

	"github.com/BaSui01/agentloop/agent/memory"
)

// MockStore 是 memory.Store 的模拟实现
type MockStore struct {
	mu sync.Mutex

	data map[string][]memory.Exchange

	loadErr   error
	appendErr error
	appends   int
}

// NewMockStore 创建新的 MockStore
func NewMockStore() *MockStore {
	return &MockStore{data: make(map[string][]memory.Exchange)}
}

// WithLoadError 设置 Load 错误
func (m *MockStore) WithLoadError(err error) *MockStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadErr = err
	return m
}

// WithAppendError 设置 Append 错误
func (m *MockStore) WithAppendError(err error) *MockStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendErr = err
	return m
}

// Seed 预置会话数据
func (m *MockStore) Seed(sessionID string, exchanges ...memory.Exchange) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[sessionID] = append(m.data[sessionID], exchanges...)
}

// Load 实现 memory.Store
func (m *MockStore) Load(ctx context.Context, sessionID string) ([]memory.Exchange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return append([]memory.Exchange(nil), m.data[sessionID]...), nil
}

// Append 实现 memory.Store
func (m *MockStore) Append(ctx context.Context, sessionID string, ex memory.Exchange, keep int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appends++
	if m.appendErr != nil {
		return m.appendErr
	}
	list := append(m.data[sessionID], ex)
	if keep > 0 && len(list) > keep {
		list = list[len(list)-keep:]
	}
	m.data[sessionID] = list
	return nil
}

// Delete 实现 memory.Store
func (m *MockStore) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, sessionID)
	return nil
}

// AppendCount 返回 Append 调用次数
func (m *MockStore) AppendCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appends
}
