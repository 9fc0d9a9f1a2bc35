package tensor

import (
	"fmt"
	"sync"
)

// Verify that MockContext implements Context.
var _ Context = (*MockContext)(nil)

// MockContext is a slice-backed context for testing.
// It can be told to refuse allocations and counts Sync calls.
type MockContext struct {
	mu       sync.Mutex
	live     int
	syncs    int
	failFrom int // allocation index from which Alloc fails; 0 disables
	allocs   int
}

// NewMockContext creates a new MockContext.
func NewMockContext() *MockContext {
	return &MockContext{}
}

// FailAfter makes every allocation after the first n fail with ErrAllocation.
func (m *MockContext) FailAfter(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failFrom = n + 1
}

// Name returns the context name.
func (m *MockContext) Name() string {
	return "mock"
}

// Device returns the device type.
func (m *MockContext) Device() Device {
	return CPU
}

// Alloc returns a zeroed slice-backed buffer.
func (m *MockContext) Alloc(n int) (Buffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.allocs++
	if n <= 0 || (m.failFrom > 0 && m.allocs >= m.failFrom) {
		return nil, fmt.Errorf("%w: mock refused allocation %d of %d elements", ErrAllocation, m.allocs, n)
	}
	m.live++
	return &mockBuffer{data: make([]float32, n), ctx: m}, nil
}

// Sync counts calls.
func (m *MockContext) Sync() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncs++
	return nil
}

// Live returns the number of unreleased buffers.
func (m *MockContext) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live
}

// Syncs returns the number of Sync calls.
func (m *MockContext) Syncs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.syncs
}

type mockBuffer struct {
	data []float32
	ctx  *MockContext
	once sync.Once
}

func (b *mockBuffer) Len() int           { return len(b.data) }
func (b *mockBuffer) Float32() []float32 { return b.data }

func (b *mockBuffer) Release() {
	b.once.Do(func() {
		b.ctx.mu.Lock()
		b.ctx.live--
		b.ctx.mu.Unlock()
	})
}
