package engine

import (
	"context"
	"sync"
)

// Mock 操作名（用于 Calls / FailNext / Hold）
const (
	OpGetConfig    = "GetConfig"
	OpSubmitConfig = "SubmitConfig"
	OpStart        = "Start"
	OpStop         = "Stop"
)

// Mock is an in-memory engine for tests and local runs.
type Mock struct {
	mu sync.Mutex

	// Document is what GetConfig returns; a successful SubmitConfig replaces it.
	Document string
	// Running 反映最近一次成功的 Start/Stop
	Running bool

	// Call tracking
	Calls     map[string]int
	Submitted []string

	// Error injection
	ErrorOnNext map[string]error

	holds map[string]*hold
}

type hold struct {
	entered chan struct{}
	release chan struct{}
}

var _ Engine = (*Mock)(nil)

// NewMock creates a mock engine serving document.
func NewMock(document string) *Mock {
	return &Mock{
		Document:    document,
		Calls:       make(map[string]int),
		ErrorOnNext: make(map[string]error),
		holds:       make(map[string]*hold),
	}
}

// FailNext makes the next call of op return err.
func (m *Mock) FailNext(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ErrorOnNext[op] = err
}

// Hold makes the next call of op block until release is called or the call's context ends.
// entered is closed once the call has arrived.
func (m *Mock) Hold(op string) (entered <-chan struct{}, release func()) {
	h := &hold{entered: make(chan struct{}), release: make(chan struct{})}
	m.mu.Lock()
	m.holds[op] = h
	m.mu.Unlock()
	var once sync.Once
	return h.entered, func() { once.Do(func() { close(h.release) }) }
}

// CallCount 返回某操作被调用的次数
func (m *Mock) CallCount(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls[op]
}

// CurrentDocument 返回当前引擎侧配置
func (m *Mock) CurrentDocument() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Document
}

// IsRunning 返回引擎是否处于运行状态
func (m *Mock) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Running
}

func (m *Mock) trackCall(ctx context.Context, name string) error {
	m.mu.Lock()
	m.Calls[name]++
	h := m.holds[name]
	delete(m.holds, name)
	err, injected := m.ErrorOnNext[name]
	if injected {
		delete(m.ErrorOnNext, name)
	}
	m.mu.Unlock()

	if h != nil {
		close(h.entered)
		select {
		case <-h.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if injected {
		return err
	}
	return ctx.Err()
}

func (m *Mock) GetConfig(ctx context.Context) (string, error) {
	if err := m.trackCall(ctx, OpGetConfig); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Document, nil
}

func (m *Mock) SubmitConfig(ctx context.Context, document string) error {
	if err := m.trackCall(ctx, OpSubmitConfig); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Submitted = append(m.Submitted, document)
	m.Document = document
	return nil
}

func (m *Mock) Start(ctx context.Context) error {
	if err := m.trackCall(ctx, OpStart); err != nil {
		return err
	}
	m.mu.Lock()
	m.Running = true
	m.mu.Unlock()
	return nil
}

func (m *Mock) Stop(ctx context.Context) error {
	if err := m.trackCall(ctx, OpStop); err != nil {
		return err
	}
	m.mu.Lock()
	m.Running = false
	m.mu.Unlock()
	return nil
}
