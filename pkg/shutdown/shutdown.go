// Package shutdown runs registered cleanup callbacks under a deadline.
package shutdown

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Handler 关闭处理函数
type Handler func(ctx context.Context) error

type namedHandler struct {
	name string
	fn   Handler
}

// Manager 优雅关闭管理器
type Manager struct {
	callbacks []namedHandler
	mu        sync.Mutex
	log       *logrus.Entry
}

// NewManager 创建新的关闭管理器
func NewManager() *Manager {
	return &Manager{log: logrus.WithField("component", "shutdown")}
}

// OnShutdown 注册关闭回调
func (m *Manager) OnShutdown(name string, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, namedHandler{name: name, fn: handler})
}

// Shutdown runs every callback concurrently and waits for them or ctx.
// It returns the number of callbacks that failed or did not finish in time.
func (m *Manager) Shutdown(ctx context.Context) int {
	m.mu.Lock()
	callbacks := append([]namedHandler(nil), m.callbacks...)
	m.mu.Unlock()

	if len(callbacks) == 0 {
		m.log.Info("没有注册的关闭回调")
		return 0
	}
	m.log.Infof("开始优雅关闭，共 %d 个回调", len(callbacks))

	var (
		wg       sync.WaitGroup
		failedMu sync.Mutex
		pending  = make(map[string]bool, len(callbacks))
		failed   int
	)
	for _, cb := range callbacks {
		pending[cb.name] = true
	}
	wg.Add(len(callbacks))
	for _, cb := range callbacks {
		go func(h namedHandler) {
			defer wg.Done()
			err := h.fn(ctx)
			failedMu.Lock()
			defer failedMu.Unlock()
			delete(pending, h.name)
			if err != nil {
				failed++
				m.log.WithError(err).WithField("callback", h.name).Warn("shutdown callback failed")
			}
		}(cb)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.log.Info("所有关闭回调已完成")
		return failed
	case <-ctx.Done():
		failedMu.Lock()
		defer failedMu.Unlock()
		names := make([]string, 0, len(pending))
		for name := range pending {
			names = append(names, name)
		}
		m.log.WithField("pending", names).Warnf("关闭超时: %v", ctx.Err())
		return failed + len(pending)
	}
}
