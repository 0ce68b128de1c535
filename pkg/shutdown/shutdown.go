// Package shutdown coordinates graceful teardown of long-running tools. Parts
// of the program register handlers (stop pollers, log out of the exchange,
// flush logs) and main runs them all once on SIGINT/SIGTERM.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"
)

// Handler is one teardown step. It must respect ctx: when the context
// expires the step is abandoned.
type Handler func(ctx context.Context)

// Manager collects teardown handlers and runs them concurrently.
type Manager struct {
	mu       sync.Mutex
	handlers []Handler
	done     bool
}

func NewManager() *Manager {
	return &Manager{}
}

// OnShutdown registers a teardown handler. Registration after Shutdown has
// run is ignored.
func (m *Manager) OnShutdown(h Handler) {
	if h == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done {
		return
	}
	m.handlers = append(m.handlers, h)
}

// Shutdown runs every registered handler and blocks until they finish or ctx
// expires. It is safe to call more than once; only the first call runs the
// handlers.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	if m.done {
		m.mu.Unlock()
		return
	}
	m.done = true
	handlers := m.handlers
	m.handlers = nil
	m.mu.Unlock()

	finished := make(chan struct{})
	var wg sync.WaitGroup
	for _, h := range handlers {
		wg.Add(1)
		go func(h Handler) {
			defer wg.Done()
			h(ctx)
		}(h)
	}
	go func() {
		wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-ctx.Done():
		logrus.Warn("shutdown deadline exceeded, abandoning remaining handlers")
	}
}

// NotifyContext returns a context cancelled on SIGINT or SIGTERM.
func NotifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
