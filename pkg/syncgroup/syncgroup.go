// Package syncgroup wraps sync.WaitGroup for goroutine sets that are declared
// up front and started together, so Add/Done bookkeeping cannot be missed.
package syncgroup

import "sync"

// Group runs a batch of functions as goroutines and waits for all of them.
type Group struct {
	wg sync.WaitGroup

	mu      sync.Mutex
	fns     []func()
	running int
}

func New() *Group {
	return &Group{}
}

// Add queues fn for the next Run. Adding while a previous batch is still
// running is rejected; Wait for the batch first.
func (g *Group) Add(fn func()) {
	if fn == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running > 0 {
		return
	}
	g.fns = append(g.fns, fn)
}

// Run starts every queued function in its own goroutine and clears the queue.
func (g *Group) Run() {
	g.mu.Lock()
	if g.running > 0 {
		g.mu.Unlock()
		return
	}
	fns := g.fns
	g.fns = nil
	g.running = len(fns)
	g.mu.Unlock()

	for _, fn := range fns {
		g.wg.Add(1)
		go func(fn func()) {
			defer func() {
				g.wg.Done()
				g.mu.Lock()
				g.running--
				g.mu.Unlock()
			}()
			fn()
		}(fn)
	}
}

// Wait blocks until the running batch finishes.
func (g *Group) Wait() {
	g.wg.Wait()
}
