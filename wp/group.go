package wp

import "sync"

// Group tracks a set of tasks submitted to a Pool so the caller can wait
// for all of them.
type Group struct {
	pool *Pool
	wg   sync.WaitGroup
}

func (p *Pool) Group() *Group {
	return &Group{pool: p}
}

// Submit behaves like Pool.Submit. Rejected tasks do not count towards Wait.
func (g *Group) Submit(uid string, task func()) bool {
	if task == nil {
		return false
	}

	g.wg.Add(1)
	ok := g.pool.Submit(uid, func() {
		defer g.wg.Done()
		task()
	})
	if !ok {
		g.wg.Done()
	}
	return ok
}

func (g *Group) Wait() {
	g.wg.Wait()
}
