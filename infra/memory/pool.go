package memory

import "sync"

// Pool is a typed free list for hot-path allocations. Each engine lane
// draws order objects from one and returns them when the book releases
// an order; a returned object must not be referenced afterwards.
type Pool[T any] struct {
	p *sync.Pool
}

func NewPool[T any](ctor func() *T) *Pool[T] {
	return &Pool[T]{
		p: &sync.Pool{
			New: func() any { return ctor() },
		},
	}
}

func (p *Pool[T]) Get() *T {
	return p.p.Get().(*T)
}

func (p *Pool[T]) Put(v *T) {
	p.p.Put(v)
}
