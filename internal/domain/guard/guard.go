// Package guard is the non-reentrant lock held by every fund-moving operation.
// A second entry while the lock is held fails immediately instead of waiting.
package guard

import (
	"context"
	"sync"

	"yield-agreement-backend/internal/domain/apperr"
)

var ErrReentrantCall = apperr.New(apperr.KindConflict, "reentrant call rejected: another fund-moving operation is in flight")

// Guard hands out a release func that must be called on every exit path.
type Guard interface {
	Enter(ctx context.Context) (release func(), err error)
}

// Local guards a single process.
type Local struct{ mu sync.Mutex }

func NewLocal() *Local { return &Local{} }

func (g *Local) Enter(context.Context) (func(), error) {
	if !g.mu.TryLock() {
		return nil, ErrReentrantCall
	}
	var once sync.Once
	return func() { once.Do(g.mu.Unlock) }, nil
}
