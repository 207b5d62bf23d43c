/*
   A join counter that doesn't trip up the race detector the way WaitGroup
   can when Add and Wait race across goroutines. Add(1)/Done() bracket a
   unit of work, Wait() blocks until the count drains back to zero.
*/
package semaphore

import (
	"sync"
)

type Semaphore struct {
	cond  *sync.Cond
	lock  sync.Mutex
	count int
}

func New() *Semaphore {
	s := &Semaphore{}
	s.cond = sync.NewCond(&s.lock)
	return s
}

func (sm *Semaphore) Reset() {
	sm.count = 0
	sm.cond.Broadcast()
}

func (sm *Semaphore) Add(i int) {
	sm.lock.Lock()
	defer sm.lock.Unlock()

	sm.count += i
	if sm.count <= 0 {
		sm.cond.Broadcast()
	}
}

func (sm *Semaphore) Done() {
	sm.Add(-1)
}

// Wait blocks until the count drains to zero or below, mirroring
// sync.WaitGroup.Wait. count > 0 means work is still outstanding.
func (sm *Semaphore) Wait() {
	sm.lock.Lock()
	defer sm.lock.Unlock()

	for sm.count > 0 {
		sm.cond.Wait()
	}
}
