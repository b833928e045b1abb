package voting

import "sync"

// Locks serializes vote submissions per poll id. Two submissions that both
// read a poll before either append would otherwise both pass the ipChecking
// and multiple checks, so the read-validate-append-save sequence runs under
// the poll's lock.
type Locks struct {
	mtx   sync.Mutex
	polls map[string]*pollLock
}

type pollLock struct {
	mtx  sync.Mutex
	refs int
}

func NewLocks() *Locks {
	return &Locks{polls: map[string]*pollLock{}}
}

// Lock acquires the lock for the poll id and returns its release func.
func (l *Locks) Lock(id string) func() {
	l.mtx.Lock()
	p, ok := l.polls[id]
	if !ok {
		p = &pollLock{}
		l.polls[id] = p
	}
	p.refs++
	l.mtx.Unlock()

	p.mtx.Lock()
	return func() {
		p.mtx.Unlock()
		l.mtx.Lock()
		p.refs--
		if p.refs == 0 {
			delete(l.polls, id)
		}
		l.mtx.Unlock()
	}
}
