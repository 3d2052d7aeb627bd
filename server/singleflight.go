package server

import (
	"sync"
)

// singleflight makes concurrent calls for the same key share one call of F.
type singleflight struct {
	F        func(string) (fixityReport, error) // function to do the work
	mu       sync.Mutex                         // controls everything below
	inflight map[string]*fetchrequest           // requests in progress
}

type fetchrequest struct {
	wg     sync.WaitGroup
	result fixityReport
	err    error
}

func (s *singleflight) Get(key string) (fixityReport, error) {
	// the first goroutine asking for a given key will do the work. Others
	// will wait until the result is ready.
	s.mu.Lock()
	if r, ok := s.inflight[key]; ok {
		s.mu.Unlock()
		r.wg.Wait()
		return r.result, r.err
	}
	r := &fetchrequest{}
	r.wg.Add(1)
	if s.inflight == nil {
		s.inflight = make(map[string]*fetchrequest)
	}
	s.inflight[key] = r
	s.mu.Unlock()
	defer func() {
		r.wg.Done()
		s.mu.Lock()
		delete(s.inflight, key)
		s.mu.Unlock()
	}()

	r.result, r.err = s.F(key)
	return r.result, r.err
}
