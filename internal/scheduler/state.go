package scheduler

import (
	"sync"
	"time"
)

// State 记录每个数据源最近一次成功处理的时间，仅在内存中，重启后清空
type State struct {
	mu   sync.RWMutex
	last map[string]time.Time
}

func NewState() *State {
	return &State{last: make(map[string]time.Time)}
}

func (s *State) LastProcessed(source string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.last[source]
	return t, ok
}

func (s *State) MarkProcessed(source string, at time.Time) {
	s.mu.Lock()
	s.last[source] = at
	s.mu.Unlock()
}

// Snapshot 返回副本，调用方可随意读取
func (s *State) Snapshot() map[string]time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]time.Time, len(s.last))
	for k, v := range s.last {
		out[k] = v
	}
	return out
}
