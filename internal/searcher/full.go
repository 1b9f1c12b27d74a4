package searcher

import (
	"time"

	"github.com/zuqini/CLTune/internal/kernel"
)

// FullSearch visits every valid configuration exactly once, in generation
// order.
type FullSearch struct {
	configs []kernel.Configuration
	next    int
}

// NewFullSearch creates an exhaustive search over the valid set.
func NewFullSearch(configs []kernel.Configuration) *FullSearch {
	return &FullSearch{configs: configs}
}

func (s *FullSearch) Next() (kernel.Configuration, error) {
	if s.next >= len(s.configs) {
		return nil, ErrExhausted
	}
	cfg := s.configs[s.next]
	s.next++
	return cfg, nil
}

func (s *FullSearch) PushExecutionTime(time.Duration) {}

func (s *FullSearch) Done() bool {
	return s.next >= len(s.configs)
}

func (s *FullSearch) Progress() float64 {
	if len(s.configs) == 0 {
		return 1
	}
	return float64(s.next) / float64(len(s.configs))
}
