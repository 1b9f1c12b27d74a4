package searcher

import (
	"math"
	"math/rand"
	"time"

	"github.com/zuqini/CLTune/internal/kernel"
)

// RandomSearch samples a fraction of the valid set without replacement, in
// random order.
type RandomSearch struct {
	configs []kernel.Configuration
	order   []int
	quota   int
	next    int
}

// NewRandomSearch creates a random search visiting round(fraction*N) unique
// configurations.
func NewRandomSearch(configs []kernel.Configuration, fraction float64, seed int64) *RandomSearch {
	rng := rand.New(rand.NewSource(seed))
	quota := int(math.Round(fraction * float64(len(configs))))
	if quota < 0 {
		quota = 0
	}
	if quota > len(configs) {
		quota = len(configs)
	}
	return &RandomSearch{
		configs: configs,
		order:   rng.Perm(len(configs)),
		quota:   quota,
	}
}

func (s *RandomSearch) Next() (kernel.Configuration, error) {
	if s.next >= s.quota {
		return nil, ErrExhausted
	}
	cfg := s.configs[s.order[s.next]]
	s.next++
	return cfg, nil
}

func (s *RandomSearch) PushExecutionTime(time.Duration) {}

func (s *RandomSearch) Done() bool {
	return s.next >= s.quota
}

func (s *RandomSearch) Progress() float64 {
	if s.quota == 0 {
		return 1
	}
	return float64(s.next) / float64(s.quota)
}
