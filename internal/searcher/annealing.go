package searcher

import (
	"math"
	"math/rand"
	"time"

	"github.com/zuqini/CLTune/internal/kernel"
)

// temperatureFloor terminates annealing once the schedule has effectively
// frozen, regardless of the remaining iteration budget.
const temperatureFloor = 1e-9

// SimulatedAnnealing walks the valid set by perturbing one parameter of the
// current configuration at a time. Improvements are always accepted; regressions
// are accepted with probability exp(-delta/temperature), with the temperature
// decaying linearly over the iteration budget.
type SimulatedAnnealing struct {
	configs []kernel.Configuration
	params  []kernel.Parameter
	index   map[string]int
	rng     *rand.Rand

	budget  int
	maxTemp float64
	issued  int

	candidate   int
	current     int
	currentTime float64
	bestTime    float64
	started     bool
}

// NewAnnealing creates a simulated-annealing search with an iteration budget
// of round(fraction*N) and the given starting temperature.
func NewAnnealing(configs []kernel.Configuration, params []kernel.Parameter, fraction, maxTemperature float64, seed int64) *SimulatedAnnealing {
	budget := int(math.Round(fraction * float64(len(configs))))
	if budget < 1 {
		budget = 1
	}
	if maxTemperature <= 0 {
		maxTemperature = 1
	}
	index := make(map[string]int, len(configs))
	for i, cfg := range configs {
		index[cfg.Key(params)] = i
	}
	return &SimulatedAnnealing{
		configs:  configs,
		params:   params,
		index:    index,
		rng:      rand.New(rand.NewSource(seed)),
		budget:   budget,
		maxTemp:  maxTemperature,
		bestTime: math.Inf(1),
	}
}

func (s *SimulatedAnnealing) Next() (kernel.Configuration, error) {
	if s.Done() {
		return nil, ErrExhausted
	}
	if !s.started {
		s.candidate = s.rng.Intn(len(s.configs))
		s.started = true
	}
	s.issued++
	return s.configs[s.candidate], nil
}

func (s *SimulatedAnnealing) PushExecutionTime(t time.Duration) {
	if !s.started {
		return
	}
	sec := t.Seconds()
	if s.issued == 1 {
		s.current = s.candidate
		s.currentTime = sec
	} else {
		delta := sec - s.currentTime
		if delta < 0 || s.rng.Float64() < math.Exp(-delta/s.temperature()) {
			s.current = s.candidate
			s.currentTime = sec
		}
	}
	if sec < s.bestTime {
		s.bestTime = sec
	}
	s.candidate = s.neighbor(s.current)
}

func (s *SimulatedAnnealing) Done() bool {
	if len(s.configs) == 0 {
		return true
	}
	return s.issued >= s.budget || s.temperature() < temperatureFloor
}

func (s *SimulatedAnnealing) Progress() float64 {
	return float64(s.issued) / float64(s.budget)
}

// temperature follows a linear decay over the iteration budget.
func (s *SimulatedAnnealing) temperature() float64 {
	frac := float64(s.issued) / float64(s.budget)
	if frac > 1 {
		frac = 1
	}
	return s.maxTemp * (1 - frac)
}

// neighbor perturbs one randomly chosen parameter of configuration i to an
// adjacent candidate value and re-validates the result against the valid
// set; constraint violations are re-sampled. Falls back to a random member
// when no valid neighbor turns up.
func (s *SimulatedAnnealing) neighbor(i int) int {
	base := s.configs[i]
	for attempt := 0; attempt < 64; attempt++ {
		p := s.params[s.rng.Intn(len(s.params))]
		if len(p.Values) < 2 {
			continue
		}
		pos := 0
		for vi, v := range p.Values {
			if v == base[p.Name] {
				pos = vi
				break
			}
		}
		next := pos + 1
		if pos == len(p.Values)-1 || (pos > 0 && s.rng.Intn(2) == 0) {
			next = pos - 1
		}
		cfg := base.Clone()
		cfg[p.Name] = p.Values[next]
		if j, ok := s.index[cfg.Key(s.params)]; ok && j != i {
			return j
		}
	}
	return s.rng.Intn(len(s.configs))
}
