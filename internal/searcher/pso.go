package searcher

import (
	"math"
	"math/rand"
	"time"

	"github.com/zuqini/CLTune/internal/kernel"
)

// ParticleSwarm explores the valid set with a fixed population of particles.
// Each particle's position is an index into the valid-configuration sequence;
// velocities combine inertia with attraction toward the particle's personal
// best and the swarm's global best. Particles are evaluated round-robin, one
// trial per Next call, until the iteration budget is spent.
type ParticleSwarm struct {
	configs []kernel.Configuration
	rng     *rand.Rand

	budget int
	issued int

	inertia   float64
	cognitive float64
	social    float64

	particles []particle
	cur       int

	globalBestPos  float64
	globalBestTime float64
}

type particle struct {
	pos      float64
	vel      float64
	bestPos  float64
	bestTime float64
}

// NewParticleSwarm creates a particle-swarm search with an evaluation budget
// of round(fraction*N).
func NewParticleSwarm(configs []kernel.Configuration, fraction float64, swarmSize int, inertia, cognitive, social float64, seed int64) *ParticleSwarm {
	budget := int(math.Round(fraction * float64(len(configs))))
	if budget < 1 {
		budget = 1
	}
	if swarmSize < 1 {
		swarmSize = 4
	}
	rng := rand.New(rand.NewSource(seed))
	s := &ParticleSwarm{
		configs:        configs,
		rng:            rng,
		budget:         budget,
		inertia:        inertia,
		cognitive:      cognitive,
		social:         social,
		particles:      make([]particle, swarmSize),
		globalBestTime: math.Inf(1),
	}
	for i := range s.particles {
		pos := 0.0
		if len(configs) > 0 {
			pos = float64(rng.Intn(len(configs)))
		}
		s.particles[i] = particle{pos: pos, bestPos: pos, bestTime: math.Inf(1)}
	}
	return s
}

func (s *ParticleSwarm) Next() (kernel.Configuration, error) {
	if s.Done() {
		return nil, ErrExhausted
	}
	s.issued++
	return s.configs[s.position(s.cur)], nil
}

func (s *ParticleSwarm) PushExecutionTime(t time.Duration) {
	if s.issued == 0 {
		return
	}
	p := &s.particles[s.cur]
	sec := t.Seconds()
	pos := float64(s.position(s.cur))
	if sec < p.bestTime {
		p.bestTime = sec
		p.bestPos = pos
	}
	if sec < s.globalBestTime {
		s.globalBestTime = sec
		s.globalBestPos = pos
	}

	// Advance the evaluated particle before moving to the next one.
	p.vel = s.inertia*p.vel +
		s.cognitive*s.rng.Float64()*(p.bestPos-p.pos) +
		s.social*s.rng.Float64()*(s.globalBestPos-p.pos)
	p.pos += p.vel

	s.cur = (s.cur + 1) % len(s.particles)
}

func (s *ParticleSwarm) Done() bool {
	return len(s.configs) == 0 || s.issued >= s.budget
}

func (s *ParticleSwarm) Progress() float64 {
	return float64(s.issued) / float64(s.budget)
}

// position clamps particle i's continuous position into the valid index
// range.
func (s *ParticleSwarm) position(i int) int {
	idx := int(math.Round(s.particles[i].pos))
	if idx < 0 {
		idx = 0
	}
	if idx > len(s.configs)-1 {
		idx = len(s.configs) - 1
	}
	return idx
}
