package feedsim

import (
	"math/rand"
	"sync"
	"time"
)

// Match phases in football-data.org vocabulary.
const (
	StatusTimed    = "TIMED"
	StatusInPlay   = "IN_PLAY"
	StatusPaused   = "PAUSED"
	StatusFinished = "FINISHED"
)

// Simulation constants.
const (
	halfTimeMinute  = 45
	fullTimeMinute  = 90
	halfTimeBreak   = 15
	maxKickoffDelay = 30
)

var fixtures = []struct{ code, home, away string }{ //nolint:gochecknoglobals // static fixture pool
	{"PD", "Real Madrid CF", "Girona FC"},
	{"PD", "FC Barcelona", "Sevilla FC"},
	{"PD", "Atlético de Madrid", "Valencia CF"},
	{"PL", "Arsenal FC", "Chelsea FC"},
	{"PL", "Liverpool FC", "Manchester City FC"},
	{"PL", "Tottenham Hotspur FC", "Newcastle United FC"},
	{"CL", "FC Bayern München", "Paris Saint-Germain FC"},
	{"CL", "Inter", "Borussia Dortmund"},
}

// Score is a football-data score pair; nil means not started.
type Score struct {
	Home *int `json:"home"`
	Away *int `json:"away"`
}

// Team is a football-data team reference.
type Team struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Competition is a football-data competition reference.
type Competition struct {
	Code string `json:"code"`
}

// Match is the football-data /matches item shape.
type Match struct {
	ID          int64       `json:"id"`
	UTCDate     string      `json:"utcDate"`
	Status      string      `json:"status"`
	Minute      *int        `json:"minute"`
	Competition Competition `json:"competition"`
	HomeTeam    Team        `json:"homeTeam"`
	AwayTeam    Team        `json:"awayTeam"`
	Score       struct {
		FullTime Score `json:"fullTime"`
	} `json:"score"`
}

type simMatch struct {
	Match
	kickoffIn int // simulated minutes until kickoff
	clock     int
	breakLeft int
	home      int
	away      int
}

// Simulator advances a set of fixtures through kickoff, goals, half time
// and full time on a simulated clock.
type Simulator struct {
	mu         sync.Mutex
	rng        *rand.Rand
	matches    []*simMatch
	goalChance float64 // per team per simulated minute
	started    time.Time
}

// NewSimulator creates a simulator; see the With* options.
func NewSimulator(opts ...SimOption) *Simulator {
	cfg := simConfig{matches: len(fixtures), seed: time.Now().UnixNano(), goalChance: 0.015}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Simulator{
		rng:        rand.New(rand.NewSource(cfg.seed)), //nolint:gosec // simulation, not security
		goalChance: cfg.goalChance,
		started:    time.Now().UTC(),
	}
	for i := 0; i < cfg.matches; i++ {
		f := fixtures[i%len(fixtures)]
		m := &simMatch{kickoffIn: s.rng.Intn(maxKickoffDelay + 1)}
		m.ID = int64(400000 + i)
		m.Competition.Code = f.code
		m.HomeTeam = Team{ID: int64(2*i + 1), Name: f.home}
		m.AwayTeam = Team{ID: int64(2*i + 2), Name: f.away}
		m.Status = StatusTimed
		m.UTCDate = s.started.Add(time.Duration(m.kickoffIn) * time.Minute).Format(time.RFC3339)
		s.matches = append(s.matches, m)
	}
	return s
}

// Advance moves the simulated clock forward by the given minutes.
func (s *Simulator) Advance(minutes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < minutes; i++ {
		for _, m := range s.matches {
			s.step(m)
		}
	}
}

// Done reports whether every match has finished.
func (s *Simulator) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.matches {
		if m.Status != StatusFinished {
			return false
		}
	}
	return true
}

// Matches returns the current football-data view of every fixture.
func (s *Simulator) Matches() []Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Match, 0, len(s.matches))
	for _, m := range s.matches {
		v := m.Match
		if m.Status != StatusTimed {
			h, a := m.home, m.away
			v.Score.FullTime = Score{Home: &h, Away: &a}
		}
		if m.Status == StatusInPlay || m.Status == StatusPaused {
			c := m.clock
			v.Minute = &c
		}
		out = append(out, v)
	}
	return out
}

func (s *Simulator) step(m *simMatch) {
	switch m.Status {
	case StatusTimed:
		if m.kickoffIn > 0 {
			m.kickoffIn--
			return
		}
		m.Status = StatusInPlay
	case StatusPaused:
		if m.breakLeft > 0 {
			m.breakLeft--
			return
		}
		m.Status = StatusInPlay
	case StatusInPlay:
		m.clock++
		if s.rng.Float64() < s.goalChance {
			m.home++
		}
		if s.rng.Float64() < s.goalChance {
			m.away++
		}
		switch m.clock {
		case halfTimeMinute:
			m.Status = StatusPaused
			m.breakLeft = halfTimeBreak
		case fullTimeMinute:
			m.Status = StatusFinished
		}
	}
}

type simConfig struct {
	matches    int
	seed       int64
	goalChance float64
}

// SimOption configures a Simulator.
type SimOption func(*simConfig)

// WithMatches sets how many fixtures are simulated.
func WithMatches(n int) SimOption {
	return func(c *simConfig) {
		if n > 0 {
			c.matches = n
		}
	}
}

// WithSeed makes a run reproducible.
func WithSeed(seed int64) SimOption {
	return func(c *simConfig) { c.seed = seed }
}

// WithGoalChance sets the per-minute scoring probability of each team.
func WithGoalChance(p float64) SimOption {
	return func(c *simConfig) {
		if p >= 0 && p <= 1 {
			c.goalChance = p
		}
	}
}
