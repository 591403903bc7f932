package proxypool

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/bnema/nearby-cli/internal/domain"
	"github.com/bnema/nearby-cli/internal/ports"
)

// ErrExhausted is returned by Select when every configured endpoint is cooling down or disabled.
var ErrExhausted = domain.ErrProxyExhausted

// minWeight keeps low-health endpoints selectable so they can recover.
const minWeight = 0.01

type Config struct {
	HealthGain       float64
	FailurePenalty   float64
	MinHealth        float64
	FailureThreshold int
	BaseCooldown     time.Duration
	MaxCooldown      time.Duration
}

func DefaultConfig() Config {
	return Config{
		HealthGain:       0.1,
		FailurePenalty:   0.25,
		MinHealth:        0.05,
		FailureThreshold: 3,
		BaseCooldown:     30 * time.Second,
		MaxCooldown:      15 * time.Minute,
	}
}

func (c Config) Validate() error {
	if c.HealthGain <= 0 || c.HealthGain > 1 {
		return fmt.Errorf("health gain must be in (0,1], got %v", c.HealthGain)
	}
	if c.FailurePenalty <= 0 || c.FailurePenalty > 1 {
		return fmt.Errorf("failure penalty must be in (0,1], got %v", c.FailurePenalty)
	}
	if c.MinHealth <= 0 || c.MinHealth >= 1 {
		return fmt.Errorf("min health must be in (0,1), got %v", c.MinHealth)
	}
	if c.FailureThreshold <= 0 {
		return fmt.Errorf("failure threshold must be positive, got %d", c.FailureThreshold)
	}
	if c.BaseCooldown <= 0 || c.MaxCooldown < c.BaseCooldown {
		return fmt.Errorf("cooldown bounds invalid: base %s max %s", c.BaseCooldown, c.MaxCooldown)
	}
	return nil
}

// CooldownFor returns the cooldown applied when an endpoint enters its cycles-th cooldown (0-based).
func (c Config) CooldownFor(cycles int) time.Duration {
	d := c.BaseCooldown
	for i := 0; i < cycles; i++ {
		d *= 2
		if d >= c.MaxCooldown {
			return c.MaxCooldown
		}
	}
	if d > c.MaxCooldown {
		return c.MaxCooldown
	}
	return d
}

type endpoint struct {
	mu    sync.Mutex
	state domain.ProxyEndpoint
}

func (e *endpoint) snapshot() domain.ProxyEndpoint {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

type Option func(*Pool)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithRand replaces the selection randomness source, mostly for tests.
func WithRand(rng *rand.Rand) Option {
	return func(p *Pool) {
		if rng != nil {
			p.rng = rng
		}
	}
}

// Pool owns a set of egress endpoints and their health. Endpoint state only changes through Report.
type Pool struct {
	cfg    Config
	clock  ports.Clock
	logger *slog.Logger

	mu        sync.RWMutex
	endpoints []*endpoint
	byAddress map[string]*endpoint

	selMu       sync.Mutex
	rng         *rand.Rand
	current     string
	hasCurrent  bool
	skip        string
	skipPending bool
}

func New(cfg Config, clock ports.Clock, opts ...Option) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate proxy pool config: %w", err)
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}

	p := &Pool{
		cfg:       cfg,
		clock:     clock,
		logger:    slog.Default(),
		byAddress: map[string]*endpoint{},
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Configure replaces the endpoint set. Endpoints that survive the change keep their health and cooldown.
func (p *Pool) Configure(addresses []string) error {
	normalized, err := domain.NormalizeProxyAddresses(addresses)
	if err != nil {
		return fmt.Errorf("configure proxy pool: %w", err)
	}

	p.mu.Lock()
	endpoints := make([]*endpoint, 0, len(normalized))
	byAddress := make(map[string]*endpoint, len(normalized))
	for _, address := range normalized {
		ep, ok := p.byAddress[address]
		if !ok {
			ep = &endpoint{state: domain.ProxyEndpoint{Address: address, Health: 1}}
		}
		endpoints = append(endpoints, ep)
		byAddress[address] = ep
	}
	p.endpoints = endpoints
	p.byAddress = byAddress
	p.mu.Unlock()

	p.selMu.Lock()
	if _, ok := byAddress[p.current]; !ok {
		p.current, p.hasCurrent = "", false
	}
	p.skip, p.skipPending = "", false
	p.selMu.Unlock()

	p.logger.Debug("proxy pool configured", "endpoints", len(endpoints))
	return nil
}

func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.endpoints)
}

// Select picks the next egress endpoint. An unconfigured pool hands out the direct endpoint.
func (p *Pool) Select() (domain.ProxyEndpoint, error) {
	now := p.clock.Now()

	p.mu.RLock()
	defer p.mu.RUnlock()

	p.selMu.Lock()
	defer p.selMu.Unlock()

	if len(p.endpoints) == 0 {
		p.current, p.hasCurrent = "", true
		return domain.ProxyEndpoint{}, nil
	}

	candidates := make([]*endpoint, 0, len(p.endpoints))
	states := make([]domain.ProxyEndpoint, 0, len(p.endpoints))
	for _, ep := range p.endpoints {
		state := ep.snapshot()
		if !state.Eligible(now) {
			continue
		}
		candidates = append(candidates, ep)
		states = append(states, state)
	}
	if len(candidates) == 0 {
		return domain.ProxyEndpoint{}, ErrExhausted
	}

	if p.skipPending {
		p.skipPending = false
		if len(candidates) > 1 {
			for i := range states {
				if states[i].Address == p.skip {
					candidates = append(candidates[:i], candidates[i+1:]...)
					states = append(states[:i], states[i+1:]...)
					break
				}
			}
		}
	}

	picked := p.pickLocked(states)

	ep := candidates[picked]
	ep.mu.Lock()
	ep.state.LastUsed = now
	chosen := ep.state
	ep.mu.Unlock()

	p.current, p.hasCurrent = chosen.Address, true
	return chosen, nil
}

// pickLocked draws a health-weighted index, then resolves equal-health ties to the least recently used.
func (p *Pool) pickLocked(states []domain.ProxyEndpoint) int {
	total := 0.0
	for _, s := range states {
		total += weight(s.Health)
	}

	draw := p.rng.Float64() * total
	picked := len(states) - 1
	for i, s := range states {
		draw -= weight(s.Health)
		if draw < 0 {
			picked = i
			break
		}
	}

	for i, s := range states {
		if s.Health == states[picked].Health && s.LastUsed.Before(states[picked].LastUsed) {
			picked = i
		}
	}
	return picked
}

func weight(health float64) float64 {
	if health < minWeight {
		return minWeight
	}
	return health
}

// Report feeds a call outcome back into the endpoint that carried it.
func (p *Pool) Report(address string, outcome domain.CallOutcome) {
	if address == "" {
		return
	}

	p.mu.RLock()
	ep, ok := p.byAddress[address]
	p.mu.RUnlock()
	if !ok {
		return
	}

	now := p.clock.Now()

	ep.mu.Lock()
	defer ep.mu.Unlock()

	s := &ep.state
	switch {
	case outcome.Kind == domain.OutcomeBanDetected || outcome.Class == domain.ClassProxyBlocked:
		s.Failures++
		if s.Disabled {
			return
		}
		s.Disabled = true
		s.Health = 0
		p.logger.Warn("proxy endpoint disabled",
			"proxy", domain.RedactProxyAddress(address),
			"reason", outcome.Class.String(),
		)
	case outcome.Kind == domain.OutcomeSuccess:
		s.Successes++
		s.ConsecutiveFailures = 0
		s.Health += p.cfg.HealthGain
		if s.Health > 1 {
			s.Health = 1
		}
	case outcome.Kind == domain.OutcomeRetryable:
		s.Failures++
		s.ConsecutiveFailures++
		s.Health -= p.cfg.FailurePenalty
		if s.Health < p.cfg.MinHealth {
			s.Health = p.cfg.MinHealth
		}
		if s.ConsecutiveFailures >= p.cfg.FailureThreshold {
			cooldown := p.cfg.CooldownFor(s.CooldownCycles)
			s.CooldownUntil = now.Add(cooldown)
			s.CooldownCycles++
			s.ConsecutiveFailures = 0
			p.logger.Info("proxy endpoint cooling down",
				"proxy", domain.RedactProxyAddress(address),
				"cooldown", cooldown,
				"cycle", s.CooldownCycles,
			)
		}
	}
}

// Rotate makes the next Select skip the active endpoint once. It reports false when there is nothing to rotate to.
func (p *Pool) Rotate() bool {
	now := p.clock.Now()

	p.mu.RLock()
	defer p.mu.RUnlock()

	p.selMu.Lock()
	defer p.selMu.Unlock()

	if !p.hasCurrent || p.current == "" {
		return false
	}
	for _, ep := range p.endpoints {
		state := ep.snapshot()
		if state.Address != p.current && state.Eligible(now) {
			p.skip, p.skipPending = p.current, true
			return true
		}
	}
	return false
}

// Current returns the endpoint handed out by the last Select.
func (p *Pool) Current() (domain.ProxyEndpoint, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	p.selMu.Lock()
	current, ok := p.current, p.hasCurrent
	p.selMu.Unlock()

	if !ok {
		return domain.ProxyEndpoint{}, false
	}
	if current == "" {
		return domain.ProxyEndpoint{}, true
	}
	ep, found := p.byAddress[current]
	if !found {
		return domain.ProxyEndpoint{}, false
	}
	return ep.snapshot(), true
}

func (p *Pool) Stats() domain.ProxyStats {
	now := p.clock.Now()
	stats := domain.ProxyStats{Endpoints: p.Snapshot()}
	if current, ok := p.Current(); ok {
		stats.Current = current.Address
	}

	for _, s := range stats.Endpoints {
		stats.Total++
		switch {
		case s.Disabled:
			stats.Disabled++
		case s.InCooldown(now):
			stats.Cooling++
		default:
			stats.Eligible++
		}
	}
	return stats
}

// Snapshot copies every endpoint's state in configuration order.
func (p *Pool) Snapshot() []domain.ProxyEndpoint {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]domain.ProxyEndpoint, 0, len(p.endpoints))
	for _, ep := range p.endpoints {
		out = append(out, ep.snapshot())
	}
	return out
}

// Restore applies persisted state to endpoints that are still configured. Unknown addresses are ignored.
// Without a selection yet, the most recently used restored endpoint becomes current.
func (p *Pool) Restore(states []domain.ProxyEndpoint) int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	restored := 0
	var lastUsed domain.ProxyEndpoint
	for _, state := range states {
		ep, ok := p.byAddress[state.Address]
		if !ok {
			continue
		}
		ep.mu.Lock()
		ep.state = state
		if ep.state.Health < 0 {
			ep.state.Health = 0
		}
		if ep.state.Health > 1 {
			ep.state.Health = 1
		}
		ep.mu.Unlock()
		restored++
		if state.LastUsed.After(lastUsed.LastUsed) {
			lastUsed = state
		}
	}

	if !lastUsed.LastUsed.IsZero() {
		p.selMu.Lock()
		if !p.hasCurrent {
			p.current, p.hasCurrent = lastUsed.Address, true
		}
		p.selMu.Unlock()
	}
	return restored
}
