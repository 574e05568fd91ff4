package aps

import (
	"math"
	"math/rand"
	"sync"
)

// Strategy is one of CMAB's four arms (spec.md §4.3.1).
type Strategy string

const (
	FocusUncertainty Strategy = "FOCUS_UNCERTAINTY"
	HighfreqUnstable Strategy = "HIGHFREQ_UNSTABLE"
	CoverageBalancer Strategy = "COVERAGE_BALANCER"
	EventTrigger     Strategy = "EVENT_TRIGGER"
)

// Strategies lists all four arms in a fixed order.
var Strategies = []Strategy{FocusUncertainty, HighfreqUnstable, CoverageBalancer, EventTrigger}

// Context is the 4-dim normalized snapshot CMAB scores arms against
// (spec.md §4.1 GLOSSARY "Context vector"): (u_mean, s_mean,
// urgency_mean, event_rate).
type Context [dim]float64

type arm struct {
	mu    vector
	sigma matrix
	prec  matrix // Lambda = Sigma^-1

	updateMu sync.Mutex // serializes this arm's posterior update (spec.md §5)
}

// SelectionRecord is what CMAB.SelectStrategy records for later
// Update (spec.md §4.3.1 step 3 "Record (c, arm, theta_samples)").
type SelectionRecord struct {
	Context  Context
	Strategy Strategy
	Scores   map[Strategy]float64
}

// CMAB is the linear-Gaussian Thompson Sampling bandit.
type CMAB struct {
	mu   sync.RWMutex
	arms map[Strategy]*arm

	rng    *rand.Rand
	rngMu  sync.Mutex

	history []SelectionRecord
	counts  map[Strategy]int
}

// NewCMAB creates a bandit with all four arms initialized to
// mu=0, Sigma=I (spec.md §4.3.1).
func NewCMAB(seed int64) *CMAB {
	c := &CMAB{
		arms:   make(map[Strategy]*arm, len(Strategies)),
		rng:    rand.New(rand.NewSource(seed)),
		counts: make(map[Strategy]int),
	}
	for _, s := range Strategies {
		c.arms[s] = &arm{sigma: identity(), prec: identity()}
	}
	return c
}

// SelectStrategy draws theta_a ~ N(mu_a, Sigma_a) for every arm, scores
// c . theta_a, and returns the arg-max arm (spec.md §4.3.1).
func (c *CMAB) SelectStrategy(ctx Context) Strategy {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cv := vector(ctx)
	scores := make(map[Strategy]float64, len(Strategies))
	var best Strategy
	bestScore := math.Inf(-1)

	for _, s := range Strategies {
		a := c.arms[s]
		theta := c.sampleTheta(a)
		score := dot(cv, theta)
		scores[s] = score
		if score > bestScore {
			bestScore = score
			best = s
		}
	}

	c.history = append(c.history, SelectionRecord{Context: ctx, Strategy: best, Scores: scores})
	c.counts[best]++
	return best
}

// sampleTheta draws theta ~ N(a.mu, a.sigma) via Cholesky: theta = mu +
// L*z for standard-normal z. Takes a.updateMu so it never reads mu/
// sigma concurrently with Update's write.
func (c *CMAB) sampleTheta(a *arm) vector {
	a.updateMu.Lock()
	l := a.sigma.cholesky()
	mu := a.mu
	a.updateMu.Unlock()

	var z vector
	c.rngMu.Lock()
	for i := range z {
		z[i] = c.rng.NormFloat64()
	}
	c.rngMu.Unlock()
	return mu.add(l.mulVec(z))
}

// Update performs the Bayesian posterior update for the named arm after
// observing scalar reward r with noise variance noiseVar (default 1)
// (spec.md §4.3.1). Only the named arm changes; updates to the same arm
// serialize against each other (spec.md §5).
func (c *CMAB) Update(strategy Strategy, ctx Context, reward float64, noiseVar float64) {
	if noiseVar <= 0 {
		noiseVar = 1
	}
	c.mu.RLock()
	a := c.arms[strategy]
	c.mu.RUnlock()
	if a == nil {
		return
	}

	a.updateMu.Lock()
	defer a.updateMu.Unlock()

	cv := vector(ctx)
	precOld := a.prec
	muOld := a.mu

	precNew := precOld.add(outer(cv, 1/noiseVar))
	sigmaNew := precNew.invert()
	rhs := precOld.mulVec(muOld).add(cv.scale(reward / noiseVar))
	muNew := sigmaNew.mulVec(rhs)

	a.prec = precNew
	a.sigma = sigmaNew
	a.mu = muNew
}

// ArmStats is a read-only snapshot of one arm's posterior.
type ArmStats struct {
	Strategy Strategy
	Mu       [dim]float64
	SigmaDiag [dim]float64
	Selections int
}

// Stats returns a snapshot of every arm's posterior and selection
// count, used by the status/report surfaces.
func (c *CMAB) Stats() []ArmStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]ArmStats, 0, len(Strategies))
	for _, s := range Strategies {
		a := c.arms[s]
		a.updateMu.Lock()
		var diag [dim]float64
		for i := 0; i < dim; i++ {
			diag[i] = a.sigma[i][i]
		}
		muSnapshot := a.mu
		a.updateMu.Unlock()

		out = append(out, ArmStats{
			Strategy:   s,
			Mu:         muSnapshot,
			SigmaDiag:  diag,
			Selections: c.counts[s],
		})
	}
	return out
}

// RecentStrategies returns up to n of the most recently selected
// strategies, oldest first.
func (c *CMAB) RecentStrategies(n int) []Strategy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	start := len(c.history) - n
	if start < 0 {
		start = 0
	}
	out := make([]Strategy, 0, len(c.history)-start)
	for _, rec := range c.history[start:] {
		out = append(out, rec.Strategy)
	}
	return out
}
