package domain

import (
	"log"
	"math"
)

// varianceFloor is the smallest variance a Gaussian posterior is allowed
// to settle at. Without a floor, a long run of identical measurements
// drives sigma2 to exactly zero and entropy to -Inf (R2 requires strict
// decrease with convergence "to 0", not through it).
const varianceFloor = 1e-6

// Distribution is the sum type described in spec.md §9: a metric's
// posterior is either a Beta (liveness) or a Gaussian (rtt, plr,
// bandwidth). Only one family's pair of fields is in use; Family reports
// which.
type Distribution struct {
	Family Family

	// Beta fields (liveness).
	Alpha, Beta float64

	// Gaussian fields (rtt, plr, bandwidth).
	Mu, Sigma2 float64
}

// NewBeta constructs a Beta(alpha, beta) distribution, clamping alpha and
// beta to the invariant alpha, beta >= 1 (spec.md §3).
func NewBeta(alpha, beta float64) Distribution {
	return Distribution{Family: FamilyBeta, Alpha: math.Max(alpha, 1), Beta: math.Max(beta, 1)}
}

// NewGaussian constructs a Gaussian(mu, sigma2) distribution, clamping
// sigma2 to the variance floor (spec.md §3: sigma2 >= epsilon > 0).
func NewGaussian(mu, sigma2 float64) Distribution {
	return Distribution{Family: FamilyGaussian, Mu: mu, Sigma2: math.Max(sigma2, varianceFloor)}
}

// Confidence returns the predictive probability of "up" for a Beta
// distribution: alpha / (alpha + beta). Defined only for Beta; for
// Gaussian it returns 0 (callers only invoke it for liveness).
func (d Distribution) Confidence() float64 {
	if d.Family != FamilyBeta {
		return 0
	}
	return d.Alpha / (d.Alpha + d.Beta)
}

// Entropy returns the differential/discrete entropy H(distribution) of
// the current posterior, in nats.
//
// Beta entropy uses the standard closed form in terms of the log-Beta
// function and digamma. Gaussian (differential) entropy is
// 0.5*log(2*pi*e*sigma2).
func (d Distribution) Entropy() float64 {
	switch d.Family {
	case FamilyBeta:
		return betaEntropy(d.Alpha, d.Beta)
	default:
		return 0.5 * math.Log(2*math.Pi*math.E*d.Sigma2)
	}
}

// betaEntropy computes the differential entropy of Beta(a, b):
//
//	H = ln(B(a,b)) - (a-1)*psi(a) - (b-1)*psi(b) + (a+b-2)*psi(a+b)
//
// where B is the Beta function and psi the digamma function.
func betaEntropy(a, b float64) float64 {
	lnBeta := lgamma(a) + lgamma(b) - lgamma(a+b)
	return lnBeta - (a-1)*digamma(a) - (b-1)*digamma(b) + (a+b-2)*digamma(a+b)
}

func lgamma(x float64) float64 {
	v, _ := math.Lgamma(x)
	return v
}

// digamma approximates psi(x) via the asymptotic expansion after
// shifting x up by the recurrence psi(x) = psi(x+1) - 1/x, which keeps
// the expansion accurate for the small alpha/beta values IADS actually
// sees (starting at 1, growing by one per observation).
func digamma(x float64) float64 {
	var result float64
	for x < 6 {
		result -= 1 / x
		x++
	}
	inv := 1 / x
	inv2 := inv * inv
	result += math.Log(x) - 0.5*inv -
		inv2*(1.0/12-inv2*(1.0/120-inv2*(1.0/252)))
	return result
}

// Update performs the Bayesian posterior update for this distribution's
// family given one noisy measurement and the family's measurement noise
// variance (Gaussian only; Beta observations are exact Bernoulli trials
// so noiseVar is unused there).
//
// Gaussian update (conjugate Gaussian-Gaussian, known noise variance):
//
//	mu'     = (sigma2*y + sigmaNoise2*mu) / (sigma2 + sigmaNoise2)
//	sigma2' = (sigma2 * sigmaNoise2) / (sigma2 + sigmaNoise2)
//
// Beta update: alpha += 1 on success (y != 0), beta += 1 on failure.
func (d *Distribution) Update(y float64, noiseVar float64) {
	switch d.Family {
	case FamilyBeta:
		if y != 0 {
			d.Alpha++
		} else {
			d.Beta++
		}
	default:
		sigmaNoise2 := math.Max(noiseVar, varianceFloor)
		denom := d.Sigma2 + sigmaNoise2
		newMu := (d.Sigma2*y + sigmaNoise2*d.Mu) / denom
		newSigma2 := (d.Sigma2 * sigmaNoise2) / denom
		if newSigma2 <= 0 {
			log.Printf("domain: degenerate gaussian posterior (sigma2=%g), clamping to %g", newSigma2, varianceFloor)
		}
		d.Mu = newMu
		d.Sigma2 = math.Max(newSigma2, varianceFloor)
	}
}

// PredictiveEntropy returns the entropy UQ expects AFTER observing a
// prospective measurement y, used by the Beta branch of EIG (the
// Gaussian branch has a closed form and never needs this). It does not
// mutate the receiver.
func (d Distribution) PredictiveEntropy(y float64, noiseVar float64) float64 {
	next := d
	next.Update(y, noiseVar)
	return next.Entropy()
}
