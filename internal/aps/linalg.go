// Package aps implements the Active Probing Scheduler (spec.md §4.3):
// CMAB (contextual bandit), CTLC (interval controller), PRIO (priority
// ranker), orchestrated by Scheduler.
package aps

import "math"

// dim is the fixed context/weight dimensionality (spec.md §4.3.1:
// "θ_a ∈ ℝ⁴"). Every matrix in this package is dim×dim; a hand-rolled
// implementation is grounded because no example repo in the pack
// imports a linear-algebra library, and a generic solver is overkill at
// this fixed, tiny size.
const dim = 4

type vector [dim]float64

type matrix [dim][dim]float64

func identity() matrix {
	var m matrix
	for i := 0; i < dim; i++ {
		m[i][i] = 1
	}
	return m
}

func (m matrix) add(o matrix) matrix {
	var out matrix
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			out[i][j] = m[i][j] + o[i][j]
		}
	}
	return out
}

// outer returns v vᵀ scaled by k: k * v * v^T.
func outer(v vector, k float64) matrix {
	var out matrix
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			out[i][j] = k * v[i] * v[j]
		}
	}
	return out
}

func (m matrix) mulVec(v vector) vector {
	var out vector
	for i := 0; i < dim; i++ {
		var sum float64
		for j := 0; j < dim; j++ {
			sum += m[i][j] * v[j]
		}
		out[i] = sum
	}
	return out
}

func dot(a, b vector) float64 {
	var sum float64
	for i := 0; i < dim; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

func (v vector) scale(k float64) vector {
	var out vector
	for i := 0; i < dim; i++ {
		out[i] = v[i] * k
	}
	return out
}

func (v vector) add(o vector) vector {
	var out vector
	for i := 0; i < dim; i++ {
		out[i] = v[i] + o[i]
	}
	return out
}

// invert computes m^-1 via Gauss-Jordan elimination with partial
// pivoting. m is always a precision matrix built by repeated
// rank-1 updates starting from the identity, so it stays symmetric
// positive-definite and invertible.
func (m matrix) invert() matrix {
	a := m
	b := identity()

	for col := 0; col < dim; col++ {
		pivot := col
		best := math.Abs(a[col][col])
		for r := col + 1; r < dim; r++ {
			if v := math.Abs(a[r][col]); v > best {
				best = v
				pivot = r
			}
		}
		if pivot != col {
			a[col], a[pivot] = a[pivot], a[col]
			b[col], b[pivot] = b[pivot], b[col]
		}

		p := a[col][col]
		if p == 0 {
			continue
		}
		for j := 0; j < dim; j++ {
			a[col][j] /= p
			b[col][j] /= p
		}
		for r := 0; r < dim; r++ {
			if r == col {
				continue
			}
			factor := a[r][col]
			if factor == 0 {
				continue
			}
			for j := 0; j < dim; j++ {
				a[r][j] -= factor * a[col][j]
				b[r][j] -= factor * b[col][j]
			}
		}
	}
	return b
}

// cholesky returns the lower-triangular L such that m = L Lᵀ, for a
// symmetric positive-definite m (a posterior covariance). Used to draw
// a correlated Gaussian sample: x = mu + L*z for standard-normal z.
func (m matrix) cholesky() matrix {
	var l matrix
	for i := 0; i < dim; i++ {
		for j := 0; j <= i; j++ {
			sum := m[i][j]
			for k := 0; k < j; k++ {
				sum -= l[i][k] * l[j][k]
			}
			if i == j {
				if sum < 0 {
					sum = 0
				}
				l[i][j] = math.Sqrt(sum)
			} else if l[j][j] > 0 {
				l[i][j] = sum / l[j][j]
			}
		}
	}
	return l
}
