package newton

import (
	"math"
	"math/cmplx"

	"powerflow/pkg/matrix"
)

// iwamotoMultiplier computes the optimal scalar multiplier for the Newton
// step. The mismatch along the step is modeled as a + b*mu + c*mu^2, with
// a the current mismatch, b = J*dx = -a after an exact linear solve, and c
// the mismatch operator applied to the step increment alone. Minimizing
// the squared norm gives a cubic whose root near 1 is the multiplier.
func iwamotoMultiplier(ybus *matrix.Complex, p *Partition, f, dVa, dVm []float64) float64 {
	dv := make([]complex128, len(dVa))
	for i := range dv {
		dv[i] = complex(dVm[i], 0) * cmplx.Rect(1, dVa[i])
	}

	ibus := ybus.MulVec(dv)
	cmis := make([]complex128, len(dv))
	for i := range dv {
		cmis[i] = dv[i] * cmplx.Conj(ibus[i])
	}

	var c []float64
	if p.DistSlack {
		for _, b := range p.Ref {
			c = append(c, real(cmis[b]))
		}
	}
	for _, b := range p.PVPQ {
		c = append(c, real(cmis[b]))
	}
	for _, b := range p.PQ {
		c = append(c, imag(cmis[b]))
	}

	n := len(c)
	if n == 0 || len(f) < n {
		return 1
	}

	var g0, g1, g2, g3 float64
	for i := 0; i < n; i++ {
		a := f[i]
		b := -a
		g0 += a * b
		g1 += b*b + 2*a*c[i]
		g2 += 3 * b * c[i]
		g3 += 2 * c[i] * c[i]
	}

	mu := 1.0
	for it := 0; it < 30; it++ {
		val := g0 + mu*(g1+mu*(g2+mu*g3))
		der := g1 + mu*(2*g2+3*g3*mu)
		if math.Abs(der) < 1e-14 {
			break
		}
		step := val / der
		mu -= step
		if math.Abs(step) < 1e-12 {
			break
		}
	}
	if mu <= 0 || math.IsNaN(mu) || math.IsInf(mu, 0) {
		return 1
	}
	return mu
}
