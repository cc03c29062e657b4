package newton

import (
	"math"
	"math/cmplx"

	"powerflow/internal/consts"
	"powerflow/pkg/matrix"
	"powerflow/pkg/network"
)

// tdpfState carries the temperature-dependent lines for one solve.
// Temperatures are in pu of consts.TBASE. Each thermally-modeled line owns
// one state slot and one residual row; its resistance is rewritten from the
// current temperature before every admittance rebuild.
type tdpfState struct {
	lines  []int // indices into the working branch slice
	fb, tb []int

	t, t0      []float64 // current and start temperature
	tRef, tAir []float64
	alpha      []float64 // resistance temperature coefficient, scaled to pu
	rRef, x    []float64
	r, g, b    []float64
	iSquare    []float64
	pLoss      []float64
	rTheta     []float64 // thermal resistance, pu temperature per pu loss
	a0, a1, a2 []float64
	tau        []float64 // thermal time constant, s

	updateRTheta bool
	delayS       float64 // <= 0 selects the steady-state target
}

func newTDPFState(cs *network.Case, branches []network.Branch, updateRTheta bool, delayS float64) *tdpfState {
	s := &tdpfState{updateRTheta: updateRTheta, delayS: delayS}
	for i, br := range branches {
		if !br.TDPF || !br.Status {
			continue
		}
		baseKV := cs.Buses[br.From].BaseKV
		zBase := baseKV * baseKV / cs.BaseMVA
		iBaseA := cs.BaseMVA / (baseKV * math.Sqrt(3)) * 1e3
		rRefPu := br.RRefOhmPerKm * br.LengthKm / zBase

		s.lines = append(s.lines, i)
		s.fb = append(s.fb, br.From)
		s.tb = append(s.tb, br.To)
		s.t = append(s.t, br.TStartC/consts.TBASE)
		s.t0 = append(s.t0, br.TStartC/consts.TBASE)
		s.tRef = append(s.tRef, br.TRefC/consts.TBASE)
		s.tAir = append(s.tAir, br.TAmbientC/consts.TBASE)
		s.alpha = append(s.alpha, br.Alpha*consts.TBASE)
		s.rRef = append(s.rRef, rRefPu)
		s.x = append(s.x, br.X)
		s.rTheta = append(s.rTheta, br.RTheta*cs.BaseMVA/consts.TBASE)

		a0, a1, a2, tau := thermalCoeffs(br, iBaseA)
		s.a0 = append(s.a0, a0)
		s.a1 = append(s.a1, a1)
		s.a2 = append(s.a2, a2)
		s.tau = append(s.tau, tau)

		s.r = append(s.r, rRefPu)
		s.g = append(s.g, 0)
		s.b = append(s.b, 0)
		s.iSquare = append(s.iSquare, 0)
		s.pLoss = append(s.pLoss, 0)
	}
	s.calcGB()
	return s
}

func (s *tdpfState) count() int { return len(s.lines) }

// thermalCoeffs linearizes the conductor heat balance: the steady-state
// temperature rise is approximated as a0 + a1*i^2 + a2*i^4 (pu), with the
// thermal time constant tau = mc/kappa. Convection uses the IEEE 738
// forced-convection form with the wind-angle correction and a natural
// convection floor; radiation is linearized at the rated temperature.
func thermalCoeffs(br network.Branch, iBaseA float64) (a0, a1, a2, tau float64) {
	d := br.OuterDiameterM
	tFilm := (consts.TMAX+br.TAmbientC)/2 + consts.KELVIN

	// radiative coefficient per meter per K, linearized
	hr := 4 * math.Pi * d * br.Epsilon * consts.STEFANBOLTZMANN * math.Pow(tFilm, 3)

	// forced convection per IEEE 738, per meter per K
	phi := br.WindAngleDeg * math.Pi / 180
	kAngle := 1.194 - math.Cos(phi) + 0.194*math.Cos(2*phi) + 0.368*math.Sin(2*phi)
	re := consts.AIRDENSITY * br.WindSpeedMS * d / consts.AIRVISCOSITY
	hcForced := kAngle * 0.754 * math.Pow(re, 0.6) * consts.AIRCONDUCTIVITY

	// natural convection floor at the rated temperature rise
	dT := math.Max(consts.TMAX-br.TAmbientC, 1)
	hcNatural := 3.645 * math.Sqrt(consts.AIRDENSITY) * math.Pow(d, 0.75) * math.Pow(dT, 0.25)

	kappa := math.Max(hcForced, hcNatural) + hr // W/m/K

	qSolar := br.Gamma * br.SolarWPerM2 * d // W/m

	rAmbPerM := 1e-3 * br.RRefOhmPerKm * (1 + br.Alpha*(br.TAmbientC-br.TRefC))

	a0 = br.TAmbientC/consts.TBASE + qSolar/(kappa*consts.TBASE)
	a1 = iBaseA * iBaseA * rAmbPerM / (kappa * consts.TBASE)
	a2 = a1 * a1 * br.Alpha * consts.TBASE
	tau = br.MCJoulePerMK / kappa
	return a0, a1, a2, tau
}

// updateResistance rewrites each thermal line's resistance from the present
// temperature, both in the local arrays and in the working branch slice the
// admittance matrix is rebuilt from.
func (s *tdpfState) updateResistance(branches []network.Branch) {
	for k, line := range s.lines {
		s.r[k] = s.rRef[k] * (1 + s.alpha[k]*(s.t[k]-s.tRef[k]))
		branches[line].R = s.r[k]
	}
	s.calcGB()
}

func (s *tdpfState) calcGB() {
	for k := range s.lines {
		den := s.r[k]*s.r[k] + s.x[k]*s.x[k]
		s.g[k] = s.r[k] / den
		s.b[k] = -s.x[k] / den
	}
}

// calcLoss recomputes squared current and resistive loss per thermal line
// from the present voltage.
func (s *tdpfState) calcLoss(v []complex128) {
	for k := range s.lines {
		u := branchVoltageTerm(v, s.fb[k], s.tb[k])
		s.pLoss[k] = s.g[k] * u
		s.iSquare[k] = (s.g[k]*s.g[k] + s.b[k]*s.b[k]) * u
	}
}

func branchVoltageTerm(v []complex128, f, t int) float64 {
	vmf, vmt := cmplx.Abs(v[f]), cmplx.Abs(v[t])
	delta := cmplx.Phase(v[f]) - cmplx.Phase(v[t])
	return vmf*vmf + vmt*vmt - 2*vmf*vmt*math.Cos(delta)
}

// calcRTheta refreshes the thermal resistance from the heat-balance
// coefficients and the present loading. Lines with negligible loss keep
// their previous value.
func (s *tdpfState) calcRTheta() {
	for k := range s.lines {
		if s.pLoss[k] < 1e-12 {
			continue
		}
		tss := s.a0[k] + s.a1[k]*s.iSquare[k] + s.a2[k]*s.iSquare[k]*s.iSquare[k]
		s.rTheta[k] = (tss - s.tAir[k]) / s.pLoss[k]
	}
}

// delayWeight is 1 for the steady-state target and 1-exp(-delay/tau) for a
// delay-weighted one.
func (s *tdpfState) delayWeight(k int) float64 {
	if s.delayS <= 0 {
		return 1
	}
	return 1 - math.Exp(-s.delayS/s.tau[k])
}

// residuals appends one temperature residual per thermal line: the present
// temperature minus the temperature implied by loss and ambient conditions.
func (s *tdpfState) residuals(f []float64) []float64 {
	for k := range s.lines {
		tss := s.tAir[k] + s.rTheta[k]*s.pLoss[k]
		tCalc := tss
		if s.delayS > 0 {
			tCalc = tss - (tss-s.t0[k])*math.Exp(-s.delayS/s.tau[k])
		}
		f = append(f, s.t[k]-tCalc)
	}
	return f
}

// stampJacobian writes the thermal coupling. The temperature rows and
// columns belong to this block alone, so entries are written with Set
// semantics: where the thermal block and the base assembly would overlap,
// the thermal value replaces rather than accumulates. rTheta is treated as
// a constant within one linearization even when it is refreshed between
// iterations.
func (s *tdpfState) stampJacobian(jm matrix.Stamper, p *Partition, v []complex128) {
	for k := range s.lines {
		f, t := s.fb[k], s.tb[k]
		trow := p.Temp.Start + k

		den := s.r[k]*s.r[k] + s.x[k]*s.x[k]
		dgdr := (s.x[k]*s.x[k] - s.r[k]*s.r[k]) / (den * den)
		dbdr := 2 * s.r[k] * s.x[k] / (den * den)
		drdT := s.rRef[k] * s.alpha[k]
		ysP := complex(dgdr, dbdr) * complex(drdT, 0)

		// bus power coupling to temperature
		dSf := v[f] * cmplx.Conj(ysP*(v[f]-v[t]))
		dSt := v[t] * cmplx.Conj(ysP*(v[t]-v[f]))
		if r, ok := p.PRow(f); ok {
			jm.Set(r, trow, real(dSf))
		}
		if r, ok := p.PRow(t); ok {
			jm.Set(r, trow, real(dSt))
		}
		if r, ok := p.QRow(f); ok {
			jm.Set(r, trow, imag(dSf))
		}
		if r, ok := p.QRow(t); ok {
			jm.Set(r, trow, imag(dSt))
		}

		// temperature residual row
		kd := s.delayWeight(k)
		vmf, vmt := cmplx.Abs(v[f]), cmplx.Abs(v[t])
		delta := cmplx.Phase(v[f]) - cmplx.Phase(v[t])
		u := branchVoltageTerm(v, f, t)

		jm.Set(trow, trow, 1-kd*s.rTheta[k]*u*dgdr*drdT)

		dpdVaF := s.g[k] * 2 * vmf * vmt * math.Sin(delta)
		if ac, ok := p.AngleCol(f); ok {
			jm.Set(trow, ac, -kd*s.rTheta[k]*dpdVaF)
		}
		if ac, ok := p.AngleCol(t); ok {
			jm.Set(trow, ac, kd*s.rTheta[k]*dpdVaF)
		}
		if mc, ok := p.MagCol(f); ok {
			dpdVmF := s.g[k] * (2*vmf - 2*vmt*math.Cos(delta))
			jm.Set(trow, mc, -kd*s.rTheta[k]*dpdVmF)
		}
		if mc, ok := p.MagCol(t); ok {
			dpdVmT := s.g[k] * (2*vmt - 2*vmf*math.Cos(delta))
			jm.Set(trow, mc, -kd*s.rTheta[k]*dpdVmT)
		}
	}
}

func (s *tdpfState) applyStep(dx []float64, span Span) {
	for k := range s.lines {
		s.t[k] += dx[span.Start+k]
	}
}

// annotate writes converged temperatures and resistances back into the
// case branches.
func (s *tdpfState) annotate(branches []network.Branch) {
	for k, line := range s.lines {
		branches[line].TemperatureC = s.t[k] * consts.TBASE
		branches[line].R = s.r[k]
	}
}

// TemperaturesC returns the conductor temperatures in deg C, one per
// thermally-modeled line.
func (s *tdpfState) temperaturesC() []float64 {
	out := make([]float64, len(s.t))
	for k, t := range s.t {
		out[k] = t * consts.TBASE
	}
	return out
}
