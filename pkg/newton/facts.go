package newton

import (
	"math"
	"math/cmplx"

	"powerflow/pkg/matrix"
	"powerflow/pkg/network"
)

// calcYSVC is the susceptance of a thyristor-controlled reactor/capacitor
// pair as a function of the firing angle, in pu. The same expression gives
// the magnitude of the TCSC series admittance.
func calcYSVC(x, xl, xcvar float64) float64 {
	return (2*(math.Pi-x) + math.Sin(2*x) + math.Pi*xl/xcvar) / (math.Pi * xl)
}

func dYSVCdx(x, xl float64) float64 {
	return 2 * (math.Cos(2*x) - 1) / (math.Pi * xl)
}

// svcState carries the shunt compensation devices for one solve. Only the
// controllable subset occupies state and residual slots; fixed devices keep
// injecting at their frozen firing angle.
type svcState struct {
	buses         []int
	setVm         []float64
	x             []float64 // firing angles, radians
	xl, xcvar     []float64
	controllable  []bool
	ctrlSlot      []int // device -> slot within the SVC block, -1 if fixed
	q             []float64
	nControllable int
}

func newSVCState(devs []network.SVC) *svcState {
	s := &svcState{}
	for _, d := range devs {
		slot := -1
		if d.Controllable {
			slot = s.nControllable
			s.nControllable++
		}
		s.buses = append(s.buses, d.Bus)
		s.setVm = append(s.setVm, d.SetVmPu)
		s.x = append(s.x, d.FiringAngle)
		s.xl = append(s.xl, d.XLPu)
		s.xcvar = append(s.xcvar, d.XCvarPu)
		s.controllable = append(s.controllable, d.Controllable)
		s.ctrlSlot = append(s.ctrlSlot, slot)
		s.q = append(s.q, 0)
	}
	return s
}

// updateSbus folds the SVC reactive injection at the present voltage into
// the injection vector, starting from the unmodified backup.
func (s *svcState) updateSbus(sbus, backup, v []complex128) {
	for k, b := range s.buses {
		y := calcYSVC(s.x[k], s.xl[k], s.xcvar[k])
		vm := cmplx.Abs(v[b])
		s.q[k] = vm * vm * y
		sbus[b] = backup[b] - complex(0, s.q[k])
	}
}

// stampJacobian adds the SVC coupling: the susceptance's voltage dependence
// on every device's bus, and the firing-angle column plus the magnitude
// residual row for controllable devices.
func (s *svcState) stampJacobian(jm matrix.Stamper, p *Partition, v []complex128) {
	for k, b := range s.buses {
		qrow, ok := p.QRow(b)
		if !ok {
			continue // device on a non-PQ bus holds no magnitude state
		}
		mc, _ := p.MagCol(b)
		y := calcYSVC(s.x[k], s.xl[k], s.xcvar[k])
		vm := cmplx.Abs(v[b])

		jm.Add(qrow, mc, 2*vm*y)

		if s.controllable[k] {
			col := p.SVC.Start + s.ctrlSlot[k]
			jm.Add(qrow, col, vm*vm*dYSVCdx(s.x[k], s.xl[k]))
			jm.Add(col, mc, 1)
		}
	}
}

func (s *svcState) applyStep(dx []float64, span Span) {
	for k := range s.buses {
		if s.controllable[k] {
			s.x[k] += dx[span.Start+s.ctrlSlot[k]]
		}
	}
}

// annotate writes the converged firing angles and reactive injections back
// into the device records.
func (s *svcState) annotate(devs []network.SVC) {
	for k := range devs {
		devs[k].FiringAngle = s.x[k]
		devs[k].QPu = s.q[k]
	}
}

// tcscState carries the series compensation devices for one solve.
type tcscState struct {
	fb, tb        []int
	x             []float64
	xl, xcvar     []float64
	setP          []float64
	controllable  []bool
	ctrlSlot      []int
	nControllable int
}

func newTCSCState(devs []network.TCSC) *tcscState {
	t := &tcscState{}
	for _, d := range devs {
		if !d.Status {
			continue
		}
		slot := -1
		if d.Controllable {
			slot = t.nControllable
			t.nControllable++
		}
		t.fb = append(t.fb, d.From)
		t.tb = append(t.tb, d.To)
		t.x = append(t.x, d.FiringAngle)
		t.xl = append(t.xl, d.XLPu)
		t.xcvar = append(t.xcvar, d.XCvarPu)
		t.setP = append(t.setP, d.SetPPu)
		t.controllable = append(t.controllable, d.Controllable)
		t.ctrlSlot = append(t.ctrlSlot, slot)
	}
	return t
}

func (t *tcscState) empty() bool { return len(t.fb) == 0 }

// makeYbus builds the device admittance matrix: each TCSC injects a
// firing-angle-dependent series admittance between its terminals. The
// result is summed into the network admittance for every mismatch and
// back-annotation evaluation.
func (t *tcscState) makeYbus(n int) *matrix.Complex {
	var rows, cols []int
	var vals []complex128
	for k := range t.fb {
		y := complex(0, -calcYSVC(t.x[k], t.xl[k], t.xcvar[k]))
		f, to := t.fb[k], t.tb[k]
		rows = append(rows, f, f, to, to)
		cols = append(cols, f, to, f, to)
		vals = append(vals, y, -y, -y, y)
	}
	return matrix.NewComplex(n, rows, cols, vals)
}

// terminalDerivs holds the derivatives of one device's terminal injections
// with respect to the two terminal voltages and its own firing angle.
// Index 0 is the from terminal, 1 the to terminal.
type terminalDerivs struct {
	dSdVa [2][2]complex128
	dSdVm [2][2]complex128
	dSdX  [2]complex128
}

func (t *tcscState) derivs(k int, v []complex128) terminalDerivs {
	f, to := t.fb[k], t.tb[k]
	yc := complex(0, -calcYSVC(t.x[k], t.xl[k], t.xcvar[k]))
	dyc := complex(0, -dYSVCdx(t.x[k], t.xl[k]))

	term := [2]int{f, to}
	ydev := [2][2]complex128{{yc, -yc}, {-yc, yc}}
	dydev := [2][2]complex128{{dyc, -dyc}, {-dyc, dyc}}

	var d terminalDerivs
	for i := 0; i < 2; i++ {
		vi := v[term[i]]
		var idev, didev complex128
		for j := 0; j < 2; j++ {
			idev += ydev[i][j] * v[term[j]]
			didev += dydev[i][j] * v[term[j]]
		}
		for j := 0; j < 2; j++ {
			vj := v[term[j]]
			vmj := cmplx.Abs(vj)
			vnormj := vj / complex(vmj, 0)

			d.dSdVa[i][j] = -1i * vi * cmplx.Conj(ydev[i][j]*vj)
			d.dSdVm[i][j] = vi * cmplx.Conj(ydev[i][j]*vnormj)
			if i == j {
				d.dSdVa[i][j] += 1i * vi * cmplx.Conj(idev)
				d.dSdVm[i][j] += cmplx.Conj(idev) * vnormj
			}
		}
		d.dSdX[i] = vi * cmplx.Conj(didev)
	}
	return d
}

// stampJacobian adds the TCSC coupling: the device injection's dependence
// on its terminal angle/magnitude state (the base block is built from the
// network admittance alone, so the device's contribution enters here), the
// firing-angle column, and the power-setpoint residual row.
func (t *tcscState) stampJacobian(jm matrix.Stamper, p *Partition, v []complex128) {
	for k := range t.fb {
		d := t.derivs(k, v)
		term := [2]int{t.fb[k], t.tb[k]}

		for i := 0; i < 2; i++ {
			prow, hasP := p.PRow(term[i])
			qrow, hasQ := p.QRow(term[i])
			for j := 0; j < 2; j++ {
				if ac, ok := p.AngleCol(term[j]); ok {
					if hasP {
						jm.Add(prow, ac, real(d.dSdVa[i][j]))
					}
					if hasQ {
						jm.Add(qrow, ac, imag(d.dSdVa[i][j]))
					}
				}
				if mc, ok := p.MagCol(term[j]); ok {
					if hasP {
						jm.Add(prow, mc, real(d.dSdVm[i][j]))
					}
					if hasQ {
						jm.Add(qrow, mc, imag(d.dSdVm[i][j]))
					}
				}
			}
			if t.controllable[k] {
				col := p.TCSC.Start + t.ctrlSlot[k]
				if hasP {
					jm.Add(prow, col, real(d.dSdX[i]))
				}
				if hasQ {
					jm.Add(qrow, col, imag(d.dSdX[i]))
				}
			}
		}

		if t.controllable[k] {
			row := p.TCSC.Start + t.ctrlSlot[k]
			// residual: real part of the to-terminal device power minus setpoint
			for j := 0; j < 2; j++ {
				if ac, ok := p.AngleCol(term[j]); ok {
					jm.Add(row, ac, real(d.dSdVa[1][j]))
				}
				if mc, ok := p.MagCol(term[j]); ok {
					jm.Add(row, mc, real(d.dSdVm[1][j]))
				}
			}
			jm.Add(row, p.TCSC.Start+t.ctrlSlot[k], real(d.dSdX[1]))
		}
	}
}

func (t *tcscState) applyStep(dx []float64, span Span) {
	for k := range t.fb {
		if t.controllable[k] {
			t.x[k] += dx[span.Start+t.ctrlSlot[k]]
		}
	}
}

// annotate recomputes the device admittance once more at the converged
// state and writes terminal power, current and equivalent reactance back
// into the device records.
func (t *tcscState) annotate(cs *network.Case, v []complex128) {
	if t.empty() {
		return
	}
	ydev := t.makeYbus(len(v))
	ibus := ydev.MulVec(v)

	k := 0
	for i := range cs.TCSCs {
		if !cs.TCSCs[i].Status {
			continue
		}
		f, to := t.fb[k], t.tb[k]
		sf := v[f] * cmplx.Conj(ibus[f])
		st := v[to] * cmplx.Conj(ibus[to])

		baseI := cs.BaseMVA / (cs.Buses[to].BaseKV * math.Sqrt(3))

		cs.TCSCs[i].FiringAngle = t.x[k]
		cs.TCSCs[i].PF = real(sf)
		cs.TCSCs[i].QF = imag(sf)
		cs.TCSCs[i].PT = real(st)
		cs.TCSCs[i].QT = imag(st)
		cs.TCSCs[i].IF = cmplx.Abs(ibus[f]) * baseI
		cs.TCSCs[i].IT = cmplx.Abs(ibus[to]) * baseI
		cs.TCSCs[i].XPu = 1 / calcYSVC(t.x[k], t.xl[k], t.xcvar[k])
		k++
	}
}
