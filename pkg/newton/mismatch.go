package newton

import (
	"math/cmplx"

	"powerflow/pkg/matrix"
)

// evaluateFx computes the residual vector for the current state: power
// balance mismatch per bus selected by classification, followed by the
// voltage-magnitude residual of each controllable SVC and the power
// setpoint residual of each controllable TCSC. Temperature residuals are
// appended by the thermal model after this evaluation. Pure function of
// its inputs.
func evaluateFx(ybus *matrix.Complex, v, sbus []complex128, p *Partition,
	slackWeights []float64, slack float64,
	svc *svcState, tcsc *tcscState, ybusTCSC *matrix.Complex) []float64 {

	y := ybus
	if ybusTCSC != nil {
		y = ybus.Plus(ybusTCSC)
	}
	ibus := y.MulVec(v)

	mis := make([]complex128, len(v))
	for i := range v {
		mis[i] = v[i]*cmplx.Conj(ibus[i]) - sbus[i]
		if p.DistSlack {
			// slack power is shared across buses by participation weight
			mis[i] += complex(slackWeights[i]*slack, 0)
		}
	}

	f := make([]float64, 0, p.Size)
	if p.DistSlack {
		for _, b := range p.Ref {
			f = append(f, real(mis[b]))
		}
	}
	for _, b := range p.PVPQ {
		f = append(f, real(mis[b]))
	}
	for _, b := range p.PQ {
		f = append(f, imag(mis[b]))
	}

	if svc != nil {
		for k, b := range svc.buses {
			if svc.controllable[k] {
				f = append(f, cmplx.Abs(v[b])-svc.setVm[k])
			}
		}
	}

	if tcsc != nil && tcsc.nControllable > 0 {
		sdev := deviceInjection(ybusTCSC, v)
		for k := range tcsc.fb {
			if tcsc.controllable[k] {
				f = append(f, real(sdev[tcsc.tb[k]])-tcsc.setP[k])
			}
		}
	}

	return f
}

// deviceInjection computes the per-bus complex power injected through a
// device admittance matrix.
func deviceInjection(ydev *matrix.Complex, v []complex128) []complex128 {
	ibus := ydev.MulVec(v)
	s := make([]complex128, len(v))
	for i := range v {
		s[i] = v[i] * cmplx.Conj(ibus[i])
	}
	return s
}
