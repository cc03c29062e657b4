package newton

import (
	"math/cmplx"

	"powerflow/pkg/matrix"
)

// dSbusDV returns the partial derivatives of the complex bus power
// injections with respect to voltage magnitude and angle, as two sparse
// matrices sharing the admittance matrix's nonzero pattern.
func dSbusDV(y *matrix.Complex, v []complex128) (dSdVm, dSdVa *matrix.Complex) {
	ibus := y.MulVec(v)
	vnorm := normalized(v)

	dSdVm = y.SamePattern()
	dSdVa = y.SamePattern()
	for i := 0; i < y.N; i++ {
		for k := y.RowPtr[i]; k < y.RowPtr[i+1]; k++ {
			j := y.ColIdx[k]
			dSdVa.Data[k] = -1i * v[i] * cmplx.Conj(y.Data[k]*v[j])
			dSdVm.Data[k] = v[i] * cmplx.Conj(y.Data[k]*vnorm[j])
			if i == j {
				dSdVa.Data[k] += 1i * v[i] * cmplx.Conj(ibus[i])
				dSdVm.Data[k] += cmplx.Conj(ibus[i]) * vnorm[i]
			}
		}
	}
	return dSdVm, dSdVa
}

func normalized(v []complex128) []complex128 {
	vnorm := make([]complex128, len(v))
	for i, x := range v {
		m := cmplx.Abs(x)
		if m == 0 {
			m = 1
		}
		vnorm[i] = x / complex(m, 0)
	}
	return vnorm
}

// jacobianBuilder assembles the base angle/magnitude Jacobian block.
// All strategies must produce numerically identical matrices for the same
// inputs; selection is a performance decision made once per solve.
type jacobianBuilder func(jm matrix.Stamper, y *matrix.Complex, v []complex128, p *Partition, slackWeights []float64)

// selectJacobianBuilder picks the assembly strategy: the generic slicing
// path, or one of the specialized single-walk paths. The equal-set-size
// variant requires len(PVPQ) == len(PQ), which holds exactly when there are
// no PV buses; that is an optimization precondition, not a correctness one.
func selectJacobianBuilder(fast bool, p *Partition) jacobianBuilder {
	if !fast {
		return buildJacobianGeneric
	}
	if p.DistSlack {
		return buildJacobianFastDistSlack
	}
	if len(p.PVPQ) == len(p.PQ) {
		return buildJacobianFastSym
	}
	return buildJacobianFast
}

// buildJacobianGeneric materializes dS/dVa and dS/dVm and slices their
// real/imaginary parts into the partition's block layout. Under distributed
// slack one participation-weight column is prepended. With zero PQ buses
// and no distributed slack the result degenerates to the angle-only block;
// the magnitude loops are simply empty then.
func buildJacobianGeneric(jm matrix.Stamper, y *matrix.Complex, v []complex128, p *Partition, slackWeights []float64) {
	dSdVm, dSdVa := dSbusDV(y, v)

	stampP := func(b int) {
		r := p.pRow[b]
		for k := y.RowPtr[b]; k < y.RowPtr[b+1]; k++ {
			c := y.ColIdx[k]
			if ac := p.angCol[c]; ac >= 0 {
				jm.Add(r, ac, real(dSdVa.Data[k]))
			}
			if mc := p.magCol[c]; mc >= 0 {
				jm.Add(r, mc, real(dSdVm.Data[k]))
			}
		}
		if p.DistSlack {
			jm.Add(r, p.Slack.Start, slackWeights[b])
		}
	}

	if p.DistSlack {
		for _, b := range p.Ref {
			stampP(b)
		}
	}
	for _, b := range p.PVPQ {
		stampP(b)
	}

	for _, b := range p.PQ {
		r := p.magCol[b] // reactive rows mirror the magnitude block
		for k := y.RowPtr[b]; k < y.RowPtr[b+1]; k++ {
			c := y.ColIdx[k]
			if ac := p.angCol[c]; ac >= 0 {
				jm.Add(r, ac, imag(dSdVa.Data[k]))
			}
			if mc := p.magCol[c]; mc >= 0 {
				jm.Add(r, mc, imag(dSdVm.Data[k]))
			}
		}
	}
}

// derivArrays computes the dS/dVm and dS/dVa entry values for every
// admittance nonzero in one pass, without building matrix structures.
// Entry k corresponds to the admittance matrix's k-th stored element.
func derivArrays(y *matrix.Complex, v []complex128) (dVmX, dVaX []complex128) {
	ibus := y.MulVec(v)
	vnorm := normalized(v)

	dVmX = make([]complex128, y.NNZ())
	dVaX = make([]complex128, y.NNZ())
	for i := 0; i < y.N; i++ {
		for k := y.RowPtr[i]; k < y.RowPtr[i+1]; k++ {
			j := y.ColIdx[k]
			dVaX[k] = -1i * v[i] * cmplx.Conj(y.Data[k]*v[j])
			dVmX[k] = v[i] * cmplx.Conj(y.Data[k]*vnorm[j])
			if i == j {
				dVaX[k] += 1i * v[i] * cmplx.Conj(ibus[i])
				dVmX[k] += cmplx.Conj(ibus[i]) * vnorm[i]
			}
		}
	}
	return dVmX, dVaX
}

// buildJacobianFast walks the admittance nonzeros once per emitted row
// block, stamping entries straight into the Jacobian.
func buildJacobianFast(jm matrix.Stamper, y *matrix.Complex, v []complex128, p *Partition, _ []float64) {
	dVmX, dVaX := derivArrays(y, v)

	for _, b := range p.PVPQ {
		r := p.pRow[b]
		for k := y.RowPtr[b]; k < y.RowPtr[b+1]; k++ {
			c := y.ColIdx[k]
			if ac := p.angCol[c]; ac >= 0 {
				jm.Add(r, ac, real(dVaX[k]))
			}
			if mc := p.magCol[c]; mc >= 0 {
				jm.Add(r, mc, real(dVmX[k]))
			}
		}
	}
	for _, b := range p.PQ {
		r := p.magCol[b]
		for k := y.RowPtr[b]; k < y.RowPtr[b+1]; k++ {
			c := y.ColIdx[k]
			if ac := p.angCol[c]; ac >= 0 {
				jm.Add(r, ac, imag(dVaX[k]))
			}
			if mc := p.magCol[c]; mc >= 0 {
				jm.Add(r, mc, imag(dVmX[k]))
			}
		}
	}
}

// buildJacobianFastSym is the equal-set-size variant: with no PV buses the
// real and reactive rows of a bus share one admittance-row walk.
func buildJacobianFastSym(jm matrix.Stamper, y *matrix.Complex, v []complex128, p *Partition, _ []float64) {
	dVmX, dVaX := derivArrays(y, v)

	for _, b := range p.PQ {
		rp := p.pRow[b]
		rq := p.magCol[b]
		for k := y.RowPtr[b]; k < y.RowPtr[b+1]; k++ {
			c := y.ColIdx[k]
			if ac := p.angCol[c]; ac >= 0 {
				jm.Add(rp, ac, real(dVaX[k]))
				jm.Add(rq, ac, imag(dVaX[k]))
			}
			if mc := p.magCol[c]; mc >= 0 {
				jm.Add(rp, mc, real(dVmX[k]))
				jm.Add(rq, mc, imag(dVmX[k]))
			}
		}
	}
}

// buildJacobianFastDistSlack additionally emits the reference bus's power
// row and the slack participation column.
func buildJacobianFastDistSlack(jm matrix.Stamper, y *matrix.Complex, v []complex128, p *Partition, slackWeights []float64) {
	dVmX, dVaX := derivArrays(y, v)

	stampP := func(b int) {
		r := p.pRow[b]
		for k := y.RowPtr[b]; k < y.RowPtr[b+1]; k++ {
			c := y.ColIdx[k]
			if ac := p.angCol[c]; ac >= 0 {
				jm.Add(r, ac, real(dVaX[k]))
			}
			if mc := p.magCol[c]; mc >= 0 {
				jm.Add(r, mc, real(dVmX[k]))
			}
		}
		jm.Add(r, p.Slack.Start, slackWeights[b])
	}

	for _, b := range p.Ref {
		stampP(b)
	}
	for _, b := range p.PVPQ {
		stampP(b)
	}
	for _, b := range p.PQ {
		r := p.magCol[b]
		for k := y.RowPtr[b]; k < y.RowPtr[b+1]; k++ {
			c := y.ColIdx[k]
			if ac := p.angCol[c]; ac >= 0 {
				jm.Add(r, ac, imag(dVaX[k]))
			}
			if mc := p.magCol[c]; mc >= 0 {
				jm.Add(r, mc, imag(dVmX[k]))
			}
		}
	}
}

// trafoTapModification is the Jacobian correction for controllable
// transformer taps. The derivative model is not implemented yet, so the
// correction is a zero block: enabling taps pads the system without adding
// coupling.
// TODO: derive the dS/dtap entries and stamp them here.
func trafoTapModification(jm matrix.Stamper, p *Partition) {
	_ = jm
	_ = p
}
