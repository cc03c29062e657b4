// Package newton implements the full Newton-Raphson AC power-flow kernel:
// mismatch evaluation, sparse Jacobian assembly with FACTS and thermal
// augmentation, and the iteration driver. One solve owns all of its state
// exclusively; independent solves may run in parallel with no shared data.
package newton

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"

	"powerflow/internal/consts"
	"powerflow/pkg/matrix"
	"powerflow/pkg/network"
)

const (
	AlgorithmNR      = "nr"
	AlgorithmIwamoto = "iwamoto_nr"
)

type Options struct {
	Tolerance     float64 // convergence tolerance on the max-abs mismatch, pu
	MaxIterations int
	Algorithm     string // AlgorithmNR or AlgorithmIwamoto

	// FastJacobian selects the specialized single-walk assembly; the
	// generic path is the fallback and the reference for equivalence.
	FastJacobian bool

	DistributedSlack   bool
	VoltageDependLoads bool

	TDPF             bool
	TDPFUpdateRTheta bool    // refresh thermal resistance from ambient/wind/solar each iteration
	TDPFDelaySeconds float64 // 0 selects the steady-state temperature target

	// TrafoTaps enables the transformer-tap Jacobian modification, which is
	// currently a zero block.
	TrafoTaps bool

	// VDebug records the voltage magnitude/angle vectors after every
	// iteration.
	VDebug bool
}

func DefaultOptions() Options {
	return Options{
		Tolerance:        1e-8,
		MaxIterations:    10,
		Algorithm:        AlgorithmNR,
		FastJacobian:     true,
		TDPFUpdateRTheta: true,
	}
}

// Result is the outcome of one solve. Non-convergence within the iteration
// cap is not an error: the last computed state is returned with Converged
// false.
type Result struct {
	V          []complex128
	Converged  bool
	Iterations int

	// J is the Jacobian of the last iteration, nil if convergence was
	// reached on the initial mismatch. The caller owns it.
	J *matrix.Jacobian

	Slack       float64 // distributed slack deviation, pu
	MaxMismatch float64

	// MismatchTrace holds the max-abs mismatch after every evaluation,
	// starting with F(x0).
	MismatchTrace []float64
	VmTrace       [][]float64 // per-iteration, only with VDebug
	VaTrace       [][]float64

	SVCFiringAngles  []float64
	TCSCFiringAngles []float64
	TemperaturesC    []float64 // one per thermally-modeled line
	RTheta           []float64 // thermal resistance, K/MW, one per thermal line
}

// Solve runs the Newton-Raphson power flow on the case snapshot.
// Converged voltages, device states and conductor temperatures are written
// back into the case on return, whether or not convergence was reached.
// A structurally singular Jacobian surfaces as an error wrapping
// matrix.ErrSingular.
func Solve(cs *network.Case, opts Options) (*Result, error) {
	if opts.Algorithm == AlgorithmIwamoto && opts.TDPF {
		return nil, fmt.Errorf("%w: %s cannot be combined with thermal feedback", ErrOptionConflict, AlgorithmIwamoto)
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = 1e-8
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 10
	}
	iwamoto := opts.Algorithm == AlgorithmIwamoto

	ref, pv, pq, err := cs.Classify()
	if err != nil {
		return nil, err
	}

	svc := newSVCState(cs.SVCs)
	tcsc := newTCSCState(cs.TCSCs)

	// working branch copy: thermal feedback rewrites resistances
	branches := append([]network.Branch(nil), cs.Branches...)
	var tdpf *tdpfState
	nTemp := 0
	if opts.TDPF {
		tdpf = newTDPFState(cs, branches, opts.TDPFUpdateRTheta, opts.TDPFDelaySeconds)
		nTemp = tdpf.count()
	}

	p, err := NewPartition(ref, pv, pq, len(cs.Buses), opts.DistributedSlack, svc.nControllable, tcsc.nControllable, nTemp)
	if err != nil {
		return nil, err
	}
	buildJ := selectJacobianBuilder(opts.FastJacobian, p)

	slackWeights := cs.SlackWeights(ref)
	ybus := network.MakeYbus(cs.BaseMVA, cs.Buses, branches)

	v := cs.InitialVoltage()
	vm := make([]float64, len(v))
	va := make([]float64, len(v))
	for i, x := range v {
		vm[i] = cmplx.Abs(x)
		va[i] = cmplx.Phase(x)
	}

	sbus := network.MakeSbus(cs, nil)
	sbusBackup := append([]complex128(nil), sbus...)

	// initial guess for the slack deviation
	var pg, pd float64
	for _, g := range cs.Gens {
		if g.Status {
			pg += g.Pg
		}
	}
	for _, b := range cs.Buses {
		pd += b.Pd
	}
	slack := (pg - pd) / cs.BaseMVA

	var ybusTCSC *matrix.Complex
	if !tcsc.empty() {
		ybusTCSC = tcsc.makeYbus(len(v))
	}

	f := evaluateFx(ybus, v, sbus, p, slackWeights, slack, svc, tcsc, ybusTCSC)
	if tdpf != nil {
		tdpf.calcLoss(v)
		if tdpf.updateRTheta {
			tdpf.calcRTheta()
		}
		// thermal rows start at zero so a flat thermal start cannot block
		// zero-iteration convergence of an already-balanced network
		f = append(f, make([]float64, tdpf.count())...)
	}

	res := &Result{V: v}
	maxF := mismatchNorm(f)
	res.MismatchTrace = append(res.MismatchTrace, maxF)
	converged := maxF < opts.Tolerance

	if opts.VDebug {
		res.VmTrace = append(res.VmTrace, append([]float64(nil), vm...))
		res.VaTrace = append(res.VaTrace, append([]float64(nil), va...))
	}

	jm, err := matrix.NewJacobian(p.Size)
	if err != nil {
		return nil, err
	}

	i := 0
	for !converged && i < opts.MaxIterations {
		i++

		if tdpf != nil {
			tdpf.updateResistance(branches)
			ybus = network.MakeYbus(cs.BaseMVA, cs.Buses, branches)
		}

		jm.Clear()
		buildJ(jm, ybus, v, p, slackWeights)
		if opts.TrafoTaps {
			trafoTapModification(jm, p)
		}
		if tdpf != nil {
			tdpf.stampJacobian(jm, p, v)
		}
		svc.stampJacobian(jm, p, v)
		if !tcsc.empty() {
			tcsc.stampJacobian(jm, p, v)
		}

		negF := make([]float64, len(f))
		for k, x := range f {
			negF[k] = -x
		}
		jm.LoadRHS(negF)
		dx, err := jm.Solve()
		if err != nil {
			jm.Destroy()
			return nil, fmt.Errorf("iteration %d: %w", i, err)
		}

		if p.DistSlack {
			slack += dx[p.Slack.Start]
		}

		mu := 1.0
		if iwamoto {
			dVa := make([]float64, len(v))
			dVm := make([]float64, len(v))
			for k, b := range p.PVPQ {
				dVa[b] = dx[p.AngPV.Start+k]
			}
			for k, b := range p.PQ {
				dVm[b] = dx[p.MagPQ.Start+k]
			}
			mu = iwamotoMultiplier(ybus, p, f, dVa, dVm)
		}

		for k, b := range p.PVPQ {
			va[b] += mu * dx[p.AngPV.Start+k]
		}
		for k, b := range p.PQ {
			vm[b] += mu * dx[p.MagPQ.Start+k]
		}
		svc.applyStep(dx, p.SVC)
		tcsc.applyStep(dx, p.TCSC)
		if tdpf != nil {
			tdpf.applyStep(dx, p.Temp)
		}

		// recombine and re-split in case a negative magnitude wrapped the
		// angle around
		for k := range v {
			v[k] = cmplx.Rect(vm[k], va[k])
			vm[k] = cmplx.Abs(v[k])
			va[k] = cmplx.Phase(v[k])
		}

		if opts.VDebug {
			res.VmTrace = append(res.VmTrace, append([]float64(nil), vm...))
			res.VaTrace = append(res.VaTrace, append([]float64(nil), va...))
		}

		if opts.VoltageDependLoads {
			sbus = network.MakeSbus(cs, vm)
			copy(sbusBackup, sbus)
		}
		if len(svc.buses) > 0 {
			svc.updateSbus(sbus, sbusBackup, v)
		}
		if !tcsc.empty() {
			ybusTCSC = tcsc.makeYbus(len(v))
		}

		f = evaluateFx(ybus, v, sbus, p, slackWeights, slack, svc, tcsc, ybusTCSC)
		if tdpf != nil {
			tdpf.calcLoss(v)
			if tdpf.updateRTheta {
				tdpf.calcRTheta()
			}
			f = tdpf.residuals(f)
		}

		maxF = mismatchNorm(f)
		res.MismatchTrace = append(res.MismatchTrace, maxF)
		converged = maxF < opts.Tolerance
		logrus.Debugf("newton: iteration %d, max mismatch %.3e", i, maxF)
	}

	if !converged {
		logrus.Warnf("newton: no convergence within %d iterations, max mismatch %.3e", opts.MaxIterations, maxF)
	}

	if i > 0 {
		res.J = jm
	} else {
		jm.Destroy()
	}

	res.Converged = converged
	res.Iterations = i
	res.Slack = slack
	res.MaxMismatch = maxF

	// write the final state back into the case snapshot
	for k := range cs.Buses {
		cs.Buses[k].Vm = vm[k]
		cs.Buses[k].Va = va[k] * 180 / math.Pi
	}
	svc.annotate(cs.SVCs)
	tcsc.annotate(cs, v)
	if tdpf != nil {
		tdpf.annotate(branches)
		for _, line := range tdpf.lines {
			cs.Branches[line] = branches[line]
		}
		res.TemperaturesC = tdpf.temperaturesC()
		res.RTheta = make([]float64, tdpf.count())
		for k, rt := range tdpf.rTheta {
			res.RTheta[k] = rt / cs.BaseMVA * consts.TBASE
		}
	}
	res.SVCFiringAngles = append([]float64(nil), svc.x...)
	res.TCSCFiringAngles = append([]float64(nil), tcsc.x...)

	return res, nil
}

func mismatchNorm(f []float64) float64 {
	if len(f) == 0 {
		return 0
	}
	return floats.Norm(f, math.Inf(1))
}
