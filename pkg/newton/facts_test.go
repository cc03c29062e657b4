package newton

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"powerflow/pkg/network"
)

func TestYSVCDerivative(t *testing.T) {
	const h = 1e-7
	for _, x := range []float64{1.7, 2.2, 2.8, 3.0} {
		fd := (calcYSVC(x+h, 1, -10) - calcYSVC(x-h, 1, -10)) / (2 * h)
		assert.InDelta(t, fd, dYSVCdx(x, 1), 1e-6, "x=%g", x)
	}
}

func TestSVCHoldsVoltageTarget(t *testing.T) {
	cs := twoBusCase()
	cs.SVCs = []network.SVC{
		{Bus: 1, SetVmPu: 0.99, FiringAngle: 2.0, XLPu: 1, XCvarPu: -2, Controllable: true},
	}

	opts := DefaultOptions()
	opts.MaxIterations = 30
	res, err := Solve(cs, opts)
	require.NoError(t, err)
	require.True(t, res.Converged)
	defer res.J.Destroy()

	assert.InDelta(t, 0.99, cmplx.Abs(res.V[1]), 1e-7)
	require.Len(t, res.SVCFiringAngles, 1)
	assert.NotEqual(t, 2.0, res.SVCFiringAngles[0])

	// writeback: the converged angle and injection land on the device record
	assert.InDelta(t, res.SVCFiringAngles[0], cs.SVCs[0].FiringAngle, 1e-15)
	// holding the bus above its natural sag takes capacitive injection
	assert.Negative(t, cs.SVCs[0].QPu)
}

// A fixed-angle SVC is a passive shunt; re-enabling control with the
// resulting voltage as the target must leave the angle where it is.
func TestSVCNoAdjustmentAtOwnOperatingPoint(t *testing.T) {
	cs := twoBusCase()
	cs.SVCs = []network.SVC{
		{Bus: 1, SetVmPu: 1, FiringAngle: 2.8, XLPu: 1, XCvarPu: -10},
	}

	opts := DefaultOptions()
	opts.MaxIterations = 30
	res, err := Solve(cs, opts)
	require.NoError(t, err)
	require.True(t, res.Converged)
	res.J.Destroy()

	cs.SVCs[0].Controllable = true
	cs.SVCs[0].SetVmPu = cs.Buses[1].Vm

	res2, err := Solve(cs, opts)
	require.NoError(t, err)
	require.True(t, res2.Converged)
	if res2.J != nil {
		res2.J.Destroy()
	}
	assert.InDelta(t, 2.8, res2.SVCFiringAngles[0], 1e-6)
}

// A controllable SVC on a bus without a magnitude state would leave a
// structurally empty residual row; the solve must refuse it up front
// instead of failing inside the factorization.
func TestSVCOnNonPQBusRejected(t *testing.T) {
	cs := threeBusCase()
	cs.SVCs = []network.SVC{
		{Bus: 1, SetVmPu: 1.02, FiringAngle: 2.0, XLPu: 1, XCvarPu: -2, Controllable: true},
	}

	_, err := Solve(cs, DefaultOptions())
	assert.ErrorIs(t, err, network.ErrSVCBus)
}

func TestTCSCMakeYbus(t *testing.T) {
	tcsc := newTCSCState([]network.TCSC{
		{From: 0, To: 1, FiringAngle: 2.9, XLPu: 0.1, XCvarPu: -1, Status: true},
	})
	y := tcsc.makeYbus(3)

	ydev := complex(0, -calcYSVC(2.9, 0.1, -1))
	assert.InDelta(t, imag(ydev), imag(y.At(0, 0)), 1e-15)
	assert.InDelta(t, imag(ydev), imag(y.At(1, 1)), 1e-15)
	assert.InDelta(t, -imag(ydev), imag(y.At(0, 1)), 1e-15)
	assert.InDelta(t, -imag(ydev), imag(y.At(1, 0)), 1e-15)
	// no real part and no coupling to other buses
	assert.Zero(t, real(y.At(0, 1)))
	assert.Zero(t, y.At(2, 2))
}

func TestTCSCOutOfServiceSkipped(t *testing.T) {
	tcsc := newTCSCState([]network.TCSC{
		{From: 0, To: 1, FiringAngle: 2.9, XLPu: 0.1, XCvarPu: -1, Controllable: true},
	})
	assert.True(t, tcsc.empty())
	assert.Zero(t, tcsc.nControllable)
}

// terminalDerivs must agree with finite differences of the device injection.
func TestTCSCTerminalDerivsFiniteDifference(t *testing.T) {
	tcsc := newTCSCState([]network.TCSC{
		{From: 0, To: 1, FiringAngle: 2.9, XLPu: 0.1, XCvarPu: -1, Status: true, Controllable: true},
	})
	v := offNominalVoltage(2)
	d := tcsc.derivs(0, v)

	const h = 1e-7
	sdev := func(vv []complex128, x float64) [2]complex128 {
		save := tcsc.x[0]
		tcsc.x[0] = x
		s := deviceInjection(tcsc.makeYbus(2), vv)
		tcsc.x[0] = save
		return [2]complex128{s[0], s[1]}
	}

	s0 := sdev(v, tcsc.x[0])
	for j := 0; j < 2; j++ {
		vm, va := cmplx.Abs(v[j]), cmplx.Phase(v[j])

		vAng := append([]complex128(nil), v...)
		vAng[j] = cmplx.Rect(vm, va+h)
		sAng := sdev(vAng, tcsc.x[0])

		vMag := append([]complex128(nil), v...)
		vMag[j] = cmplx.Rect(vm+h, va)
		sMag := sdev(vMag, tcsc.x[0])

		for i := 0; i < 2; i++ {
			fdA := (sAng[i] - s0[i]) / complex(h, 0)
			fdM := (sMag[i] - s0[i]) / complex(h, 0)
			assert.InDelta(t, real(fdA), real(d.dSdVa[i][j]), 1e-5, "dP/dVa[%d,%d]", i, j)
			assert.InDelta(t, imag(fdA), imag(d.dSdVa[i][j]), 1e-5, "dQ/dVa[%d,%d]", i, j)
			assert.InDelta(t, real(fdM), real(d.dSdVm[i][j]), 1e-5, "dP/dVm[%d,%d]", i, j)
			assert.InDelta(t, imag(fdM), imag(d.dSdVm[i][j]), 1e-5, "dQ/dVm[%d,%d]", i, j)
		}
	}

	sX := sdev(v, tcsc.x[0]+h)
	for i := 0; i < 2; i++ {
		fd := (sX[i] - s0[i]) / complex(h, 0)
		assert.InDelta(t, real(fd), real(d.dSdX[i]), 1e-5, "dP/dx[%d]", i)
		assert.InDelta(t, imag(fd), imag(d.dSdX[i]), 1e-5, "dQ/dx[%d]", i)
	}
}

// A frozen TCSC defines its own operating point; handing that point back as
// the setpoint must not move the firing angle.
func TestTCSCNoAdjustmentAtOwnOperatingPoint(t *testing.T) {
	cs := twoBusCase()
	cs.TCSCs = []network.TCSC{
		{From: 0, To: 1, FiringAngle: 2.9, XLPu: 0.1, XCvarPu: -1, Status: true},
	}

	opts := DefaultOptions()
	opts.MaxIterations = 30
	res, err := Solve(cs, opts)
	require.NoError(t, err)
	require.True(t, res.Converged)
	res.J.Destroy()

	cs.TCSCs[0].Controllable = true
	cs.TCSCs[0].SetPPu = cs.TCSCs[0].PT

	res2, err := Solve(cs, opts)
	require.NoError(t, err)
	require.True(t, res2.Converged)
	if res2.J != nil {
		res2.J.Destroy()
	}
	assert.InDelta(t, 2.9, res2.TCSCFiringAngles[0], 1e-6)
}

// Moving the setpoint away from the frozen operating point forces the
// device to retune until its to-terminal power matches.
func TestTCSCTracksSetpoint(t *testing.T) {
	cs := twoBusCase()
	cs.TCSCs = []network.TCSC{
		{From: 0, To: 1, FiringAngle: 2.9, XLPu: 0.1, XCvarPu: -1, Status: true},
	}

	opts := DefaultOptions()
	opts.MaxIterations = 30
	res, err := Solve(cs, opts)
	require.NoError(t, err)
	require.True(t, res.Converged)
	res.J.Destroy()

	target := cs.TCSCs[0].PT * 1.05
	cs.TCSCs[0].Controllable = true
	cs.TCSCs[0].SetPPu = target

	res2, err := Solve(cs, opts)
	require.NoError(t, err)
	require.True(t, res2.Converged)
	res2.J.Destroy()

	assert.InDelta(t, target, cs.TCSCs[0].PT, 1e-7)
	assert.NotEqual(t, 2.9, res2.TCSCFiringAngles[0])
	assert.InDelta(t, 1/calcYSVC(res2.TCSCFiringAngles[0], 0.1, -1), cs.TCSCs[0].XPu, 1e-12)
	assert.Greater(t, cs.TCSCs[0].IF, 0.0)

	// firing angle advanced beyond the frozen value
	assert.Greater(t, math.Abs(res2.TCSCFiringAngles[0]-2.9), 1e-8)
}
