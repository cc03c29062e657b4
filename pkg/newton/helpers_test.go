package newton

import (
	"math/cmplx"

	"powerflow/pkg/matrix"
	"powerflow/pkg/network"
)

// twoBusCase is one reference bus feeding one PQ load over a short line.
func twoBusCase() *network.Case {
	return &network.Case{
		Name:    "two-bus",
		BaseMVA: 100,
		Buses: []network.Bus{
			{Type: network.Ref, Vm: 1, Va: 0, BaseKV: 110},
			{Type: network.PQ, Pd: 50, Qd: 20, Vm: 1, Va: 0, BaseKV: 110},
		},
		Gens: []network.Gen{
			{Bus: 0, Pg: 55, Vset: 1, Status: true},
		},
		Branches: []network.Branch{
			{From: 0, To: 1, R: 0.01, X: 0.1, B: 0.02, Status: true},
		},
	}
}

// threeBusCase mixes one reference, one PV and one PQ bus so all three row
// classes appear in the Jacobian.
func threeBusCase() *network.Case {
	return &network.Case{
		Name:    "three-bus",
		BaseMVA: 100,
		Buses: []network.Bus{
			{Type: network.Ref, Vm: 1, Va: 0, BaseKV: 110},
			{Type: network.PV, Pd: 20, Qd: 5, Vm: 1, Va: 0, BaseKV: 110},
			{Type: network.PQ, Pd: 45, Qd: 15, Vm: 1, Va: 0, BaseKV: 110},
		},
		Gens: []network.Gen{
			{Bus: 0, Pg: 0, Qg: 0, Vset: 1, Status: true},
			{Bus: 1, Pg: 40, Qg: 0, Vset: 1.02, Status: true},
		},
		Branches: []network.Branch{
			{From: 0, To: 1, R: 0.01, X: 0.06, B: 0.02, Status: true},
			{From: 0, To: 2, R: 0.02, X: 0.12, B: 0.03, Status: true},
			{From: 1, To: 2, R: 0.015, X: 0.09, B: 0.025, Status: true},
		},
	}
}

// offNominalVoltage perturbs a flat profile so derivative terms are not
// evaluated at the trivial operating point.
func offNominalVoltage(n int) []complex128 {
	v := make([]complex128, n)
	for i := range v {
		vm := 1.0 + 0.01*float64(i+1)
		va := -0.02 * float64(i)
		v[i] = cmplx.Rect(vm, va)
	}
	return v
}

// buildDense assembles the base Jacobian with the given strategy and
// returns it densely for comparison.
func buildDense(b jacobianBuilder, y *matrix.Complex, v []complex128, p *Partition, w []float64) ([][]float64, error) {
	jm, err := matrix.NewJacobian(p.Size)
	if err != nil {
		return nil, err
	}
	defer jm.Destroy()
	b(jm, y, v, p, w)
	return jm.Dense(), nil
}
