package network

import (
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRejectsMissingReference(t *testing.T) {
	c := &Case{
		BaseMVA: 100,
		Buses:   []Bus{{Type: PQ}, {Type: PV}},
	}
	err := c.Validate()
	assert.ErrorIs(t, err, ErrNoReference)
}

func TestValidateRejectsUnknownBusType(t *testing.T) {
	c := &Case{
		BaseMVA: 100,
		Buses:   []Bus{{Type: Ref}, {Type: 7}},
	}
	err := c.Validate()
	assert.ErrorIs(t, err, ErrBusType)
}

func TestValidateRejectsOutOfRangeIndices(t *testing.T) {
	base := func() *Case {
		return &Case{BaseMVA: 100, Buses: []Bus{{Type: Ref}, {Type: PQ}}}
	}

	c := base()
	c.Gens = []Gen{{Bus: 5}}
	assert.ErrorIs(t, c.Validate(), ErrBusIndex)

	c = base()
	c.Branches = []Branch{{From: 0, To: 2, Status: true}}
	assert.ErrorIs(t, c.Validate(), ErrBusIndex)

	c = base()
	c.SVCs = []SVC{{Bus: -1}}
	assert.ErrorIs(t, c.Validate(), ErrBusIndex)

	c = base()
	c.TCSCs = []TCSC{{From: 0, To: 9}}
	assert.ErrorIs(t, c.Validate(), ErrBusIndex)
}

func TestValidateRejectsControllableSVCOnNonPQBus(t *testing.T) {
	c := &Case{
		BaseMVA: 100,
		Buses:   []Bus{{Type: Ref}, {Type: PV}, {Type: PQ}},
		SVCs:    []SVC{{Bus: 1, SetVmPu: 1, Controllable: true}},
	}
	assert.ErrorIs(t, c.Validate(), ErrSVCBus)

	// a fixed-angle device on a PV bus is a passive shunt and stays legal
	c.SVCs[0].Controllable = false
	assert.NoError(t, c.Validate())
}

func TestValidateRejectsBadBase(t *testing.T) {
	c := &Case{Buses: []Bus{{Type: Ref}}}
	assert.ErrorIs(t, c.Validate(), ErrBaseMVA)
}

func TestClassify(t *testing.T) {
	c := &Case{
		BaseMVA: 100,
		Buses:   []Bus{{Type: PQ}, {Type: Ref}, {Type: PV}, {Type: PQ}},
	}
	ref, pv, pq, err := c.Classify()
	require.NoError(t, err)
	assert.Equal(t, []int{1}, ref)
	assert.Equal(t, []int{2}, pv)
	assert.Equal(t, []int{0, 3}, pq)
}

func TestSlackWeightsNormalized(t *testing.T) {
	c := &Case{
		BaseMVA: 100,
		Buses: []Bus{
			{Type: Ref, SlackWeight: 2},
			{Type: Ref, SlackWeight: 2},
			{Type: PQ},
		},
	}
	w := c.SlackWeights([]int{0, 1})
	assert.InDelta(t, 0.5, w[0], 1e-12)
	assert.InDelta(t, 0.5, w[1], 1e-12)
	assert.Zero(t, w[2])
}

func TestSlackWeightsDefaultToFirstReference(t *testing.T) {
	c := &Case{
		BaseMVA: 100,
		Buses:   []Bus{{Type: PQ}, {Type: Ref}},
	}
	w := c.SlackWeights([]int{1})
	assert.Equal(t, []float64{0, 1}, w)
}

func TestInitialVoltage(t *testing.T) {
	c := &Case{
		BaseMVA: 100,
		Buses: []Bus{
			{Type: Ref, Vm: 1.0, Va: 0},
			{Type: PV, Vm: 1.0, Va: 10},
			{Type: PQ}, // zero Vm defaults to flat
		},
		Gens: []Gen{{Bus: 1, Vset: 1.05, Status: true}},
	}
	v := c.InitialVoltage()
	assert.InDelta(t, 1.0, cmplx.Abs(v[0]), 1e-12)
	assert.InDelta(t, 1.05, cmplx.Abs(v[1]), 1e-12)
	assert.InDelta(t, 10.0, cmplx.Phase(v[1])*180/3.141592653589793, 1e-9)
	assert.InDelta(t, 1.0, cmplx.Abs(v[2]), 1e-12)
}

func TestInitialVoltageIgnoresGenOnPQBus(t *testing.T) {
	c := &Case{
		BaseMVA: 100,
		Buses:   []Bus{{Type: Ref, Vm: 1}, {Type: PQ, Vm: 0.98}},
		Gens:    []Gen{{Bus: 1, Vset: 1.05, Status: true}},
	}
	v := c.InitialVoltage()
	assert.InDelta(t, 0.98, cmplx.Abs(v[1]), 1e-12)
}
