// Package network holds the per-unit case snapshot the solver consumes:
// bus/branch/generator arrays, bus classification and the admittance and
// injection builders. Branch impedances are per unit on the system base,
// loads and generation are in MW/Mvar, voltage angles in degrees.
package network

import (
	"fmt"
	"math"
	"math/cmplx"
)

type BusType int

const (
	PQ  BusType = 1
	PV  BusType = 2
	Ref BusType = 3
)

type Bus struct {
	Type   BusType `yaml:"type"`
	Pd     float64 `yaml:"pd"`      // load, MW
	Qd     float64 `yaml:"qd"`      // load, Mvar
	Gs     float64 `yaml:"gs"`      // shunt conductance, MW at V=1 pu
	Bs     float64 `yaml:"bs"`      // shunt susceptance, Mvar at V=1 pu
	Vm     float64 `yaml:"vm"`      // voltage magnitude, pu
	Va     float64 `yaml:"va"`      // voltage angle, degrees
	BaseKV float64 `yaml:"base_kv"` // base voltage, kV

	// SlackWeight is the distributed-slack participation factor. Only
	// meaningful on reference and PV buses; zero excludes the bus.
	SlackWeight float64 `yaml:"slack_weight"`

	// ZIP load composition for voltage-dependent loads. The constant-power
	// share is the remainder to 100 percent.
	ConstZPercent float64 `yaml:"const_z_percent"`
	ConstIPercent float64 `yaml:"const_i_percent"`
}

type Gen struct {
	Bus    int     `yaml:"bus"`
	Pg     float64 `yaml:"pg"`   // MW
	Qg     float64 `yaml:"qg"`   // Mvar
	Vset   float64 `yaml:"vset"` // voltage setpoint, pu
	Status bool    `yaml:"status"`
}

type Branch struct {
	From   int     `yaml:"from"`
	To     int     `yaml:"to"`
	R      float64 `yaml:"r"`     // pu
	X      float64 `yaml:"x"`     // pu
	B      float64 `yaml:"b"`     // total line charging, pu
	Tap    float64 `yaml:"tap"`   // off-nominal ratio, 0 means 1.0
	Shift  float64 `yaml:"shift"` // phase shift, degrees
	Status bool    `yaml:"status"`

	// Thermal (TDPF) parameters; TDPF marks the branch as
	// temperature-dependent. Temperatures in deg C.
	TDPF           bool    `yaml:"tdpf"`
	RRefOhmPerKm   float64 `yaml:"r_ref_ohm_per_km"`
	LengthKm       float64 `yaml:"length_km"`
	Alpha          float64 `yaml:"alpha"`   // resistance temperature coefficient, 1/K
	TRefC          float64 `yaml:"t_ref_c"`
	TAmbientC      float64 `yaml:"t_ambient_c"`
	TStartC        float64 `yaml:"t_start_c"`
	RateIkA        float64 `yaml:"rate_i_ka"`
	RTheta         float64 `yaml:"r_theta"` // thermal resistance, K/MW
	WindSpeedMS    float64 `yaml:"wind_speed_ms"`
	WindAngleDeg   float64 `yaml:"wind_angle_deg"`
	SolarWPerM2    float64 `yaml:"solar_w_per_m2"`
	OuterDiameterM float64 `yaml:"outer_diameter_m"`
	MCJoulePerMK   float64 `yaml:"mc_joule_per_m_k"`
	Gamma          float64 `yaml:"gamma"`   // solar absorptivity
	Epsilon        float64 `yaml:"epsilon"` // emissivity

	// Written back after a thermal solve.
	TemperatureC float64 `yaml:"-"`
}

// SVC is a static var compensator: a shunt device holding a bus voltage
// magnitude target through a thyristor-controlled susceptance.
type SVC struct {
	Bus          int     `yaml:"bus"`
	SetVmPu      float64 `yaml:"set_vm_pu"`
	FiringAngle  float64 `yaml:"firing_angle"` // radians
	XLPu         float64 `yaml:"x_l_pu"`
	XCvarPu      float64 `yaml:"x_cvar_pu"`
	Controllable bool    `yaml:"controllable"`

	// Written back after the solve.
	QPu float64 `yaml:"-"`
}

// TCSC is a thyristor-controlled series capacitor: a series device holding
// a real power flow target at its to-bus terminal.
type TCSC struct {
	From         int     `yaml:"from"`
	To           int     `yaml:"to"`
	SetPPu       float64 `yaml:"set_p_pu"`
	FiringAngle  float64 `yaml:"firing_angle"` // radians
	XLPu         float64 `yaml:"x_l_pu"`
	XCvarPu      float64 `yaml:"x_cvar_pu"`
	Controllable bool    `yaml:"controllable"`
	Status       bool    `yaml:"status"`
	MinAngle     float64 `yaml:"min_angle"`
	MaxAngle     float64 `yaml:"max_angle"`

	// Written back after the solve.
	PF, QF, PT, QT float64 `yaml:"-"`
	IF, IT         float64 `yaml:"-"`
	XPu            float64 `yaml:"-"`
}

type Case struct {
	Name     string   `yaml:"name"`
	BaseMVA  float64  `yaml:"base_mva"`
	Buses    []Bus    `yaml:"buses"`
	Gens     []Gen    `yaml:"gens"`
	Branches []Branch `yaml:"branches"`
	SVCs     []SVC    `yaml:"svcs"`
	TCSCs    []TCSC   `yaml:"tcscs"`
}

// Validate checks the structural preconditions the solver relies on:
// a positive base, known bus types, a non-empty reference set and in-range
// bus references. Violations are reported before any iteration runs.
func (c *Case) Validate() error {
	if c.BaseMVA <= 0 {
		return fmt.Errorf("%w: got %g", ErrBaseMVA, c.BaseMVA)
	}
	nref := 0
	for i, b := range c.Buses {
		switch b.Type {
		case PQ, PV:
		case Ref:
			nref++
		default:
			return fmt.Errorf("%w: bus %d has type %d", ErrBusType, i, b.Type)
		}
	}
	if nref == 0 {
		return ErrNoReference
	}
	n := len(c.Buses)
	for i, g := range c.Gens {
		if g.Bus < 0 || g.Bus >= n {
			return fmt.Errorf("%w: gen %d at bus %d", ErrBusIndex, i, g.Bus)
		}
	}
	for i, br := range c.Branches {
		if br.From < 0 || br.From >= n || br.To < 0 || br.To >= n {
			return fmt.Errorf("%w: branch %d (%d-%d)", ErrBusIndex, i, br.From, br.To)
		}
	}
	for i, s := range c.SVCs {
		if s.Bus < 0 || s.Bus >= n {
			return fmt.Errorf("%w: svc %d at bus %d", ErrBusIndex, i, s.Bus)
		}
		// a magnitude target needs a magnitude state to hold it with
		if s.Controllable && c.Buses[s.Bus].Type != PQ {
			return fmt.Errorf("%w: svc %d at bus %d", ErrSVCBus, i, s.Bus)
		}
	}
	for i, t := range c.TCSCs {
		if t.From < 0 || t.From >= n || t.To < 0 || t.To >= n {
			return fmt.Errorf("%w: tcsc %d (%d-%d)", ErrBusIndex, i, t.From, t.To)
		}
	}
	return nil
}

// Classify partitions bus indices into the reference, PV and PQ sets.
// The single Type field makes the sets disjoint by construction; Validate
// rejects unknown types and an empty reference set.
func (c *Case) Classify() (ref, pv, pq []int, err error) {
	if err := c.Validate(); err != nil {
		return nil, nil, nil, err
	}
	for i, b := range c.Buses {
		switch b.Type {
		case Ref:
			ref = append(ref, i)
		case PV:
			pv = append(pv, i)
		case PQ:
			pq = append(pq, i)
		}
	}
	return ref, pv, pq, nil
}

// SlackWeights returns the normalized distributed-slack participation
// factors. Buses without a weight stay at zero; if no bus carries a weight,
// the first reference bus takes the full share.
func (c *Case) SlackWeights(ref []int) []float64 {
	w := make([]float64, len(c.Buses))
	var sum float64
	for i, b := range c.Buses {
		w[i] = b.SlackWeight
		sum += b.SlackWeight
	}
	if sum == 0 {
		w[ref[0]] = 1
		return w
	}
	for i := range w {
		w[i] /= sum
	}
	return w
}

// InitialVoltage assembles the complex starting voltage: case Vm/Va on every
// bus, with in-service generator setpoints overriding the magnitude.
func (c *Case) InitialVoltage() []complex128 {
	v := make([]complex128, len(c.Buses))
	for i, b := range c.Buses {
		vm := b.Vm
		if vm == 0 {
			vm = 1
		}
		v[i] = cmplx.Rect(vm, b.Va*math.Pi/180)
	}
	for _, g := range c.Gens {
		if g.Status && g.Vset > 0 && c.Buses[g.Bus].Type != PQ {
			va := cmplx.Phase(v[g.Bus])
			v[g.Bus] = cmplx.Rect(g.Vset, va)
		}
	}
	return v
}
