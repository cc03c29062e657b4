package network

// MakeSbus builds the net complex power injection per bus in pu:
// in-service generation minus load. A non-nil vm enables voltage-dependent
// loads, scaling each bus load by its ZIP composition at the given voltage
// magnitude; the constant-power share is the remainder.
func MakeSbus(c *Case, vm []float64) []complex128 {
	s := make([]complex128, len(c.Buses))
	for i, b := range c.Buses {
		scale := 1.0
		if vm != nil {
			cz := b.ConstZPercent / 100
			ci := b.ConstIPercent / 100
			cp := 1 - cz - ci
			scale = cz*vm[i]*vm[i] + ci*vm[i] + cp
		}
		s[i] -= complex(b.Pd*scale/c.BaseMVA, b.Qd*scale/c.BaseMVA)
	}
	for _, g := range c.Gens {
		if g.Status {
			s[g.Bus] += complex(g.Pg/c.BaseMVA, g.Qg/c.BaseMVA)
		}
	}
	return s
}
