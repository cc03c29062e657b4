package newton

import "fmt"

// Span is a half-open [Start, End) slice of the flat state vector.
type Span struct {
	Start, End int
}

func (s Span) Len() int    { return s.End - s.Start }
func (s Span) Empty() bool { return s.End <= s.Start }

// Partition fixes the ordering of unknowns in the state vector and the
// matching row/column layout of the Jacobian:
//
//	[ slack | Va(PV) | Va(PQ) | Vm(PQ) | SVC | TCSC | T ]
//
// The slack block exists only under distributed slack and is one slot wide.
// Mismatch rows mirror the same layout: real power rows span the angle
// blocks (plus the slack block's row under distributed slack), reactive
// rows the magnitude block, device and temperature residuals their own
// blocks. All spans and bus lookups are computed once per solve; the active
// sets do not change between iterations.
type Partition struct {
	Slack Span
	AngPV Span
	AngPQ Span
	MagPQ Span
	SVC   Span
	TCSC  Span
	Temp  Span
	Size  int

	// Effective sets after distributed-slack reclassification: with more
	// than one reference bus, all but the first become PV-like and keep a
	// slack participation weight.
	Ref  []int
	PV   []int
	PQ   []int
	PVPQ []int

	DistSlack bool

	pRow   []int // bus -> real power mismatch row, -1 if none
	angCol []int // bus -> voltage angle column, -1 if none
	magCol []int // bus -> voltage magnitude column, -1 if none
	nPRows int
}

// NewPartition lays out the state vector for the given classification and
// augmentation counts. Zero-sized sets yield empty, non-overlapping spans.
func NewPartition(ref, pv, pq []int, nBus int, distSlack bool, nSVC, nTCSC, nTemp int) (*Partition, error) {
	if len(ref) == 0 {
		return nil, ErrEmptyReference
	}
	if err := checkDisjoint(ref, pv, pq, nBus); err != nil {
		return nil, err
	}

	ref = append([]int(nil), ref...)
	pv = append([]int(nil), pv...)
	if distSlack && len(ref) > 1 {
		pv = append(append([]int(nil), ref[1:]...), pv...)
		ref = ref[:1]
	}

	p := &Partition{
		Ref:       ref,
		PV:        pv,
		PQ:        append([]int(nil), pq...),
		DistSlack: distSlack,
	}
	p.PVPQ = append(append([]int(nil), p.PV...), p.PQ...)

	nref, npv, npq := len(ref), len(pv), len(p.PQ)

	j1 := 0
	if distSlack {
		j1 = nref // one slack deviation slot
	}
	p.Slack = Span{0, j1}
	p.AngPV = Span{j1, j1 + npv}
	p.AngPQ = Span{j1 + npv, j1 + npv + npq}
	p.MagPQ = Span{j1 + npv + npq, j1 + npv + 2*npq}
	p.SVC = Span{p.MagPQ.End, p.MagPQ.End + nSVC}
	p.TCSC = Span{p.SVC.End, p.SVC.End + nTCSC}
	p.Temp = Span{p.TCSC.End, p.TCSC.End + nTemp}
	p.Size = p.Temp.End

	p.pRow = fill(nBus, -1)
	p.angCol = fill(nBus, -1)
	p.magCol = fill(nBus, -1)

	row := 0
	if distSlack {
		for _, b := range ref {
			p.pRow[b] = row
			row++
		}
	}
	for _, b := range p.PVPQ {
		p.pRow[b] = row
		row++
	}
	p.nPRows = row

	for k, b := range p.PVPQ {
		p.angCol[b] = p.AngPV.Start + k
	}
	for k, b := range p.PQ {
		p.magCol[b] = p.MagPQ.Start + k
	}

	return p, nil
}

func checkDisjoint(ref, pv, pq []int, nBus int) error {
	seen := make([]bool, nBus)
	for _, set := range [][]int{ref, pv, pq} {
		for _, b := range set {
			if b < 0 || b >= nBus {
				return fmt.Errorf("%w: bus %d out of range", ErrClassification, b)
			}
			if seen[b] {
				return fmt.Errorf("%w: bus %d appears twice", ErrClassification, b)
			}
			seen[b] = true
		}
	}
	for b, ok := range seen {
		if !ok {
			return fmt.Errorf("%w: bus %d unclassified", ErrClassification, b)
		}
	}
	return nil
}

func fill(n, v int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = v
	}
	return s
}

// PRow returns the real power mismatch row of a bus. Reference buses have a
// row only under distributed slack.
func (p *Partition) PRow(bus int) (int, bool) {
	r := p.pRow[bus]
	return r, r >= 0
}

// QRow returns the reactive power mismatch row of a PQ bus.
func (p *Partition) QRow(bus int) (int, bool) {
	c := p.magCol[bus]
	return c, c >= 0
}

// AngleCol returns the voltage angle column of a PV or PQ bus.
func (p *Partition) AngleCol(bus int) (int, bool) {
	c := p.angCol[bus]
	return c, c >= 0
}

// MagCol returns the voltage magnitude column of a PQ bus.
func (p *Partition) MagCol(bus int) (int, bool) {
	c := p.magCol[bus]
	return c, c >= 0
}
