package network

import (
	"math"
	"math/cmplx"

	"powerflow/pkg/matrix"
)

// MakeYbus builds the bus admittance matrix from branch and bus shunt
// parameters. It is called once per solve in the base case and once per
// iteration under thermal feedback, where branch resistances move with
// conductor temperature.
func MakeYbus(baseMVA float64, buses []Bus, branches []Branch) *matrix.Complex {
	n := len(buses)
	var rows, cols []int
	var vals []complex128

	stamp := func(i, j int, v complex128) {
		rows = append(rows, i)
		cols = append(cols, j)
		vals = append(vals, v)
	}

	for _, br := range branches {
		if !br.Status {
			continue
		}
		ys := 1 / complex(br.R, br.X)
		bc := complex(0, br.B/2)

		tap := br.Tap
		if tap == 0 {
			tap = 1
		}
		t := cmplx.Rect(tap, br.Shift*math.Pi/180)

		yff := (ys + bc) / complex(tap*tap, 0)
		yft := -ys / cmplx.Conj(t)
		ytf := -ys / t
		ytt := ys + bc

		stamp(br.From, br.From, yff)
		stamp(br.From, br.To, yft)
		stamp(br.To, br.From, ytf)
		stamp(br.To, br.To, ytt)
	}

	for i, b := range buses {
		if b.Gs != 0 || b.Bs != 0 {
			stamp(i, i, complex(b.Gs/baseMVA, b.Bs/baseMVA))
		}
	}

	return matrix.NewComplex(n, rows, cols, vals)
}
