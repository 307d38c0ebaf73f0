// Package outcome holds the observed results of a two-arm experiment as an
// immutable value object, plus the contingency-table views derived from it.
package outcome

import (
	"errors"
	"fmt"

	"github.com/liftlab/liftgate/internal/stats"
)

// #region errors

// ErrInvalidCounts reports outcome counts that violate a structural
// invariant (non-positive arm size, conversions exceeding the arm size).
var ErrInvalidCounts = errors.New("invalid outcome counts")

// #endregion errors

// #region counts

// Counts is the aggregate observation for both arms.
type Counts struct {
	ControlN             int `json:"control_n"`
	ControlConversions   int `json:"control_conversions"`
	TreatmentN           int `json:"treatment_n"`
	TreatmentConversions int `json:"treatment_conversions"`
}

// NewCounts validates the structural invariants: both arms non-empty and
// conversions never exceeding the arm size.
func NewCounts(controlN, controlConversions, treatmentN, treatmentConversions int) (Counts, error) {
	if controlN <= 0 {
		return Counts{}, fmt.Errorf("%w: control n %d must be > 0", ErrInvalidCounts, controlN)
	}
	if treatmentN <= 0 {
		return Counts{}, fmt.Errorf("%w: treatment n %d must be > 0", ErrInvalidCounts, treatmentN)
	}
	if controlConversions < 0 || controlConversions > controlN {
		return Counts{}, fmt.Errorf("%w: control conversions %d not in [0,%d]", ErrInvalidCounts, controlConversions, controlN)
	}
	if treatmentConversions < 0 || treatmentConversions > treatmentN {
		return Counts{}, fmt.Errorf("%w: treatment conversions %d not in [0,%d]", ErrInvalidCounts, treatmentConversions, treatmentN)
	}
	return Counts{
		ControlN:             controlN,
		ControlConversions:   controlConversions,
		TreatmentN:           treatmentN,
		TreatmentConversions: treatmentConversions,
	}, nil
}

// #endregion counts

// #region derived

// ControlRate is the control arm conversion rate.
func (c Counts) ControlRate() float64 {
	return float64(c.ControlConversions) / float64(c.ControlN)
}

// TreatmentRate is the treatment arm conversion rate.
func (c Counts) TreatmentRate() float64 {
	return float64(c.TreatmentConversions) / float64(c.TreatmentN)
}

// AbsoluteLift is treatment rate minus control rate.
func (c Counts) AbsoluteLift() float64 {
	return c.TreatmentRate() - c.ControlRate()
}

// RelativeLift is the absolute lift divided by the control rate, 0 when the
// control rate is 0.
func (c Counts) RelativeLift() float64 {
	cr := c.ControlRate()
	if cr == 0 {
		return 0
	}
	return c.AbsoluteLift() / cr
}

// MinArmSize is the smaller of the two arm sizes.
func (c Counts) MinArmSize() int {
	if c.ControlN < c.TreatmentN {
		return c.ControlN
	}
	return c.TreatmentN
}

// #endregion derived

// #region tables

// Table is the 2x2 contingency table of raw counts with the control arm in
// the first row and conversions in the first column.
func (c Counts) Table() stats.Table2x2 {
	return stats.Table2x2{
		A: c.ControlConversions,
		B: c.ControlN - c.ControlConversions,
		C: c.TreatmentConversions,
		D: c.TreatmentN - c.TreatmentConversions,
	}
}

// ExpectedCells returns the 2x2 expected cell counts under the null of equal
// rates: expected[i][j] = rowTotal[i]*colTotal[j]/grandTotal.
func (c Counts) ExpectedCells() [2][2]float64 {
	t := c.Table()
	rows := [2]float64{float64(t.A + t.B), float64(t.C + t.D)}
	cols := [2]float64{float64(t.A + t.C), float64(t.B + t.D)}
	grand := rows[0] + rows[1]

	var exp [2][2]float64
	if grand == 0 {
		return exp
	}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			exp[i][j] = rows[i] * cols[j] / grand
		}
	}
	return exp
}

// MinExpectedCell is the smallest expected cell count, 0 for an empty table.
func (c Counts) MinExpectedCell() float64 {
	exp := c.ExpectedCells()
	min := exp[0][0]
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if exp[i][j] < min {
				min = exp[i][j]
			}
		}
	}
	return min
}

// #endregion tables
