package scatter

import "fmt"

// Run copies Len consecutive source elements starting at Src
// into consecutive destination elements starting at Dst.
type Run struct {
	Src int
	Dst int
	Len int
}

// Table is an ordered list of runs which scatters a dense source slice
// into arbitrary positions of a destination slice.
type Table struct {
	runs []Run
	// n is the number of source elements
	n int
	// max is the largest destination position
	max int
}

// New creates new Table from the ordered destination positions inds:
// source element i is written to inds[i]. Consecutive positions are merged into runs.
// It returns error if any position is negative.
func New(inds []int) (*Table, error) {
	t := &Table{n: len(inds), max: -1}

	for i, d := range inds {
		if d < 0 {
			return nil, fmt.Errorf("invalid destination position %d: %d", i, d)
		}

		if d > t.max {
			t.max = d
		}

		if k := len(t.runs) - 1; k >= 0 {
			last := &t.runs[k]
			if last.Dst+last.Len == d {
				last.Len++
				continue
			}
		}

		t.runs = append(t.runs, Run{Src: i, Dst: d, Len: 1})
	}

	return t, nil
}

// Len returns the number of source elements the table expects.
func (t *Table) Len() int {
	return t.n
}

// Runs returns a copy of table runs.
func (t *Table) Runs() []Run {
	runs := make([]Run, len(t.runs))
	copy(runs, t.runs)

	return runs
}

// Check returns error if src length differs from table length or dst is too short.
func (t *Table) Check(dst, src []float64) error {
	if len(src) != t.n {
		return fmt.Errorf("invalid source length: %d != %d", len(src), t.n)
	}

	if t.max >= len(dst) {
		return fmt.Errorf("destination too short: %d <= %d", len(dst), t.max)
	}

	return nil
}

// Apply writes src into dst.
// It returns error and leaves dst intact if Check fails.
func (t *Table) Apply(dst, src []float64) error {
	if err := t.Check(dst, src); err != nil {
		return err
	}

	for _, r := range t.runs {
		copy(dst[r.Dst:r.Dst+r.Len], src[r.Src:r.Src+r.Len])
	}

	return nil
}
