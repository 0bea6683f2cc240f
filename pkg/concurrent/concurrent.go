package concurrent

import (
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Range is a half-open index interval [Begin, End).
type Range struct {
	Begin int
	End   int
}

// Len returns the number of indices covered by the range.
func (r Range) Len() int { return r.End - r.Begin }

// Partition splits [0, n) into the given number of contiguous blocks.
// Block b covers [b*n/blocks, (b+1)*n/blocks), so blocks differ in size by
// at most one and empty blocks are possible when blocks > n.
func Partition(n, blocks int) []Range {
	if blocks <= 0 {
		blocks = 1
	}
	out := make([]Range, blocks)
	for b := 0; b < blocks; b++ {
		out[b] = Range{Begin: b * n / blocks, End: (b + 1) * n / blocks}
	}
	return out
}

// ForEachRange runs action once per range in its own goroutine and blocks
// until every invocation has returned. It acts as a barrier: nothing after
// the call observes a partially processed range. Panics inside action are
// converted into errors. The first error encountered is returned.
func ForEachRange(ranges []Range, action func(Range) error) error {
	errGroup := errgroup.Group{}

	for _, r := range ranges {
		if r.Len() <= 0 {
			continue
		}
		errGroup.Go(func() (err error) {
			defer func() {
				if p := recover(); p != nil {
					err = fmt.Errorf("range [%d,%d): panic: %v", r.Begin, r.End, p)
				}
			}()
			return action(r)
		})
	}

	return errGroup.Wait()
}
