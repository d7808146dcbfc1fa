package ingest

import (
	"context"
	"errors"
	"runtime"
	"sync"
)

// unitGroup is one person's slice of rows: an independent unit of work with
// no shared mutable state, safe to run on any worker.
type unitGroup[R any] struct {
	personID string
	rows     []R
}

// groupByPerson splits sorted rows into per-person groups, preserving row
// order inside each group. Rows arrive sorted by person id, so groups come
// out in ascending person-id order.
func groupByPerson[R any](rows []R, personID func(R) string) []unitGroup[R] {
	var groups []unitGroup[R]
	for _, r := range rows {
		id := personID(r)
		if n := len(groups); n > 0 && groups[n-1].personID == id {
			groups[n-1].rows = append(groups[n-1].rows, r)
			continue
		}
		groups = append(groups, unitGroup[R]{personID: id, rows: []R{r}})
	}
	return groups
}

// unitResult pairs a unit's output with its person id so the merge phase can
// run in any completion order.
type unitResult[T any] struct {
	personID string
	value    T
}

// runUnits fans the groups out over a bounded worker pool and collects one
// result per group. Workers share nothing; the returned slice is the only
// synchronization point. All units run to completion even when some fail, so
// a single report covers every malformed unit instead of aborting mid-run.
func runUnits[R, T any](ctx context.Context, workers int, groups []unitGroup[R],
	fn func(g unitGroup[R]) (T, error),
) ([]unitResult[T], error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(groups) {
		workers = len(groups)
	}
	if len(groups) == 0 {
		return nil, ctx.Err()
	}

	in := make(chan unitGroup[R])
	results := make(chan unitResult[T], len(groups))
	errc := make(chan error, len(groups))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for g := range in {
				v, err := fn(g)
				if err != nil {
					errc <- err
					continue
				}
				results <- unitResult[T]{personID: g.personID, value: v}
			}
		}()
	}

feed:
	for _, g := range groups {
		select {
		case in <- g:
		case <-ctx.Done():
			break feed
		}
	}
	close(in)
	wg.Wait()
	close(results)
	close(errc)

	var errs []error
	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	for err := range errc {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	out := make([]unitResult[T], 0, len(results))
	for r := range results {
		out = append(out, r)
	}
	return out, nil
}
