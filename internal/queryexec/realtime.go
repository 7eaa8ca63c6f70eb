package queryexec

import (
	"context"
	"time"
)

// DefaultRealtimeDebounce is the coalescing window applied between a
// query arriving on a SearchRealtime stream and the search it triggers
// actually starting.
const DefaultRealtimeDebounce = 120 * time.Millisecond

// SearchRealtime consumes a stream of SearchQuery values and produces a
// stream of SearchResult, one per settled query. A new query arriving
// while a previous search is still running cancels that search
// immediately; a new query arriving before debounce elapses replaces the
// pending one rather than triggering two searches. Grounded on the
// debounced_rebuilder timer-reset pattern
// (internal/indexing/debounced_rebuilder.go), generalized from file
// paths to search queries.
func (e *Executor) SearchRealtime(ctx context.Context, queries <-chan SearchQuery, debounce time.Duration) <-chan *SearchResult {
	if debounce <= 0 {
		debounce = DefaultRealtimeDebounce
	}
	out := make(chan *SearchResult)

	go func() {
		defer close(out)

		var pending *SearchQuery
		var cancelInFlight context.CancelFunc

		timer := time.NewTimer(0)
		if !timer.Stop() {
			<-timer.C
		}
		stopTimer := func() {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}
		defer stopTimer()

		for {
			select {
			case <-ctx.Done():
				if cancelInFlight != nil {
					cancelInFlight()
				}
				return

			case q, ok := <-queries:
				if !ok {
					if cancelInFlight != nil {
						cancelInFlight()
					}
					return
				}
				if cancelInFlight != nil {
					cancelInFlight()
					cancelInFlight = nil
				}
				next := q
				pending = &next
				stopTimer()
				timer.Reset(debounce)

			case <-timer.C:
				if pending == nil {
					continue
				}
				q := *pending
				pending = nil

				var runCtx context.Context
				runCtx, cancelInFlight = context.WithCancel(ctx)
				go func(runCtx context.Context, q SearchQuery) {
					result, err := e.Search(runCtx, q)
					if err != nil {
						return
					}
					select {
					case out <- result:
					case <-runCtx.Done():
					}
				}(runCtx, q)
			}
		}
	}()

	return out
}
