// README: Ranking of a driver pool against one request.
package matching

import (
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"haulr/internal/modules/driver"
)

// Engine ranks driver pools. It never mutates drivers or deliveries.
type Engine struct {
	scorer  *Scorer
	workers int
}

func NewEngine(scorer *Scorer, workers int) *Engine {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Engine{scorer: scorer, workers: workers}
}

// FindBestMatches scores every driver, drops rejections and returns at most
// limit scores ordered by score desc, then ETA asc, then driver id asc.
// c must already be validated.
func (e *Engine) FindBestMatches(drivers []driver.Driver, c Criteria, limit int) []DriverScore {
	if limit <= 0 {
		limit = DefaultLimit
	}

	results := make([]*DriverScore, len(drivers))
	var g errgroup.Group
	g.SetLimit(e.workers)
	for i := range drivers {
		g.Go(func() error {
			if sc, ok := e.scorer.Score(drivers[i], c); ok {
				results[i] = &sc
			}
			return nil
		})
	}
	_ = g.Wait()

	ranked := make([]DriverScore, 0, len(results))
	for _, r := range results {
		if r != nil {
			ranked = append(ranked, *r)
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.EstimatedArrivalMinutes != b.EstimatedArrivalMinutes {
			return a.EstimatedArrivalMinutes < b.EstimatedArrivalMinutes
		}
		return a.DriverID < b.DriverID
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// AutoAssignDriver returns the single best candidate, if any. It only picks;
// claiming the delivery is done by the lifecycle.
func (e *Engine) AutoAssignDriver(drivers []driver.Driver, c Criteria) (DriverScore, bool) {
	best := e.FindBestMatches(drivers, c, 1)
	if len(best) == 0 {
		return DriverScore{}, false
	}
	return best[0], true
}
