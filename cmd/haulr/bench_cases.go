// README: Bench cases; synthetic pool, concurrent accept, payout split, matching throughput.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"haulr/internal/infra"
	"haulr/internal/modules/delivery"
	"haulr/internal/modules/driver"
	"haulr/internal/modules/matching"
	"haulr/internal/modules/payout"
	"haulr/internal/types"
)

const (
	statusPass = "PASS"
	statusFail = "FAIL"
)

// Johannesburg CBD; the synthetic pool is scattered around it.
var benchOrigin = types.Coordinate{Latitude: -26.2041, Longitude: 28.0473}

type benchResult struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type benchCase struct {
	Name string
	Run  func(ctx context.Context) benchResult
}

type benchRunner struct {
	cfg benchConfig
	out io.Writer
}

func newBenchRunner(cfg benchConfig, out io.Writer) *benchRunner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &benchRunner{cfg: cfg, out: out}
}

func (r *benchRunner) RunAll(ctx context.Context) []benchResult {
	cases := []benchCase{
		{"payout split R123.45", r.payoutSplit},
		{"concurrent accept has one winner", r.concurrentAccept},
		{"matching throughput", r.matchingThroughput},
	}
	results := make([]benchResult, 0, len(cases))
	for _, tc := range cases {
		start := time.Now()
		res := tc.Run(ctx)
		res.Name = tc.Name
		if res.Latency == 0 {
			res.Latency = time.Since(start)
		}
		results = append(results, res)
		fmt.Fprintf(r.out, "%-5s %s (%s)", res.Status, res.Name, res.Latency)
		if res.Note != "" {
			fmt.Fprintf(r.out, " - %s", res.Note)
		}
		fmt.Fprintln(r.out)
	}
	return results
}

func (r *benchRunner) payoutSplit(context.Context) benchResult {
	s, err := payout.SplitFee(types.FromCents(12345))
	if err != nil {
		return benchResult{Status: statusFail, Note: err.Error()}
	}
	if s.Driver.Amount != 7407 || s.Platform.Amount != 4938 {
		return benchResult{Status: statusFail, Note: fmt.Sprintf("driver=%s platform=%s", s.Driver, s.Platform)}
	}
	return benchResult{Status: statusPass, Note: fmt.Sprintf("driver=%s platform=%s", s.Driver, s.Platform)}
}

func (r *benchRunner) concurrentAccept(ctx context.Context) benchResult {
	pool := syntheticDrivers(r.cfg.Concurrency, r.cfg.Seed, 0.5)
	drivers := driver.NewMemoryStore(pool...)
	store := delivery.NewMemoryStore()
	svc := delivery.NewService(delivery.Deps{
		Store:   store,
		Drivers: drivers,
		Tx:      infra.NewMemoryTx(store, drivers),
	})
	d, _, err := svc.RequestDelivery(ctx, delivery.RequestCommand{
		CustomerID:      "bench-customer",
		Pickup:          delivery.Place{Address: "Bench pickup", Coordinate: benchOrigin},
		Dropoff:         delivery.Place{Address: "Bench dropoff", Coordinate: types.Coordinate{Latitude: -26.1076, Longitude: 28.0567}},
		ItemDescription: "bench parcel",
		ItemSize:        "small",
		ItemWeight:      delivery.ItemWeightLight,
		MaterialType:    driver.MaterialParcels,
		WeightKg:        2,
		PaymentMethod:   delivery.PaymentEFT,
	})
	if err != nil {
		return benchResult{Status: statusFail, Note: err.Error()}
	}

	var wins, assigned, other atomic.Int64
	start := make(chan struct{})
	var wg sync.WaitGroup
	for _, drv := range pool {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.AcceptDelivery(ctx, delivery.AcceptCommand{DeliveryID: d.ID, DriverID: drv.ID})
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, delivery.ErrDeliveryAlreadyAssigned), errors.Is(err, delivery.ErrConflict):
				assigned.Add(1)
			default:
				other.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	note := fmt.Sprintf("winners=%d rejected=%d other=%d", wins.Load(), assigned.Load(), other.Load())
	if wins.Load() != 1 || other.Load() != 0 {
		return benchResult{Status: statusFail, Note: note}
	}
	return benchResult{Status: statusPass, Note: note}
}

func (r *benchRunner) matchingThroughput(ctx context.Context) benchResult {
	pool := syntheticDrivers(r.cfg.Drivers, r.cfg.Seed, 25)
	engine := matching.NewEngine(matching.NewScorer(nil, 0), 0)
	c := matching.Criteria{
		CustomerLocation: &benchOrigin,
		DeliveryLocation: &types.Coordinate{Latitude: -26.1076, Longitude: 28.0567},
		MaterialType:     driver.MaterialParcels,
		WeightKg:         5,
		Urgency:          matching.UrgencyMedium,
	}

	end := time.Now().Add(r.cfg.Duration)
	var mu sync.Mutex
	var latencies []time.Duration
	g, gctx := errgroup.WithContext(ctx)
	for range r.cfg.Concurrency {
		g.Go(func() error {
			var local []time.Duration
			for time.Now().Before(end) && gctx.Err() == nil {
				t := time.Now()
				engine.FindBestMatches(pool, c, matching.DefaultLimit)
				local = append(local, time.Since(t))
			}
			mu.Lock()
			latencies = append(latencies, local...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if len(latencies) == 0 {
		return benchResult{Status: statusFail, Note: "no rankings completed"}
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	p50 := latencies[len(latencies)/2]
	p95 := latencies[len(latencies)*95/100]
	rps := float64(len(latencies)) / r.cfg.Duration.Seconds()
	return benchResult{
		Status:  statusPass,
		Latency: p50,
		Note:    fmt.Sprintf("pool=%d rankings/s=%.1f p50=%s p95=%s", len(pool), rps, p50, p95),
	}
}

// syntheticDrivers scatters n available drivers within spreadKm of benchOrigin.
func syntheticDrivers(n int, seed uint64, spreadKm float64) []driver.Driver {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	vehicles := []driver.VehicleType{driver.VehicleMotorcycle, driver.VehicleCar, driver.VehicleBakkie, driver.VehicleVan, driver.VehicleTruck}
	// ~111 km per degree of latitude.
	spreadDeg := spreadKm / 111.0
	out := make([]driver.Driver, n)
	for i := range out {
		at := types.Coordinate{
			Latitude:  benchOrigin.Latitude + (rng.Float64()*2-1)*spreadDeg,
			Longitude: benchOrigin.Longitude + (rng.Float64()*2-1)*spreadDeg,
		}
		out[i] = driver.Driver{
			ID:                  types.ID(fmt.Sprintf("bench-%05d", i)),
			Name:                fmt.Sprintf("Bench driver %d", i),
			Rating:              3 + rng.Float64()*2,
			VehicleType:         vehicles[rng.IntN(len(vehicles))],
			Status:              driver.StatusAvailable,
			CurrentJobs:         rng.IntN(3),
			ExperienceYears:     rng.IntN(12),
			CompletedDeliveries: rng.IntN(600),
			Location:            &at,
		}
	}
	return out
}
