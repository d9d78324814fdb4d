package matching

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"haulr/internal/modules/driver"
	"haulr/internal/types"
)

var (
	testNow  = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	customer = types.Coordinate{Latitude: -26.0, Longitude: 28.0}
	dropoff  = types.Coordinate{Latitude: -26.1, Longitude: 28.1}
)

// kmNorth returns a point km kilometres north of customer along the meridian.
func kmNorth(km float64) *types.Coordinate {
	return &types.Coordinate{
		Latitude:  customer.Latitude + km/6371*180/math.Pi,
		Longitude: customer.Longitude,
	}
}

func fixedClock() time.Time { return testNow }

func ptr[T any](v T) *T { return &v }

func baseCriteria() Criteria {
	return Criteria{
		CustomerLocation: &customer,
		DeliveryLocation: &dropoff,
		MaterialType:     driver.MaterialParcels,
		WeightKg:         10,
		Urgency:          UrgencyLow,
	}
}

func baseDriver(id types.ID) driver.Driver {
	last := testNow.Add(-5 * time.Hour)
	return driver.Driver{
		ID:                  id,
		Rating:              4.5,
		VehicleType:         driver.VehicleCar,
		Status:              driver.StatusAvailable,
		ExperienceYears:     2,
		CompletedDeliveries: 10,
		LastDeliveryAt:      &last,
		Location:            kmNorth(5),
	}
}

func TestWeightsSumToOne(t *testing.T) {
	if weightTotal != basisPoints {
		t.Fatalf("weights sum to %d, want %d", weightTotal, basisPoints)
	}
}

func TestScoreReferenceDriver(t *testing.T) {
	s := NewScorer(fixedClock, DefaultTrafficFactor)
	sc, ok := s.Score(baseDriver("d1"), baseCriteria())
	if !ok {
		t.Fatalf("expected driver to be eligible")
	}

	wantExperience := 0.2*0.4 + 0.4*math.Log(11)/math.Log(500) + 0.2
	checks := []struct {
		name      string
		got, want float64
	}{
		{"distance_km", sc.DistanceKm, 5},
		{"distance", sc.Factors.Distance, 0.75},
		{"rating", sc.Factors.Rating, 0.9},
		{"vehicle", sc.Factors.VehicleMatch, 1.0},
		{"availability", sc.Factors.Availability, 1.0},
		{"experience", sc.Factors.Experience, wantExperience},
		{"load_balance", sc.Factors.LoadBalance, 1.0},
		{"score", sc.Score, 0.8659339275},
	}
	for _, c := range checks {
		if math.Abs(c.got-c.want) > 1e-9 {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
	if sc.EstimatedArrivalMinutes != 9 {
		t.Errorf("eta = %d, want 9", sc.EstimatedArrivalMinutes)
	}
	if sc.EstimatedCost != types.FromCents(11000) {
		t.Errorf("cost = %v, want R110.00", sc.EstimatedCost)
	}
}

func TestScoreUrgencyMultiplierIsCapped(t *testing.T) {
	s := NewScorer(fixedClock, DefaultTrafficFactor)
	c := baseCriteria()
	c.Urgency = UrgencyHigh
	sc, ok := s.Score(baseDriver("d1"), c)
	if !ok {
		t.Fatalf("expected driver to be eligible")
	}
	if sc.Score != 1.0 {
		t.Fatalf("score = %v, want capped at 1.0", sc.Score)
	}
	// 50 + 40 + 20 = 110, * 1.5 = 165
	if sc.EstimatedCost != types.FromCents(16500) {
		t.Fatalf("cost = %v, want R165.00", sc.EstimatedCost)
	}
}

func TestScoreRejections(t *testing.T) {
	s := NewScorer(fixedClock, DefaultTrafficFactor)
	tests := []struct {
		name   string
		mutate func(*driver.Driver, *Criteria)
	}{
		{"no location", func(d *driver.Driver, _ *Criteria) { d.Location = nil }},
		{"beyond max distance", func(d *driver.Driver, c *Criteria) { c.MaxDistanceKm = ptr(4.0) }},
		{"below min rating", func(d *driver.Driver, c *Criteria) { c.MinRating = ptr(4.6) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, c := baseDriver("d1"), baseCriteria()
			tt.mutate(&d, &c)
			if _, ok := s.Score(d, c); ok {
				t.Fatalf("expected rejection")
			}
		})
	}
}

func TestScoreDefaultRadiusZeroesDistanceWithoutRejecting(t *testing.T) {
	s := NewScorer(fixedClock, DefaultTrafficFactor)
	d := baseDriver("far")
	d.Location = kmNorth(25)
	sc, ok := s.Score(d, baseCriteria())
	if !ok {
		t.Fatalf("driver beyond default radius must still be scored when no max is set")
	}
	if sc.Factors.Distance != 0 {
		t.Fatalf("distance factor = %v, want 0", sc.Factors.Distance)
	}
}

func TestVehicleMatchFactor(t *testing.T) {
	tests := []struct {
		name    string
		vehicle driver.VehicleType
		mutate  func(*Criteria)
		want    float64
	}{
		{"unknown vehicle", "hovercraft", nil, 0.5},
		{"overweight", driver.VehicleMotorcycle, func(c *Criteria) { c.WeightKg = 50 }, 0.6},
		{"unsuitable material", driver.VehicleMotorcycle, func(c *Criteria) { c.MaterialType = driver.MaterialFurniture }, 0.4 + 0.12 + 0.2},
		{"preferred is capped", driver.VehicleCar, func(c *Criteria) { c.PreferredVehicleTypes = []driver.VehicleType{driver.VehicleCar} }, 1.0},
		{"preferred lifts partial match", driver.VehicleTruck, func(c *Criteria) {
			c.PreferredVehicleTypes = []driver.VehicleType{driver.VehicleTruck}
		}, 0.4 + 0.12 + 0.24},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := baseCriteria()
			if tt.mutate != nil {
				tt.mutate(&c)
			}
			if got := vehicleMatchFactor(tt.vehicle, c); math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("vehicle factor = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAvailabilityFactor(t *testing.T) {
	tests := []struct {
		status driver.Status
		jobs   int
		want   float64
	}{
		{driver.StatusAvailable, 0, 1},
		{driver.StatusAvailable, 2, 1.0 / 3},
		{driver.StatusAvailable, 3, 0},
		{driver.StatusAvailable, 5, 0},
		{driver.StatusBusy, 0, 0},
		{driver.StatusOffline, 0, 0},
	}
	for _, tt := range tests {
		d := driver.Driver{Status: tt.status, CurrentJobs: tt.jobs}
		if got := availabilityFactor(d); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("availability(%s,%d) = %v, want %v", tt.status, tt.jobs, got, tt.want)
		}
	}
}

func TestExperienceFactorIsClamped(t *testing.T) {
	d := driver.Driver{
		ExperienceYears:     15,
		CompletedDeliveries: 1000,
		Specializations:     []driver.MaterialType{driver.MaterialParcels},
	}
	if got := experienceFactor(d, driver.MaterialParcels); got != 1.0 {
		t.Fatalf("experience = %v, want 1.0", got)
	}
}

func TestLoadBalanceFactor(t *testing.T) {
	s := NewScorer(fixedClock, DefaultTrafficFactor)
	if got := s.loadBalanceFactor(nil); got != 1 {
		t.Fatalf("never delivered = %v, want 1", got)
	}
	last := testNow.Add(-2 * time.Hour)
	if got := s.loadBalanceFactor(&last); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("2h idle = %v, want 0.5", got)
	}
}

func TestFindBestMatchesOrdering(t *testing.T) {
	e := NewEngine(NewScorer(fixedClock, DefaultTrafficFactor), 4)

	best := baseDriver("best")
	best.Location = kmNorth(1)

	tieB := baseDriver("tie-b")
	tieA := baseDriver("tie-a")

	lowRated := baseDriver("low")
	lowRated.Rating = 2

	far := baseDriver("far")
	far.Location = kmNorth(30)

	c := baseCriteria()
	c.MaxDistanceKm = ptr(20.0)

	got := e.FindBestMatches([]driver.Driver{lowRated, tieB, far, best, tieA}, c, 10)
	var ids []types.ID
	for _, sc := range got {
		ids = append(ids, sc.DriverID)
	}
	want := []types.ID{"best", "tie-a", "tie-b", "low"}
	if fmt.Sprint(ids) != fmt.Sprint(want) {
		t.Fatalf("order = %v, want %v", ids, want)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Fatalf("scores not non-increasing at %d", i)
		}
	}
}

func TestFindBestMatchesTieBreaksOnArrival(t *testing.T) {
	e := NewEngine(NewScorer(fixedClock, DefaultTrafficFactor), 1)
	// Both saturate at 1.0 under high urgency; the nearer one arrives first.
	near := baseDriver("z-near")
	near.Location = kmNorth(1)
	farther := baseDriver("a-farther")
	farther.Location = kmNorth(3)

	c := baseCriteria()
	c.Urgency = UrgencyHigh
	got := e.FindBestMatches([]driver.Driver{farther, near}, c, 2)
	if len(got) != 2 || got[0].DriverID != "z-near" {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestFindBestMatchesLimit(t *testing.T) {
	e := NewEngine(NewScorer(fixedClock, DefaultTrafficFactor), 0)
	pool := make([]driver.Driver, 0, 8)
	for _, id := range []types.ID{"a", "b", "c", "d", "e", "f", "g", "h"} {
		pool = append(pool, baseDriver(id))
	}
	if got := e.FindBestMatches(pool, baseCriteria(), 0); len(got) != DefaultLimit {
		t.Fatalf("default limit returned %d", len(got))
	}
	if got := e.FindBestMatches(pool, baseCriteria(), 3); len(got) != 3 {
		t.Fatalf("limit 3 returned %d", len(got))
	}
}

func TestAutoAssignDriver(t *testing.T) {
	e := NewEngine(NewScorer(fixedClock, DefaultTrafficFactor), 2)
	if _, ok := e.AutoAssignDriver(nil, baseCriteria()); ok {
		t.Fatalf("empty pool must yield no driver")
	}

	near := baseDriver("near")
	near.Location = kmNorth(1)
	got, ok := e.AutoAssignDriver([]driver.Driver{baseDriver("other"), near}, baseCriteria())
	if !ok || got.DriverID != "near" {
		t.Fatalf("auto assign = %+v, %v", got, ok)
	}
}

func TestAutoAssignDriverAllRejected(t *testing.T) {
	e := NewEngine(NewScorer(fixedClock, DefaultTrafficFactor), 2)
	c := baseCriteria()
	c.MaxDistanceKm = ptr(10.0)
	c.MinRating = ptr(4.0)

	unlocated := baseDriver("unlocated")
	unlocated.Location = nil
	far := baseDriver("far")
	far.Location = kmNorth(25)
	lowRated := baseDriver("low-rated")
	lowRated.Rating = 3.2

	pool := []driver.Driver{unlocated, far, lowRated}
	if got, ok := e.AutoAssignDriver(pool, c); ok {
		t.Fatalf("every driver is ineligible, got %+v", got)
	}
	if got := e.FindBestMatches(pool, c, 5); len(got) != 0 {
		t.Fatalf("expected no ranked drivers, got %+v", got)
	}
}

func TestFindBestMatchesDoesNotMutateInput(t *testing.T) {
	e := NewEngine(NewScorer(fixedClock, DefaultTrafficFactor), 2)
	pool := []driver.Driver{baseDriver("a"), baseDriver("b")}
	before := fmt.Sprintf("%+v", pool)
	_ = e.FindBestMatches(pool, baseCriteria(), 5)
	if after := fmt.Sprintf("%+v", pool); after != before {
		t.Fatalf("pool mutated")
	}
}

func TestFindBestMatchesConcurrentCallers(t *testing.T) {
	e := NewEngine(NewScorer(fixedClock, DefaultTrafficFactor), 4)
	pool := []driver.Driver{baseDriver("a"), baseDriver("b"), baseDriver("c")}

	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			got := e.FindBestMatches(pool, baseCriteria(), 5)
			if len(got) != 3 || got[0].DriverID != "a" {
				errs <- fmt.Errorf("unexpected result %+v", got)
			}
		}()
	}
	close(start)
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}

func TestCriteriaValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Criteria)
		field  string
	}{
		{"missing customer", func(c *Criteria) { c.CustomerLocation = nil }, "CustomerLocation"},
		{"missing delivery", func(c *Criteria) { c.DeliveryLocation = nil }, "DeliveryLocation"},
		{"bad latitude", func(c *Criteria) { c.CustomerLocation = &types.Coordinate{Latitude: 91, Longitude: 0} }, "Latitude"},
		{"negative weight", func(c *Criteria) { c.WeightKg = -1 }, "WeightKg"},
		{"unknown urgency", func(c *Criteria) { c.Urgency = "asap" }, "Urgency"},
		{"unknown material", func(c *Criteria) { c.MaterialType = "livestock" }, "MaterialType"},
		{"rating above five", func(c *Criteria) { c.MinRating = ptr(6.0) }, "MinRating"},
		{"zero radius", func(c *Criteria) { c.MaxDistanceKm = ptr(0.0) }, "MaxDistanceKm"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := baseCriteria()
			tt.mutate(&c)
			err := c.Validate()
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if !containsField(verr.Field, tt.field) {
				t.Fatalf("field = %q, want it to mention %q", verr.Field, tt.field)
			}
		})
	}

	c := baseCriteria()
	c.Urgency = ""
	if err := c.Validate(); err != nil {
		t.Fatalf("empty urgency should default, got %v", err)
	}
	if c.urgency() != UrgencyLow {
		t.Fatalf("default urgency = %s", c.urgency())
	}
}

func containsField(ns, field string) bool {
	return len(ns) >= len(field) && (ns == field || ns[len(ns)-len(field):] == field)
}

type fakeSource struct {
	drivers []driver.Driver
	last    driver.Filter
}

func (f *fakeSource) List(_ context.Context, flt driver.Filter) ([]driver.Driver, error) {
	f.last = flt
	return f.drivers, nil
}

type fakeNearby struct {
	ids []types.ID
	err error
}

func (f fakeNearby) NearbyDrivers(context.Context, types.Coordinate, float64) ([]types.ID, error) {
	return f.ids, f.err
}

func TestServiceRankUsesNearbyIndex(t *testing.T) {
	src := &fakeSource{drivers: []driver.Driver{baseDriver("a")}}
	svc := NewService(NewEngine(NewScorer(fixedClock, 0), 1), src, fakeNearby{ids: []types.ID{"a"}}, nil, nil)

	got, err := svc.Rank(context.Background(), baseCriteria(), 5)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one result, got %d", len(got))
	}
	if src.last.Status != driver.StatusAvailable || len(src.last.IDs) != 1 {
		t.Fatalf("unexpected filter %+v", src.last)
	}
}

func TestServiceRankFallsBackWhenIndexFails(t *testing.T) {
	src := &fakeSource{drivers: []driver.Driver{baseDriver("a")}}
	svc := NewService(NewEngine(NewScorer(fixedClock, 0), 1), src, fakeNearby{err: errors.New("down")}, nil, nil)

	if _, err := svc.Rank(context.Background(), baseCriteria(), 5); err != nil {
		t.Fatalf("rank: %v", err)
	}
	if src.last.IDs != nil {
		t.Fatalf("fallback should scan all drivers, got ids %v", src.last.IDs)
	}
}

func TestServiceRankRejectsInvalidCriteria(t *testing.T) {
	src := &fakeSource{}
	svc := NewService(NewEngine(NewScorer(fixedClock, 0), 1), src, nil, nil, nil)
	c := baseCriteria()
	c.CustomerLocation = nil
	_, err := svc.Rank(context.Background(), c, 5)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

type radiusNearby struct{ got *float64 }

func (r radiusNearby) NearbyDrivers(_ context.Context, _ types.Coordinate, km float64) ([]types.ID, error) {
	*r.got = km
	return []types.ID{"a"}, nil
}

func TestServiceSearchRadius(t *testing.T) {
	var got float64
	src := &fakeSource{drivers: []driver.Driver{baseDriver("a")}}
	svc := NewService(NewEngine(NewScorer(fixedClock, 0), 1), src, radiusNearby{got: &got}, nil, nil).WithSearchRadius(12)

	if _, err := svc.Rank(context.Background(), baseCriteria(), 5); err != nil {
		t.Fatalf("rank: %v", err)
	}
	if got != 12 {
		t.Fatalf("configured radius not used, got %v", got)
	}

	c := baseCriteria()
	c.MaxDistanceKm = ptr(7.0)
	if _, err := svc.Rank(context.Background(), c, 5); err != nil {
		t.Fatalf("rank: %v", err)
	}
	if got != 7 {
		t.Fatalf("criteria max distance should win, got %v", got)
	}
}

type memOffers struct {
	at      map[types.ID]time.Time
	drivers map[types.ID][]types.ID
}

func newMemOffers() *memOffers {
	return &memOffers{at: map[types.ID]time.Time{}, drivers: map[types.ID][]types.ID{}}
}

func (m *memOffers) RecordOffer(_ context.Context, id types.ID, ids []types.ID, at time.Time) error {
	if _, ok := m.at[id]; !ok {
		m.at[id] = at
	}
	m.drivers[id] = append(m.drivers[id], ids...)
	return nil
}

func (m *memOffers) OfferedDrivers(_ context.Context, id types.ID) ([]types.ID, error) {
	return m.drivers[id], nil
}

func (m *memOffers) OfferedAt(_ context.Context, id types.ID) (time.Time, bool, error) {
	at, ok := m.at[id]
	return at, ok, nil
}

func TestServiceOfferBookkeeping(t *testing.T) {
	ctx := context.Background()
	offers := newMemOffers()
	svc := NewService(NewEngine(NewScorer(fixedClock, DefaultTrafficFactor), 1), driver.NewMemoryStore(), nil, offers, nil)

	if _, ok, err := svc.OfferedAt(ctx, "del-1"); err != nil || ok {
		t.Fatalf("unoffered delivery: ok=%v err=%v", ok, err)
	}
	if err := svc.RecordOffer(ctx, "del-1", []DriverScore{{DriverID: "a"}, {DriverID: "b"}}); err != nil {
		t.Fatalf("record offer: %v", err)
	}
	ids, _ := svc.OfferedDrivers(ctx, "del-1")
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("offered drivers = %v", ids)
	}
	first, ok, err := svc.OfferedAt(ctx, "del-1")
	if err != nil || !ok || first.IsZero() {
		t.Fatalf("offered at: %v %v %v", first, ok, err)
	}

	if err := svc.RecordOffer(ctx, "del-1", []DriverScore{{DriverID: "c"}}); err != nil {
		t.Fatalf("second offer: %v", err)
	}
	again, _, _ := svc.OfferedAt(ctx, "del-1")
	if !again.Equal(first) {
		t.Fatalf("first offer time must be kept: %v != %v", again, first)
	}

	bare := NewService(NewEngine(NewScorer(fixedClock, DefaultTrafficFactor), 1), driver.NewMemoryStore(), nil, nil, nil)
	if _, ok, err := bare.OfferedAt(ctx, "del-1"); err != nil || ok {
		t.Fatalf("no offer log: ok=%v err=%v", ok, err)
	}
}
