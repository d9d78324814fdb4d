package main

import (
	"context"
	"io"
	"testing"
	"time"
)

func TestBenchCasesPass(t *testing.T) {
	r := newBenchRunner(benchConfig{Drivers: 50, Concurrency: 8, Duration: 50 * time.Millisecond, Seed: 7}, io.Discard)
	for _, res := range r.RunAll(context.Background()) {
		if res.Status != statusPass {
			t.Errorf("%s: %s (%s)", res.Name, res.Status, res.Note)
		}
	}
}

func TestSyntheticDriversDeterministic(t *testing.T) {
	a := syntheticDrivers(10, 3, 5)
	b := syntheticDrivers(10, 3, 5)
	for i := range a {
		if *a[i].Location != *b[i].Location || a[i].VehicleType != b[i].VehicleType {
			t.Fatalf("driver %d differs between runs with the same seed", i)
		}
	}
}
