package refinement_test

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/metrics"
	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/parallel"
	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/refinement"
	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/validation"
)

func TestFMImprovesAndNeverWorsens(t *testing.T) {
	for _, strategy := range []refinement.FMStrategy{refinement.Constrained, refinement.Unconstrained} {
		t.Run(string(strategy), func(t *testing.T) {
			fix := newCycleFixture(t, 64, metrics.Km1)
			before := metrics.ComputeKm1(fix.phg)

			cfg := refinement.DefaultFMConfig()
			cfg.Strategy = strategy
			cfg.Seed = 9
			fm := refinement.NewFMRefiner(cfg, fix.gc, fix.maxWeights, parallel.NewPool(2), zerolog.Nop())
			fm.Initialize(fix.phg)

			m := refinement.Metrics{Objective: metrics.Km1, Value: before}
			fm.Refine(fix.phg, nil, &m, 0)
			after := metrics.ComputeKm1(fix.phg)

			if after > before {
				t.Errorf("FM worsened the objective: %d → %d", before, after)
			}
			if m.Value != after {
				t.Errorf("running metric %d does not match recomputed objective %d", m.Value, after)
			}
			result := validation.VerifyPartitionState(fix.phg)
			for _, msg := range result.Errors {
				t.Error(msg)
			}
		})
	}
}

func TestFMConstrainedRespectsBalance(t *testing.T) {
	fix := newCycleFixture(t, 96, metrics.Km1)
	cfg := refinement.DefaultFMConfig()
	cfg.Seed = 4
	fm := refinement.NewFMRefiner(cfg, fix.gc, fix.maxWeights, parallel.NewPool(4), zerolog.Nop())
	fm.Initialize(fix.phg)

	m := refinement.Metrics{Objective: metrics.Km1, Value: metrics.ComputeKm1(fix.phg)}
	fm.Refine(fix.phg, nil, &m, 0)

	for b := 0; b < 2; b++ {
		if fix.phg.PartWeight(b) > fix.maxWeights[b] {
			t.Errorf("block %d weighs %d, limit %d", b, fix.phg.PartWeight(b), fix.maxWeights[b])
		}
	}
}

func TestFMUnconstrainedRestoresBalance(t *testing.T) {
	fix := newCycleFixture(t, 96, metrics.Km1)
	cfg := refinement.DefaultFMConfig()
	cfg.Strategy = refinement.Unconstrained
	cfg.Seed = 21
	fm := refinement.NewFMRefiner(cfg, fix.gc, fix.maxWeights, parallel.NewPool(2), zerolog.Nop())
	fm.Initialize(fix.phg)

	m := refinement.Metrics{Objective: metrics.Km1, Value: metrics.ComputeKm1(fix.phg)}
	fm.Refine(fix.phg, nil, &m, 0)

	for b := 0; b < 2; b++ {
		if fix.phg.PartWeight(b) > fix.maxWeights[b] {
			t.Errorf("unconstrained FM left block %d at %d, limit %d", b, fix.phg.PartWeight(b), fix.maxWeights[b])
		}
	}
	result := validation.VerifyPartitionState(fix.phg)
	for _, msg := range result.Errors {
		t.Error(msg)
	}
}

func TestRebalancerRestoresFeasibility(t *testing.T) {
	fix := newCycleFixture(t, 64, metrics.Km1)
	// force everything into block 0
	for v := 0; v < 64; v++ {
		if fix.phg.PartID(v) == 1 {
			if !fix.phg.ChangeNodePart(v, 1, 0, 1<<40, nil) {
				t.Fatalf("setup move failed for vertex %d", v)
			}
			fix.gc.RecomputePenalty(fix.phg, v)
		}
	}
	if fix.phg.PartWeight(0) != 64 {
		t.Fatalf("setup failed: block 0 weighs %d", fix.phg.PartWeight(0))
	}

	rebalancer := refinement.NewRebalancer(fix.gc, fix.maxWeights, zerolog.Nop())
	_, balanced := rebalancer.Rebalance(fix.phg, metrics.Km1)
	if !balanced {
		t.Fatal("rebalancer reported failure on a feasible instance")
	}
	for b := 0; b < 2; b++ {
		if fix.phg.PartWeight(b) > fix.maxWeights[b] {
			t.Errorf("block %d weighs %d, limit %d", b, fix.phg.PartWeight(b), fix.maxWeights[b])
		}
	}
	result := validation.VerifyPartitionState(fix.phg)
	for _, msg := range result.Errors {
		t.Error(msg)
	}
}

func TestRebalancerDeltaIsExact(t *testing.T) {
	fix := newCycleFixture(t, 64, metrics.Km1)
	for v := 0; v < 64; v++ {
		if fix.phg.PartID(v) == 1 {
			fix.phg.ChangeNodePart(v, 1, 0, 1<<40, nil)
			fix.gc.RecomputePenalty(fix.phg, v)
		}
	}
	before := metrics.ComputeKm1(fix.phg)
	rebalancer := refinement.NewRebalancer(fix.gc, fix.maxWeights, zerolog.Nop())
	delta, _ := rebalancer.Rebalance(fix.phg, metrics.Km1)
	after := metrics.ComputeKm1(fix.phg)
	if before+delta != after {
		t.Errorf("rebalancer delta %d, objective moved %d → %d", delta, before, after)
	}
}
