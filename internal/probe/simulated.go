// Package probe provides a ProbeExecutor backend for running without a
// live SDN controller. It simulates the four probe kinds (liveness via
// LLDP, rtt via ICMP, plr via synthetic loss, bandwidth via port stats)
// the way original_source/modules/pe.py dispatches them, minus the
// OpenFlow packet construction — there is no datapath to send a wire
// probe to.
package probe

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/netiads/iads/internal/domain"
)

// SimulatedExecutor is a non-production ProbeExecutor: it fabricates
// plausible measurements instead of sending LLDP/ICMP packets on a
// datapath. It exists so the scheduler loop, API, and CLI have a
// runnable backend without a controller attached; swap it for a real
// OpenFlow-backed executor to probe an actual fabric.
type SimulatedExecutor struct {
	mu  sync.Mutex
	rng *rand.Rand
	sem chan struct{} // bounds concurrent in-flight probes (max_parallel_probes)

	// LivenessDownProbability is the chance a liveness probe reports
	// the link down, simulating an LLDP timeout.
	LivenessDownProbability float64
	// PacketLossRate is the synthetic per-packet loss rate used by the
	// plr probe's 10-packet sample, mirroring pe.py's fixed 10% figure.
	PacketLossRate float64
	// RTTBaseMillis/RTTJitterMillis parameterize the simulated ICMP
	// round-trip time.
	RTTBaseMillis, RTTJitterMillis float64
	// BandwidthMinMbps/BandwidthMaxMbps bound the simulated bandwidth
	// sample, mirroring pe.py's random.uniform(100, 1000).
	BandwidthMinMbps, BandwidthMaxMbps float64
}

// NewSimulatedExecutor builds a SimulatedExecutor with the same constants
// pe.py's simplified probes used (10% loss, 100-1000 Mbps bandwidth).
// maxParallel bounds the number of individual probes in flight at once
// across the whole batch (spec.md §5 "APS caps concurrency at
// max_parallel_probes").
func NewSimulatedExecutor(seed int64, maxParallel int) *SimulatedExecutor {
	if maxParallel <= 0 {
		maxParallel = 10
	}
	return &SimulatedExecutor{
		rng:                     rand.New(rand.NewSource(seed)),
		sem:                     make(chan struct{}, maxParallel),
		LivenessDownProbability: 0.02,
		PacketLossRate:          0.1,
		RTTBaseMillis:           5.0,
		RTTJitterMillis:         3.0,
		BandwidthMinMbps:        100,
		BandwidthMaxMbps:        1000,
	}
}

// ExecuteBatch runs every task as its own simulated probe, bounded by
// the executor's max_parallel_probes semaphore (spec.md §5 "APS caps
// concurrency at max_parallel_probes"), mirroring pe.py's execute_batch
// dispatch minus the per-metric thread-pool grouping — each task here is
// independent so it acquires its own slot instead. Once the context is
// cancelled no further probes start; the call waits for the probes
// already started and returns their results alongside ctx.Err().
func (e *SimulatedExecutor) ExecuteBatch(ctx context.Context, tasks []domain.ProbeTask) ([]domain.ProbeResult, error) {
	var wg sync.WaitGroup
	var mu sync.Mutex
	results := make([]domain.ProbeResult, 0, len(tasks))

	for _, t := range tasks {
		select {
		case <-ctx.Done():
			wg.Wait()
			mu.Lock()
			defer mu.Unlock()
			return results, ctx.Err()
		default:
		}
		select {
		case e.sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			mu.Lock()
			defer mu.Unlock()
			return results, ctx.Err()
		}
		wg.Add(1)
		go func(t domain.ProbeTask) {
			defer wg.Done()
			defer func() { <-e.sem }()
			r := e.probeOne(t)
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
		}(t)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return results, nil
	case <-ctx.Done():
		<-done
		mu.Lock()
		defer mu.Unlock()
		return results, ctx.Err()
	}
}

func (e *SimulatedExecutor) probeOne(t domain.ProbeTask) domain.ProbeResult {
	switch t.Metric {
	case domain.MetricLiveness:
		return e.probeLiveness(t)
	case domain.MetricRTT:
		return e.probeRTT(t)
	case domain.MetricPLR:
		return e.probePLR(t)
	default:
		return e.probeBandwidth(t)
	}
}

func (e *SimulatedExecutor) probeLiveness(t domain.ProbeTask) domain.ProbeResult {
	down := e.randFloat() < e.LivenessDownProbability
	return domain.ProbeResult{
		EntityID: t.EntityID, Metric: t.Metric, Success: true,
		Value: boolToFloat(!down), Timestamp: time.Now(),
	}
}

func (e *SimulatedExecutor) probeRTT(t domain.ProbeTask) domain.ProbeResult {
	rtt := e.RTTBaseMillis + e.randFloat()*e.RTTJitterMillis
	return domain.ProbeResult{
		EntityID: t.EntityID, Metric: t.Metric, Success: true,
		Value: rtt, Timestamp: time.Now(),
	}
}

func (e *SimulatedExecutor) probePLR(t domain.ProbeTask) domain.ProbeResult {
	const numPackets = 10
	received := 0
	for i := 0; i < numPackets; i++ {
		if e.randFloat() > e.PacketLossRate {
			received++
		}
	}
	plr := 1.0 - float64(received)/float64(numPackets)
	return domain.ProbeResult{
		EntityID: t.EntityID, Metric: t.Metric, Success: true,
		Value: plr, Timestamp: time.Now(),
	}
}

func (e *SimulatedExecutor) probeBandwidth(t domain.ProbeTask) domain.ProbeResult {
	span := e.BandwidthMaxMbps - e.BandwidthMinMbps
	bandwidth := e.BandwidthMinMbps + e.randFloat()*span
	return domain.ProbeResult{
		EntityID: t.EntityID, Metric: t.Metric, Success: true,
		Value: bandwidth, Timestamp: time.Now(),
	}
}

func (e *SimulatedExecutor) randFloat() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Float64()
}

func boolToFloat(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}
