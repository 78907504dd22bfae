// Package benchmark derives the edge metrics StartRound needs from measured
// link throughput, porting the original demo's sym_metric "hashy metric":
// a single 64-bit value that is unique per agent pair, symmetric (both
// endpoints compute the same number from the same throughput), and
// dominated by throughput so no agent id can out-rank real bandwidth.
package benchmark

import (
	"math"
	"time"

	"github.com/elwin-labs/go-ghs/pkg/ghs"
)

// Kbps is a measured link throughput in kilobits per second.
type Kbps uint32

// SymMetric composes a ghs.Metric from the two endpoint ids and a measured
// throughput. The high 32 bits invert throughput (higher bandwidth produces
// a lower, more desirable metric), the next 16 bits hold the larger agent
// id, and the low 16 bits hold the smaller one, so any two distinct pairs
// never collide even under identical throughput.
func SymMetric(agentTo, agentFrom ghs.AgentID, kbps Kbps) ghs.Metric {
	bigger, smaller := agentTo, agentFrom
	if smaller > bigger {
		bigger, smaller = smaller, bigger
	}

	var ikbps uint64
	if kbps == 0 {
		ikbps = math.MaxUint32
	} else {
		ikbps = uint64(math.MaxUint32 / float64(kbps))
	}

	return ghs.Metric(uint64(bigger)<<16 | uint64(smaller) | ikbps<<32)
}

// Measurer estimates the throughput to a peer, typically by timing a small
// fixed-size exchange over the already-established transport.
type Measurer interface {
	Measure(peer ghs.AgentID) (Kbps, error)
}

// RoundTripMeasurer derives a throughput estimate from the wall-clock time
// a probe round trip to ping takes: payloadBits worth of data is assumed to
// have crossed the wire in that time. It is a stand-in for the original
// demo's "little_iperf", which actually pushed bytes over the wire; here
// the caller supplies the round-trip prober (e.g. a transport echo) and
// this type turns its latency into a Kbps figure.
type RoundTripMeasurer struct {
	PayloadBits uint64
	Ping        func(ghs.AgentID) error
}

// Measure times Ping and converts the elapsed duration into an effective
// throughput. A ping that errors reports zero throughput, which SymMetric
// maps to the largest inverted-throughput field (MaxUint32), so that link
// ranks behind every link with measured throughput above 1 Kbps. The
// result is still a valid metric, not MetricWorst.
func (m RoundTripMeasurer) Measure(peer ghs.AgentID) (Kbps, error) {
	start := time.Now()
	if err := m.Ping(peer); err != nil {
		return 0, err
	}
	elapsed := time.Since(start)
	if elapsed <= 0 {
		return Kbps(math.MaxUint32), nil
	}
	bitsPerSecond := float64(m.PayloadBits) / elapsed.Seconds()
	kbps := bitsPerSecond / 1000
	if kbps > math.MaxUint32 {
		return Kbps(math.MaxUint32), nil
	}
	return Kbps(kbps), nil
}
