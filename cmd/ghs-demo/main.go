// Command ghs-demo runs a single GHS agent: it loads its peer list and
// identity from an ini file and/or CLI switches, measures throughput to
// each peer to derive edge metrics, then joins the distributed minimum
// spanning tree / leader election round running across every other
// ghs-demo process in the same group. It mirrors the original ghs-demo.cpp
// driver and, structurally, the teacher protocol's Unity.run/poll/process
// loop.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-version"

	"github.com/elwin-labs/go-ghs/internal/benchmark"
	"github.com/elwin-labs/go-ghs/internal/config"
	"github.com/elwin-labs/go-ghs/internal/logging"
	"github.com/elwin-labs/go-ghs/internal/transport"
	"github.com/elwin-labs/go-ghs/pkg/ghs"
)

// ProtocolVersion is the wire format this binary speaks. It is parsed and
// logged at startup; agents do not exchange or compare versions.
const ProtocolVersion = "1.0.0"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	app := config.NewApp("ghs-demo", "run one agent of a GHS minimum spanning tree round")
	cfg, err := config.ParseCLI(app, args, nil)
	if err != nil {
		return fmt.Errorf("ghs-demo: %w", err)
	}
	if err := cfg.IsSane(); err != nil {
		return fmt.Errorf("ghs-demo: %w", err)
	}

	myVersion, err := version.NewVersion(ProtocolVersion)
	if err != nil {
		return fmt.Errorf("ghs-demo: bad protocol version: %w", err)
	}

	log := logging.NewConsoleLogger(fmt.Sprintf("agent-%d", cfg.MyID))
	log.Infof("starting with protocol version %s", myVersion)

	state := ghs.NewState(ghs.AgentID(cfg.MyID), config.MaxAgents, nil)
	exchange := fmt.Sprintf("ghs-demo-%d", len(cfg.Peers))
	peer := transport.PeerConfig{
		ID:       ghs.AgentID(cfg.MyID),
		Name:     fmt.Sprintf("agent-%d", cfg.MyID),
		Exchange: exchange,
	}
	trans, err := transport.NewReliableTransport(peer, log, func(down ghs.AgentID) {
		if err := state.SetEdgeStatus(down, ghs.StatusDeleted); err != nil {
			log.Warnf("could not mark edge to %d deleted: %v", down, err)
		}
	})
	if err != nil {
		return fmt.Errorf("ghs-demo: %w", err)
	}
	defer trans.Close()

	measurer := benchmark.RoundTripMeasurer{
		PayloadBits: 8_000,
		Ping: func(peer ghs.AgentID) error {
			return nil // demo measurement: a real deployment pings the peer's endpoint.
		},
	}
	for _, p := range cfg.Peers {
		kbps, err := measurer.Measure(ghs.AgentID(p.ID))
		if err != nil {
			log.Warnf("measuring link to %d: %v", p.ID, err)
			continue
		}
		metric := benchmark.SymMetric(ghs.AgentID(cfg.MyID), ghs.AgentID(p.ID), kbps)
		if err := state.SetEdge(ghs.Edge{Peer: ghs.AgentID(p.ID), Root: ghs.AgentID(cfg.MyID), Metric: metric}); err != nil {
			log.Warnf("adding edge to %d: %v", p.ID, err)
		}
	}

	if cfg.Command == config.CommandTest {
		log.Infof("self-test ok: %d peers loaded", len(cfg.Peers))
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Command == config.CommandStart {
		time.Sleep(time.Duration(cfg.WaitSeconds) * time.Second)
		out := ghs.NewQueue[ghs.Message](2 * config.MaxAgents)
		if err := state.StartRound(out); err != nil {
			return fmt.Errorf("ghs-demo: start round: %w", err)
		}
		if err := flush(ctx, trans, out); err != nil {
			return fmt.Errorf("ghs-demo: %w", err)
		}
	}

	return poll(ctx, state, trans, log)
}

// poll drains inbound messages one at a time, feeding each to state and
// shipping whatever it produces back out, until the node converges or the
// context is cancelled.
func poll(ctx context.Context, state *ghs.GhsState, trans transport.Transport, log logging.Logger) error {
	out := ghs.NewQueue[ghs.Message](2 * config.MaxAgents)
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-trans.Recv():
			if !ok {
				return nil
			}
			out.Clear()
			if err := state.Process(msg, out); err != nil {
				log.Warnf("processing %s: %v", msg, err)
				continue
			}
			if err := flush(ctx, trans, out); err != nil {
				return err
			}
			if state.IsConverged() {
				log.Infof("converged: leader=%d level=%d", state.Leader(), state.LevelOf())
				return nil
			}
		}
	}
}

func flush(ctx context.Context, trans transport.Transport, out *ghs.Queue[ghs.Message]) error {
	for out.Size() > 0 {
		m, err := out.Pop()
		if err != nil {
			return err
		}
		if err := trans.Send(ctx, m); err != nil {
			return err
		}
	}
	return nil
}
