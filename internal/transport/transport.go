// Package transport carries ghs.Message envelopes between agents over a
// reliable group transport. It is grounded on the teacher protocol's own
// ReliableTransport: a relt.Relt instance per agent, a background poll
// goroutine that decodes inbound bytes and republishes them on a channel,
// and a Close that tears both down. Two things are added for this domain:
// a per-sender sequence number for duplicate suppression (relt's underlying
// epoch-based broadcast can redeliver), and a failure callback that lets the
// owning state machine mark an edge Deleted when a peer can no longer be
// reached.
package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/jabolina/relt/pkg/relt"
	promlog "github.com/prometheus/common/log"

	"github.com/elwin-labs/go-ghs/internal/logging"
	"github.com/elwin-labs/go-ghs/pkg/ghs"
)

// Transport is the communication primitive a running agent depends on.
type Transport interface {
	// Send delivers msg to msg.To. Returns an error if the underlying
	// broadcast could not be attempted; does not guarantee delivery.
	Send(ctx context.Context, msg ghs.Message) error

	// Recv is the channel new inbound messages are published on.
	Recv() <-chan ghs.Message

	// Close tears down the transport for sending and receiving.
	Close() error
}

// PeerConfig names this agent and the group address it listens and
// broadcasts on, plus the address each peer answers to.
type PeerConfig struct {
	ID        ghs.AgentID
	Name      string
	Exchange  string
	Endpoints map[ghs.AgentID]string
}

// ReliableTransport implements Transport over relt.
type ReliableTransport struct {
	log    logging.Logger
	relt   *relt.Relt
	myID   ghs.AgentID

	producer chan ghs.Message

	ctx    context.Context
	cancel context.CancelFunc

	onEdgeDown func(ghs.AgentID)

	mu      sync.Mutex
	nextSeq uint64
	lastSeq map[ghs.AgentID]uint64
}

// NewReliableTransport starts a ReliableTransport for peer, invoking
// onEdgeDown (if non-nil) whenever a send to a peer fails permanently.
func NewReliableTransport(peer PeerConfig, log logging.Logger, onEdgeDown func(ghs.AgentID)) (*ReliableTransport, error) {
	conf := relt.DefaultReltConfiguration()
	conf.Name = peer.Name
	conf.Exchange = relt.GroupAddress(peer.Exchange)
	r, err := relt.NewRelt(*conf)
	if err != nil {
		promlog.Errorf("failed starting relt for %s: %v", peer.Name, err)
		return nil, fmt.Errorf("transport: new relt: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &ReliableTransport{
		log:        log,
		relt:       r,
		myID:       peer.ID,
		producer:   make(chan ghs.Message, 128),
		ctx:        ctx,
		cancel:     cancel,
		onEdgeDown: onEdgeDown,
		lastSeq:    make(map[ghs.AgentID]uint64),
	}
	go t.poll()
	return t, nil
}

// envelope prefixes the wire-coded ghs.Message with an 8-byte big-endian
// sequence number, scoped per sender, used to drop stale redeliveries.
func encodeEnvelope(seq uint64, msg ghs.Message) ([]byte, error) {
	body, err := ghs.Marshal(msg)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 8+len(body))
	binary.BigEndian.PutUint64(buf[:8], seq)
	copy(buf[8:], body)
	return buf, nil
}

func decodeEnvelope(b []byte) (uint64, ghs.Message, error) {
	if len(b) < 8 {
		return 0, ghs.Message{}, fmt.Errorf("transport: envelope too short: %d bytes", len(b))
	}
	seq := binary.BigEndian.Uint64(b[:8])
	msg, err := ghs.Unmarshal(b[8:])
	return seq, msg, err
}

func (t *ReliableTransport) nextSeqFor() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextSeq++
	return t.nextSeq
}

// Send implements Transport.
func (t *ReliableTransport) Send(ctx context.Context, msg ghs.Message) error {
	data, err := encodeEnvelope(t.nextSeqFor(), msg)
	if err != nil {
		return fmt.Errorf("transport: encode: %w", err)
	}
	send := relt.Send{
		Address: relt.GroupAddress(fmt.Sprintf("agent-%d", msg.To)),
		Data:    data,
	}
	if err := t.relt.Broadcast(ctx, send); err != nil {
		t.log.Errorf("send to %d failed: %v", msg.To, err)
		if t.onEdgeDown != nil {
			t.onEdgeDown(msg.To)
		}
		return fmt.Errorf("transport: broadcast to %d: %w", msg.To, err)
	}
	return nil
}

// Recv implements Transport.
func (t *ReliableTransport) Recv() <-chan ghs.Message {
	return t.producer
}

// Close implements Transport.
func (t *ReliableTransport) Close() error {
	t.cancel()
	if err := t.relt.Close(); err != nil {
		t.log.Errorf("failed stopping transport: %v", err)
		return err
	}
	return nil
}

func (t *ReliableTransport) poll() {
	listener, err := t.relt.Consume()
	if err != nil {
		t.log.Errorf("failed starting consume loop: %v", err)
		return
	}
	for {
		select {
		case <-t.ctx.Done():
			return
		case recv, ok := <-listener:
			if !ok {
				return
			}
			t.consume(recv)
		}
	}
}

func (t *ReliableTransport) consume(recv relt.Recv) {
	if recv.Error != nil {
		t.log.Errorf("failed consuming message: %v", recv.Error)
		return
	}
	if recv.Data == nil {
		t.log.Warnf("received empty message")
		return
	}

	seq, msg, err := decodeEnvelope(recv.Data)
	if err != nil {
		t.log.Errorf("failed decoding envelope: %v", err)
		return
	}
	if msg.To != t.myID {
		return
	}

	t.mu.Lock()
	stale := seq <= t.lastSeq[msg.From] && t.lastSeq[msg.From] != 0
	if !stale {
		t.lastSeq[msg.From] = seq
	}
	t.mu.Unlock()
	if stale {
		t.log.Debugf("dropping stale redelivery seq=%d from=%d", seq, msg.From)
		return
	}

	t.log.Infof("%d received %s", t.myID, msg)
	timeout, cancel := context.WithTimeout(t.ctx, 250*time.Millisecond)
	defer cancel()
	select {
	case <-timeout.Done():
		t.log.Warnf("dropped %s: consumer too slow", msg)
	case t.producer <- msg:
	}
}

var _ Transport = (*ReliableTransport)(nil)
