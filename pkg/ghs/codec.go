package ghs

import (
	"encoding/binary"
	"fmt"
)

// Marshal encodes m as the stable wire format documented in spec.md §6: a
// 4-byte envelope (To, From as big-endian uint16), a 1-byte discriminator,
// then 0-12 bytes of payload depending on kind.
func Marshal(m Message) ([]byte, error) {
	if m.Payload == nil {
		return nil, ErrBadMsg
	}
	buf := make([]byte, 5, 17)
	binary.BigEndian.PutUint16(buf[0:2], uint16(m.To))
	binary.BigEndian.PutUint16(buf[2:4], uint16(m.From))
	buf[4] = byte(m.Payload.Kind())

	switch p := m.Payload.(type) {
	case SrchPayload:
		buf = appendAgentLevel(buf, p.Leader, p.Level)
	case SrchRetPayload:
		buf = appendAgent(buf, p.Peer)
		buf = appendAgent(buf, p.Root)
		buf = appendMetric(buf, p.Metric)
	case InPartPayload:
		buf = appendAgentLevel(buf, p.Leader, p.Level)
	case AckPartPayload:
	case NackPartPayload:
	case JoinUsPayload:
		buf = appendAgent(buf, p.JoinPeer)
		buf = appendAgent(buf, p.JoinRoot)
		buf = appendAgent(buf, p.ProposedLeader)
		buf = appendLevel(buf, p.ProposedLevel)
	case NoopPayload:
	default:
		return nil, fmt.Errorf("%w: unknown payload type %T", ErrBadMsg, p)
	}
	return buf, nil
}

// Unmarshal decodes the wire format produced by Marshal.
func Unmarshal(b []byte) (Message, error) {
	if len(b) < 5 {
		return Message{}, ErrBadMsg
	}
	to := AgentID(binary.BigEndian.Uint16(b[0:2]))
	from := AgentID(binary.BigEndian.Uint16(b[2:4]))
	kind := MessageKind(b[4])
	rest := b[5:]

	var payload Payload
	switch kind {
	case KindSrch:
		leader, level, err := readAgentLevel(rest)
		if err != nil {
			return Message{}, err
		}
		payload = SrchPayload{Leader: leader, Level: level}
	case KindSrchRet:
		if len(rest) < 12 {
			return Message{}, ErrBadMsg
		}
		peer := AgentID(binary.BigEndian.Uint16(rest[0:2]))
		root := AgentID(binary.BigEndian.Uint16(rest[2:4]))
		metric := Metric(binary.BigEndian.Uint64(rest[4:12]))
		payload = SrchRetPayload{Peer: peer, Root: root, Metric: metric}
	case KindInPart:
		leader, level, err := readAgentLevel(rest)
		if err != nil {
			return Message{}, err
		}
		payload = InPartPayload{Leader: leader, Level: level}
	case KindAckPart:
		payload = AckPartPayload{}
	case KindNackPart:
		payload = NackPartPayload{}
	case KindJoinUs:
		if len(rest) < 10 {
			return Message{}, ErrBadMsg
		}
		joinPeer := AgentID(binary.BigEndian.Uint16(rest[0:2]))
		joinRoot := AgentID(binary.BigEndian.Uint16(rest[2:4]))
		leader := AgentID(binary.BigEndian.Uint16(rest[4:6]))
		level := Level(binary.BigEndian.Uint32(rest[6:10]))
		payload = JoinUsPayload{JoinPeer: joinPeer, JoinRoot: joinRoot, ProposedLeader: leader, ProposedLevel: level}
	case KindNoop:
		payload = NoopPayload{}
	default:
		return Message{}, ErrProcessInvalidType
	}

	return Message{To: to, From: from, Payload: payload}, nil
}

func appendAgent(buf []byte, a AgentID) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], uint16(a))
	return append(buf, tmp[:]...)
}

func appendLevel(buf []byte, l Level) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], uint32(l))
	return append(buf, tmp[:]...)
}

func appendMetric(buf []byte, m Metric) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], uint64(m))
	return append(buf, tmp[:]...)
}

func appendAgentLevel(buf []byte, a AgentID, l Level) []byte {
	buf = appendAgent(buf, a)
	return appendLevel(buf, l)
}

func readAgentLevel(rest []byte) (AgentID, Level, error) {
	if len(rest) < 6 {
		return 0, 0, ErrBadMsg
	}
	a := AgentID(binary.BigEndian.Uint16(rest[0:2]))
	l := Level(binary.BigEndian.Uint32(rest[2:6]))
	return a, l, nil
}
