package ghs

// peerSearchState bundles the per-peer search/join bookkeeping the original
// implementation spread across three parallel arrays (waiting_for_response,
// response_required, response_prompt). Fusing them into one record per slot
// follows the REDESIGN FLAGS note in spec.md §9; the slot index is shared
// with the edgeTable's own slot index for the same peer; see
// (*GhsState).slot.
type peerSearchState struct {
	waiting        bool
	deferred       bool
	deferredPrompt InPartPayload
}

// GhsState is one node's instance of the GHS algorithm. It is not safe for
// concurrent use: a single goroutine must own it and feed it messages one
// at a time through Process.
type GhsState struct {
	myID      AgentID
	myLeader  AgentID
	myLevel   Level
	parent    AgentID
	bestEdge  Edge
	converged bool

	edges  *edgeTable
	search []peerSearchState // parallel to edges' slots
}

// NewState constructs a GhsState for myID with room for up to maxAgents
// peers. initialEdges are added via SetEdge; invalid edges (Peer == myID,
// an invalid metric, Root != myID) are silently dropped, matching the
// original constructor's behavior.
func NewState(myID AgentID, maxAgents int, initialEdges []Edge) *GhsState {
	s := &GhsState{
		edges: newEdgeTable(myID, maxAgents),
	}
	s.myID = myID
	s.Reset()
	for _, e := range initialEdges {
		if !e.IsValid() {
			continue
		}
		_ = s.SetEdge(e)
	}
	return s
}

// Reset restores the state to its post-construction defaults, preserving
// MyID and the edge table (including previously learned metrics and MST
// classifications). Any outstanding waiting/deferred bookkeeping is
// abandoned: a response that later arrives for an abandoned round will be
// rejected with ErrAckNotWaiting or ErrUnexpectedSrchRet.
func (s *GhsState) Reset() {
	s.myLeader = s.myID
	s.myLevel = LevelStart
	s.parent = s.myID
	s.bestEdge = WorstEdge()
	s.bestEdge.Root = s.myID
	s.converged = false
	s.search = make([]peerSearchState, s.edges.peerCount())
}

// MyID returns this node's id. Never fails.
func (s *GhsState) MyID() AgentID { return s.myID }

// Leader returns the id this node currently believes is the leader of its
// partition.
func (s *GhsState) Leader() AgentID { return s.myLeader }

// LevelOf returns the current partition level.
func (s *GhsState) LevelOf() Level { return s.myLevel }

// Parent returns the MST neighbor this node currently treats as its parent,
// or MyID() if this node believes itself to be the partition root.
func (s *GhsState) Parent() AgentID { return s.parent }

// IsConverged reports whether a Noop has propagated through to this node,
// meaning the algorithm has terminated from its point of view.
func (s *GhsState) IsConverged() bool { return s.converged }

// MWOE returns the best candidate minimum-weight outgoing edge found so far
// in the current search round.
func (s *GhsState) MWOE() Edge { return s.bestEdge }

func (s *GhsState) slot(peer AgentID) (int, error) {
	return s.edges.indexOf(peer)
}

func (s *GhsState) growSearchSlots() {
	for len(s.search) < s.edges.peerCount() {
		s.search = append(s.search, peerSearchState{})
	}
}

// SetEdge inserts or updates an edge rooted on MyID. See edgeTable.setEdge.
func (s *GhsState) SetEdge(e Edge) error {
	if err := s.edges.setEdge(e); err != nil {
		return err
	}
	s.growSearchSlots()
	return nil
}

// GetEdge returns a copy of the stored edge to peer.
func (s *GhsState) GetEdge(peer AgentID) (Edge, error) {
	return s.edges.getEdge(peer)
}

// HasEdge reports whether an edge to peer is known. Never fails.
func (s *GhsState) HasEdge(peer AgentID) bool {
	return s.edges.hasEdge(peer)
}

// SetEdgeStatus mutates the status of the stored edge to peer.
func (s *GhsState) SetEdgeStatus(peer AgentID, status EdgeStatus) error {
	return s.edges.setEdgeStatus(peer, status)
}

// SetEdgeMetric mutates the metric of the stored edge to peer.
func (s *GhsState) SetEdgeMetric(peer AgentID, metric Metric) error {
	return s.edges.setEdgeMetric(peer, metric)
}

// waitingCount returns how many peers this node is still awaiting a search
// response from.
func (s *GhsState) waitingCount() int {
	n := 0
	for _, ps := range s.search {
		if ps.waiting {
			n++
		}
	}
	return n
}

// deferredCount returns how many InPart probes are waiting on our level to
// rise before they can be answered.
func (s *GhsState) deferredCount() int {
	n := 0
	for _, ps := range s.search {
		if ps.deferred {
			n++
		}
	}
	return n
}

func (s *GhsState) setWaiting(peer AgentID, waiting bool) error {
	idx, err := s.slot(peer)
	if err != nil {
		return err
	}
	s.search[idx].waiting = waiting
	return nil
}

func (s *GhsState) isWaiting(peer AgentID) (bool, error) {
	idx, err := s.slot(peer)
	if err != nil {
		return false, err
	}
	return s.search[idx].waiting, nil
}

func (s *GhsState) deferResponse(peer AgentID, m InPartPayload) error {
	idx, err := s.slot(peer)
	if err != nil {
		return err
	}
	s.search[idx].deferred = true
	s.search[idx].deferredPrompt = m
	return nil
}

// mstBroadcast sends msg to every MST edge except the parent link, pushing
// each onto buf. It returns the number of messages appended.
func (s *GhsState) mstBroadcast(payload Payload, buf *Queue[Message]) (int, error) {
	sent := 0
	for i := 0; i < s.edges.peerCount(); i++ {
		e := s.edges.edgeAt(i)
		if e.Root != s.myID {
			return sent, ErrCastInvalidEdge
		}
		if e.Status == StatusMst && e.Peer != s.parent {
			if err := buf.Push(newMessage(e.Peer, s.myID, payload)); err != nil {
				return sent, err
			}
			sent++
		}
	}
	return sent, nil
}

// mstConvergecast sends msg to the parent MST edge only (0 or 1 messages).
func (s *GhsState) mstConvergecast(payload Payload, buf *Queue[Message]) (int, error) {
	sent := 0
	for i := 0; i < s.edges.peerCount(); i++ {
		e := s.edges.edgeAt(i)
		if e.Root != s.myID {
			return sent, ErrCastInvalidEdge
		}
		if e.Status == StatusMst && e.Peer == s.parent {
			if err := buf.Push(newMessage(e.Peer, s.myID, payload)); err != nil {
				return sent, err
			}
			sent++
		}
	}
	return sent, nil
}

// typecast sends msg to every edge with the given status.
func (s *GhsState) typecast(status EdgeStatus, payload Payload, buf *Queue[Message]) (int, error) {
	sent := 0
	for i := 0; i < s.edges.peerCount(); i++ {
		e := s.edges.edgeAt(i)
		if e.Root != s.myID {
			return sent, ErrCastInvalidEdge
		}
		if e.Status == status {
			if err := buf.Push(newMessage(e.Peer, s.myID, payload)); err != nil {
				return sent, err
			}
			sent++
		}
	}
	return sent, nil
}

// StartRound is invoked by the caller's loop at bootstrap on every node. If
// this node does not believe itself to be the leader of its own partition,
// the call is a no-op: it waits for a Srch from whoever it believes the
// leader is.
func (s *GhsState) StartRound(out *Queue[Message]) error {
	if s.myLeader != s.myID {
		return nil
	}
	return s.processSrch(s.myID, SrchPayload{Leader: s.myLeader, Level: s.myLevel}, out)
}

// Process is the single entry point for inbound messages. It validates the
// envelope, dispatches by kind, and appends 0..N outgoing messages to out.
func (s *GhsState) Process(msg Message, out *Queue[Message]) error {
	if msg.From == s.myID {
		return ErrProcessSelfMsg
	}
	if msg.To != s.myID {
		return ErrProcessNotMe
	}
	if !s.HasEdge(msg.From) {
		return ErrProcessNoEdgeFound
	}

	switch p := msg.Payload.(type) {
	case SrchPayload:
		return s.processSrch(msg.From, p, out)
	case SrchRetPayload:
		return s.processSrchRet(msg.From, p, out)
	case InPartPayload:
		return s.processInPart(msg.From, p, out)
	case AckPartPayload:
		return s.processAckPart(msg.From, out)
	case NackPartPayload:
		return s.processNackPart(msg.From, out)
	case JoinUsPayload:
		return s.processJoinUs(msg.From, p, out)
	case NoopPayload:
		return s.processNoop(out)
	default:
		return ErrProcessInvalidType
	}
}

func (s *GhsState) processSrch(from AgentID, data SrchPayload, out *Queue[Message]) error {
	if from != s.myID {
		e, err := s.GetEdge(from)
		if err != nil {
			return err
		}
		if e.Status != StatusMst {
			return ErrProcessReqMst
		}
	}

	if s.waitingCount() != 0 {
		return ErrSrchStillWaiting
	}

	s.myLeader = data.Leader
	s.myLevel = data.Level
	s.parent = from

	s.bestEdge = WorstEdge()
	s.bestEdge.Root = s.myID

	scratch := NewQueue[Message](2 * s.edges.peerCount())
	srchSent, err := s.mstBroadcast(SrchPayload{Leader: s.myLeader, Level: s.myLevel}, scratch)
	if err != nil {
		return err
	}
	partSent, err := s.typecast(StatusUnknown, InPartPayload{Leader: s.myLeader, Level: s.myLevel}, scratch)
	if err != nil {
		return err
	}

	if scratch.Size() == 0 && s.deferredCount() == 0 {
		return s.respondNoMWOE(out)
	}

	for i := 0; i < srchSent+partSent; i++ {
		m, err := scratch.Pop()
		if err != nil {
			return err
		}
		if err := s.setWaiting(m.To, true); err != nil {
			return err
		}
		if err := out.Push(m); err != nil {
			return err
		}
	}

	return s.checkNewLevel(out)
}

func (s *GhsState) respondNoMWOE(out *Queue[Message]) error {
	_, err := s.mstConvergecast(SrchRetPayload{Peer: NoAgent, Root: NoAgent, Metric: MetricWorst}, out)
	return err
}

func (s *GhsState) processSrchRet(from AgentID, data SrchRetPayload, out *Queue[Message]) error {
	if s.waitingCount() == 0 {
		return ErrUnexpectedSrchRet
	}
	waiting, err := s.isWaiting(from)
	if err != nil {
		return err
	}
	if !waiting {
		return ErrUnexpectedSrchRet
	}
	if err := s.setWaiting(from, false); err != nil {
		return err
	}

	if data.Metric < s.bestEdge.Metric {
		s.bestEdge = Edge{Peer: data.Peer, Root: data.Root, Metric: data.Metric}
	}

	return s.checkSearchStatus(out)
}

func (s *GhsState) processInPart(from AgentID, data InPartPayload, out *Queue[Message]) error {
	if data.Level <= s.myLevel {
		if data.Leader == s.myLeader {
			return out.Push(newMessage(from, s.myID, AckPartPayload{}))
		}
		return out.Push(newMessage(from, s.myID, NackPartPayload{}))
	}
	return s.deferResponse(from, data)
}

func (s *GhsState) processAckPart(from AgentID, out *Queue[Message]) error {
	waiting, err := s.isWaiting(from)
	if err != nil {
		return err
	}
	if !waiting {
		return ErrAckNotWaiting
	}
	if err := s.SetEdgeStatus(from, StatusDeleted); err != nil {
		return err
	}
	if err := s.setWaiting(from, false); err != nil {
		return err
	}
	return s.checkSearchStatus(out)
}

func (s *GhsState) processNackPart(from AgentID, out *Queue[Message]) error {
	waiting, err := s.isWaiting(from)
	if err != nil {
		return err
	}
	if !waiting {
		return ErrAckNotWaiting
	}
	theirEdge, err := s.GetEdge(from)
	if err != nil {
		return err
	}
	if theirEdge.Metric < s.bestEdge.Metric {
		s.bestEdge = theirEdge
	}
	if err := s.setWaiting(from, false); err != nil {
		return err
	}
	return s.checkSearchStatus(out)
}

func (s *GhsState) checkSearchStatus(out *Queue[Message]) error {
	if s.waitingCount() != 0 {
		return nil
	}

	e := s.bestEdge
	amLeader := s.myLeader == s.myID
	found := e.Metric < MetricWorst
	mine := e.Root == s.myID

	if !amLeader {
		_, err := s.mstConvergecast(SrchRetPayload{Peer: e.Peer, Root: e.Root, Metric: e.Metric}, out)
		return err
	}

	if !found {
		return s.processNoop(out)
	}

	if mine {
		if e.Peer == e.Root {
			return ErrBadMsg
		}
		return s.processJoinUs(s.myID, JoinUsPayload{
			JoinPeer:       e.Peer,
			JoinRoot:       e.Root,
			ProposedLeader: s.myLeader,
			ProposedLevel:  s.myLevel,
		}, out)
	}

	_, err := s.mstBroadcast(JoinUsPayload{
		JoinPeer:       e.Peer,
		JoinRoot:       e.Root,
		ProposedLeader: s.myLeader,
		ProposedLevel:  s.myLevel,
	}, out)
	return err
}

func (s *GhsState) processNoop(out *Queue[Message]) error {
	s.converged = true
	_, err := s.mstBroadcast(NoopPayload{}, out)
	return err
}

func (s *GhsState) processJoinUs(from AgentID, data JoinUsPayload, out *Queue[Message]) error {
	joinPeer := data.JoinPeer
	joinRoot := data.JoinRoot
	joinLeader := data.ProposedLeader
	joinLevel := data.ProposedLevel

	notInvolved := joinRoot != s.myID && joinPeer != s.myID
	inInitiatingPartition := joinRoot == s.myID

	if notInvolved {
		if joinLeader != s.myLeader {
			return ErrJoinBadLeader
		}
		if joinLevel != s.myLevel {
			return ErrJoinBadLevel
		}
		_, err := s.mstBroadcast(data, out)
		return err
	}

	var edgeToOther Edge
	if inInitiatingPartition {
		joinPeerEdge, err := s.GetEdge(joinPeer)
		if err != nil {
			return err
		}
		if joinLeader != s.myLeader && joinPeerEdge.Status != StatusMst {
			return ErrJoinInitBadLeader
		}
		if joinLevel != s.myLevel {
			return ErrJoinInitBadLevel
		}
		edgeToOther = joinPeerEdge
	} else {
		if joinLeader == s.myLeader {
			return ErrJoinMyLeader
		}
		if joinLevel > s.myLevel {
			return ErrJoinUnexpectedReply
		}
		e, err := s.GetEdge(joinRoot)
		if err != nil {
			return err
		}
		edgeToOther = e
	}

	switch edgeToOther.Status {
	case StatusMst:
		newLeader := maxAgent(joinPeer, joinRoot)
		s.myLeader = newLeader
		s.myLevel++
		if newLeader == s.myID {
			return s.StartRound(out)
		}
		return nil

	case StatusUnknown:
		if inInitiatingPartition {
			if err := s.SetEdgeStatus(joinPeer, StatusMst); err != nil {
				return err
			}
			return out.Push(newMessage(joinPeer, s.myID, data))
		}
		if s.myLevel < joinLevel {
			return ErrJoinUnexpectedReply
		}
		return s.SetEdgeStatus(joinRoot, StatusMst)

	default:
		return ErrImpl
	}
}

func (s *GhsState) checkNewLevel(out *Queue[Message]) error {
	for i := range s.search {
		if !s.search[i].deferred {
			continue
		}
		prompt := s.search[i].deferredPrompt
		if prompt.Level > s.myLevel {
			continue
		}
		peer := s.edges.peerAt(i)
		s.search[i].deferred = false
		if err := s.processInPart(peer, prompt, out); err != nil {
			return err
		}
	}
	return nil
}

func maxAgent(a, b AgentID) AgentID {
	if a > b {
		return a
	}
	return b
}
