package netplay

// DeliveryManager is the per-connection sequencing state machine: it
// assigns outgoing sequence numbers, tracks which reliable messages the
// peer has acknowledged, and gates incoming reliable messages into strict
// send order. It performs no I/O.
type DeliveryManager struct {
	lastAcked              uint32
	lastAssignedReliable   uint32
	lastAssignedUnreliable uint32
	lastReceivedReliable   uint32
}

// AssignReliable gives msg the next reliable sequence number.
func (dm *DeliveryManager) AssignReliable(msg Message) SequencedMessage {
	if !msg.Type().Reliable() {
		panic("netplay: AssignReliable on unreliable message")
	}
	dm.lastAssignedReliable++
	return SequencedMessage{Message: msg, SequenceNumber: dm.lastAssignedReliable}
}

// AssignUnreliable gives msg the next unreliable sequence number.
func (dm *DeliveryManager) AssignUnreliable(msg Message) SequencedMessage {
	if msg.Type().Reliable() {
		panic("netplay: AssignUnreliable on reliable message")
	}
	return SequencedMessage{Message: msg, SequenceNumber: dm.AssignUnreliableNumber()}
}

// AssignUnreliableNumber increments and returns the unreliable counter.
// Batch fragments use this directly: the number is attached to the whole
// fragment rather than to an individual message.
func (dm *DeliveryManager) AssignUnreliableNumber() uint32 {
	dm.lastAssignedUnreliable++
	return dm.lastAssignedUnreliable
}

// IsAcknowledged reports whether the peer has confirmed receipt. Only
// meaningful for reliable messages.
func (dm *DeliveryManager) IsAcknowledged(sm SequencedMessage) bool {
	if !sm.Message.Type().Reliable() {
		panic("netplay: IsAcknowledged on unreliable message")
	}
	return sm.SequenceNumber <= dm.lastAcked
}

// AllowReliableDelivery accepts seq only if it is exactly the successor of
// the last accepted reliable sequence number, and advances the counter on
// acceptance. Duplicates and premature numbers are dropped; the sender
// retransmits until the gap is filled and this check finally succeeds.
func (dm *DeliveryManager) AllowReliableDelivery(seq uint32) bool {
	if seq != dm.lastReceivedReliable+1 {
		return false
	}
	dm.lastReceivedReliable++
	return true
}

// UpdateLastAcked records the peer's acknowledgment. Monotonic: a stale
// ack arriving out of order never regresses the counter.
func (dm *DeliveryManager) UpdateLastAcked(ack uint32) {
	if ack > dm.lastAcked {
		dm.lastAcked = ack
	}
}

// LastReceivedReliable is the highest in-order reliable sequence number
// accepted so far. It is the acknowledgment piggybacked on every outgoing
// packet.
func (dm *DeliveryManager) LastReceivedReliable() uint32 {
	return dm.lastReceivedReliable
}

// Reset zeroes all counters for connection re-establishment.
func (dm *DeliveryManager) Reset() {
	*dm = DeliveryManager{}
}
