package netplay

// MessageType tags a concrete message variant on the wire.
type MessageType uint8

// Reliable reports which band the tag sits in.
func (t MessageType) Reliable() bool {
	return t >= reliableTagMin && t <= reliableTagMax
}

// Message is the unit of communication. Concrete variants own their binary
// layout; the transport never interprets payloads beyond this contract.
//
// Instances are pooled. On the receive path a message handed to the
// handler is only valid for the duration of the callback.
type Message interface {
	Type() MessageType

	// Size is the exact encoded payload length for the current field
	// values, excluding the tag/sequence unit header.
	Size() int

	Serialize(w *writer) error
	Deserialize(r *reader) error

	// Reset clears mutable fields before reuse from the pool.
	Reset()
}

// SequencedMessage pairs a message with its assigned delivery-order
// number. For reliable messages the number drives ordering and
// acknowledgment; for unreliable ones it only lets the receiver discard
// stale updates.
type SequencedMessage struct {
	Message        Message
	SequenceNumber uint32
}

// BatchedMessage is a pending run of same-type unreliable batchable
// messages awaiting packing. The queue is FIFO and may be drained across
// several packets.
type BatchedMessage struct {
	Type     MessageType
	Messages []Message
}

type messageInfo struct {
	ctor      func() Message
	batchable bool
	pool      []Message
}

// The registry is indexed by tag. It is populated from init and read-only
// afterwards. The free pools are process-global and unsynchronized like
// the rest of the transport: every endpoint in the process, client and
// server alike, must run on the same goroutine.
var registry [256]*messageInfo

func register(tag MessageType, reliable, batchable bool, ctor func() Message) {
	if ctor == nil {
		panic("netplay: nil message constructor")
	}
	if tag.Reliable() != reliable {
		panic("netplay: message tag outside its reliability band")
	}
	if !reliable && (tag < unreliableTagMin || tag > unreliableTagMax) {
		panic("netplay: message tag outside its reliability band")
	}
	if reliable && batchable {
		panic("netplay: reliable messages cannot be batched")
	}
	if registry[tag] != nil {
		panic("netplay: duplicate message tag registration")
	}
	registry[tag] = &messageInfo{ctor: ctor, batchable: batchable}
}

func registerReliable(tag MessageType, ctor func() Message) {
	register(tag, true, false, ctor)
}

func registerUnreliable(tag MessageType, batchable bool, ctor func() Message) {
	register(tag, false, batchable, ctor)
}

func lookup(tag MessageType) *messageInfo {
	return registry[tag]
}

// Acquire returns a reset instance for tag, reusing a pooled one when
// available. An unknown tag is a protocol error, not a crash: it means the
// packet is corrupt or from an incompatible revision.
func Acquire(tag MessageType) (Message, error) {
	info := registry[tag]
	if info == nil {
		return nil, protocolErrorf("unknown message tag %#02x", uint8(tag))
	}
	if n := len(info.pool); n > 0 {
		msg := info.pool[n-1]
		info.pool = info.pool[:n-1]
		msg.Reset()
		return msg, nil
	}
	return info.ctor(), nil
}

// Release returns msg to its variant's pool after transmission or
// dispatch.
func Release(msg Message) {
	info := registry[msg.Type()]
	if info == nil {
		return
	}
	info.pool = append(info.pool, msg)
}
