package netplay

// MaxPacketSize is the fixed capacity of one datagram. Every fragmentation
// decision is derived from this bound.
const MaxPacketSize = 512

const (
	packetHeaderSize = 4 // ack uint32
	unitHeaderSize   = 5 // tag uint8, seq uint32
	batchHeaderSize  = 6 // tag uint8, seq uint32, count uint8
)

// maxBatchCount is the most messages one batch fragment may carry. The
// count field on the wire is a single byte.
const maxBatchCount = 255

// ProtocolRevision is carried in ConnectRequest and checked on accept.
// A mismatch is a rejection, not an error.
const ProtocolRevision uint16 = 3

// Reliable and unreliable tags occupy disjoint bands so a corrupted tag
// byte cannot resolve to the wrong category.
const (
	reliableTagMin   MessageType = 0x01
	reliableTagMax   MessageType = 0x7f
	unreliableTagMin MessageType = 0x80
	unreliableTagMax MessageType = 0xfe
)

// angleResolution is the fixed-point scale for quantized angles:
// degrees are stored as uint16 in steps of 1/angleResolution.
const angleResolution = 100

const (
	MaxNameLen = 24
	MaxChatLen = 240
)

// Rejection reasons carried by ConnectReject.
const (
	RejectIncompatible uint8 = iota + 1
	RejectServerFull
)

// Disconnect reasons, both on the wire and for local drops.
const (
	DiscoByPeer uint8 = iota + 1
	DiscoTimeout
	DiscoProtocolError
)
