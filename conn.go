// Package netplay implements the message-delivery transport for game-state
// updates over UDP. It provides ordering, acknowledgment, retransmission,
// batching and fragmentation on top of a medium that guarantees neither
// delivery nor ordering, with a fixed per-packet budget and pooled message
// instances to keep the game loop free of allocation churn.
//
// The transport is unsynchronized throughout, message pools included:
// every connection and listener in a process must be driven from the same
// goroutine.
package netplay

import (
	"net"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// udpSocket is the surface of *net.UDPConn the transport uses. Tests
// substitute lossy or reordering fakes.
type udpSocket interface {
	ReadFromUDP(b []byte) (int, *net.UDPAddr, error)
	Write(b []byte) (int, error)
	WriteTo(b []byte, addr net.Addr) (int, error)
	SetReadDeadline(t time.Time) error
	LocalAddr() net.Addr
	Close() error
}

// Conn is one end of a transport connection. It owns the per-peer
// DeliveryManager and the outgoing queues, and is driven entirely by an
// external fixed-rate loop calling SendPending and Drain once per tick.
// No internal goroutines, no locking: all access is from that loop.
type Conn struct {
	sock    udpSocket // nil for conns accepted by a Listener
	lnr     *Listener // nil for dialed conns
	rmtAddr net.Addr

	dm DeliveryManager
	pa *PacketAssembler

	pendingReliable   []SequencedMessage
	pendingUnreliable []SequencedMessage
	batches           []*BatchedMessage

	session  uuid.UUID
	accepted bool
	closed   bool
	lastRecv time.Time
	ackedOut uint32 // highest ack that has left in a packet
	ackDue   bool   // a reliable unit arrived since the last send tick

	rbuf []byte // receive buffer, reused across drains

	log *zap.Logger
}

// Dial opens a client connection to a server address. The socket is
// connected and non-blocking; pass zap.NewNop() to disable logging.
func Dial(addrStr string, log *zap.Logger) (*Conn, error) {
	rmtAddr, err := net.ResolveUDPAddr("udp", addrStr)
	if err != nil {
		return nil, err
	}
	sock, err := net.DialUDP("udp", nil, rmtAddr)
	if err != nil {
		return nil, err
	}
	return newConn(sock, nil, rmtAddr, log), nil
}

func newConn(sock udpSocket, lnr *Listener, rmtAddr net.Addr, log *zap.Logger) *Conn {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Conn{
		sock:     sock,
		lnr:      lnr,
		rmtAddr:  rmtAddr,
		session:  uuid.New(),
		lastRecv: time.Now(),
		log:      log,
	}
	if lnr != nil {
		c.pa = NewPacketAssembler(lnr.sock, rmtAddr, false)
	} else {
		c.pa = NewPacketAssembler(sock, rmtAddr, true)
		c.rbuf = make([]byte, MaxPacketSize+1)
	}
	return c
}

// Session is the locally assigned identifier for this connection, used
// for logging and persistence. It never travels on the wire.
func (c *Conn) Session() uuid.UUID { return c.session }

func (c *Conn) RemoteAddr() net.Addr { return c.rmtAddr }

// Closed reports whether the connection has been torn down.
func (c *Conn) Closed() bool { return c.closed }

// Delivery exposes the sequencing state, mainly so consumers can check
// staleness and tests can drive acknowledgment scenarios.
func (c *Conn) Delivery() *DeliveryManager { return &c.dm }

// Enqueue hands a message to the transport. Reliable messages are
// retransmitted every tick until acknowledged; unreliable batchable ones
// are grouped with same-type messages into batch fragments. The transport
// owns msg from here on and returns it to its pool when done.
func (c *Conn) Enqueue(msg Message) {
	if c.closed {
		Release(msg)
		return
	}
	tag := msg.Type()
	if tag.Reliable() {
		c.pendingReliable = append(c.pendingReliable, c.dm.AssignReliable(msg))
		return
	}
	info := lookup(tag)
	if info != nil && info.batchable {
		for _, b := range c.batches {
			if b.Type == tag {
				b.Messages = append(b.Messages, msg)
				return
			}
		}
		c.batches = append(c.batches, &BatchedMessage{Type: tag, Messages: []Message{msg}})
		return
	}
	c.pendingUnreliable = append(c.pendingUnreliable, c.dm.AssignUnreliable(msg))
}

// SendPending runs one send tick: prunes acknowledged reliable messages,
// then hands the queues to the assembler. Every packet carries the current
// acknowledgment; if the peer is owed an ack and no traffic is pending, a
// header-only packet goes out. Arriving reliable units, duplicates
// included, re-arm that packet, so a lost acknowledgment is resent in
// response to the peer's retransmission.
func (c *Conn) SendPending() error {
	if c.closed {
		return errConnClosed
	}

	n := 0
	for _, sm := range c.pendingReliable {
		if c.dm.IsAcknowledged(sm) {
			Release(sm.Message)
			continue
		}
		c.pendingReliable[n] = sm
		n++
	}
	c.pendingReliable = c.pendingReliable[:n]

	ack := c.dm.LastReceivedReliable()
	c.pa.Begin(ack)

	if err := c.pa.SendReliable(c.pendingReliable); err != nil {
		return err
	}
	if err := c.pa.SendUnreliable(c.pendingUnreliable); err != nil {
		return err
	}
	for _, sm := range c.pendingUnreliable {
		Release(sm.Message)
	}
	c.pendingUnreliable = c.pendingUnreliable[:0]

	if err := c.pa.SendBatched(c.batches, &c.dm); err != nil {
		return err
	}
	c.batches = c.batches[:0]

	if !c.pa.empty() {
		if err := c.pa.Flush(); err != nil {
			return err
		}
		c.ackedOut = ack
	} else if ack != c.ackedOut || c.ackDue {
		if err := c.pa.FlushAck(); err != nil {
			return err
		}
		c.ackedOut = ack
	}
	c.ackDue = false
	return nil
}

// Drain reads every datagram currently available on a dialed connection
// and dispatches accepted messages to h. A read that would block ends the
// drain for this tick; that is the normal idle case, not an error. A
// protocol violation closes the connection and is returned.
func (c *Conn) Drain(h Handler) error {
	if c.closed {
		return errConnClosed
	}
	if c.sock == nil {
		panic("netplay: Drain on a listener-owned connection")
	}
	for {
		c.sock.SetReadDeadline(time.Now())
		n, _, err := c.sock.ReadFromUDP(c.rbuf)
		if err != nil {
			if isWouldBlock(err) {
				return nil
			}
			return err
		}
		if err := c.handlePacket(c.rbuf[:n], h); err != nil {
			if IsProtocolError(err) {
				c.log.Warn("closing connection",
					zap.String("session", c.session.String()),
					zap.Error(err))
				c.Close()
			}
			return err
		}
	}
}

// handlePacket parses one datagram: header acknowledgment first, then the
// sequence of message units.
func (c *Conn) handlePacket(data []byte, h Handler) error {
	if len(data) > MaxPacketSize {
		return protocolErrorf("oversized packet (%d bytes)", len(data))
	}
	r := newReader(data)
	ack, err := r.ReadU32()
	if err != nil {
		return protocolErrorf("truncated packet header")
	}
	c.dm.UpdateLastAcked(ack)
	c.lastRecv = time.Now()

	for r.Remaining() > 0 {
		if c.closed {
			// A handler tore the connection down mid-packet (e.g. a
			// rejected connect); the rest of the units die with it.
			return nil
		}
		tagByte, err := r.ReadU8()
		if err != nil {
			return protocolErrorf("truncated unit header")
		}
		tag := MessageType(tagByte)
		seq, err := r.ReadU32()
		if err != nil {
			return protocolErrorf("truncated unit header")
		}
		info := lookup(tag)
		if info == nil {
			return protocolErrorf("unknown message tag %#02x", tagByte)
		}

		switch {
		case tag.Reliable():
			// Even a duplicate obliges us to speak up: the peer keeps
			// retransmitting until an acknowledgment gets through.
			c.ackDue = true
			msg, err := Acquire(tag)
			if err != nil {
				return err
			}
			// Deserialize unconditionally: the cursor must advance past
			// the payload even when the message is dropped as a
			// duplicate or a gap.
			if err := msg.Deserialize(r); err != nil {
				Release(msg)
				return protocolErrorf("bad %T payload: %v", msg, err)
			}
			if c.dm.AllowReliableDelivery(seq) {
				if err := dispatch(h, c, msg, seq); err != nil {
					Release(msg)
					return err
				}
			}
			Release(msg)

		case info.batchable:
			count, err := r.ReadU8()
			if err != nil {
				return protocolErrorf("truncated batch header")
			}
			for i := 0; i < int(count); i++ {
				msg, err := Acquire(tag)
				if err != nil {
					return err
				}
				if err := msg.Deserialize(r); err != nil {
					Release(msg)
					return protocolErrorf("bad %T payload in batch: %v", msg, err)
				}
				if err := dispatch(h, c, msg, seq); err != nil {
					Release(msg)
					return err
				}
				Release(msg)
			}

		default:
			msg, err := Acquire(tag)
			if err != nil {
				return err
			}
			if err := msg.Deserialize(r); err != nil {
				Release(msg)
				return protocolErrorf("bad %T payload: %v", msg, err)
			}
			if err := dispatch(h, c, msg, seq); err != nil {
				Release(msg)
				return err
			}
			Release(msg)
		}
	}
	return nil
}

// Close releases the socket and drops queued messages back to their
// pools. Closing twice is harmless.
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	for _, sm := range c.pendingReliable {
		Release(sm.Message)
	}
	c.pendingReliable = nil
	for _, sm := range c.pendingUnreliable {
		Release(sm.Message)
	}
	c.pendingUnreliable = nil
	for _, b := range c.batches {
		for _, m := range b.Messages {
			Release(m)
		}
	}
	c.batches = nil
	if c.sock != nil {
		return c.sock.Close()
	}
	return nil
}

func isWouldBlock(err error) bool {
	if os.IsTimeout(err) {
		return true
	}
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}
