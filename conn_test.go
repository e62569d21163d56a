package netplay

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wouldBlock mimics the non-blocking read result of a deadline in the
// past.
type wouldBlock struct{}

func (wouldBlock) Error() string   { return "would block" }
func (wouldBlock) Timeout() bool   { return true }
func (wouldBlock) Temporary() bool { return true }

// fakeEnd is one side of an in-memory datagram link with scriptable loss,
// duplication and reordering.
type fakeEnd struct {
	addr  *net.UDPAddr
	peer  *fakeEnd
	inbox [][]byte

	writes    int
	dropFirst int  // drop the first n outgoing packets
	dropEvery int  // drop every n-th outgoing packet
	dupEvery  int  // duplicate every n-th surviving packet
	lifo      bool // deliver newest-first to force reordering
}

func newFakeLink() (client, server *fakeEnd) {
	client = &fakeEnd{addr: &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40001}}
	server = &fakeEnd{addr: &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40002}}
	client.peer, server.peer = server, client
	return client, server
}

func (e *fakeEnd) Write(b []byte) (int, error) { return e.WriteTo(b, e.peer.addr) }

func (e *fakeEnd) WriteTo(b []byte, _ net.Addr) (int, error) {
	e.writes++
	if e.writes <= e.dropFirst {
		return len(b), nil
	}
	if e.dropEvery > 0 && e.writes%e.dropEvery == 0 {
		return len(b), nil
	}
	cp := append([]byte(nil), b...)
	e.peer.inbox = append(e.peer.inbox, cp)
	if e.dupEvery > 0 && e.writes%e.dupEvery == 0 {
		e.peer.inbox = append(e.peer.inbox, cp)
	}
	return len(b), nil
}

func (e *fakeEnd) ReadFromUDP(buf []byte) (int, *net.UDPAddr, error) {
	if len(e.inbox) == 0 {
		return 0, nil, wouldBlock{}
	}
	var pkt []byte
	if e.lifo {
		pkt = e.inbox[len(e.inbox)-1]
		e.inbox = e.inbox[:len(e.inbox)-1]
	} else {
		pkt = e.inbox[0]
		e.inbox = e.inbox[1:]
	}
	return copy(buf, pkt), e.peer.addr, nil
}

func (e *fakeEnd) SetReadDeadline(time.Time) error { return nil }
func (e *fakeEnd) LocalAddr() net.Addr             { return e.addr }
func (e *fakeEnd) Close() error                    { return nil }

// recorder collects everything the server side accepts.
type recorder struct {
	NopHandler
	requests   []string
	chats      []string
	transforms []uint32
}

func (h *recorder) OnConnectRequest(c *Conn, m *ConnectRequest) {
	h.requests = append(h.requests, m.Name)
}

func (h *recorder) OnChat(c *Conn, m *Chat) {
	h.chats = append(h.chats, m.Text)
}

func (h *recorder) OnUpdateTransform(c *Conn, m *UpdateTransform, seq uint32) {
	h.transforms = append(h.transforms, seq)
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.MaxClients = 8
	cfg.TimeoutSeconds = 0
	return cfg
}

// Reliable messages must reach the handler in exact send order with no
// gaps and no duplicates, even when the link drops, duplicates and
// reorders raw packets.
func TestReliableOrderOverLossyLink(t *testing.T) {
	clientEnd, serverEnd := newFakeLink()
	clientEnd.dropEvery = 3
	clientEnd.dupEvery = 4
	serverEnd.dropEvery = 5
	serverEnd.lifo = true
	clientEnd.lifo = true

	client := newConn(clientEnd, nil, serverEnd.addr, nil)
	lnr := newListener(serverEnd, testConfig(), nil)

	const chatCount = 50
	client.Enqueue(&ConnectRequest{Revision: ProtocolRevision, Name: "kit"})
	for i := 0; i < chatCount; i++ {
		client.Enqueue(&Chat{Text: fmt.Sprintf("chat-%03d", i)})
	}

	srvH := &recorder{}
	cliH := &recorder{}
	for tick := 0; tick < 600 && len(srvH.chats) < chatCount; tick++ {
		require.NoError(t, client.SendPending())
		require.NoError(t, lnr.Drain(srvH))
		require.NoError(t, lnr.SendPending())
		require.NoError(t, client.Drain(cliH))
	}

	require.Len(t, srvH.requests, 1, "the connect request is delivered exactly once")
	require.Len(t, srvH.chats, chatCount)
	for i, text := range srvH.chats {
		assert.Equal(t, fmt.Sprintf("chat-%03d", i), text, "reliable delivery must preserve send order")
	}
}

// Once the acknowledgment covers the queue, the sender goes quiet.
func TestAckStopsRetransmission(t *testing.T) {
	clientEnd, serverEnd := newFakeLink()
	client := newConn(clientEnd, nil, serverEnd.addr, nil)
	lnr := newListener(serverEnd, testConfig(), nil)

	client.Enqueue(&ConnectRequest{Revision: ProtocolRevision, Name: "kit"})

	srvH := &recorder{}
	cliH := &recorder{}
	for tick := 0; tick < 10; tick++ {
		require.NoError(t, client.SendPending())
		require.NoError(t, lnr.Drain(srvH))
		require.NoError(t, lnr.SendPending())
		require.NoError(t, client.Drain(cliH))
	}
	require.True(t, client.Delivery().IsAcknowledged(
		SequencedMessage{Message: &Chat{}, SequenceNumber: 1}))

	quiesced := clientEnd.writes
	for tick := 0; tick < 5; tick++ {
		require.NoError(t, client.SendPending())
	}
	assert.Equal(t, quiesced, clientEnd.writes, "acknowledged messages must not be retransmitted")
}

// An acknowledgment-only packet lost on the wire must be resent when the
// peer retransmits, or the retransmission loop never terminates.
func TestLostAckIsResent(t *testing.T) {
	clientEnd, serverEnd := newFakeLink()
	serverEnd.dropFirst = 1 // the server's first, ack-only reply vanishes

	client := newConn(clientEnd, nil, serverEnd.addr, nil)
	lnr := newListener(serverEnd, testConfig(), nil)

	client.Enqueue(&ConnectRequest{Revision: ProtocolRevision, Name: "kit"})

	acked := func() bool {
		return client.Delivery().IsAcknowledged(
			SequencedMessage{Message: &Chat{}, SequenceNumber: 1})
	}
	srvH := &recorder{}
	cliH := &recorder{}
	for tick := 0; tick < 20 && !acked(); tick++ {
		require.NoError(t, client.SendPending())
		require.NoError(t, lnr.Drain(srvH))
		require.NoError(t, lnr.SendPending())
		require.NoError(t, client.Drain(cliH))
	}

	require.True(t, acked(), "the acknowledgment was never resent")
	require.Len(t, srvH.requests, 1)
	assert.Greater(t, serverEnd.writes, 1, "the server must emit a second ack-only packet")
}

// The drain loop reuses one receive buffer; an idle drain allocates
// nothing.
func TestDrainDoesNotAllocate(t *testing.T) {
	clientEnd, serverEnd := newFakeLink()
	client := newConn(clientEnd, nil, serverEnd.addr, nil)

	h := &recorder{}
	allocs := testing.AllocsPerRun(100, func() {
		if err := client.Drain(h); err != nil {
			t.Fatal(err)
		}
	})
	assert.Zero(t, allocs)
}

// A revision mismatch is surfaced to the client as a typed rejection, not
// an error.
func TestRevisionMismatchIsRejected(t *testing.T) {
	clientEnd, serverEnd := newFakeLink()
	client := newConn(clientEnd, nil, serverEnd.addr, nil)
	lnr := newListener(serverEnd, testConfig(), nil)

	client.Enqueue(&ConnectRequest{Revision: ProtocolRevision + 1, Name: "old"})

	srvH := &recorder{}
	var rejected []uint8
	cliH := &rejectRecorder{reasons: &rejected}
	for tick := 0; tick < 10 && len(rejected) == 0; tick++ {
		require.NoError(t, client.SendPending())
		require.NoError(t, lnr.Drain(srvH))
		require.NoError(t, lnr.SendPending())
		require.NoError(t, client.Drain(cliH))
	}

	require.NotEmpty(t, rejected)
	assert.Equal(t, RejectIncompatible, rejected[0])
	assert.Empty(t, srvH.requests, "a rejected request never reaches the consumer handler")
}

type rejectRecorder struct {
	NopHandler
	reasons *[]uint8
}

func (h *rejectRecorder) OnConnectReject(c *Conn, m *ConnectReject) {
	*h.reasons = append(*h.reasons, m.Reason)
}

// A corrupted tag byte kills the connection instead of corrupting the
// stream.
func TestUnknownTagDropsPeer(t *testing.T) {
	clientEnd, serverEnd := newFakeLink()
	lnr := newListener(serverEnd, testConfig(), nil)

	pkt := []byte{0, 0, 0, 0, 0x7e, 0, 0, 0, 1} // ack, unknown tag, seq
	clientEnd.WriteTo(pkt, serverEnd.addr)

	require.NoError(t, lnr.Drain(&recorder{}))
	assert.Empty(t, lnr.conns, "a protocol violation drops the provisional peer")
}

// End-to-end over real UDP, teacher-style: handshake, reliable chat echo
// and an unreliable transform batch.
func TestLoopback(t *testing.T) {
	cfg := testConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	lnr, err := Listen(cfg, nil)
	require.NoError(t, err)
	defer lnr.Close()

	client, err := Dial(lnr.Addr().String(), nil)
	require.NoError(t, err)
	defer client.Close()

	srvH := &echoHandler{ids: NewIdentityAllocator()}
	cliH := &clientHandler{}

	client.Enqueue(&ConnectRequest{Revision: ProtocolRevision, Name: "kit"})
	for i := 0; i < 3; i++ {
		client.Enqueue(&UpdateTransform{ID: NetworkIdentity{Identifier: 1}, X: float64(i)})
	}
	client.Enqueue(&Chat{Text: "hello"})

	for tick := 0; tick < 400 && !cliH.done(); tick++ {
		require.NoError(t, client.SendPending())
		require.NoError(t, lnr.Drain(srvH))
		require.NoError(t, lnr.SendPending())
		require.NoError(t, client.Drain(cliH))
		time.Sleep(2 * time.Millisecond)
	}

	require.True(t, cliH.accepted, "client never received ConnectAccept")
	require.NotEmpty(t, cliH.chats, "client never received the chat echo")
	assert.Equal(t, "echo: hello", cliH.chats[0])
	assert.GreaterOrEqual(t, srvH.transforms, 3, "unreliable batch never arrived")
}

type echoHandler struct {
	NopHandler
	ids        *IdentityAllocator
	transforms int
}

func (h *echoHandler) OnConnectRequest(c *Conn, m *ConnectRequest) {
	accept, _ := Acquire(TagConnectAccept)
	accept.(*ConnectAccept).Self = h.ids.Allocate()
	c.Enqueue(accept)
}

func (h *echoHandler) OnChat(c *Conn, m *Chat) {
	echo, _ := Acquire(TagChat)
	echo.(*Chat).Text = "echo: " + m.Text
	c.Enqueue(echo)
}

func (h *echoHandler) OnUpdateTransform(c *Conn, m *UpdateTransform, seq uint32) {
	h.transforms++
}

type clientHandler struct {
	NopHandler
	accepted bool
	chats    []string
}

func (h *clientHandler) OnConnectAccept(c *Conn, m *ConnectAccept) { h.accepted = true }
func (h *clientHandler) OnChat(c *Conn, m *Chat)                   { h.chats = append(h.chats, m.Text) }

func (h *clientHandler) done() bool { return h.accepted && len(h.chats) > 0 }
