package netplay

import (
	"net"
	"time"

	"go.uber.org/zap"
)

// Listener owns the server socket and demultiplexes datagrams to per-peer
// Conns. Like Conn it is single-threaded: the game loop calls Drain and
// SendPending once per tick.
type Listener struct {
	sock  udpSocket
	conns map[string]*Conn
	cfg   *Config
	log   *zap.Logger
	rbuf  []byte // receive buffer, reused across drains

	// DisconnectFunc, when set, is told about every dropped connection:
	// peer goodbyes, timeouts and protocol violations all surface here as
	// a clean disconnected transition.
	DisconnectFunc func(c *Conn, reason uint8)
}

// Listen binds the server socket described by cfg.
func Listen(cfg *Config, log *zap.Logger) (*Listener, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", cfg.ListenAddr)
	if err != nil {
		return nil, err
	}
	sock, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}
	return newListener(sock, cfg, log), nil
}

func newListener(sock udpSocket, cfg *Config, log *zap.Logger) *Listener {
	if log == nil {
		log = zap.NewNop()
	}
	return &Listener{
		sock:  sock,
		conns: make(map[string]*Conn),
		cfg:   cfg,
		log:   log,
		rbuf:  make([]byte, MaxPacketSize+1),
	}
}

func (l *Listener) Addr() net.Addr { return l.sock.LocalAddr() }

// Range calls f for every accepted connection until f returns false.
func (l *Listener) Range(f func(c *Conn) bool) {
	for _, c := range l.conns {
		if !c.accepted {
			continue
		}
		if !f(c) {
			return
		}
	}
}

func (l *Listener) acceptedCount() int {
	n := 0
	for _, c := range l.conns {
		if c.accepted {
			n++
		}
	}
	return n
}

// Drain reads every datagram currently available and routes each to its
// connection, creating a provisional one for unknown peers. Admission is
// gated on the first ConnectRequest; everything accepted is dispatched to
// h synchronously.
func (l *Listener) Drain(h Handler) error {
	gate := &gateHandler{next: h, lnr: l}
	for {
		l.sock.SetReadDeadline(time.Now())
		n, addr, err := l.sock.ReadFromUDP(l.rbuf)
		if err != nil {
			if isWouldBlock(err) {
				return nil
			}
			return err
		}
		key := addr.String()
		c := l.conns[key]
		if c == nil {
			c = newConn(nil, l, addr, l.log)
			l.conns[key] = c
			l.log.Info("peer appeared",
				zap.String("addr", key),
				zap.String("session", c.session.String()))
		}
		if err := c.handlePacket(l.rbuf[:n], gate); err != nil {
			if IsProtocolError(err) {
				l.log.Warn("dropping peer",
					zap.String("addr", key),
					zap.Error(err))
				l.drop(c, DiscoProtocolError)
				continue
			}
			return err
		}
	}
}

// SendPending runs the send tick for every connection and expires peers
// that have been silent beyond the timeout window.
func (l *Listener) SendPending() error {
	now := time.Now()
	timeout := time.Duration(l.cfg.TimeoutSeconds) * time.Second
	for _, c := range l.conns {
		if timeout > 0 && now.Sub(c.lastRecv) > timeout {
			l.log.Info("peer timed out",
				zap.String("addr", c.rmtAddr.String()),
				zap.String("session", c.session.String()))
			l.drop(c, DiscoTimeout)
			continue
		}
		if err := c.SendPending(); err != nil {
			if IsProtocolError(err) {
				l.drop(c, DiscoProtocolError)
				continue
			}
			return err
		}
	}
	return nil
}

func (l *Listener) drop(c *Conn, reason uint8) {
	delete(l.conns, c.rmtAddr.String())
	wasAccepted := c.accepted
	c.Close()
	if wasAccepted && l.DisconnectFunc != nil {
		l.DisconnectFunc(c, reason)
	}
}

// Close tears down every connection and the socket.
func (l *Listener) Close() error {
	for _, c := range l.conns {
		c.Close()
	}
	l.conns = make(map[string]*Conn)
	return l.sock.Close()
}

// gateHandler sits in front of the consumer handler and applies the
// transport-owned admission rules: revision compatibility and capacity.
// Rejections are sent as typed ConnectReject messages, never as errors.
type gateHandler struct {
	next Handler
	lnr  *Listener
}

func (g *gateHandler) OnConnectRequest(c *Conn, m *ConnectRequest) {
	if c.accepted {
		// Duplicate request after acceptance; the reliable gate already
		// filtered true duplicates, so this is a rejoin attempt.
		return
	}
	if m.Revision != ProtocolRevision {
		g.reject(c, RejectIncompatible)
		return
	}
	if g.lnr.cfg.MaxClients > 0 && g.lnr.acceptedCount() >= g.lnr.cfg.MaxClients {
		g.reject(c, RejectServerFull)
		return
	}
	c.accepted = true
	g.lnr.log.Info("peer accepted",
		zap.String("addr", c.rmtAddr.String()),
		zap.String("session", c.session.String()),
		zap.String("name", m.Name))
	g.next.OnConnectRequest(c, m)
}

func (g *gateHandler) reject(c *Conn, reason uint8) {
	g.lnr.log.Info("peer rejected",
		zap.String("addr", c.rmtAddr.String()),
		zap.Uint8("reason", reason))
	msg, _ := Acquire(TagConnectReject)
	msg.(*ConnectReject).Reason = reason
	c.Enqueue(msg)
	// One best-effort send; the conn is gone afterwards, so the reject is
	// not retransmitted.
	c.SendPending()
	g.lnr.drop(c, DiscoByPeer)
}

func (g *gateHandler) OnDisconnect(c *Conn, m *Disconnect) {
	g.next.OnDisconnect(c, m)
	g.lnr.drop(c, DiscoByPeer)
}

func (g *gateHandler) OnConnectAccept(c *Conn, m *ConnectAccept) { g.next.OnConnectAccept(c, m) }
func (g *gateHandler) OnConnectReject(c *Conn, m *ConnectReject) { g.next.OnConnectReject(c, m) }
func (g *gateHandler) OnEntityAdd(c *Conn, m *EntityAdd)         { g.next.OnEntityAdd(c, m) }
func (g *gateHandler) OnEntityRemove(c *Conn, m *EntityRemove)   { g.next.OnEntityRemove(c, m) }
func (g *gateHandler) OnPlayerJoined(c *Conn, m *PlayerJoined)   { g.next.OnPlayerJoined(c, m) }
func (g *gateHandler) OnPlayerLeft(c *Conn, m *PlayerLeft)       { g.next.OnPlayerLeft(c, m) }
func (g *gateHandler) OnChat(c *Conn, m *Chat)                   { g.next.OnChat(c, m) }
func (g *gateHandler) OnKill(c *Conn, m *Kill)                   { g.next.OnKill(c, m) }
func (g *gateHandler) OnStatsUpdate(c *Conn, m *StatsUpdate)     { g.next.OnStatsUpdate(c, m) }

func (g *gateHandler) OnUpdateTransform(c *Conn, m *UpdateTransform, seq uint32) {
	g.next.OnUpdateTransform(c, m, seq)
}

func (g *gateHandler) OnPlayerInput(c *Conn, m *PlayerInput, seq uint32) {
	g.next.OnPlayerInput(c, m, seq)
}

func (g *gateHandler) OnHeartbeat(c *Conn, m *Heartbeat, seq uint32) {
	g.next.OnHeartbeat(c, m, seq)
}
