package netplay

// Handler is the gameplay-facing callback surface. It is invoked
// synchronously during a receive drain, in arrival-acceptance order.
// Unreliable callbacks receive the unit's sequence number so consumers can
// discard stale updates.
type Handler interface {
	OnConnectRequest(c *Conn, m *ConnectRequest)
	OnConnectAccept(c *Conn, m *ConnectAccept)
	OnConnectReject(c *Conn, m *ConnectReject)
	OnDisconnect(c *Conn, m *Disconnect)
	OnEntityAdd(c *Conn, m *EntityAdd)
	OnEntityRemove(c *Conn, m *EntityRemove)
	OnPlayerJoined(c *Conn, m *PlayerJoined)
	OnPlayerLeft(c *Conn, m *PlayerLeft)
	OnChat(c *Conn, m *Chat)
	OnKill(c *Conn, m *Kill)
	OnStatsUpdate(c *Conn, m *StatsUpdate)

	OnUpdateTransform(c *Conn, m *UpdateTransform, seq uint32)
	OnPlayerInput(c *Conn, m *PlayerInput, seq uint32)
	OnHeartbeat(c *Conn, m *Heartbeat, seq uint32)
}

// dispatch routes an accepted message to its callback. The switch is the
// closed counterpart of the registry: a registered tag with no case here
// is a programming error surfaced as a protocol error.
func dispatch(h Handler, c *Conn, msg Message, seq uint32) error {
	switch m := msg.(type) {
	case *ConnectRequest:
		h.OnConnectRequest(c, m)
	case *ConnectAccept:
		h.OnConnectAccept(c, m)
	case *ConnectReject:
		h.OnConnectReject(c, m)
	case *Disconnect:
		h.OnDisconnect(c, m)
	case *EntityAdd:
		h.OnEntityAdd(c, m)
	case *EntityRemove:
		h.OnEntityRemove(c, m)
	case *PlayerJoined:
		h.OnPlayerJoined(c, m)
	case *PlayerLeft:
		h.OnPlayerLeft(c, m)
	case *Chat:
		h.OnChat(c, m)
	case *Kill:
		h.OnKill(c, m)
	case *StatsUpdate:
		h.OnStatsUpdate(c, m)
	case *UpdateTransform:
		h.OnUpdateTransform(c, m, seq)
	case *PlayerInput:
		h.OnPlayerInput(c, m, seq)
	case *Heartbeat:
		h.OnHeartbeat(c, m, seq)
	default:
		return protocolErrorf("no dispatch for tag %#02x", uint8(msg.Type()))
	}
	return nil
}

// NopHandler implements Handler with empty callbacks. Embed it to handle
// only the variants a consumer cares about.
type NopHandler struct{}

func (NopHandler) OnConnectRequest(*Conn, *ConnectRequest) {}
func (NopHandler) OnConnectAccept(*Conn, *ConnectAccept)   {}
func (NopHandler) OnConnectReject(*Conn, *ConnectReject)   {}
func (NopHandler) OnDisconnect(*Conn, *Disconnect)         {}
func (NopHandler) OnEntityAdd(*Conn, *EntityAdd)           {}
func (NopHandler) OnEntityRemove(*Conn, *EntityRemove)     {}
func (NopHandler) OnPlayerJoined(*Conn, *PlayerJoined)     {}
func (NopHandler) OnPlayerLeft(*Conn, *PlayerLeft)         {}
func (NopHandler) OnChat(*Conn, *Chat)                     {}
func (NopHandler) OnKill(*Conn, *Kill)                     {}
func (NopHandler) OnStatsUpdate(*Conn, *StatsUpdate)       {}

func (NopHandler) OnUpdateTransform(*Conn, *UpdateTransform, uint32) {}
func (NopHandler) OnPlayerInput(*Conn, *PlayerInput, uint32)         {}
func (NopHandler) OnHeartbeat(*Conn, *Heartbeat, uint32)             {}
