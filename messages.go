package netplay

// The closed variant set. Reliable tags live in 0x01..0x7f, unreliable in
// 0x80..0xfe; the registry enforces the bands at init.
const (
	TagConnectRequest MessageType = 0x01
	TagConnectAccept  MessageType = 0x02
	TagConnectReject  MessageType = 0x03
	TagDisconnect     MessageType = 0x04
	TagEntityAdd      MessageType = 0x05
	TagEntityRemove   MessageType = 0x06
	TagPlayerJoined   MessageType = 0x07
	TagPlayerLeft     MessageType = 0x08
	TagChat           MessageType = 0x09
	TagKill           MessageType = 0x0a
	TagStatsUpdate    MessageType = 0x0b

	TagUpdateTransform MessageType = 0x80
	TagPlayerInput     MessageType = 0x81
	TagHeartbeat       MessageType = 0x82
)

func init() {
	registerReliable(TagConnectRequest, func() Message { return new(ConnectRequest) })
	registerReliable(TagConnectAccept, func() Message { return new(ConnectAccept) })
	registerReliable(TagConnectReject, func() Message { return new(ConnectReject) })
	registerReliable(TagDisconnect, func() Message { return new(Disconnect) })
	registerReliable(TagEntityAdd, func() Message { return new(EntityAdd) })
	registerReliable(TagEntityRemove, func() Message { return new(EntityRemove) })
	registerReliable(TagPlayerJoined, func() Message { return new(PlayerJoined) })
	registerReliable(TagPlayerLeft, func() Message { return new(PlayerLeft) })
	registerReliable(TagChat, func() Message { return new(Chat) })
	registerReliable(TagKill, func() Message { return new(Kill) })
	registerReliable(TagStatsUpdate, func() Message { return new(StatsUpdate) })

	registerUnreliable(TagUpdateTransform, true, func() Message { return new(UpdateTransform) })
	registerUnreliable(TagPlayerInput, true, func() Message { return new(PlayerInput) })
	registerUnreliable(TagHeartbeat, false, func() Message { return new(Heartbeat) })
}

// ConnectRequest opens a connection. The revision must match the server's
// or the request is rejected.
type ConnectRequest struct {
	Revision uint16
	Name     string
}

func (m *ConnectRequest) Type() MessageType { return TagConnectRequest }
func (m *ConnectRequest) Size() int         { return 2 + stringSize(m.Name) }
func (m *ConnectRequest) Reset()            { *m = ConnectRequest{} }

func (m *ConnectRequest) Serialize(w *writer) error {
	if err := w.WriteU16(m.Revision); err != nil {
		return err
	}
	return w.WriteString(m.Name, MaxNameLen)
}

func (m *ConnectRequest) Deserialize(r *reader) error {
	var err error
	if m.Revision, err = r.ReadU16(); err != nil {
		return err
	}
	m.Name, err = r.ReadString(MaxNameLen)
	return err
}

// ConnectAccept tells the client which identity the server allocated for
// its avatar.
type ConnectAccept struct {
	Self NetworkIdentity
}

func (m *ConnectAccept) Type() MessageType { return TagConnectAccept }
func (m *ConnectAccept) Size() int         { return identitySize }
func (m *ConnectAccept) Reset()            { *m = ConnectAccept{} }

func (m *ConnectAccept) Serialize(w *writer) error { return w.WriteIdentity(m.Self) }

func (m *ConnectAccept) Deserialize(r *reader) error {
	var err error
	m.Self, err = r.ReadIdentity()
	return err
}

// ConnectReject is a typed, non-fatal rejection of a connection attempt.
type ConnectReject struct {
	Reason uint8
}

func (m *ConnectReject) Type() MessageType { return TagConnectReject }
func (m *ConnectReject) Size() int         { return 1 }
func (m *ConnectReject) Reset()            { *m = ConnectReject{} }

func (m *ConnectReject) Serialize(w *writer) error { return w.WriteU8(m.Reason) }

func (m *ConnectReject) Deserialize(r *reader) error {
	var err error
	m.Reason, err = r.ReadU8()
	return err
}

// Disconnect announces an orderly shutdown of the sending side.
type Disconnect struct {
	Reason uint8
}

func (m *Disconnect) Type() MessageType { return TagDisconnect }
func (m *Disconnect) Size() int         { return 1 }
func (m *Disconnect) Reset()            { *m = Disconnect{} }

func (m *Disconnect) Serialize(w *writer) error { return w.WriteU8(m.Reason) }

func (m *Disconnect) Deserialize(r *reader) error {
	var err error
	m.Reason, err = r.ReadU8()
	return err
}

// EntityAdd makes an entity visible to the peer.
type EntityAdd struct {
	ID    NetworkIdentity
	Kind  uint8
	X, Y  float64
	Angle float64
}

func (m *EntityAdd) Type() MessageType { return TagEntityAdd }
func (m *EntityAdd) Size() int         { return identitySize + 1 + 4 + 2 }
func (m *EntityAdd) Reset()            { *m = EntityAdd{} }

func (m *EntityAdd) Serialize(w *writer) error {
	if err := w.WriteIdentity(m.ID); err != nil {
		return err
	}
	if err := w.WriteU8(m.Kind); err != nil {
		return err
	}
	if err := w.WriteVec2(m.X, m.Y); err != nil {
		return err
	}
	return w.WriteAngle(m.Angle)
}

func (m *EntityAdd) Deserialize(r *reader) error {
	var err error
	if m.ID, err = r.ReadIdentity(); err != nil {
		return err
	}
	if m.Kind, err = r.ReadU8(); err != nil {
		return err
	}
	if m.X, m.Y, err = r.ReadVec2(); err != nil {
		return err
	}
	m.Angle, err = r.ReadAngle()
	return err
}

type EntityRemove struct {
	ID NetworkIdentity
}

func (m *EntityRemove) Type() MessageType { return TagEntityRemove }
func (m *EntityRemove) Size() int         { return identitySize }
func (m *EntityRemove) Reset()            { *m = EntityRemove{} }

func (m *EntityRemove) Serialize(w *writer) error { return w.WriteIdentity(m.ID) }

func (m *EntityRemove) Deserialize(r *reader) error {
	var err error
	m.ID, err = r.ReadIdentity()
	return err
}

type PlayerJoined struct {
	ID   NetworkIdentity
	Name string
}

func (m *PlayerJoined) Type() MessageType { return TagPlayerJoined }
func (m *PlayerJoined) Size() int         { return identitySize + stringSize(m.Name) }
func (m *PlayerJoined) Reset()            { *m = PlayerJoined{} }

func (m *PlayerJoined) Serialize(w *writer) error {
	if err := w.WriteIdentity(m.ID); err != nil {
		return err
	}
	return w.WriteString(m.Name, MaxNameLen)
}

func (m *PlayerJoined) Deserialize(r *reader) error {
	var err error
	if m.ID, err = r.ReadIdentity(); err != nil {
		return err
	}
	m.Name, err = r.ReadString(MaxNameLen)
	return err
}

type PlayerLeft struct {
	ID NetworkIdentity
}

func (m *PlayerLeft) Type() MessageType { return TagPlayerLeft }
func (m *PlayerLeft) Size() int         { return identitySize }
func (m *PlayerLeft) Reset()            { *m = PlayerLeft{} }

func (m *PlayerLeft) Serialize(w *writer) error { return w.WriteIdentity(m.ID) }

func (m *PlayerLeft) Deserialize(r *reader) error {
	var err error
	m.ID, err = r.ReadIdentity()
	return err
}

type Chat struct {
	From NetworkIdentity
	Text string
}

func (m *Chat) Type() MessageType { return TagChat }
func (m *Chat) Size() int         { return identitySize + stringSize(m.Text) }
func (m *Chat) Reset()            { *m = Chat{} }

func (m *Chat) Serialize(w *writer) error {
	if err := w.WriteIdentity(m.From); err != nil {
		return err
	}
	return w.WriteString(m.Text, MaxChatLen)
}

func (m *Chat) Deserialize(r *reader) error {
	var err error
	if m.From, err = r.ReadIdentity(); err != nil {
		return err
	}
	m.Text, err = r.ReadString(MaxChatLen)
	return err
}

type Kill struct {
	Killer NetworkIdentity
	Victim NetworkIdentity
}

func (m *Kill) Type() MessageType { return TagKill }
func (m *Kill) Size() int         { return 2 * identitySize }
func (m *Kill) Reset()            { *m = Kill{} }

func (m *Kill) Serialize(w *writer) error {
	if err := w.WriteIdentity(m.Killer); err != nil {
		return err
	}
	return w.WriteIdentity(m.Victim)
}

func (m *Kill) Deserialize(r *reader) error {
	var err error
	if m.Killer, err = r.ReadIdentity(); err != nil {
		return err
	}
	m.Victim, err = r.ReadIdentity()
	return err
}

type StatsUpdate struct {
	ID     NetworkIdentity
	Kills  uint16
	Deaths uint16
}

func (m *StatsUpdate) Type() MessageType { return TagStatsUpdate }
func (m *StatsUpdate) Size() int         { return identitySize + 4 }
func (m *StatsUpdate) Reset()            { *m = StatsUpdate{} }

func (m *StatsUpdate) Serialize(w *writer) error {
	if err := w.WriteIdentity(m.ID); err != nil {
		return err
	}
	if err := w.WriteU16(m.Kills); err != nil {
		return err
	}
	return w.WriteU16(m.Deaths)
}

func (m *StatsUpdate) Deserialize(r *reader) error {
	var err error
	if m.ID, err = r.ReadIdentity(); err != nil {
		return err
	}
	if m.Kills, err = r.ReadU16(); err != nil {
		return err
	}
	m.Deaths, err = r.ReadU16()
	return err
}

// UpdateTransform is the per-tick entity state update. It is batchable:
// many updates share one tag/sequence unit on the wire.
type UpdateTransform struct {
	ID    NetworkIdentity
	X, Y  float64
	Angle float64
}

func (m *UpdateTransform) Type() MessageType { return TagUpdateTransform }
func (m *UpdateTransform) Size() int         { return identitySize + 4 + 2 }
func (m *UpdateTransform) Reset()            { *m = UpdateTransform{} }

func (m *UpdateTransform) Serialize(w *writer) error {
	if err := w.WriteIdentity(m.ID); err != nil {
		return err
	}
	if err := w.WriteVec2(m.X, m.Y); err != nil {
		return err
	}
	return w.WriteAngle(m.Angle)
}

func (m *UpdateTransform) Deserialize(r *reader) error {
	var err error
	if m.ID, err = r.ReadIdentity(); err != nil {
		return err
	}
	if m.X, m.Y, err = r.ReadVec2(); err != nil {
		return err
	}
	m.Angle, err = r.ReadAngle()
	return err
}

// PlayerInput button bits.
const (
	ButtonUp uint8 = 1 << iota
	ButtonDown
	ButtonLeft
	ButtonRight
	ButtonFire
)

type PlayerInput struct {
	Buttons uint8
	Aim     float64
}

func (m *PlayerInput) Type() MessageType { return TagPlayerInput }
func (m *PlayerInput) Size() int         { return 1 + 2 }
func (m *PlayerInput) Reset()            { *m = PlayerInput{} }

func (m *PlayerInput) Serialize(w *writer) error {
	if err := w.WriteU8(m.Buttons); err != nil {
		return err
	}
	return w.WriteAngle(m.Aim)
}

func (m *PlayerInput) Deserialize(r *reader) error {
	var err error
	if m.Buttons, err = r.ReadU8(); err != nil {
		return err
	}
	m.Aim, err = r.ReadAngle()
	return err
}

// Heartbeat keeps an otherwise idle connection inside the timeout window.
type Heartbeat struct {
	Clock uint32
}

func (m *Heartbeat) Type() MessageType { return TagHeartbeat }
func (m *Heartbeat) Size() int         { return 4 }
func (m *Heartbeat) Reset()            { *m = Heartbeat{} }

func (m *Heartbeat) Serialize(w *writer) error { return w.WriteU32(m.Clock) }

func (m *Heartbeat) Deserialize(r *reader) error {
	var err error
	m.Clock, err = r.ReadU32()
	return err
}
