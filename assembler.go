package netplay

import "net"

// packetSocket is the send surface the assembler needs. *net.UDPConn
// satisfies it; tests substitute a recording fake.
type packetSocket interface {
	Write(b []byte) (int, error)
	WriteTo(b []byte, addr net.Addr) (int, error)
}

// PacketAssembler packs outgoing messages into fixed-size packets,
// fragmenting oversized batches. It owns the send buffer and cursor
// exclusively for the duration of one send operation; there are no
// concurrent writers.
type PacketAssembler struct {
	socket    packetSocket
	dest      net.Addr
	connected bool

	buf [MaxPacketSize]byte
	w   *writer

	ack     uint32
	packets int
}

// NewPacketAssembler builds an assembler over socket. When connected is
// true packets go out via Write, otherwise via WriteTo(dest).
func NewPacketAssembler(socket packetSocket, dest net.Addr, connected bool) *PacketAssembler {
	pa := &PacketAssembler{socket: socket, dest: dest, connected: connected}
	pa.w = newWriter(pa.buf[:])
	pa.allocatePacket()
	return pa
}

// Begin starts a send cycle. Every packet of the cycle carries ack, the
// highest in-order reliable sequence number received from the peer.
func (pa *PacketAssembler) Begin(ack uint32) {
	pa.ack = ack
	pa.allocatePacket()
}

// PacketCount reports how many packets have been sent since creation.
func (pa *PacketAssembler) PacketCount() int { return pa.packets }

func (pa *PacketAssembler) allocatePacket() {
	pa.w.Reset()
	// The header never fails: the buffer is empty.
	if err := pa.w.WriteU32(pa.ack); err != nil {
		panic(err)
	}
}

func (pa *PacketAssembler) empty() bool {
	return pa.w.Len() == packetHeaderSize
}

// sendPacket transmits the current buffer contents and starts a new
// packet.
func (pa *PacketAssembler) sendPacket() error {
	var err error
	if pa.connected {
		_, err = pa.socket.Write(pa.w.Bytes())
	} else {
		_, err = pa.socket.WriteTo(pa.w.Bytes(), pa.dest)
	}
	if err != nil {
		return err
	}
	pa.packets++
	pa.allocatePacket()
	return nil
}

// Flush sends the current packet if it carries any body content.
func (pa *PacketAssembler) Flush() error {
	if pa.empty() {
		return nil
	}
	return pa.sendPacket()
}

// FlushAck sends the current packet even if it is header-only. Used when
// an acknowledgment must reach a peer that is not owed any messages.
func (pa *PacketAssembler) FlushAck() error {
	return pa.sendPacket()
}

func (pa *PacketAssembler) sendOne(sm SequencedMessage) error {
	need := unitHeaderSize + sm.Message.Size()
	if need > MaxPacketSize-packetHeaderSize {
		// Should have been caught before any network code was reached.
		return protocolErrorf("message tag %#02x (%d bytes) exceeds packet capacity",
			uint8(sm.Message.Type()), sm.Message.Size())
	}
	if need > pa.w.Remaining() {
		if err := pa.sendPacket(); err != nil {
			return err
		}
		if need > pa.w.Remaining() {
			return protocolErrorf("message tag %#02x does not fit an empty packet",
				uint8(sm.Message.Type()))
		}
	}
	if err := pa.w.WriteU8(uint8(sm.Message.Type())); err != nil {
		return err
	}
	if err := pa.w.WriteU32(sm.SequenceNumber); err != nil {
		return err
	}
	return sm.Message.Serialize(pa.w)
}

// SendReliable serializes the pending reliable queue in order. The caller
// keeps ownership of the messages; they are re-submitted every tick until
// acknowledged.
func (pa *PacketAssembler) SendReliable(msgs []SequencedMessage) error {
	for _, sm := range msgs {
		if err := pa.sendOne(sm); err != nil {
			return err
		}
	}
	return nil
}

// SendUnreliable serializes one-shot unreliable messages.
func (pa *PacketAssembler) SendUnreliable(msgs []SequencedMessage) error {
	for _, sm := range msgs {
		if err := pa.sendOne(sm); err != nil {
			return err
		}
	}
	return nil
}

// SendBatched drains each batch into fragments of the form
// {tag, seq, count, payload*count}. A batch that does not fit one packet
// continues in the next with a freshly assigned sequence number, so every
// fragment is independently decodable. Drained messages are released back
// to their pool.
func (pa *PacketAssembler) SendBatched(batches []*BatchedMessage, dm *DeliveryManager) error {
	for _, batch := range batches {
		for len(batch.Messages) > 0 {
			// Room for the fragment header plus at least one message,
			// otherwise start a fresh packet first.
			if batchHeaderSize+batch.Messages[0].Size() > pa.w.Remaining() {
				if err := pa.sendPacket(); err != nil {
					return err
				}
				if batchHeaderSize+batch.Messages[0].Size() > pa.w.Remaining() {
					return protocolErrorf("batched message tag %#02x does not fit an empty packet",
						uint8(batch.Type))
				}
			}
			seq := dm.AssignUnreliableNumber()
			if err := pa.w.WriteU8(uint8(batch.Type)); err != nil {
				return err
			}
			if err := pa.w.WriteU32(seq); err != nil {
				return err
			}
			countPos := pa.w.Len()
			if err := pa.w.WriteU8(0); err != nil {
				return err
			}
			count := 0
			for len(batch.Messages) > 0 && count < maxBatchCount {
				msg := batch.Messages[0]
				if msg.Size() > pa.w.Remaining() {
					break
				}
				if err := msg.Serialize(pa.w); err != nil {
					return err
				}
				batch.Messages = batch.Messages[1:]
				Release(msg)
				count++
			}
			if count == 0 {
				// Structurally impossible: the fit check above admitted
				// the first message.
				return protocolErrorf("empty batch fragment for tag %#02x", uint8(batch.Type))
			}
			pa.w.PatchU8(countPos, uint8(count))
			if len(batch.Messages) > 0 {
				if err := pa.sendPacket(); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
