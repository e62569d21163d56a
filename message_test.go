package netplay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireUnknownTagIsProtocolError(t *testing.T) {
	_, err := Acquire(MessageType(0x7e))
	require.Error(t, err)
	assert.True(t, IsProtocolError(err))
}

func TestPoolReusesInstances(t *testing.T) {
	m1, err := Acquire(TagChat)
	require.NoError(t, err)
	m1.(*Chat).Text = "hello"
	Release(m1)

	m2, err := Acquire(TagChat)
	require.NoError(t, err)
	assert.Same(t, m1, m2, "the pool must hand back the released instance")
	assert.Empty(t, m2.(*Chat).Text, "pooled instances are reset on acquisition")
	Release(m2)
}

func TestRegistryRejectsBandViolations(t *testing.T) {
	// A reliable registration with a tag from the unreliable band.
	assert.Panics(t, func() {
		registerReliable(MessageType(0x90), func() Message { return new(Chat) })
	})
	// An unreliable registration with a tag from the reliable band.
	assert.Panics(t, func() {
		registerUnreliable(MessageType(0x10), false, func() Message { return new(Heartbeat) })
	})
	// Double registration of an existing tag.
	assert.Panics(t, func() {
		registerReliable(TagChat, func() Message { return new(Chat) })
	})
	// Reliable messages cannot be batchable.
	assert.Panics(t, func() {
		register(MessageType(0x7d), true, true, func() Message { return new(Chat) })
	})
}

func TestMessageRoundTrip(t *testing.T) {
	in := &EntityAdd{
		ID:    NetworkIdentity{Identifier: 3, Generation: 1},
		Kind:  2,
		X:     100,
		Y:     -250,
		Angle: 1.5,
	}
	buf := make([]byte, MaxPacketSize)
	w := newWriter(buf)
	require.NoError(t, in.Serialize(w))
	require.Equal(t, in.Size(), w.Len(), "Size must report the exact encoded length")

	out := new(EntityAdd)
	require.NoError(t, out.Deserialize(newReader(w.Bytes())))
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.Kind, out.Kind)
	assert.Equal(t, in.X, out.X)
	assert.Equal(t, in.Y, out.Y)
	assert.InDelta(t, in.Angle, out.Angle, 0.001)
}

func TestSizeIsExactForStrings(t *testing.T) {
	msg := &Chat{From: NetworkIdentity{Identifier: 1}, Text: "gg wp"}
	buf := make([]byte, MaxPacketSize)
	w := newWriter(buf)
	require.NoError(t, msg.Serialize(w))
	assert.Equal(t, msg.Size(), w.Len())
}
