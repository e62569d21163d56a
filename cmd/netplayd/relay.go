package main

import (
	"go.uber.org/zap"

	"github.com/openduel/netplay"
)

type player struct {
	id      netplay.NetworkIdentity
	name    string
	lastSeq uint32 // newest transform applied, for staleness checks
}

// relay is the gameplay handler: it admits players, mirrors reliable
// events to everyone else and forwards fresh transform updates.
type relay struct {
	netplay.NopHandler

	lnr     *netplay.Listener
	ids     *netplay.IdentityAllocator
	players map[*netplay.Conn]*player
	stats   *netplay.StatsDB
	log     *zap.Logger
}

func newRelay(lnr *netplay.Listener, stats *netplay.StatsDB, log *zap.Logger) *relay {
	return &relay{
		lnr:     lnr,
		ids:     netplay.NewIdentityAllocator(),
		players: make(map[*netplay.Conn]*player),
		stats:   stats,
		log:     log,
	}
}

func (h *relay) broadcast(except *netplay.Conn, build func() netplay.Message) {
	h.lnr.Range(func(c *netplay.Conn) bool {
		if c != except {
			c.Enqueue(build())
		}
		return true
	})
}

func (h *relay) OnConnectRequest(c *netplay.Conn, m *netplay.ConnectRequest) {
	p := &player{id: h.ids.Allocate(), name: m.Name}
	h.players[c] = p

	accept, _ := netplay.Acquire(netplay.TagConnectAccept)
	accept.(*netplay.ConnectAccept).Self = p.id
	c.Enqueue(accept)

	// Tell the newcomer about everyone already here.
	for _, other := range h.players {
		if other == p {
			continue
		}
		joined, _ := netplay.Acquire(netplay.TagPlayerJoined)
		j := joined.(*netplay.PlayerJoined)
		j.ID, j.Name = other.id, other.name
		c.Enqueue(joined)
	}

	h.broadcast(c, func() netplay.Message {
		joined, _ := netplay.Acquire(netplay.TagPlayerJoined)
		j := joined.(*netplay.PlayerJoined)
		j.ID, j.Name = p.id, p.name
		return joined
	})
}

func (h *relay) OnChat(c *netplay.Conn, m *netplay.Chat) {
	p := h.players[c]
	if p == nil {
		return
	}
	from, text := p.id, m.Text
	h.broadcast(c, func() netplay.Message {
		msg, _ := netplay.Acquire(netplay.TagChat)
		chat := msg.(*netplay.Chat)
		chat.From, chat.Text = from, text
		return msg
	})
}

func (h *relay) OnUpdateTransform(c *netplay.Conn, m *netplay.UpdateTransform, seq uint32) {
	p := h.players[c]
	if p == nil || seq < p.lastSeq {
		// Strictly older only: every message of a batch fragment shares
		// one sequence number, so equality means a sibling, not a dup.
		return
	}
	p.lastSeq = seq
	id, x, y, angle := p.id, m.X, m.Y, m.Angle
	h.broadcast(c, func() netplay.Message {
		msg, _ := netplay.Acquire(netplay.TagUpdateTransform)
		ut := msg.(*netplay.UpdateTransform)
		ut.ID, ut.X, ut.Y, ut.Angle = id, x, y, angle
		return msg
	})
}

func (h *relay) OnKill(c *netplay.Conn, m *netplay.Kill) {
	killer := h.playerByID(m.Killer)
	victim := h.playerByID(m.Victim)
	if killer == nil || victim == nil {
		return
	}
	if err := h.stats.RecordKill(killer.name, victim.name, c.Session()); err != nil {
		h.log.Error("record kill", zap.Error(err))
	}
	kk, kd, _ := h.stats.PlayerStats(killer.name)

	killerID, victimID := m.Killer, m.Victim
	h.broadcast(nil, func() netplay.Message {
		msg, _ := netplay.Acquire(netplay.TagKill)
		k := msg.(*netplay.Kill)
		k.Killer, k.Victim = killerID, victimID
		return msg
	})
	h.broadcast(nil, func() netplay.Message {
		msg, _ := netplay.Acquire(netplay.TagStatsUpdate)
		su := msg.(*netplay.StatsUpdate)
		su.ID, su.Kills, su.Deaths = killerID, kk, kd
		return msg
	})
}

func (h *relay) playerByID(id netplay.NetworkIdentity) *player {
	for _, p := range h.players {
		if p.id == id {
			return p
		}
	}
	return nil
}

// onDropped handles every disconnect path: peer goodbye, timeout and
// protocol violation all arrive here as a clean transition.
func (h *relay) onDropped(c *netplay.Conn, reason uint8) {
	p := h.players[c]
	if p == nil {
		return
	}
	delete(h.players, c)
	h.ids.Release(p.id)
	h.log.Info("player left",
		zap.String("name", p.name),
		zap.Uint8("reason", reason))

	id := p.id
	h.broadcast(nil, func() netplay.Message {
		msg, _ := netplay.Acquire(netplay.TagPlayerLeft)
		msg.(*netplay.PlayerLeft).ID = id
		return msg
	})
}
