// Package hub multiplexes connections into named broadcast groups. The
// registry is created at process start and injected into the gateway; it is
// not a package-level singleton.
package hub

import (
	"sync"

	"go.uber.org/zap"

	"github.com/castlane/chesslive/internal/obslog"
)

// Lobby is the group every connection joins for presence and matchmaking
// events. Game groups are named by GameGroup.
const Lobby = "lobby"

// GameGroup names the broadcast group for one game.
func GameGroup(gameID string) string { return "game:" + gameID }

// Registry maps group names to member sets. All membership mutation and all
// sends are serialized by one mutex: a Send enqueues to exactly the members
// present when it acquires the lock, in submission order, so delivery per
// group is FIFO and joiners mid-send never see the event.
type Registry struct {
	mu      sync.Mutex
	groups  map[string]map[string]*Member
	byConn  map[string]*Member
	inGroup map[string]map[string]struct{} // member id -> group names
}

func NewRegistry() *Registry {
	return &Registry{
		groups:  make(map[string]map[string]*Member),
		byConn:  make(map[string]*Member),
		inGroup: make(map[string]map[string]struct{}),
	}
}

// Join adds the member to a group, registering it on first join.
func (r *Registry) Join(group string, m *Member) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.groups[group]; !ok {
		r.groups[group] = make(map[string]*Member)
	}
	r.groups[group][m.ID()] = m
	r.byConn[m.ID()] = m
	if _, ok := r.inGroup[m.ID()]; !ok {
		r.inGroup[m.ID()] = make(map[string]struct{})
	}
	r.inGroup[m.ID()][group] = struct{}{}
}

// Leave removes the member from one group. Leaving a group never joined is a
// no-op.
func (r *Registry) Leave(group, memberID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(group, memberID)
}

func (r *Registry) leaveLocked(group, memberID string) {
	members, ok := r.groups[group]
	if !ok {
		obslog.L().Debug("hub_leave_unknown_group",
			zap.String("group", group),
			zap.String("member_id", memberID),
		)
		return
	}
	if _, ok := members[memberID]; !ok {
		obslog.L().Debug("hub_leave_not_member",
			zap.String("group", group),
			zap.String("member_id", memberID),
		)
		return
	}
	delete(members, memberID)
	if len(members) == 0 {
		delete(r.groups, group)
	}
	if gs, ok := r.inGroup[memberID]; ok {
		delete(gs, group)
	}
}

// Remove detaches the member from every group and forgets it. Used on
// disconnect; idempotent.
func (r *Registry) Remove(memberID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for group := range r.inGroup[memberID] {
		r.leaveLocked(group, memberID)
	}
	delete(r.inGroup, memberID)
	delete(r.byConn, memberID)
}

// Send delivers payload to every member currently in the group. Unknown or
// empty groups are a no-op. A member whose queue is full is evicted and
// closed: a slow consumer must not stall the sender or silently miss events
// while appearing connected.
func (r *Registry) Send(group string, payload []byte) {
	var evicted []*Member
	r.mu.Lock()
	for _, m := range r.groups[group] {
		if !m.Enqueue(payload) {
			evicted = append(evicted, m)
		}
	}
	for _, m := range evicted {
		for g := range r.inGroup[m.ID()] {
			r.leaveLocked(g, m.ID())
		}
		delete(r.inGroup, m.ID())
		delete(r.byConn, m.ID())
	}
	r.mu.Unlock()

	for _, m := range evicted {
		m.Close()
		obslog.L().Warn("hub_member_evicted",
			zap.String("member_id", m.ID()),
			zap.String("group", group),
		)
	}
}

// GroupSize reports the current member count of a group.
func (r *Registry) GroupSize(group string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.groups[group])
}
