package websocket

import (
	"sort"
	"sync"
	"time"

	"solarchat/internal/models"
	"solarchat/pkg/logger"
)

// presenceEntry tracks one identity's live connections. The entry is
// created on the identity's first registered connection and removed when
// its last connection goes away.
type presenceEntry struct {
	identity models.Identity
	conns    map[*Client]bool
	joinedAt time.Time
}

// Hub is the process-wide presence registry. It owns the table of
// connected identities, resolves delivery targets for the router, and
// broadcasts the mentor-visible user list on user joins and leaves.
// Presence is ephemeral: a restart drops it and clients must rejoin.
type Hub struct {
	mu      sync.RWMutex
	entries map[string]*presenceEntry // identity id -> entry
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		entries: make(map[string]*presenceEntry),
	}
}

// Register adds a connection to its identity's presence entry, creating
// the entry on the identity's first connection. Registering a user-role
// identity broadcasts the updated user list to all mentor connections;
// mentors never appear in that list and their joins broadcast nothing.
func (h *Hub) Register(client *Client) {
	identity := client.Identity()

	h.mu.Lock()

	entry, exists := h.entries[identity.ID]
	if !exists {
		entry = &presenceEntry{
			identity: identity,
			conns:    make(map[*Client]bool),
			joinedAt: time.Now(),
		}
		h.entries[identity.ID] = entry
	}
	entry.conns[client] = true
	connections := len(entry.conns)

	var payload *PresencePayload
	if identity.Role == models.RoleUser {
		payload = h.presencePayloadLocked()
	}

	h.mu.Unlock()

	logger.LogChatEvent("presence_registered", identity.ID, map[string]interface{}{
		"role":        identity.Role,
		"connections": connections,
	})

	if payload != nil {
		h.broadcastToMentors(NewEvent(EventUserJoined, payload))
	}
}

// Unregister removes a connection from its identity's entry. When the
// last connection of a user-role identity goes away, mentors receive a
// user-left broadcast with the updated list.
func (h *Hub) Unregister(client *Client) {
	identity := client.Identity()

	h.mu.Lock()

	entry, exists := h.entries[identity.ID]
	if !exists {
		h.mu.Unlock()
		return
	}

	delete(entry.conns, client)

	var payload *PresencePayload
	removed := len(entry.conns) == 0
	if removed {
		delete(h.entries, identity.ID)
		if identity.Role == models.RoleUser {
			payload = h.presencePayloadLocked()
		}
	}

	h.mu.Unlock()

	logger.LogChatEvent("presence_unregistered", identity.ID, map[string]interface{}{
		"role":    identity.Role,
		"offline": removed,
	})

	if payload != nil {
		h.broadcastToMentors(NewEvent(EventUserLeft, payload))
	}
}

// ConnectionsFor returns the live connections of one identity. An empty
// result means the identity is offline, which is not an error.
func (h *Hub) ConnectionsFor(userID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	entry, exists := h.entries[userID]
	if !exists {
		return nil
	}

	conns := make([]*Client, 0, len(entry.conns))
	for client := range entry.conns {
		conns = append(conns, client)
	}
	return conns
}

// AllMentorConnections returns every live connection registered with the
// mentor or admin role.
func (h *Hub) AllMentorConnections() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var conns []*Client
	for _, entry := range h.entries {
		if !entry.identity.IsStaff() {
			continue
		}
		for client := range entry.conns {
			conns = append(conns, client)
		}
	}
	return conns
}

// IsOnline reports whether an identity has at least one live connection.
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, exists := h.entries[userID]
	return exists
}

// UserList returns the active user-role identities, ordered by join time.
func (h *Hub) UserList() []PresenceUser {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.presencePayloadLocked().Users
}

// Counts returns connected user and staff identity counts for the stats
// endpoint.
func (h *Hub) Counts() (users int, staff int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, entry := range h.entries {
		if entry.identity.IsStaff() {
			staff++
		} else {
			users++
		}
	}
	return users, staff
}

// presencePayloadLocked builds the mentor-visible user list. Callers must
// hold at least the read lock.
func (h *Hub) presencePayloadLocked() *PresencePayload {
	users := make([]PresenceUser, 0)
	for _, entry := range h.entries {
		if entry.identity.Role != models.RoleUser {
			continue
		}
		users = append(users, PresenceUser{
			UserID:   entry.identity.ID,
			UserName: entry.identity.Name,
			JoinedAt: entry.joinedAt,
		})
	}

	sort.Slice(users, func(i, j int) bool {
		return users[i].JoinedAt.Before(users[j].JoinedAt)
	})

	return &PresencePayload{Users: users}
}

// broadcastToMentors pushes an event to every mentor and admin
// connection.
func (h *Hub) broadcastToMentors(ev *Event) {
	for _, client := range h.AllMentorConnections() {
		client.sendEvent(ev)
	}
}
