// Package presence tracks which roster identity owns which connection and
// which room it currently sits in.
package presence

import (
	"strings"
	"sync"
	"time"

	"groupchat/internal/models"
)

// Departure describes a room membership that ended as a side effect of a join.
type Departure struct {
	User   models.User
	Room   string
	ConnID string
}

type JoinResult struct {
	User models.User
	// Rejoined is set when the identity was already in the same room on the
	// same connection.
	Rejoined   bool
	Departures []Departure
}

// Registry is safe for concurrent use. Every exported method is one critical
// section, so a connection never maps to two identities and an identity never
// sits in two rooms.
type Registry struct {
	mu     sync.RWMutex
	order  []string
	users  map[string]*models.User
	byConn map[string]string
	now    func() time.Time
}

func NewRegistry(roster []models.User) *Registry {
	r := &Registry{
		order:  make([]string, 0, len(roster)),
		users:  make(map[string]*models.User, len(roster)),
		byConn: make(map[string]string),
		now:    time.Now,
	}
	for _, u := range roster {
		if _, dup := r.users[u.UserID]; dup {
			continue
		}
		entry := u
		entry.SocketID = ""
		entry.Room = ""
		entry.Online = false
		r.users[u.UserID] = &entry
		r.order = append(r.order, u.UserID)
	}
	return r
}

// Join binds userID to connID and room. It reports false, and changes
// nothing, when userID is not in the roster.
func (r *Registry) Join(userID, room, connID string) (JoinResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return JoinResult{}, false
	}

	var res JoinResult

	// Another identity on this connection gives it up.
	if ownerID, bound := r.byConn[connID]; bound && ownerID != userID {
		owner := r.users[ownerID]
		res.Departures = append(res.Departures, Departure{User: *owner, Room: owner.Room, ConnID: connID})
		r.release(owner)
	}

	// This identity on another connection loses that connection.
	if u.SocketID != "" && u.SocketID != connID {
		res.Departures = append(res.Departures, Departure{User: *u, Room: u.Room, ConnID: u.SocketID})
		r.release(u)
	}

	if u.SocketID == connID && u.Room != "" {
		if u.Room == room {
			res.Rejoined = true
		} else {
			res.Departures = append(res.Departures, Departure{User: *u, Room: u.Room, ConnID: connID})
		}
	}

	u.SocketID = connID
	u.Room = room
	u.Online = true
	u.LastActive = r.now()
	r.byConn[connID] = userID

	res.User = *u
	return res, true
}

// Leave clears the identity owning connID and returns it as it was before
// the release. A second call for the same connection reports false.
func (r *Registry) Leave(connID string) (models.User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.byConn[connID]
	if !ok {
		return models.User{}, false
	}
	u := r.users[userID]
	before := *u
	r.release(u)
	return before, true
}

func (r *Registry) release(u *models.User) {
	if u.SocketID != "" {
		delete(r.byConn, u.SocketID)
	}
	u.SocketID = ""
	u.Room = ""
	u.Online = false
}

func (r *Registry) ByConnection(connID string) (models.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userID, ok := r.byConn[connID]
	if !ok {
		return models.User{}, false
	}
	return *r.users[userID], true
}

func (r *Registry) ByUser(userID string) (models.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[userID]
	if !ok {
		return models.User{}, false
	}
	return *u, true
}

// ByUsername matches display names case-insensitively.
func (r *Registry) ByUsername(name string) (models.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		if strings.EqualFold(r.users[id].Username, name) {
			return *r.users[id], true
		}
	}
	return models.User{}, false
}

// MembersOf returns the identities currently in room, in roster order.
func (r *Registry) MembersOf(room string) []models.User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]models.User, 0)
	if room == "" {
		return members
	}
	for _, id := range r.order {
		if u := r.users[id]; u.Room == room {
			members = append(members, *u)
		}
	}
	return members
}

// Touch refreshes the last-active time of the identity owning connID.
func (r *Registry) Touch(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.byConn[connID]
	if !ok {
		return false
	}
	r.users[userID].LastActive = r.now()
	return true
}

// Stale lists the connections whose owner has been inactive for longer than
// limit at now.
func (r *Registry) Stale(now time.Time, limit time.Duration) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stale []string
	for _, id := range r.order {
		u := r.users[id]
		if u.SocketID == "" || u.LastActive.IsZero() {
			continue
		}
		if now.Sub(u.LastActive) > limit {
			stale = append(stale, u.SocketID)
		}
	}
	return stale
}

func (r *Registry) Snapshot() []models.User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]models.User, 0, len(r.order))
	for _, id := range r.order {
		all = append(all, *r.users[id])
	}
	return all
}

func (r *Registry) OnlineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn)
}
