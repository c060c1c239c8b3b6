// Package registry is the authoritative mapping of rooms to participants.
// It is the single source of truth for membership: the relay never assumes
// a participant is in a room without asking it.
package registry

import (
	"errors"
	"sync"
	"time"
)

// contextLimit bounds the per-room conversation context kept for the
// assistant. Older records are discarded first.
const contextLimit = 50

var (
	ErrEmptyRoomID      = errors.New("empty room id")
	ErrEmptyDisplayName = errors.New("empty display name")
	ErrDuplicateID      = errors.New("participant id already registered")
)

// Participant is a member of exactly one room, keyed by its connection id.
type Participant struct {
	ID          string
	DisplayName string
	RoomID      string
}

// ChatRecord is one entry of a room's conversation context.
type ChatRecord struct {
	From        string
	DisplayName string
	Text        string
	Timestamp   time.Time
}

type room struct {
	mu      sync.Mutex
	id      string
	members map[string]*Participant
	order   []string // join order
	context []ChatRecord
}

// Registry owns all rooms and participants. The registry lock guards the
// maps; each room has its own lock serializing membership changes and the
// delivery callbacks that must be ordered with them. Lock order is always
// registry before room.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*room
	byID  map[string]*Participant
}

func New() *Registry {
	return &Registry{
		rooms: make(map[string]*room),
		byID:  make(map[string]*Participant),
	}
}

// Join adds p to roomID, creating the room if it does not exist yet, and
// returns the other participants already present, in join order.
//
// deliver, if non-nil, runs while the room's lock is still held. Callers
// use it to enqueue the member snapshot for the joiner and the join
// notifications for everyone else: because later joins to the same room
// cannot start until deliver returns, a joiner's snapshot is always
// enqueued before any notification about a later arrival.
func (r *Registry) Join(roomID string, p *Participant, deliver func(others []*Participant)) ([]*Participant, error) {
	if roomID == "" {
		return nil, ErrEmptyRoomID
	}
	if p.DisplayName == "" {
		return nil, ErrEmptyDisplayName
	}

	r.mu.Lock()
	if _, exists := r.byID[p.ID]; exists {
		r.mu.Unlock()
		return nil, ErrDuplicateID
	}
	rm, ok := r.rooms[roomID]
	if !ok {
		rm = &room{id: roomID, members: make(map[string]*Participant)}
		r.rooms[roomID] = rm
	}
	rm.mu.Lock()
	r.byID[p.ID] = p
	r.mu.Unlock()
	defer rm.mu.Unlock()

	p.RoomID = roomID
	others := rm.snapshotLocked(p.ID)
	rm.members[p.ID] = p
	rm.order = append(rm.order, p.ID)

	if deliver != nil {
		deliver(others)
	}
	return others, nil
}

// Leave removes the participant and reaps the room if it became empty.
// Unknown ids are a no-op (ok=false), so duplicate leaves are harmless.
//
// deliver, if non-nil, runs under the room lock with the members that
// remain, for the same ordering reason as in Join.
func (r *Registry) Leave(participantID string, deliver func(roomID string, remaining []*Participant)) (roomID string, remaining int, ok bool) {
	r.mu.Lock()
	p, exists := r.byID[participantID]
	if !exists {
		r.mu.Unlock()
		return "", 0, false
	}
	delete(r.byID, participantID)
	rm := r.rooms[p.RoomID]
	rm.mu.Lock()

	delete(rm.members, participantID)
	for i, id := range rm.order {
		if id == participantID {
			rm.order = append(rm.order[:i], rm.order[i+1:]...)
			break
		}
	}
	remaining = len(rm.members)
	if remaining == 0 {
		delete(r.rooms, rm.id)
	}
	r.mu.Unlock()
	defer rm.mu.Unlock()

	if deliver != nil {
		deliver(rm.id, rm.snapshotLocked(""))
	}
	return rm.id, remaining, true
}

// MembersOf returns a snapshot of the room's members in join order, or nil
// if the room does not exist.
func (r *Registry) MembersOf(roomID string) []*Participant {
	r.mu.RLock()
	rm, ok := r.rooms[roomID]
	if !ok {
		r.mu.RUnlock()
		return nil
	}
	rm.mu.Lock()
	r.mu.RUnlock()
	defer rm.mu.Unlock()
	return rm.snapshotLocked("")
}

// Lookup returns the participant registered under id, if any.
func (r *Registry) Lookup(id string) (*Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	return p, ok
}

// RoomCount reports how many rooms currently exist.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// AppendContext records a chat message in the room's conversation context.
// Missing rooms are ignored; the context dies with the room.
func (r *Registry) AppendContext(roomID string, rec ChatRecord) {
	r.mu.RLock()
	rm, ok := r.rooms[roomID]
	if !ok {
		r.mu.RUnlock()
		return
	}
	rm.mu.Lock()
	r.mu.RUnlock()
	defer rm.mu.Unlock()

	rm.context = append(rm.context, rec)
	if len(rm.context) > contextLimit {
		rm.context = rm.context[len(rm.context)-contextLimit:]
	}
}

// Context returns a copy of the room's conversation context.
func (r *Registry) Context(roomID string) []ChatRecord {
	r.mu.RLock()
	rm, ok := r.rooms[roomID]
	if !ok {
		r.mu.RUnlock()
		return nil
	}
	rm.mu.Lock()
	r.mu.RUnlock()
	defer rm.mu.Unlock()

	out := make([]ChatRecord, len(rm.context))
	copy(out, rm.context)
	return out
}

// snapshotLocked copies the member set in join order, skipping skipID.
// Caller holds the room lock.
func (rm *room) snapshotLocked(skipID string) []*Participant {
	out := make([]*Participant, 0, len(rm.members))
	for _, id := range rm.order {
		if id == skipID {
			continue
		}
		if p, ok := rm.members[id]; ok {
			out = append(out, p)
		}
	}
	return out
}
