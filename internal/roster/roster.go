// Package roster maintains the locally-visible view of who is in the room
// and their audio/video state. It is a pure projection of relayed events;
// its only output is the observer notification the rendering layer
// subscribes to.
package roster

import "sync"

// Entry is one participant as the local client sees them. Participants
// start with audio and video enabled; toggle events update the flags.
type Entry struct {
	ID           string
	DisplayName  string
	AudioEnabled bool
	VideoEnabled bool
}

// Roster is the ordered set of visible participants, keyed by id.
type Roster struct {
	mu       sync.Mutex
	entries  map[string]*Entry
	order    []string
	observer func([]Entry)
}

// New creates a roster. observer, if non-nil, receives a full snapshot
// after every change.
func New(observer func([]Entry)) *Roster {
	return &Roster{
		entries:  make(map[string]*Entry),
		observer: observer,
	}
}

// Add registers a participant. Re-adding an existing id only refreshes the
// display name.
func (r *Roster) Add(id, displayName string) {
	r.mu.Lock()
	if e, ok := r.entries[id]; ok {
		e.DisplayName = displayName
		r.notifyAndUnlock()
		return
	}
	r.entries[id] = &Entry{ID: id, DisplayName: displayName, AudioEnabled: true, VideoEnabled: true}
	r.order = append(r.order, id)
	r.notifyAndUnlock()
}

// Remove drops a participant. Unknown ids are a no-op.
func (r *Roster) Remove(id string) {
	r.mu.Lock()
	if _, ok := r.entries[id]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.entries, id)
	for i, o := range r.order {
		if o == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.notifyAndUnlock()
}

// SetAudio updates a participant's audio flag.
func (r *Roster) SetAudio(id string, enabled bool) {
	r.setFlag(id, func(e *Entry) { e.AudioEnabled = enabled })
}

// SetVideo updates a participant's video flag.
func (r *Roster) SetVideo(id string, enabled bool) {
	r.setFlag(id, func(e *Entry) { e.VideoEnabled = enabled })
}

func (r *Roster) setFlag(id string, apply func(*Entry)) {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	apply(e)
	r.notifyAndUnlock()
}

// Entries returns the participants in join order.
func (r *Roster) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Contains reports whether id is on the roster.
func (r *Roster) Contains(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[id]
	return ok
}

func (r *Roster) snapshotLocked() []Entry {
	out := make([]Entry, 0, len(r.order))
	for _, id := range r.order {
		if e, ok := r.entries[id]; ok {
			out = append(out, *e)
		}
	}
	return out
}

// notifyAndUnlock snapshots under the lock, releases it, then notifies, so
// observers can call back into the roster.
func (r *Roster) notifyAndUnlock() {
	snapshot := r.snapshotLocked()
	r.mu.Unlock()
	if r.observer != nil {
		r.observer(snapshot)
	}
}
