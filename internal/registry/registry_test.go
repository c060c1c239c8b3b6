package registry

import (
	"fmt"
	"sync"
	"testing"
)

func participant(id, name string) *Participant {
	return &Participant{ID: id, DisplayName: name}
}

func memberIDs(members []*Participant) []string {
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}
	return ids
}

func TestJoinReturnsExistingMembersInJoinOrder(t *testing.T) {
	r := New()

	others, err := r.Join("room", participant("a", "Alice"), nil)
	if err != nil {
		t.Fatalf("join a: %v", err)
	}
	if len(others) != 0 {
		t.Fatalf("first joiner saw %d members, want 0", len(others))
	}

	others, err = r.Join("room", participant("b", "Bob"), nil)
	if err != nil {
		t.Fatalf("join b: %v", err)
	}
	if len(others) != 1 || others[0].ID != "a" {
		t.Fatalf("second joiner saw %v, want [a]", memberIDs(others))
	}

	others, err = r.Join("room", participant("c", "Carol"), nil)
	if err != nil {
		t.Fatalf("join c: %v", err)
	}
	if got := memberIDs(others); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("third joiner saw %v, want [a b]", got)
	}
}

func TestJoinValidation(t *testing.T) {
	r := New()

	if _, err := r.Join("", participant("a", "Alice"), nil); err != ErrEmptyRoomID {
		t.Fatalf("empty room id: got %v, want ErrEmptyRoomID", err)
	}
	if _, err := r.Join("room", participant("a", ""), nil); err != ErrEmptyDisplayName {
		t.Fatalf("empty display name: got %v, want ErrEmptyDisplayName", err)
	}
	if _, err := r.Join("room", participant("a", "Alice"), nil); err != nil {
		t.Fatalf("valid join: %v", err)
	}
	if _, err := r.Join("other", participant("a", "Alice"), nil); err != ErrDuplicateID {
		t.Fatalf("duplicate id: got %v, want ErrDuplicateID", err)
	}

	// The failed joins must not have registered anything.
	if r.MembersOf("") != nil {
		t.Fatal("empty room id was registered")
	}
	if got := r.MembersOf("other"); got != nil {
		t.Fatalf("duplicate join registered a room: %v", memberIDs(got))
	}
}

func TestMembersMatchJoinsMinusLeaves(t *testing.T) {
	r := New()
	for _, id := range []string{"a", "b", "c", "d"} {
		if _, err := r.Join("room", participant(id, "name-"+id), nil); err != nil {
			t.Fatalf("join %s: %v", id, err)
		}
	}

	r.Leave("b", nil)
	r.Leave("d", nil)

	got := memberIDs(r.MembersOf("room"))
	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Fatalf("members = %v, want [a c]", got)
	}
}

func TestLeaveIsIdempotent(t *testing.T) {
	r := New()
	r.Join("room", participant("a", "Alice"), nil)
	r.Join("room", participant("b", "Bob"), nil)

	roomID, remaining, ok := r.Leave("a", nil)
	if !ok || roomID != "room" || remaining != 1 {
		t.Fatalf("leave = (%q, %d, %v), want (room, 1, true)", roomID, remaining, ok)
	}

	if _, _, ok := r.Leave("a", nil); ok {
		t.Fatal("second leave of the same participant reported ok")
	}
	if _, _, ok := r.Leave("never-joined", nil); ok {
		t.Fatal("leave of unknown participant reported ok")
	}
}

func TestEmptyRoomIsDestroyed(t *testing.T) {
	r := New()
	r.Join("room", participant("a", "Alice"), nil)

	if r.RoomCount() != 1 {
		t.Fatalf("room count = %d, want 1", r.RoomCount())
	}

	_, remaining, ok := r.Leave("a", nil)
	if !ok || remaining != 0 {
		t.Fatalf("leave = (remaining %d, ok %v), want (0, true)", remaining, ok)
	}
	if r.RoomCount() != 0 {
		t.Fatalf("room count after last leave = %d, want 0", r.RoomCount())
	}
	if r.MembersOf("room") != nil {
		t.Fatal("empty room still retrievable")
	}

	// The id can be reused for a fresh join.
	if _, err := r.Join("room", participant("a", "Alice"), nil); err != nil {
		t.Fatalf("rejoin after room death: %v", err)
	}
}

func TestDeliverRunsWithOthersSnapshot(t *testing.T) {
	r := New()
	r.Join("room", participant("a", "Alice"), nil)

	var delivered []string
	r.Join("room", participant("b", "Bob"), func(others []*Participant) {
		delivered = memberIDs(others)
	})
	if len(delivered) != 1 || delivered[0] != "a" {
		t.Fatalf("deliver saw %v, want [a]", delivered)
	}

	var leftRoom string
	var remaining []string
	r.Leave("b", func(roomID string, rest []*Participant) {
		leftRoom = roomID
		remaining = memberIDs(rest)
	})
	if leftRoom != "room" || len(remaining) != 1 || remaining[0] != "a" {
		t.Fatalf("leave deliver = (%q, %v), want (room, [a])", leftRoom, remaining)
	}
}

func TestConcurrentJoinsAndLeaves(t *testing.T) {
	r := New()
	const perRoom = 50

	var wg sync.WaitGroup
	for _, roomID := range []string{"r1", "r2", "r3"} {
		for i := 0; i < perRoom; i++ {
			wg.Add(1)
			go func(roomID string, i int) {
				defer wg.Done()
				id := fmt.Sprintf("%s-%d", roomID, i)
				if _, err := r.Join(roomID, participant(id, "p"), nil); err != nil {
					t.Errorf("join %s: %v", id, err)
					return
				}
				if i%2 == 0 {
					r.Leave(id, nil)
				}
			}(roomID, i)
		}
	}
	wg.Wait()

	for _, roomID := range []string{"r1", "r2", "r3"} {
		if got := len(r.MembersOf(roomID)); got != perRoom/2 {
			t.Errorf("room %s has %d members, want %d", roomID, got, perRoom/2)
		}
	}
}

func TestConversationContextBounded(t *testing.T) {
	r := New()
	r.Join("room", participant("a", "Alice"), nil)

	for i := 0; i < contextLimit+10; i++ {
		r.AppendContext("room", ChatRecord{From: "a", Text: fmt.Sprintf("msg-%d", i)})
	}

	ctx := r.Context("room")
	if len(ctx) != contextLimit {
		t.Fatalf("context length = %d, want %d", len(ctx), contextLimit)
	}
	if ctx[0].Text != "msg-10" {
		t.Fatalf("oldest kept record = %q, want msg-10", ctx[0].Text)
	}

	// Context dies with the room.
	r.Leave("a", nil)
	if got := r.Context("room"); got != nil {
		t.Fatalf("context survived room death: %d records", len(got))
	}
}
