package roster

import "testing"

func ids(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func TestEntriesKeepJoinOrder(t *testing.T) {
	r := New(nil)
	r.Add("a", "Alice")
	r.Add("b", "Bob")
	r.Add("c", "Carol")
	r.Remove("b")
	r.Add("d", "Dave")

	got := ids(r.Entries())
	want := []string{"a", "c", "d"}
	if len(got) != len(want) {
		t.Fatalf("entries = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("entries = %v, want %v", got, want)
		}
	}
}

func TestNewParticipantsStartEnabled(t *testing.T) {
	r := New(nil)
	r.Add("a", "Alice")

	e := r.Entries()[0]
	if !e.AudioEnabled || !e.VideoEnabled {
		t.Fatalf("new entry = (audio %v, video %v), want both enabled", e.AudioEnabled, e.VideoEnabled)
	}
}

func TestToggleFlagsTrackLatestEvent(t *testing.T) {
	r := New(nil)
	r.Add("a", "Alice")

	r.SetAudio("a", false)
	r.SetVideo("a", false)
	r.SetVideo("a", true)

	e := r.Entries()[0]
	if e.AudioEnabled {
		t.Fatal("audio still enabled after mute")
	}
	if !e.VideoEnabled {
		t.Fatal("video disabled after re-enable")
	}

	// Toggles for unknown ids are dropped, not created.
	r.SetAudio("ghost", false)
	if r.Contains("ghost") {
		t.Fatal("toggle created a phantom participant")
	}
}

func TestReAddRefreshesNameOnly(t *testing.T) {
	r := New(nil)
	r.Add("a", "Alice")
	r.SetAudio("a", false)
	r.Add("a", "Alice (2)")

	entries := r.Entries()
	if len(entries) != 1 {
		t.Fatalf("re-add duplicated the entry: %v", ids(entries))
	}
	if entries[0].DisplayName != "Alice (2)" {
		t.Fatalf("display name = %q, want refreshed", entries[0].DisplayName)
	}
	if entries[0].AudioEnabled {
		t.Fatal("re-add reset the audio flag")
	}
}

func TestObserverSeesEveryChange(t *testing.T) {
	var snapshots [][]string
	r := New(func(entries []Entry) {
		snapshots = append(snapshots, ids(entries))
	})

	r.Add("a", "Alice")
	r.Add("b", "Bob")
	r.SetAudio("a", false)
	r.Remove("a")
	r.Remove("never-there") // no-op, no notification

	if len(snapshots) != 4 {
		t.Fatalf("observer fired %d times, want 4", len(snapshots))
	}
	last := snapshots[len(snapshots)-1]
	if len(last) != 1 || last[0] != "b" {
		t.Fatalf("final snapshot = %v, want [b]", last)
	}
}

func TestObserverMayCallBackIntoRoster(t *testing.T) {
	var r *Roster
	r = New(func(entries []Entry) {
		// A re-entrant read must not deadlock.
		_ = r.Contains("a")
	})
	r.Add("a", "Alice")
	r.Remove("a")
}
