package playlist

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestTrack_SetLengthOnce(t *testing.T) {
	tr := NewTrack("song.mp3", "song", nil)

	if _, ok := tr.Length(); ok {
		t.Fatal("Length() known on new track")
	}
	if !tr.SetLength(3 * time.Minute) {
		t.Fatal("first SetLength() = false, want true")
	}
	if tr.SetLength(time.Minute) {
		t.Error("second SetLength() = true, want false")
	}
	if got, _ := tr.Length(); got != 3*time.Minute {
		t.Errorf("Length() = %v, want %v", got, 3*time.Minute)
	}
}

func TestTrack_NameFallsBackToLocation(t *testing.T) {
	tr := NewTrack("https://example.com/live", "", nil)
	if tr.Name() != "https://example.com/live" {
		t.Errorf("Name() = %q, want location", tr.Name())
	}
}

func TestTrack_MarkProbeStarted(t *testing.T) {
	tr := NewTrack("a", "", nil)
	if !tr.MarkProbeStarted() {
		t.Error("first MarkProbeStarted() = false, want true")
	}
	if tr.MarkProbeStarted() {
		t.Error("second MarkProbeStarted() = true, want false")
	}

	known := FromRecord(Record{Location: "b", Length: time.Second, Known: true})
	if known.MarkProbeStarted() {
		t.Error("MarkProbeStarted() with known length = true, want false")
	}
}

func TestFromRecord(t *testing.T) {
	rec := Record{ID: "id-1", Location: "/music/a.flac", Name: "a.flac", Length: 95 * time.Second, Known: true}

	tr := FromRecord(rec)
	if tr.Hint() != nil {
		t.Error("Hint() on rehydrated track is not nil")
	}
	if diff := cmp.Diff(rec, tr.Record()); diff != "" {
		t.Errorf("Record() mismatch (-want +got):\n%s", diff)
	}
}
