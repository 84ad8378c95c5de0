package pipeline

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{Idle, Running, true},
		{Idle, Paused, false},
		{Idle, Stopped, false},
		{Running, Paused, true},
		{Running, Stopped, true},
		{Running, Idle, false},
		{Paused, Running, true},
		{Paused, Stopped, true},
		{Paused, Paused, false},
		{Stopped, Running, true},
		{Stopped, Paused, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestEventAdvanceStopsAtTerminal(t *testing.T) {
	event := SourceEvent{State: Detected}
	event.advance(Stable)
	event.advance(Processed)
	event.advance(Failed)
	if event.State != Processed {
		t.Fatalf("state = %s", event.State)
	}
}

func TestIsCandidate(t *testing.T) {
	tests := map[string]bool{
		"/in/a.jpg":              true,
		"/in/a.JPEG":             true,
		"/in/a.png":              true,
		"/in/a.gif":              false,
		"/in/a":                  false,
		"/in/a_processed.jpg":    false,
		"/in/shot_processed.PNG": false,
	}
	for path, want := range tests {
		if got := IsCandidate(path); got != want {
			t.Errorf("IsCandidate(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestStatsObserverCountsBacklogOnce(t *testing.T) {
	s := newStatsObserver()
	s.reset([]string{"/in/a.jpg", "/in/b.jpg"})
	s.OnEvent(Record{Kind: KindDetected, Path: "/in/a.jpg"})
	s.OnEvent(Record{Kind: KindDetected, Path: "/in/c.jpg"})
	s.OnEvent(Record{Kind: KindProcessed, Output: "/out/a_processed.jpg"})
	s.OnEvent(Record{Kind: KindSkipped})
	s.OnEvent(Record{Kind: KindIndexed, Faces: 3})
	got := s.snapshot()
	want := Stats{Discovered: 3, Processed: 1, Skipped: 1, Faces: 3, LastOutput: "/out/a_processed.jpg"}
	if got != want {
		t.Fatalf("stats = %+v, want %+v", got, want)
	}
}
