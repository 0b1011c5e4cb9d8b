package engine

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/verte-zerg/typekaro/internal/model"
)

type completion struct {
	result model.ResultMetrics
	reason CompletionReason
}

func newTestSession(t *testing.T, content string, durationSec int, opts Options) (*Session, *[]completion) {
	t.Helper()
	var fired []completion
	opts.OnComplete = func(res model.ResultMetrics, reason CompletionReason) {
		fired = append(fired, completion{result: res, reason: reason})
	}
	s, err := NewSession(model.Test{ID: "t1", Content: content, DurationSeconds: durationSec}, opts)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return s, &fired
}

func typeString(t *testing.T, s *Session, at time.Time, text string) Snapshot {
	t.Helper()
	var snap Snapshot
	for _, r := range text {
		var err error
		snap, err = s.ApplyInput(at, Input{Kind: InputInsert, Text: string(r)})
		if err != nil {
			t.Fatalf("insert %q: %v", r, err)
		}
	}
	return snap
}

func TestNewSessionRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		test model.Test
		want error
	}{
		{name: "zero duration", test: model.Test{Content: "cat", DurationSeconds: 0}, want: ErrInvalidDuration},
		{name: "negative duration", test: model.Test{Content: "cat", DurationSeconds: -3}, want: ErrInvalidDuration},
		{name: "empty reference", test: model.Test{Content: "", DurationSeconds: 30}, want: ErrEmptyReference},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSession(tt.test, Options{})
			if !errors.Is(err, tt.want) || !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if s != nil {
				t.Fatalf("expected no session")
			}
		})
	}
}

func TestSessionFullInputCompletion(t *testing.T) {
	s, fired := newTestSession(t, "cat sat", 60, Options{})
	start := time.Unix(100, 0)
	s.Start(start)
	snap := typeString(t, s, start.Add(6*time.Second), "cat sat")

	if snap.State != Completed || snap.Reason != ReasonFullInput {
		t.Fatalf("expected full-input completion, got %v/%v", snap.State, snap.Reason)
	}
	if len(*fired) != 1 {
		t.Fatalf("expected one completion, got %d", len(*fired))
	}
	res := (*fired)[0].result
	if res.WPM != 20 || res.AccuracyPercent != 100 || res.MistypedWordsApprox != 0 || res.DurationSeconds != 6 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestSessionOneMismatch(t *testing.T) {
	s, fired := newTestSession(t, "cat sat", 60, Options{})
	start := time.Unix(100, 0)
	s.Start(start)
	typeString(t, s, start.Add(6*time.Second), "cat xat")

	if len(*fired) != 1 {
		t.Fatalf("expected one completion, got %d", len(*fired))
	}
	res, ok := s.Result()
	if !ok {
		t.Fatalf("expected result")
	}
	snap := s.Snapshot(start.Add(7 * time.Second))
	if snap.Breakdown.Correct != 6 || snap.Breakdown.Errors != 1 {
		t.Fatalf("unexpected breakdown: %+v", snap.Breakdown)
	}
	if math.Abs(res.AccuracyPercent-85.714) > 0.01 {
		t.Fatalf("accuracy = %f", res.AccuracyPercent)
	}
	if res.MistypedWordsApprox != 1 {
		t.Fatalf("mistyped words = %d", res.MistypedWordsApprox)
	}
	if diff := cmp.Diff([]int{4}, res.MistypedIndexes); diff != "" {
		t.Fatalf("mistyped indexes (-want +got):\n%s", diff)
	}
}

func TestSessionTimeoutWithNoInput(t *testing.T) {
	s, fired := newTestSession(t, "cat sat", 5, Options{})
	start := time.Unix(0, 0)
	s.Start(start)

	s.OnTimerTick(start.Add(2 * time.Second))
	if s.State() != InProgress {
		t.Fatalf("expected in progress, got %v", s.State())
	}
	snap := s.OnTimerTick(start.Add(5 * time.Second))
	if snap.State != Completed || snap.Reason != ReasonTimeout {
		t.Fatalf("expected timeout completion, got %v/%v", snap.State, snap.Reason)
	}
	if len(*fired) != 1 {
		t.Fatalf("expected one completion, got %d", len(*fired))
	}
	res := (*fired)[0].result
	if res.WPM != 0 || res.AccuracyPercent != 100 || res.DurationSeconds != 5 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if snap.Breakdown.Correct != 0 || snap.Breakdown.Errors != 0 {
		t.Fatalf("unexpected breakdown: %+v", snap.Breakdown)
	}
}

func TestSessionTimeoutUsesConfiguredDuration(t *testing.T) {
	s, fired := newTestSession(t, "one two three four", 30, Options{})
	start := time.Unix(0, 0)
	typeString(t, s, start, "one ")
	// The tick arrives late; elapsed is still the configured duration.
	s.OnTimerTick(start.Add(47 * time.Second))

	if len(*fired) != 1 {
		t.Fatalf("expected one completion, got %d", len(*fired))
	}
	res := (*fired)[0].result
	if res.DurationSeconds != 30 {
		t.Fatalf("duration = %d, want 30", res.DurationSeconds)
	}
	// 4 words * (4/18) / 0.5 min
	if res.WPM != 2 {
		t.Fatalf("wpm = %d, want 2", res.WPM)
	}
	if res.CPM != 8 {
		t.Fatalf("cpm = %d, want 8", res.CPM)
	}
}

func TestSessionFullInputWinsSameInstant(t *testing.T) {
	s, fired := newTestSession(t, "ab", 10, Options{})
	start := time.Unix(0, 0)
	typeString(t, s, start, "a")

	deadline := start.Add(10 * time.Second)
	snap, err := s.ApplyInput(deadline, Input{Kind: InputInsert, Text: "b"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	s.OnTimerTick(deadline)
	s.OnTimerTick(deadline.Add(time.Second))

	if snap.Reason != ReasonFullInput {
		t.Fatalf("expected full input to win, got %v", snap.Reason)
	}
	if len(*fired) != 1 || (*fired)[0].reason != ReasonFullInput {
		t.Fatalf("expected a single full-input completion, got %+v", *fired)
	}
	if (*fired)[0].result.DurationSeconds != 10 {
		t.Fatalf("duration = %d", (*fired)[0].result.DurationSeconds)
	}
}

func TestSessionLateInputAfterDeadlineIsDropped(t *testing.T) {
	s, fired := newTestSession(t, "abcd", 10, Options{})
	start := time.Unix(0, 0)
	typeString(t, s, start, "ab")

	snap, err := s.ApplyInput(start.Add(11*time.Second), Input{Kind: InputInsert, Text: "c"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if snap.Reason != ReasonTimeout {
		t.Fatalf("expected timeout, got %v", snap.Reason)
	}
	if snap.Typed != "ab" {
		t.Fatalf("expected frozen buffer, got %q", snap.Typed)
	}
	if len(*fired) != 1 {
		t.Fatalf("expected one completion, got %d", len(*fired))
	}
}

func TestSessionCompletesOnce(t *testing.T) {
	s, fired := newTestSession(t, "go", 5, Options{})
	start := time.Unix(0, 0)
	typeString(t, s, start.Add(time.Second), "go")
	first, _ := s.Result()

	for i := 0; i < 5; i++ {
		at := start.Add(time.Duration(i+2) * time.Second)
		if _, err := s.ApplyInput(at, Input{Kind: InputInsert, Text: "x"}); err != nil {
			t.Fatalf("insert after completion: %v", err)
		}
		if _, err := s.ApplyInput(at, Input{Kind: InputDelete}); err != nil {
			t.Fatalf("delete after completion: %v", err)
		}
		s.OnTimerTick(at.Add(10 * time.Second))
	}

	if len(*fired) != 1 {
		t.Fatalf("expected one completion, got %d", len(*fired))
	}
	again, _ := s.Result()
	if diff := cmp.Diff(first, again); diff != "" {
		t.Fatalf("result changed after completion (-first +again):\n%s", diff)
	}
	if got := s.Snapshot(start.Add(time.Minute)).Typed; got != "go" {
		t.Fatalf("buffer changed after completion: %q", got)
	}
}

func TestSessionRejectsBulkInput(t *testing.T) {
	s, fired := newTestSession(t, "cat sat", 60, Options{})
	start := time.Unix(0, 0)

	cases := []Input{
		{Kind: InputInsert, Text: "cat", Paste: false},
		{Kind: InputInsert, Text: "c", Paste: true},
		{Kind: InputReplace, Text: "cat sat"},
	}
	for _, in := range cases {
		snap, err := s.ApplyInput(start, in)
		if !errors.Is(err, ErrBulkInput) || !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("input %+v: expected bulk input error, got %v", in, err)
		}
		if snap.State != NotStarted || snap.Typed != "" {
			t.Fatalf("input %+v: session changed: %+v", in, snap)
		}
	}
	if len(*fired) != 0 {
		t.Fatalf("bulk input completed the session")
	}
}

func TestSessionBurstLimit(t *testing.T) {
	s, _ := newTestSession(t, "cat sat", 60, Options{BurstLimit: 3})
	snap, err := s.ApplyInput(time.Unix(0, 0), Input{Kind: InputInsert, Text: "cat"})
	if err != nil {
		t.Fatalf("insert within burst limit: %v", err)
	}
	if snap.Typed != "cat" || snap.State != InProgress {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestSessionReplaceTruncatesOverflow(t *testing.T) {
	s, fired := newTestSession(t, "abc", 60, Options{BurstLimit: 10})
	start := time.Unix(0, 0)
	snap, err := s.ApplyInput(start.Add(3*time.Second), Input{Kind: InputReplace, Text: "abcdef"})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if !snap.Truncated {
		t.Fatalf("expected truncation to be reported")
	}
	if snap.Typed != "abc" {
		t.Fatalf("buffer = %q, want %q", snap.Typed, "abc")
	}
	if len([]rune(snap.Typed)) > 3 {
		t.Fatalf("buffer grew past reference length")
	}
	if len(*fired) != 1 || (*fired)[0].reason != ReasonFullInput {
		t.Fatalf("expected full-input completion, got %+v", *fired)
	}
}

func TestSessionReplaceAndDelete(t *testing.T) {
	s, _ := newTestSession(t, "hello", 60, Options{})
	start := time.Unix(0, 0)
	typeString(t, s, start, "hex")

	snap, err := s.ApplyInput(start, Input{Kind: InputDelete})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if snap.Typed != "he" || snap.Breakdown.Errors != 0 {
		t.Fatalf("unexpected snapshot after delete: %+v", snap)
	}

	snap, err = s.ApplyInput(start, Input{Kind: InputReplace, Text: "h"})
	if err != nil {
		t.Fatalf("shrinking replace: %v", err)
	}
	if snap.Typed != "h" {
		t.Fatalf("buffer = %q", snap.Typed)
	}
	snap, err = s.ApplyInput(start, Input{Kind: InputReplace, Text: "hx"})
	if err != nil {
		t.Fatalf("one rune replace: %v", err)
	}
	if diff := cmp.Diff([]int{1}, snap.Breakdown.MistypedIndexes); diff != "" {
		t.Fatalf("mistyped indexes (-want +got):\n%s", diff)
	}

	empty, _ := newTestSession(t, "x", 60, Options{})
	snap, err = empty.ApplyInput(start, Input{Kind: InputDelete})
	if err != nil || snap.Typed != "" {
		t.Fatalf("delete on empty buffer: %q, %v", snap.Typed, err)
	}
	if snap.State != NotStarted || !empty.StartedAt().IsZero() {
		t.Fatalf("delete on empty buffer started the countdown: %+v", snap)
	}
}

func TestSessionRejectsRewriteReplace(t *testing.T) {
	s, fired := newTestSession(t, "cat sat", 60, Options{})
	start := time.Unix(0, 0)
	typeString(t, s, start, "xxxxxx")

	snap, err := s.ApplyInput(start.Add(time.Second), Input{Kind: InputReplace, Text: "cat sat"})
	if !errors.Is(err, ErrBulkInput) {
		t.Fatalf("expected bulk input error, got %v", err)
	}
	if snap.Typed != "xxxxxx" || snap.State != InProgress {
		t.Fatalf("rewrite changed the session: %+v", snap)
	}
	if len(*fired) != 0 {
		t.Fatalf("rewrite completed the session")
	}

	// Rewriting only the last rune is one keystroke.
	snap, err = s.ApplyInput(start.Add(time.Second), Input{Kind: InputReplace, Text: "xxxxxc"})
	if err != nil || snap.Typed != "xxxxxc" {
		t.Fatalf("single rune rewrite: %q, %v", snap.Typed, err)
	}
}

func TestSessionStartsOnFirstInput(t *testing.T) {
	s, _ := newTestSession(t, "abc", 10, Options{})
	if s.State() != NotStarted {
		t.Fatalf("expected not started")
	}
	first := time.Unix(42, 0)
	typeString(t, s, first, "a")
	if s.State() != InProgress {
		t.Fatalf("expected in progress, got %v", s.State())
	}
	if !s.StartedAt().Equal(first) {
		t.Fatalf("start = %v, want %v", s.StartedAt(), first)
	}
	if got := s.Snapshot(first.Add(4 * time.Second)).Remaining; got != 6*time.Second {
		t.Fatalf("remaining = %v", got)
	}
}

func TestSessionAbandonStopsEverything(t *testing.T) {
	s, fired := newTestSession(t, "abc", 2, Options{})
	start := time.Unix(0, 0)
	typeString(t, s, start, "a")
	s.Abandon()

	s.OnTimerTick(start.Add(time.Minute))
	if _, err := s.ApplyInput(start.Add(time.Second), Input{Kind: InputInsert, Text: "b"}); err != nil {
		t.Fatalf("insert after abandon: %v", err)
	}
	if len(*fired) != 0 {
		t.Fatalf("abandoned session completed")
	}
	if _, ok := s.Result(); ok {
		t.Fatalf("abandoned session has a result")
	}
	if snap := s.Snapshot(start); !snap.Abandoned || snap.Typed != "a" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}
