package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/verte-zerg/typekaro/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "typekaro.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

// stepClock returns a clock that advances one second per call.
func stepClock(start time.Time) func() time.Time {
	cur := start
	return func() time.Time {
		cur = cur.Add(time.Second)
		return cur
	}
}

func TestUpsertAndGetTest(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	created := time.Date(2023, 1, 15, 10, 30, 0, 0, time.UTC)
	test := model.Test{
		ID:              "1",
		Title:           "Regulations Summary",
		Content:         "The FCA regulates the financial services industry.",
		Category:        "Regulations",
		Difficulty:      model.DifficultyEasy,
		DurationSeconds: 180,
		CreatedAt:       created,
	}
	if err := st.UpsertTest(ctx, test); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := st.GetTest(ctx, "1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if diff := cmp.Diff(test, got); diff != "" {
		t.Fatalf("unexpected test (-want +got):\n%s", diff)
	}

	test.Title = "Renamed"
	if err := st.UpsertTest(ctx, test); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	n, err := st.CountTests(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 test, got %d", n)
	}
	got, err = st.GetTest(ctx, "1")
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if got.Title != "Renamed" {
		t.Fatalf("title = %q", got.Title)
	}
}

func TestGetTestNotFound(t *testing.T) {
	st := openTestStore(t)
	if _, err := st.GetTest(context.Background(), "missing"); !errors.Is(err, ErrTestNotFound) {
		t.Fatalf("expected ErrTestNotFound, got %v", err)
	}
}

func TestSaveAttemptRequiresCredentials(t *testing.T) {
	st := openTestStore(t)
	res := model.ResultMetrics{WPM: 40, MistypedIndexes: []int{2}}
	_, err := st.SaveAttempt(context.Background(), model.Credentials{}, "1", res)
	if !errors.Is(err, ErrNotAuthenticated) || !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected not authenticated, got %v", err)
	}
	if res.WPM != 40 || len(res.MistypedIndexes) != 1 {
		t.Fatalf("result was modified: %+v", res)
	}
}

func TestSaveAttemptAndBest(t *testing.T) {
	st := openTestStore(t)
	st.now = stepClock(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()
	alice := model.Credentials{UserID: "alice"}
	bob := model.Credentials{UserID: "bob"}

	best, err := st.BestAttempt(ctx, "alice", "1")
	if err != nil {
		t.Fatalf("best on empty store: %v", err)
	}
	if best != nil {
		t.Fatalf("expected no best attempt, got %+v", best)
	}

	saved := map[int]model.Attempt{}
	for _, wpm := range []int{31, 57, 44} {
		a, err := st.SaveAttempt(ctx, alice, "1", model.ResultMetrics{WPM: wpm, CPM: wpm * 5, AccuracyPercent: 97.5, DurationSeconds: 60})
		if err != nil {
			t.Fatalf("save: %v", err)
		}
		if a.ID == "" || a.CompletedAt.IsZero() {
			t.Fatalf("expected generated id and completion time, got %+v", a)
		}
		saved[wpm] = a
	}
	if _, err := st.SaveAttempt(ctx, bob, "1", model.ResultMetrics{WPM: 90}); err != nil {
		t.Fatalf("save bob: %v", err)
	}
	if _, err := st.SaveAttempt(ctx, alice, "2", model.ResultMetrics{WPM: 120}); err != nil {
		t.Fatalf("save other test: %v", err)
	}

	best, err = st.BestAttempt(ctx, "alice", "1")
	if err != nil {
		t.Fatalf("best: %v", err)
	}
	if best == nil {
		t.Fatalf("expected a best attempt")
	}
	if diff := cmp.Diff(saved[57], *best); diff != "" {
		t.Fatalf("unexpected best attempt (-want +got):\n%s", diff)
	}

	all, err := st.BestAttempts(ctx, "alice")
	if err != nil {
		t.Fatalf("best attempts: %v", err)
	}
	if all["1"].WPM != 57 || all["2"].WPM != 120 {
		t.Fatalf("unexpected best per test: %+v", all)
	}
}

func TestListAttemptsFilters(t *testing.T) {
	st := openTestStore(t)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	st.now = stepClock(start)
	ctx := context.Background()
	creds := model.Credentials{UserID: "u"}
	for i, testID := range []string{"1", "2", "1", "1"} {
		if _, err := st.SaveAttempt(ctx, creds, testID, model.ResultMetrics{WPM: i}); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	attempts, err := st.ListAttempts(ctx, model.StatsConfig{UserID: "u", TestID: "1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(attempts) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(attempts))
	}
	for i := 1; i < len(attempts); i++ {
		if attempts[i].CompletedAt.Before(attempts[i-1].CompletedAt) {
			t.Fatalf("attempts not in completion order")
		}
	}

	since := start.Add(3 * time.Second)
	attempts, err = st.ListAttempts(ctx, model.StatsConfig{UserID: "u", Since: &since})
	if err != nil {
		t.Fatalf("list since: %v", err)
	}
	if len(attempts) != 2 {
		t.Fatalf("expected 2 attempts since %v, got %d", since, len(attempts))
	}

	attempts, err = st.ListAttempts(ctx, model.StatsConfig{UserID: "nobody"})
	if err != nil {
		t.Fatalf("list other user: %v", err)
	}
	if len(attempts) != 0 {
		t.Fatalf("expected no attempts, got %d", len(attempts))
	}
}

func TestListTestsNaturalOrder(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	created := time.Date(2023, 1, 15, 10, 30, 0, 0, time.UTC)
	for _, id := range []string{"10", "2", "1"} {
		test := model.Test{ID: id, Title: "T" + id, Content: "abc", Category: "General", Difficulty: model.DifficultyEasy, DurationSeconds: 60, CreatedAt: created}
		if err := st.UpsertTest(ctx, test); err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}
	later := model.Test{ID: "0", Title: "Later", Content: "abc", Category: "General", Difficulty: model.DifficultyEasy, DurationSeconds: 60, CreatedAt: created.Add(time.Hour)}
	if err := st.UpsertTest(ctx, later); err != nil {
		t.Fatalf("upsert later: %v", err)
	}

	tests, err := st.ListTests(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	ids := make([]string, 0, len(tests))
	for _, test := range tests {
		ids = append(ids, test.ID)
	}
	if diff := cmp.Diff([]string{"1", "2", "10", "0"}, ids); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
}
