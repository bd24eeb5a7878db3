package queue

import (
	"testing"
	"time"

	"github.com/pvannier/recall/internal/model"
)

var now = time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

func card(noteID string, idx int, reps int, due time.Time) model.Card {
	c := model.NewCard(noteID, idx, now)
	c.Reps = reps
	c.Due = due
	if reps > 0 {
		c.State = model.Review
	}
	return c
}

func TestBuildPartitions(t *testing.T) {
	cards := []model.Card{
		card("a", 1, 0, now.Add(100*24*time.Hour)), // New despite far-future due
		card("a", 2, 3, now.Add(-48*time.Hour)),    // Overdue
		card("b", 1, 1, now.Add(time.Hour)),        // Today
		card("b", 2, 2, now.Add(5*24*time.Hour)),   // Future
		card("c", 1, 1, now.Add(-2*time.Hour)),     // earlier today → Today
	}

	q := Build(cards, map[string]string{"a": "a.md", "b": "b.md", "c": "c.md"}, now)

	if len(q.New) != 1 || q.New[0].NoteID != "a" || q.New[0].ClozeIndex != 1 {
		t.Errorf("new = %+v", q.New)
	}
	if len(q.Overdue) != 1 || q.Overdue[0].ClozeIndex != 2 {
		t.Errorf("overdue = %+v", q.Overdue)
	}
	if len(q.Today) != 2 {
		t.Errorf("today = %+v", q.Today)
	}
	if len(q.Future) != 1 {
		t.Errorf("future = %+v", q.Future)
	}
	if q.New[0].FilePath != "a.md" {
		t.Errorf("filepath = %q", q.New[0].FilePath)
	}
}

func TestBuildPartitionExhaustive(t *testing.T) {
	var cards []model.Card
	for i := 0; i < 50; i++ {
		due := now.Add(time.Duration(i-25) * 13 * time.Hour)
		cards = append(cards, card("n", i+1, i%4, due))
	}

	q := Build(cards, nil, now)
	if got := q.Total(); got != len(cards) {
		t.Fatalf("partitions hold %d items, want %d (each card in exactly one)", got, len(cards))
	}

	seen := make(map[model.CardKey]bool)
	for _, part := range [][]model.QueueItem{q.New, q.Today, q.Overdue, q.Future} {
		for _, item := range part {
			k := model.CardKey{NoteID: item.NoteID, ClozeIndex: item.ClozeIndex}
			if seen[k] {
				t.Errorf("card %v appears in more than one partition", k)
			}
			seen[k] = true
		}
	}
}

func TestBuildDeterministicOrder(t *testing.T) {
	due := now.Add(time.Hour)
	cards := []model.Card{
		card("b", 2, 1, due),
		card("a", 2, 1, due),
		card("b", 1, 1, due),
		card("a", 1, 1, due.Add(-time.Minute)),
	}

	q := Build(cards, nil, now)
	if len(q.Today) != 4 {
		t.Fatalf("today = %+v", q.Today)
	}

	wantOrder := []model.CardKey{
		{NoteID: "a", ClozeIndex: 1}, // earliest due first
		{NoteID: "a", ClozeIndex: 2},
		{NoteID: "b", ClozeIndex: 1},
		{NoteID: "b", ClozeIndex: 2},
	}
	for i, want := range wantOrder {
		got := model.CardKey{NoteID: q.Today[i].NoteID, ClozeIndex: q.Today[i].ClozeIndex}
		if got != want {
			t.Errorf("position %d = %v, want %v", i, got, want)
		}
	}

	// Identical input yields identical order.
	again := Build(cards, nil, now)
	for i := range q.Today {
		if q.Today[i] != again.Today[i] {
			t.Errorf("order not reproducible at %d", i)
		}
	}
}

func TestForecast(t *testing.T) {
	cards := []model.Card{
		card("a", 1, 2, now.Add(-72*time.Hour)),   // overdue → today bucket
		card("a", 2, 1, now.Add(2*time.Hour)),     // today
		card("b", 1, 1, now.Add(26*time.Hour)),    // tomorrow
		card("b", 2, 1, now.Add(3*24*time.Hour)),  // day 3
		card("c", 1, 0, now.Add(time.Hour)),       // New, excluded
		card("c", 2, 1, now.Add(40*24*time.Hour)), // beyond horizon
	}

	buckets := Forecast(cards, 7, now)
	if len(buckets) != 7 {
		t.Fatalf("buckets = %d, want 7", len(buckets))
	}
	if buckets[0].Count != 2 {
		t.Errorf("today bucket = %d, want 2 (today + overdue)", buckets[0].Count)
	}
	if buckets[1].Count != 1 {
		t.Errorf("tomorrow bucket = %d, want 1", buckets[1].Count)
	}
	if buckets[3].Count != 1 {
		t.Errorf("day 3 bucket = %d, want 1", buckets[3].Count)
	}

	total := 0
	for _, b := range buckets {
		total += b.Count
	}
	if total != 4 {
		t.Errorf("total forecast = %d, want 4", total)
	}
}

func TestForecastEmpty(t *testing.T) {
	if got := Forecast(nil, 0, now); got != nil {
		t.Errorf("Forecast(days=0) = %v, want nil", got)
	}
}
