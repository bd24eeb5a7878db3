// Package queue assembles prioritized review queues across a vault.
//
// Queue membership is a pure function of card state and due time at
// build time; nothing here is persisted.
package queue

import (
	"sort"
	"time"

	"github.com/pvannier/recall/internal/model"
)

// Queue partitions all cards into review sets. Every card lands in
// exactly one partition; each partition is sorted by ascending due with
// ties broken by (noteID, clozeIndex) so order is reproducible.
type Queue struct {
	New     []model.QueueItem `json:"new"`
	Today   []model.QueueItem `json:"today"`
	Overdue []model.QueueItem `json:"overdue"`
	Future  []model.QueueItem `json:"future"`
}

// Total returns the number of items across all partitions.
func (q *Queue) Total() int {
	return len(q.New) + len(q.Today) + len(q.Overdue) + len(q.Future)
}

// Due returns the number of items reviewable right now.
func (q *Queue) Due() int {
	return len(q.New) + len(q.Today) + len(q.Overdue)
}

// Build partitions cards at the given time. filePaths maps note ids to
// vault-relative paths for the queue items; unknown ids get an empty
// path rather than being dropped.
func Build(cards []model.Card, filePaths map[string]string, now time.Time) Queue {
	dayStart := startOfDay(now)
	nextDay := dayStart.Add(24 * time.Hour)

	var q Queue
	for _, c := range cards {
		item := model.QueueItem{
			NoteID:     c.NoteID,
			FilePath:   filePaths[c.NoteID],
			ClozeIndex: c.ClozeIndex,
			Due:        c.Due,
		}
		switch {
		case c.Reps == 0:
			// Never-reviewed cards are New regardless of due.
			q.New = append(q.New, item)
		case c.Due.Before(dayStart):
			q.Overdue = append(q.Overdue, item)
		case c.Due.Before(nextDay):
			q.Today = append(q.Today, item)
		default:
			q.Future = append(q.Future, item)
		}
	}

	for _, part := range [][]model.QueueItem{q.New, q.Today, q.Overdue, q.Future} {
		sortItems(part)
	}
	return q
}

// Bucket is one day of forecast workload.
type Bucket struct {
	Date  time.Time `json:"date"`
	Count int       `json:"count"`
}

// Forecast groups reviewable cards by due calendar date over the next
// `days` days. The first bucket is today and folds in today's and
// overdue counts. New cards are excluded: they have no meaningful due
// date until first review.
func Forecast(cards []model.Card, days int, now time.Time) []Bucket {
	if days <= 0 {
		return nil
	}

	dayStart := startOfDay(now)
	buckets := make([]Bucket, days)
	for i := range buckets {
		buckets[i] = Bucket{Date: dayStart.Add(time.Duration(i) * 24 * time.Hour)}
	}

	for _, c := range cards {
		if c.Reps == 0 {
			continue
		}
		idx := int(c.Due.Sub(dayStart) / (24 * time.Hour))
		if c.Due.Before(dayStart) {
			idx = 0 // overdue folds into today
		}
		if idx >= days {
			continue
		}
		buckets[idx].Count++
	}
	return buckets
}

func sortItems(items []model.QueueItem) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].Due.Equal(items[j].Due) {
			return items[i].Due.Before(items[j].Due)
		}
		if items[i].NoteID != items[j].NoteID {
			return items[i].NoteID < items[j].NoteID
		}
		return items[i].ClozeIndex < items[j].ClozeIndex
	})
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
