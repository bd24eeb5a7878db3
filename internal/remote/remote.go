// Package remote talks to the remote card store over HTTP.
//
// The wire contract: notes upsert on note_id with content_hash for
// no-op detection; cards upsert on the compound (note_id, cloze_index)
// identity. Content payloads never carry scheduling fields, so a
// content edit can never reset review progress server-side.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pvannier/recall/internal/model"
)

const requestTimeout = 15 * time.Second

var (
	// ErrNotFound indicates the remote store has no row for the key.
	ErrNotFound = errors.New("remote: not found")
	// ErrUnavailable indicates a transport-level failure; the request
	// may or may not have reached the server.
	ErrUnavailable = errors.New("remote: unavailable")
)

// NotePayload is the content-sync shape for one note.
type NotePayload struct {
	NoteID      string `json:"note_id"`
	FilePath    string `json:"filepath"`
	Title       string `json:"title"`
	ContentHash string `json:"content_hash"`
	Raw         string `json:"raw"`
}

// CardContent is the content-sync shape for one card. It deliberately
// excludes state, due, stability, difficulty, reps, lapses and
// last_review.
type CardContent struct {
	NoteID      string   `json:"note_id"`
	ClozeIndex  int      `json:"cloze_index"`
	AnswerText  string   `json:"answer_text"`
	SectionPath string   `json:"section_path"`
	Tags        []string `json:"tags"`
}

// ReviewPayload is the narrow review-submission shape: exactly the
// fields produced by one grading event plus its log.
type ReviewPayload struct {
	NoteID        string      `json:"note_id"`
	ClozeIndex    int         `json:"cloze_index"`
	State         model.State `json:"state"`
	Due           time.Time   `json:"due"`
	Stability     float64     `json:"stability"`
	Difficulty    float64     `json:"difficulty"`
	ElapsedDays   int         `json:"elapsed_days"`
	ScheduledDays int         `json:"scheduled_days"`
	Reps          int         `json:"reps"`
	Lapses        int         `json:"lapses"`
	LastReview    *time.Time  `json:"last_review"`

	Log model.ReviewLog `json:"log"`
}

// Store is the remote capability the reconciler depends on.
type Store interface {
	// UpsertNote upserts note content keyed by note id. Subsequent
	// upserts with the same content hash may be server-side no-ops.
	UpsertNote(ctx context.Context, p NotePayload) error

	// UpsertCardContent upserts content-derived card fields keyed by
	// (note_id, cloze_index), never touching scheduling fields.
	UpsertCardContent(ctx context.Context, cs []CardContent) error

	// SubmitReview applies one grading event to one card.
	SubmitReview(ctx context.Context, p ReviewPayload) error

	// FetchCard returns the remote scheduling state for one card, used
	// to re-derive local state before retrying an ambiguous failure.
	FetchCard(ctx context.Context, key model.CardKey) (model.Card, error)
}

// Client is the HTTP implementation of Store.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// Config configures a Client. Zero-value HTTPClient gets a client with
// a finite request timeout; no call ever blocks indefinitely.
type Config struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewClient creates a remote store client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("remote: base URL is required")
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: requestTimeout}
	}
	return &Client{baseURL: cfg.BaseURL, token: cfg.Token, http: hc}, nil
}

var _ Store = (*Client)(nil)

// UpsertNote implements Store.
func (c *Client) UpsertNote(ctx context.Context, p NotePayload) error {
	path := "/notes/" + url.PathEscape(p.NoteID)
	return c.do(ctx, http.MethodPut, path, p, nil)
}

// UpsertCardContent implements Store.
func (c *Client) UpsertCardContent(ctx context.Context, cs []CardContent) error {
	if len(cs) == 0 {
		return nil
	}
	path := "/notes/" + url.PathEscape(cs[0].NoteID) + "/cards"
	return c.do(ctx, http.MethodPut, path, cs, nil)
}

// SubmitReview implements Store.
func (c *Client) SubmitReview(ctx context.Context, p ReviewPayload) error {
	path := fmt.Sprintf("/cards/%s/%d/review", url.PathEscape(p.NoteID), p.ClozeIndex)
	return c.do(ctx, http.MethodPost, path, p, nil)
}

// FetchCard implements Store.
func (c *Client) FetchCard(ctx context.Context, key model.CardKey) (model.Card, error) {
	path := fmt.Sprintf("/cards/%s/%d", url.PathEscape(key.NoteID), key.ClozeIndex)
	var card model.Card
	if err := c.do(ctx, http.MethodGet, path, nil, &card); err != nil {
		return model.Card{}, err
	}
	return card, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %v", method, path, ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%s %s: %w: status %d", method, path, ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return nil
}
