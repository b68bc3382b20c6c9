// Package apiclient is the REST consumer of the board API. Successful
// responses are applied to the local stores with api authority; a 401 or
// 403 fires the session-invalid hook so the application layer can drop the
// local session and re-provision, instead of surfacing auth failures from
// inside store logic.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aornugent/horseboard-sub002/internal/domain"
	"github.com/aornugent/horseboard-sub002/internal/store"
)

// envelope is the response shape of every REST endpoint.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Client talks to the board REST API and keeps the local stores current.
type Client struct {
	baseURL          string
	httpc            *http.Client
	stores           *store.Set
	onSessionInvalid func()
}

// New creates an API client. onSessionInvalid may be nil.
func New(baseURL string, httpc *http.Client, stores *store.Set, onSessionInvalid func()) *Client {
	if httpc == nil {
		httpc = http.DefaultClient
	}
	return &Client{
		baseURL:          strings.TrimRight(baseURL, "/"),
		httpc:            httpc,
		stores:           stores,
		onSessionInvalid: onSessionInvalid,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		if c.onSessionInvalid != nil {
			c.onSessionInvalid()
		}
		return domain.ErrSessionInvalid
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	if resp.StatusCode >= 400 || !env.Success {
		msg := env.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("%s %s: %s", method, path, msg)
	}
	if out != nil && env.Data != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%s %s: decode data: %w", method, path, err)
		}
	}
	return nil
}

// RedeemPairCode exchanges a pairing code for its board and seeds the board
// store.
func (c *Client) RedeemPairCode(ctx context.Context, code string) (domain.Board, error) {
	var board domain.Board
	err := c.do(ctx, http.MethodPost, "/api/pair", map[string]string{"pair_code": code}, &board)
	if err != nil {
		return domain.Board{}, err
	}
	c.stores.Board.Update(board, domain.SourceAPI)
	return board, nil
}

// FetchBoard loads the complete board snapshot and merges it into the
// stores. The merge is partial: a concurrent push event that already
// delivered newer values is not clobbered.
func (c *Client) FetchBoard(ctx context.Context, boardID uuid.UUID) error {
	var snap domain.BoardSnapshot
	if err := c.do(ctx, http.MethodGet, "/api/boards/"+boardID.String(), nil, &snap); err != nil {
		return err
	}
	c.stores.Board.Update(snap.Board, domain.SourceAPI)
	c.stores.Horses.Reconcile(snap.Horses, domain.SourceAPI)
	c.stores.Feeds.Reconcile(snap.Feeds, domain.SourceAPI)
	c.stores.Diet.Reconcile(snap.Diet, domain.SourceAPI)
	return nil
}

// UpdateBoard patches board settings.
func (c *Client) UpdateBoard(ctx context.Context, boardID uuid.UUID, patch map[string]any) (domain.Board, error) {
	var board domain.Board
	if err := c.do(ctx, http.MethodPatch, "/api/boards/"+boardID.String(), patch, &board); err != nil {
		return domain.Board{}, err
	}
	c.stores.Board.Update(board, domain.SourceAPI)
	return board, nil
}

// SetTimeModeOverride forces AM or PM until the given expiry.
func (c *Client) SetTimeModeOverride(ctx context.Context, boardID uuid.UUID, mode domain.TimeMode, until time.Time) (domain.Board, error) {
	var board domain.Board
	body := map[string]any{"time_mode": mode, "override_until": until}
	if err := c.do(ctx, http.MethodPut, "/api/boards/"+boardID.String()+"/time-mode", body, &board); err != nil {
		return domain.Board{}, err
	}
	c.stores.Board.Update(board, domain.SourceAPI)
	return board, nil
}

// ClearTimeModeOverride restores automatic mode detection.
func (c *Client) ClearTimeModeOverride(ctx context.Context, boardID uuid.UUID) (domain.Board, error) {
	var board domain.Board
	if err := c.do(ctx, http.MethodDelete, "/api/boards/"+boardID.String()+"/time-mode", nil, &board); err != nil {
		return domain.Board{}, err
	}
	c.stores.Board.Update(board, domain.SourceAPI)
	return board, nil
}

// CreateHorse adds a horse to the board.
func (c *Client) CreateHorse(ctx context.Context, boardID uuid.UUID, name string) (domain.Horse, error) {
	var horse domain.Horse
	body := map[string]string{"name": name}
	if err := c.do(ctx, http.MethodPost, "/api/boards/"+boardID.String()+"/horses", body, &horse); err != nil {
		return domain.Horse{}, err
	}
	c.stores.Horses.Upsert(horse, domain.SourceAPI)
	return horse, nil
}

// UpdateHorse patches a horse.
func (c *Client) UpdateHorse(ctx context.Context, horseID uuid.UUID, patch map[string]any) (domain.Horse, error) {
	var horse domain.Horse
	if err := c.do(ctx, http.MethodPatch, "/api/horses/"+horseID.String(), patch, &horse); err != nil {
		return domain.Horse{}, err
	}
	c.stores.Horses.Upsert(horse, domain.SourceAPI)
	return horse, nil
}

// DeleteHorse removes a horse and its diet entries.
func (c *Client) DeleteHorse(ctx context.Context, horseID uuid.UUID) error {
	if err := c.do(ctx, http.MethodDelete, "/api/horses/"+horseID.String(), nil, nil); err != nil {
		return err
	}
	c.stores.Horses.Remove(horseID.String(), domain.SourceAPI)
	c.stores.Diet.RemoveForHorse(horseID, domain.SourceAPI)
	return nil
}

// CreateFeed adds a feed to the board.
func (c *Client) CreateFeed(ctx context.Context, boardID uuid.UUID, name, unit string) (domain.Feed, error) {
	var feed domain.Feed
	body := map[string]string{"name": name, "unit": unit}
	if err := c.do(ctx, http.MethodPost, "/api/boards/"+boardID.String()+"/feeds", body, &feed); err != nil {
		return domain.Feed{}, err
	}
	c.stores.Feeds.Upsert(feed, domain.SourceAPI)
	return feed, nil
}

// UpdateFeed patches a feed.
func (c *Client) UpdateFeed(ctx context.Context, feedID uuid.UUID, patch map[string]any) (domain.Feed, error) {
	var feed domain.Feed
	if err := c.do(ctx, http.MethodPatch, "/api/feeds/"+feedID.String(), patch, &feed); err != nil {
		return domain.Feed{}, err
	}
	c.stores.Feeds.Upsert(feed, domain.SourceAPI)
	return feed, nil
}

// DeleteFeed removes a feed and its diet entries.
func (c *Client) DeleteFeed(ctx context.Context, feedID uuid.UUID) error {
	if err := c.do(ctx, http.MethodDelete, "/api/feeds/"+feedID.String(), nil, nil); err != nil {
		return err
	}
	c.stores.Feeds.Remove(feedID.String(), domain.SourceAPI)
	c.stores.Diet.RemoveForFeed(feedID, domain.SourceAPI)
	return nil
}

// dietUpsertResponse mirrors the diet endpoint's data payload: the entry,
// or removed when both amounts went nil.
type dietUpsertResponse struct {
	Entry   *domain.DietEntry `json:"entry,omitempty"`
	Removed bool              `json:"removed"`
}

// UpsertDietAmount writes one amount field optimistically, then reconciles
// with the server's response. The optimistic write keeps the UI responsive;
// arbitration guarantees the server's value wins if they differ.
func (c *Client) UpsertDietAmount(ctx context.Context, boardID, horseID, feedID uuid.UUID, field domain.DietField, value *float64) error {
	c.stores.Diet.UpdateAmount(horseID, feedID, field, value, domain.SourceLocal)

	body := map[string]any{
		"horse_id": horseID,
		"feed_id":  feedID,
		"field":    field,
		"value":    value,
	}
	var out dietUpsertResponse
	if err := c.do(ctx, http.MethodPut, "/api/boards/"+boardID.String()+"/diet", body, &out); err != nil {
		return err
	}
	if out.Removed {
		c.stores.Diet.Remove(domain.DietKey(horseID, feedID), domain.SourceAPI)
	} else if out.Entry != nil {
		c.stores.Diet.Upsert(*out.Entry, domain.SourceAPI)
	}
	return nil
}
