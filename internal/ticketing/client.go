// Package ticketing talks to the ticketing system REST API.
package ticketing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bridge/internal/domain"
	"github.com/spec-kit/ticket-bridge/internal/httpclient"
	"github.com/spec-kit/ticket-bridge/internal/normalize"
)

// ErrNotFound is returned when the ticketing system answers 404.
var ErrNotFound = errors.New("ticketing: not found")

const (
	usersPageSize = 100
	maxUserPages  = 200
)

// StatusError carries an unexpected HTTP status from the ticketing API.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ticketing %s: unexpected status %d", e.Op, e.Status)
}

// Config holds API coordinates and credentials.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	TokenPath    string
}

// CreateTicketInput describes a ticket raised from chat.
type CreateTicketInput struct {
	CallerID    string
	Email       string
	Subject     string
	Description string
}

// Client is the ticketing API collaborator.
type Client struct {
	caller *httpclient.Caller
	base   string
	tokens *tokenSource
	logger *zap.Logger
}

// NewClient builds a Client whose calls go through caller.
func NewClient(cfg Config, caller *httpclient.Caller, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		caller: caller,
		base:   cfg.BaseURL,
		tokens: &tokenSource{
			caller:       caller,
			url:          cfg.BaseURL + cfg.TokenPath,
			clientID:     cfg.ClientID,
			clientSecret: cfg.ClientSecret,
			now:          time.Now,
		},
		logger: logger,
	}
}

// BaseURL identifies the tenant; it keys the user cache.
func (c *Client) BaseURL() string {
	return c.base
}

// CreateTicket raises a ticket and returns its identifiers.
func (c *Client) CreateTicket(ctx context.Context, in CreateTicketInput) (domain.CreatedTicket, error) {
	body := map[string]any{
		"caller":           map[string]string{"id": in.CallerID, "email": in.Email},
		"briefDescription": in.Subject,
		"request":          in.Description,
	}
	resp, err := c.do(ctx, "create ticket", http.MethodPost, "/tickets", nil, body)
	if err != nil {
		return domain.CreatedTicket{}, err
	}
	var payload map[string]any
	if err := resp.DecodeJSON(&payload); err != nil {
		return domain.CreatedTicket{}, fmt.Errorf("create ticket: %w", err)
	}
	created := domain.CreatedTicket{}
	created.ID, _ = normalize.Stringify(firstPresent(payload, "id", "ticket_id", "TicketID"))
	created.Number, _ = normalize.Stringify(firstPresent(payload, "number", "ticket_number", "TicketNumber"))
	created.Status, _ = normalize.Stringify(firstPresent(payload, "status", "processingStatus", "StatusName"))
	if created.ID == "" {
		return domain.CreatedTicket{}, errors.New("create ticket: response carried no ticket id")
	}
	return created, nil
}

// GetTicket fetches the full ticket document.
func (c *Client) GetTicket(ctx context.Context, ticketID string) (map[string]any, error) {
	resp, err := c.do(ctx, "get ticket", http.MethodGet, "/tickets/"+url.PathEscape(ticketID), nil, nil)
	if err != nil {
		return nil, err
	}
	var payload map[string]any
	if err := resp.DecodeJSON(&payload); err != nil {
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	return payload, nil
}

// GetStatus fetches a status record by id. The shape of the result varies
// between deployments and is returned undecoded into any.
func (c *Client) GetStatus(ctx context.Context, statusID string) (any, error) {
	resp, err := c.do(ctx, "get status", http.MethodGet, "/statuses/"+url.PathEscape(statusID), nil, nil)
	if err != nil {
		return nil, err
	}
	var payload any
	if err := resp.DecodeJSON(&payload); err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}
	return payload, nil
}

// AddNote appends a note to a ticket.
func (c *Client) AddNote(ctx context.Context, ticketID, text, author string) error {
	body := map[string]any{"memoText": text, "author": author, "invisibleForCaller": false}
	_, err := c.do(ctx, "add note", http.MethodPost, "/tickets/"+url.PathEscape(ticketID)+"/notes", nil, body)
	return err
}

// ListUsers pages through the person directory. Paging ends on a short page,
// on a page that repeats the previous one (servers ignoring start), or after
// maxUserPages pages.
func (c *Client) ListUsers(ctx context.Context) ([]domain.User, error) {
	var (
		users     []domain.User
		prevFirst string
	)
	for pageNo := 0; pageNo < maxUserPages; pageNo++ {
		start := pageNo * usersPageSize
		query := url.Values{
			"start":     {strconv.Itoa(start)},
			"page_size": {strconv.Itoa(usersPageSize)},
		}
		resp, err := c.do(ctx, "list users", http.MethodGet, "/persons", query, nil)
		if err != nil {
			return nil, err
		}
		page, err := decodeUsers(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		if len(page) > 0 && pageNo > 0 && page[0].ID == prevFirst {
			c.logger.Warn("user directory ignores paging, stopping", zap.Int("start", start))
			return users, nil
		}
		users = append(users, page...)
		if len(page) < usersPageSize {
			return users, nil
		}
		prevFirst = page[0].ID
	}
	c.logger.Warn("user directory page limit reached", zap.Int("pages", maxUserPages), zap.Int("users", len(users)))
	return users, nil
}

// do sends an authenticated request. A 401 refreshes the token once.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body any) (*httpclient.Response, error) {
	for attempt := 0; ; attempt++ {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		resp, err := c.caller.Do(ctx, httpclient.Request{
			Method:  method,
			URL:     c.base + path,
			Headers: map[string]string{"Authorization": "Bearer " + token},
			Query:   query,
			Body:    body,
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		switch {
		case resp.StatusCode == http.StatusUnauthorized && attempt == 0:
			c.logger.Info("ticketing token rejected, refreshing", zap.String("op", op))
			c.tokens.Invalidate()
			continue
		case resp.StatusCode == http.StatusNotFound:
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		case !resp.OK():
			return nil, &StatusError{Op: op, Status: resp.StatusCode, Body: truncate(string(resp.Body), 256)}
		}
		return resp, nil
	}
}

func decodeUsers(data []byte) ([]domain.User, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	var items []any
	switch v := raw.(type) {
	case []any:
		items = v
	case map[string]any:
		for _, key := range []string{"data", "persons", "users", "items"} {
			if list, ok := v[key].([]any); ok {
				items = list
				break
			}
		}
	}
	users := make([]domain.User, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		var u domain.User
		u.ID, _ = normalize.Stringify(firstPresent(m, "id", "ID", "Id"))
		u.Email, _ = normalize.Stringify(firstPresent(m, "email", "Email", "mail"))
		u.Name, _ = normalize.Stringify(firstPresent(m, "dynamicName", "name", "Name", "displayName"))
		if u.Name == "" {
			u.Name, _ = normalize.Stringify(m)
		}
		if u.ID != "" {
			users = append(users, u)
		}
	}
	return users, nil
}

func firstPresent(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
