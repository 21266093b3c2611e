// Package chat talks to the chat platform messaging API.
package chat

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/spec-kit/ticket-bridge/internal/domain"
	"github.com/spec-kit/ticket-bridge/internal/httpclient"
	"github.com/spec-kit/ticket-bridge/internal/normalize"
)

const adaptiveCardContentType = "application/vnd.microsoft.card.adaptive"

// Config holds API coordinates and the bot credential.
type Config struct {
	BaseURL  string
	BotToken string
}

// Client is the chat platform collaborator.
type Client struct {
	caller *httpclient.Caller
	base   string
	token  string
}

// NewClient builds a Client whose calls go through caller.
func NewClient(cfg Config, caller *httpclient.Caller) *Client {
	return &Client{caller: caller, base: cfg.BaseURL, token: cfg.BotToken}
}

type messageResponse struct {
	ID          string `json:"id"`
	RoomID      string `json:"roomId"`
	PersonEmail string `json:"personEmail"`
	PersonName  string `json:"personDisplayName"`
	Text        string `json:"text"`
	Markdown    string `json:"markdown"`
}

type attachmentActionResponse struct {
	ID          string         `json:"id"`
	RoomID      string         `json:"roomId"`
	PersonEmail string         `json:"personEmail"`
	Inputs      map[string]any `json:"inputs"`
}

// SendText posts a markdown message to a room.
func (c *Client) SendText(ctx context.Context, roomID, markdown string) error {
	_, err := c.do(ctx, "send message", http.MethodPost, "/messages", map[string]any{
		"roomId":   roomID,
		"markdown": markdown,
	})
	return err
}

// SendCard posts a card with a markdown fallback for clients that cannot
// render it.
func (c *Client) SendCard(ctx context.Context, roomID, fallback string, card map[string]any) error {
	_, err := c.do(ctx, "send card", http.MethodPost, "/messages", map[string]any{
		"roomId":   roomID,
		"markdown": fallback,
		"attachments": []map[string]any{{
			"contentType": adaptiveCardContentType,
			"content":     card,
		}},
	})
	return err
}

// GetMessage fetches a message by id.
func (c *Client) GetMessage(ctx context.Context, messageID string) (domain.ChatMessage, error) {
	resp, err := c.do(ctx, "get message", http.MethodGet, "/messages/"+url.PathEscape(messageID), nil)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	var body messageResponse
	if err := resp.DecodeJSON(&body); err != nil {
		return domain.ChatMessage{}, fmt.Errorf("get message: %w", err)
	}
	text := body.Text
	if text == "" {
		text = body.Markdown
	}
	return domain.ChatMessage{
		ID:          body.ID,
		RoomID:      body.RoomID,
		PersonEmail: body.PersonEmail,
		PersonName:  body.PersonName,
		Text:        text,
	}, nil
}

// GetFormSubmission fetches the inputs of a submitted card.
func (c *Client) GetFormSubmission(ctx context.Context, actionID string) (domain.FormSubmission, error) {
	resp, err := c.do(ctx, "get attachment action", http.MethodGet, "/attachment/actions/"+url.PathEscape(actionID), nil)
	if err != nil {
		return domain.FormSubmission{}, err
	}
	var body attachmentActionResponse
	if err := resp.DecodeJSON(&body); err != nil {
		return domain.FormSubmission{}, fmt.Errorf("get attachment action: %w", err)
	}
	inputs := make(map[string]string, len(body.Inputs))
	for k, v := range body.Inputs {
		if s, ok := normalize.Stringify(v); ok {
			inputs[k] = s
		}
	}
	return domain.FormSubmission{
		ID:          body.ID,
		RoomID:      body.RoomID,
		PersonEmail: body.PersonEmail,
		Inputs:      inputs,
	}, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body any) (*httpclient.Response, error) {
	resp, err := c.caller.Do(ctx, httpclient.Request{
		Method:  method,
		URL:     c.base + path,
		Headers: map[string]string{"Authorization": "Bearer " + c.token},
		Body:    body,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%s: unexpected status %d", op, resp.StatusCode)
	}
	return resp, nil
}
