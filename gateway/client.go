package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	log15 "github.com/inconshreveable/log15/v3"
)

// ErrMessageNotFound is returned when the platform no longer has the message,
// e.g. it was deleted by a user.
var ErrMessageNotFound = errors.New("gateway: message not found")

const requestTimeout = 10 * time.Second

// Client talks to the chat platform's REST API with a bot token. Every call
// carries a bounded timeout so a stalled platform request cannot wedge event
// processing.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     log15.Logger
}

func NewClient(baseURL, token string, logger log15.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: requestTimeout},
		log:     logger.New("module", "gateway"),
	}
}

// PostMessage sends a rich reply into a channel and returns the message id.
func (c *Client) PostMessage(ctx context.Context, channelID string, msg Message) (string, error) {
	var resp postMessageResponse
	path := fmt.Sprintf("/channels/%s/messages", url.PathEscape(channelID))
	if err := c.do(ctx, http.MethodPost, path, postMessageRequest{Message: msg}, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// PostPrompt sends a message with selectable options and returns its id. The
// id anchors the poll: vote selections come back referencing it.
func (c *Client) PostPrompt(ctx context.Context, channelID string, msg Message, options []PromptOption) (string, error) {
	var resp postMessageResponse
	path := fmt.Sprintf("/channels/%s/prompts", url.PathEscape(channelID))
	if err := c.do(ctx, http.MethodPost, path, postMessageRequest{Message: msg, Options: options}, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// PostEphemeral sends a reply visible only to one user.
func (c *Client) PostEphemeral(ctx context.Context, channelID, userID, body string) error {
	path := fmt.Sprintf("/channels/%s/ephemeral", url.PathEscape(channelID))
	return c.do(ctx, http.MethodPost, path, ephemeralRequest{UserID: userID, Body: body}, nil)
}

// DisableOptions turns off the selectable options on a prompt message.
func (c *Client) DisableOptions(ctx context.Context, channelID, messageID string) error {
	path := fmt.Sprintf("/channels/%s/messages/%s", url.PathEscape(channelID), url.PathEscape(messageID))
	return c.do(ctx, http.MethodPatch, path, updateMessageRequest{DisableOptions: true}, nil)
}

// GetMessage probes whether a message still exists.
func (c *Client) GetMessage(ctx context.Context, channelID, messageID string) error {
	path := fmt.Sprintf("/channels/%s/messages/%s", url.PathEscape(channelID), url.PathEscape(messageID))
	return c.do(ctx, http.MethodGet, path, nil, nil)
}

// ListChannels returns every channel visible to the bot.
func (c *Client) ListChannels(ctx context.Context) ([]Channel, error) {
	var channels []Channel
	if err := c.do(ctx, http.MethodGet, "/channels", nil, &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

// CreateScheduledEvent creates a calendar event on the platform.
func (c *Client) CreateScheduledEvent(ctx context.Context, channelID string, start, end time.Time, title, description string) (*ScheduledEvent, error) {
	var ev ScheduledEvent
	req := createEventRequest{
		ChannelID:   channelID,
		Start:       start,
		End:         end,
		Title:       title,
		Description: description,
	}
	if err := c.do(ctx, http.MethodPost, "/events", req, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// DeleteScheduledEvent removes a calendar event.
func (c *Client) DeleteScheduledEvent(ctx context.Context, eventID string) error {
	return c.do(ctx, http.MethodDelete, "/events/"+url.PathEscape(eventID), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("gateway: marshal %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("gateway: build %s %s: %w", method, path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	if method != http.MethodGet {
		// The platform dedupes retried mutations on this key.
		req.Header.Set("X-Idempotency-Key", uuid.NewString())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrMessageNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("gateway: %s %s: platform responded with %s", method, path, resp.Status)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("gateway: decode %s %s: %w", method, path, err)
		}
	}
	return nil
}
