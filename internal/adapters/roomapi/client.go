// Package roomapi is the REST client of the room service: room lookup, the
// hands-up process and the whiteboard/record sessions.
package roomapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
)

const userTokenHeader = "x-user-token"

var ErrNoRoom = errors.New("no room fetched yet")

// APIError is a non-zero code in the response envelope or a 4xx status.
type APIError struct {
	Status int
	Code   int
	Msg    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("room api: status %d code %d: %s", e.Status, e.Code, e.Msg)
}

type Options struct {
	BaseURL         string
	AppID           string
	Timeout         time.Duration
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// HandsUpTimeout is the wait limit sent when the hands-up process is set up.
	HandsUpTimeout int
	HTTPClient     *http.Client
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.MaxTries == 0 {
		o.MaxTries = 4
	}
	if o.InitialInterval <= 0 {
		o.InitialInterval = 200 * time.Millisecond
	}
	if o.MaxInterval <= 0 {
		o.MaxInterval = 5 * time.Second
	}
	if o.HandsUpTimeout <= 0 {
		o.HandsUpTimeout = 60
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: o.Timeout}
	}
	return o
}

// Client implements core.RoomAPI, core.InvitationAPI and core.ServiceFactory.
type Client struct {
	opts Options

	mu       sync.RWMutex
	roomUUID string
	token    string
}

func New(opts Options) *Client {
	opts = opts.withDefaults()
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &Client{opts: opts}
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (c *Client) FetchRoom(ctx context.Context, roomName string, roomType domain.RoomType) (string, error) {
	var out struct {
		RoomUUID string `json:"roomUuid"`
	}
	body := map[string]any{"roomName": roomName, "roomType": roomType}
	if err := c.do(ctx, http.MethodPost, "/v1/rooms", "", body, &out); err != nil {
		return "", err
	}
	if out.RoomUUID == "" {
		return "", &APIError{Status: http.StatusOK, Msg: "empty roomUuid"}
	}
	c.mu.Lock()
	c.roomUUID = out.RoomUUID
	c.mu.Unlock()
	log.Info().Str("module", "adapters.roomapi").Str("room", roomName).Str("room_uuid", out.RoomUUID).Msg("room fetched")
	return out.RoomUUID, nil
}

func (c *Client) session() (string, string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.roomUUID == "" {
		return "", "", ErrNoRoom
	}
	return c.roomUUID, c.token, nil
}

func (c *Client) SetInvitation(ctx context.Context) error {
	room, token, err := c.session()
	if err != nil {
		return err
	}
	body := map[string]any{"maxWait": 4, "timeout": c.opts.HandsUpTimeout}
	return c.do(ctx, http.MethodPut, "/v1/rooms/"+url.PathEscape(room)+"/processes/handsUp", token, body, nil)
}

func (c *Client) HandInvitationStart(ctx context.Context, action core.InvitationAction, userUUID string) error {
	return c.progress(ctx, http.MethodPost, action, userUUID)
}

func (c *Client) HandInvitationEnd(ctx context.Context, action core.InvitationAction, userUUID string) error {
	return c.progress(ctx, http.MethodDelete, action, userUUID)
}

func (c *Client) progress(ctx context.Context, method string, action core.InvitationAction, userUUID string) error {
	room, token, err := c.session()
	if err != nil {
		return err
	}
	body := map[string]any{"action": int(action), "toUserUuid": userUUID}
	log.Debug().Str("module", "adapters.roomapi").Str("method", method).Stringer("action", action).Str("to", userUUID).Msg("hands up progress")
	return c.do(ctx, method, "/v1/rooms/"+url.PathEscape(room)+"/processes/handsUp/progress", token, body, nil)
}

// do runs one request with retries on transport errors, 429 and 5xx.
func (c *Client) do(ctx context.Context, method, path, token string, body any, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = b
	}

	expBackOff := backoff.NewExponentialBackOff()
	expBackOff.InitialInterval = c.opts.InitialInterval
	expBackOff.MaxInterval = c.opts.MaxInterval

	operation := func() (json.RawMessage, error) {
		return c.once(ctx, method, path, token, payload)
	}
	data, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(expBackOff),
		backoff.WithMaxTries(c.opts.MaxTries),
	)
	if err != nil {
		log.Warn().Err(err).Str("module", "adapters.roomapi").Str("method", method).Str("path", path).Msg("request failed")
		return err
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
	}
	return nil
}

func (c *Client) once(ctx context.Context, method, path, token string, payload []byte) (json.RawMessage, error) {
	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.opts.BaseURL+path, rd)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.opts.AppID != "" {
		req.Header.Set("x-app-id", c.opts.AppID)
	}
	if token != "" {
		req.Header.Set(userTokenHeader, token)
	}

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	var env envelope
	_ = json.Unmarshal(raw, &env)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &APIError{Status: resp.StatusCode, Code: env.Code, Msg: env.Msg}
	case resp.StatusCode >= 400:
		return nil, backoff.Permanent(&APIError{Status: resp.StatusCode, Code: env.Code, Msg: env.Msg})
	case env.Code != 0:
		return nil, backoff.Permanent(&APIError{Status: resp.StatusCode, Code: env.Code, Msg: env.Msg})
	}
	return env.Data, nil
}
