// Package telegram is a minimal Bot API client: long-poll updates,
// text and photo replies, and file downloads. Only the handful of
// methods the bot needs are implemented.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"
)

// DefaultAPIBase is the public Bot API endpoint.
const DefaultAPIBase = "https://api.telegram.org"

// Client talks to the Telegram Bot API for one bot token.
type Client struct {
	token string
	base  string
	http  *http.Client
}

// New builds a client. base is usually DefaultAPIBase; tests point it
// at a local httptest server.
func New(token, base string) (*Client, error) {
	if token == "" {
		return nil, errors.New("bot token is required")
	}
	if base == "" {
		base = DefaultAPIBase
	}
	return &Client{
		token: token,
		base:  base,
		// Long polls hold the connection open for the poll timeout;
		// leave headroom on top of it.
		http: &http.Client{Timeout: 90 * time.Second},
	}, nil
}

// Update is one inbound event from getUpdates.
type Update struct {
	UpdateID int      `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// Message is an inbound chat message. Photo holds the available sizes
// of an attached photograph, smallest first.
type Message struct {
	MessageID int         `json:"message_id"`
	Text      string      `json:"text"`
	Date      int64       `json:"date"`
	Chat      Chat        `json:"chat"`
	From      *User       `json:"from,omitempty"`
	Photo     []PhotoSize `json:"photo,omitempty"`
}

type Chat struct {
	ID int64 `json:"id"`
}

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// PhotoSize identifies one rendition of an attached photo.
type PhotoSize struct {
	FileID   string `json:"file_id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileSize int64  `json:"file_size"`
}

// apiResponse is the Bot API result envelope.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// GetUpdates long-polls for updates past offset, waiting up to
// timeout seconds server-side.
func (c *Client) GetUpdates(ctx context.Context, offset, timeoutSec int) ([]Update, error) {
	payload := map[string]any{
		"offset":  offset,
		"timeout": timeoutSec,
	}
	raw, err := c.call(ctx, "getUpdates", payload)
	if err != nil {
		return nil, err
	}
	var updates []Update
	if err := json.Unmarshal(raw, &updates); err != nil {
		return nil, fmt.Errorf("decode updates: %w", err)
	}
	return updates, nil
}

// SendMessage sends a plain-text reply to a chat.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	_, err := c.call(ctx, "sendMessage", map[string]any{
		"chat_id": chatID,
		"text":    text,
	})
	return err
}

// SendPhoto uploads a photo payload to a chat via multipart form data.
func (c *Client) SendPhoto(ctx context.Context, chatID int64, payload []byte, name string) error {
	if name == "" {
		name = "photo.jpg"
	}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("chat_id", strconv.FormatInt(chatID, 10)); err != nil {
		return err
	}
	fw, err := mw.CreateFormFile("photo", name)
	if err != nil {
		return err
	}
	if _, err := fw.Write(payload); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendPhoto", c.base, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeEnvelope(resp.Body, nil)
}

// FilePath resolves a file id to a server-side path for Download.
func (c *Client) FilePath(ctx context.Context, fileID string) (string, error) {
	raw, err := c.call(ctx, "getFile", map[string]any{"file_id": fileID})
	if err != nil {
		return "", err
	}
	var f struct {
		FilePath string `json:"file_path"`
	}
	if err := json.Unmarshal(raw, &f); err != nil {
		return "", fmt.Errorf("decode file info: %w", err)
	}
	if f.FilePath == "" {
		return "", errors.New("file has no path")
	}
	return f.FilePath, nil
}

// Download fetches the bytes of a file previously resolved by FilePath.
func (c *Client) Download(ctx context.Context, filePath string) ([]byte, error) {
	url := fmt.Sprintf("%s/file/bot%s/%s", c.base, c.token, filePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: status %d", filePath, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// call posts a JSON payload to a Bot API method and returns the raw
// result field.
func (c *Client) call(ctx context.Context, method string, payload any) (json.RawMessage, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/bot%s/%s", c.base, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var raw json.RawMessage
	if err := decodeEnvelope(resp.Body, &raw); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return raw, nil
}

func decodeEnvelope(r io.Reader, out *json.RawMessage) error {
	var env apiResponse
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return err
	}
	if !env.OK {
		if env.Description == "" {
			env.Description = "request failed"
		}
		return errors.New(env.Description)
	}
	if out != nil {
		*out = env.Result
	}
	return nil
}
