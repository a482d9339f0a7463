// Package client is a thin JSON client for the log sink HTTP API.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/crucial707/logsink/cmd/cli/config"
)

// APIError is a non-2xx response. Message is the server's "error" field when present.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Message)
}

type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// New returns a client for config.APIURL() carrying token (which may be empty).
func New(token string) *Client {
	return &Client{
		BaseURL: config.APIURL(),
		Token:   token,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Authenticated loads the stored token and returns a client that sends it.
func Authenticated() (*Client, error) {
	token, err := config.LoadToken()
	if err != nil {
		return nil, err
	}
	return New(token), nil
}

// JSON sends payload (if non-nil) as a JSON body and decodes the response into out (if non-nil).
func (c *Client) JSON(method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

// Form posts an urlencoded form, as the /token endpoint expects.
func (c *Client) Form(path string, values url.Values, out interface{}) error {
	req, err := http.NewRequest(http.MethodPost, c.BaseURL+path, strings.NewReader(values.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &APIError{Status: resp.StatusCode, Message: errorMessage(body)}
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}
