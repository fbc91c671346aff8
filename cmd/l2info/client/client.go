// Copyright (c) 2022 NTT Communications Corporation
//
// This software is released under the MIT License.
// see https://github.com/nttcom/l2info/blob/main/LICENSE

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nttcom/l2info/pkg/server"
)

const requestTimeout = 5 * time.Second

// Client talks to the l2infod HTTP API.
type Client struct {
	base string
	http *http.Client
}

func New(host, port string) *Client {
	return &Client{
		base: "http://" + net.JoinHostPort(host, port) + "/api/v1",
		http: &http.Client{Timeout: requestTimeout},
	}
}

// APIError carries the status and message of a failed request.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("l2infod: %s: %s", http.StatusText(e.Status), e.Message)
}

func withTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), requestTimeout)
}

func (c *Client) do(method, path string, body []byte, out io.Writer) error {
	ctx, cancel := withTimeout()
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(resp.Body)
		return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	if out != nil {
		_, err = io.Copy(out, resp.Body)
	}
	return err
}

func (c *Client) GetSessions() ([]server.SessionInfo, error) {
	var buf bytes.Buffer
	if err := c.do(http.MethodGet, "/sessions", nil, &buf); err != nil {
		return nil, err
	}
	var sessions []server.SessionInfo
	if err := json.Unmarshal(buf.Bytes(), &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// ExportLayer2 copies the snapshot JSON to out.
func (c *Client) ExportLayer2(out io.Writer) error {
	return c.do(http.MethodGet, "/layer2", nil, out)
}

func (c *Client) ImportLayer2(data []byte) error {
	return c.do(http.MethodPost, "/layer2", data, nil)
}

func (c *Client) ReplaceOrigin(origin string, data []byte) error {
	return c.do(http.MethodPut, "/layer2/origins/"+url.PathEscape(origin), data, nil)
}

func (c *Client) RemoveOrigin(origin string) error {
	return c.do(http.MethodDelete, "/layer2/origins/"+url.PathEscape(origin), nil, nil)
}
