package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/segmentio/encoding/json"
)

// HeaderCaller 和服务端 api.HeaderCaller 保持一致
const HeaderCaller = "X-Caller-Address"

type client struct {
	base   string
	caller string
	hc     *http.Client
}

func newClient(base, caller string, timeout time.Duration) *client {
	return &client{
		base:   strings.TrimRight(base, "/"),
		caller: caller,
		hc:     &http.Client{Timeout: timeout},
	}
}

type response struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// do 返回 data 部分，code != 200 时报错
func (c *client) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.caller != "" {
		req.Header.Set(HeaderCaller, c.caller)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var r response
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if r.Code != http.StatusOK {
		return nil, fmt.Errorf("http %d code %d: %s", resp.StatusCode, r.Code, r.Message)
	}
	return r.Data, nil
}
