// Package classapi talks to the classroom REST backend that owns class
// scheduling and poll archives. The live session works without it; every
// call here is best-effort bookkeeping.
package classapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/vineetpathak08/remote-classroom/pkg/config"
	"github.com/vineetpathak08/remote-classroom/pkg/logger"
)

type Client struct {
	base  string
	token string
	http  *http.Client
	log   *logger.Logger
}

type Class struct {
	Id           string `json:"id"`
	Title        string `json:"title"`
	InstructorId string `json:"instructorId"`
	Status       string `json:"status"`
}

// New returns a backend client or nil when no address is configured.
// A nil client safely no-ops on every call.
func New(conf config.ClassApi, log *logger.Logger) *Client {
	if conf.Address == "" {
		return nil
	}
	timeout := conf.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		base:  conf.Address,
		token: conf.Token,
		http:  &http.Client{Timeout: timeout},
		log:   log,
	}
}

func (c *Client) CreateClass(ctx context.Context, title, instructorId string) (Class, error) {
	var out Class
	if c == nil {
		return out, nil
	}
	err := c.post(ctx, "/classes", map[string]string{
		"title":        title,
		"instructorId": instructorId,
	}, &out)
	return out, err
}

func (c *Client) StartClass(ctx context.Context, classId string) error {
	if c == nil {
		return nil
	}
	return c.post(ctx, fmt.Sprintf("/classes/%s/start", classId), nil, nil)
}

func (c *Client) EndClass(ctx context.Context, classId string) error {
	if c == nil {
		return nil
	}
	return c.post(ctx, fmt.Sprintf("/classes/%s/end", classId), nil, nil)
}

func (c *Client) SubmitPollResponse(ctx context.Context, classId, pollId, userId, answer string) error {
	if c == nil {
		return nil
	}
	return c.post(ctx, fmt.Sprintf("/classes/%s/polls/%s/responses", classId, pollId), map[string]string{
		"userId":   userId,
		"response": answer,
	}, nil)
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return errors.New(resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
