package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/it-spirit/spiritsearch/common/httpx"
	"github.com/it-spirit/spiritsearch/common/logger"
	"github.com/it-spirit/spiritsearch/config"
)

// Provider asks a question to a preconfigured specialist assistant and
// returns its final text answer.
type Provider interface {
	Ask(ctx context.Context, assistantID, question string) (string, error)
}

const defaultBaseURL = "https://api.openai.com/v1"

// Client drives the OpenAI Assistants v2 thread flow: create a thread, post
// the question, start a run, poll until it settles, read the reply.
type Client struct {
	http         *httpx.Client
	baseURL      string
	apiKey       string
	pollInterval time.Duration
	maxPoll      time.Duration
}

// New creates an assistants client.
func New(cfg config.AssistantsConfig, hc *httpx.Client) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	return &Client{
		http:         hc,
		baseURL:      base,
		apiKey:       cfg.APIKey,
		pollInterval: time.Duration(cfg.PollIntervalMS) * time.Millisecond,
		maxPoll:      time.Duration(cfg.MaxPollSeconds) * time.Second,
	}
}

type threadResponse struct {
	ID string `json:"id"`
}

type runResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	LastError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_error"`
}

type messagesResponse struct {
	Data []struct {
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text struct {
				Value string `json:"value"`
			} `json:"text"`
		} `json:"content"`
	} `json:"data"`
}

// Ask runs the full thread flow against one assistant.
func (c *Client) Ask(ctx context.Context, assistantID, question string) (string, error) {
	var thread threadResponse
	if err := c.post(ctx, "/threads", map[string]any{}, &thread); err != nil {
		return "", fmt.Errorf("assistant: create thread: %w", err)
	}
	logger.Debugf("assistant: thread %s for assistant %s", thread.ID, assistantID)

	msg := map[string]any{"role": "user", "content": question}
	if err := c.post(ctx, "/threads/"+thread.ID+"/messages", msg, nil); err != nil {
		return "", fmt.Errorf("assistant: post message: %w", err)
	}

	var run runResponse
	if err := c.post(ctx, "/threads/"+thread.ID+"/runs", map[string]any{"assistant_id": assistantID}, &run); err != nil {
		return "", fmt.Errorf("assistant: start run: %w", err)
	}

	if err := c.waitForRun(ctx, thread.ID, &run); err != nil {
		return "", err
	}
	return c.readReply(ctx, thread.ID)
}

// waitForRun polls the run until it reaches a terminal status or the poll
// budget runs out.
func (c *Client) waitForRun(ctx context.Context, threadID string, run *runResponse) error {
	deadline := time.Now().Add(c.maxPoll)
	for {
		switch run.Status {
		case "completed":
			return nil
		case "failed", "cancelled", "expired", "incomplete":
			detail := run.Status
			if run.LastError != nil {
				detail = fmt.Sprintf("%s (%s: %s)", run.Status, run.LastError.Code, run.LastError.Message)
			}
			return fmt.Errorf("assistant: run ended %s", detail)
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("assistant: run %s still %s after %v", run.ID, run.Status, c.maxPoll)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("assistant: poll: %w", ctx.Err())
		case <-time.After(c.pollInterval):
		}
		if err := c.get(ctx, "/threads/"+threadID+"/runs/"+run.ID, run); err != nil {
			return fmt.Errorf("assistant: poll run: %w", err)
		}
	}
}

// readReply fetches the newest assistant message of the thread.
func (c *Client) readReply(ctx context.Context, threadID string) (string, error) {
	var msgs messagesResponse
	if err := c.get(ctx, "/threads/"+threadID+"/messages?order=desc&limit=5", &msgs); err != nil {
		return "", fmt.Errorf("assistant: read messages: %w", err)
	}
	for _, m := range msgs.Data {
		if m.Role != "assistant" {
			continue
		}
		for _, part := range m.Content {
			if part.Type == "text" && part.Text.Value != "" {
				return part.Text.Value, nil
			}
		}
	}
	return "", fmt.Errorf("assistant: no assistant reply in thread %s", threadID)
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	return c.send(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("OpenAI-Beta", "assistants=v2")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, truncateBody(data))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func truncateBody(data []byte) string {
	const max = 300
	if len(data) > max {
		return string(data[:max]) + "..."
	}
	return string(data)
}
