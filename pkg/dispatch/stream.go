package dispatch

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
)

// EventKind tags a stream event.
type EventKind int

const (
	// Thinking is a routing notice emitted before generation starts.
	Thinking EventKind = iota
	// Token carries one delta of answer text.
	Token
	// Done closes the stream; Answer holds the full accumulated text.
	Done
	// Error reports a mid-stream failure after any partial tokens.
	Error
)

// Event is one item on a dispatch stream.
type Event struct {
	Kind   EventKind
	Text   string
	Answer string
	Err    error
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

// Request describes one streaming generation against an OpenAI-compatible
// chat endpoint.
type Request struct {
	Endpoint    string
	Model       string
	Timeout     time.Duration
	Temperature float32
	System      string
	User        string

	// OnComplete, when set, runs after a successful stream that produced
	// content. It gets a detached context: caller cancellation does not
	// reach an already-started completion hook.
	OnComplete func(ctx context.Context, answer string)
}

// Dispatcher streams tokens from the tier backends.
type Dispatcher struct {
	Client      *http.Client
	HookTimeout time.Duration

	hooks sync.WaitGroup
}

func NewDispatcher() *Dispatcher {
	// No client-level timeout: stream duration is bounded by the per-tier
	// context deadline.
	return &Dispatcher{
		Client:      &http.Client{},
		HookTimeout: 30 * time.Second,
	}
}

// Stream starts a generation and returns its event channel. Failures
// before the first byte of the stream (connect errors, non-200 responses)
// are returned directly so the caller can fall back to another tier;
// everything after that arrives as events, the channel always ending with
// Done or Error.
func (d *Dispatcher) Stream(ctx context.Context, req Request) (<-chan Event, error) {
	body, err := json.Marshal(chatRequest{
		Model: req.Model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		Temperature: req.Temperature,
		Stream:      true,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, req.Timeout)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.Endpoint, bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := d.Client.Do(httpReq)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("dispatch %s: %w", req.Endpoint, err)
	}
	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("dispatch %s: http %d: %s",
			req.Endpoint, resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	events := make(chan Event, 64)
	go func() {
		defer close(events)
		defer cancel()
		defer resp.Body.Close()

		var answer strings.Builder
		reader := bufio.NewReader(resp.Body)
		for {
			select {
			case <-ctx.Done():
				emit(ctx, events, Event{Kind: Error, Answer: answer.String(), Err: ctx.Err()})
				return
			default:
			}

			line, err := reader.ReadString('\n')
			if err != nil {
				if err == io.EOF {
					d.finish(ctx, events, req, answer.String())
					return
				}
				emit(ctx, events, Event{Kind: Error, Answer: answer.String(), Err: err})
				return
			}

			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data: "))
			if data == "[DONE]" {
				d.finish(ctx, events, req, answer.String())
				return
			}
			if !gjson.Valid(data) {
				continue
			}
			delta := gjson.Get(data, "choices.0.delta.content")
			if !delta.Exists() {
				delta = gjson.Get(data, "choices.0.delta.text")
			}
			token := delta.String()
			if token == "" {
				continue
			}
			answer.WriteString(token)
			if !emit(ctx, events, Event{Kind: Token, Text: token}) {
				return
			}
		}
	}()
	return events, nil
}

// emit delivers one event unless the context has been cancelled, so an
// abandoned consumer can never park the stream goroutine on a full
// buffer.
func emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// Wait blocks until every detached completion hook has returned. Short
// lived callers use it to flush the memory write before exiting.
func (d *Dispatcher) Wait() {
	d.hooks.Wait()
}

// finish emits Done and fires the completion hook on its own goroutine.
// The hook runs detached with a fresh context; there is no ordering
// guarantee between it and anything the caller does after Done.
func (d *Dispatcher) finish(ctx context.Context, events chan<- Event, req Request, answer string) {
	emit(ctx, events, Event{Kind: Done, Answer: answer})
	if req.OnComplete == nil || answer == "" {
		return
	}
	timeout := d.HookTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	d.hooks.Add(1)
	go func() {
		defer d.hooks.Done()
		hookCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[DISPATCH] completion hook panic: %v", r)
			}
		}()
		req.OnComplete(hookCtx, answer)
	}()
}
