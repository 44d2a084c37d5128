package stream

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Event is one named server-sent event with its raw JSON payload.
type Event struct {
	Name string
	Data []byte
}

// RequestFunc builds the authenticated GET for the event stream.
type RequestFunc func(ctx context.Context) (*http.Request, error)

// Subscriber consumes one server-sent-event stream and delivers parsed
// events on a channel. A Subscriber is single-use: Run connects once and
// returns when the stream ends.
type Subscriber struct {
	http       *http.Client
	newRequest RequestFunc
	events     chan Event
}

// New builds a Subscriber. httpClient must have no overall timeout set; the
// stream is long-lived and is torn down through the context instead.
func New(httpClient *http.Client, newRequest RequestFunc) *Subscriber {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Subscriber{
		http:       httpClient,
		newRequest: newRequest,
		events:     make(chan Event, 16),
	}
}

// Events delivers parsed events in arrival order. The channel is closed
// when Run returns, so a ranging consumer terminates cleanly.
func (s *Subscriber) Events() <-chan Event {
	return s.events
}

// Run connects and parses the stream until ctx is cancelled (returns nil)
// or the transport fails (returns the error). The caller decides what a
// failure means — for the notifications center it triggers the polling
// fallback.
func (s *Subscriber) Run(ctx context.Context) error {
	defer close(s.events)

	req, err := s.newRequest(ctx)
	if err != nil {
		return fmt.Errorf("build stream request: %w", err)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("connect stream: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("stream returned status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		return fmt.Errorf("stream content type %q", ct)
	}

	if err := s.parse(ctx, resp.Body); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	return nil
}

// parse implements the text/event-stream wire format: "event:" and "data:"
// fields accumulate until a blank line dispatches the event. Comment lines
// (leading colon) are keep-alives and are skipped.
func (s *Subscriber) parse(ctx context.Context, body io.Reader) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	name := ""
	var data [][]byte
	for scanner.Scan() {
		line := scanner.Bytes()
		switch {
		case len(line) == 0:
			if len(data) > 0 || name != "" {
				event := Event{Name: name, Data: bytes.Join(data, []byte("\n"))}
				if event.Name == "" {
					event.Name = "message"
				}
				select {
				case s.events <- event:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			name = ""
			data = nil
		case line[0] == ':':
			// keep-alive comment
		case bytes.HasPrefix(line, []byte("event:")):
			name = string(trimField(line, "event:"))
		case bytes.HasPrefix(line, []byte("data:")):
			chunk := trimField(line, "data:")
			dup := make([]byte, len(chunk))
			copy(dup, chunk)
			data = append(data, dup)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}
	return fmt.Errorf("stream closed by server")
}

func trimField(line []byte, prefix string) []byte {
	rest := line[len(prefix):]
	return bytes.TrimPrefix(rest, []byte(" "))
}
