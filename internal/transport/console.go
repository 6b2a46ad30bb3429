package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// Console is a development transport that reads events from an input
// stream and prints outbound messages to an output stream. Input lines
// have the form "<principal> <text>"; a text starting with '@' is treated
// as an option selection (e.g. "42 @new_task").
type Console struct {
	in  io.Reader
	out io.Writer
	mu  sync.Mutex
}

// NewConsole creates a console transport over the given streams.
func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{in: in, out: out}
}

// Events reads input lines until the stream ends or ctx is cancelled.
func (c *Console) Events(ctx context.Context) <-chan Event {
	ch := make(chan Event)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			parts := strings.SplitN(line, " ", 2)
			if len(parts) != 2 {
				continue
			}
			principal, err := strconv.ParseInt(parts[0], 10, 64)
			if err != nil {
				continue
			}
			ev := Event{Principal: principal}
			payload := strings.TrimSpace(parts[1])
			if strings.HasPrefix(payload, "@") {
				ev.Option = strings.TrimPrefix(payload, "@")
			} else {
				ev.Text = payload
			}
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

// Send prints the message and its options to the output stream.
func (c *Console) Send(_ context.Context, principal int64, text string, options []Option) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := fmt.Fprintf(c.out, "-> %d: %s\n", principal, text); err != nil {
		return err
	}
	for _, opt := range options {
		if _, err := fmt.Fprintf(c.out, "   [@%s] %s\n", opt.ID, opt.Label); err != nil {
			return err
		}
	}
	return nil
}
