package speech

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Console reads typed utterances line by line and prints responses.
// It lets the daemon run without a microphone or speakers.
type Console struct {
	prompt string
	out    io.Writer

	mu    sync.Mutex
	lines chan string
	in    io.Reader
	once  sync.Once
}

func NewConsole(in io.Reader, out io.Writer, prompt string) *Console {
	return &Console{
		prompt: prompt,
		out:    out,
		in:     in,
		lines:  make(chan string),
	}
}

func (c *Console) Speak(_ context.Context, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "%s%s\n", c.prompt, text)
}

func (c *Console) Listen(ctx context.Context, timeout, _ time.Duration) (string, error) {
	c.once.Do(func() { go c.scan() })

	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-expired:
		return "", ErrNotRecognized
	case line, ok := <-c.lines:
		if !ok {
			return "", io.EOF
		}
		line = strings.ToLower(strings.TrimSpace(line))
		if line == "" {
			return "", ErrNotRecognized
		}
		return line, nil
	}
}

func (c *Console) scan() {
	defer close(c.lines)

	sc := bufio.NewScanner(c.in)
	for sc.Scan() {
		c.lines <- sc.Text()
	}
}
