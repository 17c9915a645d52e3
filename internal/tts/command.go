package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// Command speaks by running an external program, e.g. spd-say or piper.
// The text is appended as the last argument unless Stdin is set.
type Command struct {
	Argv  []string
	Stdin bool
}

func (c Command) Name() string {
	if len(c.Argv) == 0 {
		return "command"
	}
	return filepath.Base(c.Argv[0])
}

func (c Command) Say(ctx context.Context, text string) error {
	if len(c.Argv) == 0 {
		return errors.New("empty tts command")
	}
	if text == "" {
		return nil
	}

	args := append([]string(nil), c.Argv[1:]...)
	if !c.Stdin {
		args = append(args, text)
	}

	cmd := exec.CommandContext(ctx, c.Argv[0], args...)
	if c.Stdin {
		cmd.Stdin = strings.NewReader(text)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w: %s", c.Name(), err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
