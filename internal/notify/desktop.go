package notify

import (
	"context"
	"os/exec"
	"strconv"
	"time"
)

// Desktop shows a transient notification through notify-send.
type Desktop struct {
	AppName string
	Expire  time.Duration
	command func(ctx context.Context, name string, args ...string) error
}

func NewDesktop(appName string) *Desktop {
	return &Desktop{
		AppName: appName,
		Expire:  3 * time.Second,
		command: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
	}
}

func (d *Desktop) Send(ctx context.Context, summary string) error {
	args := []string{"--app-name", d.AppName}
	if d.Expire > 0 {
		args = append(args, "--expire-time", strconv.FormatInt(d.Expire.Milliseconds(), 10))
	}
	args = append(args, summary)
	return d.command(ctx, "notify-send", args...)
}
