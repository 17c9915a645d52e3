package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	cli "github.com/spf13/pflag"

	"friday/internal/ipc"
)

func main() {
	socket := cli.StringP("socket", "s", filepath.Join(os.TempDir(), "friday.sock"), "Daemon control socket")
	timeout := cli.DurationP("timeout", "t", 60*time.Second, "How long to wait for the reply")
	slots := cli.StringToStringP("slot", "S", nil, "Slot value, e.g. --slot query=cats")
	cli.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: friday-ctl [flags] trigger | ping | <command text>")
		cli.PrintDefaults()
	}
	cli.Parse()

	if env := os.Getenv("FRIDAY_IPC_SOCKET"); env != "" && !cli.CommandLine.Changed("socket") {
		*socket = env
	}

	msg := ipc.ControlMessage{Cmd: ipc.CmdTrigger}
	switch args := cli.Args(); {
	case len(args) == 0:
	case len(args) == 1 && (args[0] == ipc.CmdTrigger || args[0] == ipc.CmdPing):
		msg.Cmd = args[0]
	default:
		msg = ipc.ControlMessage{Cmd: ipc.CmdProcess, Text: strings.Join(args, " "), Slots: *slots}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	reply, err := ipc.Send(ctx, *socket, msg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "friday not running:", err)
		os.Exit(1)
	}

	fmt.Println(reply.Response)
	if !reply.Success {
		os.Exit(2)
	}
}
