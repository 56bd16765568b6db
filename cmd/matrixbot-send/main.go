// Copyright 2026 The Matrixbot Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/archlinuxcn/matrixbot/control"
	"github.com/archlinuxcn/matrixbot/lib/process"
	"github.com/archlinuxcn/matrixbot/lib/ref"
	"github.com/archlinuxcn/matrixbot/lib/version"
)

// socketEnvironmentVariable supplies the default --socket.
const socketEnvironmentVariable = "MATRIXBOT_SOCKET"

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		process.Fatal(err)
	}
}

type options struct {
	socket       string
	replyTo      string
	replaces     string
	html         string
	markdown     bool
	printEventID bool
	deleteUser   string
	timeout      time.Duration
	showVersion  bool
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	var opts options
	flagSet := pflag.NewFlagSet("matrixbot-send", pflag.ContinueOnError)
	flagSet.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: matrixbot-send [flags] <room> [message]\n\n")
		flagSet.PrintDefaults()
	}
	flagSet.StringVar(&opts.socket, "socket", os.Getenv(socketEnvironmentVariable), "control socket path, '@name' for the abstract namespace (default: $"+socketEnvironmentVariable+")")
	flagSet.StringVar(&opts.replyTo, "reply-to", "", "event ID to reply to")
	flagSet.StringVar(&opts.replaces, "replaces", "", "event ID of an earlier message to edit")
	flagSet.StringVar(&opts.html, "html", "", "HTML rendering of the message")
	flagSet.BoolVar(&opts.markdown, "markdown", false, "render the message as Markdown into HTML")
	flagSet.BoolVar(&opts.printEventID, "print-event-id", false, "wait for and print the new event ID")
	flagSet.StringVar(&opts.deleteUser, "delete-user", "", "redact this user's recent messages instead of sending")
	flagSet.DurationVar(&opts.timeout, "timeout", 30*time.Second, "give up after this long")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if opts.showVersion {
		fmt.Fprintf(stdout, "matrixbot-send %s\n", version.Info())
		return nil
	}
	if opts.socket == "" {
		return fmt.Errorf("--socket or $%s is required", socketEnvironmentVariable)
	}

	command, err := buildCommand(opts, flagSet.Args(), stdin)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	client, err := control.Dial(ctx, opts.socket)
	if err != nil {
		return err
	}
	defer client.Close()

	response, err := client.Send(ctx, command)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("no event ID within %s; see the bot's log", opts.timeout)
		}
		return err
	}
	if response != nil {
		fmt.Fprintln(stdout, response.ID)
	}
	return nil
}

// buildCommand turns flags and positional arguments into a command.
// The message is read from stdin when not given as an argument.
func buildCommand(opts options, args []string, stdin io.Reader) (control.Command, error) {
	if len(args) == 0 {
		return nil, errors.New("missing room")
	}
	target, err := ref.ParseRoomReference(args[0])
	if err != nil {
		return nil, err
	}

	if opts.deleteUser != "" {
		if len(args) > 1 {
			return nil, errors.New("--delete-user takes no message")
		}
		user, err := ref.ParseUserID(opts.deleteUser)
		if err != nil {
			return nil, err
		}
		return control.DeleteUserMessages{Target: target, User: user}, nil
	}

	var content string
	switch len(args) {
	case 1:
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading message: %w", err)
		}
		content = strings.TrimRight(string(data), "\n")
	case 2:
		content = args[1]
	default:
		return nil, errors.New("quote the message as a single argument")
	}
	if content == "" {
		return nil, errors.New("empty message")
	}

	command := control.SendMessage{
		Target:      target,
		Content:     content,
		RichContent: opts.html,
		WantEventID: opts.printEventID,
	}
	if opts.markdown {
		if opts.html != "" {
			return nil, errors.New("--markdown and --html are exclusive")
		}
		command.RichContent, err = renderMarkdown(content)
		if err != nil {
			return nil, err
		}
	}
	if opts.replyTo != "" {
		if command.ReplyTo, err = ref.ParseEventID(opts.replyTo); err != nil {
			return nil, err
		}
	}
	if opts.replaces != "" {
		if command.Replaces, err = ref.ParseEventID(opts.replaces); err != nil {
			return nil, err
		}
	}
	return command, nil
}
