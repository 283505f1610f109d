package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/vango-go/agents-lite/pkg/core/types"
	agents "github.com/vango-go/agents-lite/sdk"
)

// session is the part of *agents.Manager the REPL drives.
type session interface {
	Connect(ctx context.Context) error
	Reconnect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	ChangeMode(ctx context.Context, mode types.ChatMode) error
	Chat(ctx context.Context, text string, appendToChat bool) (*types.ChatResponse, error)
	Rate(ctx context.Context, messageID string, score int, ratingID string) (*types.Rating, error)
	DeleteRate(ctx context.Context, ratingID string) error
	Speak(ctx context.Context, script types.Script) (*types.SendStreamResponse, error)
	Messages() []types.Message
	StarterMessages() []string
	Mode() types.ChatMode
}

var errQuit = errors.New("quit")

// console serializes terminal output from the REPL and from manager
// callbacks.
type console struct {
	mu        sync.Mutex
	out       io.Writer
	streaming bool
}

func newConsole(out io.Writer) *console {
	return &console{out: out}
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.streaming {
		fmt.Fprintln(c.out)
		c.streaming = false
	}
	fmt.Fprintf(c.out, format, args...)
}

func (c *console) callbacks() agents.Callbacks {
	return agents.Callbacks{
		OnNewChat: func(chatID string) {
			c.printf("[chat %s]\n", chatID)
		},
		OnModeChange: func(mode types.ChatMode) {
			c.printf("[mode %s]\n", mode)
		},
		OnConnectionStateChange: func(state types.ConnectionState) {
			c.printf("[connection %s]\n", state)
		},
		OnChatEvents: func(progress types.ChatProgress, content string) {
			if progress != types.ChatProgressPartial {
				return
			}
			c.mu.Lock()
			defer c.mu.Unlock()
			c.streaming = true
			fmt.Fprint(c.out, content)
		},
	}
}

type command struct {
	name string
	args []string
	text string
}

// parseCommand splits a slash command into its name and arguments. Any
// other line is a chat message.
func parseCommand(line string) command {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return command{text: line}
	}
	fields := strings.Fields(line)
	name := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	rest := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))
	return command{name: name, args: fields[1:], text: rest}
}

func parseMode(raw string) (types.ChatMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "functional", "stream", "streaming":
		return types.ChatModeFunctional, nil
	case "text", "textonly", "text-only":
		return types.ChatModeTextOnly, nil
	case "maintenance":
		return types.ChatModeMaintenance, nil
	}
	return "", fmt.Errorf("unknown mode %q (want functional, text or maintenance)", raw)
}

func parseScore(raw string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "up", "+1", "1", "+":
		return 1, nil
	case "down", "-1", "-":
		return -1, nil
	}
	return 0, fmt.Errorf("unknown score %q (want up or down)", raw)
}

func runREPL(ctx context.Context, s session, in io.Reader, c *console) error {
	c.printf("Type a message, or /quit to stop.\n")
	scanner := bufio.NewScanner(in)
	for {
		c.printf("> ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			c.printf("\n")
			return nil
		}
		if strings.TrimSpace(scanner.Text()) == "" {
			continue
		}
		err := execute(ctx, s, parseCommand(scanner.Text()), c)
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.printf("error: %v\n", err)
		}
	}
}

func execute(ctx context.Context, s session, cmd command, c *console) error {
	switch cmd.name {
	case "":
		resp, err := s.Chat(ctx, cmd.text, false)
		if err != nil {
			return err
		}
		c.printf("%s\n", resp.Result)
		return nil
	case "quit", "exit":
		return errQuit
	case "connect":
		return s.Connect(ctx)
	case "reconnect":
		return s.Reconnect(ctx)
	case "disconnect":
		return s.Disconnect(ctx)
	case "mode":
		if len(cmd.args) != 1 {
			c.printf("mode: %s\n", s.Mode())
			return nil
		}
		mode, err := parseMode(cmd.args[0])
		if err != nil {
			return err
		}
		return s.ChangeMode(ctx, mode)
	case "speak":
		_, err := s.Speak(ctx, types.TextScript{Input: cmd.text})
		return err
	case "rate":
		if len(cmd.args) < 2 || len(cmd.args) > 3 {
			return errors.New("usage: /rate <n> up|down [rating-id]")
		}
		n, err := strconv.Atoi(cmd.args[0])
		if err != nil {
			return fmt.Errorf("invalid message number %q", cmd.args[0])
		}
		score, err := parseScore(cmd.args[1])
		if err != nil {
			return err
		}
		msgs := s.Messages()
		messageID := ""
		if n >= 1 && n <= len(msgs) {
			messageID = msgs[n-1].ID
		}
		var ratingID string
		if len(cmd.args) == 3 {
			ratingID = cmd.args[2]
		}
		rating, err := s.Rate(ctx, messageID, score, ratingID)
		if err != nil {
			return err
		}
		c.printf("rated (%s)\n", rating.ID)
		return nil
	case "unrate":
		if len(cmd.args) != 1 {
			return errors.New("usage: /unrate <rating-id>")
		}
		return s.DeleteRate(ctx, cmd.args[0])
	case "history":
		for i, msg := range s.Messages() {
			c.printf("%3d %-9s %s\n", i+1, msg.Role, msg.Content)
		}
		return nil
	case "starters":
		for _, starter := range s.StarterMessages() {
			c.printf("- %s\n", starter)
		}
		return nil
	}
	return fmt.Errorf("unknown command /%s", cmd.name)
}
