package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

const cliHelp = `Commands:
  /help - Show this help
  /quit - Exit application
Anything else is sent to every peer on the network.`

// lineMode is the plain terminal host: stdin lines become send operations,
// received events are printed as they arrive.
type lineMode struct {
	nickname string
	plugin   *Plugin
	sink     *ChannelSink
	chime    *Chime
	json     bool
	out      io.Writer
}

func (c *lineMode) run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Fprintln(c.out, "Commands: /help for help, /quit to exit")
	for {
		select {
		case <-ctx.Done():
			return nil

		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := c.handleInput(ctx, strings.TrimSpace(line)); quit {
				return nil
			}

		case ev := <-c.sink.Events():
			c.chime.Play()
			c.print(ev)
		}
	}
}

func (c *lineMode) handleInput(ctx context.Context, input string) (quit bool) {
	switch input {
	case "":
	case "/quit":
		return true
	case "/help":
		fmt.Fprintln(c.out, cliHelp)
	default:
		payload, err := json.Marshal(ChatMessage{
			Content:   input,
			Nickname:  c.nickname,
			Timestamp: time.Now().UnixMilli(),
		})
		if err != nil {
			fmt.Fprintf(c.out, "send failed: %v\n", err)
			return false
		}
		if err := c.plugin.Invoke(ctx, "send", payload); err != nil {
			fmt.Fprintf(c.out, "send failed: %v\n", err)
		}
	}
	return false
}

func (c *lineMode) print(ev Event) {
	if c.json {
		line, err := json.Marshal(struct {
			Event   string `json:"event"`
			Payload Event  `json:"payload"`
		}{EventName(ev), ev})
		if err != nil {
			fmt.Fprintf(c.out, "event encoding failed: %v\n", err)
			return
		}
		fmt.Fprintln(c.out, string(line))
		return
	}
	if rm, ok := ev.(ReceivedMessage); ok {
		fmt.Fprintf(c.out, "[%s %s] %s\n", rm.Nickname, formatClock(rm.Timestamp), rm.Content)
	}
}

// formatClock renders a Unix millisecond timestamp as local hh:mm:ss.
func formatClock(ms int64) string {
	return time.UnixMilli(ms).Format("15:04:05")
}
