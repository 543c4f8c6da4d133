// Command roomrelay-client is an interactive terminal client for the relay.
//
//	roomrelay-client [-url ws://localhost:9003/chat] <user_id> <channel_id> <room_id>
//
// Every line read from stdin is sent to the room; "/quit" disconnects.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/luciancaetano/roomrelay"
)

const quitCommand = "/quit"

func main() {
	url := flag.String("url", fmt.Sprintf("ws://localhost:%d%s", roomrelay.DefaultPort, roomrelay.Endpoint), "relay WebSocket URL")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [-url URL] <user_id> <channel_id> <room_id>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 3 {
		flag.Usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	if err := run(ctx, *url, flag.Arg(0), flag.Arg(1), flag.Arg(2), os.Stdin, os.Stdout); err != nil {
		logger.Error("client", "url", *url, "err", err)
		os.Exit(1)
	}
}

// syncWriter serializes output from the reader and writer loops.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, format, args...)
}

// run joins the room and relays lines from in until "/quit", EOF or ctx ends.
func run(ctx context.Context, url, userID, channelID, roomID string, in io.Reader, out io.Writer) error {
	dialer := &websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	w := &syncWriter{w: out}
	send := func(msg map[string]string) error {
		data, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return fmt.Errorf("send: %w", err)
		}
		w.Printf(">>> Sent: %s\n", data)
		return nil
	}

	if err := send(map[string]string{
		"action":     roomrelay.ActionJoin,
		"user_id":    userID,
		"channel_id": channelID,
		"room_id":    roomID,
	}); err != nil {
		return err
	}

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.ClosePolicyViolation) {
					w.Printf("*** Connection closed: %v\n", err)
				}
				return
			}
			w.Printf("<<< Received: %s\n", data)
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-closed:
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return nil
		case <-ctx.Done():
			return disconnect(send, closed)
		case line, ok := <-lines:
			if !ok || strings.EqualFold(strings.TrimSpace(line), quitCommand) {
				return disconnect(send, closed)
			}
			if err := send(map[string]string{"action": roomrelay.ActionSend, "payload": line}); err != nil {
				return err
			}
		}
	}
}

// disconnect asks the relay to close the connection and waits briefly for it.
func disconnect(send func(map[string]string) error, closed <-chan struct{}) error {
	if err := send(map[string]string{"action": roomrelay.ActionDisconnect}); err != nil {
		return err
	}
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
	}
	return nil
}
