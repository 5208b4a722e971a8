// Package client is a line-oriented terminal client for the radon chat room.
//
// Every line read from the input is sent as one text frame; every frame
// received is written to the output followed by a newline. The first line
// sent is the requested name, either Config.Name or the first input line.
package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	defaultHandshakeTimeout = 5 * time.Second
	defaultCloseWait        = time.Second
	writeWait               = 5 * time.Second
)

var errSessionEnded = errors.New("session ended")

// Config describes how to reach the server.
type Config struct {
	URL    string
	Name   string
	Origin string

	HandshakeTimeout time.Duration
	// CloseWait bounds how long to wait for the server to finish after the
	// input is exhausted.
	CloseWait time.Duration
}

// Run connects to cfg.URL and relays lines between the connection and in/out
// until the server ends the session, in is exhausted or ctx is canceled.
// A session that ends normally returns nil.
func Run(ctx context.Context, cfg Config, in io.Reader, out io.Writer) error {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.CloseWait <= 0 {
		cfg.CloseWait = defaultCloseWait
	}

	logger := log.With().Str("component", "client").Str("url", cfg.URL).Logger()

	header := http.Header{}
	if cfg.Origin != "" {
		header.Set("Origin", cfg.Origin)
	}
	dialer := websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, cfg.URL, header)
	if resp != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return errors.Wrapf(err, "dial %s: %s", cfg.URL, resp.Status)
		}
		return errors.Wrapf(err, "dial %s", cfg.URL)
	}
	defer func() { _ = conn.Close() }()
	logger.Debug().Msg("Connected")

	if cfg.Name != "" {
		if err := writeLine(conn, cfg.Name); err != nil {
			return errors.Wrap(err, "send name")
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	stop := context.AfterFunc(gctx, func() { _ = conn.Close() })
	defer stop()

	lines := scanLines(gctx, in)
	g.Go(func() error { return receive(gctx, conn, out) })
	g.Go(func() error { return send(gctx, conn, lines, cfg.CloseWait) })

	err = g.Wait()
	if errors.Is(err, errSessionEnded) || (err != nil && ctx.Err() != nil) {
		logger.Debug().Msg("Session ended")
		return nil
	}
	return err
}

func receive(ctx context.Context, conn *websocket.Conn, out io.Writer) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				return errSessionEnded
			}
			return errors.Wrap(err, "read")
		}
		if _, err := fmt.Fprintln(out, string(data)); err != nil {
			return errors.Wrap(err, "write output")
		}
	}
}

// send forwards input lines. On end of input it starts the close handshake
// and gives the server closeWait to hang up.
func send(ctx context.Context, conn *websocket.Conn, lines <-chan scanResult, closeWait time.Duration) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case res, ok := <-lines:
			if !ok {
				return hangUp(ctx, conn, closeWait)
			}
			if res.err != nil {
				return errors.Wrap(res.err, "read input")
			}
			if err := writeLine(conn, res.line); err != nil {
				return errors.Wrap(err, "send")
			}
		}
	}
}

func hangUp(ctx context.Context, conn *websocket.Conn, closeWait time.Duration) error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		return errSessionEnded
	}

	select {
	case <-ctx.Done():
	case <-time.After(closeWait):
	}
	return errSessionEnded
}

func writeLine(conn *websocket.Conn, line string) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, []byte(line))
}

type scanResult struct {
	line string
	err  error
}

// scanLines reads in on its own goroutine so a blocked terminal read never
// holds up shutdown. The channel is closed at end of input.
func scanLines(ctx context.Context, in io.Reader) <-chan scanResult {
	lines := make(chan scanResult)
	emit := func(res scanResult) bool {
		select {
		case lines <- res:
			return true
		case <-ctx.Done():
			return false
		}
	}
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			if !emit(scanResult{line: scanner.Text()}) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			emit(scanResult{err: err})
		}
	}()
	return lines
}
