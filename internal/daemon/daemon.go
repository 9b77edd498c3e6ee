// internal/daemon/daemon.go
package daemon

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-zeromq/zmq4"

	"github.com/iMithrellas/mqcast/internal/wire"
)

// RunWatch subscribes to endpoint and prints every packet whose topic starts
// with topic until interrupted.
func RunWatch(endpoint, topic string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return watch(ctx, endpoint, topic, os.Stdout)
}

func watch(ctx context.Context, endpoint, topic string, out io.Writer) error {
	sub := zmq4.NewSub(ctx)
	defer sub.Close()

	if err := sub.Dial(endpoint); err != nil {
		return fmt.Errorf("dial %s: %w", endpoint, err)
	}
	if err := sub.SetOption(zmq4.OptionSubscribe, topic); err != nil {
		return fmt.Errorf("subscribe %q: %w", topic, err)
	}
	slog.Info("watching", slog.String("endpoint", endpoint), slog.String("topic", topic))

	return receive(ctx, sub, out, newRecvBackOff())
}

type receiver interface {
	Recv() (zmq4.Msg, error)
}

func newRecvBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// receive prints packets from r until ctx ends, pausing after each failed
// receive according to b.
func receive(ctx context.Context, r receiver, out io.Writer, b backoff.BackOff) error {
	for {
		msg, err := r.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			wait := b.NextBackOff()
			slog.Warn("receive failed", slog.Any("error", err), slog.Duration("retry_in", wait))
			if wait == backoff.Stop {
				return fmt.Errorf("receive: %w", err)
			}
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil
			case <-t.C:
			}
			continue
		}
		b.Reset()
		for _, frame := range msg.Frames {
			fmt.Fprintln(out, describe(frame))
		}
	}
}

// describe renders one packet as a single line.
func describe(frame []byte) string {
	topic, payload, err := wire.Parse(frame)
	if err != nil {
		return fmt.Sprintf("malformed packet (%d bytes): %v", len(frame), err)
	}
	if wire.IsHeartbeat(topic, payload) {
		return "heartbeat"
	}
	return fmt.Sprintf("%s [%d] %q", topic, len(payload), payload)
}
