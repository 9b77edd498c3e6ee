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

	"golang.org/x/sync/errgroup"

	"github.com/iMithrellas/mqcast/internal/config"
	"github.com/iMithrellas/mqcast/internal/mq"
)

const (
	shutdownTimeout = 5 * time.Second
	statsInterval   = 30 * time.Second
)

// RunDaemon binds a publisher, feeds it from the configured producer and
// blocks until the producer ends or a shutdown signal arrives.
func RunDaemon(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.Default().With(slog.String("component", "publisher"))
	// the transport outlives ctx so Shutdown can finish the batch in flight
	opts := append(cfg.ServerOptions(), mq.WithLogger(logger))
	srv := mq.New(opts...)
	if err := srv.Init(cfg.URL, cfg.Confirm); err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			logger.Error("shutdown incomplete", slog.Any("error", err))
		}
	}()

	return serve(ctx, cfg, srv, os.Stdin, logger)
}

// serve runs the producer until it ends or ctx is cancelled. When the
// producer finishes on its own, queued messages get up to shutdownTimeout to
// go out before the caller shuts the server down.
func serve(ctx context.Context, cfg config.Config, srv *mq.Server, stdin io.Reader, logger *slog.Logger) error {
	gctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(gctx)
	g.Go(func() error {
		// a finished producer ends the daemon
		defer cancel()
		return produce(gctx, cfg, srv, stdin)
	})
	g.Go(func() error {
		reportStats(gctx, logger, srv, statsInterval)
		return nil
	})

	err := g.Wait()
	if err == nil && ctx.Err() == nil {
		dctx, dcancel := context.WithTimeout(ctx, shutdownTimeout)
		defer dcancel()
		poll := cfg.IdleWait
		if poll <= 0 {
			poll = mq.DefaultIdleWait
		}
		if derr := drain(dctx, srv, poll); derr != nil {
			logger.Warn("queue not drained", slog.Int64("pending", srv.Stats().Pending()), slog.Any("error", derr))
		}
	}
	logger.Info("daemon shutting down", slog.Any("stats", srv.Stats()))
	return err
}

// drain waits until every published message has been sent or dropped.
func drain(ctx context.Context, srv *mq.Server, poll time.Duration) error {
	t := time.NewTicker(poll)
	defer t.Stop()
	for srv.Stats().Pending() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return nil
}

func produce(ctx context.Context, cfg config.Config, pub publisher, stdin io.Reader) error {
	switch cfg.Mode {
	case config.ModeTicker:
		return runTicker(ctx, pub, cfg.Topic, cfg.Interval)
	case config.ModeStdin:
		return runLines(ctx, pub, cfg.Topic, stdin)
	case config.ModeInteractive:
		return runInteractive(ctx, pub, cfg.Topic)
	default:
		return fmt.Errorf("mode %q does not publish", cfg.Mode)
	}
}

func reportStats(ctx context.Context, logger *slog.Logger, srv *mq.Server, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			st := srv.Stats()
			logger.Info("publisher stats",
				slog.Uint64("server_id", uint64(srv.ID())),
				slog.Int64("enqueued", st.Enqueued),
				slog.Int64("sent", st.Sent),
				slog.Int64("sent_bytes", st.SentBytes),
				slog.Int64("heartbeats", st.Heartbeats),
				slog.Int64("send_errors", st.SendErrors),
				slog.Int64("dropped", st.Dropped))
		}
	}
}
