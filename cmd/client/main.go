// Command client is a headless whiteboard member: it joins a room, logs what
// the other members do, and can draw a demo stroke or export the board.
package main

import (
	"context"
	"errors"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Whiteboard/internal/adapters/discovery"
	"github.com/dkeye/Whiteboard/internal/config"
	"github.com/dkeye/Whiteboard/internal/domain"
	"github.com/dkeye/Whiteboard/internal/export"
	"github.com/dkeye/Whiteboard/internal/protocol"
	"github.com/dkeye/Whiteboard/internal/session"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.LoadClient(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if cfg.Duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, cfg.Duration)
		defer cancel()
	}

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		log.Fatal().Err(err).Msg("client stopped")
	}
}

func run(ctx context.Context, cfg *config.Client) error {
	url := cfg.ServerURL
	if cfg.Discover {
		found, err := discovery.Browse(ctx, cfg.Service, cfg.Timeout)
		if err != nil {
			return err
		}
		if len(found) == 0 {
			return errors.New("no whiteboard server found on the network")
		}
		url = found[0].URL()
		log.Info().Str("module", "client").Str("instance", found[0].Instance).Str("url", url).Msg("discovered server")
	}

	conn, err := session.Dial(ctx, url, nil)
	if err != nil {
		return err
	}

	var who *domain.Identity
	if cfg.Name != "" {
		id, err := domain.NewIdentity(cfg.Name, cfg.Avatar)
		if err != nil {
			log.Warn().Err(err).Str("module", "client").Msg("identity rejected, joining as guest")
		} else {
			who = &id
		}
	}

	opts := session.Options{
		Room:           domain.RoomID(cfg.Room),
		Identity:       who,
		Color:          cfg.Color,
		CursorLimit:    cfg.CursorLimit,
		StrokeInterval: cfg.StrokeInterval,
		MaxFrame:       cfg.MaxFrame,
		OnPresence: func(ps []domain.Participant) {
			log.Info().Str("module", "client").Int("members", len(ps)).Interface("participants", ps).Msg("presence")
		},
		OnCursor: func(m protocol.CursorMoved) {
			log.Debug().Str("module", "client").Str("user", string(m.UserID)).Float64("x", m.X).Float64("y", m.Y).Msg("cursor")
		},
		OnCanvas: func(s domain.Snapshot) {
			log.Debug().Str("module", "client").Int("strokes", len(s.Strokes)).Msg("canvas")
		},
	}
	if cfg.Board != "" {
		opts.Loader = session.FileLoader(cfg.Board)
	}

	// The session outlives ctx long enough to take the final snapshot.
	runCtx, stop := context.WithCancel(context.Background())
	defer stop()
	c := session.NewController(conn, opts)
	errc := make(chan error, 1)
	go func() { errc <- c.Run(runCtx) }()

	if cfg.Demo {
		if err := drawDemo(c); err != nil {
			log.Warn().Err(err).Str("module", "client").Msg("demo stroke")
		}
	}

	var final domain.Snapshot
	var runErr error
	select {
	case runErr = <-errc:
	case <-ctx.Done():
		final, _ = c.Snapshot()
		stop()
		runErr = <-errc
	}
	if cfg.Export != "" {
		if len(final.Strokes) == 0 && final.Image == "" {
			log.Warn().Str("module", "client").Msg("exporting an empty board")
		}
		if err := export.WriteFile(cfg.Export, final); err != nil {
			return err
		}
		log.Info().Str("module", "client").Str("path", cfg.Export).Int("strokes", len(final.Strokes)).Msg("exported")
	}
	return runErr
}

// drawDemo draws one circle, moving the cursor along with the pen.
func drawDemo(c *session.Controller) error {
	const (
		cx, cy, r = 200.0, 200.0, 80.0
		steps     = 36
	)
	if _, err := c.BeginStroke(cx+r, cy); err != nil {
		return err
	}
	for i := 1; i <= steps; i++ {
		a := 2 * math.Pi * float64(i) / steps
		x, y := cx+r*math.Cos(a), cy+r*math.Sin(a)
		if err := c.ExtendStroke(x, y); err != nil {
			return err
		}
		if err := c.MoveCursor(x, y); err != nil {
			return err
		}
		time.Sleep(15 * time.Millisecond)
	}
	return c.EndStroke()
}
