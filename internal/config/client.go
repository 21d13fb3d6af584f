package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/pflag"
)

// Client configures cmd/client. Flags override the environment.
type Client struct {
	ServerURL      string        `env:"WHITEBOARD_SERVER_URL" envDefault:"ws://localhost:8080/api/ws"`
	Room           string        `env:"WHITEBOARD_ROOM" envDefault:"main"`
	Name           string        `env:"WHITEBOARD_NAME"`
	Avatar         string        `env:"WHITEBOARD_AVATAR"`
	Color          string        `env:"WHITEBOARD_COLOR" envDefault:"#000000"`
	Board          string        `env:"WHITEBOARD_BOARD"`
	Export         string        `env:"WHITEBOARD_EXPORT"`
	Discover       bool          `env:"WHITEBOARD_DISCOVER"`
	Service        string        `env:"WHITEBOARD_MDNS_SERVICE" envDefault:"_whiteboard._tcp"`
	Timeout        time.Duration `env:"WHITEBOARD_DISCOVER_TIMEOUT" envDefault:"3s"`
	Demo           bool          `env:"WHITEBOARD_DEMO"`
	Duration       time.Duration `env:"WHITEBOARD_DURATION"`
	LogLevel       string        `env:"WHITEBOARD_LOG_LEVEL" envDefault:"info"`
	CursorLimit    int           `env:"WHITEBOARD_CURSOR_LIMIT" envDefault:"30"`
	// MaxFrame must not exceed the server's read_limit.
	MaxFrame       int           `env:"WHITEBOARD_MAX_FRAME" envDefault:"32768"`
	StrokeInterval time.Duration `env:"WHITEBOARD_STROKE_INTERVAL" envDefault:"20ms"`
}

func LoadClient(args []string) (*Client, error) {
	var cfg Client
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	fs := pflag.NewFlagSet("client", pflag.ContinueOnError)
	fs.StringVarP(&cfg.ServerURL, "server", "s", cfg.ServerURL, "websocket url of the server")
	fs.StringVarP(&cfg.Room, "room", "r", cfg.Room, "room to join")
	fs.StringVarP(&cfg.Name, "name", "n", cfg.Name, "display name")
	fs.StringVar(&cfg.Avatar, "avatar", cfg.Avatar, "avatar url")
	fs.StringVarP(&cfg.Color, "color", "c", cfg.Color, "stroke color")
	fs.StringVar(&cfg.Board, "board", cfg.Board, "JSON board file to start from")
	fs.StringVar(&cfg.Export, "export", cfg.Export, "write the board to this PDF on exit")
	fs.BoolVar(&cfg.Discover, "discover", cfg.Discover, "find the server over mDNS")
	fs.StringVar(&cfg.Service, "service", cfg.Service, "mDNS service type")
	fs.DurationVar(&cfg.Timeout, "discover-timeout", cfg.Timeout, "how long to browse")
	fs.BoolVar(&cfg.Demo, "demo", cfg.Demo, "draw a demo stroke after joining")
	fs.DurationVarP(&cfg.Duration, "duration", "d", cfg.Duration, "leave after this long (0 waits for a signal)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	fs.IntVar(&cfg.CursorLimit, "cursor-limit", cfg.CursorLimit, "cursor updates per second")
	fs.IntVar(&cfg.MaxFrame, "max-frame", cfg.MaxFrame, "largest frame to send, in bytes")
	fs.DurationVar(&cfg.StrokeInterval, "stroke-interval", cfg.StrokeInterval, "how long stroke points gather before sending")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}
	return &cfg, nil
}
