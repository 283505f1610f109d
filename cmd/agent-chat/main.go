// agent-chat is an interactive terminal client for a conversational video
// agent. By default it opens the streaming session (signaling socket and
// WebRTC presenter stream) and chats over it; --text-only switches to plain
// REST question answering.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/spf13/pflag"

	"github.com/vango-go/agents-lite/internal/dotenv"
	"github.com/vango-go/agents-lite/pkg/config"
	"github.com/vango-go/agents-lite/pkg/core/types"
	"github.com/vango-go/agents-lite/pkg/telemetry"
	agents "github.com/vango-go/agents-lite/sdk"
)

type cliOptions struct {
	ConfigPath  string
	EnvFiles    []string
	AgentID     string
	TextOnly    bool
	MetricsAddr string
	LogLevel    string
	Help        bool
}

func parseArgs(args []string) (cliOptions, error) {
	var opts cliOptions
	fs := pflag.NewFlagSet("agent-chat", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVarP(&opts.ConfigPath, "config", "c", "", "YAML or JSON config file (or AGENTS_CONFIG)")
	fs.StringSliceVar(&opts.EnvFiles, "env-file", []string{".env.local", ".env"}, "dotenv files to load; earlier files win")
	fs.StringVarP(&opts.AgentID, "agent", "a", "", "agent id (or AGENTS_AGENT_ID)")
	fs.BoolVar(&opts.TextOnly, "text-only", false, "chat over REST only, without the video stream")
	fs.StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	fs.StringVar(&opts.LogLevel, "log-level", "", "debug, info, warn or error (or AGENTS_LOG_LEVEL)")
	fs.BoolVarP(&opts.Help, "help", "h", false, "show help")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			opts.Help = true
			return opts, nil
		}
		return cliOptions{}, err
	}
	if rest := fs.Args(); len(rest) > 0 {
		return cliOptions{}, fmt.Errorf("unexpected argument: %s", rest[0])
	}
	return opts, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) error {
	opts, err := parseArgs(args)
	if err != nil {
		return err
	}
	if opts.Help {
		printHelp(errOut)
		return nil
	}

	if err := dotenv.LoadFiles(opts.EnvFiles...); err != nil {
		return err
	}
	cfg, err := config.LoadConfig(opts.ConfigPath, os.Getenv)
	if err != nil {
		return err
	}
	if opts.AgentID != "" {
		cfg.AgentID = opts.AgentID
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	if strings.TrimSpace(cfg.AgentID) == "" {
		return fmt.Errorf("agent id is required (--agent or %s)", config.EnvAgentID)
	}
	auth, err := cfg.Auth()
	if err != nil {
		return err
	}

	logger := newLogger(cfg, errOut)
	metrics := telemetry.NewMetrics("agents")
	if opts.MetricsAddr != "" {
		srv := &http.Server{Addr: opts.MetricsAddr, Handler: metricsMux(metrics), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.Info("serving metrics", "addr", opts.MetricsAddr)
	}

	console := newConsole(out)
	managerOpts := []agents.Option{
		agents.WithAuth(auth),
		agents.WithBaseURL(cfg.APIURL),
		agents.WithWebSocketURL(cfg.WebSocketURL),
		agents.WithRequestTimeout(cfg.RequestTimeout),
		agents.WithConnectTimeout(cfg.ConnectTimeout),
		agents.WithLogger(logger),
		agents.WithObserver(metrics),
		agents.WithContext(ctx),
		agents.WithCallbacks(console.callbacks()),
	}
	if servers := iceServers(cfg.ICEServers); len(servers) > 0 {
		managerOpts = append(managerOpts, agents.WithICEServers(servers...))
	}

	manager, err := agents.NewManager(ctx, cfg.AgentID, managerOpts...)
	if err != nil {
		return fmt.Errorf("load agent %s: %w", cfg.AgentID, err)
	}
	defer manager.Close()

	if opts.TextOnly {
		if err := manager.ChangeMode(ctx, types.ChatModeTextOnly); err != nil {
			return err
		}
	} else if manager.Mode() == types.ChatModeFunctional {
		console.printf("connecting to %s...\n", manager.Agent().DisplayName())
		if err := manager.Connect(ctx); err != nil {
			return fmt.Errorf("connect: %w", err)
		}
	}

	return runREPL(ctx, manager, in, console)
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: cfg.Level()}
	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

func metricsMux(metrics *telemetry.Metrics) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

func iceServers(urls []string) []webrtc.ICEServer {
	var servers []webrtc.ICEServer
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			servers = append(servers, webrtc.ICEServer{URLs: []string{u}})
		}
	}
	return servers
}

func printHelp(w io.Writer) {
	fmt.Fprint(w, `agent-chat — talk to a conversational video agent from the terminal.

Usage:
  agent-chat --agent <id> [--text-only] [--config file] [--metrics-addr :9090]

Credentials come from AGENTS_BEARER_TOKEN, AGENTS_CLIENT_KEY or
AGENTS_API_KEY (user:password), read from the environment or .env files.

Commands inside the session:
  /connect /reconnect /disconnect   manage the streaming session
  /mode functional|text|maintenance switch chat mode
  /speak <text>                     make the presenter say text
  /rate <n> up|down [rating-id]     rate message n of /history
  /unrate <rating-id>               delete a rating
  /history                          print the transcript
  /starters                         print suggested questions
  /quit                             exit
`)
}
