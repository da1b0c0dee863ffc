package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode"

	chatview "github.com/bnema/cuedesk/internal/adapters/render/chat"
	"github.com/bnema/cuedesk/internal/application"
	"github.com/bnema/cuedesk/internal/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

const replHelp = `Commands:
  /clear          forget this session
  /audit [n]      show the last n executed actions
  /mode MODE      switch between auto and offline
  /status         show mode, reachability and model
  /quit           leave`

func newReplCmd(app *app) *cobra.Command {
	var (
		sessionID   string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			engine, err := app.engine(ctx)
			if err != nil {
				return err
			}
			if err := engine.Start(ctx); err != nil {
				return fmt.Errorf("start scheduler: %w", err)
			}

			if metricsAddr == "" {
				metricsAddr = app.config.GetString("metrics.addr")
			}
			if metricsAddr != "" {
				stop, err := serveMetrics(app, metricsAddr)
				if err != nil {
					return err
				}
				defer stop()
			}

			r := &repl{app: app, engine: engine, session: sessionID, out: cmd.OutOrStdout()}
			return r.run(ctx, cmd.InOrStdin())
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", domain.DefaultSessionID, "Session id")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	return cmd
}

type repl struct {
	app     *app
	engine  *application.Orchestrator
	session string
	out     io.Writer
}

func (r *repl) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	_, _ = fmt.Fprintln(r.out, "cuedesk ready. /help lists commands.")

	for {
		_, _ = fmt.Fprint(r.out, "> ")
		if !scanner.Scan() {
			_, _ = fmt.Fprintln(r.out)
			return scanner.Err()
		}

		line := sanitizeForTerminal(strings.TrimSpace(scanner.Text()))
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			quit, err := r.command(ctx, line)
			if err != nil {
				_, _ = fmt.Fprintf(r.out, "error: %v\n", err)
			}
			if quit {
				return nil
			}
			continue
		}

		for event := range r.engine.ChatStream(ctx, line, r.session) {
			_, _ = fmt.Fprint(r.out, chatview.Event(event))
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

func (r *repl) command(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		_, _ = fmt.Fprintln(r.out, replHelp)
	case "/clear":
		r.engine.ClearSession(ctx, r.session)
		_, _ = fmt.Fprintf(r.out, "Session %q cleared.\n", r.session)
	case "/audit":
		limit := 10
		if len(fields) > 1 {
			n, err := strconv.Atoi(fields[1])
			if err != nil || n <= 0 {
				return false, fmt.Errorf("invalid audit limit %q", fields[1])
			}
			limit = n
		}
		output, err := chatview.RenderAudit(r.engine.AuditLog(limit), chatview.RenderOptions{Now: r.app.now()})
		if err != nil {
			return false, err
		}
		_, _ = fmt.Fprintln(r.out, output)
	case "/mode":
		if len(fields) < 2 {
			return false, errors.New("usage: /mode auto|offline")
		}
		mode := domain.Mode(fields[1])
		settings, err := r.engine.SetConfig(ctx, domain.SettingsPatch{Mode: &mode})
		if err != nil {
			return false, err
		}
		_, _ = fmt.Fprintf(r.out, "Mode set to %s.\n", settings.Mode)
	case "/status":
		output, err := chatview.RenderStatus(chatview.StatusView{
			Settings:       r.engine.Config(),
			Reachability:   r.engine.Reachability(),
			ActiveSessions: r.engine.ActiveSessions(),
			AuditEntries:   r.engine.AuditLen(),
		})
		if err != nil {
			return false, err
		}
		_, _ = fmt.Fprintln(r.out, output)
	default:
		return false, fmt.Errorf("unknown command %s (try /help)", fields[0])
	}
	return false, nil
}

// serveMetrics exposes the app registry until the returned stop is called.
func serveMetrics(app *app, addr string) (func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen for metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}))
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.log.Warn().Err(err).Msg("metrics listener stopped")
		}
	}()
	app.log.Info().Str("addr", listener.Addr().String()).Msg("serving metrics")

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}, nil
}

func sanitizeForTerminal(value string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, value)
}
