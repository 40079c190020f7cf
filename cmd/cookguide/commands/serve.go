package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/haivivi/cookguide/pkg/cookserver"
)

var (
	flagServeListen    string
	flagServePolicy    string
	flagServeKnowledge string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve cooking sessions over WebSocket",
	Long: `Serve cooking sessions over WebSocket.

Each client connects to /ws and sends JSON messages:

  {"type":"connect","session":"kitchen-1"}
  {"type":"image","data":"<base64 jpeg>","mime_type":"image/jpeg"}
  {"type":"utterance","text":"is my onion cut right?"}
  {"type":"event","event":"ask_how_to_fix","text":"it's burning"}
  {"type":"tick"} {"type":"reset"} {"type":"disconnect"}

The server replies with outcome, state and error messages, and pushes the
outcomes of scene analysis and idle timeouts as they happen. A session
reconnecting with the same id restores its memory from the configured
backend. GET /healthz reports the number of live sessions.

Examples:
  cookguide serve --listen :8080 --knowledge ./pasta.json
  cookguide -c kitchen serve --knowledge s3://recipes/pasta.json`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagServeListen, "listen", "", "listen address (default: session.yaml listen, or :8080)")
	serveCmd.Flags().StringVar(&flagServePolicy, "policy", "", "policy file (default: built-in)")
	serveCmd.Flags().StringVar(&flagServeKnowledge, "knowledge", "", "video knowledge document: path, http(s) URL or s3://bucket/key")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e, err := openEngine(ctx, engineOptions{
		Policy:    flagServePolicy,
		Knowledge: flagServeKnowledge,
		Models:    true,
		Store:     true,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	defer e.Close()

	srv := cookserver.New(cookserver.Config{
		NewSession: e.newSession,
		QueueSize:  e.session.QueueSize,
		Logger:     logger,
	})
	defer srv.Close()

	addr := firstNonEmpty(flagServeListen, e.session.Listen)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	httpSrv := &http.Server{
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	logger.Info("serving", "addr", ln.Addr().String(), "memory", e.session.Memory.Backend)
	fmt.Fprintf(cmd.OutOrStdout(), "Listening on ws://%s/ws\n", ln.Addr())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpSrv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", "sessions", srv.Sessions())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		// Hijacked websocket connections are not tracked by Shutdown.
		srv.Close()
		return httpSrv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		return err
	}
	if ctx.Err() != nil {
		fmt.Fprintln(os.Stderr, "Stopped.")
	}
	return nil
}
