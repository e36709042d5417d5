package cmd

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/tenx/certdash/dashboard"
)

var serveFlags struct {
	addr    string
	tlsCert string
	tlsKey  string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the live dashboard API",
	Long: `Serves the derived dashboard view, accepts intents over HTTP and streams
state changes and journaled intents as server-sent events.`,
	Args: cobra.NoArgs,
	RunE: withRuntime(runServe),
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveFlags.addr, "addr", "127.0.0.1:8080", "Address to listen on")
	serveCmd.Flags().StringVar(&serveFlags.tlsCert, "tls-cert", "", "Path to TLS certificate file")
	serveCmd.Flags().StringVar(&serveFlags.tlsKey, "tls-key", "", "Path to TLS key file")
}

func newServeRouter(rt *runtime) http.Handler {
	srv := dashboard.NewServer(rt.store,
		dashboard.WithViewOptions(rt.view),
		dashboard.WithLogger(rt.logger),
		dashboard.WithEventSource(rt.bus.Subscriber, rt.journal.Topic()),
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Mount("/", srv.Router())
	return r
}

func runServe(cmd *cobra.Command, rt *runtime, args []string) error {
	if (serveFlags.tlsCert == "") != (serveFlags.tlsKey == "") {
		return errors.New("--tls-cert and --tls-key must be given together")
	}
	var tlsConfig *tls.Config
	if serveFlags.tlsCert != "" {
		cert, err := tls.LoadX509KeyPair(serveFlags.tlsCert, serveFlags.tlsKey)
		if err != nil {
			return fmt.Errorf("failed to load TLS key pair: %w", err)
		}
		tlsConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
	}

	server := &http.Server{
		Addr:              serveFlags.addr,
		Handler:           newServeRouter(rt),
		TLSConfig:         tlsConfig,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		// No WriteTimeout: event streams stay open. They end with the
		// command's context.
		BaseContext: func(net.Listener) context.Context { return cmd.Context() },
	}

	done := make(chan error, 1)
	go func() {
		var err error
		if tlsConfig != nil {
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			done <- fmt.Errorf("server failed: %w", err)
			return
		}
		done <- nil
	}()

	out := cmd.OutOrStdout()
	printBanner(out)
	fmt.Fprintf(out, "Serving dashboard on %s (api: %s)...\n", serveFlags.addr, rt.cfg.APIURL)

	select {
	case <-cmd.Context().Done():
		fmt.Fprintln(out, "\nShutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-done:
		return err
	}
}
