package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-auth-session/sessions"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var metricsAddr string
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Validate sessions periodically and print changes until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, opts.config, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			displayAppname(cmd, opts.config.GetAppName())

			if metricsAddr == "" {
				metricsAddr = opts.config.GetMetricsAddr()
			}
			if interval <= 0 {
				interval = opts.config.GetSweepInterval()
			}

			out := cmd.OutOrStdout()
			color := opts.config.GetEnv() == "DEV"
			unsubscribe := a.manager.Subscribe(func(e sessions.ChangeEvent) {
				printEvent(out, time.Now(), e, color)
			})
			defer unsubscribe()

			if metricsAddr != "" {
				server := &http.Server{
					Addr:              metricsAddr,
					Handler:           promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
					ReadHeaderTimeout: 10 * time.Second,
				}
				go listenAndServe(server)
				defer shutdown(server)
			}

			fmt.Fprintf(out, "Watching %d sessions, sweeping every %s (%s)\n",
				len(a.manager.GetSessions()), interval, a.manager.ValidationMode())
			<-a.manager.StartValidation(ctx, interval)
			return nil
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address, overrides METRICS_ADDR")
	cmd.Flags().DurationVar(&interval, "interval", 0, "sweep interval, overrides SESSION_SWEEP_INTERVAL")
	return cmd
}

func listenAndServe(server *http.Server) {
	log.Info().Str("addr", server.Addr).Msg("Metrics listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Err(err).Str("addr", server.Addr).Msg("Metrics server stopped")
	}
}

func shutdown(server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Err(err).Msg("Metrics server shutdown")
	}
}

func displayAppname(cmd *cobra.Command, appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	fmt.Fprintln(cmd.OutOrStdout(), myFigure.String())
}
