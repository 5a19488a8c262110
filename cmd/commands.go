package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/amirphl/financeiq/internal/backend"
	"github.com/amirphl/financeiq/internal/indicator"
	"github.com/amirphl/financeiq/internal/overlay"
	"github.com/amirphl/financeiq/internal/scheduler"
	"github.com/amirphl/financeiq/internal/server"
	"github.com/amirphl/financeiq/internal/tfutils"
)

type loader func() (*app, error)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newServeCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the overlay API and the watchlist refresher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			defer a.Close()
			a.instrument()

			ctx, cancel := signalContext()
			defer cancel()

			var sched *scheduler.Scheduler
			if len(a.cfg.Refresh.Watchlist) > 0 {
				sched = scheduler.New(ctx, a.overlays, a.notifier, a.cfg.Refresh.Watchlist, a.cfg.Refresh.Range,
					a.logger.With().Str("component", "scheduler").Logger())
				if err := sched.Register(a.cfg.Refresh.Schedule); err != nil {
					return err
				}
				sched.Start()
				defer sched.Stop()
			}

			srv, err := server.New(a.cfg, a.overlays, serviceVersion)
			if err != nil {
				return fmt.Errorf("failed to build server: %w", err)
			}

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info().Str("addr", a.cfg.Server.Addr).Str("version", serviceVersion).Msg("starting http server")
				errCh <- srv.ListenAndServe(a.cfg.Server.Addr)
			}()

			select {
			case err := <-errCh:
				return fmt.Errorf("server run failure: %w", err)
			case <-ctx.Done():
				a.logger.Info().Msg("received signal, shutting down")
			}
			if err := srv.Shutdown(); err != nil {
				a.logger.Error().Err(err).Msg("server shutdown failure")
			}
			a.logger.Info().Msg("goodbye")
			return nil
		},
	}
}

func newOverlayCmd(load loader) *cobra.Command {
	var (
		rng        string
		indicators string
		padded     bool
		heikinAshi bool
	)
	cmd := &cobra.Command{
		Use:   "overlay <ticker>",
		Short: "Compute chart overlays for a ticker and print them as JSON",
		Example: `  financeiq overlay AAPL
  financeiq overlay msft --range 6M --indicators sma20,xema50,bb,rsi,macd,fib`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			defer a.Close()

			if indicators == "" {
				indicators = strings.Join(a.cfg.Overlay.Defaults, ",")
			}
			specs, err := indicator.ParseSpecs(indicators)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("padded") {
				padded = a.cfg.Overlay.Padded
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Server.RequestTimeout)
			defer cancel()
			resp, err := a.overlays.Overlays(ctx, overlay.Request{
				Ticker:     args[0],
				Range:      rng,
				Specs:      specs,
				Padded:     padded,
				HeikinAshi: heikinAshi,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringVarP(&rng, "range", "r", tfutils.DefaultRange,
		"look-back range, one of "+strings.Join(tfutils.GetSupportedRanges(), ", "))
	cmd.Flags().StringVarP(&indicators, "indicators", "i", "", "comma-separated overlay ids (default from config)")
	cmd.Flags().BoolVar(&padded, "padded", true, "null-pad SMA and Bollinger warm-up")
	cmd.Flags().BoolVar(&heikinAshi, "heikin-ashi", false, "return Heikin-Ashi bars instead of OHLC")
	return cmd
}

func newChatCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "chat <ticker> <message>",
		Short: "Ask the research assistant about a ticker and stream the answer",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signalContext()
			defer cancel()
			messages := []backend.Message{{Role: "user", Content: strings.Join(args[1:], " ")}}
			if err := a.client.Chat(ctx, args[0], messages, cmd.OutOrStdout()); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout())
			return err
		},
	}
}

func newAgentsCmd(load loader) *cobra.Command {
	var conclusionOnly bool
	cmd := &cobra.Command{
		Use:   "agents <ticker>",
		Short: "Stream the multi-agent analysis of a ticker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signalContext()
			defer cancel()
			out := cmd.OutOrStdout()
			return a.client.AgentAnalysis(ctx, args[0], func(ev backend.AgentEvent) error {
				if conclusionOnly && ev.Event != backend.EventConclusion {
					return nil
				}
				agent := ev.Agent
				if agent == "" {
					agent = "-"
				}
				_, err := fmt.Fprintf(out, "[%s] %s: %s\n", ev.Event, agent, ev.Content)
				if err == nil && ev.Event == backend.EventConclusion && conclusionOnly {
					return backend.ErrStopStream
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&conclusionOnly, "conclusion", false, "print only the final conclusion")
	return cmd
}

func newRefreshCmd(load loader) *cobra.Command {
	var (
		tickers []string
		rng     string
	)
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Fetch and store price history for the watchlist once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			defer a.Close()

			if len(tickers) == 0 {
				tickers = a.cfg.Refresh.Watchlist
			}
			if len(tickers) == 0 {
				return errors.New("empty watchlist: set refresh.watchlist or pass --tickers")
			}
			if rng == "" {
				rng = a.cfg.Refresh.Range
			}

			ctx, cancel := signalContext()
			defer cancel()
			sched := scheduler.New(ctx, a.overlays, a.notifier, tickers, rng, a.logger)
			res := sched.RunOnce(ctx)
			for _, t := range res.Refreshed {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\tok\n", t)
			}
			for t, err := range res.Failed {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\tfailed: %v\n", t, err)
			}
			return res.Err()
		},
	}
	cmd.Flags().StringSliceVarP(&tickers, "tickers", "t", nil, "tickers to refresh (default from config)")
	cmd.Flags().StringVarP(&rng, "range", "r", "", "look-back range (default from config)")
	return cmd
}

// research gathers the side-panel data of the dashboard for one ticker.
type research struct {
	News       *backend.News       `json:"news,omitempty"`
	Prediction *backend.Prediction `json:"prediction,omitempty"`
	MonteCarlo *backend.MonteCarlo `json:"monteCarlo,omitempty"`
	Divergence *backend.Divergence `json:"divergence,omitempty"`
	Peers      []backend.Peer      `json:"peers,omitempty"`
	Technicals map[string]any      `json:"technicals,omitempty"`
	Errors     map[string]string   `json:"errors,omitempty"`
}

func newResearchCmd(load loader) *cobra.Command {
	var days, sims, newsLimit int
	cmd := &cobra.Command{
		Use:   "research <ticker>",
		Short: "Print news, forecasts, divergence and peers for a ticker as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*a.cfg.Backend.Timeout)
			defer cancel()
			ticker := args[0]

			var (
				out research
				mu  sync.Mutex
				wg  sync.WaitGroup
			)
			out.Errors = make(map[string]string)
			run := func(name string, fn func() error) {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := fn(); err != nil {
						mu.Lock()
						out.Errors[name] = err.Error()
						mu.Unlock()
					}
				}()
			}
			run("news", func() (err error) { out.News, err = a.client.News(ctx, ticker, newsLimit); return })
			run("prediction", func() (err error) { out.Prediction, err = a.client.Predict(ctx, ticker, days); return })
			run("monteCarlo", func() (err error) { out.MonteCarlo, err = a.client.MonteCarlo(ctx, ticker, days, sims); return })
			run("divergence", func() (err error) { out.Divergence, err = a.client.Divergence(ctx, ticker); return })
			run("peers", func() (err error) { out.Peers, err = a.client.Peers(ctx, ticker); return })
			run("technicals", func() (err error) { out.Technicals, err = a.client.Technicals(ctx, ticker); return })
			wg.Wait()

			if len(out.Errors) == 6 {
				return fmt.Errorf("backend returned no research for %s", ticker)
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "forecast horizon in days")
	cmd.Flags().IntVar(&sims, "sims", 1000, "Monte-Carlo simulations")
	cmd.Flags().IntVar(&newsLimit, "news", 10, "number of news items")
	return cmd
}

func newSearchCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Look up tickers by name or symbol",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Backend.Timeout+5*time.Second)
			defer cancel()
			results, err := a.client.Search(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), results)
		},
	}
}
