package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/your-username/syslog-sender/internal/collector"
	"github.com/your-username/syslog-sender/internal/config"
	"github.com/your-username/syslog-sender/internal/monitoring"
	"github.com/your-username/syslog-sender/internal/relay"
	"github.com/your-username/syslog-sender/internal/websocket"
	"github.com/your-username/syslog-sender/pkg/agent"
	"github.com/your-username/syslog-sender/pkg/syslog"
)

const shutdownTimeout = 30 * time.Second

func newRootCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "syslog-sender",
		Short:         "Send RFC3164 syslog messages over UDP",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(
		newSendCommand(cfg.Target),
		newPipeCommand(cfg.Target),
		newListenCommand(cfg.Listen),
		newRelayCommand(cfg),
		newVersionCommand(),
	)
	return cmd
}

type sendOptions struct {
	host     string
	port     int
	facility string
	level    string
	hostname string
}

func newSendCommand(target config.TargetConfig) *cobra.Command {
	opts := sendOptions{
		host:     target.Host,
		port:     target.Port,
		facility: target.Facility,
		level:    target.Level,
		hostname: target.Hostname,
	}

	cmd := &cobra.Command{
		Use:   "send [OPTIONS] TEXT...",
		Short: "Send one message as a single UDP datagram",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(opts, strings.Join(args, " "))
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.host, "host", "H", opts.host, "Syslog server name or address")
	flags.IntVarP(&opts.port, "port", "p", opts.port, "Syslog server UDP port")
	flags.StringVarP(&opts.facility, "facility", "f", opts.facility, "Facility keyword or code (kern, user, ..., local7)")
	flags.StringVarP(&opts.level, "level", "l", opts.level, "Level keyword or code (emerg, ..., debug)")
	flags.StringVar(&opts.hostname, "hostname", opts.hostname, "HOSTNAME header (default: machine name)")

	return cmd
}

func runSend(opts sendOptions, text string) error {
	facility, err := syslog.ParseFacility(opts.facility)
	if err != nil {
		return err
	}
	level, err := syslog.ParseLevel(opts.level)
	if err != nil {
		return err
	}

	var clientOpts []syslog.Option
	if opts.hostname != "" {
		clientOpts = append(clientOpts, syslog.WithHostname(opts.hostname))
	}

	if err := syslog.SendSyslogMessage(opts.host, opts.port, int(facility), int(level), text, clientOpts...); err != nil {
		return err
	}

	log.Info().
		Str("host", opts.host).
		Int("port", opts.port).
		Int("priority", syslog.Priority(facility, level)).
		Msg("Syslog message sent")
	return nil
}

func newPipeCommand(target config.TargetConfig) *cobra.Command {
	opts := sendOptions{
		host:     target.Host,
		port:     target.Port,
		facility: target.Facility,
		level:    target.Level,
		hostname: target.Hostname,
	}
	var batch int

	cmd := &cobra.Command{
		Use:   "pipe [OPTIONS]",
		Short: "Send each line read from stdin as a syslog message",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipe(opts, batch, bufio.NewScanner(cmd.InOrStdin()))
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.host, "host", "H", opts.host, "Syslog server name or address")
	flags.IntVarP(&opts.port, "port", "p", opts.port, "Syslog server UDP port")
	flags.StringVarP(&opts.facility, "facility", "f", opts.facility, "Facility keyword or code")
	flags.StringVarP(&opts.level, "level", "l", opts.level, "Level keyword or code")
	flags.StringVar(&opts.hostname, "hostname", opts.hostname, "HOSTNAME header (default: machine name)")
	flags.IntVar(&batch, "batch", 100, "Lines buffered before a flush")

	return cmd
}

func runPipe(opts sendOptions, batch int, scanner *bufio.Scanner) error {
	facility, err := syslog.ParseFacility(opts.facility)
	if err != nil {
		return err
	}
	level, err := syslog.ParseLevel(opts.level)
	if err != nil {
		return err
	}

	agentCfg := agent.DefaultConfig()
	agentCfg.Server = opts.host
	agentCfg.Port = opts.port
	agentCfg.Facility = facility
	agentCfg.Hostname = opts.hostname
	agentCfg.BatchSize = batch

	a, err := agent.New(agentCfg)
	if err != nil {
		return err
	}
	a.Start()

	lines := 0
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := a.Log(level, line); err != nil {
			a.Stop()
			return err
		}
		lines++
	}

	stopErr := a.Stop()
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	if stopErr != nil {
		return stopErr
	}

	log.Info().Int("lines", lines).Str("host", opts.host).Int("port", opts.port).Msg("Input forwarded")
	return nil
}

func newListenCommand(listen config.ListenConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Receive and print syslog datagrams",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListen(cmd.Context(), listen)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&listen.Addr, "addr", listen.Addr, "UDP address to listen on")
	flags.StringVar(&listen.HTTPAddr, "http", listen.HTTPAddr, "HTTP address for the websocket tail and metrics (disabled when empty)")

	return cmd
}

func runListen(ctx context.Context, listen config.ListenConfig) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := newRegistry()
	metrics := monitoring.NewMetrics(reg)
	hub := websocket.NewHub(metrics)

	var tail *websocket.Hub
	if listen.HTTPAddr != "" {
		tail = hub
	}

	col := collector.New(listen.Addr, newEntryHandler(tail), collector.WithMetrics(metrics))
	if err := col.Start(); err != nil {
		return fmt.Errorf("failed to start collector: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return col.Stop()
	})

	if listen.HTTPAddr != "" {
		health := monitoring.NewHealthMonitor("syslog-collector", version, func() map[string]string {
			return map[string]string{"listen": col.Addr().String()}
		})

		mux := http.NewServeMux()
		mux.Handle("/ws", websocket.HandleWebSocket(hub))
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		mux.Handle("/health", health.HealthHandler())

		g.Go(func() error {
			hub.Run(ctx)
			return nil
		})
		serveHTTP(ctx, g, &http.Server{Addr: listen.HTTPAddr, Handler: mux})
	}

	return g.Wait()
}

// newEntryHandler logs every received entry and forwards it to tail when
// tail is not nil
func newEntryHandler(tail *websocket.Hub) collector.Handler {
	return func(e collector.Entry) {
		event := log.Info().
			Str("source", e.Source).
			Str("format", e.Format).
			Str("facility", e.Facility).
			Str("level", e.Level).
			Str("hostname", e.Hostname)
		if sentAt, err := e.Time(e.ReceivedAt); err == nil {
			event = event.Time("sent_at", sentAt)
		}
		event.Msg(e.Text)

		if tail != nil {
			tail.Broadcast(e)
		}
	}
}

func newRelayCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Serve an HTTP API that forwards messages as syslog datagrams",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelay(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.Relay.Addr, "addr", cfg.Relay.Addr, "HTTP address to listen on")
	flags.StringVarP(&cfg.Target.Host, "host", "H", cfg.Target.Host, "Default syslog server")
	flags.IntVarP(&cfg.Target.Port, "port", "p", cfg.Target.Port, "Default syslog server UDP port")

	return cmd
}

func runRelay(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := newRegistry()
	r, err := relay.New(cfg, monitoring.NewMetrics(reg), reg, version)
	if err != nil {
		return err
	}
	defer r.Close()

	log.Info().
		Str("addr", cfg.Relay.Addr).
		Str("target", cfg.Target.Host).
		Int("port", cfg.Target.Port).
		Msg("Relay started")

	g, ctx := errgroup.WithContext(ctx)
	serveHTTP(ctx, g, &http.Server{Addr: cfg.Relay.Addr, Handler: r.Router()})
	return g.Wait()
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// serveHTTP runs srv in g and shuts it down gracefully once ctx is done
func serveHTTP(ctx context.Context, g *errgroup.Group, srv *http.Server) {
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()

		log.Info().Msg("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		return srv.Shutdown(shutdownCtx)
	})
}
