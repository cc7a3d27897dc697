// Command screenreflect-producer hosts the producer-side core: the Packet
// Multiplexer and Transport Server, plus mDNS advertisement and a
// Prometheus metrics endpoint. Capture and encoding are external
// collaborators (spec §1); this binary bridges them over stdin using the
// same wire framing the network protocol uses, so any process that can
// emit VideoConfig/Video/AudioConfig/Audio/Dimension packets in that format
// (an encoder pipeline, a test harness) can feed the core without the core
// ever depending on a concrete capture/encoder implementation.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/qubzes/screenreflect/internal/bufpool"
	"github.com/qubzes/screenreflect/internal/discovery"
	"github.com/qubzes/screenreflect/internal/logger"
	"github.com/qubzes/screenreflect/internal/metrics"
	"github.com/qubzes/screenreflect/internal/producer/multiplex"
	"github.com/qubzes/screenreflect/internal/producer/transport"
	"github.com/qubzes/screenreflect/internal/wire"
)

var version = "dev"

func main() {
	v := newViper()
	root := &cobra.Command{
		Use:     "screenreflect-producer",
		Short:   "Low-latency screen mirroring producer",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(loadConfig(v))
		},
	}

	flags := root.Flags()
	flags.String("listen-addr", ":47631", "TCP address the transport server listens on")
	flags.String("advertise-instance", hostnameOrDefault(), "mDNS instance name to advertise")
	flags.String("metrics-addr", ":9477", "address for the Prometheus /metrics endpoint")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("keyframe-grace", "2s", "how long to wait for a key frame after a client connects before logging a diagnostic")
	flags.Int("max-payload-len", 10<<20, "maximum accepted packet payload length in bytes, for stdin ingest")
	flags.Bool("no-advertise", false, "disable mDNS advertisement")
	_ = v.BindPFlags(flags)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg config) error {
	logger.Init()
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		logger.Warn("invalid log level, using default", "level", cfg.LogLevel)
	}

	grace, err := time.ParseDuration(cfg.KeyFrameGrace)
	if err != nil {
		grace = multiplex.DefaultKeyFrameGraceWindow
	}

	mux := multiplex.New(multiplex.WithKeyFrameGraceWindow(grace))

	srv := transport.New(transport.Config{ListenAddr: cfg.ListenAddr}, mux)
	srv.OnClientConnected = func() {
		metrics.ActiveSessions.Inc()
		mux.OnClientConnected(func() {
			logger.Warn("no key frame submitted within grace window after client connect")
			metrics.KeyFrameTimeouts.Inc()
		})
	}
	if err := srv.Start(); err != nil {
		return fmt.Errorf("start transport server: %w", err)
	}
	logger.Info("producer listening", "addr", srv.Addr().String())

	var advertiser *discovery.Advertiser
	if !cfg.NoAdvertise {
		if port, ok := tcpPort(srv.Addr()); ok {
			advertiser, err = discovery.Advertise(cfg.AdvertiseInstance, port)
			if err != nil {
				logger.Warn("mDNS advertisement failed, continuing without discovery", "error", err)
			}
		}
	}

	metricsSrv := startMetricsServer(cfg.MetricsAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go ingestStdin(mux, cfg.MaxPayloadLen)

	<-ctx.Done()
	logger.Info("shutdown signal received")

	if advertiser != nil {
		advertiser.Shutdown()
	}
	_ = srv.Stop()
	if metricsSrv != nil {
		_ = metricsSrv.Close()
	}
	return nil
}

func tcpPort(addr net.Addr) (int, bool) {
	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		return 0, false
	}
	return tcpAddr.Port, true
}

func startMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics server stopped", "error", err)
		}
	}()
	return srv
}

// ingestStdin reads wire-framed packets from stdin and submits them into
// the multiplexer, acting as the bridge point where an external
// capture/encode process feeds the core (spec §1: capture/encode are
// external collaborators).
func ingestStdin(mux *multiplex.Multiplexer, maxPayloadLen int) {
	r := wire.NewReader(os.Stdin, maxPayloadLen)
	for {
		pkt, err := r.ReadPacket()
		if err != nil {
			logger.Info("stdin ingest ended", "error", err)
			return
		}
		if !pkt.Kind.Known() {
			continue
		}
		isKey := pkt.Kind == wire.KindVideo && len(pkt.Payload) > 0 && pkt.Payload[0]&0x01 == 0x01
		mux.Submit(pkt.Kind, pkt.Payload, isKey)
		// Submit copies everything it retains (caches and queued frames
		// alike), so the pooled buffer ReadPacket handed us can go back to
		// the pool as soon as Submit returns.
		bufpool.Put(pkt.Payload)
	}
}
