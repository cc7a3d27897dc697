// Command screenreflect-consumer hosts the consumer-side core: the
// Transport Client and Stream Parser, plus mDNS browsing and a Prometheus
// metrics endpoint. Decoding and rendering are external collaborators
// (spec §1); this binary bridges them by re-framing every parsed
// VideoConfig/Video/AudioConfig/Audio packet onto stdout using the same
// wire protocol, so an external decode/render process can consume them
// without the core ever depending on a concrete decoder. Dimension packets
// are not written to stdout; they go to the dimension observer, which logs
// each change.
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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/qubzes/screenreflect/internal/consumer/parser"
	"github.com/qubzes/screenreflect/internal/consumer/transport"
	"github.com/qubzes/screenreflect/internal/discovery"
	"github.com/qubzes/screenreflect/internal/logger"
	"github.com/qubzes/screenreflect/internal/observer"
	"github.com/qubzes/screenreflect/internal/wire"
)

var version = "dev"

func main() {
	v := newViper()
	root := &cobra.Command{
		Use:     "screenreflect-consumer",
		Short:   "Low-latency screen mirroring consumer",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(loadConfig(v))
		},
	}

	flags := root.Flags()
	flags.String("endpoint", "", "producer host:port, bypassing discovery")
	flags.Bool("discover-only", false, "browse mDNS and connect to the first producer found")
	flags.String("metrics-addr", ":9478", "address for the Prometheus /metrics endpoint")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.Int("max-payload-len", 10<<20, "maximum accepted packet payload length in bytes")
	flags.String("dial-timeout", "5s", "TCP dial timeout")
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	endpoint, err := resolveEndpoint(ctx, cfg)
	if err != nil {
		return err
	}

	dialTimeout, err := time.ParseDuration(cfg.DialTimeout)
	if err != nil {
		dialTimeout = transport.DefaultDialTimeout
	}

	client := transport.New(transport.Config{Endpoint: endpoint, DialTimeout: dialTimeout})
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer client.Close()
	logger.Info("consumer connected", "endpoint", endpoint)

	metricsSrv := startMetricsServer(cfg.MetricsAddr)
	defer metricsSrv.Close()

	dimensions := observer.NewPublisher[wire.Dimension]()
	sub := dimensions.Subscribe(4)
	defer sub.Unsubscribe()
	go logDimensionChanges(sub.C)

	out := wire.NewWriter(os.Stdout)
	video := &forwardingVideoDecoder{out: out}
	audio := &forwardingAudioDecoder{out: out}

	reader := wire.NewReader(client.Conn(), cfg.MaxPayloadLen)
	p := parser.New(reader, parser.Dispatcher{Video: video, Audio: audio, Dimension: dimensions})
	parser.ResetDecoders(parser.Dispatcher{Video: video, Audio: audio})

	done := make(chan error, 1)
	go func() { done <- p.Run(nil) }()

	select {
	case err := <-done:
		if err != nil {
			client.Fail(err)
			return fmt.Errorf("session ended: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		return nil
	}
}

func resolveEndpoint(ctx context.Context, cfg config) (string, error) {
	if cfg.Endpoint != "" && !cfg.DiscoverOnly {
		return cfg.Endpoint, nil
	}
	browseCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	candidates, err := discovery.Browse(browseCtx)
	if err != nil {
		return "", fmt.Errorf("browse: %w", err)
	}
	select {
	case cand, ok := <-candidates:
		if !ok {
			return "", errors.New("no producers discovered before timeout")
		}
		return fmt.Sprintf("%s:%d", cand.Host, cand.Port), nil
	case <-browseCtx.Done():
		return "", errors.New("no producers discovered before timeout")
	}
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

func logDimensionChanges(ch <-chan wire.Dimension) {
	for dim := range ch {
		logger.Info("dimension changed", "width", dim.Width, "height", dim.Height)
	}
}

// forwardingVideoDecoder implements decode.VideoDecoder by re-framing every
// payload onto stdout rather than decoding it, so an external decode/render
// process downstream of this binary receives the same wire protocol the
// network connection carried.
type forwardingVideoDecoder struct {
	out *wire.Writer
}

func (f *forwardingVideoDecoder) Configure(initBytes []byte) error {
	return f.out.WritePacket(wire.KindVideoConfig, initBytes)
}

func (f *forwardingVideoDecoder) Decode(payload []byte, isKey bool) error {
	return f.out.WritePacket(wire.KindVideo, payload)
}

func (f *forwardingVideoDecoder) Reset() {}

// forwardingAudioDecoder mirrors forwardingVideoDecoder for the audio path.
type forwardingAudioDecoder struct {
	out *wire.Writer
}

func (f *forwardingAudioDecoder) Configure(initBytes []byte) error {
	return f.out.WritePacket(wire.KindAudioConfig, initBytes)
}

func (f *forwardingAudioDecoder) Decode(payload []byte) error {
	return f.out.WritePacket(wire.KindAudio, payload)
}

func (f *forwardingAudioDecoder) Reset() {}
