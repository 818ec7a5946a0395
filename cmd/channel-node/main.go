package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"Broadcast-Apps/internal/actor"
	"Broadcast-Apps/internal/channelapi"
	"Broadcast-Apps/internal/codec"
	"Broadcast-Apps/internal/config"
	"Broadcast-Apps/internal/core/network"
	"Broadcast-Apps/internal/identity"
	"Broadcast-Apps/internal/logging"
	"Broadcast-Apps/internal/mirror"
	"Broadcast-Apps/internal/telemetry"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "YAML config file")
	addr := pflag.String("addr", "", "http listen address (overrides HTTP_ADDR)")
	transport := pflag.String("transport", "", "transport: memory or libp2p (overrides TRANSPORT)")
	name := pflag.String("name", "", "channel name (overrides CHANNEL_NAME)")
	owner := pflag.String("owner", "", "owner identity, hex (overrides CHANNEL_OWNER)")
	mirrorMode := pflag.Bool("mirror", false, "follow a channel hosted elsewhere instead of hosting one")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	if *addr != "" {
		cfg.HTTP.Addr = *addr
	}
	if *transport != "" {
		cfg.Transport.Kind = *transport
	}
	if *name != "" {
		cfg.Channel.Name = *name
	}
	if *owner != "" {
		cfg.Channel.Owner = *owner
	}
	if *mirrorMode {
		cfg.Channel.Mirror = true
	}
	if err := cfg.Validate(); err != nil {
		logrus.WithError(err).Fatal("invalid config")
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		logrus.WithError(err).Fatal("configure logging")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("channel node stopped")
	}
}

func run(ctx context.Context, cfg config.Config, logger *logrus.Logger) error {
	provider, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		OTLPEndpoint:   cfg.Telemetry.Endpoint,
		OTLPInsecure:   cfg.Telemetry.Insecure,
		MetricInterval: cfg.Telemetry.Interval,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(shutdownCtx)
	}()
	metrics, err := telemetry.NewMetrics(provider.Meter("Broadcast-Apps/channel"))
	if err != nil {
		return err
	}

	wire, err := codec.ByName(cfg.Channel.Codec)
	if err != nil {
		return err
	}

	ownerID, ownerSet, err := cfg.Channel.OwnerID()
	if err != nil {
		return err
	}

	var ps network.PubSub
	switch cfg.Transport.Kind {
	case config.TransportLibp2p:
		p2p, err := network.NewLibp2pPubSub(ctx, network.Libp2pOptions{
			ListenAddrs:     cfg.Transport.ListenAddrs,
			Bootstrap:       cfg.Transport.Bootstrap,
			Rendezvous:      cfg.Transport.Rendezvous,
			EnableMDNS:      cfg.Transport.EnableMDNS,
			IdentityKeyFile: cfg.Transport.IdentityKeyFile,
			Logger:          logger,
		})
		if err != nil {
			return err
		}
		for _, a := range p2p.ListenAddrs() {
			logger.WithField("addr", a).Info("libp2p listening")
		}
		if !ownerSet {
			ownerID = identity.FromPeer(p2p.PeerID())
		}
		ps = p2p
	default:
		ps = network.NewMemoryPubSub()
	}
	defer ps.Close()

	topics := actor.Topics{Prefix: cfg.Transport.Rendezvous}
	mux := http.NewServeMux()
	var done <-chan struct{}
	if cfg.Channel.Mirror {
		m, err := mirror.Follow(ps, wire, topics, logger)
		if err != nil {
			return err
		}
		defer m.Close()
		channelapi.NewReadOnlyServer(m, topics, ps, wire, logger).Register(mux)
		logger.WithField("topic", topics.Events()).Info("mirroring channel")
	} else {
		a, err := host(cfg, ps, wire, topics, ownerID, metrics, logger)
		if err != nil {
			return err
		}
		if done, err = a.Start(ctx); err != nil {
			return err
		}
		channelapi.NewServer(a, ps, wire, logger).Register(mux)
	}
	return serveHTTP(ctx, cfg.HTTP.Addr, mux, done, logger)
}

func host(cfg config.Config, ps network.PubSub, wire codec.Codec, topics actor.Topics,
	ownerID identity.ID, metrics *telemetry.Metrics, logger *logrus.Logger) (*actor.Actor, error) {
	a := actor.New(actor.Options{
		PubSub:               ps,
		Codec:                wire,
		Topics:               topics,
		Capacity:             cfg.Channel.HistoryCapacity,
		Logger:               logger,
		Metrics:              metrics,
		RateLimit:            cfg.Channel.RateLimit,
		RateBurst:            cfg.Channel.RateBurst,
		DeliveryWorkers:      cfg.Channel.DeliveryWorkers,
		TrustTransportOrigin: cfg.Transport.Kind == config.TransportLibp2p,
	})
	if err := a.Init(ownerID, cfg.Channel.Name, cfg.Channel.Description); err != nil {
		return nil, err
	}
	return a, nil
}

// serveHTTP runs the API until ctx ends, then waits for the actor loop in done (if any).
func serveHTTP(ctx context.Context, addr string, mux *http.ServeMux, done <-chan struct{}, logger *logrus.Logger) error {
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", addr).Info("channel node listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("signal caught. shutting down...")
	case err := <-errCh:
		return err
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("http shutdown")
	}
	if done != nil {
		<-done
	}
	return nil
}
