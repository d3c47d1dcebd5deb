package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"syscall"
	"time"

	"crypto/tls"
	"os/signal"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/go-pluto/orset/comm"
	"github.com/go-pluto/orset/config"
	"github.com/go-pluto/orset/crypto"
	"github.com/go-pluto/orset/node"
	"github.com/go-pluto/orset/storage"
	"github.com/go-pluto/orset/tag"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
)

// Functions

func newServeCmd(flags *globalFlags) *cobra.Command {

	return &cobra.Command{
		Use:   "serve",
		Short: "Run a replica as described by the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {

			logger := initLogger(flags.loglevel)

			conf, err := loadConfig(flags)
			if err != nil {
				level.Error(logger).Log("msg", "failed to load the config", "err", err)
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runReplica(ctx, log.With(logger, "replica", conf.Name), conf)
		},
	}
}

// loadConfig reads the config file and applies
// env overrides on top of it.
func loadConfig(flags *globalFlags) (*config.Config, error) {

	conf, err := config.LoadConfig(flags.config)
	if err != nil {
		return nil, err
	}

	env, err := config.LoadEnv(flags.envFile)
	if err != nil {
		return nil, err
	}
	env.Apply(conf)

	return conf, conf.Validate()
}

// internalTLS returns the mutual TLS config of
// conf or nil if conf runs without TLS.
func internalTLS(conf *config.Config) (*tls.Config, error) {

	if !conf.TLS.Enabled() {
		return nil, nil
	}

	return crypto.NewInternalTLSConfig(conf.TLS.CertLoc, conf.TLS.KeyLoc, conf.TLS.RootCertLoc)
}

// runReplica serves the replica described by conf
// until ctx is cancelled or one of its servers fails.
func runReplica(ctx context.Context, logger log.Logger, conf *config.Config) error {

	if err := conf.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tlsConfig, err := internalTLS(conf)
	if err != nil {
		return err
	}

	m := NewOrsetMetrics(conf.PrometheusAddr)

	var store storage.Store

	if conf.StatePath != "" {

		store, err = storage.Open(conf.StatePath)
		if err != nil {
			return err
		}
		store = storage.NewLoggingStore(store, log.With(logger, "component", "storage"))
		defer store.Close()
	}

	var svc node.Service

	svc, err = node.NewService(conf.Name, tag.NewGenerator(uint16(conf.ReplicaID)), store)
	if err != nil {
		return err
	}
	svc = node.NewMetricsService(svc, m.Node.Adds, m.Node.Removes, m.Node.Merges, m.Node.Members)
	svc = node.NewLoggingService(svc, log.With(logger, "component", "node"))

	sender := comm.NewSender(logger, svc, comm.SenderConfig{
		Name:        conf.Name,
		Peers:       conf.Peers,
		Interval:    conf.SyncInterval.Duration,
		DialOptions: comm.SenderOptions(tlsConfig),
		Pushes:      m.Sender.Pushes,
		Failures:    m.Sender.Failures,
	})
	defer sender.Close()

	lis, err := net.Listen("tcp", conf.ListenAddr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", conf.ListenAddr)
	}

	grpcSrv := grpc.NewServer(comm.ReceiverOptions(tlsConfig)...)
	comm.RegisterReplicationServer(grpcSrv, comm.NewReceiver(log.With(logger, "component", "receiver"), svc, sender.Acknowledge))

	errc := make(chan error, 2)

	go func() {
		errc <- errors.Wrap(grpcSrv.Serve(lis), "replication server stopped")
	}()

	var httpSrv *http.Server

	if conf.HTTPAddr != "" {

		httpSrv = &http.Server{
			Addr:              conf.HTTPAddr,
			Handler:           newRouter(logger, svc, m.Handler()),
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errc <- errors.Wrap(err, "admin HTTP server stopped")
			}
		}()
	}

	go runPromHTTP(logger, conf.PrometheusAddr, m.Handler())
	go sender.Run(ctx)

	level.Info(logger).Log(
		"msg", "replica running",
		"listen_addr", conf.ListenAddr,
		"http_addr", conf.HTTPAddr,
		"peers", len(conf.Peers),
		"tls", tlsConfig != nil,
	)

	select {
	case <-ctx.Done():
		level.Info(logger).Log("msg", "shutting down replica")
	case err = <-errc:
		level.Error(logger).Log("msg", "replica failed", "err", err)
	}

	cancel()

	if httpSrv != nil {

		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()

		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			level.Warn(logger).Log("msg", "failed to shut down admin HTTP server", "err", err)
		}
	}

	grpcSrv.GracefulStop()

	return err
}
