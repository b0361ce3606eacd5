package commands

import (
	"context"

	"github.com/acorn-io/acorn-domains/pkg/advisor"
	"github.com/acorn-io/acorn-domains/pkg/apiserver"
	"github.com/acorn-io/acorn-domains/pkg/backend"
	"github.com/acorn-io/acorn-domains/pkg/db"
	"github.com/acorn-io/acorn-domains/pkg/probe"
	"github.com/acorn-io/acorn-domains/pkg/verifier"
	"github.com/acorn-io/acorn-domains/pkg/version"
	"github.com/rancher/wrangler/pkg/signals"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"gorm.io/gorm"
)

type apiServerCommand struct{}

func (s *apiServerCommand) Execute(c *cli.Context) error {
	ctx := signals.SetupSignalHandler(context.Background())

	log := logrus.WithField("command", "api-server")

	log.Infof("version: %v", version.Get())

	database, err := db.New(ctx, c.String("sql-dialect"), c.String("sql-dsn"), &gorm.Config{
		Logger: db.NewLogger(c.String("log-level")),
	})
	if err != nil {
		return err
	}

	eng, err := newEngine(c, log)
	if err != nil {
		return err
	}

	orchestrator := verifier.New(verifier.Config{
		Store:     database,
		Validator: eng.validator,
		Prober: probe.New(probe.Config{
			TLSTimeout:          c.Duration("tls-timeout"),
			ReachabilityTimeout: c.Duration("reachability-timeout"),
			Log:                 log.WithField("component", "probe"),
		}),
		MaxRetries:    c.Int("max-retries"),
		MaxSSLRetries: c.Int("max-ssl-retries"),
		Log:           log.WithField("component", "verifier"),
	})

	var publisher *backend.Publisher
	if zoneID := c.String("route53-zone-id"); zoneID != "" {
		publisher, err = backend.NewRoute53Publisher(ctx, zoneID, c.Duration("record-ttl"))
		if err != nil {
			return err
		}
		log.WithField("zone", publisher.ZoneID()).Info("Publishing records to route53")
	}

	back := backend.NewBackend(backend.Config{
		Database:      database,
		Target:        eng.target,
		Detector:      eng.detector,
		Validator:     eng.validator,
		Verifier:      orchestrator,
		Publisher:     publisher,
		SweepInterval: c.Duration("sweep-interval"),
		MaxRetries:    c.Int("max-retries"),
	})

	apiServer := apiserver.NewAPIServer(ctx, log, c.Int("port"))

	if err := apiServer.Start(back); err != nil {
		return err
	}

	return nil
}

func serverCommand() *cli.Command {
	cmd := apiServerCommand{}

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:    "port",
			Usage:   "Port for the HTTP Server Port",
			EnvVars: []string{"ACORN_PORT", "PORT"},
			Value:   4315,
		},
		&cli.StringFlag{
			Name:    "sql-dialect",
			Usage:   "The type of sql to use, sqlite or mysql",
			EnvVars: []string{"ACORN_SQL_DIALECT", "SQL_DIALECT"},
			Value:   "sqlite",
		},
		&cli.StringFlag{
			Name:    "sql-dsn",
			Usage:   "The DSN to use to connect to",
			EnvVars: []string{"ACORN_SQL_DSN", "SQL_DSN"},
			Value:   "file:domains.sqlite?_pragma=foreign_keys(1)",
		},
		&cli.IntFlag{
			Name:    "max-retries",
			Usage:   "How many times a failing DNS check is retried before the domain is marked failed",
			EnvVars: []string{"ACORN_MAX_RETRIES", "MAX_RETRIES"},
			Value:   verifier.DefaultMaxRetries,
		},
		&cli.IntFlag{
			Name:    "max-ssl-retries",
			Usage:   "How many times the certificate check is retried once DNS is verified",
			EnvVars: []string{"ACORN_MAX_SSL_RETRIES", "MAX_SSL_RETRIES"},
			Value:   verifier.DefaultMaxSSLRetries,
		},
		&cli.DurationFlag{
			Name:    "tls-timeout",
			Usage:   "Timeout for the HTTPS certificate check",
			EnvVars: []string{"ACORN_TLS_TIMEOUT", "TLS_TIMEOUT"},
			Value:   probe.DefaultTLSTimeout,
		},
		&cli.DurationFlag{
			Name:    "reachability-timeout",
			Usage:   "Timeout for the reachability check",
			EnvVars: []string{"ACORN_REACHABILITY_TIMEOUT", "REACHABILITY_TIMEOUT"},
			Value:   probe.DefaultReachabilityTimeout,
		},
		&cli.DurationFlag{
			Name:    "sweep-interval",
			Usage:   "How often pending and failed domains are re-verified",
			EnvVars: []string{"ACORN_SWEEP_INTERVAL", "SWEEP_INTERVAL"},
			Value:   backend.DefaultSweepInterval,
		},
		&cli.StringFlag{
			Name:    "route53-zone-id",
			Usage:   "Route53 hosted zone to publish records into. Record publishing is disabled when empty",
			EnvVars: []string{"ACORN_ROUTE53_ZONE_ID", "ROUTE53_ZONE_ID"},
		},
		&cli.DurationFlag{
			Name:    "record-ttl",
			Usage:   "TTL of records published to route53",
			EnvVars: []string{"ACORN_RECORD_TTL", "RECORD_TTL"},
			Value:   advisor.RecordTTL,
		},
	}
	flags = append(flags, engineFlags()...)

	return &cli.Command{
		Name:   "api-server",
		Usage:  "custom domain api server",
		Action: cmd.Execute,
		Flags:  append(flags, GlobalFlags()...),
		Before: Before,
	}
}
