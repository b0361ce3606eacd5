package commands

import (
	"fmt"

	"github.com/acorn-io/acorn-domains/pkg/advisor"
	"github.com/acorn-io/acorn-domains/pkg/detector"
	"github.com/acorn-io/acorn-domains/pkg/model"
	"github.com/acorn-io/acorn-domains/pkg/resolver"
	"github.com/acorn-io/acorn-domains/pkg/validator"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// engine holds the DNS components shared by the api-server and check commands.
type engine struct {
	target    model.HostingTarget
	resolver  *resolver.Resolver
	detector  *detector.Detector
	advisor   *advisor.Advisor
	validator *validator.Validator
}

func engineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "target-cname",
			Usage:    "Hostname custom domains should CNAME to",
			EnvVars:  []string{"ACORN_TARGET_CNAME", "TARGET_CNAME"},
			Required: true,
		},
		&cli.StringFlag{
			Name:     "target-ip",
			Usage:    "IPv4 address apex domains should point an A record at",
			EnvVars:  []string{"ACORN_TARGET_IP", "TARGET_IP"},
			Required: true,
		},
		&cli.StringFlag{
			Name:    "doh-endpoint",
			Usage:   "DNS-over-HTTPS JSON endpoint used for lookups",
			EnvVars: []string{"ACORN_DOH_ENDPOINT", "DOH_ENDPOINT"},
			Value:   resolver.DefaultEndpoint,
		},
		&cli.DurationFlag{
			Name:    "doh-timeout",
			Usage:   "Timeout for a single DNS-over-HTTPS request",
			EnvVars: []string{"ACORN_DOH_TIMEOUT", "DOH_TIMEOUT"},
			Value:   resolver.DefaultTimeout,
		},
		&cli.StringFlag{
			Name:    "providers-file",
			Usage:   "YAML file with extra DNS provider signatures, checked before the built in ones",
			EnvVars: []string{"ACORN_PROVIDERS_FILE", "PROVIDERS_FILE"},
		},
	}
}

func newEngine(c *cli.Context, log *logrus.Entry) (*engine, error) {
	target := model.HostingTarget{
		CNAME:   c.String("target-cname"),
		ARecord: c.String("target-ip"),
	}

	r := resolver.New(resolver.Config{
		Endpoint: c.String("doh-endpoint"),
		Timeout:  c.Duration("doh-timeout"),
		Log:      log.WithField("component", "resolver"),
	})

	var sigs []detector.Signature
	if file := c.String("providers-file"); file != "" {
		loaded, err := detector.LoadSignatures(file)
		if err != nil {
			return nil, fmt.Errorf("failed to load provider signatures: %w", err)
		}
		log.Infof("Loaded %d provider signatures from %s", len(loaded), file)
		sigs = loaded
	}

	return &engine{
		target:   target,
		resolver: r,
		detector: detector.New(r, sigs...),
		advisor:  advisor.New(target),
		validator: validator.New(validator.Config{
			Checker:     r,
			Target:      target,
			RaceTimeout: validator.DefaultRaceTimeout,
			Log:         log.WithField("component", "validator"),
		}),
	}, nil
}
