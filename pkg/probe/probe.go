package probe

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/acorn-io/acorn-domains/pkg/metrics"
	"github.com/sirupsen/logrus"
)

const (
	DefaultTLSTimeout          = 5 * time.Second
	DefaultReachabilityTimeout = 10 * time.Second

	kindTLS          = "tls"
	kindReachability = "reachability"
)

// Result of a single HTTPS probe. Valid means the server completed an HTTP
// response over TLS, whatever the status code.
type Result struct {
	Valid      bool   `json:"valid"`
	Error      string `json:"error,omitempty"`
	TimedOut   bool   `json:"timedOut,omitempty"`
	StatusCode int    `json:"statusCode,omitempty"`
}

type Config struct {
	TLSTimeout          time.Duration
	ReachabilityTimeout time.Duration
	Client              *http.Client
	// URLFor builds the probe URL for a domain. Defaults to https://<domain>/.
	URLFor func(domain string) string
	Log    *logrus.Entry
}

type Prober struct {
	tlsTimeout          time.Duration
	reachabilityTimeout time.Duration
	client              *http.Client
	urlFor              func(domain string) string
	log                 *logrus.Entry
}

func New(cfg Config) *Prober {
	p := &Prober{
		tlsTimeout:          cfg.TLSTimeout,
		reachabilityTimeout: cfg.ReachabilityTimeout,
		client:              cfg.Client,
		urlFor:              cfg.URLFor,
		log:                 cfg.Log,
	}
	if p.tlsTimeout <= 0 {
		p.tlsTimeout = DefaultTLSTimeout
	}
	if p.reachabilityTimeout <= 0 {
		p.reachabilityTimeout = DefaultReachabilityTimeout
	}
	if p.client == nil {
		p.client = &http.Client{
			// A redirect is still proof that TLS terminated and the host answered.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	if p.urlFor == nil {
		p.urlFor = func(domain string) string {
			return "https://" + domain + "/"
		}
	}
	if p.log == nil {
		p.log = logrus.WithField("component", "https-probe")
	}
	return p
}

// VerifyTLS checks that the domain presents a certificate the client trusts.
func (p *Prober) VerifyTLS(ctx context.Context, domain string) Result {
	return p.head(ctx, kindTLS, domain, p.tlsTimeout)
}

// VerifyReachability checks that the domain answers HTTPS requests at all.
func (p *Prober) VerifyReachability(ctx context.Context, domain string) Result {
	return p.head(ctx, kindReachability, domain, p.reachabilityTimeout)
}

func (p *Prober) head(ctx context.Context, kind, domain string, timeout time.Duration) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			p.log.WithField("domain", domain).Errorf("%s probe panicked: %v", kind, r)
			res = Result{Error: "probe failed unexpectedly"}
		}
		metrics.ProbeResults.WithLabelValues(kind, outcome(res)).Inc()
	}()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.urlFor(domain), nil)
	if err != nil {
		return Result{Error: err.Error()}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		res = Result{Error: err.Error(), TimedOut: isTimeout(ctx, err)}
		p.log.WithFields(logrus.Fields{
			"domain":   domain,
			"timedOut": res.TimedOut,
		}).Debugf("%s probe failed: %v", kind, err)
		return res
	}
	resp.Body.Close()

	return Result{Valid: true, StatusCode: resp.StatusCode}
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func outcome(r Result) string {
	switch {
	case r.Valid:
		return metrics.OutcomeSuccess
	case r.TimedOut:
		return metrics.OutcomeTimeout
	default:
		return metrics.OutcomeFailure
	}
}
