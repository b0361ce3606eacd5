package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/acorn-io/acorn-domains/pkg/hostname"
	"github.com/acorn-io/acorn-domains/pkg/metrics"
	"github.com/acorn-io/acorn-domains/pkg/model"
	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/wait"
)

const (
	DefaultEndpoint    = "https://cloudflare-dns.com/dns-query"
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
	DefaultMaxDelay    = 30 * time.Second
	DefaultTimeout     = 5 * time.Second

	dnsJSONContentType = "application/dns-json"
	maxResponseBytes   = 1 << 20
)

type Config struct {
	Endpoint    string
	Timeout     time.Duration
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Client      *http.Client
	Log         *logrus.Entry
}

// Resolver queries a DNS-over-HTTPS JSON endpoint and retries transient failures
// with exponential backoff.
type Resolver struct {
	endpoint    string
	timeout     time.Duration
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	client      *http.Client
	log         *logrus.Entry

	sleep func(ctx context.Context, d time.Duration) error
}

func New(cfg Config) *Resolver {
	r := &Resolver{
		endpoint:    cfg.Endpoint,
		timeout:     cfg.Timeout,
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BaseDelay,
		maxDelay:    cfg.MaxDelay,
		client:      cfg.Client,
		log:         cfg.Log,
		sleep:       sleepContext,
	}
	if r.endpoint == "" {
		r.endpoint = DefaultEndpoint
	}
	if r.timeout <= 0 {
		r.timeout = DefaultTimeout
	}
	if r.maxAttempts <= 0 {
		r.maxAttempts = DefaultMaxAttempts
	}
	if r.baseDelay <= 0 {
		r.baseDelay = DefaultBaseDelay
	}
	if r.maxDelay <= 0 {
		r.maxDelay = DefaultMaxDelay
	}
	if r.client == nil {
		r.client = &http.Client{}
	}
	if r.log == nil {
		r.log = logrus.WithField("component", "doh-resolver")
	}
	return r
}

type LookupResult struct {
	Domain     string            `json:"domain"`
	RecordType model.RecordType  `json:"recordType"`
	Records    []model.DNSRecord `json:"records,omitempty"`
	Propagated bool              `json:"propagated"`
	Attempts   int               `json:"attempts"`
	Error      string            `json:"error,omitempty"`
}

// Values returns the record values in answer order.
func (l LookupResult) Values() []string {
	values := make([]string, 0, len(l.Records))
	for _, r := range l.Records {
		values = append(values, r.Value)
	}
	return values
}

type PropagationResult struct {
	Domain     string           `json:"domain"`
	RecordType model.RecordType `json:"recordType"`
	Expected   string           `json:"expected"`
	Values     []string         `json:"values,omitempty"`
	Propagated bool             `json:"propagated"`
	CheckedAt  time.Time        `json:"checkedAt"`
	Error      string           `json:"error,omitempty"`
}

type dohResponse struct {
	Status int         `json:"Status"`
	Answer []dohAnswer `json:"Answer"`
}

type dohAnswer struct {
	Name string `json:"name"`
	Type uint16 `json:"type"`
	TTL  int    `json:"TTL"`
	Data string `json:"data"`
}

// Lookup never returns an error; failures are reported in LookupResult.Error
// after the retry budget is spent.
func (r *Resolver) Lookup(ctx context.Context, domain string, rt model.RecordType) LookupResult {
	res := LookupResult{Domain: domain, RecordType: rt}

	v := hostname.Validate(domain)
	if !v.Valid {
		res.Error = "invalid domain: " + strings.Join(v.Errors, "; ")
		metrics.DoHLookups.WithLabelValues(string(rt), metrics.OutcomeInvalid).Inc()
		return res
	}
	res.Domain = v.Hostname

	if err := rt.IsValid(); err != nil {
		res.Error = err.Error()
		metrics.DoHLookups.WithLabelValues(string(rt), metrics.OutcomeInvalid).Inc()
		return res
	}

	backoff := wait.Backoff{
		Duration: r.baseDelay,
		Factor:   2,
		Steps:    r.maxAttempts,
		Cap:      r.maxDelay,
	}

	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		res.Attempts = attempt
		answers, err := r.query(ctx, res.Domain, rt)
		if err == nil {
			res.Records = toRecords(rt, answers)
			res.Propagated = len(res.Records) > 0
			outcome := metrics.OutcomeSuccess
			if !res.Propagated {
				outcome = metrics.OutcomeEmpty
			}
			metrics.DoHLookups.WithLabelValues(string(rt), outcome).Inc()
			return res
		}

		lastErr = err
		r.log.WithFields(logrus.Fields{
			"domain":  res.Domain,
			"type":    rt,
			"attempt": attempt,
		}).Debugf("doh lookup failed: %v", err)

		if attempt == r.maxAttempts || ctx.Err() != nil {
			break
		}
		if err := r.sleep(ctx, backoff.Step()); err != nil {
			lastErr = err
			break
		}
	}

	res.Error = lastErr.Error()
	metrics.DoHLookups.WithLabelValues(string(rt), metrics.OutcomeFailure).Inc()
	return res
}

// CheckPropagation looks the domain up and reports whether any value matches expected.
func (r *Resolver) CheckPropagation(ctx context.Context, domain string, rt model.RecordType, expected string) PropagationResult {
	lookup := r.Lookup(ctx, domain, rt)
	res := PropagationResult{
		Domain:     lookup.Domain,
		RecordType: rt,
		Expected:   expected,
		Values:     lookup.Values(),
		CheckedAt:  time.Now(),
		Error:      lookup.Error,
	}

	if expected == "" {
		res.Propagated = lookup.Propagated
		return res
	}
	for _, value := range res.Values {
		if SameValue(value, expected) {
			res.Propagated = true
			break
		}
	}
	return res
}

// SameValue compares record values ignoring case and a trailing root dot.
func SameValue(a, b string) bool {
	return strings.EqualFold(strings.TrimSuffix(a, "."), strings.TrimSuffix(b, "."))
}

func (r *Resolver) query(ctx context.Context, domain string, rt model.RecordType) ([]dohAnswer, error) {
	metrics.DoHAttempts.Inc()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	q := url.Values{}
	q.Set("name", domain)
	q.Set("type", string(rt))

	u := r.endpoint
	if strings.Contains(u, "?") {
		u += "&" + q.Encode()
	} else {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build doh request: %w", err)
	}
	req.Header.Set("Accept", dnsJSONContentType)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("doh endpoint returned status %d", resp.StatusCode)
	}

	var body dohResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode doh response: %w", err)
	}

	switch body.Status {
	case dns.RcodeSuccess:
		return body.Answer, nil
	case dns.RcodeServerFailure:
		return nil, fmt.Errorf("doh resolver answered %s for %s", dns.RcodeToString[body.Status], domain)
	}
	// NXDOMAIN, REFUSED and friends are answers, not transport failures.
	return nil, nil
}

func toRecords(rt model.RecordType, answers []dohAnswer) []model.DNSRecord {
	// ANAME and ALIAS have no wire type, so whatever the resolver sends back is kept.
	_, standard := dns.StringToType[string(rt)]
	if rt == model.RecordTypeAname || rt == model.RecordTypeAlias {
		standard = false
	}

	var records []model.DNSRecord
	for _, a := range answers {
		answerType := rt
		if name, ok := dns.TypeToString[a.Type]; ok {
			answerType = model.RecordType(name)
		}
		if standard && answerType != rt {
			continue
		}
		if answerType.IsValid() != nil {
			answerType = rt
		}

		value := strings.TrimSuffix(a.Data, ".")
		if answerType == model.RecordTypeTxt {
			value = strings.Trim(value, "\"")
		}

		record, err := model.NewDNSRecord(answerType, strings.TrimSuffix(a.Name, "."), value, time.Duration(a.TTL)*time.Second)
		if err != nil {
			continue
		}
		records = append(records, record)
	}
	return records
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
