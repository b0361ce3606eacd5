package verifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/acorn-io/acorn-domains/pkg/metrics"
	"github.com/acorn-io/acorn-domains/pkg/model"
	"github.com/acorn-io/acorn-domains/pkg/probe"
	"github.com/acorn-io/acorn-domains/pkg/validator"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"
)

const (
	DefaultMaxRetries    = 5
	DefaultMaxSSLRetries = 12
)

// DefaultRetryDelays is indexed by the retry count; the last entry repeats.
var DefaultRetryDelays = []time.Duration{
	5 * time.Second,
	10 * time.Second,
	30 * time.Second,
	60 * time.Second,
	300 * time.Second,
}

var ErrDomainNotFound = errors.New("domain not found")

type Step string

const (
	StepDNSCheck           Step = "dns_check"
	StepSSLCheck           Step = "ssl_check"
	StepAccessibilityCheck Step = "accessibility_check"
	StepComplete           Step = "complete"
)

type StepState struct {
	Step     Step   `json:"step"`
	Progress int    `json:"progress"`
	Message  string `json:"message"`
	Error    bool   `json:"error"`
}

// Run is a snapshot of the verification state of one domain.
type Run struct {
	DomainID      string     `json:"domainId"`
	IsRunning     bool       `json:"isRunning"`
	CurrentStep   StepState  `json:"currentStep"`
	LastCheckedAt *time.Time `json:"lastCheckedAt,omitempty"`
	NextCheckAt   *time.Time `json:"nextCheckAt,omitempty"`
	RetryCount    int        `json:"retryCount"`
	MaxRetries    int        `json:"maxRetries"`
}

// Store is the persistence the orchestrator reads domains from and writes
// status transitions to. GetDomain returns nil, nil for an unknown id.
type Store interface {
	GetDomain(ctx context.Context, id string) (*model.DomainConfiguration, error)
	UpdateStatus(ctx context.Context, id string, status model.DomainStatus, errorMessage string) error
	ListByStatus(ctx context.Context, statuses ...model.DomainStatus) ([]model.DomainConfiguration, error)
}

type DNSValidator interface {
	Validate(ctx context.Context, domain string) validator.Result
}

type Prober interface {
	VerifyTLS(ctx context.Context, domain string) probe.Result
	VerifyReachability(ctx context.Context, domain string) probe.Result
}

type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d, like time.AfterFunc.
type AfterFunc func(d time.Duration, f func()) Timer

type Config struct {
	Store         Store
	Validator     DNSValidator
	Prober        Prober
	MaxRetries    int
	MaxSSLRetries int
	RetryDelays   []time.Duration
	AfterFunc     AfterFunc
	Now           func() time.Time
	Log           *logrus.Entry
}

// Orchestrator drives each domain through DNS, SSL and reachability checks,
// retrying on a schedule until the domain is enabled or has failed for good.
type Orchestrator struct {
	store         Store
	validator     DNSValidator
	prober        Prober
	maxRetries    int
	maxSSLRetries int
	retryDelays   []time.Duration
	afterFunc     AfterFunc
	now           func() time.Time
	log           *logrus.Entry

	lock sync.Mutex
	runs map[string]*entry
}

// entry is the registry slot for one domain. Its mutex is held while status is
// persisted, so once halt returns no further writes happen for the run.
type entry struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc

	lock       sync.Mutex
	live       bool
	run        Run
	timer      Timer
	sslRetries int
}

func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		store:         cfg.Store,
		validator:     cfg.Validator,
		prober:        cfg.Prober,
		maxRetries:    cfg.MaxRetries,
		maxSSLRetries: cfg.MaxSSLRetries,
		retryDelays:   cfg.RetryDelays,
		afterFunc:     cfg.AfterFunc,
		now:           cfg.Now,
		log:           cfg.Log,
		runs:          map[string]*entry{},
	}
	if o.maxRetries <= 0 {
		o.maxRetries = DefaultMaxRetries
	}
	if o.maxSSLRetries <= 0 {
		o.maxSSLRetries = DefaultMaxSSLRetries
	}
	if len(o.retryDelays) == 0 {
		o.retryDelays = DefaultRetryDelays
	}
	if o.afterFunc == nil {
		o.afterFunc = func(d time.Duration, f func()) Timer {
			return time.AfterFunc(d, f)
		}
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.log == nil {
		o.log = logrus.WithField("component", "verifier")
	}
	return o
}

// Start begins a fresh verification run for the domain, replacing any run in
// progress, and returns without waiting for the first check.
func (o *Orchestrator) Start(ctx context.Context, id string) error {
	domain, err := o.store.GetDomain(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load domain %s: %w", id, err)
	}
	if domain == nil {
		return fmt.Errorf("%w: %s", ErrDomainNotFound, id)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	e := &entry{
		id:     id,
		ctx:    runCtx,
		cancel: cancel,
		live:   true,
		run: Run{
			DomainID:    id,
			IsRunning:   true,
			CurrentStep: StepState{Step: StepDNSCheck, Message: "Verification queued"},
			MaxRetries:  o.maxRetries,
		},
	}
	metrics.VerificationRunsActive.Inc()

	o.lock.Lock()
	old := o.runs[id]
	o.runs[id] = e
	o.lock.Unlock()

	// The registry lock is released first so a slow write by the old run only
	// delays this domain.
	if old != nil {
		o.halt(old)
	}

	e.lock.Lock()
	if !e.live {
		e.lock.Unlock()
		return nil
	}
	if err := o.store.UpdateStatus(ctx, id, model.DomainStatusPending, ""); err != nil {
		o.endLocked(e)
		e.lock.Unlock()
		return fmt.Errorf("failed to mark domain %s pending: %w", id, err)
	}
	e.lock.Unlock()

	o.log.WithFields(logrus.Fields{"domainID": id, "domain": domain.Hostname()}).Info("Starting verification")
	go o.pass(e)
	return nil
}

// Stop cancels any scheduled retry and in-flight check for the domain. The
// persisted status is left as it is. It reports whether a run was active.
func (o *Orchestrator) Stop(id string) bool {
	o.lock.Lock()
	e := o.runs[id]
	o.lock.Unlock()
	if e == nil {
		return false
	}
	return o.halt(e)
}

// GetStatus returns a snapshot of the domain's run, if one is known. Snapshots
// of stopped and completed runs are kept until Cleanup.
func (o *Orchestrator) GetStatus(id string) (Run, bool) {
	o.lock.Lock()
	e := o.runs[id]
	o.lock.Unlock()
	if e == nil {
		return Run{}, false
	}

	e.lock.Lock()
	defer e.lock.Unlock()
	return e.run, true
}

// VerifyAllPending starts a run for every pending or failed domain that is
// not already being verified and returns how many were started.
func (o *Orchestrator) VerifyAllPending(ctx context.Context) (int, error) {
	domains, err := o.store.ListByStatus(ctx, model.DomainStatusPending, model.DomainStatusFailed)
	if err != nil {
		return 0, fmt.Errorf("failed to list domains awaiting verification: %w", err)
	}

	started := 0
	for _, d := range domains {
		if ctx.Err() != nil {
			return started, ctx.Err()
		}
		if o.running(d.ID) {
			continue
		}
		if err := o.Start(ctx, d.ID); err != nil {
			o.log.WithField("domainID", d.ID).Errorf("failed to start verification: %v", err)
			continue
		}
		started++
	}
	return started, nil
}

// Cleanup cancels every run and forgets all run state.
func (o *Orchestrator) Cleanup() {
	o.lock.Lock()
	runs := maps.Values(o.runs)
	maps.Clear(o.runs)
	o.lock.Unlock()

	for _, e := range runs {
		o.halt(e)
	}
}

func (o *Orchestrator) running(id string) bool {
	run, ok := o.GetStatus(id)
	return ok && run.IsRunning
}

// halt cancels the run's context before taking its lock, so an in-flight
// status write that honours ctx returns early.
func (o *Orchestrator) halt(e *entry) bool {
	e.cancel()
	e.lock.Lock()
	defer e.lock.Unlock()
	wasRunning := e.run.IsRunning
	o.endLocked(e)
	return wasRunning
}

// endLocked retires the run. The caller holds e.lock.
func (o *Orchestrator) endLocked(e *entry) {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.cancel()
	e.live = false
	e.run.NextCheckAt = nil
	if e.run.IsRunning {
		e.run.IsRunning = false
		metrics.VerificationRunsActive.Dec()
	}
}

func (o *Orchestrator) pass(e *entry) {
	ctx := e.ctx
	logger := o.log.WithField("domainID", e.id)

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("verification panicked: %v", r)
			o.fail(e, fmt.Sprintf("Verification failed unexpectedly: %v", r))
		}
	}()

	domain, err := o.store.GetDomain(ctx, e.id)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		o.fail(e, fmt.Sprintf("Failed to load domain: %v", err))
		return
	}
	if domain == nil {
		logger.Info("Domain no longer exists, stopping verification")
		o.halt(e)
		return
	}
	host := domain.Hostname()
	logger = logger.WithField("domain", host)

	if !o.setStep(e, StepState{Step: StepDNSCheck, Progress: 25, Message: "Checking DNS records"}) {
		return
	}
	dns := o.validator.Validate(ctx, host)
	if ctx.Err() != nil {
		return
	}
	if !dns.IsValid {
		logger.Debugf("DNS check failed: %v", dns.Recommendations)
		o.retryOrFail(e, StepDNSCheck, 25, dnsMessage(host, dns))
		return
	}
	if !o.persist(e, model.DomainStatusVerified, "") {
		return
	}

	if !o.setStep(e, StepState{Step: StepSSLCheck, Progress: 50, Message: "Checking SSL certificate"}) {
		return
	}
	tls := o.prober.VerifyTLS(ctx, host)
	if ctx.Err() != nil {
		return
	}
	if !tls.Valid {
		logger.Debugf("SSL check failed: %s", tls.Error)
		o.retrySSL(e, tls.Error)
		return
	}

	if !o.setStep(e, StepState{Step: StepAccessibilityCheck, Progress: 75, Message: "Checking that the domain is reachable"}) {
		return
	}
	reach := o.prober.VerifyReachability(ctx, host)
	if ctx.Err() != nil {
		return
	}
	if !reach.Valid {
		msg := "Domain is not reachable over HTTPS: " + reach.Error
		if reach.TimedOut {
			msg = "Domain did not answer in time, it may be slow to respond"
		}
		o.retryOrFail(e, StepAccessibilityCheck, 75, msg)
		return
	}

	o.complete(e)
	logger.Info("Domain verified and enabled")
}

// resume runs a scheduled retry unless the run was stopped in the meantime.
func (o *Orchestrator) resume(e *entry) {
	e.lock.Lock()
	if !e.live {
		e.lock.Unlock()
		return
	}
	e.timer = nil
	e.run.NextCheckAt = nil
	e.lock.Unlock()

	o.pass(e)
}

func (o *Orchestrator) setStep(e *entry, step StepState) bool {
	e.lock.Lock()
	defer e.lock.Unlock()
	if !e.live {
		return false
	}
	e.run.CurrentStep = step
	return true
}

func (o *Orchestrator) persist(e *entry, status model.DomainStatus, msg string) bool {
	e.lock.Lock()
	defer e.lock.Unlock()
	if !e.live {
		return false
	}
	o.persistLocked(e, status, msg)
	return true
}

// persistLocked writes the status. A failed write is logged and the run goes
// on; the next transition writes again.
func (o *Orchestrator) persistLocked(e *entry, status model.DomainStatus, msg string) {
	if err := o.store.UpdateStatus(e.ctx, e.id, status, msg); err != nil {
		o.log.WithField("domainID", e.id).Errorf("failed to persist status %s: %v", status, err)
	}
}

func (o *Orchestrator) retryOrFail(e *entry, step Step, progress int, msg string) {
	e.lock.Lock()
	defer e.lock.Unlock()
	if !e.live {
		return
	}
	o.checkedLocked(e)

	if e.run.RetryCount < e.run.MaxRetries {
		delay := o.retryDelay(e.run.RetryCount)
		e.run.RetryCount++
		o.persistLocked(e, model.DomainStatusPending, msg)
		e.run.CurrentStep = StepState{
			Step:     step,
			Progress: progress,
			Message:  fmt.Sprintf("%s. Retry %d of %d in %v", msg, e.run.RetryCount, e.run.MaxRetries, delay),
			Error:    true,
		}
		o.scheduleLocked(e, delay)
		metrics.VerificationOutcomes.WithLabelValues(metrics.OutcomeRetry).Inc()
		return
	}

	msg = fmt.Sprintf("%s (failed after %d retries)", msg, e.run.RetryCount)
	o.persistLocked(e, model.DomainStatusFailed, msg)
	e.run.CurrentStep = StepState{Step: step, Progress: progress, Message: msg, Error: true}
	o.endLocked(e)
	metrics.VerificationOutcomes.WithLabelValues(metrics.OutcomeFailed).Inc()
}

// retrySSL keeps the domain verified while the certificate is provisioned.
// These retries have their own budget and leave RetryCount alone.
func (o *Orchestrator) retrySSL(e *entry, cause string) {
	e.lock.Lock()
	defer e.lock.Unlock()
	if !e.live {
		return
	}
	o.checkedLocked(e)

	if e.sslRetries >= o.maxSSLRetries {
		msg := fmt.Sprintf("SSL certificate is still not valid after %d checks: %s", e.sslRetries+1, cause)
		o.persistLocked(e, model.DomainStatusFailed, msg)
		e.run.CurrentStep = StepState{Step: StepSSLCheck, Progress: 50, Message: msg, Error: true}
		o.endLocked(e)
		metrics.VerificationOutcomes.WithLabelValues(metrics.OutcomeFailed).Inc()
		return
	}

	delay := o.retryDelay(e.sslRetries)
	e.sslRetries++
	msg := "DNS is configured but the SSL certificate is not ready yet: " + cause
	o.persistLocked(e, model.DomainStatusVerified, msg)
	e.run.CurrentStep = StepState{
		Step:     StepSSLCheck,
		Progress: 50,
		Message:  fmt.Sprintf("%s. Checking again in %v", msg, delay),
		Error:    true,
	}
	o.scheduleLocked(e, delay)
	metrics.VerificationOutcomes.WithLabelValues(metrics.OutcomeSSLRetry).Inc()
}

func (o *Orchestrator) complete(e *entry) {
	e.lock.Lock()
	defer e.lock.Unlock()
	if !e.live {
		return
	}
	o.checkedLocked(e)
	o.persistLocked(e, model.DomainStatusEnabled, "")
	e.run.CurrentStep = StepState{Step: StepComplete, Progress: 100, Message: "Domain verified and enabled"}
	o.endLocked(e)
	metrics.VerificationOutcomes.WithLabelValues(metrics.OutcomeEnabled).Inc()
}

// fail records an orchestration error as a terminal failure.
func (o *Orchestrator) fail(e *entry, msg string) {
	e.lock.Lock()
	defer e.lock.Unlock()
	if !e.live {
		return
	}
	o.checkedLocked(e)
	o.persistLocked(e, model.DomainStatusFailed, msg)
	e.run.CurrentStep.Message = msg
	e.run.CurrentStep.Error = true
	o.endLocked(e)
	metrics.VerificationOutcomes.WithLabelValues(metrics.OutcomeFailed).Inc()
}

func (o *Orchestrator) checkedLocked(e *entry) {
	now := o.now()
	e.run.LastCheckedAt = &now
}

func (o *Orchestrator) scheduleLocked(e *entry, delay time.Duration) {
	next := o.now().Add(delay)
	e.run.NextCheckAt = &next
	e.timer = o.afterFunc(delay, func() {
		o.resume(e)
	})
}

func (o *Orchestrator) retryDelay(retry int) time.Duration {
	if retry >= len(o.retryDelays) {
		return o.retryDelays[len(o.retryDelays)-1]
	}
	return o.retryDelays[retry]
}

func dnsMessage(host string, res validator.Result) string {
	if res.CurrentValue != "" {
		return fmt.Sprintf("%s record for %s points to %s instead of %s", res.RecordType, host, res.CurrentValue, strings.Join(res.ExpectedValues, " or "))
	}
	return "No DNS records pointing to the hosting target were found for " + host
}
