package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/acorn-io/acorn-domains/pkg/advisor"
	"github.com/acorn-io/acorn-domains/pkg/db"
	"github.com/acorn-io/acorn-domains/pkg/hostname"
	"github.com/acorn-io/acorn-domains/pkg/model"
	"github.com/acorn-io/acorn-domains/pkg/rand"
	"github.com/acorn-io/acorn-domains/pkg/verifier"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenLength = 32

	lowConfidence = 0.5
)

type Config struct {
	Database      db.Database
	Target        model.HostingTarget
	Detector      Detector
	Validator     Validator
	Verifier      Verifier
	Publisher     *Publisher
	SweepInterval time.Duration
	MaxRetries    int
}

type backend struct {
	db            db.Database
	target        model.HostingTarget
	advisor       *advisor.Advisor
	detector      Detector
	validator     Validator
	verifier      Verifier
	publisher     *Publisher
	sweepInterval time.Duration
	maxRetries    int
}

func NewBackend(cfg Config) Backend {
	b := &backend{
		db:            cfg.Database,
		target:        cfg.Target,
		advisor:       advisor.New(cfg.Target),
		detector:      cfg.Detector,
		validator:     cfg.Validator,
		verifier:      cfg.Verifier,
		publisher:     cfg.Publisher,
		sweepInterval: cfg.SweepInterval,
		maxRetries:    cfg.MaxRetries,
	}
	if b.maxRetries <= 0 {
		b.maxRetries = verifier.DefaultMaxRetries
	}
	return b
}

func (b *backend) CreateDomain(ctx context.Context, req model.CreateDomainRequest) (model.DomainResponse, error) {
	raw := hostname.StripScheme(req.Domain)
	sub := strings.ToLower(strings.TrimSpace(req.Subdomain))
	if sub != "" {
		raw = sub + "." + raw
	}

	v := hostname.Validate(raw)
	if !v.Valid {
		return model.DomainResponse{}, &InvalidDomainError{Errors: v.Errors}
	}
	host := v.Hostname

	cfg := model.DomainConfiguration{Domain: hostname.ApexDomain(host)}
	if sub != "" {
		cfg.Domain = strings.TrimPrefix(host, sub+".")
		cfg.Subdomain = sub
	} else if cfg.Domain != host {
		cfg.Subdomain = strings.TrimSuffix(host, "."+cfg.Domain)
	}
	cfg.RecordType = b.advisor.Recommend(host, nil)
	cfg.TargetValue = b.target.ValueFor(cfg.RecordType)

	logrus.Debugf("Creating domain %s", host)
	token, hash, err := b.createToken()
	if err != nil {
		return model.DomainResponse{}, err
	}

	created, err := b.db.CreateDomain(ctx, cfg, hash)
	if err != nil {
		return model.DomainResponse{}, err
	}

	return model.DomainResponse{
		DomainConfiguration: created,
		Hostname:            created.Hostname(),
		Token:               token,
		Warnings:            v.Warnings,
	}, nil
}

func (b *backend) GetDomain(ctx context.Context, id string) (model.DomainConfiguration, error) {
	logrus.Debugf("get domain: %v", id)
	d, err := b.db.GetDomain(ctx, id)
	if err != nil {
		return model.DomainConfiguration{}, err
	}
	if d == nil {
		return model.DomainConfiguration{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *d, nil
}

func (b *backend) GetTokenHash(ctx context.Context, id string) (string, error) {
	if _, err := b.GetDomain(ctx, id); err != nil {
		return "", err
	}
	return b.db.GetTokenHash(ctx, id)
}

// Instructions detects the domain's DNS provider, picks the record type it
// should create and remembers that choice for later verification.
func (b *backend) Instructions(ctx context.Context, id string) (model.InstructionsResponse, error) {
	d, err := b.GetDomain(ctx, id)
	if err != nil {
		return model.InstructionsResponse{}, err
	}
	host := d.Hostname()

	caps := b.detector.Detect(ctx, host)
	rt := b.advisor.Recommend(host, &caps)
	inst, err := b.advisor.Instructions(host, rt)
	if err != nil {
		return model.InstructionsResponse{}, err
	}

	resp := model.InstructionsResponse{
		Hostname:     host,
		Apex:         hostname.IsApex(host),
		Capabilities: caps,
		RecordType:   rt,
		Record:       inst.Record,
		Steps:        inst.Steps,
		Warnings:     hostname.Validate(host).Warnings,
	}
	if fallback := b.advisor.Fallback(rt); fallback != "" {
		if fb, err := b.advisor.Instructions(host, fallback); err == nil {
			resp.FallbackType = fallback
			resp.FallbackRecord = &fb.Record
		}
	}
	if caps.Confidence < lowConfidence {
		resp.Warnings = append(resp.Warnings,
			"Your DNS provider could not be identified; if it does not support "+string(rt)+" records use the fallback record instead")
	}

	if err := b.db.SetRecordType(ctx, id, rt, inst.Record.Value); err != nil {
		return model.InstructionsResponse{}, fmt.Errorf("failed to save record type for %s: %w", host, err)
	}
	return resp, nil
}

// ApplyRecord publishes the domain's record through Route53.
func (b *backend) ApplyRecord(ctx context.Context, id string) (model.RecordResponse, error) {
	if b.publisher == nil {
		return model.RecordResponse{}, ErrPublisherDisabled
	}

	d, err := b.GetDomain(ctx, id)
	if err != nil {
		return model.RecordResponse{}, err
	}
	host := d.Hostname()

	rt := d.RecordType
	if rt == "" {
		rt = b.advisor.Recommend(host, nil)
	}
	if rt == model.RecordTypeAname || rt == model.RecordTypeAlias {
		rt = model.RecordTypeA
	}

	inst, err := b.advisor.Instructions(host, rt)
	if err != nil {
		return model.RecordResponse{}, err
	}

	fqdn, err := b.publisher.Upsert(ctx, host, inst.Record)
	if err != nil {
		return model.RecordResponse{}, err
	}

	if err := b.db.PersistRecord(ctx, id, fqdn, b.publisher.ZoneID(), inst.Record); err != nil {
		return model.RecordResponse{}, err
	}

	return model.RecordResponse{
		DNSRecord: inst.Record,
		FQDN:      fqdn,
		ZoneID:    b.publisher.ZoneID(),
	}, nil
}

// ListRecords returns the records previously published for the domain.
func (b *backend) ListRecords(ctx context.Context, id string) ([]model.RecordResponse, error) {
	if _, err := b.GetDomain(ctx, id); err != nil {
		return nil, err
	}

	records, err := b.db.GetDomainRecords(ctx, id)
	if err != nil {
		return nil, err
	}

	resp := make([]model.RecordResponse, 0, len(records))
	for _, r := range records {
		resp = append(resp, model.RecordResponse{
			DNSRecord: model.DNSRecord{
				Type:  model.RecordType(r.Type),
				Name:  r.FQDN,
				Value: r.Value,
				TTL:   time.Duration(r.TTLSeconds) * time.Second,
			},
			FQDN:   r.FQDN,
			ZoneID: r.ZoneID,
		})
	}
	return resp, nil
}

func (b *backend) Validate(ctx context.Context, id string) (model.ValidationResponse, error) {
	d, err := b.GetDomain(ctx, id)
	if err != nil {
		return model.ValidationResponse{}, err
	}

	res := b.validator.Validate(ctx, d.Hostname())
	return model.ValidationResponse{
		Hostname:        res.Hostname,
		IsValid:         res.IsValid,
		RecordType:      res.RecordType,
		CurrentValue:    res.CurrentValue,
		ExpectedValues:  res.ExpectedValues,
		Recommendations: res.Recommendations,
	}, nil
}

func (b *backend) StartVerification(ctx context.Context, id string) (model.VerificationResponse, error) {
	if err := b.verifier.Start(ctx, id); err != nil {
		if errors.Is(err, verifier.ErrDomainNotFound) {
			return model.VerificationResponse{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return model.VerificationResponse{}, err
	}
	return b.VerificationStatus(ctx, id)
}

func (b *backend) StopVerification(ctx context.Context, id string) (model.VerificationResponse, error) {
	if _, err := b.GetDomain(ctx, id); err != nil {
		return model.VerificationResponse{}, err
	}
	if b.verifier.Stop(id) {
		logrus.WithField("domainID", id).Info("Stopped verification")
	}
	return b.VerificationStatus(ctx, id)
}

func (b *backend) VerificationStatus(ctx context.Context, id string) (model.VerificationResponse, error) {
	d, err := b.GetDomain(ctx, id)
	if err != nil {
		return model.VerificationResponse{}, err
	}

	run, ok := b.verifier.GetStatus(id)
	if !ok {
		return model.VerificationResponse{
			DomainID:      id,
			MaxRetries:    b.maxRetries,
			LastCheckedAt: d.LastVerifiedAt,
			Status:        d.Status,
		}, nil
	}

	return model.VerificationResponse{
		DomainID:  run.DomainID,
		IsRunning: run.IsRunning,
		CurrentStep: model.VerificationStepResponse{
			Step:     string(run.CurrentStep.Step),
			Progress: run.CurrentStep.Progress,
			Message:  run.CurrentStep.Message,
			Error:    run.CurrentStep.Error,
		},
		LastCheckedAt: run.LastCheckedAt,
		NextCheckAt:   run.NextCheckAt,
		RetryCount:    run.RetryCount,
		MaxRetries:    run.MaxRetries,
		Status:        d.Status,
	}, nil
}

func (b *backend) Shutdown() {
	b.verifier.Cleanup()
}

func (b *backend) createToken() (string, string, error) {
	t := rand.Token(tokenLength)
	hash, err := bcrypt.GenerateFromPassword([]byte(t), bcrypt.MinCost)
	if err != nil {
		return "", "", err
	}
	return t, string(hash), nil
}
