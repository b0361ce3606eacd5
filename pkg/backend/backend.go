package backend

import (
	"context"
	"errors"
	"strings"

	"github.com/acorn-io/acorn-domains/pkg/model"
	"github.com/acorn-io/acorn-domains/pkg/validator"
	"github.com/acorn-io/acorn-domains/pkg/verifier"
)

var (
	ErrNotFound          = errors.New("domain not found")
	ErrPublisherDisabled = errors.New("record publishing is not configured")
)

// InvalidDomainError carries every problem found with a submitted hostname.
type InvalidDomainError struct {
	Errors []string
}

func (e *InvalidDomainError) Error() string {
	return "invalid domain: " + strings.Join(e.Errors, "; ")
}

type Backend interface {
	CreateDomain(ctx context.Context, req model.CreateDomainRequest) (model.DomainResponse, error)
	GetDomain(ctx context.Context, id string) (model.DomainConfiguration, error)
	GetTokenHash(ctx context.Context, id string) (string, error)
	Instructions(ctx context.Context, id string) (model.InstructionsResponse, error)
	ApplyRecord(ctx context.Context, id string) (model.RecordResponse, error)
	ListRecords(ctx context.Context, id string) ([]model.RecordResponse, error)
	Validate(ctx context.Context, id string) (model.ValidationResponse, error)
	StartVerification(ctx context.Context, id string) (model.VerificationResponse, error)
	StopVerification(ctx context.Context, id string) (model.VerificationResponse, error)
	VerificationStatus(ctx context.Context, id string) (model.VerificationResponse, error)
	StartSweepDaemon(stopCh <-chan struct{})
	Shutdown()
}

type Detector interface {
	Detect(ctx context.Context, domain string) model.ProviderCapabilities
}

type Validator interface {
	Validate(ctx context.Context, domain string) validator.Result
}

type Verifier interface {
	Start(ctx context.Context, id string) error
	Stop(id string) bool
	GetStatus(id string) (verifier.Run, bool)
	VerifyAllPending(ctx context.Context) (int, error)
	Cleanup()
}
