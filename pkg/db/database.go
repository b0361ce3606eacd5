package db

import (
	"context"
	"errors"

	"github.com/acorn-io/acorn-domains/pkg/model"
)

var ErrDomainExists = errors.New("domain is already registered")

type Database interface {
	CreateDomain(ctx context.Context, domain model.DomainConfiguration, tokenHash string) (model.DomainConfiguration, error)
	GetDomain(ctx context.Context, id string) (*model.DomainConfiguration, error)
	GetTokenHash(ctx context.Context, id string) (string, error)
	UpdateStatus(ctx context.Context, id string, status model.DomainStatus, errorMessage string) error
	ListByStatus(ctx context.Context, statuses ...model.DomainStatus) ([]model.DomainConfiguration, error)
	SetRecordType(ctx context.Context, id string, rt model.RecordType, targetValue string) error
	PersistRecord(ctx context.Context, domainID, fqdn, zoneID string, record model.DNSRecord) error
	GetDomainRecords(ctx context.Context, domainID string) ([]Record, error)
}
