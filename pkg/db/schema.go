package db

import (
	"time"

	"github.com/acorn-io/acorn-domains/pkg/model"
	"gorm.io/gorm"
)

type Domain struct {
	ID                string `gorm:"primaryKey;size:36"`
	Domain            string `gorm:"uniqueIndex:idx_hostname,priority:1;size:253"`
	Subdomain         string `gorm:"uniqueIndex:idx_hostname,priority:2;size:253"`
	RecordType        string `gorm:"size:8"`
	TargetValue       string
	Status            string `gorm:"index;size:16"`
	SSLEnabled        bool
	LastVerifiedAt    *time.Time
	ErrorMessage      string `gorm:"type:text"`
	TokenHash         string
	VerificationToken string `gorm:"uniqueIndex;size:32"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
	DeletedAt         gorm.DeletedAt `gorm:"index"`
}

// Record is a DNS record this service published into a hosted zone for a domain.
type Record struct {
	ID            uint   `gorm:"primarykey"`
	FQDN          string `gorm:"uniqueIndex:idx_record,priority:1"`
	Type          string `gorm:"uniqueIndex:idx_record,priority:2"`
	DomainID      string `gorm:"size:36"`
	Domain        Domain `gorm:"constraint:OnDelete:CASCADE;"`
	Value         string
	TTLSeconds    int64
	ZoneID        string
	CreatedAt     time.Time
	LastAppliedAt time.Time
}

func (d Domain) Configuration() model.DomainConfiguration {
	return model.DomainConfiguration{
		ID:                d.ID,
		Domain:            d.Domain,
		Subdomain:         d.Subdomain,
		RecordType:        model.RecordType(d.RecordType),
		TargetValue:       d.TargetValue,
		Status:            model.DomainStatus(d.Status),
		SSLEnabled:        d.SSLEnabled,
		LastVerifiedAt:    d.LastVerifiedAt,
		ErrorMessage:      d.ErrorMessage,
		VerificationToken: d.VerificationToken,
	}
}
