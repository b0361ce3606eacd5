package db

import (
	"context"
	"fmt"
	"time"

	"github.com/acorn-io/acorn-domains/pkg/model"
	"github.com/acorn-io/acorn-domains/pkg/rand"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	maxTokenTries           = 100
	verificationTokenLength = 24
)

type database struct {
	db *gorm.DB
}

// New creates a new database connection
func New(ctx context.Context, dialect string, dsn string, config *gorm.Config) (Database, error) {
	if config == nil {
		config = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		}
	}

	var db *gorm.DB
	var err error

	switch dialect {
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(dsn), config)
		if err == nil {
			err = db.Exec("PRAGMA foreign_keys = ON").Error
		}
	case "mysql":
		db, err = gorm.Open(mysql.Open(dsn), config)
	default:
		return nil, fmt.Errorf("unsupported dialect: %s", dialect)
	}
	if err != nil {
		return nil, err
	}

	db = db.WithContext(ctx)

	if err := db.AutoMigrate(
		&Domain{},
		&Record{},
	); err != nil {
		return nil, err
	}

	return &database{
		db: db,
	}, nil
}

func (d *database) CreateDomain(ctx context.Context, cfg model.DomainConfiguration, tokenHash string) (model.DomainConfiguration, error) {
	var domain Domain
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&Domain{}).Where("domain = ? and subdomain = ?", cfg.Domain, cfg.Subdomain).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return fmt.Errorf("%w: %s", ErrDomainExists, cfg.Hostname())
		}

		var token string
		for i := 0; i < maxTokenTries; i++ {
			t := rand.VerificationCode(verificationTokenLength)
			sql := tx.Where("verification_token = ?", t).Take(&Domain{})
			if sql.Error == gorm.ErrRecordNotFound {
				token = t
				break
			}
			if sql.Error != nil {
				logrus.Warnf("Error while finding unique verification token: %v", sql.Error)
			}
		}
		if token == "" {
			return fmt.Errorf("couldn't generate verification token")
		}

		status := cfg.Status
		if status == "" {
			status = model.DomainStatusPending
		}

		domain = Domain{
			ID:                uuid.NewString(),
			Domain:            cfg.Domain,
			Subdomain:         cfg.Subdomain,
			RecordType:        string(cfg.RecordType),
			TargetValue:       cfg.TargetValue,
			Status:            string(status),
			SSLEnabled:        cfg.SSLEnabled,
			TokenHash:         tokenHash,
			VerificationToken: token,
		}

		return tx.Create(&domain).Error
	})
	if err != nil {
		return model.DomainConfiguration{}, err
	}

	return domain.Configuration(), nil
}

func (d *database) getDomain(ctx context.Context, id string) (*Domain, error) {
	domain := Domain{}
	sql := d.db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&domain)
	if sql.Error != nil {
		return nil, sql.Error
	}
	if sql.RowsAffected == 0 {
		return nil, nil
	}
	return &domain, nil
}

// GetDomain returns nil without an error when no domain has the id.
func (d *database) GetDomain(ctx context.Context, id string) (*model.DomainConfiguration, error) {
	domain, err := d.getDomain(ctx, id)
	if err != nil || domain == nil {
		return nil, err
	}
	cfg := domain.Configuration()
	return &cfg, nil
}

func (d *database) GetTokenHash(ctx context.Context, id string) (string, error) {
	domain, err := d.getDomain(ctx, id)
	if err != nil {
		return "", err
	}
	if domain == nil {
		return "", gorm.ErrRecordNotFound
	}
	return domain.TokenHash, nil
}

func (d *database) UpdateStatus(ctx context.Context, id string, status model.DomainStatus, errorMessage string) error {
	updates := map[string]interface{}{
		"status":        string(status),
		"error_message": errorMessage,
	}
	if status == model.DomainStatusVerified || status == model.DomainStatusEnabled {
		updates["last_verified_at"] = time.Now()
	}
	if status == model.DomainStatusEnabled {
		updates["ssl_enabled"] = true
	}

	return d.db.WithContext(ctx).Model(&Domain{}).Where("id = ?", id).Updates(updates).Error
}

func (d *database) ListByStatus(ctx context.Context, statuses ...model.DomainStatus) ([]model.DomainConfiguration, error) {
	values := make([]string, 0, len(statuses))
	for _, s := range statuses {
		values = append(values, string(s))
	}

	var domains []Domain
	sql := d.db.WithContext(ctx).Where("status IN ?", values).Order("created_at").Find(&domains)
	if sql.Error != nil {
		return nil, sql.Error
	}

	result := make([]model.DomainConfiguration, 0, len(domains))
	for _, domain := range domains {
		result = append(result, domain.Configuration())
	}
	return result, nil
}

func (d *database) SetRecordType(ctx context.Context, id string, rt model.RecordType, targetValue string) error {
	return d.db.WithContext(ctx).Model(&Domain{}).Where("id = ?", id).Updates(map[string]interface{}{
		"record_type":  string(rt),
		"target_value": targetValue,
	}).Error
}

func (d *database) PersistRecord(ctx context.Context, domainID, fqdn, zoneID string, record model.DNSRecord) error {
	db := d.db.WithContext(ctx)

	r := Record{}
	sql := db.Where("fqdn = ? and type = ?", fqdn, string(record.Type)).Limit(1).Find(&r)
	if sql.Error != nil {
		return sql.Error
	}

	if r.ID == 0 {
		return db.Create(&Record{
			FQDN:          fqdn,
			Type:          string(record.Type),
			DomainID:      domainID,
			Value:         record.Value,
			TTLSeconds:    int64(record.TTL.Seconds()),
			ZoneID:        zoneID,
			LastAppliedAt: time.Now(),
		}).Error
	}

	r.DomainID = domainID
	r.Value = record.Value
	r.TTLSeconds = int64(record.TTL.Seconds())
	r.ZoneID = zoneID
	r.LastAppliedAt = time.Now()
	return db.Save(&r).Error
}

func (d *database) GetDomainRecords(ctx context.Context, domainID string) ([]Record, error) {
	var records []Record
	sql := d.db.WithContext(ctx).Where("domain_id = ?", domainID).Order("fqdn").Find(&records)
	return records, sql.Error
}
