package model

import (
	"time"
)

const (
	DomainStatusPending  DomainStatus = "pending"
	DomainStatusVerified DomainStatus = "verified"
	DomainStatusFailed   DomainStatus = "failed"
	DomainStatusEnabled  DomainStatus = "enabled"
)

type DomainStatus string

// DomainConfiguration is a domain under management as the storage layer sees it.
type DomainConfiguration struct {
	ID                string       `json:"id"`
	Domain            string       `json:"domain"`
	Subdomain         string       `json:"subdomain,omitempty"`
	RecordType        RecordType   `json:"recordType,omitempty"`
	TargetValue       string       `json:"targetValue,omitempty"`
	Status            DomainStatus `json:"status"`
	SSLEnabled        bool         `json:"sslEnabled"`
	LastVerifiedAt    *time.Time   `json:"lastVerifiedAt,omitempty"`
	ErrorMessage      string       `json:"errorMessage,omitempty"`
	VerificationToken string       `json:"verificationToken,omitempty"`
}

// Hostname is the fully qualified name the domain should serve.
func (d DomainConfiguration) Hostname() string {
	if d.Subdomain == "" {
		return d.Domain
	}
	return d.Subdomain + "." + d.Domain
}
