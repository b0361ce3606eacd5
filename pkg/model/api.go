package model

import (
	"time"
)

type CreateDomainRequest struct {
	Domain    string `json:"domain,omitempty"`
	Subdomain string `json:"subdomain,omitempty"`
}

type DomainResponse struct {
	DomainConfiguration
	Hostname string   `json:"hostname"`
	Token    string   `json:"token,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

type InstructionsResponse struct {
	Hostname       string               `json:"hostname"`
	Apex           bool                 `json:"apex"`
	Capabilities   ProviderCapabilities `json:"capabilities"`
	RecordType     RecordType           `json:"recordType"`
	Record         DNSRecord            `json:"record"`
	Steps          []string             `json:"steps"`
	FallbackType   RecordType           `json:"fallbackType,omitempty"`
	FallbackRecord *DNSRecord           `json:"fallbackRecord,omitempty"`
	Warnings       []string             `json:"warnings,omitempty"`
}

type RecordResponse struct {
	DNSRecord
	FQDN   string `json:"fqdn,omitempty"`
	ZoneID string `json:"zoneId,omitempty"`
}

type ValidationResponse struct {
	Hostname        string     `json:"hostname"`
	IsValid         bool       `json:"isValid"`
	RecordType      RecordType `json:"recordType,omitempty"`
	CurrentValue    string     `json:"currentValue,omitempty"`
	ExpectedValues  []string   `json:"expectedValues,omitempty"`
	Recommendations []string   `json:"recommendations,omitempty"`
}

type VerificationStepResponse struct {
	Step     string `json:"step"`
	Progress int    `json:"progress"`
	Message  string `json:"message"`
	Error    bool   `json:"error"`
}

type VerificationResponse struct {
	DomainID      string                   `json:"domainId"`
	IsRunning     bool                     `json:"isRunning"`
	CurrentStep   VerificationStepResponse `json:"currentStep"`
	LastCheckedAt *time.Time               `json:"lastCheckedAt,omitempty"`
	NextCheckAt   *time.Time               `json:"nextCheckAt,omitempty"`
	RetryCount    int                      `json:"retryCount"`
	MaxRetries    int                      `json:"maxRetries"`
	Status        DomainStatus             `json:"status,omitempty"`
}

type ErrorResponse struct {
	Status  int         `json:"status,omitempty"`
	Message string      `json:"msg,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}
