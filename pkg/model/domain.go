package model

import (
	"fmt"
	"strings"
	"time"
)

const (
	RecordTypeA     RecordType = "A"
	RecordTypeAAAA  RecordType = "AAAA"
	RecordTypeCname RecordType = "CNAME"
	RecordTypeAname RecordType = "ANAME"
	RecordTypeAlias RecordType = "ALIAS"
	RecordTypeTxt   RecordType = "TXT"
	RecordTypeMx    RecordType = "MX"
	RecordTypeNs    RecordType = "NS"
)

type RecordType string

func (rt RecordType) IsValid() error {
	switch rt {
	case RecordTypeA, RecordTypeAAAA, RecordTypeCname, RecordTypeAname, RecordTypeAlias, RecordTypeTxt, RecordTypeMx, RecordTypeNs:
		return nil
	}

	return fmt.Errorf("invalid record type %q", string(rt))
}

// ParseRecordType accepts any casing of a known record type.
func ParseRecordType(s string) (RecordType, error) {
	rt := RecordType(strings.ToUpper(strings.TrimSpace(s)))
	if err := rt.IsValid(); err != nil {
		return "", err
	}
	return rt, nil
}

// DNSRecord is a single resolved or desired record. Construct it with NewDNSRecord.
type DNSRecord struct {
	Type  RecordType    `json:"type"`
	Name  string        `json:"name"`
	Value string        `json:"value"`
	TTL   time.Duration `json:"ttl,omitempty"`
}

func NewDNSRecord(rt RecordType, name, value string, ttl time.Duration) (DNSRecord, error) {
	if err := rt.IsValid(); err != nil {
		return DNSRecord{}, err
	}
	if name == "" {
		return DNSRecord{}, fmt.Errorf("record name must be provided")
	}
	if value == "" {
		return DNSRecord{}, fmt.Errorf("record value must be provided")
	}

	return DNSRecord{
		Type:  rt,
		Name:  name,
		Value: value,
		TTL:   ttl,
	}, nil
}

// HostingTarget is where a verified domain must point: ANAME, ALIAS and CNAME
// records use CNAME, A records use ARecord.
type HostingTarget struct {
	CNAME   string `json:"cname"`
	ARecord string `json:"aRecord"`
}

func (t HostingTarget) ValueFor(rt RecordType) string {
	if rt == RecordTypeA {
		return t.ARecord
	}
	return t.CNAME
}

type ProviderCapabilities struct {
	ProviderName  string  `json:"providerName"`
	SupportsANAME bool    `json:"supportsANAME"`
	SupportsALIAS bool    `json:"supportsALIAS"`
	SupportsCNAME bool    `json:"supportsCNAME"`
	SupportsA     bool    `json:"supportsA"`
	Confidence    float64 `json:"confidence"`
}
