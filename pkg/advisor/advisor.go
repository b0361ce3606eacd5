package advisor

import (
	"fmt"
	"time"

	"github.com/acorn-io/acorn-domains/pkg/hostname"
	"github.com/acorn-io/acorn-domains/pkg/model"
)

// RecordTTL is short so a mistake during initial setup propagates quickly.
const RecordTTL = 300 * time.Second

type Advisor struct {
	target model.HostingTarget
}

func New(target model.HostingTarget) *Advisor {
	return &Advisor{
		target: target,
	}
}

// DefaultCapabilities is assumed when no provider has been detected.
func DefaultCapabilities() model.ProviderCapabilities {
	return model.ProviderCapabilities{
		ProviderName:  "unknown",
		SupportsANAME: true,
		SupportsALIAS: true,
		SupportsCNAME: true,
		SupportsA:     true,
	}
}

// Recommend picks the record type to create for host. Apex domains cannot use
// CNAME, so they prefer ANAME, then ALIAS, then A.
func (a *Advisor) Recommend(host string, caps *model.ProviderCapabilities) model.RecordType {
	c := DefaultCapabilities()
	if caps != nil {
		c = *caps
	}

	if hostname.IsApex(host) {
		switch {
		case c.SupportsANAME:
			return model.RecordTypeAname
		case c.SupportsALIAS:
			return model.RecordTypeAlias
		}
		return model.RecordTypeA
	}

	if c.SupportsCNAME {
		return model.RecordTypeCname
	}
	return model.RecordTypeA
}

// Fallback is the record type to suggest when the recommended one cannot be created.
func (a *Advisor) Fallback(rt model.RecordType) model.RecordType {
	if rt == model.RecordTypeA {
		return ""
	}
	return model.RecordTypeA
}

type Instructions struct {
	Hostname   string
	RecordType model.RecordType
	Record     model.DNSRecord
	Steps      []string
}

func (a *Advisor) Instructions(host string, rt model.RecordType) (Instructions, error) {
	switch rt {
	case model.RecordTypeAname, model.RecordTypeAlias, model.RecordTypeCname, model.RecordTypeA:
	default:
		return Instructions{}, fmt.Errorf("unsupported record type for setup instructions: %s", rt)
	}

	host = hostname.StripScheme(host)
	name := "@"
	if !hostname.IsApex(host) {
		name = hostname.FirstLabel(host)
	}
	value := a.target.ValueFor(rt)

	record, err := model.NewDNSRecord(rt, name, value, RecordTTL)
	if err != nil {
		return Instructions{}, fmt.Errorf("hosting target for %s records is not configured: %w", rt, err)
	}

	steps := []string{
		fmt.Sprintf("Sign in to the DNS provider that manages %s", hostname.ApexDomain(host)),
		fmt.Sprintf("Create a new %s record", rt),
		fmt.Sprintf("Set the name (host) field to: %s", name),
		fmt.Sprintf("Set the value (target) field to: %s", value),
		fmt.Sprintf("Set the TTL to %d seconds", int(RecordTTL.Seconds())),
	}

	switch rt {
	case model.RecordTypeAname, model.RecordTypeAlias:
		steps = append(steps,
			fmt.Sprintf("Remove any existing A or AAAA records for %s", host),
			fmt.Sprintf("If your provider does not offer %s records, create an A record pointing to %s instead", rt, a.target.ARecord))
	case model.RecordTypeCname:
		steps = append(steps,
			fmt.Sprintf("Remove any other records (A, AAAA, TXT) that use the name %s", name))
	case model.RecordTypeA:
		steps = append(steps,
			"A records do not follow changes to the hosting IP; prefer ANAME or ALIAS if your provider supports them")
	}

	steps = append(steps, "Save the record and wait for DNS propagation, usually between 5 minutes and 48 hours")

	return Instructions{
		Hostname:   host,
		RecordType: rt,
		Record:     record,
		Steps:      steps,
	}, nil
}
