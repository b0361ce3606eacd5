package detector

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/acorn-io/acorn-domains/pkg/hostname"
	"github.com/acorn-io/acorn-domains/pkg/model"
	"github.com/acorn-io/acorn-domains/pkg/resolver"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	matchedConfidence = 0.9
	unknownConfidence = 0.3
)

// NSLookuper is the part of the resolver the detector needs.
type NSLookuper interface {
	Lookup(ctx context.Context, domain string, rt model.RecordType) resolver.LookupResult
}

// Signature identifies a DNS provider by a substring of its nameserver hostnames.
type Signature struct {
	Name          string   `yaml:"name"`
	Patterns      []string `yaml:"patterns"`
	SupportsANAME bool     `yaml:"aname"`
	SupportsALIAS bool     `yaml:"alias"`
	SupportsCNAME bool     `yaml:"cname"`
	SupportsA     bool     `yaml:"a"`
}

var DefaultSignatures = []Signature{
	{Name: "Cloudflare", Patterns: []string{"ns.cloudflare.com"}, SupportsALIAS: true, SupportsCNAME: true, SupportsA: true},
	{Name: "Amazon Route 53", Patterns: []string{"awsdns"}, SupportsCNAME: true, SupportsA: true},
	{Name: "Google Cloud DNS", Patterns: []string{"googledomains.com", "ns-cloud"}, SupportsCNAME: true, SupportsA: true},
	{Name: "Azure DNS", Patterns: []string{"azure-dns"}, SupportsCNAME: true, SupportsA: true},
	{Name: "DigitalOcean", Patterns: []string{"digitalocean.com"}, SupportsCNAME: true, SupportsA: true},
	{Name: "DNSimple", Patterns: []string{"dnsimple.com", "dnsimple-edge"}, SupportsALIAS: true, SupportsCNAME: true, SupportsA: true},
	{Name: "DNS Made Easy", Patterns: []string{"dnsmadeeasy.com"}, SupportsANAME: true, SupportsCNAME: true, SupportsA: true},
	{Name: "NS1", Patterns: []string{"nsone.net"}, SupportsALIAS: true, SupportsCNAME: true, SupportsA: true},
	{Name: "Namecheap", Patterns: []string{"registrar-servers.com"}, SupportsALIAS: true, SupportsCNAME: true, SupportsA: true},
	{Name: "GoDaddy", Patterns: []string{"domaincontrol.com"}, SupportsCNAME: true, SupportsA: true},
	{Name: "Gandi", Patterns: []string{"gandi.net"}, SupportsALIAS: true, SupportsCNAME: true, SupportsA: true},
	{Name: "Porkbun", Patterns: []string{"porkbun.com"}, SupportsALIAS: true, SupportsCNAME: true, SupportsA: true},
	{Name: "Name.com", Patterns: []string{".name.com"}, SupportsANAME: true, SupportsCNAME: true, SupportsA: true},
	{Name: "Vercel", Patterns: []string{"vercel-dns.com"}, SupportsALIAS: true, SupportsCNAME: true, SupportsA: true},
}

type Detector struct {
	resolver   NSLookuper
	signatures []Signature
	log        *logrus.Entry
}

// New builds a detector; extra signatures are matched before the built-in table.
func New(r NSLookuper, extra ...Signature) *Detector {
	sigs := make([]Signature, 0, len(extra)+len(DefaultSignatures))
	sigs = append(sigs, extra...)
	sigs = append(sigs, DefaultSignatures...)
	return &Detector{
		resolver:   r,
		signatures: sigs,
		log:        logrus.WithField("component", "provider-detector"),
	}
}

// LoadSignatures reads a YAML list of provider signatures.
func LoadSignatures(path string) ([]Signature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var sigs []Signature
	if err := yaml.Unmarshal(data, &sigs); err != nil {
		return nil, fmt.Errorf("failed to parse provider signatures %s: %w", path, err)
	}
	for i, s := range sigs {
		if s.Name == "" || len(s.Patterns) == 0 {
			return nil, fmt.Errorf("provider signature %d in %s needs a name and at least one pattern", i, path)
		}
		for j := range s.Patterns {
			sigs[i].Patterns[j] = strings.ToLower(s.Patterns[j])
		}
	}
	return sigs, nil
}

// Conservative is returned when nameservers cannot be determined.
func Conservative() model.ProviderCapabilities {
	return model.ProviderCapabilities{
		ProviderName:  "unknown",
		SupportsCNAME: true,
		SupportsA:     true,
	}
}

// Detect infers the DNS provider of domain from its apex nameservers.
func (d *Detector) Detect(ctx context.Context, domain string) model.ProviderCapabilities {
	apex := hostname.ApexDomain(domain)
	res := d.resolver.Lookup(ctx, apex, model.RecordTypeNs)
	if res.Error != "" || len(res.Records) == 0 {
		d.log.WithField("domain", apex).Debugf("no nameservers found: %s", res.Error)
		return Conservative()
	}

	for _, rec := range res.Records {
		ns := strings.ToLower(strings.TrimSuffix(rec.Value, "."))
		for _, sig := range d.signatures {
			for _, pattern := range sig.Patterns {
				if strings.Contains(ns, pattern) {
					return model.ProviderCapabilities{
						ProviderName:  sig.Name,
						SupportsANAME: sig.SupportsANAME,
						SupportsALIAS: sig.SupportsALIAS,
						SupportsCNAME: sig.SupportsCNAME,
						SupportsA:     sig.SupportsA,
						Confidence:    matchedConfidence,
					}
				}
			}
		}
	}

	return model.ProviderCapabilities{
		ProviderName:  "unknown",
		SupportsANAME: true,
		SupportsALIAS: true,
		SupportsCNAME: true,
		SupportsA:     true,
		Confidence:    unknownConfidence,
	}
}
