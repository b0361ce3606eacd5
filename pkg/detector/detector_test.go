package detector

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/acorn-io/acorn-domains/pkg/model"
	"github.com/acorn-io/acorn-domains/pkg/resolver"
)

type fakeNS struct {
	values  []string
	err     string
	queried []string
}

func (f *fakeNS) Lookup(_ context.Context, domain string, rt model.RecordType) resolver.LookupResult {
	f.queried = append(f.queried, domain+"/"+string(rt))
	res := resolver.LookupResult{Domain: domain, RecordType: rt, Error: f.err}
	for _, v := range f.values {
		res.Records = append(res.Records, model.DNSRecord{Type: model.RecordTypeNs, Name: domain, Value: v})
	}
	res.Propagated = len(res.Records) > 0
	return res
}

func TestDetectKnownProviders(t *testing.T) {
	tests := []struct {
		name     string
		ns       []string
		provider string
		aname    bool
		alias    bool
	}{
		{"cloudflare", []string{"ada.ns.cloudflare.com.", "bob.ns.cloudflare.com."}, "Cloudflare", false, true},
		{"route53", []string{"ns-123.awsdns-45.com."}, "Amazon Route 53", false, false},
		{"dns made easy", []string{"ns10.dnsmadeeasy.com"}, "DNS Made Easy", true, false},
		{"uppercase", []string{"DNS1.REGISTRAR-SERVERS.COM."}, "Namecheap", false, true},
		{"first nameserver wins", []string{"ns1.digitalocean.com.", "ns1.dnsimple.com."}, "DigitalOcean", false, false},
		{"later nameserver matches", []string{"ns1.self-hosted.example.", "dns1.p01.nsone.net."}, "NS1", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New(&fakeNS{values: tt.ns})
			caps := d.Detect(context.Background(), "www.acme.io")
			if caps.ProviderName != tt.provider {
				t.Errorf("provider = %q, want %q", caps.ProviderName, tt.provider)
			}
			if caps.Confidence != 0.9 {
				t.Errorf("confidence = %v, want 0.9", caps.Confidence)
			}
			if caps.SupportsANAME != tt.aname || caps.SupportsALIAS != tt.alias {
				t.Errorf("aname/alias = %v/%v, want %v/%v", caps.SupportsANAME, caps.SupportsALIAS, tt.aname, tt.alias)
			}
			if !caps.SupportsCNAME || !caps.SupportsA {
				t.Error("known providers support CNAME and A")
			}
		})
	}
}

func TestDetectQueriesApex(t *testing.T) {
	f := &fakeNS{values: []string{"ns1.digitalocean.com."}}
	New(f).Detect(context.Background(), "api.shop.acme.co.uk")
	if len(f.queried) != 1 || f.queried[0] != "acme.co.uk/NS" {
		t.Errorf("queried %v, want [acme.co.uk/NS]", f.queried)
	}
}

func TestDetectFallbacks(t *testing.T) {
	t.Run("lookup failure", func(t *testing.T) {
		caps := New(&fakeNS{err: "doh endpoint returned status 503"}).Detect(context.Background(), "acme.io")
		if caps != Conservative() {
			t.Errorf("caps = %+v, want conservative default", caps)
		}
		if caps.Confidence != 0 || caps.SupportsANAME || caps.SupportsALIAS {
			t.Errorf("conservative default must not claim ANAME/ALIAS support: %+v", caps)
		}
	})

	t.Run("no nameservers", func(t *testing.T) {
		caps := New(&fakeNS{}).Detect(context.Background(), "acme.io")
		if caps != Conservative() {
			t.Errorf("caps = %+v, want conservative default", caps)
		}
	})

	t.Run("unknown provider", func(t *testing.T) {
		caps := New(&fakeNS{values: []string{"ns1.self-hosted.example."}}).Detect(context.Background(), "acme.io")
		if caps.ProviderName != "unknown" || caps.Confidence != 0.3 {
			t.Errorf("caps = %+v, want unknown provider with confidence 0.3", caps)
		}
		if !caps.SupportsANAME || !caps.SupportsALIAS || !caps.SupportsCNAME || !caps.SupportsA {
			t.Errorf("unknown provider should be permissive: %+v", caps)
		}
	})
}

func TestLoadSignatures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yaml")
	data := []byte(`
- name: Internal DNS
  patterns: ["NS.CORP-DNS.NET"]
  aname: true
  cname: true
  a: true
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	sigs, err := LoadSignatures(path)
	if err != nil {
		t.Fatalf("LoadSignatures() error: %v", err)
	}
	if len(sigs) != 1 || sigs[0].Patterns[0] != "ns.corp-dns.net" {
		t.Fatalf("unexpected signatures %+v", sigs)
	}

	caps := New(&fakeNS{values: []string{"a.ns.corp-dns.net."}}, sigs...).Detect(context.Background(), "acme.io")
	if caps.ProviderName != "Internal DNS" || !caps.SupportsANAME {
		t.Errorf("custom signature not matched: %+v", caps)
	}
}

func TestLoadSignaturesRejectsIncomplete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yaml")
	if err := os.WriteFile(path, []byte("- name: Nameless\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSignatures(path); err == nil {
		t.Error("expected error for a signature without patterns")
	}
}
