package advisor

import (
	"strings"
	"testing"

	"github.com/acorn-io/acorn-domains/pkg/model"
)

var testTarget = model.HostingTarget{
	CNAME:   "svc.example-host.net",
	ARecord: "203.0.113.10",
}

func TestRecommendApex(t *testing.T) {
	a := New(testTarget)
	tests := []struct {
		name string
		caps *model.ProviderCapabilities
		want model.RecordType
	}{
		{"default assumption", nil, model.RecordTypeAname},
		{"aname and alias", &model.ProviderCapabilities{SupportsANAME: true, SupportsALIAS: true, SupportsCNAME: true, SupportsA: true}, model.RecordTypeAname},
		{"alias only", &model.ProviderCapabilities{SupportsALIAS: true, SupportsCNAME: true, SupportsA: true}, model.RecordTypeAlias},
		{"cname and a", &model.ProviderCapabilities{SupportsCNAME: true, SupportsA: true}, model.RecordTypeA},
		{"nothing", &model.ProviderCapabilities{}, model.RecordTypeA},
	}

	for _, host := range []string{"acme.io", "acme.co.th"} {
		for _, tt := range tests {
			t.Run(host+"/"+tt.name, func(t *testing.T) {
				if got := a.Recommend(host, tt.caps); got != tt.want {
					t.Errorf("Recommend(%q) = %s, want %s", host, got, tt.want)
				}
			})
		}
	}
}

func TestRecommendSubdomain(t *testing.T) {
	a := New(testTarget)
	tests := []struct {
		name string
		caps *model.ProviderCapabilities
		want model.RecordType
	}{
		{"default assumption", nil, model.RecordTypeCname},
		{"everything", &model.ProviderCapabilities{SupportsANAME: true, SupportsALIAS: true, SupportsCNAME: true, SupportsA: true}, model.RecordTypeCname},
		{"no cname", &model.ProviderCapabilities{SupportsANAME: true, SupportsALIAS: true, SupportsA: true}, model.RecordTypeA},
	}

	for _, host := range []string{"www.acme.io", "api.service.acme.co.th"} {
		for _, tt := range tests {
			t.Run(host+"/"+tt.name, func(t *testing.T) {
				got := a.Recommend(host, tt.caps)
				if got != tt.want {
					t.Errorf("Recommend(%q) = %s, want %s", host, got, tt.want)
				}
				if got == model.RecordTypeAname || got == model.RecordTypeAlias {
					t.Errorf("subdomain %q must never get %s", host, got)
				}
			})
		}
	}
}

func TestInstructions(t *testing.T) {
	a := New(testTarget)
	tests := []struct {
		host      string
		rt        model.RecordType
		wantName  string
		wantValue string
	}{
		{"acme.io", model.RecordTypeAname, "@", "svc.example-host.net"},
		{"acme.io", model.RecordTypeAlias, "@", "svc.example-host.net"},
		{"acme.io", model.RecordTypeA, "@", "203.0.113.10"},
		{"www.acme.io", model.RecordTypeCname, "www", "svc.example-host.net"},
		{"shop.acme.co.uk", model.RecordTypeCname, "shop", "svc.example-host.net"},
	}

	for _, tt := range tests {
		t.Run(tt.host+"/"+string(tt.rt), func(t *testing.T) {
			ins, err := a.Instructions(tt.host, tt.rt)
			if err != nil {
				t.Fatalf("Instructions() error: %v", err)
			}
			if ins.Record.Name != tt.wantName {
				t.Errorf("record name = %q, want %q", ins.Record.Name, tt.wantName)
			}
			if ins.Record.Value != tt.wantValue {
				t.Errorf("record value = %q, want %q", ins.Record.Value, tt.wantValue)
			}
			if ins.Record.TTL != RecordTTL {
				t.Errorf("record ttl = %v, want %v", ins.Record.TTL, RecordTTL)
			}
			if len(ins.Steps) == 0 {
				t.Fatal("expected setup steps")
			}
			joined := strings.Join(ins.Steps, "\n")
			if !strings.Contains(joined, tt.wantValue) {
				t.Errorf("steps do not mention target %q:\n%s", tt.wantValue, joined)
			}
		})
	}
}

func TestInstructionsRejectsUnsupportedTypes(t *testing.T) {
	a := New(testTarget)
	for _, rt := range []model.RecordType{model.RecordTypeTxt, model.RecordTypeMx, model.RecordTypeAAAA, "SRV"} {
		if _, err := a.Instructions("acme.io", rt); err == nil {
			t.Errorf("Instructions(%s) expected error", rt)
		}
	}
}

func TestInstructionsMissingTarget(t *testing.T) {
	a := New(model.HostingTarget{CNAME: "svc.example-host.net"})
	if _, err := a.Instructions("acme.io", model.RecordTypeA); err == nil {
		t.Error("expected error when A record target is not configured")
	}
}

func TestFallback(t *testing.T) {
	a := New(testTarget)
	if got := a.Fallback(model.RecordTypeAname); got != model.RecordTypeA {
		t.Errorf("Fallback(ANAME) = %s, want A", got)
	}
	if got := a.Fallback(model.RecordTypeA); got != "" {
		t.Errorf("Fallback(A) = %s, want none", got)
	}
}
