package validator

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/acorn-io/acorn-domains/pkg/model"
	"github.com/acorn-io/acorn-domains/pkg/resolver"
)

var target = model.HostingTarget{
	CNAME:   "svc.example-host.net",
	ARecord: "203.0.113.10",
}

type fakeChecker struct {
	values map[model.RecordType][]string
	block  map[model.RecordType]bool

	mu    sync.Mutex
	calls int
}

func (f *fakeChecker) CheckPropagation(ctx context.Context, domain string, rt model.RecordType, expected string) resolver.PropagationResult {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.block[rt] {
		<-ctx.Done()
		return resolver.PropagationResult{Domain: domain, RecordType: rt, Expected: expected, Error: ctx.Err().Error()}
	}

	res := resolver.PropagationResult{Domain: domain, RecordType: rt, Expected: expected, Values: f.values[rt], CheckedAt: time.Now()}
	for _, v := range res.Values {
		if resolver.SameValue(v, expected) {
			res.Propagated = true
		}
	}
	return res
}

func newValidator(f *fakeChecker) *Validator {
	return New(Config{Checker: f, Target: target, RaceTimeout: 200 * time.Millisecond})
}

func TestValidateApexAname(t *testing.T) {
	f := &fakeChecker{values: map[model.RecordType][]string{
		model.RecordTypeAname: {"svc.example-host.net"},
	}}

	res := newValidator(f).Validate(context.Background(), "example.com")
	if !res.IsValid || res.RecordType != model.RecordTypeAname {
		t.Fatalf("result = %+v, want valid ANAME", res)
	}
	if res.CurrentValue != "svc.example-host.net" {
		t.Errorf("current value = %q", res.CurrentValue)
	}
}

func TestValidateWrongCname(t *testing.T) {
	f := &fakeChecker{values: map[model.RecordType][]string{
		model.RecordTypeCname: {"wrong-target.com"},
	}}

	res := newValidator(f).Validate(context.Background(), "www.example.com")
	if res.IsValid {
		t.Fatal("expected invalid result")
	}
	if res.RecordType != model.RecordTypeCname || res.CurrentValue != "wrong-target.com" {
		t.Errorf("result = %+v, want CNAME wrong-target.com", res)
	}
	if len(res.ExpectedValues) != 2 || res.ExpectedValues[0] != target.CNAME || res.ExpectedValues[1] != target.ARecord {
		t.Errorf("expected values = %v", res.ExpectedValues)
	}
	if !containsText(res.Recommendations, target.CNAME) {
		t.Errorf("recommendations %v should name %s", res.Recommendations, target.CNAME)
	}
}

func TestValidatePriority(t *testing.T) {
	tests := []struct {
		name      string
		values    map[model.RecordType][]string
		want      model.RecordType
		recommend bool
	}{
		{
			name: "aname beats cname",
			values: map[model.RecordType][]string{
				model.RecordTypeAname: {"svc.example-host.net."},
				model.RecordTypeCname: {"svc.example-host.net"},
			},
			want: model.RecordTypeAname,
		},
		{
			name: "cname beats a",
			values: map[model.RecordType][]string{
				model.RecordTypeCname: {"SVC.example-host.net"},
				model.RecordTypeA:     {"203.0.113.10"},
			},
			want: model.RecordTypeCname,
		},
		{
			name: "a alone suggests aname",
			values: map[model.RecordType][]string{
				model.RecordTypeA: {"198.51.100.1", "203.0.113.10"},
			},
			want:      model.RecordTypeA,
			recommend: true,
		},
		{
			name: "correct a beats wrong aname",
			values: map[model.RecordType][]string{
				model.RecordTypeAname: {"old-host.example.org"},
				model.RecordTypeA:     {"203.0.113.10"},
			},
			want:      model.RecordTypeA,
			recommend: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newValidator(&fakeChecker{values: tt.values}).Validate(context.Background(), "app.acme.io")
			if !res.IsValid || res.RecordType != tt.want {
				t.Fatalf("result = %+v, want valid %s", res, tt.want)
			}
			if !resolver.SameValue(res.CurrentValue, target.ValueFor(tt.want)) {
				t.Errorf("current value = %q, want the matching record", res.CurrentValue)
			}
			if got := len(res.Recommendations) > 0; got != tt.recommend {
				t.Errorf("recommendations = %v", res.Recommendations)
			}
		})
	}
}

func TestValidateNoRecords(t *testing.T) {
	tests := []struct {
		host    string
		primary string
	}{
		{"acme.io", "Create a record of type ANAME with name @ pointing to svc.example-host.net"},
		{"shop.acme.io", "Create a record of type CNAME with name shop pointing to svc.example-host.net"},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			res := newValidator(&fakeChecker{}).Validate(context.Background(), tt.host)
			if res.IsValid || res.RecordType != "" || res.CurrentValue != "" {
				t.Fatalf("result = %+v, want invalid with nothing found", res)
			}
			if !containsText(res.Recommendations, "No DNS records found") {
				t.Errorf("missing no-records message in %v", res.Recommendations)
			}
			if !containsText(res.Recommendations, tt.primary) {
				t.Errorf("missing %q in %v", tt.primary, res.Recommendations)
			}
			if !containsText(res.Recommendations, "Or create a record of type A with name") {
				t.Errorf("missing fallback instructions in %v", res.Recommendations)
			}
		})
	}
}

func TestValidateRaceTimeout(t *testing.T) {
	f := &fakeChecker{
		values: map[model.RecordType][]string{model.RecordTypeCname: {"svc.example-host.net"}},
		block:  map[model.RecordType]bool{model.RecordTypeAname: true},
	}

	start := time.Now()
	res := newValidator(f).Validate(context.Background(), "www.acme.io")
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("validate took %v", elapsed)
	}
	if !res.IsValid || res.RecordType != model.RecordTypeCname {
		t.Errorf("result = %+v, want valid CNAME despite blocked ANAME check", res)
	}
}

func TestValidateInvalidHostname(t *testing.T) {
	f := &fakeChecker{}
	res := newValidator(f).Validate(context.Background(), "bad..host")
	if res.IsValid || len(res.Recommendations) == 0 {
		t.Errorf("result = %+v, want invalid with format errors", res)
	}
	if f.calls != 0 {
		t.Errorf("made %d lookups for an invalid hostname", f.calls)
	}
}

func containsText(lines []string, text string) bool {
	for _, l := range lines {
		if strings.Contains(l, text) {
			return true
		}
	}
	return false
}

func TestCollectKeepsResultsReadyAtDeadline(t *testing.T) {
	v := newValidator(&fakeChecker{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Repeated because select picks randomly between ready cases.
	for i := 0; i < 50; i++ {
		in := make(chan checked, 3)
		in <- checked{rt: model.RecordTypeAname, res: resolver.PropagationResult{RecordType: model.RecordTypeAname}}
		in <- checked{rt: model.RecordTypeCname, res: resolver.PropagationResult{RecordType: model.RecordTypeCname, Propagated: true}}

		checks := v.collect(ctx, "www.acme.io", in, 3)
		if len(checks) != 2 || !checks[model.RecordTypeCname].Propagated {
			t.Fatalf("iteration %d: checks = %+v, want both delivered results", i, checks)
		}
	}
}
