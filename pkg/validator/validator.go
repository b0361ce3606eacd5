package validator

import (
	"context"
	"fmt"
	"time"

	"github.com/acorn-io/acorn-domains/pkg/advisor"
	"github.com/acorn-io/acorn-domains/pkg/hostname"
	"github.com/acorn-io/acorn-domains/pkg/model"
	"github.com/acorn-io/acorn-domains/pkg/resolver"
	"github.com/sirupsen/logrus"
)

// DefaultRaceTimeout bounds each record type check so an unsupported type
// fails fast instead of spending the resolver's whole retry budget.
const DefaultRaceTimeout = time.Second

// checkOrder is also the decision priority.
var checkOrder = []model.RecordType{
	model.RecordTypeAname,
	model.RecordTypeCname,
	model.RecordTypeA,
}

type PropagationChecker interface {
	CheckPropagation(ctx context.Context, domain string, rt model.RecordType, expected string) resolver.PropagationResult
}

type Config struct {
	Checker     PropagationChecker
	Target      model.HostingTarget
	RaceTimeout time.Duration
	Log         *logrus.Entry
}

type Validator struct {
	checker     PropagationChecker
	target      model.HostingTarget
	advisor     *advisor.Advisor
	raceTimeout time.Duration
	log         *logrus.Entry
}

func New(cfg Config) *Validator {
	v := &Validator{
		checker:     cfg.Checker,
		target:      cfg.Target,
		advisor:     advisor.New(cfg.Target),
		raceTimeout: cfg.RaceTimeout,
		log:         cfg.Log,
	}
	if v.raceTimeout <= 0 {
		v.raceTimeout = DefaultRaceTimeout
	}
	if v.log == nil {
		v.log = logrus.WithField("component", "config-validator")
	}
	return v
}

type Result struct {
	Hostname        string           `json:"hostname"`
	IsValid         bool             `json:"isValid"`
	RecordType      model.RecordType `json:"recordType,omitempty"`
	CurrentValue    string           `json:"currentValue,omitempty"`
	ExpectedValues  []string         `json:"expectedValues,omitempty"`
	Recommendations []string         `json:"recommendations,omitempty"`
}

// Validate reports whether domain currently points at the hosting target.
func (v *Validator) Validate(ctx context.Context, domain string) Result {
	format := hostname.Validate(domain)
	res := Result{Hostname: format.Hostname}
	if !format.Valid {
		res.Recommendations = format.Errors
		return res
	}
	host := format.Hostname

	checks := v.race(ctx, host)

	for _, rt := range checkOrder {
		if c := checks[rt]; c.Propagated {
			res.IsValid = true
			res.RecordType = rt
			res.CurrentValue = matching(c.Values, c.Expected)
			if rt == model.RecordTypeA {
				res.Recommendations = append(res.Recommendations,
					"A records must be updated by hand if the hosting IP changes; consider an ANAME or ALIAS record if your provider supports them")
			}
			return res
		}
	}

	res.ExpectedValues = v.expectedValues()

	for _, rt := range checkOrder {
		c := checks[rt]
		if len(c.Values) == 0 {
			continue
		}
		res.RecordType = rt
		res.CurrentValue = c.Values[0]
		res.Recommendations = append(res.Recommendations,
			fmt.Sprintf("%s record for %s points to %s", rt, host, c.Values[0]),
			fmt.Sprintf("Update it to point to %s", v.target.ValueFor(rt)))
		if rt != model.RecordTypeA && v.target.ARecord != "" {
			res.Recommendations = append(res.Recommendations,
				fmt.Sprintf("Alternatively use an A record pointing to %s", v.target.ARecord))
		}
		return res
	}

	res.Recommendations = append(res.Recommendations, fmt.Sprintf("No DNS records found for %s", host))
	res.Recommendations = append(res.Recommendations, v.setupHints(host)...)
	return res
}

type checked struct {
	rt  model.RecordType
	res resolver.PropagationResult
}

func (v *Validator) race(ctx context.Context, host string) map[model.RecordType]resolver.PropagationResult {
	ctx, cancel := context.WithTimeout(ctx, v.raceTimeout)
	defer cancel()

	results := make(chan checked, len(checkOrder))
	for _, rt := range checkOrder {
		go func(rt model.RecordType) {
			results <- checked{rt: rt, res: v.checker.CheckPropagation(ctx, host, rt, v.target.ValueFor(rt))}
		}(rt)
	}

	return v.collect(ctx, host, results, len(checkOrder))
}

// collect gathers up to n results until ctx ends. Results already delivered
// when the deadline fires are still kept.
func (v *Validator) collect(ctx context.Context, host string, results <-chan checked, n int) map[model.RecordType]resolver.PropagationResult {
	checks := make(map[model.RecordType]resolver.PropagationResult, n)
	add := func(c checked) {
		checks[c.rt] = c.res
		if c.res.Error != "" {
			v.log.WithFields(logrus.Fields{"domain": host, "type": c.rt}).Debugf("check failed: %s", c.res.Error)
		}
	}

	for len(checks) < n {
		select {
		case c := <-results:
			add(c)
		case <-ctx.Done():
			for len(checks) < n {
				select {
				case c := <-results:
					add(c)
				default:
					v.log.WithField("domain", host).Debugf("record checks timed out after %v", v.raceTimeout)
					return checks
				}
			}
		}
	}
	return checks
}

func (v *Validator) expectedValues() []string {
	var values []string
	for _, value := range []string{v.target.CNAME, v.target.ARecord} {
		if value != "" {
			values = append(values, value)
		}
	}
	return values
}

func (v *Validator) setupHints(host string) []string {
	primary := v.advisor.Recommend(host, nil)
	types := []model.RecordType{primary}
	if fallback := v.advisor.Fallback(primary); fallback != "" {
		types = append(types, fallback)
	}

	var hints []string
	for i, rt := range types {
		inst, err := v.advisor.Instructions(host, rt)
		if err != nil {
			continue
		}
		prefix := "Create"
		if i > 0 {
			prefix = "Or create"
		}
		hints = append(hints, fmt.Sprintf("%s a record of type %s with name %s pointing to %s", prefix, rt, inst.Record.Name, inst.Record.Value))
	}
	return hints
}

func matching(values []string, expected string) string {
	for _, value := range values {
		if resolver.SameValue(value, expected) {
			return value
		}
	}
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
