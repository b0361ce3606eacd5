package hostname

import (
	"fmt"
	"net"
	"strings"

	"golang.org/x/net/publicsuffix"
)

const (
	maxHostnameLength = 253
	maxLabelLength    = 63
	minTLDLength      = 2
)

var reservedSuffixes = []string{
	".test",
	".example",
	".invalid",
	".localhost",
}

var reservedDomains = []string{
	"example.com",
	"example.net",
	"example.org",
}

type Result struct {
	Hostname string   `json:"hostname"`
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// StripScheme reduces user input such as "https://Example.com:443/path" to "example.com".
func StripScheme(raw string) string {
	host := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.TrimSuffix(host, ".")
}

// Validate checks the syntax of a hostname and reports every rule it breaks.
func Validate(raw string) Result {
	host := StripScheme(raw)
	res := Result{Hostname: host}

	if host == "" {
		res.Errors = append(res.Errors, "domain is required")
		return res
	}

	if len(host) > maxHostnameLength {
		res.Errors = append(res.Errors, fmt.Sprintf("domain must be at most %d characters, got %d", maxHostnameLength, len(host)))
	}

	if !strings.Contains(host, ".") {
		res.Errors = append(res.Errors, "domain must contain at least one dot")
	}

	labels := strings.Split(host, ".")
	emptyReported := false
	for _, label := range labels {
		if label == "" {
			if !emptyReported {
				res.Errors = append(res.Errors, "domain must not contain empty labels (consecutive, leading or trailing dots)")
				emptyReported = true
			}
			continue
		}
		res.Errors = append(res.Errors, labelErrors(label)...)
	}

	if len(labels) > 1 {
		if tld := labels[len(labels)-1]; tld != "" && len(tld) < minTLDLength {
			res.Errors = append(res.Errors, fmt.Sprintf("top-level domain %q must be at least %d characters", tld, minTLDLength))
		}
	}

	res.Valid = len(res.Errors) == 0
	if res.Valid {
		res.Warnings = warnings(host)
	}
	return res
}

func labelErrors(label string) []string {
	var errs []string
	if len(label) > maxLabelLength {
		errs = append(errs, fmt.Sprintf("label %q exceeds %d characters", label, maxLabelLength))
	}
	for _, r := range label {
		if !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r != '-' {
			errs = append(errs, fmt.Sprintf("label %q contains invalid character %q", label, r))
			break
		}
	}
	if strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
		errs = append(errs, fmt.Sprintf("label %q must not start or end with a hyphen", label))
	}
	return errs
}

func warnings(host string) []string {
	var warns []string

	for _, d := range reservedDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			warns = append(warns, fmt.Sprintf("%s is a reserved example domain and will never resolve to your site", host))
			break
		}
	}
	for _, suffix := range reservedSuffixes {
		if strings.HasSuffix(host, suffix) {
			warns = append(warns, fmt.Sprintf("%s uses the reserved %s suffix", host, suffix))
			break
		}
	}

	labels := strings.Split(host, ".")
	if labels[0] == "www" && len(labels) > 2 {
		warns = append(warns, fmt.Sprintf("consider configuring both %s and %s", host, strings.TrimPrefix(host, "www.")))
	}

	if suffix, icann := publicsuffix.PublicSuffix(host); icann && suffix == host {
		warns = append(warns, fmt.Sprintf("%s is a public suffix and cannot be registered", host))
	} else if registrable, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil && registrable != ApexDomain(host) {
		warns = append(warns, fmt.Sprintf("the registrable domain appears to be %s, not %s; check where the record belongs", registrable, ApexDomain(host)))
	}

	return warns
}

// IsApex reports whether host has no subdomain label: two labels, or three
// labels under a two-letter second level such as example.co.th.
func IsApex(host string) bool {
	return isApexLabels(strings.Split(StripScheme(host), "."))
}

func isApexLabels(labels []string) bool {
	switch len(labels) {
	case 2:
		return true
	case 3:
		return len(labels[1]) == 2 && len(labels[2]) == 2
	}
	return false
}

// ApexDomain strips leading labels until the remainder is an apex domain.
func ApexDomain(host string) string {
	labels := strings.Split(StripScheme(host), ".")
	for len(labels) > 2 && !isApexLabels(labels) {
		labels = labels[1:]
	}
	return strings.Join(labels, ".")
}

func FirstLabel(host string) string {
	host = StripScheme(host)
	if i := strings.Index(host, "."); i >= 0 {
		return host[:i]
	}
	return host
}
