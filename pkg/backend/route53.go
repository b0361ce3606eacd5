package backend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/acorn-io/acorn-domains/pkg/model"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/route53"
	"github.com/aws/aws-sdk-go/service/route53/route53iface"
	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

// Publisher writes recommended records into a Route53 hosted zone that this
// service manages on behalf of its users.
type Publisher struct {
	svc      route53iface.Route53API
	zoneID   string
	zoneName string
	ttl      time.Duration
}

func NewRoute53Publisher(ctx context.Context, zoneID string, ttl time.Duration) (*Publisher, error) {
	s, err := session.NewSession()
	if err != nil {
		return nil, err
	}

	svc := route53.New(s, &aws.Config{
		MaxRetries: aws.Int(3),
	})

	z, err := svc.GetHostedZoneWithContext(ctx, &route53.GetHostedZoneInput{
		Id: aws.String(zoneID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to look up hosted zone %s: %w", zoneID, err)
	}

	return newPublisher(svc, aws.StringValue(z.HostedZone.Id), aws.StringValue(z.HostedZone.Name), ttl), nil
}

func newPublisher(svc route53iface.Route53API, zoneID, zoneName string, ttl time.Duration) *Publisher {
	return &Publisher{
		svc:      svc,
		zoneID:   zoneID,
		zoneName: strings.ToLower(strings.TrimSuffix(zoneName, ".")),
		ttl:      ttl,
	}
}

func (p *Publisher) ZoneID() string {
	return p.zoneID
}

// Upsert creates or replaces the record for host and returns its fully
// qualified name. Route53 has no ANAME or ALIAS type, so callers pass an A
// record for apex hosts.
func (p *Publisher) Upsert(ctx context.Context, host string, record model.DNSRecord) (string, error) {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host != p.zoneName && !strings.HasSuffix(host, "."+p.zoneName) {
		return "", fmt.Errorf("%s is not part of hosted zone %s", host, p.zoneName)
	}

	switch record.Type {
	case model.RecordTypeA, model.RecordTypeCname, model.RecordTypeTxt:
	default:
		return "", fmt.Errorf("route53 cannot publish %s records", record.Type)
	}

	value := record.Value
	switch record.Type {
	case model.RecordTypeCname:
		value = dns.Fqdn(value)
	case model.RecordTypeTxt:
		if !strings.HasPrefix(value, "\"") {
			value = "\"" + value + "\""
		}
	}

	ttl := record.TTL
	if ttl <= 0 {
		ttl = p.ttl
	}

	fqdn := dns.Fqdn(host)
	input := &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(p.zoneID),
		ChangeBatch: &route53.ChangeBatch{
			Comment: aws.String("custom domain setup for " + host),
			Changes: []*route53.Change{
				{
					Action: aws.String(route53.ChangeActionUpsert),
					ResourceRecordSet: &route53.ResourceRecordSet{
						Name:            aws.String(fqdn),
						Type:            aws.String(string(record.Type)),
						TTL:             aws.Int64(int64(ttl.Seconds())),
						ResourceRecords: []*route53.ResourceRecord{{Value: aws.String(value)}},
					},
				},
			},
		},
	}

	if _, err := p.svc.ChangeResourceRecordSetsWithContext(ctx, input); err != nil {
		return "", fmt.Errorf("failed to upsert route53 record %v: %w", fqdn, err)
	}

	logrus.WithFields(logrus.Fields{"fqdn": fqdn, "type": record.Type, "zone": p.zoneID}).Info("Published record")
	return strings.TrimSuffix(fqdn, "."), nil
}
