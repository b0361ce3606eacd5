package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/acorn-io/acorn-domains/pkg/advisor"
	"github.com/acorn-io/acorn-domains/pkg/hostname"
	"github.com/acorn-io/acorn-domains/pkg/model"
	"github.com/acorn-io/acorn-domains/pkg/validator"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Padding(1, 2)
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	okStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

type checkHostCommand struct{}

// report is everything the check command learned about a hostname.
type report struct {
	host         hostname.Result
	caps         model.ProviderCapabilities
	instructions advisor.Instructions
	fallback     *model.DNSRecord
	validation   validator.Result
}

func (cc *checkHostCommand) Execute(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one hostname, got %d arguments", c.NArg())
	}

	host := hostname.Validate(c.Args().First())
	if !host.Valid {
		fmt.Println(renderInvalid(host))
		return fmt.Errorf("%s is not a valid hostname", host.Hostname)
	}

	log := logrus.WithField("command", "check")
	eng, err := newEngine(c, log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()

	r, err := eng.check(ctx, host)
	if err != nil {
		return err
	}
	fmt.Println(r.render())
	return nil
}

func (e *engine) check(ctx context.Context, host hostname.Result) (report, error) {
	r := report{host: host}

	r.caps = e.detector.Detect(ctx, host.Hostname)
	rt := e.advisor.Recommend(host.Hostname, &r.caps)
	inst, err := e.advisor.Instructions(host.Hostname, rt)
	if err != nil {
		return report{}, err
	}
	r.instructions = inst

	if fallback := e.advisor.Fallback(rt); fallback != "" {
		if fb, err := e.advisor.Instructions(host.Hostname, fallback); err == nil {
			r.fallback = &fb.Record
		}
	}

	r.validation = e.validator.Validate(ctx, host.Hostname)
	return r, nil
}

func renderInvalid(host hostname.Result) string {
	lines := make([]string, 0, len(host.Errors))
	for _, e := range host.Errors {
		lines = append(lines, errStyle.Render("✗ ")+e)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Invalid hostname "+host.Hostname),
		boxStyle.Render(strings.Join(lines, "\n")),
	)
}

func (r report) render() string {
	provider := fmt.Sprintf("%s (confidence %.0f%%)", r.caps.ProviderName, r.caps.Confidence*100)
	record := r.instructions.Record

	setup := []string{
		field("Provider", provider),
		field("Record", fmt.Sprintf("%s %s -> %s (TTL %s)", record.Type, record.Name, record.Value, record.TTL)),
	}
	if r.fallback != nil {
		setup = append(setup, field("Fallback", fmt.Sprintf("%s %s -> %s", r.fallback.Type, r.fallback.Name, r.fallback.Value)))
	}
	for i, step := range r.instructions.Steps {
		setup = append(setup, fmt.Sprintf("  %d. %s", i+1, step))
	}
	for _, w := range r.host.Warnings {
		setup = append(setup, warnStyle.Render("! "+w))
	}

	status := errStyle.Render("✗ not configured")
	if r.validation.IsValid {
		status = okStyle.Render(fmt.Sprintf("✓ %s record is in place", r.validation.RecordType))
	}
	current := []string{field("Status", status)}
	if r.validation.CurrentValue != "" {
		current = append(current, field("Current", r.validation.CurrentValue))
	}
	for _, rec := range r.validation.Recommendations {
		current = append(current, "- "+rec)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Custom domain check for "+r.host.Hostname),
		boxStyle.Render(strings.Join(setup, "\n")),
		boxStyle.Render(strings.Join(current, "\n")),
	)
}

func field(name, value string) string {
	return labelStyle.Render(name+":") + " " + value
}

func checkCommand() *cli.Command {
	cmd := checkHostCommand{}

	flags := []cli.Flag{
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Give up on lookups after this long",
			Value: 30 * time.Second,
		},
	}
	flags = append(flags, engineFlags()...)

	return &cli.Command{
		Name:      "check",
		Usage:     "detect the DNS provider of a hostname and check its custom domain records",
		ArgsUsage: "HOSTNAME",
		Action:    cmd.Execute,
		Flags:     append(flags, GlobalFlags()...),
		Before:    Before,
	}
}
