package commands

import (
	"strings"
	"testing"

	"github.com/urfave/cli/v2"
)

func TestSweepIntervalUsage(t *testing.T) {
	for _, f := range serverCommand().Flags {
		df, ok := f.(*cli.DurationFlag)
		if !ok || df.Name != "sweep-interval" {
			continue
		}
		if !strings.Contains(df.Usage, "pending and failed") {
			t.Errorf("usage = %q, want it to name the statuses the sweep restarts", df.Usage)
		}
		return
	}
	t.Fatal("sweep-interval flag not found")
}

func TestGetCommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range GetCommands() {
		names[c.Name] = true
	}
	for _, want := range []string{"api-server", "check", "version"} {
		if !names[want] {
			t.Errorf("missing command %q", want)
		}
	}
}
