package backend

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/wait"
)

const (
	DefaultSweepInterval = 10 * time.Minute

	sweepJitter = 0.1
)

// StartSweepDaemon periodically restarts verification for every pending or
// failed domain that has no active run. It blocks until stopCh is closed.
func (b *backend) StartSweepDaemon(stopCh <-chan struct{}) {
	interval := b.sweepInterval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	logrus.Infof("starting verification sweep daemon. Sweep interval: %v", interval)
	wait.JitterUntil(func() { b.sweep(interval) }, interval, sweepJitter, true, stopCh)
}

func (b *backend) sweep(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	started, err := b.verifier.VerifyAllPending(ctx)
	if err != nil {
		logrus.Errorf("problem sweeping domains awaiting verification: %v", err)
	}
	logrus.Infof("Verification runs started by sweep: %v", started)
}
