package server

import (
	"context"
	"time"

	"github.com/narconet/narconet/pkg/changelog"
	"github.com/narconet/narconet/pkg/logging"
)

// pruneInterval is how often the server prunes change-log entries older
// than the maxAge passed to HousekeepRegularly, following the teacher's
// housekeeping-loop shape.
const pruneInterval = 1 * time.Hour

// HousekeepRegularly prunes the change log at a fixed interval for the life
// of ctx, per spec.md 4.6's pruneOlderThan(days) operation. It is designed
// to run as a background goroutine in narconet-server.
func HousekeepRegularly(ctx context.Context, detector *changelog.Detector, maxAge time.Duration, logger *logging.Logger) {
	prune := func() {
		if err := detector.Prune(maxAge); err != nil {
			logger.Warn(err)
		}
	}

	prune()

	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}
