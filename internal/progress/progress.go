package progress

import (
	"context"
	"log"
	"time"

	"github.com/pokedex-pipeline/internal/model"
)

const defaultInterval = 5 * time.Second

// Run logs pipeline counters every interval until ctx is done. It reads the
// live summary through Counts, so it never blocks the workers updating it.
func Run(ctx context.Context, summary *model.Tracker, interval time.Duration) {
	if interval <= 0 {
		interval = defaultInterval
	}
	var prev model.StageCounts
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		c := summary.Counts()
		log.Printf("progress (this interval): fetched %d, enriched %d, loaded %d, rejected %d, failed %d",
			c.Fetched-prev.Fetched, c.Enriched-prev.Enriched, c.Loaded-prev.Loaded,
			c.Rejected-prev.Rejected, c.Failed-prev.Failed)
		log.Printf("progress (cumulative): %d/%d loaded, %d rejected, %d failed",
			c.Loaded, c.Targets, c.Rejected, c.Failed)
		prev = c
	}
}
