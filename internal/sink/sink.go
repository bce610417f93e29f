// Package sink appends cycle records to durable storage. The CSV partition
// files are the primary dataset; Postgres is an optional mirror.
package sink

import (
	"context"
	"time"

	"github.com/smenon/traffic-collector/internal/models"
)

// Sink appends a cycle's records to the partition for cycleDate. Appends are
// not transactional: a crash mid-write can leave a partial partition and a
// re-run appends duplicates rather than deduplicating.
type Sink interface {
	Append(ctx context.Context, records []models.Record, cycleDate time.Time) error
}
