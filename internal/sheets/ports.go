package sheets

import (
	"context"

	"hisab/internal/core"
)

// Ports for outbound adapters.
type (
	// DatasetMirror rewrites an external copy of the dataset as of revision.
	DatasetMirror interface {
		Mirror(ctx context.Context, ds core.Dataset, revision int64) error
	}
)
