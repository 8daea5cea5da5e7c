package moments

import (
	"fmt"

	"github.com/kozaktomas/photo-moments/internal/database"
)

// ErrAssetNotFound is returned by Engine.Process when the asset no longer
// exists. Nothing is committed for that unit of work.
var ErrAssetNotFound = fmt.Errorf("asset not found: %w", database.ErrNotFound)
