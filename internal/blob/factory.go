package blob

import (
	"context"
	"fmt"
)

// Open constructs a Store for the named driver. root applies to the
// filesystem driver; the s3 driver reads its settings from the environment.
func Open(ctx context.Context, driver Driver, root string) (Store, error) {
	switch driver {
	case DriverFilesystem, "":
		return NewFSStore(root)
	case DriverS3:
		return NewS3StoreFromEnv(ctx)
	case DriverMemory:
		return NewMemStore(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", driver)
	}
}
