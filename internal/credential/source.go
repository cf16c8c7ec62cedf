package credential

import (
	"context"
	"fmt"
	"os"

	"notify-service/internal/config"
)

// ObjectGetter reads a single object from the secret bucket.
type ObjectGetter interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
}

// Load resolves the service credential from the first configured source:
// inline JSON, a file, or an object in the secret bucket.
func Load(ctx context.Context, cfg config.CredentialConfig, objects ObjectGetter) (*ServiceCredential, error) {
	switch {
	case cfg.JSON != "":
		return ParseServiceCredential([]byte(cfg.JSON))
	case cfg.File != "":
		data, err := os.ReadFile(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCredential, err)
		}
		return ParseServiceCredential(data)
	case cfg.Bucket != "":
		if objects == nil {
			return nil, fmt.Errorf("%w: object store not configured", ErrCredential)
		}
		data, err := objects.Get(ctx, cfg.Bucket, cfg.Object)
		if err != nil {
			return nil, fmt.Errorf("%w: fetch %s/%s: %v", ErrCredential, cfg.Bucket, cfg.Object, err)
		}
		return ParseServiceCredential(data)
	}
	return nil, fmt.Errorf("%w: no credential source configured", ErrCredential)
}
