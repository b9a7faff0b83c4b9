package artifact

import (
	"context"
	"fmt"

	"salesforecast/pkg/config"
	"salesforecast/pkg/logger"
)

// Store types accepted by NewStore.
const (
	StoreTypeFile  = "file"
	StoreTypeMinio = "minio"
)

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*MinioStore)(nil)
)

// NewStore builds the store selected in the artifacts config section.
func NewStore(ctx context.Context, cfg config.ArtifactsConfig, log logger.Logger) (Store, error) {
	switch cfg.Store {
	case StoreTypeFile, "":
		s, err := NewFileStore(cfg.Dir, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	case StoreTypeMinio:
		m := cfg.Minio
		s, err := NewMinioStore(ctx, MinioOptions{
			Endpoint:  m.Endpoint,
			AccessKey: m.AccessKey,
			SecretKey: m.SecretKey,
			UseSSL:    m.UseSSL,
			Region:    m.Region,
			Bucket:    m.Bucket,
			Prefix:    m.Prefix,
		}, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported artifact store: %s", cfg.Store)
	}
}
