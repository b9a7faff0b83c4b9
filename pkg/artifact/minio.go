package artifact

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"salesforecast/pkg/errs"
	"salesforecast/pkg/logger"
)

// MinioOptions holds the connection settings for MinioStore.
type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
	Bucket    string
	Prefix    string
}

// MinioStore keeps bundles as objects under an optional key prefix, using
// the same names as FileStore.
type MinioStore struct {
	client     *minio.Client
	bucketName string
	prefix     string
	logger     logger.Logger
}

// NewMinioStore connects and creates the bucket when it does not exist.
func NewMinioStore(ctx context.Context, opts MinioOptions, log logger.Logger) (*MinioStore, error) {
	if log == nil {
		log = logger.NewNop()
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		err = client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{Region: opts.Region})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		log.Info("created bucket", logger.String("bucket", opts.Bucket))
	}

	return &MinioStore{
		client:     client,
		bucketName: opts.Bucket,
		prefix:     strings.Trim(opts.Prefix, "/"),
		logger:     log,
	}, nil
}

func (m *MinioStore) key(name string) string {
	if m.prefix == "" {
		return name
	}
	return path.Join(m.prefix, name)
}

// Save implements Store.Save.
func (m *MinioStore) Save(ctx context.Context, b *Bundle) error {
	if err := checkRunID(b.RunID); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := Encode(&buf, b); err != nil {
		return err
	}
	key := m.key(objectName(b.RunID))
	if err := m.put(ctx, key, buf.Bytes()); err != nil {
		return err
	}
	if err := m.put(ctx, m.key(LatestRef), []byte(b.RunID+"\n")); err != nil {
		return err
	}
	m.logger.Info("bundle saved",
		logger.String("run_id", b.RunID),
		logger.String("bucket", m.bucketName),
		logger.String("key", key),
	)
	return nil
}

func (m *MinioStore) put(ctx context.Context, key string, body []byte) error {
	_, err := m.client.PutObject(ctx, m.bucketName, key, bytes.NewReader(body), int64(len(body)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		m.logger.Error("Failed to store object to MinIO",
			logger.String("bucket", m.bucketName),
			logger.String("key", key),
			logger.Error(err),
		)
		return fmt.Errorf("failed to store object %s: %w", key, err)
	}
	return nil
}

// get reads a whole object. A missing key is an errs.NotFound error.
func (m *MinioStore) get(ctx context.Context, key string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, m.getError(key, err)
	}
	defer obj.Close()
	if _, err := obj.Stat(); err != nil {
		return nil, m.getError(key, err)
	}
	raw, err := io.ReadAll(obj)
	if err != nil {
		return nil, m.getError(key, err)
	}
	return raw, nil
}

func (m *MinioStore) getError(key string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return errs.NotFound(err, "object %s not found in bucket %s", key, m.bucketName)
	}
	m.logger.Error("Failed to get object from MinIO",
		logger.String("bucket", m.bucketName),
		logger.String("key", key),
		logger.Error(err),
	)
	return fmt.Errorf("failed to get object %s: %w", key, err)
}

// Load implements Store.Load.
func (m *MinioStore) Load(ctx context.Context, runID string) (*Bundle, error) {
	if runID == LatestRef || runID == "" {
		id, err := m.Latest(ctx)
		if err != nil {
			return nil, err
		}
		runID = id
	}
	if err := checkRunID(runID); err != nil {
		return nil, err
	}
	raw, err := m.get(ctx, m.key(objectName(runID)))
	if err != nil {
		return nil, err
	}
	return Decode(bytes.NewReader(raw))
}

// Latest implements Store.Latest.
func (m *MinioStore) Latest(ctx context.Context) (string, error) {
	raw, err := m.get(ctx, m.key(LatestRef))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}
