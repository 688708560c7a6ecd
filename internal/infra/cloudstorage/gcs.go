package cloudstorage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"cloud.google.com/go/storage"
	"github.com/sirupsen/logrus"
)

// GCSMirror uploads backup copies into a Google Cloud Storage bucket.
// Credentials come from the environment (GOOGLE_APPLICATION_CREDENTIALS or the metadata server).
type GCSMirror struct {
	client *storage.Client
	bucket string
	prefix string
	logger *logrus.Entry
}

func NewGCSMirror(ctx context.Context, bucket, prefix string, logger *logrus.Entry) (*GCSMirror, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSMirror{client: client, bucket: bucket, prefix: prefix, logger: logger}, nil
}

// Upload copies the local file to gs://<bucket>/<prefix>/<objectName>.
func (m *GCSMirror) Upload(ctx context.Context, localPath, objectName string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	name := objectPath(m.prefix, objectName)
	wc := m.client.Bucket(m.bucket).Object(name).NewWriter(ctx)
	wc.ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	if _, err := io.Copy(wc, f); err != nil {
		_ = wc.Close()
		return fmt.Errorf("upload gs://%s/%s: %w", m.bucket, name, err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("finalize gs://%s/%s: %w", m.bucket, name, err)
	}

	m.logger.WithField("object", fmt.Sprintf("gs://%s/%s", m.bucket, name)).Info("Backup mirrored")
	return nil
}

func (m *GCSMirror) Close() error {
	return m.client.Close()
}

func objectPath(prefix, objectName string) string {
	if prefix == "" {
		return objectName
	}
	return path.Join(prefix, objectName)
}
