package services

import (
	"context"
	"fmt"
	"path"

	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/pdfweave/internal/gcp"
)

// GCSDelivery writes exported PDFs to a bucket under an optional prefix.
type GCSDelivery struct {
	bucket     *storage.BucketHandle
	bucketName string
	prefix     string
}

func NewGCSDelivery(client *storage.Client, bucketName, prefix string) *GCSDelivery {
	return &GCSDelivery{bucket: client.Bucket(bucketName), bucketName: bucketName, prefix: prefix}
}

// Deliver uploads data as <prefix>/<fileName> and returns its gs:// URI.
// fileName must be a bare name; anything that would resolve outside prefix
// is refused.
func (d *GCSDelivery) Deliver(ctx context.Context, fileName string, data []byte) (string, error) {
	if fileName == "" || fileName == "." || fileName == ".." || fileName != path.Base(fileName) {
		return "", fmt.Errorf("invalid output file name %q", fileName)
	}
	objectName := path.Join(d.prefix, fileName)
	if err := gcp.UploadWithRetry(ctx, d.bucket, objectName, "application/pdf", data); err != nil {
		return "", err
	}
	return fmt.Sprintf("gs://%s/%s", d.bucketName, objectName), nil
}
