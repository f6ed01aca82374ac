package repository

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"vanish_chat_service/pkg/database"
)

// MediaRepository definition attachment object storage
type MediaRepository interface {
	// Upload stores the blob under objectName and returns a fetchable URL
	Upload(ctx context.Context, objectName string, data []byte, contentType string) (string, error)
}

type minioMediaRepository struct {
	client    *database.MinIOClient
	urlExpiry time.Duration
}

// NewMinioMediaRepository create a MediaRepository backed by MinIO
func NewMinioMediaRepository(client *database.MinIOClient, urlExpiry time.Duration) MediaRepository {
	return &minioMediaRepository{
		client:    client,
		urlExpiry: urlExpiry,
	}
}

// Upload puts the object and presigns a GET URL for it.
func (r *minioMediaRepository) Upload(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	if err := r.client.PutObject(ctx, objectName, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return "", fmt.Errorf("upload object [%s]: %w", objectName, err)
	}

	url, err := r.client.PresignGetURL(ctx, objectName, r.urlExpiry)
	if err != nil {
		return "", fmt.Errorf("presign object [%s]: %w", objectName, err)
	}
	return url, nil
}
