/*
Package storage is the blob-store collaborator for message attachments.

Clients never stream file bytes through the chat server. They request a
presigned upload URL, push the file to S3-compatible storage directly,
and then reference the returned key in a chat message.
*/
package storage

import (
	"context"
	"time"
)

// ServiceConfig holds the settings for the storage backend.
type ServiceConfig struct {
	S3BucketName      string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// Service is the interface the handlers consume.
type Service interface {
	// PresignUpload returns a time-limited URL for uploading a file.
	PresignUpload(ctx context.Context, key string, mimeType string, fileSize int64, duration time.Duration) (string, error)

	// PresignDownload returns a time-limited URL for downloading a file.
	PresignDownload(ctx context.Context, key string, duration time.Duration) (string, error)

	// Delete removes the file with the given key.
	Delete(ctx context.Context, key string) error
}

// NewService returns the S3-backed implementation.
func NewService(cfg ServiceConfig) (Service, error) {
	return newS3Client(cfg)
}
