// internal/services/storage_service.go
package services

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/DevViTien/devshop-web-app/internal/config"
)

// LinkSigner issues time-limited download links for stored template files.
type LinkSigner interface {
	DownloadURL(key string, ttl time.Duration) (string, error)
}

type StorageService struct {
	s3Client *s3.S3
	config   *config.Config
}

func NewStorageService(config *config.Config) (*StorageService, error) {
	if config.AWS.AccessKeyID == "" {
		// Without credentials links point at the local file server.
		return &StorageService{config: config}, nil
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(config.AWS.Region),
		Credentials: credentials.NewStaticCredentials(
			config.AWS.AccessKeyID,
			config.AWS.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &StorageService{
		s3Client: s3.New(sess),
		config:   config,
	}, nil
}

// objectKey strips an s3:// or bucket URL prefix from a stored file reference.
func (s *StorageService) objectKey(ref string) string {
	ref = strings.TrimPrefix(ref, "s3://"+s.config.AWS.S3Bucket+"/")
	if u, err := url.Parse(ref); err == nil && u.Host != "" && strings.HasPrefix(u.Host, s.config.AWS.S3Bucket+".") {
		return strings.TrimPrefix(u.Path, "/")
	}
	return strings.TrimPrefix(ref, "/")
}

// DownloadURL returns a presigned GET link valid for ttl. Files hosted
// outside the bucket are returned unchanged.
func (s *StorageService) DownloadURL(ref string, ttl time.Duration) (string, error) {
	if ref == "" {
		return "", fmt.Errorf("template has no file to download")
	}

	key := s.objectKey(ref)
	if strings.HasPrefix(key, "http://") || strings.HasPrefix(key, "https://") {
		return key, nil
	}

	if s.s3Client == nil {
		return fmt.Sprintf("http://%s:%s/files/%s", s.config.Server.Host, s.config.Server.Port, key), nil
	}

	// S3 caps presigned links at seven days.
	if ttl > 7*24*time.Hour {
		ttl = 7 * 24 * time.Hour
	}

	req, _ := s.s3Client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.config.AWS.S3Bucket),
		Key:    aws.String(key),
	})

	link, err := req.Presign(ttl)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return link, nil
}
