// Package s3service fetches rule documents stored in S3
package s3service

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	appConfig "health-eligibility-engine/internal/config"
	"health-eligibility-engine/internal/utils"
)

// Service reads rule documents from an S3 bucket. It satisfies the rule
// store's Source interface, so a deployment can keep its rule set in S3
// and reload it without shipping files to the host.
type Service struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewService creates a new S3-backed rule source.
func NewService(ctx context.Context, appCfg *appConfig.Config) (*Service, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Service{
		client: s3.NewFromConfig(cfg),
		bucket: appCfg.RulesS3Bucket,
		prefix: appCfg.RulesS3Prefix,
	}, nil
}

// FetchDocuments lists every .json object under the rules prefix and
// downloads each one, keyed by its base object name.
func (s *Service) FetchDocuments(ctx context.Context) (map[string][]byte, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	}
	if s.prefix != "" {
		input.Prefix = aws.String(s.prefix)
	}

	result, err := s.client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to list rule objects: %w", err)
	}

	docs := make(map[string][]byte)
	for _, obj := range result.Contents {
		key := aws.ToString(obj.Key)
		if !strings.EqualFold(path.Ext(key), ".json") {
			continue
		}
		data, err := s.DownloadObject(ctx, key)
		if err != nil {
			return nil, err
		}
		docs[path.Base(key)] = data
	}

	utils.GetLogger().Info("Fetched rule documents from S3",
		zap.String("bucket", s.bucket),
		zap.String("prefix", s.prefix),
		zap.Int("documents", len(docs)),
	)

	return docs, nil
}

// DownloadObject downloads one object from the rules bucket.
func (s *Service) DownloadObject(ctx context.Context, key string) ([]byte, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}

	result, err := s.client.GetObject(ctx, input)
	if err != nil {
		utils.GetLogger().Error("Failed to download rule object",
			zap.String("bucket", s.bucket),
			zap.String("key", key),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to download %s: %w", key, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}

	return data, nil
}

// UploadObject writes one rule document back to the bucket. Used by
// operational tooling to push updated rule sets.
func (s *Service) UploadObject(ctx context.Context, key string, data []byte) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(string(data)),
		ContentType: aws.String("application/json"),
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}

	utils.GetLogger().Info("Uploaded rule document to S3",
		zap.String("bucket", s.bucket),
		zap.String("key", key),
		zap.Int("size", len(data)),
	)

	return nil
}
