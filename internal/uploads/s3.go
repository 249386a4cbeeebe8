package uploads

import (
	"context"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// S3Store keeps the original file bytes in an S3 bucket under
// uploads/{owner}/{id}/{name}; record metadata stays in the Redis index.
type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	index    *recordIndex
}

func NewS3Store(ctx context.Context, bucket string, rdb *redis.Client) (*S3Store, error) {
	cfg, err := awscfg.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	cli := s3.NewFromConfig(cfg)
	return &S3Store{
		client:   cli,
		uploader: manager.NewUploader(cli),
		bucket:   bucket,
		index:    newRecordIndex(rdb),
	}, nil
}

func (s *S3Store) SaveUpload(ctx context.Context, ownerID, fileName, localPath, extractedText string) (*Record, error) {
	id := uuid.NewString()
	key := path.Join("uploads", ownerID, id, path.Base(fileName))

	f, err := os.Open(localPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("application/pdf"),
	})
	if err != nil {
		return nil, fmt.Errorf("upload to S3: %w", err)
	}

	rec := &Record{
		ID:            id,
		OwnerID:       ownerID,
		FileName:      fileName,
		FilePath:      key,
		ExtractedText: extractedText,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.index.put(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *S3Store) GetUpload(ctx context.Context, ownerID, id string) (*Record, error) {
	return s.index.get(ctx, ownerID, id)
}

func (s *S3Store) ListUploads(ctx context.Context, ownerID string) ([]Record, error) {
	return s.index.list(ctx, ownerID)
}

func (s *S3Store) DeleteUpload(ctx context.Context, ownerID, id string) error {
	rec, err := s.index.get(ctx, ownerID, id)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(rec.FilePath),
	})
	if err != nil {
		return fmt.Errorf("delete from S3: %w", err)
	}
	return s.index.remove(ctx, ownerID, id)
}
