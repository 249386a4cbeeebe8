package uploads

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// LocalStore keeps file bytes in a directory on disk. Used in dev and
// single-node deployments where S3 is not configured.
type LocalStore struct {
	dir   string
	index *recordIndex
}

func NewLocalStore(dir string, client *redis.Client) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{dir: dir, index: newRecordIndex(client)}, nil
}

func (s *LocalStore) SaveUpload(ctx context.Context, ownerID, fileName, localPath, extractedText string) (*Record, error) {
	id := uuid.NewString()
	ownerDir := filepath.Join(s.dir, ownerID)
	if err := os.MkdirAll(ownerDir, 0o755); err != nil {
		return nil, err
	}
	dst := filepath.Join(ownerDir, id+"_"+filepath.Base(fileName))
	if err := copyFile(localPath, dst); err != nil {
		return nil, fmt.Errorf("store upload file: %w", err)
	}

	rec := &Record{
		ID:            id,
		OwnerID:       ownerID,
		FileName:      fileName,
		FilePath:      dst,
		ExtractedText: extractedText,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.index.put(ctx, rec); err != nil {
		os.Remove(dst)
		return nil, err
	}
	return rec, nil
}

func (s *LocalStore) GetUpload(ctx context.Context, ownerID, id string) (*Record, error) {
	return s.index.get(ctx, ownerID, id)
}

func (s *LocalStore) ListUploads(ctx context.Context, ownerID string) ([]Record, error) {
	return s.index.list(ctx, ownerID)
}

func (s *LocalStore) DeleteUpload(ctx context.Context, ownerID, id string) error {
	rec, err := s.index.get(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if err := os.Remove(rec.FilePath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return s.index.remove(ctx, ownerID, id)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
