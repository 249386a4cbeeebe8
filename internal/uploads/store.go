package uploads

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Record is one persisted upload: the original file plus the text the
// pipeline recovered from it.
type Record struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"owner_id"`
	FileName      string    `json:"file_name"`
	FilePath      string    `json:"file_path"`
	ExtractedText string    `json:"extracted_text"`
	CreatedAt     time.Time `json:"created_at"`
}

// Store persists upload records and their file bytes. SaveUpload is
// called once per successful extraction.
type Store interface {
	SaveUpload(ctx context.Context, ownerID, fileName, localPath, extractedText string) (*Record, error)
	GetUpload(ctx context.Context, ownerID, id string) (*Record, error)
	ListUploads(ctx context.Context, ownerID string) ([]Record, error)
	DeleteUpload(ctx context.Context, ownerID, id string) error
}

// recordIndex keeps the record metadata in a per-owner Redis hash; the
// file bytes live in the backend (S3 or local disk).
type recordIndex struct {
	client *redis.Client
}

func newRecordIndex(client *redis.Client) *recordIndex {
	return &recordIndex{client: client}
}

func indexKey(ownerID string) string { return fmt.Sprintf("uploads:%s", ownerID) }

func (x *recordIndex) put(ctx context.Context, rec *Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return x.client.HSet(ctx, indexKey(rec.OwnerID), rec.ID, raw).Err()
}

func (x *recordIndex) get(ctx context.Context, ownerID, id string) (*Record, error) {
	raw, err := x.client.HGet(ctx, indexKey(ownerID), id).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("upload %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (x *recordIndex) list(ctx context.Context, ownerID string) ([]Record, error) {
	raws, err := x.client.HGetAll(ctx, indexKey(ownerID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(raws))
	for _, raw := range raws {
		var rec Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (x *recordIndex) remove(ctx context.Context, ownerID, id string) error {
	return x.client.HDel(ctx, indexKey(ownerID), id).Err()
}
