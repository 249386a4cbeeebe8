package review

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	"github.com/local/examprep/internal/session"
)

// Store keeps each user's review material: the wrong answers collected
// during quiz sessions and the short-answer bookmarks. It implements
// session.WrongAnswerSink and session.BookmarkSink.
type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

func wrongKey(userID string) string    { return fmt.Sprintf("review:%s:wrong", userID) }
func bookmarkKey(userID string) string { return fmt.Sprintf("review:%s:bookmarks", userID) }

// WrongAnswerRecord is a stored wrong answer with its capture time.
// The ID is assigned on save and addresses the record for deletion.
type WrongAnswerRecord struct {
	ID string `json:"id"`
	session.WrongAnswerEvent
	CreatedAt time.Time `json:"created_at"`
}

// BookmarkRecord is a stored short-answer bookmark.
type BookmarkRecord struct {
	session.BookmarkEvent
	CreatedAt time.Time `json:"created_at"`
}

func (s *Store) RecordWrongAnswer(ctx context.Context, userID string, ev session.WrongAnswerEvent) error {
	rec := WrongAnswerRecord{ID: uuid.NewString(), WrongAnswerEvent: ev, CreatedAt: time.Now().UTC()}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, wrongKey(userID), rec.ID, raw).Err()
}

// ListWrongAnswers returns the user's wrong answers, newest first.
func (s *Store) ListWrongAnswers(ctx context.Context, userID string) ([]WrongAnswerRecord, error) {
	raws, err := s.client.HGetAll(ctx, wrongKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]WrongAnswerRecord, 0, len(raws))
	for _, raw := range raws {
		var rec WrongAnswerRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// DeleteWrongAnswer removes one record by its ID; deleting a missing
// record is not an error.
func (s *Store) DeleteWrongAnswer(ctx context.Context, userID, id string) error {
	return s.client.HDel(ctx, wrongKey(userID), id).Err()
}

// ClearWrongAnswers removes every stored wrong answer for the user.
func (s *Store) ClearWrongAnswers(ctx context.Context, userID string) error {
	return s.client.Del(ctx, wrongKey(userID)).Err()
}

// AddBookmark stores a bookmark keyed by question text, so repeating the
// add is a no-op overwrite.
func (s *Store) AddBookmark(ctx context.Context, userID string, ev session.BookmarkEvent) error {
	rec := BookmarkRecord{BookmarkEvent: ev, CreatedAt: time.Now().UTC()}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, bookmarkKey(userID), ev.Question, raw).Err()
}

// RemoveBookmark deletes by question text; removing a missing bookmark
// is not an error.
func (s *Store) RemoveBookmark(ctx context.Context, userID, question string) error {
	return s.client.HDel(ctx, bookmarkKey(userID), question).Err()
}

func (s *Store) ListBookmarks(ctx context.Context, userID string) ([]BookmarkRecord, error) {
	raws, err := s.client.HGetAll(ctx, bookmarkKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]BookmarkRecord, 0, len(raws))
	for _, raw := range raws {
		var rec BookmarkRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}
