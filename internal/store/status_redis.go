package store

import (
    "context"
    "fmt"
    "time"

    redis "github.com/redis/go-redis/v9"
)

// RunStatus tracks one extraction run end to end.
type RunStatus struct {
    Status   string     `json:"status"` // queued, running, done, failed
    Progress int        `json:"progress"`
    Stage    string     `json:"stage"`
    Message  string     `json:"message"`
    Warning  string     `json:"warning,omitempty"`
    FileName string     `json:"file_name"`
    UploadID string     `json:"upload_id,omitempty"`
    Start    *time.Time `json:"start_time,omitempty"`
    End      *time.Time `json:"end_time,omitempty"`
}

const runTTL = 24 * time.Hour

type RedisRuns struct {
    client *redis.Client
    keyNS  string
}

func NewRedisRuns(client *redis.Client) *RedisRuns {
    return &RedisRuns{client: client, keyNS: "extract"}
}

func (s *RedisRuns) key(runID string) string { return fmt.Sprintf("%s:%s:status", s.keyNS, runID) }

func (s *RedisRuns) Set(ctx context.Context, runID string, st RunStatus) error {
    m := map[string]interface{}{
        "status":    st.Status,
        "progress":  st.Progress,
        "stage":     st.Stage,
        "message":   st.Message,
        "warning":   st.Warning,
        "file_name": st.FileName,
        "upload_id": st.UploadID,
    }
    if st.Start != nil { m["start"] = st.Start.Format(time.RFC3339Nano) }
    if st.End != nil { m["end"] = st.End.Format(time.RFC3339Nano) }
    pipe := s.client.TxPipeline()
    pipe.HSet(ctx, s.key(runID), m)
    pipe.Expire(ctx, s.key(runID), runTTL)
    _, err := pipe.Exec(ctx)
    return err
}

// SetProgress updates only the moving fields of a running extraction.
func (s *RedisRuns) SetProgress(ctx context.Context, runID string, progress int, stage string) error {
    return s.client.HSet(ctx, s.key(runID), map[string]interface{}{
        "progress": progress,
        "stage":    stage,
    }).Err()
}

func (s *RedisRuns) Get(ctx context.Context, runID string) (RunStatus, bool, error) {
    res, err := s.client.HGetAll(ctx, s.key(runID)).Result()
    if err != nil { return RunStatus{}, false, err }
    if len(res) == 0 { return RunStatus{}, false, nil }
    st := RunStatus{
        Status:   res["status"],
        Stage:    res["stage"],
        Message:  res["message"],
        Warning:  res["warning"],
        FileName: res["file_name"],
        UploadID: res["upload_id"],
    }
    if p := res["progress"]; p != "" {
        var pi int
        fmt.Sscan(p, &pi)
        st.Progress = pi
    }
    if v := res["start"]; v != "" {
        if t, err := time.Parse(time.RFC3339Nano, v); err == nil { st.Start = &t }
    }
    if v := res["end"]; v != "" {
        if t, err := time.Parse(time.RFC3339Nano, v); err == nil { st.End = &t }
    }
    return st, true, nil
}

func (s *RedisRuns) Close() error { return s.client.Close() }
