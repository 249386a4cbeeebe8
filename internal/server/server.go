package server

import (
    "context"
    "encoding/json"
    "fmt"
    "net/http"
    "sync"

    "github.com/rs/zerolog"

    "github.com/local/examprep/internal/extract"
    "github.com/local/examprep/internal/filetype"
    "github.com/local/examprep/internal/gen"
    "github.com/local/examprep/internal/metrics"
    "github.com/local/examprep/internal/pdf"
    "github.com/local/examprep/internal/review"
    "github.com/local/examprep/internal/session"
    "github.com/local/examprep/internal/store"
    "github.com/local/examprep/internal/uploads"
)

type Extractor interface {
    Extract(ctx context.Context, filePath, fileName, ownerID string, onProgress extract.ProgressFunc) (*extract.ExtractedDocument, error)
}

type Generator interface {
    Generate(ctx context.Context, cap gen.Capability, req gen.Request) (*gen.Result, error)
}

type RunStore interface {
    Set(ctx context.Context, runID string, st store.RunStatus) error
    SetProgress(ctx context.Context, runID string, progress int, stage string) error
    Get(ctx context.Context, runID string) (store.RunStatus, bool, error)
}

type ReviewStore interface {
    ListWrongAnswers(ctx context.Context, userID string) ([]review.WrongAnswerRecord, error)
    DeleteWrongAnswer(ctx context.Context, userID, id string) error
    ClearWrongAnswers(ctx context.Context, userID string) error
    ListBookmarks(ctx context.Context, userID string) ([]review.BookmarkRecord, error)
    RemoveBookmark(ctx context.Context, userID, question string) error
}

// CooldownLimiter pauses paid gateway calls per capability after
// rate-limit or quota failures.
type CooldownLimiter interface {
    IsOpen(ctx context.Context, capability string) bool
    Open(ctx context.Context, capability string)
    Reset(ctx context.Context, capability string)
    Allow(capability string) (func(), bool)
}

// Validator gates an uploaded file before an extraction run starts.
type Validator func(path string) error

// DefaultValidator accepts only files that sniff as PDF and carry a
// readable page tree.
func DefaultValidator(det *filetype.Detector) Validator {
    return func(path string) error {
        d, err := det.DetectFile(path)
        if err != nil { return err }
        if !d.Supported { return fmt.Errorf("unsupported file type %s", d.MIMEType) }
        if _, err := pdf.PageCount(path); err != nil {
            return fmt.Errorf("not a readable PDF: %w", err)
        }
        return nil
    }
}

type Dependencies struct {
    Extractor Extractor
    Generator Generator
    Runs      RunStore
    Uploads   uploads.Store
    Review    ReviewStore
    Limiter   CooldownLimiter
    Validate  Validator

    WrongSink    session.WrongAnswerSink
    BookmarkSink session.BookmarkSink

    MaxUploadMB int
}

type Server struct {
    deps Dependencies
    log  zerolog.Logger

    mu         sync.Mutex
    extracting map[string]bool
    results    map[string]*extract.ExtractedDocument
    warnings   map[string]string
    sessions   map[string]*session.Session
}

func New(deps Dependencies, log zerolog.Logger) *Server {
    if deps.MaxUploadMB <= 0 { deps.MaxUploadMB = 32 }
    if deps.Validate == nil { deps.Validate = DefaultValidator(filetype.New()) }
    return &Server{
        deps:       deps,
        log:        log,
        extracting: map[string]bool{},
        results:    map[string]*extract.ExtractedDocument{},
        warnings:   map[string]string{},
        sessions:   map[string]*session.Session{},
    }
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
    mux.HandleFunc("/", s.handleDashboard)
    mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK); _, _ = w.Write([]byte("ok")) })
    mux.Handle("/metrics", metrics.Handler())
    mux.HandleFunc("/upload", s.handleUpload)
    mux.HandleFunc("/progress/", s.handleProgress)
    mux.HandleFunc("/result/", s.handleResult)
    mux.HandleFunc("/generate/", s.handleGenerate)
    mux.HandleFunc("/session", s.handleSessionState)
    mux.HandleFunc("/session/answer", s.handleAnswer)
    mux.HandleFunc("/session/bookmark", s.handleBookmark)
    mux.HandleFunc("/uploads", s.handleListUploads)
    mux.HandleFunc("/uploads/", s.handleDeleteUpload)
    mux.HandleFunc("/review/wrong", s.handleWrongAnswers)
    mux.HandleFunc("/review/wrong/", s.handleDeleteWrongAnswer)
    mux.HandleFunc("/review/bookmarks", s.handleBookmarks)
}

// userSession returns the per-user session, creating it on first use.
// Session mutation is serialized under s.mu because Session itself is
// single-flow.
func (s *Server) userSession(userID string) *session.Session {
    sess, ok := s.sessions[userID]
    if !ok {
        sess = session.New(userID, s.deps.WrongSink, s.deps.BookmarkSink, s.log)
        s.sessions[userID] = sess
    }
    return sess
}

func writeJSON(w http.ResponseWriter, status int, v any) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(status)
    _ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
    writeJSON(w, status, map[string]string{"error": msg})
}
