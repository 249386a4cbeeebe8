package server

import (
    "bytes"
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "mime/multipart"
    "net/http"
    "net/http/httptest"
    "sync"
    "testing"
    "time"

    "github.com/rs/zerolog"

    "github.com/local/examprep/internal/extract"
    "github.com/local/examprep/internal/gen"
    "github.com/local/examprep/internal/review"
    "github.com/local/examprep/internal/session"
    "github.com/local/examprep/internal/store"
    "github.com/local/examprep/internal/uploads"
)

type fakeRuns struct {
    mu   sync.Mutex
    runs map[string]store.RunStatus
}

func newFakeRuns() *fakeRuns { return &fakeRuns{runs: map[string]store.RunStatus{}} }

func (f *fakeRuns) Set(ctx context.Context, runID string, st store.RunStatus) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    f.runs[runID] = st
    return nil
}

func (f *fakeRuns) SetProgress(ctx context.Context, runID string, progress int, stage string) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    st := f.runs[runID]
    st.Progress, st.Stage = progress, stage
    f.runs[runID] = st
    return nil
}

func (f *fakeRuns) Get(ctx context.Context, runID string) (store.RunStatus, bool, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    st, ok := f.runs[runID]
    return st, ok, nil
}

type fakeExtractor struct {
    block chan struct{} // when non-nil, Extract waits on it
    done  chan struct{}
    err   error // returned alongside the document
}

func (f *fakeExtractor) Extract(ctx context.Context, filePath, fileName, ownerID string, onProgress extract.ProgressFunc) (*extract.ExtractedDocument, error) {
    if f.block != nil { <-f.block }
    if onProgress != nil {
        onProgress(extract.Progress{Stage: extract.StageDecode, Percent: 20})
        onProgress(extract.Progress{Stage: extract.StageDone, Percent: 100})
    }
    if f.done != nil { defer close(f.done) }
    doc := &extract.ExtractedDocument{FileName: fileName, PageCount: 2, FullText: "recovered text", UploadID: "up-9"}
    if f.err != nil { doc.UploadID = "" }
    return doc, f.err
}

type fakeGenerator struct {
    res   *gen.Result
    err   error
    calls int
}

func (f *fakeGenerator) Generate(ctx context.Context, cap gen.Capability, req gen.Request) (*gen.Result, error) {
    f.calls++
    if f.err != nil { return nil, f.err }
    return f.res, nil
}

type fakeUploads struct {
    records map[string]uploads.Record
}

func (f *fakeUploads) SaveUpload(ctx context.Context, ownerID, fileName, localPath, extractedText string) (*uploads.Record, error) {
    return nil, errors.New("not used")
}

func (f *fakeUploads) GetUpload(ctx context.Context, ownerID, id string) (*uploads.Record, error) {
    rec, ok := f.records[id]
    if !ok { return nil, errors.New("not found") }
    return &rec, nil
}

func (f *fakeUploads) ListUploads(ctx context.Context, ownerID string) ([]uploads.Record, error) {
    out := []uploads.Record{}
    for _, r := range f.records { out = append(out, r) }
    return out, nil
}

func (f *fakeUploads) DeleteUpload(ctx context.Context, ownerID, id string) error {
    if _, ok := f.records[id]; !ok { return errors.New("not found") }
    delete(f.records, id)
    return nil
}

type fakeReview struct {
    wrongs    map[string]review.WrongAnswerRecord
    bookmarks map[string]review.BookmarkRecord
}

func newFakeReview() *fakeReview {
    return &fakeReview{wrongs: map[string]review.WrongAnswerRecord{}, bookmarks: map[string]review.BookmarkRecord{}}
}

func (f *fakeReview) ListWrongAnswers(ctx context.Context, userID string) ([]review.WrongAnswerRecord, error) {
    out := []review.WrongAnswerRecord{}
    for _, r := range f.wrongs { out = append(out, r) }
    return out, nil
}

func (f *fakeReview) DeleteWrongAnswer(ctx context.Context, userID, id string) error {
    delete(f.wrongs, id)
    return nil
}

func (f *fakeReview) ClearWrongAnswers(ctx context.Context, userID string) error {
    f.wrongs = map[string]review.WrongAnswerRecord{}
    return nil
}

func (f *fakeReview) ListBookmarks(ctx context.Context, userID string) ([]review.BookmarkRecord, error) {
    out := []review.BookmarkRecord{}
    for _, r := range f.bookmarks { out = append(out, r) }
    return out, nil
}

func (f *fakeReview) RemoveBookmark(ctx context.Context, userID, question string) error {
    delete(f.bookmarks, question)
    return nil
}

type fakeLimiter struct {
    open   bool
    opened []string
    resets []string
}

func (f *fakeLimiter) IsOpen(ctx context.Context, capability string) bool { return f.open }
func (f *fakeLimiter) Open(ctx context.Context, capability string)        { f.opened = append(f.opened, capability) }
func (f *fakeLimiter) Reset(ctx context.Context, capability string)       { f.resets = append(f.resets, capability) }
func (f *fakeLimiter) Allow(capability string) (func(), bool)             { return func() {}, true }

type wrongSinkStub struct{}

func (wrongSinkStub) RecordWrongAnswer(ctx context.Context, userID string, ev session.WrongAnswerEvent) error {
    return nil
}

type bookmarkSinkStub struct{}

func (bookmarkSinkStub) AddBookmark(ctx context.Context, userID string, ev session.BookmarkEvent) error {
    return nil
}
func (bookmarkSinkStub) RemoveBookmark(ctx context.Context, userID, question string) error { return nil }

func newTestServer(deps Dependencies) *Server {
    if deps.Runs == nil { deps.Runs = newFakeRuns() }
    if deps.Uploads == nil { deps.Uploads = &fakeUploads{records: map[string]uploads.Record{}} }
    if deps.Review == nil { deps.Review = newFakeReview() }
    if deps.Validate == nil { deps.Validate = func(string) error { return nil } }
    if deps.WrongSink == nil { deps.WrongSink = wrongSinkStub{} }
    if deps.BookmarkSink == nil { deps.BookmarkSink = bookmarkSinkStub{} }
    return New(deps, zerolog.Nop())
}

func multipartUpload(t *testing.T, userID string) (*bytes.Buffer, string) {
    t.Helper()
    var buf bytes.Buffer
    mw := multipart.NewWriter(&buf)
    fw, err := mw.CreateFormFile("file", "exam.pdf")
    if err != nil { t.Fatal(err) }
    fw.Write([]byte("%PDF-1.4 fake"))
    mw.WriteField("user_id", userID)
    mw.Close()
    return &buf, mw.FormDataContentType()
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path string, body any) *httptest.ResponseRecorder {
    t.Helper()
    var rd *bytes.Buffer
    if body != nil {
        raw, err := json.Marshal(body)
        if err != nil { t.Fatal(err) }
        rd = bytes.NewBuffer(raw)
    } else {
        rd = &bytes.Buffer{}
    }
    req := httptest.NewRequest(method, path, rd)
    rec := httptest.NewRecorder()
    mux.ServeHTTP(rec, req)
    return rec
}

func TestUploadRunsExtractionToCompletion(t *testing.T) {
    runs := newFakeRuns()
    done := make(chan struct{})
    srv := newTestServer(Dependencies{Extractor: &fakeExtractor{done: done}, Runs: runs})
    mux := http.NewServeMux()
    srv.RegisterRoutes(mux)

    body, ctype := multipartUpload(t, "user-1")
    req := httptest.NewRequest(http.MethodPost, "/upload", body)
    req.Header.Set("Content-Type", ctype)
    rec := httptest.NewRecorder()
    mux.ServeHTTP(rec, req)

    if rec.Code != http.StatusCreated {
        t.Fatalf("upload status = %d, body %s", rec.Code, rec.Body.String())
    }
    var resp struct {
        RunID string `json:"run_id"`
    }
    if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil { t.Fatal(err) }

    select {
    case <-done:
    case <-time.After(2 * time.Second):
        t.Fatal("extraction did not finish")
    }
    // run status write races the done signal by a hair
    deadline := time.Now().Add(time.Second)
    for {
        st, ok, _ := runs.Get(context.Background(), resp.RunID)
        if ok && st.Status == "done" {
            if st.Progress != 100 || st.UploadID != "up-9" {
                t.Fatalf("final status = %+v", st)
            }
            break
        }
        if time.Now().After(deadline) { t.Fatalf("run never reached done: %+v", st) }
        time.Sleep(10 * time.Millisecond)
    }

    res := doJSON(t, mux, http.MethodGet, "/result/"+resp.RunID, nil)
    if res.Code != http.StatusOK {
        t.Fatalf("result status = %d", res.Code)
    }
    var out struct {
        FullText string `json:"full_text"`
    }
    json.Unmarshal(res.Body.Bytes(), &out)
    if out.FullText != "recovered text" {
        t.Errorf("full_text = %q", out.FullText)
    }
}

func TestUploadRejectsConcurrentRun(t *testing.T) {
    block := make(chan struct{})
    srv := newTestServer(Dependencies{Extractor: &fakeExtractor{block: block}})
    mux := http.NewServeMux()
    srv.RegisterRoutes(mux)

    send := func() *httptest.ResponseRecorder {
        body, ctype := multipartUpload(t, "user-1")
        req := httptest.NewRequest(http.MethodPost, "/upload", body)
        req.Header.Set("Content-Type", ctype)
        rec := httptest.NewRecorder()
        mux.ServeHTTP(rec, req)
        return rec
    }

    if rec := send(); rec.Code != http.StatusCreated {
        t.Fatalf("first upload = %d", rec.Code)
    }
    if rec := send(); rec.Code != http.StatusConflict {
        t.Fatalf("second upload = %d, want 409", rec.Code)
    }
    close(block)
}

func TestUploadRejectsUnsupportedFile(t *testing.T) {
    srv := newTestServer(Dependencies{
        Extractor: &fakeExtractor{},
        Validate:  func(string) error { return fmt.Errorf("not a pdf") },
    })
    mux := http.NewServeMux()
    srv.RegisterRoutes(mux)

    body, ctype := multipartUpload(t, "user-1")
    req := httptest.NewRequest(http.MethodPost, "/upload", body)
    req.Header.Set("Content-Type", ctype)
    rec := httptest.NewRecorder()
    mux.ServeHTTP(rec, req)
    if rec.Code != http.StatusBadRequest {
        t.Fatalf("status = %d, want 400", rec.Code)
    }
}

func TestProgressUnknownRun(t *testing.T) {
    srv := newTestServer(Dependencies{Extractor: &fakeExtractor{}})
    mux := http.NewServeMux()
    srv.RegisterRoutes(mux)
    if rec := doJSON(t, mux, http.MethodGet, "/progress/nope", nil); rec.Code != http.StatusNotFound {
        t.Errorf("status = %d, want 404", rec.Code)
    }
}

func quizGenResult() *gen.Result {
    return &gen.Result{
        Capability: gen.CapQuiz,
        Quiz: []gen.TrueFalseQuestion{
            {Question: "q1", Answer: true, Explanation: "e1"},
            {Question: "q2", Answer: false, Explanation: "e2"},
        },
        Summary: "s",
    }
}

func TestGenerateStatusMapping(t *testing.T) {
    tests := []struct {
        name string
        err  error
        want int
    }{
        {"validation", &gen.ValidationError{Field: "text", Reason: "required"}, http.StatusBadRequest},
        {"rate limit", &gen.RateLimitError{Capability: gen.CapQuiz}, http.StatusTooManyRequests},
        {"quota", &gen.QuotaError{Capability: gen.CapQuiz}, http.StatusPaymentRequired},
        {"timeout", &gen.TimeoutError{Capability: gen.CapSolve}, http.StatusGatewayTimeout},
        {"contract", &gen.ContractError{Capability: gen.CapQuiz, Detail: "count"}, http.StatusBadGateway},
        {"upstream", &gen.UpstreamError{Capability: gen.CapQuiz, Status: 500}, http.StatusBadGateway},
    }
    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            srv := newTestServer(Dependencies{Generator: &fakeGenerator{err: tt.err}})
            mux := http.NewServeMux()
            srv.RegisterRoutes(mux)
            rec := doJSON(t, mux, http.MethodPost, "/generate/quiz", map[string]any{"user_id": "u", "text": "x"})
            if rec.Code != tt.want {
                t.Errorf("status = %d, want %d", rec.Code, tt.want)
            }
        })
    }
}

func TestGenerateOpensCooldownOnRateLimit(t *testing.T) {
    lim := &fakeLimiter{}
    srv := newTestServer(Dependencies{
        Generator: &fakeGenerator{err: &gen.RateLimitError{Capability: gen.CapQuiz}},
        Limiter:   lim,
    })
    mux := http.NewServeMux()
    srv.RegisterRoutes(mux)
    doJSON(t, mux, http.MethodPost, "/generate/quiz", map[string]any{"user_id": "u", "text": "x"})
    if len(lim.opened) != 1 || lim.opened[0] != "quiz" {
        t.Errorf("cooldown opened = %v", lim.opened)
    }
}

func TestGenerateRejectedWhileCoolingDown(t *testing.T) {
    g := &fakeGenerator{res: quizGenResult()}
    srv := newTestServer(Dependencies{Generator: g, Limiter: &fakeLimiter{open: true}})
    mux := http.NewServeMux()
    srv.RegisterRoutes(mux)
    rec := doJSON(t, mux, http.MethodPost, "/generate/quiz", map[string]any{"user_id": "u", "text": "x"})
    if rec.Code != http.StatusTooManyRequests {
        t.Fatalf("status = %d, want 429", rec.Code)
    }
    if g.calls != 0 {
        t.Errorf("generator called %d times during cooldown", g.calls)
    }
}

func TestGenerateLoadsSessionAndAnswers(t *testing.T) {
    srv := newTestServer(Dependencies{Generator: &fakeGenerator{res: quizGenResult()}})
    mux := http.NewServeMux()
    srv.RegisterRoutes(mux)

    if rec := doJSON(t, mux, http.MethodPost, "/generate/quiz", map[string]any{"user_id": "u", "text": "x"}); rec.Code != http.StatusOK {
        t.Fatalf("generate = %d", rec.Code)
    }

    wrong := false
    rec := doJSON(t, mux, http.MethodPost, "/session/answer", map[string]any{"user_id": "u", "index": 0, "value_bool": &wrong})
    if rec.Code != http.StatusOK {
        t.Fatalf("answer = %d, body %s", rec.Code, rec.Body.String())
    }
    var out struct {
        Correct bool `json:"correct"`
    }
    json.Unmarshal(rec.Body.Bytes(), &out)
    if out.Correct {
        t.Error("answering X against answer O must grade incorrect")
    }

    rec = doJSON(t, mux, http.MethodPost, "/session/answer", map[string]any{"user_id": "u", "index": 0, "value_bool": &wrong})
    if rec.Code != http.StatusConflict {
        t.Errorf("re-answer = %d, want 409", rec.Code)
    }
}

func TestGenerateClearsPriorSession(t *testing.T) {
    g := &fakeGenerator{res: quizGenResult()}
    srv := newTestServer(Dependencies{Generator: g})
    mux := http.NewServeMux()
    srv.RegisterRoutes(mux)

    doJSON(t, mux, http.MethodPost, "/generate/quiz", map[string]any{"user_id": "u", "text": "x"})

    // second request fails upstream; the old result must already be gone
    g.err = &gen.UpstreamError{Capability: gen.CapFillBlank, Status: 500}
    doJSON(t, mux, http.MethodPost, "/generate/fillBlank", map[string]any{"user_id": "u", "text": "x"})

    rec := doJSON(t, mux, http.MethodGet, "/session?user_id=u", nil)
    var out struct {
        Result *gen.Result `json:"result"`
    }
    json.Unmarshal(rec.Body.Bytes(), &out)
    if out.Result != nil {
        t.Error("session must be cleared before the new generation resolves")
    }
}

func TestGenerateUsesStoredUploadText(t *testing.T) {
    ups := &fakeUploads{records: map[string]uploads.Record{
        "up-1": {ID: "up-1", OwnerID: "u", ExtractedText: "stored text"},
    }}
    srv := newTestServer(Dependencies{Generator: &fakeGenerator{res: quizGenResult()}, Uploads: ups})
    mux := http.NewServeMux()
    srv.RegisterRoutes(mux)

    rec := doJSON(t, mux, http.MethodPost, "/generate/quiz", map[string]any{"user_id": "u", "upload_id": "up-1"})
    if rec.Code != http.StatusOK {
        t.Fatalf("generate = %d, body %s", rec.Code, rec.Body.String())
    }
    rec = doJSON(t, mux, http.MethodPost, "/generate/quiz", map[string]any{"user_id": "u", "upload_id": "missing"})
    if rec.Code != http.StatusNotFound {
        t.Errorf("missing upload = %d, want 404", rec.Code)
    }
}

func TestUploadSurfacesPersistenceWarning(t *testing.T) {
    runs := newFakeRuns()
    done := make(chan struct{})
    ext := &fakeExtractor{done: done, err: &extract.PersistenceError{Err: errors.New("redis down")}}
    srv := newTestServer(Dependencies{Extractor: ext, Runs: runs})
    mux := http.NewServeMux()
    srv.RegisterRoutes(mux)

    body, ctype := multipartUpload(t, "user-1")
    req := httptest.NewRequest(http.MethodPost, "/upload", body)
    req.Header.Set("Content-Type", ctype)
    rec := httptest.NewRecorder()
    mux.ServeHTTP(rec, req)
    if rec.Code != http.StatusCreated {
        t.Fatalf("upload status = %d, body %s", rec.Code, rec.Body.String())
    }
    var resp struct {
        RunID string `json:"run_id"`
    }
    if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil { t.Fatal(err) }

    select {
    case <-done:
    case <-time.After(2 * time.Second):
        t.Fatal("extraction did not finish")
    }
    deadline := time.Now().Add(time.Second)
    var st store.RunStatus
    for {
        var ok bool
        st, ok, _ = runs.Get(context.Background(), resp.RunID)
        if ok && st.Status == "done" { break }
        if time.Now().After(deadline) { t.Fatalf("run never reached done: %+v", st) }
        time.Sleep(10 * time.Millisecond)
    }
    if st.Progress != 100 || st.UploadID != "" {
        t.Fatalf("final status = %+v", st)
    }
    if st.Warning == "" {
        t.Fatal("unsaved upload record must be visible in the run status")
    }

    res := doJSON(t, mux, http.MethodGet, "/result/"+resp.RunID, nil)
    if res.Code != http.StatusOK {
        t.Fatalf("result status = %d", res.Code)
    }
    var out struct {
        FullText string `json:"full_text"`
        Warning  string `json:"warning"`
    }
    json.Unmarshal(res.Body.Bytes(), &out)
    if out.FullText != "recovered text" {
        t.Errorf("full_text = %q", out.FullText)
    }
    if out.Warning == "" {
        t.Error("result payload must carry the persistence warning")
    }
}

func TestDeleteSingleWrongAnswer(t *testing.T) {
    rev := newFakeReview()
    rev.wrongs["wa-1"] = review.WrongAnswerRecord{ID: "wa-1"}
    rev.wrongs["wa-2"] = review.WrongAnswerRecord{ID: "wa-2"}
    srv := newTestServer(Dependencies{Review: rev})
    mux := http.NewServeMux()
    srv.RegisterRoutes(mux)

    rec := doJSON(t, mux, http.MethodDelete, "/review/wrong/wa-1?user_id=u", nil)
    if rec.Code != http.StatusOK {
        t.Fatalf("delete = %d, body %s", rec.Code, rec.Body.String())
    }
    if _, ok := rev.wrongs["wa-1"]; ok {
        t.Error("wa-1 still stored after delete")
    }
    if _, ok := rev.wrongs["wa-2"]; !ok {
        t.Error("wa-2 must survive deletion of wa-1")
    }

    if rec := doJSON(t, mux, http.MethodDelete, "/review/wrong/?user_id=u", nil); rec.Code != http.StatusBadRequest {
        t.Errorf("empty id = %d, want 400", rec.Code)
    }
}

func TestRemoveBookmarkFromReviewPage(t *testing.T) {
    rev := newFakeReview()
    rev.bookmarks["what is osmosis"] = review.BookmarkRecord{}
    srv := newTestServer(Dependencies{Review: rev})
    mux := http.NewServeMux()
    srv.RegisterRoutes(mux)

    rec := doJSON(t, mux, http.MethodDelete, "/review/bookmarks?user_id=u&question=what+is+osmosis", nil)
    if rec.Code != http.StatusOK {
        t.Fatalf("remove = %d, body %s", rec.Code, rec.Body.String())
    }
    if len(rev.bookmarks) != 0 {
        t.Errorf("bookmarks left = %d, want 0", len(rev.bookmarks))
    }

    if rec := doJSON(t, mux, http.MethodDelete, "/review/bookmarks?user_id=u", nil); rec.Code != http.StatusBadRequest {
        t.Errorf("missing question = %d, want 400", rec.Code)
    }
}
