package server

import (
    "context"
    "fmt"
    "io"
    "net/http"
    "os"
    "strings"
    "time"

    "github.com/google/uuid"

    "github.com/local/examprep/internal/extract"
    "github.com/local/examprep/internal/store"
)

// handleUpload accepts a multipart PDF upload, validates it and starts
// one extraction run. A user can have at most one run in flight;
// concurrent uploads are rejected with 409.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost { w.WriteHeader(http.StatusMethodNotAllowed); return }
    r.Body = http.MaxBytesReader(w, r.Body, int64(s.deps.MaxUploadMB)<<20)
    if err := r.ParseMultipartForm(16 << 20); err != nil {
        writeError(w, http.StatusBadRequest, "invalid multipart form"); return
    }
    file, hdr, err := r.FormFile("file")
    if err != nil { writeError(w, http.StatusBadRequest, "missing file"); return }
    defer file.Close()
    userID := r.FormValue("user_id")
    if userID == "" { writeError(w, http.StatusBadRequest, "missing user_id"); return }

    name := hdr.Filename
    if name == "" { name = "upload.pdf" }

    tmp, err := os.CreateTemp("", "examprep-*.pdf")
    if err != nil { writeError(w, http.StatusInternalServerError, "cannot buffer upload"); return }
    if _, err := io.Copy(tmp, file); err != nil {
        tmp.Close(); os.Remove(tmp.Name())
        writeError(w, http.StatusBadRequest, "upload truncated"); return
    }
    _ = tmp.Close()
    localPath := tmp.Name()

    // Type and structure gates run before the pipeline ever sees the file.
    if err := s.deps.Validate(localPath); err != nil {
        os.Remove(localPath)
        writeError(w, http.StatusBadRequest, "only readable PDF files are supported"); return
    }

    s.mu.Lock()
    if s.extracting[userID] {
        s.mu.Unlock()
        os.Remove(localPath)
        writeError(w, http.StatusConflict, "an extraction is already running for this user"); return
    }
    s.extracting[userID] = true
    s.mu.Unlock()

    runID := uuid.NewString()
    start := time.Now()
    _ = s.deps.Runs.Set(r.Context(), runID, store.RunStatus{
        Status: "queued", Progress: 0, Stage: "decode", Message: "queued", FileName: name, Start: &start,
    })
    s.log.Info().Str("run_id", runID).Str("file", name).Str("user", userID).Msg("extraction run created")

    go s.runExtraction(runID, localPath, name, userID)

    writeJSON(w, http.StatusCreated, map[string]string{"status": "ok", "run_id": runID})
}

// runExtraction owns the run lifecycle; it outlives the upload request.
func (s *Server) runExtraction(runID, localPath, fileName, userID string) {
    ctx := context.Background()
    defer func() {
        os.Remove(localPath)
        s.mu.Lock()
        delete(s.extracting, userID)
        s.mu.Unlock()
    }()

    _ = s.deps.Runs.Set(ctx, runID, store.RunStatus{Status: "running", Progress: 0, Stage: "decode", FileName: fileName})
    doc, err := s.deps.Extractor.Extract(ctx, localPath, fileName, userID, func(p extract.Progress) {
        _ = s.deps.Runs.SetProgress(ctx, runID, p.Percent, string(p.Stage))
    })

    end := time.Now()
    warning := ""
    if err != nil {
        if _, ok := err.(*extract.PersistenceError); !ok {
            s.log.Error().Err(err).Str("run_id", runID).Msg("extraction run failed")
            _ = s.deps.Runs.Set(ctx, runID, store.RunStatus{
                Status: "failed", Progress: 0, Stage: "failed", Message: "extraction failed", FileName: fileName, End: &end,
            })
            return
        }
        // Extraction succeeded but the upload record did not persist;
        // the result is still served from memory and the client is told.
        s.log.Warn().Err(err).Str("run_id", runID).Msg("upload record not persisted")
        warning = "upload record not persisted"
    }

    s.mu.Lock()
    s.results[runID] = doc
    s.warnings[runID] = warning
    s.mu.Unlock()

    _ = s.deps.Runs.Set(ctx, runID, store.RunStatus{
        Status: "done", Progress: 100, Stage: "done", Message: "completed", Warning: warning,
        FileName: fileName, UploadID: doc.UploadID, End: &end,
    })
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
    runID := strings.TrimPrefix(r.URL.Path, "/progress/")
    if runID == "" { writeError(w, http.StatusBadRequest, "missing run id"); return }
    st, ok, err := s.deps.Runs.Get(r.Context(), runID)
    if err != nil { writeError(w, http.StatusInternalServerError, "status unavailable"); return }
    if !ok { writeError(w, http.StatusNotFound, "unknown run"); return }
    writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
    runID := strings.TrimPrefix(r.URL.Path, "/result/")
    s.mu.Lock()
    doc, ok := s.results[runID]
    warning := s.warnings[runID]
    s.mu.Unlock()
    if !ok {
        st, found, err := s.deps.Runs.Get(r.Context(), runID)
        if err == nil && found && st.Status != "done" {
            writeError(w, http.StatusAccepted, "not ready"); return
        }
        writeError(w, http.StatusNotFound, "no result for run"); return
    }
    body := map[string]any{
        "file_name":  doc.FileName,
        "page_count": doc.PageCount,
        "full_text":  doc.FullText,
        "upload_id":  doc.UploadID,
    }
    if warning != "" { body["warning"] = warning }
    writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleListUploads(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    userID := r.URL.Query().Get("user_id")
    if userID == "" { writeError(w, http.StatusBadRequest, "missing user_id"); return }
    recs, err := s.deps.Uploads.ListUploads(r.Context(), userID)
    if err != nil { writeError(w, http.StatusInternalServerError, "cannot list uploads"); return }
    writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleDeleteUpload(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodDelete { w.WriteHeader(http.StatusMethodNotAllowed); return }
    id := strings.TrimPrefix(r.URL.Path, "/uploads/")
    userID := r.URL.Query().Get("user_id")
    if id == "" || userID == "" { writeError(w, http.StatusBadRequest, "missing upload id or user_id"); return }
    if err := s.deps.Uploads.DeleteUpload(r.Context(), userID, id); err != nil {
        writeError(w, http.StatusNotFound, fmt.Sprintf("delete failed: %v", err)); return
    }
    writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
