package server

import (
    "encoding/json"
    "errors"
    "net/http"
    "strings"

    "github.com/local/examprep/internal/gen"
    "github.com/local/examprep/internal/session"
)

type generateReq struct {
    UserID        string                 `json:"user_id"`
    UploadID      string                 `json:"upload_id,omitempty"`
    Text          string                 `json:"text,omitempty"`
    QuestionCount int                    `json:"questionCount,omitempty"`
    WrongAnswers  []gen.WrongAnswerInput `json:"wrongAnswers,omitempty"`
    Weaknesses    []gen.Weakness         `json:"weaknesses,omitempty"`
}

// handleGenerate runs one generation capability. The user's session is
// cleared before the remote call resolves: at most one question set is
// live at a time.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost { w.WriteHeader(http.StatusMethodNotAllowed); return }
    capName := strings.TrimPrefix(r.URL.Path, "/generate/")
    capability := gen.Capability(capName)

    defer r.Body.Close()
    var req generateReq
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        writeError(w, http.StatusBadRequest, "invalid json"); return
    }
    if req.UserID == "" { writeError(w, http.StatusBadRequest, "missing user_id"); return }

    text := req.Text
    if text == "" && req.UploadID != "" {
        rec, err := s.deps.Uploads.GetUpload(r.Context(), req.UserID, req.UploadID)
        if err != nil { writeError(w, http.StatusNotFound, "upload not found"); return }
        text = rec.ExtractedText
    }

    if s.deps.Limiter != nil {
        if s.deps.Limiter.IsOpen(r.Context(), capName) {
            writeError(w, http.StatusTooManyRequests, "capability is cooling down, retry later"); return
        }
        release, ok := s.deps.Limiter.Allow(capName)
        if !ok { writeError(w, http.StatusServiceUnavailable, "too many generation requests in flight"); return }
        defer release()
    }

    s.mu.Lock()
    s.userSession(req.UserID).Clear()
    s.mu.Unlock()

    res, err := s.deps.Generator.Generate(r.Context(), capability, gen.Request{
        Text:         text,
        Count:        req.QuestionCount,
        WrongAnswers: req.WrongAnswers,
        Weaknesses:   req.Weaknesses,
    })
    if err != nil {
        s.writeGenerateError(w, r, capName, err)
        return
    }
    if s.deps.Limiter != nil { s.deps.Limiter.Reset(r.Context(), capName) }

    switch capability {
    case gen.CapQuiz, gen.CapFillBlank, gen.CapMultipleChoice, gen.CapShortAnswer:
        s.mu.Lock()
        s.userSession(req.UserID).LoadResult(res, req.UploadID)
        s.mu.Unlock()
    }
    writeJSON(w, http.StatusOK, res)
}

func (s *Server) writeGenerateError(w http.ResponseWriter, r *http.Request, capName string, err error) {
    var verr *gen.ValidationError
    var rerr *gen.RateLimitError
    var qerr *gen.QuotaError
    var terr *gen.TimeoutError
    switch {
    case errors.As(err, &verr):
        writeError(w, http.StatusBadRequest, err.Error())
    case errors.As(err, &rerr):
        if s.deps.Limiter != nil { s.deps.Limiter.Open(r.Context(), capName) }
        writeError(w, http.StatusTooManyRequests, err.Error())
    case errors.As(err, &qerr):
        if s.deps.Limiter != nil { s.deps.Limiter.Open(r.Context(), capName) }
        writeError(w, http.StatusPaymentRequired, err.Error())
    case errors.As(err, &terr):
        writeError(w, http.StatusGatewayTimeout, err.Error())
    default:
        writeError(w, http.StatusBadGateway, err.Error())
    }
}

func (s *Server) handleSessionState(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    userID := r.URL.Query().Get("user_id")
    if userID == "" { writeError(w, http.StatusBadRequest, "missing user_id"); return }
    s.mu.Lock()
    sess := s.userSession(userID)
    res, state := sess.Result(), sess.State()
    s.mu.Unlock()
    writeJSON(w, http.StatusOK, map[string]any{"result": res, "answers": state})
}

type answerReq struct {
    UserID   string  `json:"user_id"`
    Index    int     `json:"index"`
    Bool     *bool   `json:"value_bool,omitempty"`
    Selected *int    `json:"selected,omitempty"`
    Text     *string `json:"text,omitempty"`
    Check    bool    `json:"check,omitempty"`
    Reveal   bool    `json:"reveal,omitempty"`
}

// handleAnswer dispatches on the capability of the loaded result:
// true/false and multiple-choice grade and lock immediately, fill-blank
// stays editable until check, short answers only store a draft or
// reveal.
func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost { w.WriteHeader(http.StatusMethodNotAllowed); return }
    defer r.Body.Close()
    var req answerReq
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        writeError(w, http.StatusBadRequest, "invalid json"); return
    }
    if req.UserID == "" { writeError(w, http.StatusBadRequest, "missing user_id"); return }

    s.mu.Lock()
    defer s.mu.Unlock()
    sess := s.userSession(req.UserID)
    res := sess.Result()
    if res == nil { writeError(w, http.StatusBadRequest, "no question set is loaded"); return }

    var correct bool
    var graded bool
    var err error
    switch res.Capability {
    case gen.CapQuiz:
        if req.Bool == nil { writeError(w, http.StatusBadRequest, "value_bool is required"); return }
        correct, err = sess.AnswerTrueFalse(r.Context(), req.Index, *req.Bool)
        graded = true
    case gen.CapMultipleChoice:
        if req.Selected == nil { writeError(w, http.StatusBadRequest, "selected is required"); return }
        correct, err = sess.AnswerMultipleChoice(r.Context(), req.Index, *req.Selected)
        graded = true
    case gen.CapFillBlank:
        if req.Text != nil {
            if err = sess.SetFillBlankAnswer(req.Index, *req.Text); err != nil { break }
        }
        if req.Check {
            correct, err = sess.CheckFillBlank(r.Context(), req.Index)
            graded = true
        }
    case gen.CapShortAnswer:
        if req.Text != nil {
            if err = sess.SetShortAnswerDraft(req.Index, *req.Text); err != nil { break }
        }
        if req.Reveal { err = sess.RevealShortAnswer(req.Index) }
    default:
        writeError(w, http.StatusBadRequest, "loaded result is not answerable"); return
    }
    if err != nil {
        if errors.Is(err, session.ErrSlotLocked) {
            writeError(w, http.StatusConflict, err.Error()); return
        }
        writeError(w, http.StatusBadRequest, err.Error()); return
    }

    resp := map[string]any{"state": sess.State()[req.Index]}
    if graded { resp["correct"] = correct }
    writeJSON(w, http.StatusOK, resp)
}

type bookmarkReq struct {
    UserID string `json:"user_id"`
    Index  int    `json:"index"`
}

func (s *Server) handleBookmark(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost { w.WriteHeader(http.StatusMethodNotAllowed); return }
    defer r.Body.Close()
    var req bookmarkReq
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        writeError(w, http.StatusBadRequest, "invalid json"); return
    }
    if req.UserID == "" { writeError(w, http.StatusBadRequest, "missing user_id"); return }

    s.mu.Lock()
    on, err := s.userSession(req.UserID).ToggleBookmark(r.Context(), req.Index)
    s.mu.Unlock()
    if err != nil {
        if errors.Is(err, session.ErrWrongCapability) || errors.Is(err, session.ErrNoResult) || errors.Is(err, session.ErrIndexOutOfRange) {
            writeError(w, http.StatusBadRequest, err.Error()); return
        }
        writeError(w, http.StatusInternalServerError, err.Error()); return
    }
    writeJSON(w, http.StatusOK, map[string]bool{"bookmarked": on})
}

func (s *Server) handleWrongAnswers(w http.ResponseWriter, r *http.Request) {
    userID := r.URL.Query().Get("user_id")
    if userID == "" { writeError(w, http.StatusBadRequest, "missing user_id"); return }
    switch r.Method {
    case http.MethodGet:
        recs, err := s.deps.Review.ListWrongAnswers(r.Context(), userID)
        if err != nil { writeError(w, http.StatusInternalServerError, "cannot list wrong answers"); return }
        writeJSON(w, http.StatusOK, recs)
    case http.MethodDelete:
        if err := s.deps.Review.ClearWrongAnswers(r.Context(), userID); err != nil {
            writeError(w, http.StatusInternalServerError, "cannot clear wrong answers"); return
        }
        writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// handleDeleteWrongAnswer removes one stored wrong answer by record ID.
func (s *Server) handleDeleteWrongAnswer(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodDelete { w.WriteHeader(http.StatusMethodNotAllowed); return }
    id := strings.TrimPrefix(r.URL.Path, "/review/wrong/")
    userID := r.URL.Query().Get("user_id")
    if id == "" || userID == "" { writeError(w, http.StatusBadRequest, "missing record id or user_id"); return }
    if err := s.deps.Review.DeleteWrongAnswer(r.Context(), userID, id); err != nil {
        writeError(w, http.StatusInternalServerError, "cannot delete wrong answer"); return
    }
    writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleBookmarks(w http.ResponseWriter, r *http.Request) {
    userID := r.URL.Query().Get("user_id")
    if userID == "" { writeError(w, http.StatusBadRequest, "missing user_id"); return }
    switch r.Method {
    case http.MethodGet:
        recs, err := s.deps.Review.ListBookmarks(r.Context(), userID)
        if err != nil { writeError(w, http.StatusInternalServerError, "cannot list bookmarks"); return }
        writeJSON(w, http.StatusOK, recs)
    case http.MethodDelete:
        question := r.URL.Query().Get("question")
        if question == "" { writeError(w, http.StatusBadRequest, "missing question"); return }
        if err := s.deps.Review.RemoveBookmark(r.Context(), userID, question); err != nil {
            writeError(w, http.StatusInternalServerError, "cannot remove bookmark"); return
        }
        writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}
