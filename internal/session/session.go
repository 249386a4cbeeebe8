package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/local/examprep/internal/gen"
	"github.com/local/examprep/internal/metrics"
)

var (
	ErrNoResult        = errors.New("no question set is loaded")
	ErrWrongCapability = errors.New("loaded result does not support this action")
	ErrIndexOutOfRange = errors.New("question index out of range")
	ErrSlotLocked      = errors.New("question already answered")
)

// WrongAnswerEvent is emitted when a graded question is answered
// incorrectly. SourceID points back at the upload the questions were
// generated from.
type WrongAnswerEvent struct {
	Question      string       `json:"question"`
	QuestionType  QuestionType `json:"question_type"`
	UserAnswer    string       `json:"user_answer"`
	CorrectAnswer string       `json:"correct_answer"`
	Explanation   string       `json:"explanation"`
	SourceID      string       `json:"source_id"`
}

// BookmarkEvent carries a short-answer question being bookmarked.
type BookmarkEvent struct {
	Question    string   `json:"question"`
	Answer      string   `json:"answer"`
	Keywords    []string `json:"keywords"`
	Explanation string   `json:"explanation"`
}

// WrongAnswerSink persists wrong-answer events. Failures are non-fatal:
// grading already shown to the user is never rolled back.
type WrongAnswerSink interface {
	RecordWrongAnswer(ctx context.Context, userID string, ev WrongAnswerEvent) error
}

// BookmarkSink persists bookmark toggles. Add/Remove failures roll the
// in-memory flag back.
type BookmarkSink interface {
	AddBookmark(ctx context.Context, userID string, ev BookmarkEvent) error
	RemoveBookmark(ctx context.Context, userID, question string) error
}

type slot struct {
	answered   bool
	locked     bool
	correct    bool
	boolAnswer bool
	textAnswer string
	selected   int
	bookmarked bool
}

// AnswerState is the externally visible state of one slot.
type AnswerState struct {
	Answered   bool   `json:"answered"`
	Locked     bool   `json:"locked"`
	Correct    bool   `json:"correct"`
	UserAnswer string `json:"userAnswer,omitempty"`
	Bookmarked bool   `json:"bookmarked,omitempty"`
}

// Session holds at most one live question set and a parallel answer
// slot per item. It is owned by a single logical flow and is not safe
// for concurrent mutation.
type Session struct {
	userID   string
	sourceID string
	result   *gen.Result
	slots    []slot

	wrongs    WrongAnswerSink
	bookmarks BookmarkSink
	log       zerolog.Logger
}

func New(userID string, wrongs WrongAnswerSink, bookmarks BookmarkSink, log zerolog.Logger) *Session {
	return &Session{userID: userID, wrongs: wrongs, bookmarks: bookmarks, log: log}
}

// Clear discards the current result and every answer slot. Called
// unconditionally before any new generation request resolves.
func (s *Session) Clear() {
	s.result = nil
	s.sourceID = ""
	s.slots = nil
}

// LoadResult installs a fresh generation result, replacing whatever was
// live before. All slots start unanswered.
func (s *Session) LoadResult(result *gen.Result, sourceID string) {
	s.Clear()
	if result == nil {
		return
	}
	s.result = result
	s.sourceID = sourceID
	s.slots = make([]slot, s.itemCount())
}

func (s *Session) itemCount() int {
	switch s.result.Capability {
	case gen.CapQuiz:
		return len(s.result.Quiz)
	case gen.CapFillBlank:
		return len(s.result.FillBlank)
	case gen.CapMultipleChoice:
		return len(s.result.MultipleChoice)
	case gen.CapShortAnswer:
		return len(s.result.ShortAnswer)
	default:
		return 0
	}
}

// Result returns the live generation result, or nil.
func (s *Session) Result() *gen.Result { return s.result }

// State returns a snapshot of every answer slot.
func (s *Session) State() []AnswerState {
	out := make([]AnswerState, len(s.slots))
	for i, sl := range s.slots {
		out[i] = AnswerState{
			Answered:   sl.answered,
			Locked:     sl.locked,
			Correct:    sl.correct,
			UserAnswer: sl.textAnswer,
			Bookmarked: sl.bookmarked,
		}
	}
	return out
}

func (s *Session) checkIndex(cap gen.Capability, idx int) error {
	if s.result == nil {
		return ErrNoResult
	}
	if s.result.Capability != cap {
		return fmt.Errorf("%w: have %s, want %s", ErrWrongCapability, s.result.Capability, cap)
	}
	if idx < 0 || idx >= len(s.slots) {
		return ErrIndexOutOfRange
	}
	return nil
}

// AnswerTrueFalse grades a true/false answer. The slot locks on the
// first answer; a wrong answer emits exactly one WrongAnswerEvent.
func (s *Session) AnswerTrueFalse(ctx context.Context, idx int, value bool) (bool, error) {
	if err := s.checkIndex(gen.CapQuiz, idx); err != nil {
		return false, err
	}
	sl := &s.slots[idx]
	if sl.locked {
		return sl.correct, ErrSlotLocked
	}
	q := s.result.Quiz[idx]
	sl.answered, sl.locked = true, true
	sl.boolAnswer = value
	sl.correct = value == q.Answer
	if !sl.correct {
		s.emitWrong(ctx, WrongAnswerEvent{
			Question:      q.Question,
			QuestionType:  TypeTrueFalse,
			UserAnswer:    oxLabel(value),
			CorrectAnswer: oxLabel(q.Answer),
			Explanation:   q.Explanation,
			SourceID:      s.sourceID,
		})
	}
	return sl.correct, nil
}

// AnswerMultipleChoice grades a selected option index and locks the slot.
func (s *Session) AnswerMultipleChoice(ctx context.Context, idx, selected int) (bool, error) {
	if err := s.checkIndex(gen.CapMultipleChoice, idx); err != nil {
		return false, err
	}
	sl := &s.slots[idx]
	if sl.locked {
		return sl.correct, ErrSlotLocked
	}
	q := s.result.MultipleChoice[idx]
	if selected < 0 || selected >= len(q.Options) {
		return false, fmt.Errorf("selected option %d out of range", selected)
	}
	sl.answered, sl.locked = true, true
	sl.selected = selected
	sl.textAnswer = q.Options[selected]
	sl.correct = selected == q.CorrectAnswer
	if !sl.correct {
		s.emitWrong(ctx, WrongAnswerEvent{
			Question:      q.Question,
			QuestionType:  TypeMultipleChoice,
			UserAnswer:    q.Options[selected],
			CorrectAnswer: q.Options[q.CorrectAnswer],
			Explanation:   q.Explanation,
			SourceID:      s.sourceID,
		})
	}
	return sl.correct, nil
}

// SetFillBlankAnswer stores a draft answer. The slot stays editable
// until CheckFillBlank locks it.
func (s *Session) SetFillBlankAnswer(idx int, text string) error {
	if err := s.checkIndex(gen.CapFillBlank, idx); err != nil {
		return err
	}
	sl := &s.slots[idx]
	if sl.locked {
		return ErrSlotLocked
	}
	sl.textAnswer = text
	return nil
}

// CheckFillBlank grades the stored draft, locks the slot and emits a
// wrong-answer event when the answer does not match.
func (s *Session) CheckFillBlank(ctx context.Context, idx int) (bool, error) {
	if err := s.checkIndex(gen.CapFillBlank, idx); err != nil {
		return false, err
	}
	sl := &s.slots[idx]
	if sl.locked {
		return sl.correct, ErrSlotLocked
	}
	q := s.result.FillBlank[idx]
	sl.answered, sl.locked = true, true
	sl.correct = fillBlankMatches(sl.textAnswer, q.Answer)
	if !sl.correct {
		s.emitWrong(ctx, WrongAnswerEvent{
			Question:      q.Question,
			QuestionType:  TypeFillBlank,
			UserAnswer:    sl.textAnswer,
			CorrectAnswer: q.Answer,
			Explanation:   q.Hint,
			SourceID:      s.sourceID,
		})
	}
	return sl.correct, nil
}

// SetShortAnswerDraft stores the user's free-form answer; short answers
// are self-graded and never emit wrong-answer events.
func (s *Session) SetShortAnswerDraft(idx int, text string) error {
	if err := s.checkIndex(gen.CapShortAnswer, idx); err != nil {
		return err
	}
	sl := &s.slots[idx]
	if sl.locked {
		return ErrSlotLocked
	}
	sl.textAnswer = text
	return nil
}

// RevealShortAnswer locks the slot and marks it answered so the model
// answer can be shown.
func (s *Session) RevealShortAnswer(idx int) error {
	if err := s.checkIndex(gen.CapShortAnswer, idx); err != nil {
		return err
	}
	sl := &s.slots[idx]
	if sl.locked {
		return ErrSlotLocked
	}
	sl.answered, sl.locked = true, true
	return nil
}

// ToggleBookmark flips the bookmark on a short-answer question. The
// flag is updated optimistically and rolled back if the sink fails.
func (s *Session) ToggleBookmark(ctx context.Context, idx int) (bool, error) {
	if err := s.checkIndex(gen.CapShortAnswer, idx); err != nil {
		return false, err
	}
	sl := &s.slots[idx]
	q := s.result.ShortAnswer[idx]

	sl.bookmarked = !sl.bookmarked
	var err error
	if sl.bookmarked {
		err = s.bookmarks.AddBookmark(ctx, s.userID, BookmarkEvent{
			Question:    q.Question,
			Answer:      q.Answer,
			Keywords:    q.Keywords,
			Explanation: q.Explanation,
		})
	} else {
		err = s.bookmarks.RemoveBookmark(ctx, s.userID, q.Question)
	}
	if err != nil {
		sl.bookmarked = !sl.bookmarked
		return sl.bookmarked, fmt.Errorf("bookmark toggle failed: %w", err)
	}
	return sl.bookmarked, nil
}

func (s *Session) emitWrong(ctx context.Context, ev WrongAnswerEvent) {
	metrics.IncWrongAnswer(string(ev.QuestionType))
	if s.wrongs == nil {
		return
	}
	if err := s.wrongs.RecordWrongAnswer(ctx, s.userID, ev); err != nil {
		// Grading already happened; losing the record is reported but
		// never undoes the shown result.
		s.log.Warn().Err(err).Str("question_type", string(ev.QuestionType)).Msg("wrong answer record failed")
	}
}

func oxLabel(v bool) string {
	if v {
		return "O"
	}
	return "X"
}

// SlotAnswer reports the raw stored answer for a slot, for rendering.
func (s *Session) SlotAnswer(idx int) (string, error) {
	if s.result == nil {
		return "", ErrNoResult
	}
	if idx < 0 || idx >= len(s.slots) {
		return "", ErrIndexOutOfRange
	}
	sl := s.slots[idx]
	switch s.result.Capability {
	case gen.CapQuiz:
		if !sl.answered {
			return "", nil
		}
		return oxLabel(sl.boolAnswer), nil
	case gen.CapMultipleChoice:
		if !sl.answered {
			return "", nil
		}
		return strconv.Itoa(sl.selected), nil
	default:
		return sl.textAnswer, nil
	}
}
