package session

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/local/examprep/internal/gen"
)

type recordedWrong struct {
	userID string
	ev     WrongAnswerEvent
}

type fakeWrongSink struct {
	events []recordedWrong
	err    error
}

func (s *fakeWrongSink) RecordWrongAnswer(ctx context.Context, userID string, ev WrongAnswerEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, recordedWrong{userID, ev})
	return nil
}

type fakeBookmarkSink struct {
	added   []string
	removed []string
	err     error
}

func (s *fakeBookmarkSink) AddBookmark(ctx context.Context, userID string, ev BookmarkEvent) error {
	if s.err != nil {
		return s.err
	}
	s.added = append(s.added, ev.Question)
	return nil
}

func (s *fakeBookmarkSink) RemoveBookmark(ctx context.Context, userID, question string) error {
	if s.err != nil {
		return s.err
	}
	s.removed = append(s.removed, question)
	return nil
}

func newTestSession(wrongs *fakeWrongSink, bookmarks *fakeBookmarkSink) *Session {
	return New("user-1", wrongs, bookmarks, zerolog.Nop())
}

func quizResult() *gen.Result {
	return &gen.Result{
		Capability: gen.CapQuiz,
		Quiz: []gen.TrueFalseQuestion{
			{Question: "Light becomes chemical energy.", Answer: true, Explanation: "photosynthesis"},
			{Question: "The sun orbits the earth.", Answer: false, Explanation: "heliocentrism"},
		},
		Summary: "summary",
	}
}

func shortAnswerResult() *gen.Result {
	return &gen.Result{
		Capability: gen.CapShortAnswer,
		ShortAnswer: []gen.ShortAnswerQuestion{
			{Question: "Explain osmosis.", Answer: "diffusion of water", Keywords: []string{"membrane"}, Explanation: "e"},
		},
	}
}

func TestAnswerTrueFalseEmitsOnWrongOnly(t *testing.T) {
	wrongs := &fakeWrongSink{}
	s := newTestSession(wrongs, &fakeBookmarkSink{})
	s.LoadResult(quizResult(), "up-1")

	correct, err := s.AnswerTrueFalse(context.Background(), 0, true)
	if err != nil || !correct {
		t.Fatalf("correct answer: got correct=%v err=%v", correct, err)
	}
	if len(wrongs.events) != 0 {
		t.Fatalf("correct answer must not emit, got %d events", len(wrongs.events))
	}

	correct, err = s.AnswerTrueFalse(context.Background(), 1, true)
	if err != nil || correct {
		t.Fatalf("wrong answer: got correct=%v err=%v", correct, err)
	}
	if len(wrongs.events) != 1 {
		t.Fatalf("wrong answer must emit exactly one event, got %d", len(wrongs.events))
	}
	ev := wrongs.events[0].ev
	if ev.QuestionType != TypeTrueFalse || ev.UserAnswer != "O" || ev.CorrectAnswer != "X" {
		t.Errorf("event = %+v", ev)
	}
	if ev.SourceID != "up-1" {
		t.Errorf("event must reference the source upload, got %q", ev.SourceID)
	}
}

func TestAnswerTrueFalseLocksSlot(t *testing.T) {
	wrongs := &fakeWrongSink{}
	s := newTestSession(wrongs, &fakeBookmarkSink{})
	s.LoadResult(quizResult(), "up-1")

	if _, err := s.AnswerTrueFalse(context.Background(), 0, false); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AnswerTrueFalse(context.Background(), 0, true); !errors.Is(err, ErrSlotLocked) {
		t.Fatalf("second answer: got %v, want ErrSlotLocked", err)
	}
	if len(wrongs.events) != 1 {
		t.Errorf("locked slot must not emit again, got %d events", len(wrongs.events))
	}
}

func TestWrongSinkFailureDoesNotUndoGrading(t *testing.T) {
	wrongs := &fakeWrongSink{err: errors.New("redis down")}
	s := newTestSession(wrongs, &fakeBookmarkSink{})
	s.LoadResult(quizResult(), "up-1")

	correct, err := s.AnswerTrueFalse(context.Background(), 1, true)
	if err != nil {
		t.Fatalf("sink failure must be non-fatal, got %v", err)
	}
	if correct {
		t.Error("grading result must survive sink failure")
	}
	if !s.State()[1].Locked {
		t.Error("slot must stay locked")
	}
}

func TestFillBlankEditableUntilCheck(t *testing.T) {
	wrongs := &fakeWrongSink{}
	s := newTestSession(wrongs, &fakeBookmarkSink{})
	s.LoadResult(&gen.Result{
		Capability: gen.CapFillBlank,
		FillBlank: []gen.FillBlankQuestion{
			{Question: "Water is made of hydrogen and _____.", Answer: "Oxygen", Hint: "O2"},
		},
	}, "up-2")

	if err := s.SetFillBlankAnswer(0, "carbon"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetFillBlankAnswer(0, "  oxygen  "); err != nil {
		t.Fatalf("slot must stay editable before check: %v", err)
	}

	correct, err := s.CheckFillBlank(context.Background(), 0)
	if err != nil || !correct {
		t.Fatalf("case-insensitive trimmed match should grade correct, got correct=%v err=%v", correct, err)
	}
	if len(wrongs.events) != 0 {
		t.Errorf("correct check must not emit, got %d", len(wrongs.events))
	}
	if err := s.SetFillBlankAnswer(0, "x"); !errors.Is(err, ErrSlotLocked) {
		t.Errorf("after check the slot locks, got %v", err)
	}
}

func TestFillBlankWrongCheckEmits(t *testing.T) {
	wrongs := &fakeWrongSink{}
	s := newTestSession(wrongs, &fakeBookmarkSink{})
	s.LoadResult(&gen.Result{
		Capability: gen.CapFillBlank,
		FillBlank:  []gen.FillBlankQuestion{{Question: "q", Answer: "oxygen", Hint: "h"}},
	}, "")

	s.SetFillBlankAnswer(0, "carbon")
	correct, err := s.CheckFillBlank(context.Background(), 0)
	if err != nil || correct {
		t.Fatalf("got correct=%v err=%v", correct, err)
	}
	if len(wrongs.events) != 1 || wrongs.events[0].ev.Explanation != "h" {
		t.Errorf("event should carry the hint, got %+v", wrongs.events)
	}
}

func TestShortAnswerNeverEmits(t *testing.T) {
	wrongs := &fakeWrongSink{}
	s := newTestSession(wrongs, &fakeBookmarkSink{})
	s.LoadResult(shortAnswerResult(), "")

	s.SetShortAnswerDraft(0, "nonsense")
	if err := s.RevealShortAnswer(0); err != nil {
		t.Fatal(err)
	}
	if len(wrongs.events) != 0 {
		t.Errorf("short answers are self-graded, got %d events", len(wrongs.events))
	}
	if err := s.SetShortAnswerDraft(0, "more"); !errors.Is(err, ErrSlotLocked) {
		t.Errorf("reveal must lock the slot, got %v", err)
	}
}

func TestToggleBookmarkDoubleToggleNetZero(t *testing.T) {
	bm := &fakeBookmarkSink{}
	s := newTestSession(&fakeWrongSink{}, bm)
	s.LoadResult(shortAnswerResult(), "")

	on, err := s.ToggleBookmark(context.Background(), 0)
	if err != nil || !on {
		t.Fatalf("first toggle: on=%v err=%v", on, err)
	}
	on, err = s.ToggleBookmark(context.Background(), 0)
	if err != nil || on {
		t.Fatalf("second toggle: on=%v err=%v", on, err)
	}
	if len(bm.added) != 1 || len(bm.removed) != 1 {
		t.Errorf("added=%d removed=%d, want 1 and 1", len(bm.added), len(bm.removed))
	}
	if bm.removed[0] != "Explain osmosis." {
		t.Errorf("remove keyed by question text, got %q", bm.removed[0])
	}
}

func TestToggleBookmarkRollsBackOnSinkError(t *testing.T) {
	bm := &fakeBookmarkSink{err: errors.New("redis down")}
	s := newTestSession(&fakeWrongSink{}, bm)
	s.LoadResult(shortAnswerResult(), "")

	on, err := s.ToggleBookmark(context.Background(), 0)
	if err == nil {
		t.Fatal("sink failure must surface an error")
	}
	if on {
		t.Error("flag must roll back to pre-toggle value")
	}
	if s.State()[0].Bookmarked {
		t.Error("state must not show the bookmark")
	}
}

func TestToggleBookmarkWrongCapability(t *testing.T) {
	s := newTestSession(&fakeWrongSink{}, &fakeBookmarkSink{})
	s.LoadResult(quizResult(), "")

	if _, err := s.ToggleBookmark(context.Background(), 0); !errors.Is(err, ErrWrongCapability) {
		t.Fatalf("got %v, want ErrWrongCapability", err)
	}
}

func TestLoadResultClearsEverything(t *testing.T) {
	s := newTestSession(&fakeWrongSink{}, &fakeBookmarkSink{})
	s.LoadResult(quizResult(), "up-1")
	s.AnswerTrueFalse(context.Background(), 0, true)

	s.LoadResult(shortAnswerResult(), "up-2")
	state := s.State()
	if len(state) != 1 {
		t.Fatalf("got %d slots, want 1", len(state))
	}
	if state[0].Answered || state[0].Locked {
		t.Error("new load must start with unset slots")
	}
	if s.Result().Capability != gen.CapShortAnswer {
		t.Errorf("capability = %s", s.Result().Capability)
	}
}

func TestActionsWithoutResult(t *testing.T) {
	s := newTestSession(&fakeWrongSink{}, &fakeBookmarkSink{})
	if _, err := s.AnswerTrueFalse(context.Background(), 0, true); !errors.Is(err, ErrNoResult) {
		t.Errorf("got %v, want ErrNoResult", err)
	}
	s.LoadResult(quizResult(), "")
	if _, err := s.AnswerTrueFalse(context.Background(), 5, true); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("got %v, want ErrIndexOutOfRange", err)
	}
}
