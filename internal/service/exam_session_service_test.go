package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Dauka12/olympiad-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

var baseTime = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type answerKey struct {
	session  uuid.UUID
	question int64
}

type fakeSessionStore struct {
	mu       sync.Mutex
	clock    func() time.Time
	sessions map[uuid.UUID]*model.ExamSession
	answers  map[answerKey]model.StudentAnswer
	endCalls int
}

func newFakeSessionStore(clock func() time.Time) *fakeSessionStore {
	return &fakeSessionStore{
		clock:    clock,
		sessions: make(map[uuid.UUID]*model.ExamSession),
		answers:  make(map[answerKey]model.StudentAnswer),
	}
}

func (f *fakeSessionStore) Create(ctx context.Context, s *model.ExamSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.sessions {
		if existing.ExamID == s.ExamID && existing.StudentID == s.StudentID {
			return pgx.ErrNoRows
		}
	}
	s.ID = uuid.New()
	s.StartTime = f.clock()
	cp := *s
	f.sessions[s.ID] = &cp
	return nil
}

func (f *fakeSessionStore) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return f.loadLocked(s), nil
}

func (f *fakeSessionStore) GetByExamAndStudent(ctx context.Context, examID int64, studentID int) (*model.ExamSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.ExamID == examID && s.StudentID == studentID {
			return f.loadLocked(s), nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeSessionStore) loadLocked(s *model.ExamSession) *model.ExamSession {
	cp := *s
	cp.Answers = nil
	for key, a := range f.answers {
		if key.session == s.ID {
			cp.Answers = append(cp.Answers, a)
		}
	}
	return &cp
}

func (f *fakeSessionStore) ListByStudent(ctx context.Context, studentID int) ([]model.ExamSessionSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.ExamSessionSummary{}
	for _, s := range f.sessions {
		if s.StudentID != studentID {
			continue
		}
		out = append(out, model.ExamSessionSummary{
			ID:              s.ID,
			ExamID:          s.ExamID,
			NameRus:         s.NameRus,
			NameKaz:         s.NameKaz,
			DurationMinutes: s.DurationMinutes,
			StartTime:       s.StartTime,
			EndTime:         s.EndTime,
		})
	}
	return out, nil
}

func (f *fakeSessionStore) UpsertAnswer(ctx context.Context, a *model.StudentAnswer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := answerKey{session: a.SessionID, question: a.QuestionID}
	if prev, ok := f.answers[key]; ok && prev.AnsweredAt.After(a.AnsweredAt) {
		return nil
	}
	f.answers[key] = *a
	return nil
}

func (f *fakeSessionStore) DeleteAnswer(ctx context.Context, sessionID uuid.UUID, questionID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.answers, answerKey{session: sessionID, question: questionID})
	return nil
}

func (f *fakeSessionStore) End(ctx context.Context, sessionID uuid.UUID, at time.Time) (time.Time, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionID]
	if !ok {
		return time.Time{}, false, pgx.ErrNoRows
	}
	if s.EndTime != nil {
		return *s.EndTime, false, nil
	}
	f.endCalls++
	end := at
	s.EndTime = &end
	return end, true, nil
}

type fakeExamStore struct {
	exams map[int64]*model.Exam
}

func (f *fakeExamStore) GetByID(ctx context.Context, id int64) (*model.Exam, error) {
	e, ok := f.exams[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *e
	return &cp, nil
}

type fakePayloadSource struct {
	payloads map[int64]*model.ExamPayload
}

func (f *fakePayloadSource) GetExamPayload(ctx context.Context, examID int64) (*model.ExamPayload, error) {
	p, ok := f.payloads[examID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return p, nil
}

type fakeEndGuard struct {
	mu   sync.Mutex
	held map[uuid.UUID]bool
}

func (g *fakeEndGuard) TryBegin(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held == nil {
		g.held = make(map[uuid.UUID]bool)
	}
	if g.held[sessionID] {
		return false, nil
	}
	g.held[sessionID] = true
	return true, nil
}

func (g *fakeEndGuard) Finish(ctx context.Context, sessionID uuid.UUID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.held, sessionID)
	return nil
}

// twoQuestionExam seeds exam 5 with questions 101 and 102, options
// 201/202 and 205/206, and its student payload.
func twoQuestionExam() (*fakeExamStore, *fakePayloadSource) {
	exams := &fakeExamStore{exams: map[int64]*model.Exam{
		5: {
			ID:              5,
			NameRus:         "Городская олимпиада",
			NameKaz:         "Қалалық олимпиада",
			DurationMinutes: 60,
			StartTime:       baseTime.Add(-time.Hour),
			Status:          model.ExamStatusPublished,
		},
	}}
	questions := []model.Question{
		{
			ID: 101, ExamID: 5, TextRus: "Вопрос 1", TextKaz: "Сұрақ 1",
			CorrectOptionID: 201,
			Options: []model.Option{
				{ID: 201, QuestionID: 101, TextRus: "А", TextKaz: "А"},
				{ID: 202, QuestionID: 101, TextRus: "Б", TextKaz: "Ә"},
			},
		},
		{
			ID: 102, ExamID: 5, TextRus: "Вопрос 2", TextKaz: "Сұрақ 2",
			CorrectOptionID: 206,
			Options: []model.Option{
				{ID: 205, QuestionID: 102, TextRus: "В", TextKaz: "Б"},
				{ID: 206, QuestionID: 102, TextRus: "Г", TextKaz: "В"},
			},
		},
	}
	payload := &model.ExamPayload{
		ExamID:          5,
		NameRus:         "Городская олимпиада",
		NameKaz:         "Қалалық олимпиада",
		StartTime:       baseTime.Add(-time.Hour),
		DurationMinutes: 60,
		Questions:       make([]model.QuestionForStudent, len(questions)),
	}
	for i, q := range questions {
		payload.Questions[i] = q.ForStudent()
	}
	payloads := &fakePayloadSource{payloads: map[int64]*model.ExamPayload{5: payload}}
	return exams, payloads
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestService() (*ExamSessionService, *fakeSessionStore, *clock) {
	c := &clock{now: baseTime}
	store := newFakeSessionStore(c.Now)
	exams, payloads := twoQuestionExam()
	svc := NewExamSessionService(store, exams, payloads, &fakeEndGuard{}, zerolog.Nop())
	svc.now = c.Now
	return svc, store, c
}

func TestStartIsIdempotent(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	first, err := svc.Start(ctx, 7, 5)
	if err != nil {
		t.Fatalf("first start: %v", err)
	}
	if len(first.Questions) != 2 {
		t.Fatalf("questions = %d, want 2", len(first.Questions))
	}

	second, err := svc.Start(ctx, 7, 5)
	if err != nil {
		t.Fatalf("second start: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("second start returned session %s, want %s", second.ID, first.ID)
	}
	if !second.StartTime.Equal(first.StartTime) {
		t.Errorf("second start changed start time: %v vs %v", second.StartTime, first.StartTime)
	}
}

func TestStartRejectsUnavailableExams(t *testing.T) {
	svc, _, _ := newTestService()
	exams, payloads := twoQuestionExam()
	exams.exams[6] = &model.Exam{ID: 6, Status: model.ExamStatusDraft, StartTime: baseTime.Add(-time.Hour)}
	exams.exams[7] = &model.Exam{ID: 7, Status: model.ExamStatusPublished, StartTime: baseTime.Add(time.Hour), DurationMinutes: 60}
	svc.exams = exams
	svc.payloads = payloads
	ctx := context.Background()

	if _, err := svc.Start(ctx, 7, 6); !errors.Is(err, ErrExamNotAvailable) {
		t.Errorf("draft exam: err = %v, want ErrExamNotAvailable", err)
	}
	if _, err := svc.Start(ctx, 7, 7); !errors.Is(err, ErrExamNotStarted) {
		t.Errorf("future exam: err = %v, want ErrExamNotStarted", err)
	}
	// An exam id with no row behind it is a not-found condition, not an
	// internal failure.
	if _, err := svc.Start(ctx, 7, 99); !errors.Is(err, ErrExamNotAvailable) {
		t.Errorf("missing exam: err = %v, want ErrExamNotAvailable", err)
	}
}

func TestSaveAnswerReplacesPrevious(t *testing.T) {
	svc, _, c := newTestService()
	ctx := context.Background()

	session, err := svc.Start(ctx, 7, 5)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := svc.SaveAnswer(ctx, session.ID, 7, 101, 201); err != nil {
		t.Fatalf("first answer: %v", err)
	}
	c.Advance(time.Second)
	if err := svc.SaveAnswer(ctx, session.ID, 7, 101, 202); err != nil {
		t.Fatalf("replacement answer: %v", err)
	}

	got, err := svc.Get(ctx, session.ID, 7)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Answers) != 1 {
		t.Fatalf("answers = %d, want 1", len(got.Answers))
	}
	if got.Answers[0].SelectedOptionID != 202 {
		t.Errorf("selected option = %d, want 202", got.Answers[0].SelectedOptionID)
	}
}

func TestSaveAnswerValidatesQuestionAndOption(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	session, err := svc.Start(ctx, 7, 5)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := svc.SaveAnswer(ctx, session.ID, 7, 999, 201); !errors.Is(err, ErrQuestionNotInExam) {
		t.Errorf("unknown question: err = %v, want ErrQuestionNotInExam", err)
	}
	// Option 205 belongs to question 102, not 101.
	if err := svc.SaveAnswer(ctx, session.ID, 7, 101, 205); !errors.Is(err, ErrOptionMismatch) {
		t.Errorf("foreign option: err = %v, want ErrOptionMismatch", err)
	}
}

func TestCheckAnswerValidatesWithoutPersisting(t *testing.T) {
	svc, store, c := newTestService()
	ctx := context.Background()

	session, err := svc.Start(ctx, 7, 5)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := svc.CheckAnswer(ctx, session.ID, 7, 101, 201); err != nil {
		t.Fatalf("valid selection: %v", err)
	}
	if n := len(store.answers); n != 0 {
		t.Fatalf("check persisted %d answers, want none", n)
	}

	if err := svc.CheckAnswer(ctx, session.ID, 7, 101, 205); !errors.Is(err, ErrOptionMismatch) {
		t.Errorf("foreign option: err = %v, want ErrOptionMismatch", err)
	}
	if err := svc.CheckAnswer(ctx, session.ID, 8, 101, 201); !errors.Is(err, ErrNotSessionOwner) {
		t.Errorf("foreign student: err = %v, want ErrNotSessionOwner", err)
	}

	c.Advance(61 * time.Minute)
	if err := svc.CheckAnswer(ctx, session.ID, 7, 101, 201); !errors.Is(err, ErrSessionEnded) {
		t.Errorf("elapsed window: err = %v, want ErrSessionEnded", err)
	}
	if err := svc.CheckMutable(ctx, session.ID, 7); !errors.Is(err, ErrSessionEnded) {
		t.Errorf("mutable past window: err = %v, want ErrSessionEnded", err)
	}
}

func TestDeleteAnswerIsIdempotent(t *testing.T) {
	svc, _, c := newTestService()
	ctx := context.Background()

	session, err := svc.Start(ctx, 7, 5)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := svc.SaveAnswer(ctx, session.ID, 7, 101, 201); err != nil {
		t.Fatalf("answer: %v", err)
	}

	if err := svc.DeleteAnswer(ctx, session.ID, 7, 101); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := svc.DeleteAnswer(ctx, session.ID, 7, 101); err != nil {
		t.Fatalf("repeat delete: %v", err)
	}
	// Never answered at all.
	if err := svc.DeleteAnswer(ctx, session.ID, 7, 102); err != nil {
		t.Fatalf("delete of unanswered question: %v", err)
	}

	c.Advance(time.Second)
	if err := svc.SaveAnswer(ctx, session.ID, 7, 101, 202); err != nil {
		t.Fatalf("re-answer after delete: %v", err)
	}
	got, err := svc.Get(ctx, session.ID, 7)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Answers) != 1 || got.Answers[0].SelectedOptionID != 202 {
		t.Errorf("answers after re-answer = %+v, want single selection of 202", got.Answers)
	}
}

func TestEndIsOneWay(t *testing.T) {
	svc, store, c := newTestService()
	ctx := context.Background()

	session, err := svc.Start(ctx, 7, 5)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := svc.SaveAnswer(ctx, session.ID, 7, 101, 201); err != nil {
		t.Fatalf("answer: %v", err)
	}

	c.Advance(10 * time.Minute)
	ended, err := svc.End(ctx, session.ID, 7)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if ended.EndTime == nil {
		t.Fatal("end time not set")
	}
	firstEnd := *ended.EndTime

	if err := svc.SaveAnswer(ctx, session.ID, 7, 102, 205); !errors.Is(err, ErrSessionEnded) {
		t.Errorf("answer after end: err = %v, want ErrSessionEnded", err)
	}
	if err := svc.DeleteAnswer(ctx, session.ID, 7, 101); !errors.Is(err, ErrSessionEnded) {
		t.Errorf("delete after end: err = %v, want ErrSessionEnded", err)
	}

	c.Advance(5 * time.Minute)
	again, err := svc.End(ctx, session.ID, 7)
	if err != nil {
		t.Fatalf("repeat end: %v", err)
	}
	if !again.EndTime.Equal(firstEnd) {
		t.Errorf("repeat end returned %v, want original %v", again.EndTime, firstEnd)
	}
	if store.endCalls != 1 {
		t.Errorf("end writes = %d, want 1", store.endCalls)
	}

	got, err := svc.Get(ctx, session.ID, 7)
	if err != nil {
		t.Fatalf("get after end: %v", err)
	}
	if len(got.Answers) != 1 || got.Answers[0].SelectedOptionID != 201 {
		t.Errorf("answers after end = %+v, want the pre-end selection intact", got.Answers)
	}
}

func TestElapsedWindowRejectsMutationsAndClampsEnd(t *testing.T) {
	svc, _, c := newTestService()
	ctx := context.Background()

	session, err := svc.Start(ctx, 7, 5)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	c.Advance(61 * time.Minute)
	if err := svc.SaveAnswer(ctx, session.ID, 7, 101, 201); !errors.Is(err, ErrSessionEnded) {
		t.Errorf("answer past window: err = %v, want ErrSessionEnded", err)
	}

	ended, err := svc.End(ctx, session.ID, 7)
	if err != nil {
		t.Fatalf("end past window: %v", err)
	}
	if !ended.EndTime.Equal(session.StartTime.Add(60 * time.Minute)) {
		t.Errorf("end time = %v, want scheduled window end %v",
			ended.EndTime, session.StartTime.Add(60*time.Minute))
	}
}

func TestEndOwnershipAndSweepBypass(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	session, err := svc.Start(ctx, 7, 5)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := svc.End(ctx, session.ID, 8); !errors.Is(err, ErrNotSessionOwner) {
		t.Errorf("foreign student end: err = %v, want ErrNotSessionOwner", err)
	}
	// Student 0 is the deadline sweep; it may end any session.
	if _, err := svc.End(ctx, session.ID, 0); err != nil {
		t.Errorf("sweep end: %v", err)
	}
	if _, err := svc.Get(ctx, uuid.New(), 7); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("unknown session: err = %v, want ErrSessionNotFound", err)
	}
}

func TestConcurrentEndFinalizesOnce(t *testing.T) {
	svc, store, c := newTestService()
	ctx := context.Background()

	session, err := svc.Start(ctx, 7, 5)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	c.Advance(time.Minute)

	const callers = 8
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.End(ctx, session.ID, 7)
		}(i)
	}
	wg.Wait()

	successes := 0
	for i, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrEndInProgress):
		default:
			t.Errorf("caller %d: unexpected error %v", i, err)
		}
	}
	if successes == 0 {
		t.Error("no caller finalized the session")
	}
	if store.endCalls != 1 {
		t.Errorf("end writes = %d, want exactly 1", store.endCalls)
	}
}

func TestStaleAnswerWriteLoses(t *testing.T) {
	c := &clock{now: baseTime}
	store := newFakeSessionStore(c.Now)
	ctx := context.Background()

	id := uuid.New()
	fresh := &model.StudentAnswer{SessionID: id, QuestionID: 101, SelectedOptionID: 202, AnsweredAt: baseTime.Add(2 * time.Second)}
	stale := &model.StudentAnswer{SessionID: id, QuestionID: 101, SelectedOptionID: 201, AnsweredAt: baseTime}

	if err := store.UpsertAnswer(ctx, fresh); err != nil {
		t.Fatalf("fresh upsert: %v", err)
	}
	if err := store.UpsertAnswer(ctx, stale); err != nil {
		t.Fatalf("stale upsert: %v", err)
	}

	got := store.answers[answerKey{session: id, question: 101}]
	if got.SelectedOptionID != 202 {
		t.Errorf("selected option = %d, want the later write 202", got.SelectedOptionID)
	}
}

func TestRemainingSeconds(t *testing.T) {
	end := baseTime
	s := &model.ExamSession{StartTime: baseTime.Add(-30 * time.Minute), DurationMinutes: 60}

	if got := RemainingSeconds(s, baseTime); got != 1800 {
		t.Errorf("mid-session remaining = %d, want 1800", got)
	}
	if got := RemainingSeconds(s, baseTime.Add(time.Hour)); got != 0 {
		t.Errorf("past-window remaining = %d, want 0", got)
	}
	s.EndTime = &end
	if got := RemainingSeconds(s, baseTime.Add(-10*time.Minute)); got != 0 {
		t.Errorf("ended-session remaining = %d, want 0", got)
	}
}
