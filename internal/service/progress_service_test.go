package service

import (
	"context"
	"exam_tracker_backend/internal/model"
	"exam_tracker_backend/internal/repository"
	"exam_tracker_backend/internal/util"
	"strconv"
	"testing"
)

func newProgressService(t *testing.T) (*ProgressService, []model.Question) {
	t.Helper()
	db := newTestDB(t)
	hard := seedQuestions(t, db, 2, model.Question{Category: "JEE", Subject: "Physics", Chapter: "Optics", Topic: "Lenses", Difficulty: model.Hard})
	easy := seedQuestions(t, db, 3, model.Question{Category: "JEE", Subject: "Physics", Chapter: "Optics", Topic: "Mirrors", Difficulty: model.Easy})
	return NewProgressService(repository.NewProgressRepository(db), newQuestionService(t, db)), append(hard, easy...)
}

func qid(q model.Question) string {
	return strconv.FormatUint(uint64(q.ID), 10)
}

func TestRecordAnswerUsesStoredDifficulty(t *testing.T) {
	svc, questions := newProgressService(t)
	ctx := context.Background()

	// the client claims easy; the stored question is hard
	rec, err := svc.RecordAnswer(ctx, AnswerEvent{UserID: "u1", Area: "JEE", Topic: "Lenses", QuestionID: qid(questions[0]), Correct: true, Difficulty: "easy"})
	if err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}
	if rec.Points != 3 || len(rec.CompletedIDs) != 1 || len(rec.CorrectIDs) != 1 {
		t.Fatalf("after correct answer: %+v", rec)
	}

	// answering again correctly earns nothing
	rec, err = svc.RecordAnswer(ctx, AnswerEvent{UserID: "u1", Area: "JEE", Topic: "Lenses", QuestionID: qid(questions[0]), Correct: true})
	if err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}
	if rec.Points != 3 {
		t.Fatalf("repeat correct answer changed points: %d", rec.Points)
	}

	// turning wrong gives the points back but keeps the question completed
	rec, err = svc.RecordAnswer(ctx, AnswerEvent{UserID: "u1", Area: "JEE", Topic: "Lenses", QuestionID: qid(questions[0]), Correct: false})
	if err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}
	if rec.Points != 0 || len(rec.CompletedIDs) != 1 || len(rec.CorrectIDs) != 0 {
		t.Fatalf("after wrong answer: %+v", rec)
	}
}

func TestRecordAnswerFallsBackToClientDifficulty(t *testing.T) {
	svc, _ := newProgressService(t)

	rec, err := svc.RecordAnswer(context.Background(), AnswerEvent{UserID: "u1", Area: "JEE", Topic: "Imported", QuestionID: "ext-77", Correct: true, Difficulty: "Medium"})
	if err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}
	if rec.Points != 2 {
		t.Fatalf("points: want=2 got=%d", rec.Points)
	}
}

func TestRecordAnswerValidation(t *testing.T) {
	svc, _ := newProgressService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		ev   AnswerEvent
	}{
		{"no-area", AnswerEvent{UserID: "u1", Topic: "t", QuestionID: "1"}},
		{"no-topic", AnswerEvent{UserID: "u1", Area: "a", QuestionID: "1"}},
		{"no-question", AnswerEvent{UserID: "u1", Area: "a", Topic: "t"}},
		{"bad-difficulty", AnswerEvent{UserID: "u1", Area: "a", Topic: "t", QuestionID: "1", Difficulty: "extreme"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.RecordAnswer(ctx, tc.ev); util.KindOf(err) != util.KindValidation {
				t.Fatalf("want validation error, got=%v", err)
			}
		})
	}

	if _, err := svc.RecordAnswer(ctx, AnswerEvent{Area: "a", Topic: "t", QuestionID: "1"}); err != util.ErrUnauthorized {
		t.Fatalf("anonymous answer: want ErrUnauthorized got=%v", err)
	}
}

func TestSyncNeverShrinksCompletedSet(t *testing.T) {
	svc, _ := newProgressService(t)
	ctx := context.Background()

	if _, err := svc.Sync(ctx, "u1", SyncRequest{Area: "JEE", Topic: "Lenses", CompletedIDs: []string{"1", "2", "3"}, CorrectIDs: []string{"1"}}); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	// a stale client uploads less than the server already has
	rec, err := svc.Sync(ctx, "u1", SyncRequest{Area: "JEE", Topic: "Lenses", CompletedIDs: []string{"2"}, CorrectIDs: []string{"4"}})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	want := []string{"1", "2", "3", "4"}
	if len(rec.CompletedIDs) != len(want) {
		t.Fatalf("completed: want=%v got=%v", want, rec.CompletedIDs)
	}
	for i, id := range want {
		if rec.CompletedIDs[i] != id {
			t.Fatalf("completed: want=%v got=%v", want, rec.CompletedIDs)
		}
	}
	// question 1 is hard, question 4 easy
	if len(rec.CorrectIDs) != 2 || rec.Points != 4 {
		t.Fatalf("correct/points: %+v", rec)
	}
}

func TestSyncEarnsStoredDifficultyPointsOnce(t *testing.T) {
	svc, questions := newProgressService(t)
	ctx := context.Background()

	if _, err := svc.RecordAnswer(ctx, AnswerEvent{UserID: "u1", Area: "JEE", Topic: "Lenses", QuestionID: qid(questions[0]), Correct: true}); err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}

	// already-correct hard question, a new easy one, and ids the store does not know
	rec, err := svc.Sync(ctx, "u1", SyncRequest{
		Area:       "JEE",
		Topic:      "Lenses",
		CorrectIDs: []string{qid(questions[0]), qid(questions[2]), "9999", "ext-1"},
	})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if rec.Points != 4 || len(rec.CorrectIDs) != 4 || len(rec.CompletedIDs) != 4 {
		t.Fatalf("after sync: %+v", rec)
	}

	// replaying the same upload earns nothing more
	rec, err = svc.Sync(ctx, "u1", SyncRequest{Area: "JEE", Topic: "Lenses", CorrectIDs: []string{qid(questions[2])}})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if rec.Points != 4 {
		t.Fatalf("replayed sync changed points: %d", rec.Points)
	}
}

func TestRecordReturnsEmptyRecordForUnknownKey(t *testing.T) {
	svc, _ := newProgressService(t)

	rec, err := svc.Record(context.Background(), model.ProgressKey{UserID: "u9", Area: "JEE", Topic: "None"})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if rec.ID != 0 || len(rec.CompletedIDs) != 0 || rec.Points != 0 {
		t.Fatalf("want empty record, got=%+v", rec)
	}
}

func TestChapterAndSubjectSummary(t *testing.T) {
	svc, questions := newProgressService(t)
	ctx := context.Background()

	answers := []AnswerEvent{
		{UserID: "u1", Area: "JEE", Topic: "Lenses", QuestionID: qid(questions[0]), Correct: true},
		{UserID: "u1", Area: "JEE", Topic: "Mirrors", QuestionID: qid(questions[2]), Correct: true},
		{UserID: "u1", Area: "JEE", Topic: "Mirrors", QuestionID: qid(questions[3]), Correct: false},
		{UserID: "u2", Area: "JEE", Topic: "Mirrors", QuestionID: qid(questions[4]), Correct: true},
	}
	for _, ev := range answers {
		if _, err := svc.RecordAnswer(ctx, ev); err != nil {
			t.Fatalf("RecordAnswer: %v", err)
		}
	}

	summary := svc.ChapterSummary(ctx, "u1", "JEE", "Optics", nil)
	if summary.Warning != "" {
		t.Fatalf("unexpected warning: %s", summary.Warning)
	}
	if summary.CompletedCount != 3 || summary.CorrectCount != 2 || summary.Points != 4 || summary.TotalQuestions != 5 {
		t.Fatalf("chapter summary: %+v", summary)
	}
	if summary.PercentComplete != 60 {
		t.Fatalf("percent complete: want=60 got=%v", summary.PercentComplete)
	}

	subject := svc.SubjectSummary(ctx, "u1", "JEE", "Physics")
	if len(subject.Chapters) != 1 || subject.Summary.CompletedCount != 3 || subject.Summary.TotalQuestions != 5 {
		t.Fatalf("subject summary: %+v", subject)
	}
}

func TestChapterSummaryDegradesToWarning(t *testing.T) {
	svc, _ := newProgressService(t)
	sqlDB, err := svc.Repo.DB.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.Close()

	summary := svc.ChapterSummary(context.Background(), "u1", "JEE", "", []string{"Lenses"})
	if summary.Warning == "" {
		t.Fatalf("expected a warning when the store is unavailable")
	}
	if summary.CompletedCount != 0 || summary.Points != 0 {
		t.Fatalf("expected zero summary, got=%+v", summary)
	}
}

func TestDashboardGroupsByArea(t *testing.T) {
	svc, _ := newProgressService(t)
	ctx := context.Background()

	for _, req := range []SyncRequest{
		{Area: "NEET", Topic: "Cells", CompletedIDs: []string{"1", "2"}, CorrectIDs: []string{"1"}},
		{Area: "JEE", Topic: "Lenses", CompletedIDs: []string{"3", "4"}, CorrectIDs: []string{"3", "4"}},
		{Area: "JEE", Topic: "Mirrors", CompletedIDs: []string{"5", "6"}},
	} {
		if _, err := svc.Sync(ctx, "u1", req); err != nil {
			t.Fatalf("Sync: %v", err)
		}
	}

	rows, err := svc.Dashboard(ctx, "u1")
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if len(rows) != 2 || rows[0].Area != "JEE" || rows[1].Area != "NEET" {
		t.Fatalf("dashboard areas: %+v", rows)
	}
	if rows[0].Topics != 2 || rows[0].CompletedCount != 4 || rows[0].CorrectCount != 2 || rows[0].Points != 2 || rows[0].Accuracy != 50 {
		t.Fatalf("JEE row: %+v", rows[0])
	}
}
