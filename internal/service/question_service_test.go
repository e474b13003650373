package service

import (
	"context"
	"exam_tracker_backend/internal/model"
	"exam_tracker_backend/internal/util"
	"math"
	"testing"
)

func TestCountsAlwaysCarryAllBuckets(t *testing.T) {
	db := newTestDB(t)
	seedQuestions(t, db, 19, model.Question{Category: "JEE", Subject: "Physics", Chapter: "Optics", Topic: "Lenses", Difficulty: model.Easy})
	seedQuestions(t, db, 4, model.Question{Category: "JEE", Subject: "Physics", Chapter: "Waves", Topic: "Sound", Difficulty: model.Hard})
	svc := newQuestionService(t, db)
	ctx := context.Background()

	counts, err := svc.Counts(ctx, "JEE", "Optics", "")
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts != (model.DifficultyCounts{Easy: 19}) {
		t.Fatalf("counts: got=%+v", counts)
	}

	// filters are case-insensitive
	counts, err = svc.Counts(ctx, "jee", "optics", "EASY")
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts.Easy != 19 || counts.Total() != 19 {
		t.Fatalf("case-insensitive counts: got=%+v", counts)
	}

	counts, err = svc.Counts(ctx, "JEE", "Optics", "hard")
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts.Total() != 0 {
		t.Fatalf("hard filter: got=%+v", counts)
	}

	if _, err := svc.Counts(ctx, "JEE", "Optics", "brutal"); util.KindOf(err) != util.KindValidation {
		t.Fatalf("unknown difficulty: want validation got=%v", err)
	}
}

func TestListQuestionsPaging(t *testing.T) {
	db := newTestDB(t)
	seedQuestions(t, db, util.QuestionPageSize+5, model.Question{Category: "NEET", Subject: "Biology", Chapter: "Cells", Topic: "Mitosis", Difficulty: model.Medium})
	svc := newQuestionService(t, db)
	ctx := context.Background()

	first, err := svc.ListQuestions(ctx, QuestionQuery{Category: "NEET", Chapter: "Cells"})
	if err != nil {
		t.Fatalf("ListQuestions: %v", err)
	}
	if first.Page != 1 || len(first.Questions) != util.QuestionPageSize || !first.HasMore {
		t.Fatalf("first page: page=%d len=%d hasMore=%v", first.Page, len(first.Questions), first.HasMore)
	}

	second, err := svc.ListQuestions(ctx, QuestionQuery{Category: "NEET", Chapter: "Cells", Page: 2})
	if err != nil {
		t.Fatalf("ListQuestions: %v", err)
	}
	if len(second.Questions) != 5 || second.HasMore {
		t.Fatalf("second page: len=%d hasMore=%v", len(second.Questions), second.HasMore)
	}
	if second.Questions[0].ID <= first.Questions[len(first.Questions)-1].ID {
		t.Fatalf("pages overlap")
	}

	empty, err := svc.ListQuestions(ctx, QuestionQuery{Category: "UPSC"})
	if err != nil {
		t.Fatalf("ListQuestions: %v", err)
	}
	if empty.Questions == nil || len(empty.Questions) != 0 || empty.HasMore {
		t.Fatalf("empty listing: %+v", empty)
	}
}

func TestListQuestionsRejectsHugePages(t *testing.T) {
	db := newTestDB(t)
	seedQuestions(t, db, 25, model.Question{Category: "NEET", Subject: "Biology", Chapter: "Cells", Topic: "Mitosis", Difficulty: model.Easy})
	svc := newQuestionService(t, db)
	ctx := context.Background()

	for _, page := range []int{util.MaxPage + 1, math.MaxInt64} {
		if _, err := svc.ListQuestions(ctx, QuestionQuery{Category: "NEET", Page: page}); util.KindOf(err) != util.KindValidation {
			t.Fatalf("page %d: want validation error, got=%v", page, err)
		}
	}

	last, err := svc.ListQuestions(ctx, QuestionQuery{Category: "NEET", Page: util.MaxPage})
	if err != nil {
		t.Fatalf("ListQuestions: %v", err)
	}
	if len(last.Questions) != 0 || last.HasMore {
		t.Fatalf("page past the data should be empty: %+v", last)
	}
}

func TestListQuestionsIsCached(t *testing.T) {
	db := newTestDB(t)
	seedQuestions(t, db, 3, model.Question{Category: "JEE", Subject: "Maths", Chapter: "Limits", Topic: "Limits", Difficulty: model.Easy})
	svc := newQuestionService(t, db)
	ctx := context.Background()

	before, err := svc.ListQuestions(ctx, QuestionQuery{Category: "JEE"})
	if err != nil {
		t.Fatalf("ListQuestions: %v", err)
	}
	seedQuestions(t, db, 2, model.Question{Category: "JEE", Subject: "Maths", Chapter: "Limits", Topic: "Limits", Difficulty: model.Easy})

	after, err := svc.ListQuestions(ctx, QuestionQuery{Category: " jee "})
	if err != nil {
		t.Fatalf("ListQuestions: %v", err)
	}
	if len(after.Questions) != len(before.Questions) {
		t.Fatalf("expected cached page within TTL: before=%d after=%d", len(before.Questions), len(after.Questions))
	}
}

func TestTaxonomyListings(t *testing.T) {
	db := newTestDB(t)
	seedQuestions(t, db, 2, model.Question{Category: "JEE", Subject: "Physics", Chapter: "Optics", Topic: "Lenses", Difficulty: model.Easy})
	seedQuestions(t, db, 1, model.Question{Category: "JEE", Subject: "Physics", Chapter: "Optics", Topic: "Mirrors", Difficulty: model.Easy})
	seedQuestions(t, db, 1, model.Question{Category: "JEE", Subject: "Chemistry", Chapter: "Bonding", Topic: "Ionic", Difficulty: model.Easy})
	svc := newQuestionService(t, db)
	ctx := context.Background()

	subjects, err := svc.Subjects(ctx, "JEE")
	if err != nil {
		t.Fatalf("Subjects: %v", err)
	}
	if len(subjects) != 2 || subjects[0] != "Chemistry" || subjects[1] != "Physics" {
		t.Fatalf("subjects: got=%v", subjects)
	}

	topics, err := svc.Topics(ctx, "JEE", "Optics")
	if err != nil {
		t.Fatalf("Topics: %v", err)
	}
	if len(topics) != 2 || topics[0] != "Lenses" || topics[1] != "Mirrors" {
		t.Fatalf("topics: got=%v", topics)
	}

	if _, err := svc.Chapters(ctx, "JEE", " "); util.KindOf(err) != util.KindValidation {
		t.Fatalf("chapters without subject: want validation got=%v", err)
	}
}
