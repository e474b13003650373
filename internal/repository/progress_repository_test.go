package repository

import (
	"context"
	"errors"
	"exam_tracker_backend/internal/model"
	"exam_tracker_backend/pkg/database/dbtest"
	"strconv"
	"sync"
	"testing"

	"gorm.io/datatypes"
)

func TestApplyCreatesThenUpdatesOneRow(t *testing.T) {
	repo := NewProgressRepository(dbtest.NewTestDB(t))
	ctx := context.Background()
	key := model.ProgressKey{UserID: "u1", Area: "JEE", Topic: "Lenses"}

	for _, id := range []string{"1", "2"} {
		id := id
		if _, err := repo.Apply(ctx, key, func(rec *model.ProgressRecord) error {
			rec.MarkAnswered(id, true, 2)
			return nil
		}); err != nil {
			t.Fatalf("Apply: %v", err)
		}
	}

	var rows int64
	repo.DB.Model(&model.ProgressRecord{}).Count(&rows)
	rec, err := repo.FindByKey(ctx, key)
	if err != nil {
		t.Fatalf("FindByKey: %v", err)
	}
	if rows != 1 || rec.Points != 4 || len(rec.CompletedIDs) != 2 {
		t.Fatalf("rows=%d record=%+v", rows, rec)
	}
}

func TestApplyOnRowWrittenElsewhere(t *testing.T) {
	repo := NewProgressRepository(dbtest.NewTestDB(t))
	ctx := context.Background()
	key := model.ProgressKey{UserID: "u1", Area: "JEE", Topic: "Lenses"}

	// another writer created the row first
	existing := model.NewProgressRecord(key)
	existing.CompletedIDs = datatypes.JSONSlice[string]{"9"}
	existing.Points = 3
	if err := repo.DB.Create(existing).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec, err := repo.Apply(ctx, key, func(rec *model.ProgressRecord) error {
		rec.MarkAnswered("1", true, 1)
		return nil
	})
	if err != nil {
		t.Fatalf("Apply on existing row: %v", err)
	}
	if rec.Points != 4 || len(rec.CompletedIDs) != 2 {
		t.Fatalf("record: %+v", rec)
	}
}

func TestApplyConcurrentFirstWrites(t *testing.T) {
	repo := NewProgressRepository(dbtest.NewTestDB(t))
	ctx := context.Background()
	key := model.ProgressKey{UserID: "u1", Area: "JEE", Topic: "Lenses"}

	var wg sync.WaitGroup
	for i := 1; i <= 8; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := repo.Apply(ctx, key, func(rec *model.ProgressRecord) error {
				rec.MarkAnswered(id, true, 1)
				return nil
			}); err != nil {
				t.Errorf("Apply %s: %v", id, err)
			}
		}(strconv.Itoa(i))
	}
	wg.Wait()

	rec, err := repo.FindByKey(ctx, key)
	if err != nil {
		t.Fatalf("FindByKey: %v", err)
	}
	if len(rec.CompletedIDs) != 8 || rec.Points != 8 {
		t.Fatalf("lost writes: %+v", rec)
	}
}

func TestApplyRollsBackOnMutateError(t *testing.T) {
	repo := NewProgressRepository(dbtest.NewTestDB(t))
	ctx := context.Background()
	key := model.ProgressKey{UserID: "u1", Area: "JEE", Topic: "Lenses"}

	boom := errors.New("boom")
	if _, err := repo.Apply(ctx, key, func(*model.ProgressRecord) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("want boom, got=%v", err)
	}
	rec, err := repo.FindByKey(ctx, key)
	if err != nil || rec != nil {
		t.Fatalf("placeholder row survived rollback: rec=%+v err=%v", rec, err)
	}
}
