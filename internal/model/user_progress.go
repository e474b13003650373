package model

import (
	"sort"
	"time"

	"gorm.io/datatypes"
)

// ProgressRecord is one user's progress on one topic inside an area (exam category).
// CompletedIDs only ever grows; CorrectIDs is always a subset of CompletedIDs.
// swagger:model ProgressRecord
type ProgressRecord struct {
	ID           uint                        `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       string                      `gorm:"size:36;not null;uniqueIndex:idx_progress_key" json:"userId"`
	Topic        string                      `gorm:"size:255;not null;uniqueIndex:idx_progress_key" json:"topic"`
	Area         string                      `gorm:"size:100;not null;uniqueIndex:idx_progress_key" json:"area"`
	CompletedIDs datatypes.JSONSlice[string] `gorm:"column:completed_ids" json:"completedIds"`
	CorrectIDs   datatypes.JSONSlice[string] `gorm:"column:correct_ids" json:"correctIds"`
	Points       int                         `gorm:"default:0" json:"points"`
	CreatedAt    time.Time                   `json:"createdAt"`
	UpdatedAt    time.Time                   `json:"updatedAt"`
}

func (ProgressRecord) TableName() string {
	return "user_progress"
}

// ProgressKey identifies a ProgressRecord.
type ProgressKey struct {
	UserID string `json:"userId"`
	Area   string `json:"area"`
	Topic  string `json:"topic"`
}

func (r *ProgressRecord) Key() ProgressKey {
	return ProgressKey{UserID: r.UserID, Area: r.Area, Topic: r.Topic}
}

// NewProgressRecord returns an empty record for key.
func NewProgressRecord(key ProgressKey) *ProgressRecord {
	return &ProgressRecord{
		UserID:       key.UserID,
		Area:         key.Area,
		Topic:        key.Topic,
		CompletedIDs: datatypes.JSONSlice[string]{},
		CorrectIDs:   datatypes.JSONSlice[string]{},
	}
}

// MarkAnswered records an answer to questionID and returns the points delta.
// A question that turns correct earns weight points; one that stops being correct
// gives them back. Points never drop below zero.
func (r *ProgressRecord) MarkAnswered(questionID string, correct bool, weight int) int {
	r.CompletedIDs = datatypes.JSONSlice[string](UnionIDs(r.CompletedIDs, []string{questionID}))

	wasCorrect := containsID(r.CorrectIDs, questionID)
	delta := 0
	switch {
	case correct && !wasCorrect:
		r.CorrectIDs = datatypes.JSONSlice[string](UnionIDs(r.CorrectIDs, []string{questionID}))
		delta = weight
	case !correct && wasCorrect:
		r.CorrectIDs = datatypes.JSONSlice[string](removeID(r.CorrectIDs, questionID))
		delta = -weight
	}

	r.Points += delta
	if r.Points < 0 {
		delta -= r.Points
		r.Points = 0
	}
	return delta
}

// Merge folds other into r. The result's completed set is a superset of both inputs.
func (r *ProgressRecord) Merge(other *ProgressRecord) {
	if other == nil {
		return
	}
	r.CompletedIDs = datatypes.JSONSlice[string](UnionIDs(r.CompletedIDs, other.CompletedIDs))
	r.CorrectIDs = datatypes.JSONSlice[string](UnionIDs(r.CorrectIDs, other.CorrectIDs))
	if other.Points > r.Points {
		r.Points = other.Points
	}
	r.Normalize()
}

// Normalize dedupes both sets and folds any correct id back into completed.
func (r *ProgressRecord) Normalize() {
	r.CorrectIDs = datatypes.JSONSlice[string](UnionIDs(r.CorrectIDs, nil))
	r.CompletedIDs = datatypes.JSONSlice[string](UnionIDs(r.CompletedIDs, r.CorrectIDs))
	if r.Points < 0 {
		r.Points = 0
	}
}

// UnionIDs returns the sorted, de-duplicated union of a and b. Empty ids are dropped.
func UnionIDs(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, id := range list {
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func removeID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// ProgressSummary is the rollup returned for a chapter or subject.
// swagger:model ProgressSummary
type ProgressSummary struct {
	CompletedCount  int     `json:"completedCount"`
	CorrectCount    int     `json:"correctCount"`
	Points          int     `json:"points"`
	TotalQuestions  int64   `json:"totalQuestions"`
	PercentComplete float64 `json:"percentComplete"`
	Accuracy        float64 `json:"accuracy"`
	Warning         string  `json:"warning,omitempty"`
}

// Finalize derives the percentage fields from the counts.
func (s *ProgressSummary) Finalize() {
	s.PercentComplete = 0
	s.Accuracy = 0
	if s.TotalQuestions > 0 {
		s.PercentComplete = roundTo(float64(s.CompletedCount)*100/float64(s.TotalQuestions), 2)
		if s.PercentComplete > 100 {
			s.PercentComplete = 100
		}
	}
	if s.CompletedCount > 0 {
		s.Accuracy = roundTo(float64(s.CorrectCount)*100/float64(s.CompletedCount), 2)
	}
}

func (s *ProgressSummary) Add(o ProgressSummary) {
	s.CompletedCount += o.CompletedCount
	s.CorrectCount += o.CorrectCount
	s.Points += o.Points
	s.TotalQuestions += o.TotalQuestions
}

// ChapterProgress pairs a chapter name with its summary inside a subject rollup.
type ChapterProgress struct {
	Chapter string          `json:"chapter"`
	Summary ProgressSummary `json:"summary"`
}

type SubjectProgress struct {
	Subject  string            `json:"subject"`
	Summary  ProgressSummary   `json:"summary"`
	Chapters []ChapterProgress `json:"chapters"`
}

// AreaProgress is one row of the dashboard.
type AreaProgress struct {
	Area           string  `json:"area"`
	Topics         int     `json:"topics"`
	CompletedCount int     `json:"completedCount"`
	CorrectCount   int     `json:"correctCount"`
	Points         int     `json:"points"`
	Accuracy       float64 `json:"accuracy"`
}

func roundTo(v float64, places int) float64 {
	p := 1.0
	for i := 0; i < places; i++ {
		p *= 10
	}
	return float64(int64(v*p+0.5)) / p
}
