package model

import (
	"strconv"
	"strings"
)

type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// Difficulties is the fixed display order of difficulty buckets.
var Difficulties = []Difficulty{Easy, Medium, Hard}

// ParseDifficulty accepts any casing; the empty string means "no filter".
func ParseDifficulty(s string) (Difficulty, bool) {
	switch Difficulty(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return "", true
	case Easy:
		return Easy, true
	case Medium:
		return Medium, true
	case Hard:
		return Hard, true
	}
	return "", false
}

// Points awarded for a first correct answer at this difficulty.
func (d Difficulty) Points() int {
	switch d {
	case Medium:
		return 2
	case Hard:
		return 3
	default:
		return 1
	}
}

// Question is a practice question from the examtracker table. Rows are written by
// the import tooling and never modified here.
// swagger:model Question
type Question struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	QuestionText  string     `gorm:"column:question;type:text" json:"question"`
	Topic         string     `gorm:"size:255;index" json:"topic"`
	Chapter       string     `gorm:"size:255;index" json:"chapter"`
	Subject       string     `gorm:"size:255;index" json:"subject"`
	Category      string     `gorm:"size:100;index" json:"category"`
	Difficulty    Difficulty `gorm:"size:10;index" json:"difficulty"`
	Year          int        `json:"year"`
	OptionA       string     `gorm:"column:option_a;type:text" json:"optionA"`
	OptionB       string     `gorm:"column:option_b;type:text" json:"optionB"`
	OptionC       string     `gorm:"column:option_c;type:text" json:"optionC"`
	OptionD       string     `gorm:"column:option_d;type:text" json:"optionD"`
	CorrectOption string     `gorm:"size:1" json:"correctOption"`
	Solution      string     `gorm:"type:text" json:"solution"`
}

func (Question) TableName() string {
	return "examtracker"
}

// Key is the question id in the string form used inside progress id sets.
func (q *Question) Key() string {
	return strconv.FormatUint(uint64(q.ID), 10)
}

// DifficultyCounts always carries all three buckets.
type DifficultyCounts struct {
	Easy   int64 `json:"easy"`
	Medium int64 `json:"medium"`
	Hard   int64 `json:"hard"`
}

func (c *DifficultyCounts) Add(d Difficulty, n int64) {
	switch d {
	case Easy:
		c.Easy += n
	case Medium:
		c.Medium += n
	case Hard:
		c.Hard += n
	}
}

func (c DifficultyCounts) Total() int64 {
	return c.Easy + c.Medium + c.Hard
}

// QuestionPage is one offset page of a filtered question listing.
type QuestionPage struct {
	Questions []Question `json:"questions"`
	Page      int        `json:"page"`
	PageSize  int        `json:"pageSize"`
	HasMore   bool       `json:"hasMore"`
}
