package model

import (
	"gorm.io/datatypes"
)

type MockTestMode string

const (
	MockTestManual MockTestMode = "manual"
	MockTestAuto   MockTestMode = "auto"
)

// MockTest is the header row of a composed test.
// swagger:model MockTest
type MockTest struct {
	UUIDBase
	Name            string         `gorm:"size:255;not null" json:"name"`
	Description     string         `gorm:"type:text" json:"description"`
	Category        string         `gorm:"size:100;index" json:"category"`
	DurationMinutes int            `gorm:"default:0" json:"durationMinutes"`
	Mode            MockTestMode   `gorm:"size:10;not null" json:"mode"`
	Distribution    datatypes.JSON `json:"distribution"`
	TotalQuestions  int            `json:"totalQuestions"`
	CreatedBy       string         `gorm:"size:36" json:"createdBy"`
}

func (MockTest) TableName() string {
	return "mock_tests"
}

// MockTestQuestion snapshots a question's content at the moment the test was composed,
// so later edits to the question bank do not change an existing test.
// swagger:model MockTestQuestion
type MockTestQuestion struct {
	UUIDBase
	MockTestID    string     `gorm:"type:varchar(36);index;not null" json:"mockTestId"`
	QuestionID    uint       `gorm:"index" json:"questionId"`
	Position      int        `gorm:"not null" json:"position"`
	QuestionText  string     `gorm:"column:question;type:text" json:"question"`
	Subject       string     `gorm:"size:255" json:"subject"`
	Topic         string     `gorm:"size:255" json:"topic"`
	Difficulty    Difficulty `gorm:"size:10" json:"difficulty"`
	OptionA       string     `gorm:"column:option_a;type:text" json:"optionA"`
	OptionB       string     `gorm:"column:option_b;type:text" json:"optionB"`
	OptionC       string     `gorm:"column:option_c;type:text" json:"optionC"`
	OptionD       string     `gorm:"column:option_d;type:text" json:"optionD"`
	CorrectOption string     `gorm:"size:1" json:"correctOption"`
	Solution      string     `gorm:"type:text" json:"solution"`
}

func (MockTestQuestion) TableName() string {
	return "mock_test_questions"
}

// SnapshotQuestion copies q into a test row at position.
func SnapshotQuestion(testID string, position int, q *Question) MockTestQuestion {
	return MockTestQuestion{
		MockTestID:    testID,
		QuestionID:    q.ID,
		Position:      position,
		QuestionText:  q.QuestionText,
		Subject:       q.Subject,
		Topic:         q.Topic,
		Difficulty:    q.Difficulty,
		OptionA:       q.OptionA,
		OptionB:       q.OptionB,
		OptionC:       q.OptionC,
		OptionD:       q.OptionD,
		CorrectOption: q.CorrectOption,
		Solution:      q.Solution,
	}
}

// SubjectWeight is one entry of an auto-composition distribution.
type SubjectWeight struct {
	Subject string  `json:"subject"`
	Weight  float64 `json:"weight"`
	Count   int     `json:"count"`
}
