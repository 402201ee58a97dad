package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/epitome/examportal/internal/models"
)

func TestGrader_Outcome(t *testing.T) {
	testCases := []struct {
		name     string
		correct  int
		total    int
		passFail string
		expected models.Outcome
	}{
		{name: "well above threshold", correct: 30, total: 40, expected: models.OutcomePass},
		{name: "one above threshold", correct: 21, total: 40, expected: models.OutcomePass},
		{name: "exactly on threshold", correct: 20, total: 40, expected: models.OutcomePass},
		{name: "one below threshold", correct: 19, total: 40, expected: models.OutcomeFailed},
		{name: "nothing correct", correct: 0, total: 40, expected: models.OutcomeFailed},
		{name: "override to pass", correct: 5, total: 40, passFail: "PASS", expected: models.OutcomePass},
		{name: "override to fail", correct: 35, total: 40, passFail: "FAILED", expected: models.OutcomeFailed},
		{name: "unknown override ignored", correct: 25, total: 40, passFail: "MAYBE", expected: models.OutcomePass},
	}

	grader := NewGrader(0)
	assert.Equal(t, DefaultPassThreshold, grader.PassThreshold)

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := &models.ExamResult{Correct: tc.correct, Total: tc.total, PassFail: tc.passFail}
			assert.Equal(t, tc.expected, grader.Outcome(r))
		})
	}
}

func TestGrader_CustomThreshold(t *testing.T) {
	grader := NewGrader(30)
	assert.Equal(t, models.OutcomeFailed, grader.Outcome(&models.ExamResult{Correct: 29, Total: 40}))
	assert.Equal(t, models.OutcomePass, grader.Outcome(&models.ExamResult{Correct: 30, Total: 40}))
}

func TestGrader_Summarize(t *testing.T) {
	grader := NewGrader(DefaultPassThreshold)

	s := grader.Summarize(&models.ExamResult{Correct: 30, Total: 40, Answered: 38, TimeTaken: 600})
	assert.Equal(t, Summary{
		Outcome:             models.OutcomePass,
		Skipped:             2,
		AccuracyPercent:     79,
		AvgSecondsPerAnswer: 16,
		TimeTaken:           "10m 00s",
	}, s)

	empty := grader.Summarize(&models.ExamResult{Total: 40})
	assert.Equal(t, 40, empty.Skipped)
	assert.Zero(t, empty.AccuracyPercent)
	assert.Zero(t, empty.AvgSecondsPerAnswer)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0m 00s", FormatDuration(0))
	assert.Equal(t, "1m 05s", FormatDuration(65))
	assert.Equal(t, "10m 00s", FormatDuration(600))
	assert.Equal(t, "0m 00s", FormatDuration(-3))
}
