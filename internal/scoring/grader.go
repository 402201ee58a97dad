// internal/scoring/grader.go
package scoring

import (
	"fmt"

	"github.com/epitome/examportal/internal/models"
)

// DefaultPassThreshold is the number of correct answers needed to pass the
// standard 40 question paper.
const DefaultPassThreshold = 20

type Grader struct {
	PassThreshold int `toml:"pass_threshold"`
}

func NewGrader(passThreshold int) *Grader {
	if passThreshold <= 0 {
		passThreshold = DefaultPassThreshold
	}
	return &Grader{PassThreshold: passThreshold}
}

// Outcome honours an explicit PASS/FAILED override, otherwise applies the
// threshold to the number of correct answers.
func (g *Grader) Outcome(r *models.ExamResult) models.Outcome {
	switch models.Outcome(r.PassFail) {
	case models.OutcomePass, models.OutcomeFailed:
		return models.Outcome(r.PassFail)
	}
	if r.Correct >= g.PassThreshold {
		return models.OutcomePass
	}
	return models.OutcomeFailed
}

// Summary holds the derived figures shown on the result page and in mails.
type Summary struct {
	Outcome             models.Outcome `json:"outcome"`
	Skipped             int            `json:"skipped"`
	AccuracyPercent     int            `json:"accuracy_percent"`
	AvgSecondsPerAnswer int            `json:"avg_seconds_per_answer"`
	TimeTaken           string         `json:"time_taken"`
}

func (g *Grader) Summarize(r *models.ExamResult) Summary {
	s := Summary{
		Outcome:   g.Outcome(r),
		Skipped:   r.Total - r.Answered,
		TimeTaken: FormatDuration(r.TimeTaken),
	}
	if s.Skipped < 0 {
		s.Skipped = 0
	}
	if r.Answered > 0 {
		s.AccuracyPercent = roundDiv(r.Correct*100, r.Answered)
		s.AvgSecondsPerAnswer = roundDiv(r.TimeTaken, r.Answered)
	}
	return s
}

// FormatDuration renders seconds as "10m 05s".
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%dm %02ds", seconds/60, seconds%60)
}

func roundDiv(a, b int) int {
	return (a + b/2) / b
}
