package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/epitome/examportal/internal/models"
	"github.com/epitome/examportal/internal/scoring"
)

const subjectTag = "[EMIS]"

type Message struct {
	Subject string
	Text    string
	HTML    string
}

type messageData struct {
	Username    string
	FullName    string
	Subject     string
	Correct     int
	Total       int
	Score       int
	Outcome     models.Outcome
	Passed      bool
	TimeTaken   string
	SubmittedAt string
}

var (
	adminText = texttemplate.Must(texttemplate.New("admin").Parse(`Dear Epitome Administration,

This is to notify you that candidate {{.Username}} ({{.FullName}}) {{if .Passed}}has successfully completed their examination. The candidate PASSED.{{else}}has completed their examination. The candidate did not meet the pass threshold.{{end}}

- Subject: {{.Subject}}
- Score: {{.Correct}}/{{.Total}} ({{.Score}}%)
- Outcome: {{.Outcome}}
- Time Taken: {{.TimeTaken}}
- Submitted: {{.SubmittedAt}}

The rolling CSV log for today is attached (if available).

Warm regards,
EMIS Exam Portal
`))

	candidateText = texttemplate.Must(texttemplate.New("candidate").Parse(`Dear {{.FullName}},

{{if .Passed}}Congratulations on successfully completing your examination. You PASSED.{{else}}You have completed your examination. You did not meet the pass threshold this time.{{end}}

- Subject: {{.Subject}}
- Score: {{.Correct}}/{{.Total}} ({{.Score}}%)
- Outcome: {{.Outcome}}
- Time Taken: {{.TimeTaken}}
- Submitted: {{.SubmittedAt}}

Warm regards,
Epitome Model Islamic Schools (EMIS)
`))

	htmlBody = htmltemplate.Must(htmltemplate.New("body").Parse(`<div style="font-family:Inter,Arial,sans-serif;color:#111827;line-height:1.5;">
  <p>Dear {{.Greeting}},</p>
  <p>{{.Intro}} <b>{{.Verdict}}</b></p>
  <div style="margin:16px 0;padding:12px;border:1px solid #e5e7eb;border-radius:10px;">
    <div style="margin-bottom:8px">
      <span style="background:{{if .Passed}}#dcfce7{{else}}#fee2e2{{end}};color:{{if .Passed}}#16a34a{{else}}#dc2626{{end}};padding:6px 10px;border-radius:999px;font-weight:700;">{{.Outcome}}</span>
      <span style="font-weight:600">{{.Subject}}</span>
    </div>
    <div>Score: <b>{{.Correct}}/{{.Total}} ({{.Score}}%)</b></div>
    <div>Time Taken: <b>{{.TimeTaken}}</b></div>
    <div>Submitted: <b>{{.SubmittedAt}}</b></div>
  </div>
  <p>Warm regards,<br/>{{.Signature}}</p>
</div>
`))
)

type htmlData struct {
	messageData
	Greeting  string
	Intro     string
	Verdict   string
	Signature string
}

// Composer renders the admin, candidate and chat messages for a result.
type Composer struct {
	grader *scoring.Grader
}

func NewComposer(grader *scoring.Grader) *Composer {
	return &Composer{grader: grader}
}

func (c *Composer) data(r models.ExamResult) messageData {
	outcome := r.Outcome
	if outcome == "" {
		outcome = c.grader.Outcome(&r)
	}

	subject := strings.ToUpper(strings.TrimSpace(r.Subject))
	if subject == "" {
		subject = "EXAM"
	}
	fullName := r.FullName
	if fullName == "" {
		fullName = "Candidate"
	}
	submitted := r.SubmittedAt
	if submitted.IsZero() {
		submitted = time.Now()
	}

	return messageData{
		Username:    r.Username,
		FullName:    fullName,
		Subject:     subject,
		Correct:     r.Correct,
		Total:       r.Total,
		Score:       r.Score,
		Outcome:     outcome,
		Passed:      outcome == models.OutcomePass,
		TimeTaken:   scoring.FormatDuration(r.TimeTaken),
		SubmittedAt: submitted.UTC().Format("2006-01-02 15:04:05 UTC"),
	}
}

func (c *Composer) Admin(r models.ExamResult) (Message, error) {
	d := c.data(r)
	h := htmlData{
		messageData: d,
		Greeting:    "Epitome Administration",
		Intro:       fmt.Sprintf("This is to notify you that candidate %s (%s) has completed their examination.", d.Username, d.FullName),
		Verdict:     "The candidate did not meet the pass threshold.",
		Signature:   "EMIS Exam Portal",
	}
	if d.Passed {
		h.Verdict = "The candidate PASSED."
	}

	subject := fmt.Sprintf("%s Exam Completion - %s - %s (%d/%d, %s)",
		subjectTag, d.Username, d.Outcome, d.Correct, d.Total, d.Subject)
	return render(subject, adminText, d, h)
}

func (c *Composer) Candidate(r models.ExamResult) (Message, error) {
	d := c.data(r)
	h := htmlData{
		messageData: d,
		Greeting:    d.FullName,
		Intro:       "You have completed your examination.",
		Verdict:     "You did not meet the pass threshold this time.",
		Signature:   "Epitome Model Islamic Schools (EMIS)",
	}
	if d.Passed {
		h.Intro = "Congratulations on successfully completing your examination."
		h.Verdict = "You PASSED."
	}

	subject := fmt.Sprintf("%s Your Exam Result - %s (%d/%d, %s)",
		subjectTag, d.Outcome, d.Correct, d.Total, d.Subject)
	return render(subject, candidateText, d, h)
}

// Chat is the short plain summary posted to admin chats.
func (c *Composer) Chat(r models.ExamResult) string {
	d := c.data(r)
	return fmt.Sprintf("%s %s (%s)\n%s: %d/%d (%d%%) %s\nTime: %s\nSubmitted: %s",
		subjectTag, d.Username, d.FullName,
		d.Subject, d.Correct, d.Total, d.Score, d.Outcome,
		d.TimeTaken, d.SubmittedAt)
}

func render(subject string, text *texttemplate.Template, d messageData, h htmlData) (Message, error) {
	var textBuf, htmlBuf bytes.Buffer
	if err := text.Execute(&textBuf, d); err != nil {
		return Message{}, fmt.Errorf("failed to render text body: %w", err)
	}
	if err := htmlBody.Execute(&htmlBuf, h); err != nil {
		return Message{}, fmt.Errorf("failed to render html body: %w", err)
	}
	return Message{Subject: subject, Text: textBuf.String(), HTML: htmlBuf.String()}, nil
}
