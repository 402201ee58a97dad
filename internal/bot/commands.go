package bot

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/olekukonko/tablewriter"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/epitome/examportal/internal/models"
)

const (
	publicHelp = `Available commands:
/chatid - Show this chat's id for notification setup
/help - Show this message`

	adminHelp = `Available commands:
/generate <count> [prefix] [password_length] - Generate candidate credentials
/credentials - List all credentials with their issued flag
/issued <username> [username...] - Mark credentials as issued
/results [limit] - Latest exam results
/latest <username> - Latest result of one candidate
/chatid - Show this chat's id for notification setup
/help - Show this message

Examples:
/generate 10 cand 5
/issued cand01 cand02
/results 20`

	maxGenerate = 100
)

type commandHandler func(context.Context, *tgbotapi.Message) error

func (b *Bot) routePublicCommands(cmd string) (commandHandler, bool) {
	commands := map[string]commandHandler{
		"start":  b.handleStart,
		"help":   b.handleHelp,
		"chatid": b.handleChatID,
	}
	handler, found := commands[cmd]
	return handler, found
}

func (b *Bot) routeAdminCommands(cmd string) (commandHandler, bool) {
	commands := map[string]commandHandler{
		"generate":    b.handleGenerate,
		"credentials": b.handleCredentials,
		"issued":      b.handleIssued,
		"results":     b.handleResults,
		"latest":      b.handleLatest,
	}
	handler, found := commands[cmd]
	return handler, found
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if !msg.IsCommand() {
		b.sendHelp(msg.Chat.ID)
		return
	}

	cmd := msg.Command()

	if handler, ok := b.routePublicCommands(cmd); ok {
		b.run(ctx, handler, msg)
		return
	}

	if msg.From != nil && b.admins[msg.From.ID] {
		if handler, ok := b.routeAdminCommands(cmd); ok {
			b.run(ctx, handler, msg)
			return
		}
	}

	b.sendHelp(msg.Chat.ID)
}

func (b *Bot) run(ctx context.Context, handler commandHandler, msg *tgbotapi.Message) {
	if err := handler(ctx, msg); err != nil {
		logger.Error.Printf("Command error: %v", err)
		b.sendMessage(msg.Chat.ID, fmt.Sprintf("Error: %v", err))
	}
}

func (b *Bot) isAdmin(msg *tgbotapi.Message) bool {
	return msg.From != nil && b.admins[msg.From.ID]
}

func (b *Bot) handleHelp(ctx context.Context, msg *tgbotapi.Message) error {
	text := publicHelp
	if b.isAdmin(msg) {
		text = adminHelp
	}
	return b.sendMessage(msg.Chat.ID, text)
}

func (b *Bot) sendHelp(chatID int64) error {
	return b.sendMessage(chatID, "Use commands to talk to the bot. Send /help for the list.")
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	text := "Hi! I am the EMIS exam portal bot.\n\n"
	if b.isAdmin(msg) {
		text += "You are an administrator. Use /help for the list of commands."
	} else {
		text += "Only administrators can manage the portal from here."
	}
	return b.sendMessage(msg.Chat.ID, text)
}

func (b *Bot) handleChatID(ctx context.Context, msg *tgbotapi.Message) error {
	return b.sendMessage(msg.Chat.ID, fmt.Sprintf("Chat id: %d", msg.Chat.ID))
}

func (b *Bot) handleGenerate(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) < 1 {
		return fmt.Errorf("usage: /generate <count> [prefix] [password_length]")
	}

	count, err := strconv.Atoi(args[0])
	if err != nil || count < 1 || count > maxGenerate {
		return fmt.Errorf("count must be a number between 1 and %d", maxGenerate)
	}
	prefix := ""
	if len(args) > 1 {
		prefix = args[1]
	}
	length := 0
	if len(args) > 2 {
		if length, err = strconv.Atoi(args[2]); err != nil {
			return fmt.Errorf("invalid password length: %v", err)
		}
	}

	created, err := b.portal.GenerateCredentials(ctx, count, prefix, length)
	if len(created) > 0 {
		rows := make([][]string, 0, len(created))
		for _, c := range created {
			rows = append(rows, []string{c.Username, c.Password})
		}
		if sendErr := b.sendTable(msg.Chat.ID, fmt.Sprintf("Generated %d credentials", len(created)),
			[]string{"Username", "Password"}, rows); sendErr != nil {
			return sendErr
		}
	}
	if err != nil {
		return fmt.Errorf("generation stopped after %d credentials: %v", len(created), err)
	}
	return nil
}

func (b *Bot) handleCredentials(ctx context.Context, msg *tgbotapi.Message) error {
	candidates, err := b.portal.ListCredentials(ctx)
	if err != nil {
		return fmt.Errorf("failed to list credentials: %v", err)
	}

	if len(candidates) == 0 {
		return b.sendMessage(msg.Chat.ID, "No credentials generated yet")
	}

	pending := 0
	rows := make([][]string, 0, len(candidates))
	for _, c := range candidates {
		issued := "yes"
		if !c.Issued {
			issued = "no"
			pending++
		}
		rows = append(rows, []string{c.Username, c.Password, issued})
	}

	return b.sendTable(msg.Chat.ID, fmt.Sprintf("%d credentials, %d not issued", len(candidates), pending),
		[]string{"Username", "Password", "Issued"}, rows)
}

func (b *Bot) handleIssued(ctx context.Context, msg *tgbotapi.Message) error {
	usernames := strings.Fields(msg.CommandArguments())
	if len(usernames) == 0 {
		return fmt.Errorf("usage: /issued <username> [username...]")
	}

	if !b.portal.MarkIssued(ctx, usernames) {
		return fmt.Errorf("could not mark credentials as issued")
	}
	return b.sendMessage(msg.Chat.ID, fmt.Sprintf("✅ Marked as issued: %s", strings.Join(usernames, ", ")))
}

func (b *Bot) handleResults(ctx context.Context, msg *tgbotapi.Message) error {
	limit := 10
	if arg := strings.TrimSpace(msg.CommandArguments()); arg != "" {
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			return fmt.Errorf("limit must be a positive number")
		}
		limit = n
	}

	results, err := b.portal.ListResults(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list results: %v", err)
	}
	if len(results) == 0 {
		return b.sendMessage(msg.Chat.ID, "No exam results yet")
	}

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			r.Username,
			strings.ToUpper(r.Subject),
			fmt.Sprintf("%d/%d", r.Correct, r.Total),
			string(r.Outcome),
			r.SubmittedAt.UTC().Format("Jan 02 15:04"),
		})
	}
	return b.sendTable(msg.Chat.ID, fmt.Sprintf("Latest %d results", len(results)),
		[]string{"User", "Subject", "Correct", "Outcome", "Submitted"}, rows)
}

func (b *Bot) handleLatest(ctx context.Context, msg *tgbotapi.Message) error {
	username := strings.TrimSpace(msg.CommandArguments())
	if username == "" {
		return fmt.Errorf("usage: /latest <username>")
	}

	r, err := b.portal.LatestResultFor(ctx, username)
	if err != nil {
		return fmt.Errorf("failed to fetch result for %s: %v", username, err)
	}
	if r == nil {
		return b.sendMessage(msg.Chat.ID, fmt.Sprintf("No result for %s", username))
	}

	return b.sendMessage(msg.Chat.ID, formatResult(r))
}

func formatResult(r *models.ExamResult) string {
	return fmt.Sprintf("📝 %s (%s)\n"+
		"Subject: %s\n"+
		"Score: %d/%d (%d%%) %s\n"+
		"Answered: %d, time: %ds\n"+
		"Status: %s\n"+
		"📅 %s UTC",
		r.Username, r.FullName,
		strings.ToUpper(r.Subject),
		r.Correct, r.Total, r.Score, r.Outcome,
		r.Answered, r.TimeTaken,
		r.Status,
		r.SubmittedAt.UTC().Format(time.DateTime),
	)
}

func renderTable(header []string, rows [][]string) string {
	var buf strings.Builder
	table := tablewriter.NewWriter(&buf)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.AppendBulk(rows)
	table.Render()
	return buf.String()
}

func (b *Bot) sendTable(chatID int64, title string, header []string, rows [][]string) error {
	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("%s\n<pre>%s</pre>",
		html.EscapeString(title), html.EscapeString(renderTable(header, rows))))
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := b.api.Send(msg)
	return err
}
