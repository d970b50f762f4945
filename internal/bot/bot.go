package bot

import (
	"context"
	"fmt"
	"html"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"taskchat/internal/agent"
	"taskchat/internal/apperr"
	"taskchat/internal/model"
	"taskchat/internal/repository"
	"taskchat/internal/service"
)

const (
	cbCompletePrefix        = "complete:"
	cbDeletePrefix          = "delete:"
	cbConfirmCompletePrefix = "confirm:"
	cbConfirmDeletePrefix   = "confirmdel:"
	cbCancelPrefix          = "cancel:"
)

const (
	btnConfirm       = "✅ Confirm"
	btnCancel        = "↩️ Cancel"
	iconDefault      = "🟢"
	iconStale        = "⏳"
	iconTool         = "🔧"
	iconToolError    = "⚠️"
	menuLabelTasks   = "📋 Tasks"
	menuLabelNewChat = "🆕 New chat"
	menuLabelReport  = "📊 Report"
	menuLabelHelp    = "ℹ️ Help"
)

// maxReplyRunes keeps replies under Telegram's 4096 character message limit
// once the tool lines are added.
const maxReplyRunes = 3500

// TurnHandler runs one conversation turn.
type TurnHandler interface {
	HandleTurn(ctx context.Context, request agent.TurnRequest) (*agent.TurnResult, error)
}

// botAPI is the part of *tgbotapi.BotAPI the bot uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot aggregates Telegram API with services.
type Bot struct {
	api         botAPI
	turns       TurnHandler
	userRepo    *repository.UserRepository
	taskSvc     *service.TaskService
	reminderSvc *service.ReminderService
}

func New(token string, turns TurnHandler, userRepo *repository.UserRepository, taskSvc *service.TaskService, reminderSvc *service.ReminderService) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("[info] bot authorized on account %s", api.Self.UserName)

	return newBot(api, turns, userRepo, taskSvc, reminderSvc), nil
}

func newBot(api botAPI, turns TurnHandler, userRepo *repository.UserRepository, taskSvc *service.TaskService, reminderSvc *service.ReminderService) *Bot {
	return &Bot{
		api:         api,
		turns:       turns,
		userRepo:    userRepo,
		taskSvc:     taskSvc,
		reminderSvc: reminderSvc,
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	log.Println("[info] start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				log.Printf("[error] handle callback: %v", err)
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				log.Printf("[error] handle message: %v", err)
			}
		}
	}

	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if msg.IsCommand() {
		log.Printf("[info] command from %d: /%s %s", msg.From.ID, msg.Command(), msg.CommandArguments())
		return b.handleCommand(ctx, msg)
	}

	if handled, err := b.handleMenuAlias(ctx, msg); handled {
		return err
	}

	if strings.TrimSpace(msg.Text) == "" {
		return b.sendText(msg.Chat.ID, "I can only read text messages. Tell me what to add, finish or change.")
	}
	return b.handleChat(ctx, msg)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "new":
		return b.handleNewConversation(ctx, msg)
	case "tasks":
		return b.handleListTasks(ctx, msg)
	case "done":
		return b.handleDone(ctx, msg)
	case "delete":
		return b.handleDelete(ctx, msg)
	case "report":
		return b.handleReport(ctx, msg)
	default:
		return b.sendText(msg.Chat.ID, "I don't know that command. See /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}

	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "there"
	}

	text := fmt.Sprintf(
		"👋 Hi, %s!\n<b>I keep your todo list. Just write to me in plain words:</b>\n"+
			"<i>Add a task to buy groceries</i>, <i>What do I need to do?</i>, <i>I finished the laundry</i>.\n\n%s",
		escape(name), helpText,
	)
	return b.sendText(msg.Chat.ID, text)
}

const helpText = "ℹ️ <b>Commands</b>\n" +
	"• /tasks - open tasks with buttons to finish them\n" +
	"• /done &lt;id&gt; - mark a task done (e.g. /done 3)\n" +
	"• /delete &lt;id&gt; - delete a task\n" +
	"• /new - start a fresh conversation\n" +
	"• /report - the daily report right now\n" +
	"• /help - this message"

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	return b.sendText(msg.Chat.ID, helpText)
}

func (b *Bot) handleNewConversation(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	if err := b.userRepo.SetConversation(ctx, user, nil); err != nil {
		return err
	}
	log.Printf("[info] conversation reset user=%s", user.ExternalID)
	return b.sendText(msg.Chat.ID, "🆕 Started a new conversation. What's next?")
}

// handleChat forwards free text to the assistant, continuing the user's
// current conversation.
func (b *Bot) handleChat(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	if _, err := b.api.Request(tgbotapi.NewChatAction(msg.Chat.ID, tgbotapi.ChatTyping)); err != nil {
		log.Printf("[warn] chat action: %v", err)
	}

	result, err := b.turns.HandleTurn(ctx, agent.TurnRequest{
		UserID:         user.ExternalID,
		ConversationID: user.ConversationID,
		Message:        msg.Text,
	})
	if err != nil && user.ConversationID != nil && apperr.IsKind(err, apperr.NotFound) {
		// The stored conversation is gone; start over instead of failing forever.
		if err := b.userRepo.SetConversation(ctx, user, nil); err != nil {
			return err
		}
		result, err = b.turns.HandleTurn(ctx, agent.TurnRequest{UserID: user.ExternalID, Message: msg.Text})
	}
	if err != nil {
		log.Printf("[warn] chat turn user=%s: %v", user.ExternalID, err)
		return b.sendText(msg.Chat.ID, errorReply(err))
	}

	if user.ConversationID == nil || *user.ConversationID != result.ConversationID {
		id := result.ConversationID
		if err := b.userRepo.SetConversation(ctx, user, &id); err != nil {
			return err
		}
	}
	return b.sendText(msg.Chat.ID, formatTurnReply(result))
}

func (b *Bot) handleListTasks(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	log.Printf("[info] list tasks for user=%s", user.ExternalID)
	return b.sendTaskList(ctx, msg.Chat.ID, user)
}

func (b *Bot) handleDone(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, ok := commandTaskID(msg)
	if !ok {
		return b.sendText(msg.Chat.ID, "Give me the task number: /done 12")
	}
	return b.completeTaskAndRefresh(ctx, msg.Chat.ID, msg.From, taskID)
}

func (b *Bot) handleDelete(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, ok := commandTaskID(msg)
	if !ok {
		return b.sendText(msg.Chat.ID, "Give me the task number: /delete 12")
	}
	return b.askConfirmation(ctx, msg.Chat.ID, msg.From, taskID, cbConfirmDeletePrefix, "🗑 Delete task «%s»?")
}

func (b *Bot) handleReport(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	text, err := b.reminderSvc.DailySummary(ctx, *user, time.Now())
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not build the report: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	switch text {
	case strings.ToLower(menuLabelTasks):
		return true, b.handleListTasks(ctx, msg)
	case strings.ToLower(menuLabelNewChat):
		return true, b.handleNewConversation(ctx, msg)
	case strings.ToLower(menuLabelReport):
		return true, b.handleReport(ctx, msg)
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}

	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Printf("[warn] callback ack: %v", err)
	}

	data := cb.Data
	chatID := cb.Message.Chat.ID
	log.Printf("[info] callback user=%d data=%s", cb.From.ID, data)

	switch {
	case strings.HasPrefix(data, cbCompletePrefix):
		taskID, err := parseTaskID(data, cbCompletePrefix)
		if err != nil {
			return nil
		}
		return b.askConfirmation(ctx, chatID, cb.From, taskID, cbConfirmCompletePrefix, "✅ Mark task «%s» as done?")
	case strings.HasPrefix(data, cbDeletePrefix):
		taskID, err := parseTaskID(data, cbDeletePrefix)
		if err != nil {
			return nil
		}
		return b.askConfirmation(ctx, chatID, cb.From, taskID, cbConfirmDeletePrefix, "🗑 Delete task «%s»?")
	case strings.HasPrefix(data, cbConfirmCompletePrefix):
		taskID, err := parseTaskID(data, cbConfirmCompletePrefix)
		if err != nil {
			return nil
		}
		return b.completeTaskAndRefresh(ctx, chatID, cb.From, taskID)
	case strings.HasPrefix(data, cbConfirmDeletePrefix):
		taskID, err := parseTaskID(data, cbConfirmDeletePrefix)
		if err != nil {
			return nil
		}
		return b.deleteTaskAndRefresh(ctx, chatID, cb.From, taskID)
	case strings.HasPrefix(data, cbCancelPrefix):
		return b.sendText(chatID, "↩️ Okay, left it as it was.")
	default:
		return nil
	}
}

// askConfirmation shows the task with confirm and cancel buttons. prompt is a
// format string taking the escaped title.
func (b *Bot) askConfirmation(ctx context.Context, chatID int64, from *tgbotapi.User, taskID uint, confirmPrefix, prompt string) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}
	task, err := b.taskSvc.GetTask(ctx, user.ExternalID, taskID)
	if err != nil {
		return b.sendText(chatID, taskErrorReply(err))
	}

	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf(prompt, escape(normalizeTitle(task.Title))))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = confirmKeyboard(confirmPrefix, task.ID)
	_, err = b.api.Send(msg)
	return err
}

func (b *Bot) completeTaskAndRefresh(ctx context.Context, chatID int64, from *tgbotapi.User, taskID uint) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}

	task, err := b.taskSvc.GetTask(ctx, user.ExternalID, taskID)
	if err != nil {
		return b.sendText(chatID, taskErrorReply(err))
	}
	if task.Completed {
		return b.sendText(chatID, "That task is already done.")
	}

	task, err = b.taskSvc.CompleteTask(ctx, user.ExternalID, taskID)
	if err != nil {
		return b.sendText(chatID, taskErrorReply(err))
	}

	log.Printf("[info] task completed id=%d user=%s", task.ID, user.ExternalID)
	if err := b.sendText(chatID, fmt.Sprintf("✅ Task «%s» is done.", escape(normalizeTitle(task.Title)))); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID, user)
}

func (b *Bot) deleteTaskAndRefresh(ctx context.Context, chatID int64, from *tgbotapi.User, taskID uint) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}

	task, err := b.taskSvc.DeleteTask(ctx, user.ExternalID, taskID)
	if err != nil {
		return b.sendText(chatID, taskErrorReply(err))
	}

	log.Printf("[info] task deleted id=%d user=%s", task.ID, user.ExternalID)
	if err := b.sendText(chatID, fmt.Sprintf("🗑 Task «%s» deleted.", escape(normalizeTitle(task.Title)))); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID, user)
}

func (b *Bot) sendTaskList(ctx context.Context, chatID int64, user *model.User) error {
	tasks, err := b.taskSvc.ListTasks(ctx, user.ExternalID, model.StatusPending)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Could not load tasks: %s", escape(err.Error())))
	}
	if len(tasks) == 0 {
		return b.sendText(chatID, "You have no open tasks. Just tell me what to add!")
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].ID < tasks[j].ID
	})

	now := time.Now()
	var builder strings.Builder
	builder.WriteString("📋 <b>Open tasks</b>\n")
	builder.WriteString("Tap a button to finish or delete a task.\n\n")

	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, task := range tasks {
		builder.WriteString(formatTask(task, now))
		buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("✅ #%d · %s", task.ID, shortTitle(task.Title, 24)), fmt.Sprintf("%s%d", cbCompletePrefix, task.ID)),
			tgbotapi.NewInlineKeyboardButtonData("🗑", fmt.Sprintf("%s%d", cbDeletePrefix, task.ID)),
		))
	}

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err = b.api.Send(msg)
	return err
}

// SendDailyReports sends a summary to every known user.
func (b *Bot) SendDailyReports(ctx context.Context) error {
	users, err := b.userRepo.ListAll(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	for _, user := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		text, err := b.reminderSvc.DailySummary(ctx, user, now)
		if err != nil {
			log.Printf("[warn] build summary for user %d: %v", user.TelegramID, err)
			continue
		}
		if err := b.sendText(user.TelegramID, text); err != nil {
			log.Printf("[warn] send summary to %d: %v", user.TelegramID, err)
		}
	}
	return nil
}

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (*model.User, error) {
	return b.userRepo.UpsertFromTelegram(ctx, from.ID, from.FirstName, from.LastName, from.UserName)
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

// formatTurnReply renders the assistant reply followed by one line per tool call.
func formatTurnReply(result *agent.TurnResult) string {
	var builder strings.Builder
	builder.WriteString(escape(shortText(result.Response, maxReplyRunes)))
	if len(result.ToolCalls) > 0 {
		builder.WriteString("\n")
	}
	for _, call := range result.ToolCalls {
		builder.WriteString("\n")
		builder.WriteString(toolLine(call))
	}
	return builder.String()
}

func toolLine(call agent.ToolCallRecord) string {
	switch result := call.Result.(type) {
	case agent.TaskResult:
		return fmt.Sprintf("%s <code>%s</code> → %s #%d %s", iconTool, call.Tool, result.Status, result.TaskID, escape(shortTitle(result.Title, 40)))
	case agent.ListResult:
		return fmt.Sprintf("%s <code>%s</code> → %d %s", iconTool, call.Tool, result.Count, result.StatusFilter)
	case agent.ErrorResult:
		return fmt.Sprintf("%s <code>%s</code> → %s", iconToolError, call.Tool, escape(result.Error))
	default:
		return fmt.Sprintf("%s <code>%s</code>", iconTool, call.Tool)
	}
}

func errorReply(err error) string {
	switch apperr.KindOf(err) {
	case apperr.Validation:
		return "⚠️ " + escape(apperr.MessageOf(err))
	case apperr.Upstream:
		return "😕 The assistant is not available right now. Your message was saved, please try again in a moment."
	case apperr.Forbidden, apperr.NotFound:
		return "⚠️ That conversation is not available. Send /new to start a fresh one."
	default:
		return "😕 Something went wrong. Please try again."
	}
}

func taskErrorReply(err error) string {
	if apperr.IsKind(err, apperr.NotFound) {
		return "Task not found or already deleted."
	}
	return fmt.Sprintf("Error: %s", escape(apperr.MessageOf(err)))
}

func confirmKeyboard(confirmPrefix string, taskID uint) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(btnConfirm, fmt.Sprintf("%s%d", confirmPrefix, taskID)),
			tgbotapi.NewInlineKeyboardButtonData(btnCancel, fmt.Sprintf("%s%d", cbCancelPrefix, taskID)),
		),
	)
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelTasks),
			tgbotapi.NewKeyboardButton(menuLabelNewChat),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelReport),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}

func commandTaskID(msg *tgbotapi.Message) (uint, bool) {
	args := strings.TrimPrefix(strings.TrimSpace(msg.CommandArguments()), "#")
	taskID, err := strconv.ParseUint(args, 10, 32)
	if err != nil || taskID == 0 {
		return 0, false
	}
	return uint(taskID), true
}

func parseTaskID(data, prefix string) (uint, error) {
	raw := strings.TrimPrefix(data, prefix)
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(value), nil
}

func formatTask(task model.Task, now time.Time) string {
	var sb strings.Builder

	icon := iconDefault
	if now.Sub(task.CreatedAt) > 7*24*time.Hour {
		icon = iconStale
	}
	sb.WriteString(fmt.Sprintf("%s <b>#%d</b> %s", icon, task.ID, escape(normalizeTitle(task.Title))))
	if desc := strings.TrimSpace(task.Description); desc != "" {
		sb.WriteString(fmt.Sprintf("\n   📝 %s", escape(desc)))
	}
	sb.WriteByte('\n')
	return sb.String()
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	clean = normalizeTitle(clean)
	return shortText(clean, maxLen)
}

func shortText(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func escape(s string) string {
	return html.EscapeString(s)
}

func normalizeTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
