// Package bot is the Telegram front end of the planner.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"task-planner/internal/model"
	"task-planner/internal/service"
)

const (
	cbCompletePrefix = "complete:"
	cbDeletePrefix   = "delete:"
)

type confirmationAction int

const (
	actionComplete confirmationAction = iota
	actionDelete
)

type confirmationRequest struct {
	taskID uint
	action confirmationAction
}

// UserStore links Telegram accounts to planner users.
type UserStore interface {
	UpsertFromTelegram(ctx context.Context, telegramID int64, firstName, lastName string) (*model.User, error)
	ListTelegramLinked(ctx context.Context) ([]model.User, error)
}

// Bot aggregates Telegram API with services.
type Bot struct {
	api           *tgbotapi.BotAPI
	users         UserStore
	categorySvc   *service.CategoryService
	taskSvc       *service.TaskService
	reminderSvc   *service.ReminderService
	loc           *time.Location
	logger        *slog.Logger
	conversations map[int64]*conversationState
	confirmations map[int64]confirmationRequest
	mu            sync.Mutex
}

func New(token string, users UserStore, categorySvc *service.CategoryService, taskSvc *service.TaskService, reminderSvc *service.ReminderService, loc *time.Location, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "bot")
	logger.Info("bot authorized", "account", api.Self.UserName)

	return &Bot{
		api:           api,
		users:         users,
		categorySvc:   categorySvc,
		taskSvc:       taskSvc,
		reminderSvc:   reminderSvc,
		loc:           loc,
		logger:        logger,
		conversations: make(map[int64]*conversationState),
		confirmations: make(map[int64]confirmationRequest),
	}, nil
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.logger.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				b.logger.Error("handle callback", "error", err)
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				b.logger.Error("handle message", "error", err)
			}
		}
	}

	return nil
}

func (b *Bot) now() time.Time {
	return time.Now().In(b.loc)
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled.")
	}

	if msg.IsCommand() {
		b.logger.Debug("command", "telegram_id", msg.From.ID, "command", msg.Command())
		return b.handleCommand(ctx, msg)
	}

	if handled, err := b.handleMenuAlias(ctx, msg); handled {
		return err
	}

	if pending, ok := b.getConfirmation(msg.From.ID); ok {
		return b.handleConfirmationResponse(ctx, msg, pending)
	}

	if state := b.getConversation(msg.From.ID); state != nil {
		return b.handleConversation(ctx, msg, state)
	}

	return b.sendText(msg.Chat.ID, "I didn't get that. Send /newtask to add a task or /help for the command list.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "report":
		return b.handleReport(ctx, msg)
	case "newtask":
		return b.startNewTaskConversation(ctx, msg)
	case "tasks":
		return b.handleListTasks(ctx, msg)
	case "complete":
		return b.handleComplete(ctx, msg)
	case "incomplete":
		return b.handleIncomplete(ctx, msg)
	case "delete":
		return b.handleDelete(ctx, msg)
	case "categories":
		return b.handleCategories(ctx, msg)
	case "cancel":
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled.")
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
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
	text := fmt.Sprintf("👋 Hi, %s!\n<b>I keep track of your tasks and repeat the recurring ones for you.</b>\n\n%s",
		escape(name), helpText)
	return b.sendText(msg.Chat.ID, text)
}

const helpText = "Commands:\n" +
	"• /newtask — add a task step by step\n" +
	"• /tasks — open tasks with quick Complete buttons\n" +
	"• /complete &lt;id&gt; — mark a task completed\n" +
	"• /incomplete &lt;id&gt; — move a completed task back to pending\n" +
	"• /delete &lt;id&gt; — delete a task\n" +
	"• /categories — your categories\n" +
	"• /report — the digest you get periodically\n" +
	"• /cancel — stop the current input"

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	return b.sendText(msg.Chat.ID, "ℹ️ <b>Help</b>\n"+helpText)
}

func (b *Bot) handleReport(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	text, err := b.reminderSvc.DailySummary(ctx, *user, b.now())
	if err != nil {
		b.logger.Error("build summary", "user_id", user.ID, "error", err)
		return b.sendText(msg.Chat.ID, userMessage(err))
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) startNewTaskConversation(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}
	b.clearConfirmation(msg.From.ID)
	state, step := newConversation()
	b.setConversation(msg.From.ID, state)
	return b.sendWithReplyMarkup(msg.Chat.ID, step.reply, step.markup)
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message, state *conversationState) error {
	step := state.advance(msg.Text, b.now(), b.loc)
	if !step.done {
		if state.stage == stageNone {
			b.clearConversation(msg.From.ID)
		}
		return b.sendWithReplyMarkup(msg.Chat.ID, step.reply, step.markup)
	}

	b.clearConversation(msg.From.ID)
	return b.finishTaskCreation(ctx, msg.From, state, msg.Chat.ID)
}

func (b *Bot) finishTaskCreation(ctx context.Context, from *tgbotapi.User, state *conversationState, chatID int64) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}

	input := state.input
	if state.category != "" {
		category, err := b.categorySvc.GetOrCreate(ctx, user, state.category)
		if err != nil {
			return b.sendText(chatID, "Could not save the task. "+userMessage(err))
		}
		input.CategoryID = &category.ID
	}

	task, err := b.taskSvc.CreateTask(ctx, user, input)
	if err != nil {
		return b.sendText(chatID, "Could not save the task. "+userMessage(err))
	}

	var summary strings.Builder
	summary.WriteString("✅ <b>Task saved</b>\n")
	summary.WriteString(fmt.Sprintf("• <b>ID:</b> %d\n", task.ID))
	summary.WriteString(fmt.Sprintf("• <b>Title:</b> %s\n", escape(task.Title)))
	if task.Description != "" {
		summary.WriteString(fmt.Sprintf("• <b>Description:</b> %s\n", escape(task.Description)))
	}
	if state.category != "" {
		summary.WriteString(fmt.Sprintf("• <b>Category:</b> %s\n", escape(state.category)))
	}
	summary.WriteString(fmt.Sprintf("• <b>Due:</b> %s\n", task.DueDate.In(b.loc).Format(dueDateLayout)))
	summary.WriteString(fmt.Sprintf("• <b>Priority:</b> %s\n", task.Priority))
	if interval, ok := task.Interval(); ok {
		summary.WriteString(fmt.Sprintf("• <b>Repeats:</b> %s\n", interval))
	}

	if err := b.sendText(chatID, strings.TrimSpace(summary.String())); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID, user)
}

func (b *Bot) handleListTasks(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	return b.sendTaskList(ctx, msg.Chat.ID, user)
}

func (b *Bot) handleComplete(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, err := parseTaskID(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Give the task id: /complete 12")
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	return b.completeTask(ctx, msg.Chat.ID, user, taskID)
}

func (b *Bot) handleIncomplete(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, err := parseTaskID(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Give the task id: /incomplete 12")
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	task, err := b.taskSvc.RevertTask(ctx, user, taskID)
	if err != nil {
		return b.sendText(msg.Chat.ID, userMessage(err))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("↩️ Task «%s» is pending again.", escape(task.Title)))
}

func (b *Bot) handleDelete(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, err := parseTaskID(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Give the task id: /delete 12")
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	return b.askConfirmation(ctx, msg.Chat.ID, msg.From.ID, user, taskID, actionDelete)
}

func (b *Bot) handleCategories(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	categories, err := b.categorySvc.List(ctx, user)
	if err != nil {
		return b.sendText(msg.Chat.ID, userMessage(err))
	}
	if len(categories) == 0 {
		return b.sendText(msg.Chat.ID, "No categories yet. Add one while creating a task.")
	}
	var builder strings.Builder
	builder.WriteString("📂 <b>Categories</b>\n")
	for _, cat := range categories {
		builder.WriteString(fmt.Sprintf("• %s\n", escape(strings.TrimSpace(cat.Name))))
	}
	return b.sendText(msg.Chat.ID, strings.TrimSpace(builder.String()))
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	switch {
	case matches(msg.Text, menuLabelNewTask):
		return true, b.startNewTaskConversation(ctx, msg)
	case matches(msg.Text, menuLabelTasks):
		return true, b.handleListTasks(ctx, msg)
	case matches(msg.Text, menuLabelCategories):
		return true, b.handleCategories(ctx, msg)
	case matches(msg.Text, menuLabelHelp):
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
}

func (b *Bot) sendTaskList(ctx context.Context, chatID int64, user *model.User) error {
	tasks, err := b.taskSvc.ListPending(ctx, user)
	if err != nil {
		return b.sendText(chatID, userMessage(err))
	}
	if len(tasks) == 0 {
		return b.sendText(chatID, "You have no open tasks. Add one with /newtask.")
	}

	categories, err := b.categorySvc.List(ctx, user)
	if err != nil {
		return b.sendText(chatID, userMessage(err))
	}
	catNames := make(map[uint]string)
	for _, cat := range categories {
		catNames[cat.ID] = cat.Name
	}

	now := b.now()
	var builder strings.Builder
	builder.WriteString("📋 <b>Open tasks</b>\n")
	builder.WriteString("Press a button to complete or delete a task.\n")

	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, group := range groupByCategory(tasks, catNames) {
		builder.WriteString(fmt.Sprintf("\n<b>%s</b>\n", escape(group.name)))
		for _, task := range group.tasks {
			builder.WriteString(service.FormatTask(task, nil, now))
			buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("✅ #%d · %s", task.ID, shortTitle(task.Title, 20)), fmt.Sprintf("%s%d", cbCompletePrefix, task.ID)),
				tgbotapi.NewInlineKeyboardButtonData("🗑", fmt.Sprintf("%s%d", cbDeletePrefix, task.ID)),
			))
		}
	}

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err = b.api.Send(msg)
	return err
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.logger.Warn("callback ack", "error", err)
	}

	var (
		action confirmationAction
		raw    string
	)
	switch {
	case strings.HasPrefix(cb.Data, cbCompletePrefix):
		action, raw = actionComplete, strings.TrimPrefix(cb.Data, cbCompletePrefix)
	case strings.HasPrefix(cb.Data, cbDeletePrefix):
		action, raw = actionDelete, strings.TrimPrefix(cb.Data, cbDeletePrefix)
	default:
		return nil
	}
	taskID, err := parseTaskID(raw)
	if err != nil {
		return nil
	}

	user, err := b.ensureUser(ctx, cb.From)
	if err != nil {
		return err
	}
	return b.askConfirmation(ctx, cb.Message.Chat.ID, cb.From.ID, user, taskID, action)
}

func (b *Bot) askConfirmation(ctx context.Context, chatID, telegramID int64, user *model.User, taskID uint, action confirmationAction) error {
	task, err := b.taskSvc.GetTask(ctx, user, taskID)
	if err != nil {
		return b.sendText(chatID, userMessage(err))
	}

	var text string
	if action == actionDelete {
		text = fmt.Sprintf("Delete task «%s» (#%d)?", escape(task.Title), task.ID)
	} else {
		if task.Status == model.StatusCompleted {
			return b.sendText(chatID, userMessage(service.ErrAlreadyCompleted))
		}
		text = fmt.Sprintf("Mark task «%s» (#%d) as completed?", escape(task.Title), task.ID)
	}
	b.setConfirmation(telegramID, confirmationRequest{taskID: task.ID, action: action})
	return b.sendWithReplyMarkup(chatID, text, confirmKeyboard())
}

func (b *Bot) handleConfirmationResponse(ctx context.Context, msg *tgbotapi.Message, req confirmationRequest) error {
	text := strings.TrimSpace(msg.Text)
	switch {
	case isConfirmInput(text):
		b.clearConfirmation(msg.From.ID)
		user, err := b.ensureUser(ctx, msg.From)
		if err != nil {
			return err
		}
		if req.action == actionDelete {
			return b.deleteTask(ctx, msg.Chat.ID, user, req.taskID)
		}
		return b.completeTask(ctx, msg.Chat.ID, user, req.taskID)
	case isCancelInput(text):
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Okay, nothing changed.")
	default:
		return b.sendWithReplyMarkup(msg.Chat.ID, "Confirm or cancel.", confirmKeyboard())
	}
}

func (b *Bot) completeTask(ctx context.Context, chatID int64, user *model.User, taskID uint) error {
	task, err := b.taskSvc.CompleteTask(ctx, user, taskID)
	if err != nil {
		return b.sendText(chatID, userMessage(err))
	}

	info := fmt.Sprintf("✅ Task «%s» completed.", escape(task.Title))
	if task.IsRecurring {
		info = fmt.Sprintf("♻️ Task «%s» completed. The next occurrence is on your list.", escape(task.Title))
	}
	if err := b.sendText(chatID, info); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID, user)
}

func (b *Bot) deleteTask(ctx context.Context, chatID int64, user *model.User, taskID uint) error {
	task, err := b.taskSvc.GetTask(ctx, user, taskID)
	if err != nil {
		return b.sendText(chatID, userMessage(err))
	}
	if err := b.taskSvc.DeleteTask(ctx, user, taskID); err != nil {
		return b.sendText(chatID, userMessage(err))
	}
	if err := b.sendText(chatID, fmt.Sprintf("🗑 Task «%s» deleted.", escape(task.Title))); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID, user)
}

// SendDailyReports sends a summary to every user linked to a Telegram chat.
func (b *Bot) SendDailyReports(ctx context.Context) error {
	users, err := b.users.ListTelegramLinked(ctx)
	if err != nil {
		return err
	}
	now := b.now()
	for _, user := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if user.TelegramID == nil {
			continue
		}
		text, err := b.reminderSvc.DailySummary(ctx, user, now)
		if err != nil {
			b.logger.Error("build summary", "user_id", user.ID, "error", err)
			continue
		}
		if err := b.sendText(*user.TelegramID, text); err != nil {
			b.logger.Error("send summary", "user_id", user.ID, "error", err)
		}
	}
	return nil
}

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (*model.User, error) {
	return b.users.UpsertFromTelegram(ctx, from.ID, from.FirstName, from.LastName)
}

func (b *Bot) sendText(chatID int64, text string) error {
	return b.sendWithReplyMarkup(chatID, text, mainMenuKeyboard())
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) getConfirmation(userID int64) (confirmationRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.confirmations[userID]
	return req, ok
}

func (b *Bot) setConfirmation(userID int64, req confirmationRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmations[userID] = req
}

func (b *Bot) clearConfirmation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.confirmations, userID)
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}
