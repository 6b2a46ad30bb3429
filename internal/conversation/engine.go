// Package conversation runs the per-principal dialogue: menus, the join
// and task wizards, and the notifications their completions trigger.
// Events for one principal are handled strictly in order; different
// principals never block each other.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"foxfamily/internal/notify"
	"foxfamily/internal/service"
	"foxfamily/internal/transport"
	"foxfamily/internal/utils"
)

// Engine turns transport events into service calls and replies.
type Engine struct {
	families *service.FamilyService
	tasks    *service.TaskService
	notifier *notify.Notifier
	sender   transport.Sender
	sessions *sessions
	log      *zap.Logger
}

// New creates a conversation engine.
func New(families *service.FamilyService, tasks *service.TaskService, notifier *notify.Notifier, sender transport.Sender, logger *zap.Logger) *Engine {
	return &Engine{
		families: families,
		tasks:    tasks,
		notifier: notifier,
		sender:   sender,
		sessions: newSessions(),
		log:      logger,
	}
}

// HandleEvent processes one inbound event. Cancel works from any state and
// discards whatever wizard was in flight.
func (e *Engine) HandleEvent(ctx context.Context, ev transport.Event) error {
	sess := e.sessions.get(ev.Principal)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	text := strings.TrimSpace(ev.Text)
	if ev.Option == optCancel || strings.EqualFold(text, "cancel") || text == "/cancel" {
		sess.reset()
		return e.showMenu(ctx, ev.Principal, "Cancelled.")
	}

	if sess.step != stepNone {
		return e.handleStep(ctx, ev, sess)
	}
	return e.handleMenu(ctx, ev, sess)
}

// handleMenu interprets input while no wizard is active.
func (e *Engine) handleMenu(ctx context.Context, ev transport.Event, sess *session) error {
	p := ev.Principal
	text := strings.TrimSpace(ev.Text)

	switch {
	case ev.Option == optCreateFamily:
		fam, key, err := e.families.CreateFamily(p)
		if err != nil {
			return e.fail(ctx, p, err)
		}
		msg := fmt.Sprintf("%s created! Share this invite key (valid 10 minutes):\n\n%s\n\nYou can rename the family in Settings.", fam.Name, key.Value)
		return e.send(ctx, p, msg, familyMenu())

	case ev.Option == optJoinFamily:
		sess.step = stepJoinKey
		return e.send(ctx, p, "Send me the invite key.", nil)

	case ev.Option == optMyFamilies:
		return e.showFamilies(ctx, p)

	case strings.HasPrefix(ev.Option, prefixSwitch):
		fam, err := e.families.SwitchFamily(p, strings.TrimPrefix(ev.Option, prefixSwitch))
		if err != nil {
			return e.fail(ctx, p, err)
		}
		return e.send(ctx, p, fmt.Sprintf("Switched to %s.", fam.Name), familyMenu())

	case ev.Option == optSetEmail:
		sess.step = stepNotifyEmail
		return e.send(ctx, p, "Send me the email address for notification copies.", nil)

	case ev.Option == optNewTask:
		if _, err := e.families.CurrentFamily(p); err != nil {
			return e.fail(ctx, p, err)
		}
		sess.step = stepTaskType
		return e.send(ctx, p, "What kind of task?", taskTypeMenu())

	case ev.Option == optTasks:
		return e.showTasks(ctx, p)

	case strings.HasPrefix(ev.Option, prefixTask):
		return e.showTask(ctx, p, strings.TrimPrefix(ev.Option, prefixTask))

	case strings.HasPrefix(ev.Option, prefixItem):
		return e.checkItem(ctx, p, strings.TrimPrefix(ev.Option, prefixItem))

	case strings.HasPrefix(ev.Option, prefixProgress):
		sess.step = stepTaskProgress
		sess.scratch.taskID = strings.TrimPrefix(ev.Option, prefixProgress)
		return e.send(ctx, p, "New progress, 0-100?", nil)

	case ev.Option == optCompleted:
		done, _, err := e.tasks.ListCompleted(p)
		if err != nil {
			return e.fail(ctx, p, err)
		}
		return e.send(ctx, p, completedSummary(done), familyMenu())

	case ev.Option == optMembers:
		return e.showMembers(ctx, p)

	case ev.Option == optSettings:
		fam, err := e.families.CurrentFamily(p)
		if err != nil {
			return e.fail(ctx, p, err)
		}
		return e.send(ctx, p, fmt.Sprintf("Settings for %s:", fam.Name), settingsMenu())

	case ev.Option == optRenameFamily:
		sess.step = stepFamilyName
		return e.send(ctx, p, "New family name?", nil)

	case ev.Option == optRegenKey:
		_, key, err := e.families.RegenerateKey(p)
		if err != nil {
			return e.fail(ctx, p, err)
		}
		return e.send(ctx, p, fmt.Sprintf("New invite key (valid 10 minutes):\n\n%s", key.Value), familyMenu())

	case ev.Option == optLeaveFamily:
		fam, err := e.families.CurrentFamily(p)
		if err != nil {
			return e.fail(ctx, p, err)
		}
		sess.step = stepLeaveConfirm
		return e.send(ctx, p, fmt.Sprintf("Leave %s?", fam.Name), []transport.Option{
			{ID: optConfirmLeave, Label: "Yes, leave"},
			{ID: optCancel, Label: "Stay"},
		})

	case ev.Option == optDeleteFamily:
		fam, err := e.families.CurrentFamily(p)
		if err != nil {
			return e.fail(ctx, p, err)
		}
		sess.step = stepDeleteConfirm
		return e.send(ctx, p, fmt.Sprintf("Delete %s for everyone? This cannot be undone.", fam.Name), []transport.Option{
			{ID: optConfirmDelete, Label: "Yes, delete"},
			{ID: optCancel, Label: "Keep it"},
		})

	case ev.Option == optHelp || text == "/help":
		return e.sendWithMenu(ctx, p, helpText)

	case text == "/start":
		return e.showMenu(ctx, p, "Welcome to FoxFamily!")

	default:
		return e.showMenu(ctx, p, "")
	}
}

func (e *Engine) showFamilies(ctx context.Context, p int64) error {
	fams, current, err := e.families.UserFamilies(p)
	if err != nil {
		return e.fail(ctx, p, err)
	}
	if len(fams) == 0 {
		return e.send(ctx, p, "You're not in any family yet.", globalMenu())
	}
	var b strings.Builder
	b.WriteString("Your families:\n")
	var opts []transport.Option
	for _, fam := range fams {
		marker := "  "
		if fam.ID == current {
			marker = "▸ "
		}
		fmt.Fprintf(&b, "%s%s (%d members)\n", marker, fam.Name, len(fam.Members))
		if fam.ID != current {
			opts = append(opts, transport.Option{ID: prefixSwitch + fam.ID, Label: "Switch to " + fam.Name})
		}
	}
	opts = append(opts, transport.Option{ID: optCancel, Label: "Back to menu"})
	return e.send(ctx, p, b.String(), opts)
}

func (e *Engine) showTasks(ctx context.Context, p int64) error {
	open, fam, err := e.tasks.ListTasks(p)
	if err != nil {
		return e.fail(ctx, p, err)
	}
	if len(open) == 0 {
		return e.send(ctx, p, fmt.Sprintf("No open tasks in %s.", fam.Name), familyMenu())
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Open tasks in %s:\n", fam.Name)
	var opts []transport.Option
	for _, t := range open {
		b.WriteString(taskLine(t) + "\n")
		opts = append(opts, transport.Option{ID: prefixTask + t.ID, Label: t.Description})
	}
	opts = append(opts, transport.Option{ID: optCancel, Label: "Back to menu"})
	return e.send(ctx, p, b.String(), opts)
}

func (e *Engine) showTask(ctx context.Context, p int64, taskID string) error {
	open, _, err := e.tasks.ListTasks(p)
	if err != nil {
		return e.fail(ctx, p, err)
	}
	for _, t := range open {
		if t.ID == taskID {
			text, opts := taskDetail(t)
			return e.send(ctx, p, text, opts)
		}
	}
	return e.fail(ctx, p, service.ErrTaskNotFound)
}

func (e *Engine) showMembers(ctx context.Context, p int64) error {
	fam, err := e.families.CurrentFamily(p)
	if err != nil {
		return e.fail(ctx, p, err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Members of %s (%d):\n", fam.Name, len(fam.Members))
	for _, m := range fam.Members {
		fmt.Fprintf(&b, "  %s\n", m.Nick)
	}
	return e.send(ctx, p, b.String(), familyMenu())
}

// checkItem handles an "item:<task-id>:<index>" option.
func (e *Engine) checkItem(ctx context.Context, p int64, arg string) error {
	sep := strings.LastIndex(arg, ":")
	if sep < 0 {
		return e.showMenu(ctx, p, "")
	}
	taskID := arg[:sep]
	index, err := strconv.Atoi(arg[sep+1:])
	if err != nil {
		return e.showMenu(ctx, p, "")
	}

	res, err := e.tasks.CheckItem(p, taskID, index)
	if err != nil {
		return e.fail(ctx, p, err)
	}

	if res.Closed {
		e.notify(ctx, res.Family.ID, fmt.Sprintf("%s finished the shopping list \"%s\" 🎉", res.Nick, res.Task.Description), p)
		return e.send(ctx, p, fmt.Sprintf("That was the last item — \"%s\" is done!", res.Task.Description), familyMenu())
	}
	e.notify(ctx, res.Family.ID, fmt.Sprintf("%s bought %s (\"%s\")", res.Nick, res.Task.Items[index].Label, res.Task.Description), p)
	text, opts := taskDetail(res.Task)
	return e.send(ctx, p, text, opts)
}

// fail maps a service error to a user-facing reply. Unexpected errors are
// logged and answered generically so internals never leak into chat.
func (e *Engine) fail(ctx context.Context, p int64, err error) error {
	var ve utils.ValidationError
	switch {
	case errors.As(err, &ve):
		return e.send(ctx, p, ve.Message, nil)
	case errors.Is(err, service.ErrNoCurrentFamily):
		return e.send(ctx, p, "You're not in a family yet. Create one or join with a key.", globalMenu())
	case errors.Is(err, service.ErrNotCreator):
		return e.sendWithMenu(ctx, p, "Only the family creator can do that.")
	case errors.Is(err, service.ErrNotMember), errors.Is(err, service.ErrFamilyNotFound):
		return e.showMenu(ctx, p, "That family isn't available anymore.")
	case errors.Is(err, service.ErrTaskNotFound):
		return e.sendWithMenu(ctx, p, "That task isn't open anymore.")
	case errors.Is(err, service.ErrAlreadyChecked):
		return e.sendWithMenu(ctx, p, "Someone already bought that one.")
	case errors.Is(err, service.ErrFamilyFull):
		return e.send(ctx, p, subscriptionUpsell, nil)
	case errors.Is(err, service.ErrAlreadyMember):
		return e.sendWithMenu(ctx, p, "You're already in that family.")
	case errors.Is(err, service.ErrInvalidKey):
		return e.send(ctx, p, "That key is invalid or has expired. Ask for a fresh one.", nil)
	default:
		e.log.Error("conversation error", zap.Int64("principal", p), zap.Error(err))
		return e.sendWithMenu(ctx, p, "Something went wrong, please try again.")
	}
}

const subscriptionUpsell = "This family has reached the free limit of 25 members. " +
	"A subscription removes the limit — ask the family creator to upgrade."

// notify fans a message out to the family, logging delivery problems
// instead of failing the triggering interaction.
func (e *Engine) notify(ctx context.Context, familyID, text string, exclude ...int64) {
	if err := e.notifier.NotifyFamily(ctx, familyID, text, exclude...); err != nil {
		e.log.Warn("family notification failed",
			zap.String("family", familyID),
			zap.Error(err))
	}
}

func (e *Engine) send(ctx context.Context, p int64, text string, opts []transport.Option) error {
	return e.sender.Send(ctx, p, text, opts)
}

// sendWithMenu sends text followed by the contextual menu options.
func (e *Engine) sendWithMenu(ctx context.Context, p int64, text string) error {
	if _, err := e.families.CurrentFamily(p); err == nil {
		return e.send(ctx, p, text, familyMenu())
	}
	return e.send(ctx, p, text, globalMenu())
}

// showMenu shows the contextual menu: the family menu when a current
// family is set, the global menu otherwise.
func (e *Engine) showMenu(ctx context.Context, p int64, prefix string) error {
	fam, err := e.families.CurrentFamily(p)
	if err != nil {
		return e.send(ctx, p, joinLines(prefix, "What would you like to do?"), globalMenu())
	}
	return e.send(ctx, p, joinLines(prefix, "Family: "+fam.Name), familyMenu())
}

func joinLines(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}
