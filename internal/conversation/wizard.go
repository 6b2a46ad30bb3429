package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"foxfamily/internal/models"
	"foxfamily/internal/service"
	"foxfamily/internal/transport"
	"foxfamily/internal/utils"
)

// handleStep dispatches input to the active wizard step. Invalid input
// retries the same step in place; "back" steps to the previous question
// keeping everything answered so far.
func (e *Engine) handleStep(ctx context.Context, ev transport.Event, sess *session) error {
	switch sess.step {
	case stepJoinKey:
		return e.stepJoinKey(ctx, ev, sess)
	case stepJoinNick:
		return e.stepJoinNick(ctx, ev, sess)
	case stepNotifyEmail:
		return e.stepNotifyEmail(ctx, ev, sess)
	case stepFamilyName:
		return e.stepFamilyName(ctx, ev, sess)
	case stepTaskType:
		return e.stepTaskType(ctx, ev, sess)
	case stepTaskCategory:
		return e.stepTaskCategory(ctx, ev, sess)
	case stepTaskItems:
		return e.stepTaskItems(ctx, ev, sess)
	case stepTaskDesc:
		return e.stepTaskDesc(ctx, ev, sess)
	case stepTaskDate:
		return e.stepTaskDate(ctx, ev, sess)
	case stepTaskTime:
		return e.stepTaskTime(ctx, ev, sess)
	case stepTaskConfirm:
		return e.stepTaskConfirm(ctx, ev, sess)
	case stepTaskReminder:
		return e.stepTaskReminder(ctx, ev, sess)
	case stepTaskProgress:
		return e.stepTaskProgress(ctx, ev, sess)
	case stepLeaveConfirm:
		return e.stepLeaveConfirm(ctx, ev, sess)
	case stepDeleteConfirm:
		return e.stepDeleteConfirm(ctx, ev, sess)
	default:
		sess.reset()
		return e.showMenu(ctx, ev.Principal, "")
	}
}

func isBack(ev transport.Event) bool {
	return ev.Option == optBack || strings.EqualFold(strings.TrimSpace(ev.Text), "back")
}

func (e *Engine) stepJoinKey(ctx context.Context, ev transport.Event, sess *session) error {
	p := ev.Principal
	cand, err := e.families.FindFamilyByKey(p, ev.Text)
	switch {
	case errors.Is(err, service.ErrInvalidKey):
		return e.send(ctx, p, "That key is invalid or has expired. Try again, or type \"cancel\".", nil)
	case errors.Is(err, service.ErrAlreadyMember):
		sess.reset()
		return e.sendWithMenu(ctx, p, "You're already in that family.")
	case errors.Is(err, service.ErrFamilyFull):
		sess.reset()
		return e.send(ctx, p, subscriptionUpsell, globalMenu())
	case err != nil:
		sess.reset()
		return e.fail(ctx, p, err)
	}

	sess.scratch.joinFamilyID = cand.FamilyID
	sess.scratch.joinFamilyName = cand.FamilyName
	sess.scratch.joinNearCap = cand.NearCap
	sess.step = stepJoinNick

	msg := fmt.Sprintf("Key accepted — joining %s. What should we call you?", cand.FamilyName)
	if cand.NearCap {
		msg += fmt.Sprintf("\n(Heads up: the family is close to the %d-member free limit.)", models.MaxFreeMembers)
	}
	return e.send(ctx, p, msg, nil)
}

func (e *Engine) stepJoinNick(ctx context.Context, ev transport.Event, sess *session) error {
	p := ev.Principal
	if isBack(ev) {
		sess.step = stepJoinKey
		return e.send(ctx, p, "Send me the invite key.", nil)
	}

	fam, err := e.families.CompleteJoin(sess.scratch.joinFamilyID, p, strings.TrimSpace(ev.Text))
	switch {
	case errors.Is(err, service.ErrNicknameTaken):
		return e.send(ctx, p, "That nickname is taken in this family, pick another.", nil)
	case err != nil:
		var ve utils.ValidationError
		if errors.As(err, &ve) {
			return e.send(ctx, p, ve.Message+" Try another nickname.", nil)
		}
		sess.reset()
		return e.fail(ctx, p, err)
	}

	nick := fam.MemberNick(p)
	sess.reset()
	e.notify(ctx, fam.ID, fmt.Sprintf("%s joined %s 👋", nick, fam.Name), p)
	return e.send(ctx, p, fmt.Sprintf("Welcome to %s, %s!", fam.Name, nick), familyMenu())
}

func (e *Engine) stepNotifyEmail(ctx context.Context, ev transport.Event, sess *session) error {
	p := ev.Principal
	if err := e.families.SetEmail(p, ev.Text); err != nil {
		var ve utils.ValidationError
		if errors.As(err, &ve) {
			return e.send(ctx, p, ve.Message+" Try again, or type \"cancel\".", nil)
		}
		sess.reset()
		return e.fail(ctx, p, err)
	}
	sess.reset()
	return e.sendWithMenu(ctx, p, "Saved. Family notifications will also be mailed there.")
}

func (e *Engine) stepFamilyName(ctx context.Context, ev transport.Event, sess *session) error {
	p := ev.Principal
	fam, err := e.families.RenameFamily(p, ev.Text)
	if err != nil {
		var ve utils.ValidationError
		if errors.As(err, &ve) {
			return e.send(ctx, p, ve.Message+" Try again, or type \"cancel\".", nil)
		}
		sess.reset()
		return e.fail(ctx, p, err)
	}
	sess.reset()
	e.notify(ctx, fam.ID, fmt.Sprintf("The family is now called %s.", fam.Name), p)
	return e.send(ctx, p, fmt.Sprintf("Renamed to %s.", fam.Name), familyMenu())
}

func (e *Engine) stepTaskType(ctx context.Context, ev transport.Event, sess *session) error {
	p := ev.Principal
	tt := models.TaskType(strings.TrimPrefix(ev.Option, prefixTaskType))
	if !strings.HasPrefix(ev.Option, prefixTaskType) || !tt.Valid() {
		return e.send(ctx, p, "Pick a task type from the buttons.", taskTypeMenu())
	}

	sess.scratch.taskType = tt
	if tt == models.TaskShopping {
		sess.step = stepTaskCategory
		return e.send(ctx, p, "What kind of shopping?", categoryMenu())
	}
	sess.step = stepTaskDesc
	return e.send(ctx, p, "Describe the task (up to 200 characters).", nil)
}

func (e *Engine) stepTaskCategory(ctx context.Context, ev transport.Event, sess *session) error {
	p := ev.Principal
	if isBack(ev) {
		sess.step = stepTaskType
		return e.send(ctx, p, "What kind of task?", taskTypeMenu())
	}

	chosen := strings.TrimPrefix(ev.Option, prefixCategory)
	var label string
	for _, c := range shoppingCategories {
		if strings.EqualFold(c, chosen) {
			label = c
			break
		}
	}
	if label == "" {
		return e.send(ctx, p, "Pick a category from the buttons.", categoryMenu())
	}

	sess.scratch.category = label
	sess.scratch.description = label
	sess.step = stepTaskItems
	return e.send(ctx, p, "Send the list, one item per line. Quantity in parentheses, e.g.\nmilk (2)\nbread", nil)
}

func (e *Engine) stepTaskItems(ctx context.Context, ev transport.Event, sess *session) error {
	p := ev.Principal
	if isBack(ev) {
		sess.step = stepTaskCategory
		return e.send(ctx, p, "What kind of shopping?", categoryMenu())
	}

	items := utils.SplitItems(ev.Text)
	if len(items) == 0 {
		return e.send(ctx, p, "I need at least one item, one per line.", nil)
	}
	sess.scratch.items = items
	sess.step = stepTaskDate
	return e.askDate(ctx, p)
}

func (e *Engine) stepTaskDesc(ctx context.Context, ev transport.Event, sess *session) error {
	p := ev.Principal
	if isBack(ev) {
		sess.step = stepTaskType
		return e.send(ctx, p, "What kind of task?", taskTypeMenu())
	}

	desc := strings.TrimSpace(ev.Text)
	if err := utils.ValidateDescription(desc); err != nil {
		var ve utils.ValidationError
		if errors.As(err, &ve) {
			return e.send(ctx, p, ve.Message+" Try again.", nil)
		}
		return e.send(ctx, p, "Try a different description.", nil)
	}
	sess.scratch.description = desc
	sess.step = stepTaskDate
	return e.askDate(ctx, p)
}

func (e *Engine) askDate(ctx context.Context, p int64) error {
	return e.send(ctx, p, "When is it due? Send a date like 24.12.2026, or skip it.", []transport.Option{
		{ID: optSkipDate, Label: "No deadline"},
		{ID: optBack, Label: "Back"},
		{ID: optCancel, Label: "Cancel"},
	})
}

func (e *Engine) stepTaskDate(ctx context.Context, ev transport.Event, sess *session) error {
	p := ev.Principal
	if isBack(ev) {
		if sess.scratch.taskType == models.TaskShopping {
			sess.step = stepTaskItems
			return e.send(ctx, p, "Send the list, one item per line.", nil)
		}
		sess.step = stepTaskDesc
		return e.send(ctx, p, "Describe the task (up to 200 characters).", nil)
	}
	if ev.Option == optSkipDate {
		sess.scratch.date = nil
		sess.scratch.deadline = nil
		sess.step = stepTaskConfirm
		return e.send(ctx, p, draftSummary(&sess.scratch), confirmMenu())
	}

	day, err := time.ParseInLocation(dateLayout, strings.TrimSpace(ev.Text), time.Local)
	if err != nil {
		return e.send(ctx, p, "I couldn't read that date. Use day.month.year, e.g. 24.12.2026.", nil)
	}
	sess.scratch.date = &day
	sess.step = stepTaskTime
	return e.send(ctx, p, "What time? Use 24h clock, e.g. 18:30.", []transport.Option{
		{ID: optBack, Label: "Back"},
		{ID: optCancel, Label: "Cancel"},
	})
}

func (e *Engine) stepTaskTime(ctx context.Context, ev transport.Event, sess *session) error {
	p := ev.Principal
	if isBack(ev) {
		sess.step = stepTaskDate
		return e.askDate(ctx, p)
	}

	clock, err := time.ParseInLocation(timeLayout, strings.TrimSpace(ev.Text), time.Local)
	if err != nil {
		return e.send(ctx, p, "I couldn't read that time. Use HH:MM, e.g. 18:30.", nil)
	}

	day := sess.scratch.date
	deadline := time.Date(day.Year(), day.Month(), day.Day(),
		clock.Hour(), clock.Minute(), 0, 0, time.Local)
	if deadline.Before(time.Now().Add(-models.DeadlineGrace)) {
		return e.send(ctx, p, "That moment has already passed. Send a different time, or \"back\" for the date.", nil)
	}

	sess.scratch.deadline = &deadline
	sess.step = stepTaskConfirm
	return e.send(ctx, p, draftSummary(&sess.scratch), confirmMenu())
}

func (e *Engine) stepTaskConfirm(ctx context.Context, ev transport.Event, sess *session) error {
	p := ev.Principal
	switch {
	case isBack(ev):
		sess.step = stepTaskDate
		return e.askDate(ctx, p)
	case ev.Option == optConfirmNo:
		sess.scratch = scratch{}
		sess.step = stepTaskType
		return e.send(ctx, p, "Starting over. What kind of task?", taskTypeMenu())
	case ev.Option == optConfirmYes:
		if sess.scratch.deadline != nil {
			sess.step = stepTaskReminder
			return e.send(ctx, p, "Remind the family before the deadline?", reminderMenu())
		}
		return e.finishTask(ctx, p, sess)
	default:
		return e.send(ctx, p, draftSummary(&sess.scratch), confirmMenu())
	}
}

func (e *Engine) stepTaskReminder(ctx context.Context, ev transport.Event, sess *session) error {
	p := ev.Principal
	if !strings.HasPrefix(ev.Option, prefixReminder) {
		return e.send(ctx, p, "Pick a reminder from the buttons.", reminderMenu())
	}
	secs, err := strconv.ParseInt(strings.TrimPrefix(ev.Option, prefixReminder), 10, 64)
	if err != nil || secs < 0 {
		return e.send(ctx, p, "Pick a reminder from the buttons.", reminderMenu())
	}
	sess.scratch.reminderSec = secs
	return e.finishTask(ctx, p, sess)
}

// finishTask persists the collected draft and fans the announcement out.
// The session is cleared whatever happens so a failure never wedges the
// principal inside a dead wizard.
func (e *Engine) finishTask(ctx context.Context, p int64, sess *session) error {
	draft := service.TaskDraft{
		Type:        sess.scratch.taskType,
		Description: sess.scratch.description,
		Items:       sess.scratch.items,
		Deadline:    sess.scratch.deadline,
		ReminderSec: sess.scratch.reminderSec,
	}
	sess.reset()

	res, err := e.tasks.CreateTask(p, draft)
	if err != nil {
		return e.fail(ctx, p, err)
	}

	announce := fmt.Sprintf("%s added a task: %s", res.Nick, res.Task.Description)
	if res.Task.Deadline != nil {
		announce += fmt.Sprintf(" (due %s)", res.Task.Deadline.Format(dateLayout+" "+timeLayout))
	}
	e.notify(ctx, res.Family.ID, announce, p)

	confirm := "Task created."
	if res.Task.ReminderSec > 0 {
		confirm = fmt.Sprintf("Task created, reminder %s.", strings.ToLower(reminderLabel(res.Task.ReminderSec)))
	}
	return e.send(ctx, p, confirm, familyMenu())
}

func (e *Engine) stepTaskProgress(ctx context.Context, ev transport.Event, sess *session) error {
	p := ev.Principal
	pct, err := utils.ParsePercent(ev.Text)
	if err != nil {
		var ve utils.ValidationError
		if errors.As(err, &ve) {
			return e.send(ctx, p, ve.Message+" Try again.", nil)
		}
		return e.send(ctx, p, "Send a number from 0 to 100.", nil)
	}

	taskID := sess.scratch.taskID
	sess.reset()

	res, err := e.tasks.UpdateProgress(p, taskID, pct)
	if err != nil {
		return e.fail(ctx, p, err)
	}

	if res.Closed {
		e.notify(ctx, res.Family.ID, fmt.Sprintf("%s completed \"%s\" 🎉", res.Nick, res.Task.Description), p)
		return e.send(ctx, p, fmt.Sprintf("\"%s\" is done!", res.Task.Description), familyMenu())
	}
	e.notify(ctx, res.Family.ID,
		fmt.Sprintf("%s moved \"%s\" to %d%%\n%s", res.Nick, res.Task.Description, pct, progressBar(pct)), p)
	return e.send(ctx, p, fmt.Sprintf("Progress saved: %s %d%%", progressBar(pct), pct), familyMenu())
}

func (e *Engine) stepLeaveConfirm(ctx context.Context, ev transport.Event, sess *session) error {
	p := ev.Principal
	sess.reset()
	if ev.Option != optConfirmLeave {
		return e.showMenu(ctx, p, "")
	}

	res, err := e.families.LeaveFamily(p)
	if err != nil {
		return e.fail(ctx, p, err)
	}
	if !res.FamilyDeleted {
		e.notify(ctx, res.FamilyID, fmt.Sprintf("%s left %s.", res.Nick, res.FamilyName), p)
	}
	return e.showMenu(ctx, p, fmt.Sprintf("You left %s.", res.FamilyName))
}

func (e *Engine) stepDeleteConfirm(ctx context.Context, ev transport.Event, sess *session) error {
	p := ev.Principal
	sess.reset()
	if ev.Option != optConfirmDelete {
		return e.showMenu(ctx, p, "")
	}

	res, err := e.families.DeleteFamily(p)
	if err != nil {
		return e.fail(ctx, p, err)
	}

	// The family is gone from the snapshot, so the fan-out path can't be
	// used; former members are told directly.
	for _, memberID := range res.MemberIDs {
		if memberID == p {
			continue
		}
		if err := e.sender.Send(ctx, memberID, fmt.Sprintf("%s was deleted by its creator.", res.FamilyName), nil); err != nil {
			e.log.Warn("delete notice failed", zap.Int64("member", memberID), zap.Error(err))
		}
	}
	return e.showMenu(ctx, p, fmt.Sprintf("%s was deleted.", res.FamilyName))
}
