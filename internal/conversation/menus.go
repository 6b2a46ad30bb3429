package conversation

import (
	"fmt"
	"strings"
	"time"

	"foxfamily/internal/models"
	"foxfamily/internal/transport"
)

// Option IDs understood by the engine. Parameterized options carry their
// argument after a colon, e.g. "switch:<family-id>".
const (
	optCreateFamily = "create_family"
	optJoinFamily   = "join_family"
	optMyFamilies   = "my_families"
	optSetEmail     = "set_email"
	optHelp         = "help"

	optNewTask   = "new_task"
	optTasks     = "tasks"
	optCompleted = "completed"
	optMembers   = "members"
	optSettings  = "settings"

	optRenameFamily = "rename_family"
	optRegenKey     = "regen_key"
	optLeaveFamily  = "leave_family"
	optDeleteFamily = "delete_family"

	optSkipDate      = "skip_date"
	optConfirmYes    = "confirm_yes"
	optConfirmNo     = "confirm_no"
	optConfirmLeave  = "confirm_leave"
	optConfirmDelete = "confirm_delete"
	optCancel        = "cancel"
	optBack          = "back"

	prefixSwitch   = "switch:"
	prefixTaskType = "task_type:"
	prefixCategory = "category:"
	prefixTask     = "task:"
	prefixItem     = "item:"
	prefixProgress = "set_progress:"
	prefixReminder = "reminder:"
)

// shoppingCategories are the preset headings for a shopping-list task; the
// chosen one becomes the task description.
var shoppingCategories = []string{"Groceries", "Pharmacy", "Household", "Other"}

// reminderChoices maps the reminder menu to lead-time seconds. Zero means
// no reminder.
var reminderChoices = []struct {
	Label string
	Secs  int64
}{
	{"1 hour before", 3600},
	{"3 hours before", 3 * 3600},
	{"1 day before", 86400},
	{"No reminder", 0},
}

const (
	dateLayout = "02.01.2006"
	timeLayout = "15:04"
)

func globalMenu() []transport.Option {
	return []transport.Option{
		{ID: optCreateFamily, Label: "Create a family"},
		{ID: optJoinFamily, Label: "Join with a key"},
		{ID: optMyFamilies, Label: "My families"},
		{ID: optSetEmail, Label: "Email notifications"},
		{ID: optHelp, Label: "Help"},
	}
}

func familyMenu() []transport.Option {
	return []transport.Option{
		{ID: optNewTask, Label: "New task"},
		{ID: optTasks, Label: "Tasks"},
		{ID: optCompleted, Label: "Completed"},
		{ID: optMembers, Label: "Members"},
		{ID: optSettings, Label: "Settings"},
		{ID: optMyFamilies, Label: "My families"},
		{ID: optHelp, Label: "Help"},
	}
}

func settingsMenu() []transport.Option {
	return []transport.Option{
		{ID: optRenameFamily, Label: "Rename family"},
		{ID: optRegenKey, Label: "New invite key"},
		{ID: optSetEmail, Label: "Email notifications"},
		{ID: optLeaveFamily, Label: "Leave family"},
		{ID: optDeleteFamily, Label: "Delete family"},
		{ID: optCancel, Label: "Back to menu"},
	}
}

func taskTypeMenu() []transport.Option {
	opts := make([]transport.Option, 0, len(models.TaskTypes)+1)
	for _, tt := range models.TaskTypes {
		opts = append(opts, transport.Option{ID: prefixTaskType + string(tt), Label: tt.Label()})
	}
	return append(opts, transport.Option{ID: optCancel, Label: "Cancel"})
}

func categoryMenu() []transport.Option {
	opts := make([]transport.Option, 0, len(shoppingCategories)+2)
	for _, c := range shoppingCategories {
		opts = append(opts, transport.Option{ID: prefixCategory + strings.ToLower(c), Label: c})
	}
	return append(opts,
		transport.Option{ID: optBack, Label: "Back"},
		transport.Option{ID: optCancel, Label: "Cancel"})
}

func reminderMenu() []transport.Option {
	opts := make([]transport.Option, 0, len(reminderChoices))
	for _, c := range reminderChoices {
		opts = append(opts, transport.Option{ID: fmt.Sprintf("%s%d", prefixReminder, c.Secs), Label: c.Label})
	}
	return opts
}

func confirmMenu() []transport.Option {
	return []transport.Option{
		{ID: optConfirmYes, Label: "Save"},
		{ID: optConfirmNo, Label: "Start over"},
		{ID: optCancel, Label: "Cancel"},
	}
}

// progressBar renders pct as a ten-cell bar, e.g. "■■■■□□□□□□".
func progressBar(pct int) string {
	filled := pct / 10
	if filled > 10 {
		filled = 10
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("■", filled) + strings.Repeat("□", 10-filled)
}

// taskLine is the one-line list rendering of an open task.
func taskLine(t *models.Task) string {
	line := fmt.Sprintf("%s %3d%%  %s", progressBar(t.Progress), t.Progress, t.Description)
	if t.Deadline != nil {
		line += fmt.Sprintf("  (due %s)", t.Deadline.Format(dateLayout+" "+timeLayout))
	}
	return line
}

// taskDetail renders a single task view plus the options acting on it.
func taskDetail(t *models.Task) (string, []transport.Option) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s — %s\n%s %d%%\n", t.Type.Label(), t.Description, progressBar(t.Progress), t.Progress)
	if t.Deadline != nil {
		fmt.Fprintf(&b, "Due %s\n", t.Deadline.Format(dateLayout+" "+timeLayout))
	}
	for _, u := range t.Updates {
		fmt.Fprintf(&b, "  %s: %d%% → %d%%\n", u.Nick, u.From, u.To)
	}

	var opts []transport.Option
	if t.Type == models.TaskShopping {
		for i, item := range t.Items {
			if item.Checked {
				continue
			}
			label := item.Label
			if item.Quantity != "" {
				label = fmt.Sprintf("%s (%s)", item.Label, item.Quantity)
			}
			opts = append(opts, transport.Option{
				ID:    fmt.Sprintf("%s%s:%d", prefixItem, t.ID, i),
				Label: "Buy " + label,
			})
		}
		for _, item := range t.Items {
			mark := "□"
			if item.Checked {
				mark = "■"
			}
			fmt.Fprintf(&b, "%s %s", mark, item.Label)
			if item.Quantity != "" {
				fmt.Fprintf(&b, " (%s)", item.Quantity)
			}
			b.WriteString("\n")
		}
	} else {
		opts = append(opts, transport.Option{ID: prefixProgress + t.ID, Label: "Update progress"})
	}
	opts = append(opts, transport.Option{ID: optCancel, Label: "Back to menu"})
	return b.String(), opts
}

// completedSummary renders the history view: each closed task with who
// finished it and a per-member contribution tally.
func completedSummary(tasks []*models.Task) string {
	if len(tasks) == 0 {
		return "Nothing completed yet."
	}
	var b strings.Builder
	b.WriteString("Completed tasks:\n")
	tally := map[string]int{}
	for _, t := range tasks {
		when := ""
		if t.CompletedAt != nil {
			when = " on " + t.CompletedAt.Format(dateLayout)
		}
		fmt.Fprintf(&b, "✓ %s — %s%s\n", t.Description, t.CompletedBy, when)
		tally[t.CompletedBy]++
	}
	b.WriteString("\nContributions:\n")
	for _, t := range tasks {
		if n, ok := tally[t.CompletedBy]; ok {
			fmt.Fprintf(&b, "  %s: %d\n", t.CompletedBy, n)
			delete(tally, t.CompletedBy)
		}
	}
	return b.String()
}

// draftSummary renders the task wizard's confirmation screen.
func draftSummary(sc *scratch) string {
	var b strings.Builder
	b.WriteString("About to create:\n")
	fmt.Fprintf(&b, "Type: %s\n", sc.taskType.Label())
	fmt.Fprintf(&b, "Description: %s\n", sc.description)
	if len(sc.items) > 0 {
		b.WriteString("Items:\n")
		for _, item := range sc.items {
			fmt.Fprintf(&b, "  - %s", item.Label)
			if item.Quantity != "" {
				fmt.Fprintf(&b, " (%s)", item.Quantity)
			}
			b.WriteString("\n")
		}
	}
	if sc.deadline != nil {
		fmt.Fprintf(&b, "Deadline: %s\n", sc.deadline.Format(dateLayout+" "+timeLayout))
	} else {
		b.WriteString("Deadline: none\n")
	}
	return b.String()
}

func reminderLabel(secs int64) string {
	for _, c := range reminderChoices {
		if c.Secs == secs {
			return c.Label
		}
	}
	return (time.Duration(secs) * time.Second).String() + " before"
}

const helpText = `FoxFamily keeps a shared task list for your family.

Create a family or join one with an invite key, then add tasks with
optional deadlines and reminders. Shopping lists close themselves when
the last item is bought; everything else closes at 100% progress.
Everyone in the family is notified about new tasks and progress.

Type "cancel" at any point to abandon what you were doing.`
