package ui

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/neu-lab/meg2bids/internal/bids"
	"github.com/neu-lab/meg2bids/internal/participants"
)

var pnumPattern = regexp.MustCompile(`^p\d+$`)

// sanitizeInput removes null bytes and other invisible control characters from input
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r == 0 || (r < 32 && r != '\t' && r != '\n' && r != '\r') {
			return -1
		}
		return r
	}, s)
}

// ValidatePNumber checks a subject p-number such as p1234
func ValidatePNumber(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("p-number cannot be empty")
	}
	if !pnumPattern.MatchString(s) {
		return fmt.Errorf("invalid p-number %q: expected p followed by digits", s)
	}
	return nil
}

// Prompter asks the operator questions with huh forms
type Prompter struct{}

// PromptForPNumber asks for a subject p-number
func (Prompter) PromptForPNumber() (string, error) {
	var input string

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Subject p-number").
				Placeholder("p1234").
				Value(&input).
				Validate(ValidatePNumber),
		),
	).WithTheme(NewAppTheme())

	if err := form.Run(); err != nil {
		return "", fmt.Errorf("prompt cancelled: %w", err)
	}
	return strings.TrimSpace(sanitizeInput(input)), nil
}

// ConfirmProceed asks a yes/no question
func (Prompter) ConfirmProceed(title, description string) (bool, error) {
	var ok bool

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	).WithTheme(NewAppTheme())

	if err := form.Run(); err != nil {
		return false, fmt.Errorf("prompt cancelled: %w", err)
	}
	return ok, nil
}

// ConfirmTasks shows the proposed run to task mapping and asks whether it is right
func (p Prompter) ConfirmTasks(pnum, session string, plan []bids.RunTask) (bool, error) {
	PrintTaskPlan(pnum, session, plan)
	return p.ConfirmProceed("Are these tasks correct?", "Choose No to set the task of each run")
}

// PromptTask asks which task a run recorded
func (Prompter) PromptTask(run int, current string) (string, error) {
	task := current

	options := make([]huh.Option[string], 0, len(bids.Tasks))
	for _, t := range bids.Tasks {
		options = append(options, huh.NewOption(t, t))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(fmt.Sprintf("Task for run %02d", run)).
				Options(options...).
				Value(&task),
		),
	).WithTheme(NewAppTheme())

	if err := form.Run(); err != nil {
		return "", fmt.Errorf("prompt cancelled: %w", err)
	}
	return task, bids.ValidateTask(task)
}

// PromptField asks for a participants.tsv value the operator must supply
func (Prompter) PromptField(pnum, field string) (string, error) {
	value := participants.NA

	options := make([]huh.Option[string], 0, len(participants.FieldOptions[field]))
	for _, opt := range participants.FieldOptions[field] {
		options = append(options, huh.NewOption(opt, opt))
	}
	if len(options) == 0 {
		return "", fmt.Errorf("%s is not an editable field", field)
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(fmt.Sprintf("%s for %s", strings.ToUpper(field[:1])+field[1:], pnum)).
				Description("Choose n/a if unknown").
				Options(options...).
				Value(&value),
		),
	).WithTheme(NewAppTheme())

	if err := form.Run(); err != nil {
		return "", fmt.Errorf("prompt cancelled: %w", err)
	}
	return value, nil
}

// ReviewTasks walks the operator through the task plan until they accept it
func ReviewTasks(p Prompter, pnum, session string, plan []bids.RunTask) ([]bids.RunTask, error) {
	ok, err := p.ConfirmTasks(pnum, session, plan)
	if err != nil {
		return nil, err
	}
	if ok {
		return plan, nil
	}

	for i := range plan {
		task, err := p.PromptTask(plan[i].Run, plan[i].Task)
		if err != nil {
			return nil, err
		}
		plan[i].Task = task
	}
	return ReviewTasks(p, pnum, session, bids.NumberTaskRuns(plan))
}
