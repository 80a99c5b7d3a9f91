package ui

import (
	"fmt"

	"github.com/charmbracelet/huh"
)

// Confirmer asks a yes/no question.
type Confirmer func(title string, defaultYes bool) (bool, error)

// Confirm shows an interactive yes/no prompt on the terminal.
func Confirm(title string, defaultYes bool) (bool, error) {
	answer := defaultYes
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Affirmative("Yes").
				Negative("No").
				Value(&answer),
		),
	)
	if err := form.Run(); err != nil {
		return false, err
	}
	return answer, nil
}

// PartialResultsPrompt is the question asked after an interrupted
// single-target monitoring run.
func PartialResultsPrompt(samples int) string {
	return fmt.Sprintf("Calculate averages from %d sample(s)?", samples)
}
