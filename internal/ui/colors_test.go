package ui

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestStylesAreFunctional(t *testing.T) {
	styles := []struct {
		name  string
		style lipgloss.Style
	}{
		{"Success", SuccessStyle()},
		{"Error", ErrorStyle()},
		{"Warning", WarningStyle()},
		{"Info", InfoStyle()},
		{"Muted", MutedStyle()},
	}

	for _, tt := range styles {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, tt.style.Render("test text"), "test text")
		})
	}
}

func TestGradientColors(t *testing.T) {
	assert.NotEmpty(t, GradientColors)
	for _, c := range GradientColors {
		assert.NotEmpty(t, string(c))
	}
}

func TestDisableColorsRendersPlainText(t *testing.T) {
	DisableColors()
	assert.Equal(t, "plain", ErrorStyle().Render("plain"))
}

func TestPrintWarning(t *testing.T) {
	buf := &syncBuffer{}
	PrintWarning(buf, "--no-tunnel specified, ignoring --jumphost")
	assert.Contains(t, buf.String(), SymbolWarning)
	assert.Contains(t, buf.String(), "ignoring --jumphost")
}

func TestPartialResultsPrompt(t *testing.T) {
	assert.Equal(t, "Calculate averages from 3 sample(s)?", PartialResultsPrompt(3))
}
