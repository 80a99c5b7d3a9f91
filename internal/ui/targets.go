package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/idrac-power/internal/parallel"
	"github.com/rileyhilliard/idrac-power/internal/target"
)

// targetStatus is the display state of one target row.
type targetStatus int

const (
	targetPending targetStatus = iota
	targetRunning
	targetPassed
	targetFailed
)

type targetEntry struct {
	name      string
	address   string
	status    targetStatus
	startTime time.Time
	elapsed   time.Duration
	detail    string
}

// TargetProgress shows per-target status for a multi-target run. It
// implements parallel.Events.
//
// In live mode every target gets a row that is redrawn in place while an
// animation ticks. In line mode (no terminal, or monitoring runs whose
// reporters also write to the same stream) each event prints one
// "[name] ..." line instead.
type TargetProgress struct {
	mu sync.Mutex

	targets   []targetEntry
	lineCount int
	frame     int

	live     bool
	running  bool
	stopChan chan struct{}
	doneChan chan struct{}
	w        io.Writer
}

var _ parallel.Events = (*TargetProgress)(nil)

// NewTargetProgress creates a display for targets. live selects in-place
// rendering.
func NewTargetProgress(w io.Writer, targets []target.Target, live bool) *TargetProgress {
	p := &TargetProgress{
		targets: make([]targetEntry, len(targets)),
		live:    live,
		w:       w,
	}
	for i, t := range targets {
		p.targets[i] = targetEntry{name: t.Name, address: t.Address}
	}
	return p
}

// Start prints the header and, in live mode, begins the animation loop.
func (p *TargetProgress) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	fmt.Fprintf(p.w, "Monitoring %d server(s)...\n\n", len(p.targets))
	p.running = true
	p.stopChan = make(chan struct{})
	p.doneChan = make(chan struct{})
	live := p.live
	if live {
		p.renderLocked()
	}
	p.mu.Unlock()

	if !live {
		close(p.doneChan)
		return
	}
	go p.animate()
}

// Stop halts the animation and renders the final state.
func (p *TargetProgress) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopChan)
	p.mu.Unlock()

	<-p.doneChan
}

// TargetStarted marks a target as in progress.
func (p *TargetProgress) TargetStarted(t target.Target) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e := p.entryLocked(t.Name, t.Address)
	e.status = targetRunning
	e.startTime = time.Now()

	if p.live {
		p.renderLocked()
		return
	}
	fmt.Fprintf(p.w, "[%s] Starting...\n", t.Name)
}

// TargetCompleted marks a target as passed or failed.
func (p *TargetProgress) TargetCompleted(o parallel.Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e := p.entryLocked(o.Name, o.Address)
	e.elapsed = o.Duration
	if o.Success {
		e.status = targetPassed
	} else {
		e.status = targetFailed
		e.detail = o.Error
	}

	if p.live {
		p.renderLocked()
		return
	}
	if o.Success {
		fmt.Fprintf(p.w, "[%s] %s Complete\n", o.Name, SuccessStyle().Render(SymbolSuccess))
	} else {
		fmt.Fprintf(p.w, "[%s] %s Failed: %s\n", o.Name, ErrorStyle().Render(SymbolFail), o.Error)
	}
}

// entryLocked finds a row by name and address, adding one if the target
// was not known up front.
func (p *TargetProgress) entryLocked(name, address string) *targetEntry {
	for i := range p.targets {
		if p.targets[i].name == name && p.targets[i].address == address && p.targets[i].status != targetPassed && p.targets[i].status != targetFailed {
			return &p.targets[i]
		}
	}
	p.targets = append(p.targets, targetEntry{name: name, address: address})
	return &p.targets[len(p.targets)-1]
}

func (p *TargetProgress) animate() {
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()
	defer close(p.doneChan)

	for {
		select {
		case <-p.stopChan:
			p.mu.Lock()
			p.renderLocked()
			p.mu.Unlock()
			return
		case <-ticker.C:
			p.mu.Lock()
			p.frame = (p.frame + 1) % len(spinnerFrames)
			p.renderLocked()
			p.mu.Unlock()
		}
	}
}

// renderLocked redraws every row in place. Must be called with lock held.
func (p *TargetProgress) renderLocked() {
	if len(p.targets) == 0 {
		return
	}

	var sb strings.Builder
	if p.lineCount > 0 {
		sb.WriteString(fmt.Sprintf("\x1b[%dA", p.lineCount))
	}
	for _, e := range p.targets {
		sb.WriteString("\x1b[K")
		sb.WriteString(p.renderLine(e))
		sb.WriteString("\n")
	}
	fmt.Fprint(p.w, sb.String())
	p.lineCount = len(p.targets)
}

func (p *TargetProgress) renderLine(e targetEntry) string {
	var symbol string
	var style lipgloss.Style

	switch e.status {
	case targetPending:
		symbol = SymbolPending
		style = MutedStyle()
	case targetRunning:
		symbol = spinnerFrames[p.frame]
		style = lipgloss.NewStyle().Foreground(GradientColors[(p.frame/2)%len(GradientColors)])
	case targetPassed:
		symbol = SymbolSuccess
		style = SuccessStyle()
	case targetFailed:
		symbol = SymbolFail
		style = ErrorStyle()
	}

	line := fmt.Sprintf("%s %s %s", style.Render(symbol), e.name, MutedStyle().Render("("+e.address+")"))
	switch e.status {
	case targetRunning:
		line += " " + MutedStyle().Render(formatElapsed(time.Since(e.startTime)))
	case targetPassed:
		line += " " + MutedStyle().Render(formatElapsed(e.elapsed))
	case targetFailed:
		line += " " + ErrorStyle().Render(e.detail)
	}
	return line
}
