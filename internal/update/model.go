package update

import (
	"time"

	"github.com/charmbracelet/bubbles/textinput"

	domainmodel "github.com/sandeepkv93/ghostd/internal/model"
	"github.com/sandeepkv93/ghostd/internal/projector"
	"github.com/sandeepkv93/ghostd/internal/store"
)

type Mode string

const (
	ModeAgenda      Mode = "agenda"
	ModeAdd         Mode = "add"
	ModeEditTitle   Mode = "edit_title"
	ModeScopeEdit   Mode = "scope_edit"
	ModeScopeDelete Mode = "scope_delete"
	ModeHelp        Mode = "help"
)

type StatusBar struct {
	Text    string
	IsError bool
}

type Model struct {
	cfg         RuntimeConfig
	ctrl        *store.Controller
	windowStart time.Time
	items       []domainmodel.Occurrence
	cursor      int
	mode        Mode
	input       textinput.Model
	// pendingTitle holds an edited title while the scope prompt is open.
	pendingTitle string
	status       StatusBar
	width        int
	height       int
	quitting     bool
}

func NewModel(ctrl *store.Controller, cfg RuntimeConfig) Model {
	input := textinput.New()
	input.Placeholder = "pay rent @2026-03-01 every month"
	input.CharLimit = 200
	input.Width = 48

	m := Model{
		cfg:         cfg,
		ctrl:        ctrl,
		windowStart: todayUTC(),
		mode:        ModeAgenda,
		input:       input,
	}
	m.refreshAgenda()
	return m
}

// refreshAgenda rebuilds the visible list from store state. The list
// is never patched by hand after a mutation.
func (m *Model) refreshAgenda() {
	m.items = projector.ProjectBuffered(m.ctrl.Tasks(), m.windowStart, m.cfg.WindowDays, m.cfg.BufferDays)
	if m.cursor >= len(m.items) {
		m.cursor = len(m.items) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) selected() (domainmodel.Occurrence, bool) {
	if len(m.items) == 0 || m.cursor < 0 || m.cursor >= len(m.items) {
		return domainmodel.Occurrence{}, false
	}
	return m.items[m.cursor], true
}

func todayUTC() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
