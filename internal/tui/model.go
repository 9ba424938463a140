package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/agbru/deepzoom/internal/coloring"
	"github.com/agbru/deepzoom/internal/compute"
	"github.com/agbru/deepzoom/internal/config"
	apperrors "github.com/agbru/deepzoom/internal/errors"
	"github.com/agbru/deepzoom/internal/format"
	"github.com/agbru/deepzoom/internal/pipeline"
	"github.com/agbru/deepzoom/internal/sysmon"
)

// Layout and timing constants.
const (
	// chromeRows is the number of terminal rows outside the preview:
	// header, status bar and footer.
	chromeRows = 3

	tickInterval  = 100 * time.Millisecond
	debounceDelay = 150 * time.Millisecond
	// statsEvery samples host stats once per this many ticks.
	statsEvery = 10

	minZoom = -4.0
)

// Saver renders req at full resolution and stores it, returning where.
type Saver func(ctx context.Context, req pipeline.Request) (string, error)

// Previewer is the compute side of the explorer.
type Previewer interface {
	Submit(r pipeline.Request) uint64
	Status() pipeline.Status
}

// Model is the explorer's bubbletea model. Navigation edits a preview
// request sized to the terminal; edits are debounced before they are
// submitted, and frames come back as FrameMsg.
type Model struct {
	keys   KeyMap
	header HeaderModel
	bar    StatusBarModel

	parentCtx context.Context
	preview   Previewer
	save      Saver

	initial    pipeline.Request
	req        pipeline.Request
	outW, outH int
	maxZoom    float64
	glow       float64

	debounce  *pipeline.Debouncer
	submitted uint64
	frame     *pipeline.Frame
	status    pipeline.Status
	saving    bool
	ticks     int

	width, height int
	err           error
}

// NewModel creates an explorer for req. The request's size is the output
// resolution used when saving; the preview follows the terminal.
func NewModel(ctx context.Context, preview Previewer, save Saver, req pipeline.Request, maxZoom float64, version string) Model {
	glow := req.Color.GlowIntensity
	if glow == 0 {
		glow = coloring.DefaultParams().GlowIntensity
	}
	return Model{
		keys:      DefaultKeyMap(),
		header:    NewHeaderModel(version),
		bar:       NewStatusBarModel(),
		parentCtx: ctx,
		preview:   preview,
		save:      save,
		initial:   req,
		req:       req,
		outW:      req.Viewport.Width,
		outH:      req.Viewport.Height,
		maxZoom:   maxZoom,
		glow:      glow,
		debounce:  pipeline.NewDebouncer(debounceDelay),
	}
}

// Init starts the tick loop and the context watcher.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		sampleSysStatsCmd(m.parentCtx),
		watchContextCmd(m.parentCtx),
	)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.header.SetWidth(msg.Width)
		m.bar.SetWidth(msg.Width)
		w, h := previewSize(m.width, m.height-chromeRows)
		m.req = resize(m.req, w, h)
		if m.submitted == 0 {
			m.submit()
		} else {
			m.debounce.Trigger()
		}
		return m, nil

	case TickMsg:
		m.status = m.preview.Status()
		if m.debounce.Poll() {
			m.submit()
		}
		m.ticks++
		if m.ticks%statsEvery == 0 {
			return m, tea.Batch(tickCmd(), sampleSysStatsCmd(m.parentCtx))
		}
		return m, tickCmd()

	case SysStatsMsg:
		m.bar.UpdateStats(sysmon.Stats(msg))
		return m, nil

	case FrameMsg:
		if m.frame == nil || msg.Frame.Generation >= m.frame.Generation {
			f := msg.Frame
			m.frame = &f
		}
		m.status = m.preview.Status()
		return m, nil

	case SavedMsg:
		m.saving = false
		if msg.Err != nil {
			m.bar.SetMessage("save failed: "+msg.Err.Error(), true)
		} else {
			m.bar.SetMessage(fmt.Sprintf("saved %s in %s", msg.Path, format.FormatExecutionDuration(msg.Elapsed)), false)
		}
		return m, nil

	case RunDoneMsg:
		if msg.Err != nil && !apperrors.IsContextError(msg.Err) {
			m.err = msg.Err
		}
		return m, tea.Quit

	case ContextCancelledMsg:
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	v := &m.req.Viewport
	c := &m.req.Color
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Save):
		if m.saving {
			return m, nil
		}
		m.saving = true
		out := resize(m.req, m.outW, m.outH)
		m.bar.SetMessage(fmt.Sprintf("rendering %dx%d...", m.outW, m.outH), false)
		return m, saveCmd(m.parentCtx, m.save, out)
	case key.Matches(msg, m.keys.Reset):
		m.req = resize(m.initial, v.Width, v.Height)
	case key.Matches(msg, m.keys.ZoomIn):
		*v = zoomBy(*v, zoomStep, minZoom, m.maxZoom)
	case key.Matches(msg, m.keys.ZoomOut):
		*v = zoomBy(*v, -zoomStep, minZoom, m.maxZoom)
	case key.Matches(msg, m.keys.Up):
		*v = pan(*v, 0, panStep)
	case key.Matches(msg, m.keys.Down):
		*v = pan(*v, 0, -panStep)
	case key.Matches(msg, m.keys.Left):
		*v = pan(*v, -panStep, 0)
	case key.Matches(msg, m.keys.Right):
		*v = pan(*v, panStep, 0)
	case key.Matches(msg, m.keys.RotateLeft):
		*v = rotate(*v, rotateStep)
	case key.Matches(msg, m.keys.RotateRight):
		*v = rotate(*v, -rotateStep)
	case key.Matches(msg, m.keys.MoreIter):
		m.req.MaxIter = scaleIter(m.req.MaxIter, 2)
	case key.Matches(msg, m.keys.FewerIter):
		m.req.MaxIter = scaleIter(m.req.MaxIter, 0.5)
	case key.Matches(msg, m.keys.FreqUp):
		c.Frequency *= freqFactor
	case key.Matches(msg, m.keys.FreqDown):
		c.Frequency /= freqFactor
	case key.Matches(msg, m.keys.OffsetUp):
		c.Offset = wrapTurn(c.Offset + offsetStep)
	case key.Matches(msg, m.keys.OffsetDown):
		c.Offset = wrapTurn(c.Offset - offsetStep)
	case key.Matches(msg, m.keys.GlowToggle):
		if c.GlowIntensity > 0 {
			m.glow, c.GlowIntensity = c.GlowIntensity, 0
		} else {
			c.GlowIntensity = m.glow
		}
	case key.Matches(msg, m.keys.CycleTier):
		m.req.Tier = nextTier(m.req.Tier)
	default:
		return m, nil
	}
	m.debounce.Trigger()
	return m, nil
}

// submit hands the current preview request to the compute loop.
func (m *Model) submit() {
	m.debounce.Reset()
	m.submitted = m.preview.Submit(m.req)
}

// Request returns the current preview request.
func (m Model) Request() pipeline.Request { return m.req }

// Err returns the failure that stopped the compute loop, if any.
func (m Model) Err() error { return m.err }

// View renders the explorer.
func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}
	rows := max(m.height-chromeRows, 1)
	var preview string
	if m.frame != nil {
		preview = RenderPreview(*m.frame, m.width, rows)
	} else {
		preview = blankPreview(m.width, rows)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.header.View(m.req, m.status, m.frame),
		preview,
		m.bar.View(m.status),
		m.renderFooter(),
	)
}

func (m Model) renderFooter() string {
	var parts []string
	for _, b := range m.keys.ShortHelp() {
		h := b.Help()
		if h.Key == "" {
			continue
		}
		parts = append(parts, footerKeyStyle.Render(h.Key)+" "+footerDescStyle.Render(h.Desc))
	}
	return " " + strings.Join(parts, "  ")
}

// Run starts the explorer and returns an exit code. The preview and the
// full-resolution saves use separate coordinators on the same device, so a
// save never evicts the preview's cached state.
func Run(ctx context.Context, dev compute.Device, req pipeline.Request, cfg config.AppConfig, version string, opts ...pipeline.Option) int {
	initTUIStyles()

	parent := ctx
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	ref := &programRef{}
	previewOpts := append(opts[:len(opts):len(opts)], pipeline.WithSink(previewSink{ref: ref}))
	preview := pipeline.New(dev, previewOpts...)
	output := pipeline.New(dev, opts...)
	save := PNGSaver(output, cfg.OutputFile)

	model := NewModel(ctx, preview, save, req, cfg.MaxZoom.ProbedExtended, version)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	// Inject the program reference before running so the sink can Send.
	ref.SetProgram(p)

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		err := preview.Run(ctx)
		ref.Send(RunDoneMsg{Err: err})
	}()

	finalModel, err := p.Run()
	cancel()
	<-runDone
	if err != nil && !apperrors.IsContextError(err) {
		return apperrors.ExitErrorGeneric
	}

	if m, ok := finalModel.(Model); ok && m.err != nil {
		return apperrors.ExitCodeFor(m.err)
	}
	return apperrors.ExitCodeFor(parent.Err())
}

// tickCmd returns a command that sends a TickMsg after tickInterval.
func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// sampleSysStatsCmd reads host CPU and memory stats and returns a SysStatsMsg.
func sampleSysStatsCmd(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		return SysStatsMsg(sysmon.Sample(ctx))
	}
}

// saveCmd runs save off the UI goroutine.
func saveCmd(ctx context.Context, save Saver, req pipeline.Request) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		path, err := save(ctx, req)
		return SavedMsg{Path: path, Elapsed: time.Since(start), Err: err}
	}
}

// watchContextCmd waits for context cancellation and sends a message.
func watchContextCmd(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		<-ctx.Done()
		return ContextCancelledMsg{Err: ctx.Err()}
	}
}
