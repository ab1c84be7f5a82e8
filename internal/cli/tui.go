package cli

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/flowlane/pkg/graph"
	"github.com/matzehuels/flowlane/pkg/refresh"
	"github.com/matzehuels/flowlane/pkg/render/sink"
	"github.com/matzehuels/flowlane/pkg/timeline"
	"github.com/matzehuels/flowlane/pkg/viewport"
)

const (
	// redrawInterval is how often the view is re-read from the session.
	redrawInterval = 100 * time.Millisecond

	// scrollStep is the vertical scroll step of page keys.
	scrollStep = 0.1

	// chromeRows are the rows taken by header, pending line and footer.
	chromeRows = 6
)

var (
	tuiHeaderStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	tuiHelpStyle     = lipgloss.NewStyle().Foreground(colorDim)
	tuiFocusStyle    = lipgloss.NewStyle().Reverse(true)
	tuiThumbStyle    = lipgloss.NewStyle().Foreground(colorGray)
	tuiTrackStyle    = lipgloss.NewStyle().Foreground(colorDim)
	tuiCurrentStyle  = lipgloss.NewStyle().Foreground(colorRed)
	tuiFadedStyle    = lipgloss.NewStyle().Foreground(colorDim)
	tuiSelectedStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

// =============================================================================
// Pointer events
// =============================================================================

// pointerBus turns terminal mouse events into a viewport.PointerSource.
type pointerBus struct {
	mu       sync.Mutex
	next     int
	handlers map[int]func(viewport.PointerEvent)
}

func newPointerBus() *pointerBus {
	return &pointerBus{handlers: make(map[int]func(viewport.PointerEvent))}
}

// Subscribe implements viewport.PointerSource.
func (b *pointerBus) Subscribe(h func(viewport.PointerEvent)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	b.handlers[id] = h
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, id)
	}
}

func (b *pointerBus) publish(ev viewport.PointerEvent) {
	b.mu.Lock()
	hs := make([]func(viewport.PointerEvent), 0, len(b.handlers))
	for _, h := range b.handlers {
		hs = append(hs, h)
	}
	b.mu.Unlock()
	for _, h := range hs {
		h(ev)
	}
}

// =============================================================================
// Model
// =============================================================================

type tickMsg time.Time

type loopDoneMsg struct{ err error }

// watchModel is the bubbletea model of `flowlane watch`. The refresh loop
// updates the session in the background; the model redraws from the
// session's latest snapshot on every tick and forwards key and mouse input
// to it.
type watchModel struct {
	ctx  context.Context
	ts   *timeline.Session
	loop *refresh.Loop
	bus  *pointerBus

	width, height int
	focus         string
	err           error
	loopErr       error
}

func newWatchModel(ctx context.Context, ts *timeline.Session, loop *refresh.Loop) watchModel {
	return watchModel{
		ctx:    ctx,
		ts:     ts,
		loop:   loop,
		bus:    newPointerBus(),
		width:  100,
		height: 30,
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(tick(), m.waitLoop())
}

func tick() tea.Cmd {
	return tea.Tick(redrawInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m watchModel) waitLoop() tea.Cmd {
	if m.loop == nil {
		return nil
	}
	return func() tea.Msg {
		return loopDoneMsg{err: m.loop.Wait()}
	}
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case tickMsg:
		return m, tick()
	case loopDoneMsg:
		m.loopErr = msg.err
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.MouseMsg:
		m.handleMouse(msg)
	}
	return m, nil
}

func (m watchModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	snap := m.ts.Snapshot()
	if snap == nil {
		if s := msg.String(); s == "q" || s == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil
	}

	var err error
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "down", "j":
		m.focus = stepFocus(snap, m.focus, 1)
	case "up", "k":
		m.focus = stepFocus(snap, m.focus, -1)
	case "enter", " ":
		if m.focus != "" {
			err = m.ts.Select(m.ctx, m.focus)
		}
	case "esc":
		if snap.Selected != "" {
			err = m.ts.Select(m.ctx, snap.Selected)
		}
	case "left", "h":
		err = m.ts.ScrollX(m.ctx, snap.CursorTs-windowStep(snap))
	case "right", "l":
		err = m.ts.ScrollX(m.ctx, snap.CursorTs+windowStep(snap))
	case "home":
		err = m.ts.ScrollX(m.ctx, snap.Origin)
	case "pgup":
		err = m.ts.ScrollY(m.ctx, snap.ScrollRatio-scrollStep)
	case "pgdown":
		err = m.ts.ScrollY(m.ctx, snap.ScrollRatio+scrollStep)
	case "a":
		err = m.ts.EnableAutoScroll(m.ctx)
	}
	m.err = err
	return m, nil
}

// handleMouse drags the scrollbar in the rightmost column. Terminal rows
// are mapped onto viewport pixels.
func (m *watchModel) handleMouse(msg tea.MouseMsg) {
	snap := m.ts.Snapshot()
	if snap == nil {
		return
	}
	y := float64(msg.Y-1) * m.pxPerRow(snap)

	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft || msg.X != m.width-1 || !snap.Scrollable {
			return
		}
		if _, err := m.ts.BeginDrag(m.ctx, m.bus, y); err != nil {
			m.err = err
		}
	case tea.MouseActionMotion:
		m.bus.publish(viewport.PointerEvent{Kind: viewport.PointerMove, Y: y})
	case tea.MouseActionRelease:
		m.bus.publish(viewport.PointerEvent{Kind: viewport.PointerUp, Y: y})
	}
}

// laneRows is the number of terminal rows available for lanes.
func (m watchModel) laneRows() int {
	return max(1, m.height-chromeRows)
}

func (m watchModel) pxPerRow(snap *timeline.Snapshot) float64 {
	return snap.ViewportHeight / float64(m.laneRows())
}

// windowStep is a quarter of the visible time window.
func windowStep(snap *timeline.Snapshot) int64 {
	return max(1, int64(snap.Geometry.WindowMs()/4))
}

// stepFocus moves the keyboard focus through the active stages in lane
// order.
func stepFocus(snap *timeline.Snapshot, focus string, dir int) string {
	var order []string
	for _, lane := range snap.Lanes {
		order = append(order, lane...)
	}
	if len(order) == 0 {
		return ""
	}
	idx := -1
	for i, id := range order {
		if id == focus {
			idx = i
			break
		}
	}
	switch {
	case idx < 0 && dir > 0:
		return order[0]
	case idx < 0:
		return order[len(order)-1]
	}
	return order[(idx+dir+len(order))%len(order)]
}

// =============================================================================
// View
// =============================================================================

func (m watchModel) View() string {
	snap := m.ts.Snapshot()
	if snap == nil {
		return "waiting for graph...\n"
	}

	var b strings.Builder
	b.WriteString(m.header(snap))
	b.WriteString("\n")

	cols := max(10, m.width-1)
	bar := scrollbar(snap, m.laneRows())
	first, last := snap.VisibleLanes()
	for row := 0; row < m.laneRows(); row++ {
		lane := first + row
		line := strings.Repeat(" ", cols)
		if lane < last && lane < len(snap.Lanes) {
			line = m.laneLine(snap, lane, cols)
		}
		b.WriteString(line)
		b.WriteString(bar[row])
		b.WriteString("\n")
	}

	b.WriteString(pendingLine(snap, m.width))
	b.WriteString("\n")
	b.WriteString(m.detailLine(snap))
	b.WriteString("\n")
	b.WriteString(tuiHelpStyle.Render("↑/↓ focus  ⏎ select  esc clear  ←/→ scroll  pgup/pgdn lanes  a follow  q quit"))
	return b.String()
}

func (m watchModel) header(snap *timeline.Snapshot) string {
	status := "finished"
	if snap.Live {
		status = "live"
	}
	if m.loop != nil {
		if st := m.loop.State(); st == refresh.Failed || st == refresh.Cancelled {
			status = st.String()
		}
	}
	follow := ""
	if snap.AutoScroll {
		follow = " · following"
	}
	from, to := snap.Geometry.VisibleRange(snap.CursorTs)
	return tuiHeaderStyle.Render(snap.GraphID) + tuiHelpStyle.Render(fmt.Sprintf(
		"  %s · %d lanes · %d pending · %s–%s%s",
		status, snap.LaneCount, len(snap.Pending),
		relMs(from-snap.Origin), relMs(to-snap.Origin), follow))
}

func relMs(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).String()
}

// laneLine draws one lane as cols cells. Bars are placed by their pixel
// rectangle relative to the visible window.
func (m watchModel) laneLine(snap *timeline.Snapshot, lane, cols int) string {
	cells := make([]string, cols)
	for i := range cells {
		cells[i] = " "
	}
	scale := float64(cols) / snap.Geometry.ViewportWidth

	if x, ok := snap.Geometry.CurrentLineX(snap.Origin, snap.MaxTimestamp); ok {
		if c := int(math.Floor((x + snap.SurfaceOffsetX) * scale)); c >= 0 && c < cols {
			cells[c] = tuiCurrentStyle.Render("│")
		}
	}

	for _, id := range snap.Lanes[lane] {
		n, ok := snap.Node(id)
		if !ok {
			continue
		}
		rect, ok := snap.Bar(n)
		if !ok {
			continue
		}
		start := int(math.Floor((rect.X + snap.SurfaceOffsetX) * scale))
		end := int(math.Ceil((rect.X + rect.Width + snap.SurfaceOffsetX) * scale))
		end = max(end, start+1)
		if end <= 0 || start >= cols {
			continue
		}

		style := stateStyle(n.State)
		switch {
		case id == m.focus:
			style = style.Inherit(tuiFocusStyle)
		case snap.Faded(id):
			style = tuiFadedStyle
		}
		if id == snap.Selected {
			style = style.Inherit(tuiSelectedStyle)
		}

		label := []rune(id)
		for c := max(0, start); c < min(cols, end); c++ {
			ch := "█"
			if i := c - start; i < len(label) && end-start > len(label) {
				ch = string(label[i])
			}
			cells[c] = style.Render(ch)
		}
	}
	return strings.Join(cells, "")
}

// scrollbar returns one cell per lane row: the thumb where the scrollbar
// metrics put it, the track elsewhere.
func scrollbar(snap *timeline.Snapshot, rows int) []string {
	out := make([]string, rows)
	if !snap.Scrollable || snap.ViewportHeight <= 0 {
		for i := range out {
			out[i] = " "
		}
		return out
	}
	scale := float64(rows) / snap.ViewportHeight
	top := int(math.Floor(snap.ThumbTop * scale))
	bottom := int(math.Ceil((snap.ThumbTop + snap.ThumbHeight) * scale))
	for i := range out {
		if i >= top && i < max(bottom, top+1) {
			out[i] = tuiThumbStyle.Render("┃")
		} else {
			out[i] = tuiTrackStyle.Render("│")
		}
	}
	return out
}

func pendingLine(snap *timeline.Snapshot, width int) string {
	if len(snap.Pending) == 0 {
		return tuiHelpStyle.Render("Pending Events: none")
	}
	labels := make([]string, len(snap.Pending))
	for i, n := range snap.Pending {
		labels[i] = sink.PendingLabel(n)
	}
	line := "Pending Events: " + strings.Join(labels, "  ")
	if r := []rune(line); width > 1 && len(r) > width {
		line = string(r[:width-1]) + "…"
	}
	return stateStyle(graph.StatePending).Render(line)
}

// detailLine describes the focused or selected stage, or the last error.
func (m watchModel) detailLine(snap *timeline.Snapshot) string {
	if m.err != nil {
		return styleIconError.Render(iconError) + " " + m.err.Error()
	}
	if m.loopErr != nil {
		return styleIconError.Render(iconError) + " refresh failed: " + m.loopErr.Error()
	}
	id := m.focus
	if id == "" {
		id = snap.Selected
	}
	n, ok := snap.Node(id)
	if !ok {
		return ""
	}
	rect, _ := snap.Bar(n)
	tip := strings.ReplaceAll(sink.Tooltip(n), "\n", " · ")
	return StyleValue.Render(sink.BarLabel(n, rect.DurationMs)) + "  " + tuiHelpStyle.Render(tip)
}
