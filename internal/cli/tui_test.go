package cli

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/matzehuels/flowlane/pkg/graph"
	"github.com/matzehuels/flowlane/pkg/timeline"
	"github.com/matzehuels/flowlane/pkg/viewport"
)

// subscribers returns the number of live pointer subscriptions.
func (b *pointerBus) subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers)
}

// newTestModel lays out testGraph in a viewport short enough to scroll.
func newTestModel(t *testing.T) watchModel {
	t.Helper()
	opts := timeline.DefaultOptions()
	opts.ViewportHeight = 30

	g := testGraph()
	ts, err := timeline.NewSession(opts, graph.WallClock{})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(ts.Close)
	if err := ts.Refresh(context.Background(), g); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	return newWatchModel(context.Background(), ts, nil)
}

func press(m watchModel, keys ...tea.KeyMsg) (watchModel, tea.Cmd) {
	var cmd tea.Cmd
	for _, k := range keys {
		var next tea.Model
		next, cmd = m.Update(k)
		m = next.(watchModel)
	}
	return m, cmd
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestStepFocus(t *testing.T) {
	snap := &timeline.Snapshot{Lanes: [][]string{{"0"}, {"1", "2"}, {"3"}}}

	tests := []struct {
		name  string
		focus string
		dir   int
		want  string
	}{
		{"first from none", "", 1, "0"},
		{"last from none", "", -1, "3"},
		{"next within lane", "1", 1, "2"},
		{"next across lanes", "2", 1, "3"},
		{"wraps forward", "3", 1, "0"},
		{"wraps backward", "0", -1, "3"},
		{"unknown focus restarts", "9", 1, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stepFocus(snap, tt.focus, tt.dir); got != tt.want {
				t.Errorf("stepFocus(%q, %d) = %q, want %q", tt.focus, tt.dir, got, tt.want)
			}
		})
	}

	if got := stepFocus(&timeline.Snapshot{}, "", 1); got != "" {
		t.Errorf("empty layout focus = %q, want none", got)
	}
}

func TestWatchModelSelect(t *testing.T) {
	m := newTestModel(t)

	m, _ = press(m, tea.KeyMsg{Type: tea.KeyDown})
	if m.focus == "" {
		t.Fatal("down should focus the first stage")
	}
	focus := m.focus

	m, _ = press(m, tea.KeyMsg{Type: tea.KeyEnter})
	snap := m.ts.Snapshot()
	if snap.Selected != focus {
		t.Fatalf("enter selected %q, want %q", snap.Selected, focus)
	}
	if !snap.Highlighted(focus) {
		t.Errorf("selected stage %s should be highlighted", focus)
	}

	m, _ = press(m, tea.KeyMsg{Type: tea.KeyEsc})
	if got := m.ts.Snapshot().Selected; got != "" {
		t.Errorf("esc left %q selected", got)
	}
	if m.err != nil {
		t.Errorf("unexpected error: %v", m.err)
	}
}

func TestWatchModelScrollKeys(t *testing.T) {
	m := newTestModel(t)
	if !m.ts.Snapshot().Scrollable {
		t.Fatal("test layout should be scrollable")
	}

	m, _ = press(m, tea.KeyMsg{Type: tea.KeyPgDown})
	if got := m.ts.Snapshot().ScrollRatio; got != scrollStep {
		t.Errorf("pgdown ratio = %v, want %v", got, scrollStep)
	}
	m, _ = press(m, tea.KeyMsg{Type: tea.KeyPgUp}, tea.KeyMsg{Type: tea.KeyPgUp})
	if got := m.ts.Snapshot().ScrollRatio; got != 0 {
		t.Errorf("pgup ratio = %v, want clamped to 0", got)
	}

	m, _ = press(m, runeKey('a'))
	if !m.ts.Snapshot().AutoScroll {
		t.Error("a should re-enable auto-scroll")
	}
}

func TestWatchModelQuit(t *testing.T) {
	for _, k := range []tea.KeyMsg{runeKey('q'), {Type: tea.KeyCtrlC}} {
		_, cmd := press(newTestModel(t), k)
		if cmd == nil {
			t.Fatalf("%s returned no command", k)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("%s should quit", k)
		}
	}
}

func TestWatchModelScrollbarDrag(t *testing.T) {
	m := newTestModel(t)
	right := m.width - 1

	mouse := func(action tea.MouseAction, x, y int) {
		next, _ := m.Update(tea.MouseMsg{X: x, Y: y, Action: action, Button: tea.MouseButtonLeft})
		m = next.(watchModel)
	}

	mouse(tea.MouseActionPress, 0, 1)
	if n := m.bus.subscribers(); n != 0 {
		t.Fatalf("press outside the scrollbar started a drag (%d subscribers)", n)
	}

	mouse(tea.MouseActionPress, right, 1)
	if n := m.bus.subscribers(); n != 1 {
		t.Fatalf("press on the scrollbar should start a drag, got %d subscribers", n)
	}
	mouse(tea.MouseActionMotion, right, 6)
	if got := m.ts.Snapshot().ScrollRatio; got <= 0 {
		t.Errorf("dragging down should scroll, ratio = %v", got)
	}

	mouse(tea.MouseActionRelease, right, 6)
	if n := m.bus.subscribers(); n != 0 {
		t.Errorf("release should end the drag, %d subscribers left", n)
	}
}

func TestPointerBus(t *testing.T) {
	b := newPointerBus()
	var got []viewport.PointerKind
	unsub := b.Subscribe(func(ev viewport.PointerEvent) { got = append(got, ev.Kind) })

	b.publish(viewport.PointerEvent{Kind: viewport.PointerMove})
	unsub()
	b.publish(viewport.PointerEvent{Kind: viewport.PointerUp})

	if len(got) != 1 || got[0] != viewport.PointerMove {
		t.Errorf("received %v, want one move", got)
	}
}

func TestWatchModelView(t *testing.T) {
	m := newTestModel(t)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 20})
	m = next.(watchModel)

	view := m.View()
	for _, want := range []string{"run-1", "finished", "Pending Events", "q quit"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
	if rows := strings.Count(view, "\n"); rows != m.laneRows()+3 {
		t.Errorf("view has %d line breaks, want %d", rows, m.laneRows()+3)
	}
}

func TestWatchModelViewWithoutGraph(t *testing.T) {
	ts, err := timeline.NewSession(timeline.DefaultOptions(), graph.WallClock{})
	if err != nil {
		t.Fatal(err)
	}
	defer ts.Close()

	m := newWatchModel(context.Background(), ts, nil)
	if !strings.Contains(m.View(), "waiting") {
		t.Errorf("view before the first refresh = %q", m.View())
	}
	if _, cmd := press(m, runeKey('q')); cmd == nil {
		t.Error("q should quit before the first refresh")
	}
}
