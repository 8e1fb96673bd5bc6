// Package ui implements the keystroke inspector TUI: bytes go in at
// the bottom, decoded keystroke events scroll by above. It is a
// debugging lens over the parser, not a terminal emulator.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"

	"github.com/drake/vty/keystroke"
)

// BytesMsg carries raw bytes from a live source into the model.
type BytesMsg []byte

// sourceClosedMsg signals that the live source is done.
type sourceClosedMsg struct{}

// Inspector is the Bubble Tea model for the keystroke inspector.
type Inspector struct {
	stream *keystroke.Stream
	input  textinput.Model
	styles Styles

	source <-chan []byte // optional live byte feed

	rows   []string
	width  int
	height int
	closed bool
}

// NewInspector creates an inspector. source may be nil; bytes can
// always be typed into the input line.
func NewInspector(source <-chan []byte) Inspector {
	ti := textinput.New()
	ti.Prompt = "bytes> "
	ti.Placeholder = `text with \e \r \xNN escapes`
	ti.CharLimit = 0
	ti.Width = 60
	ti.Focus()

	return Inspector{
		stream: keystroke.New(0x9B),
		input:  ti,
		styles: DefaultStyles(),
		source: source,
		height: 24,
		width:  80,
	}
}

// Init starts listening on the live source, if there is one.
func (m Inspector) Init() tea.Cmd {
	return m.listen()
}

// listen waits for the next chunk from the live source.
func (m Inspector) listen() tea.Cmd {
	if m.source == nil {
		return nil
	}
	return func() tea.Msg {
		data, ok := <-m.source
		if !ok {
			return sourceClosedMsg{}
		}
		return BytesMsg(data)
	}
}

// Update handles tea messages.
func (m Inspector) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = msg.Width - len(m.input.Prompt) - 2
		return m, nil

	case BytesMsg:
		m.feed([]byte(msg))
		return m, m.listen()

	case sourceClosedMsg:
		m.closed = true
		m.feed(nil)
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			raw := ParseBytes(m.input.Value())
			m.input.Reset()
			if len(raw) > 0 {
				m.feed(raw)
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// feed pushes bytes through the stream and renders the new events.
// A nil chunk is the EOF signal, as it is for the stream itself.
func (m *Inspector) feed(data []byte) {
	m.stream.Input(data, nil)

	var k keystroke.Keystroke
	for m.stream.Get(&k) {
		m.rows = append(m.rows, m.renderKeystroke(&k))
	}
	if m.stream.EOF() {
		m.rows = append(m.rows, m.styles.Dim.Render("-- end of stream --"))
	}
}

// renderKeystroke formats one event as a log row.
func (m *Inspector) renderKeystroke(k *keystroke.Keystroke) string {
	style := m.styles.Dim
	switch k.Type {
	case keystroke.Char:
		style = m.styles.Char
	case keystroke.ESC:
		style = m.styles.ESC
	case keystroke.CSI:
		style = m.styles.CSI
	case keystroke.IAC:
		style = m.styles.IAC
	}

	row := style.Render(runewidth.FillRight(k.Type.String(), 6))
	row += runewidth.FillRight(FormatValue(k), 12)

	if flags := FormatFlags(k); flags != "" {
		row += m.styles.Flag.Render(runewidth.FillRight(flags, 18))
	} else {
		row += strings.Repeat(" ", 18)
	}

	if k.Len > 0 {
		row += m.styles.Dim.Render(fmt.Sprintf("[% x]", k.Bytes()))
	}
	return row
}

// FormatValue renders a keystroke's value for display.
func FormatValue(k *keystroke.Keystroke) string {
	switch {
	case k.Type == keystroke.Char && k.Value >= 0x21 && k.Value < 0x7F:
		return fmt.Sprintf("%q", rune(k.Value))
	case k.Type == keystroke.ESC || k.Type == keystroke.CSI:
		if k.Value >= 0x21 && k.Value < 0x7F {
			return fmt.Sprintf("%q", rune(k.Value))
		}
	}
	return fmt.Sprintf("0x%02X", k.Value)
}

// FormatFlags renders a keystroke's flags for display.
func FormatFlags(k *keystroke.Keystroke) string {
	var parts []string
	if k.Flags&keystroke.Broken != 0 {
		parts = append(parts, "broken")
	}
	if k.Flags&keystroke.Truncated != 0 {
		parts = append(parts, "truncated")
	}
	return strings.Join(parts, ",")
}

// View renders the inspector.
func (m Inspector) View() string {
	var b strings.Builder

	b.WriteString(m.styles.Title.Render("keystroke inspector"))
	b.WriteString("\n\n")

	// Show the newest rows that fit above the input line.
	avail := m.height - 5
	if avail < 1 {
		avail = 1
	}
	rows := m.rows
	if len(rows) > avail {
		rows = rows[len(rows)-avail:]
	}
	for _, r := range rows {
		b.WriteString(r)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.closed {
		b.WriteString(m.styles.Dim.Render("source closed; ctrl+c to exit"))
	} else {
		b.WriteString(m.input.View())
	}
	return b.String()
}
