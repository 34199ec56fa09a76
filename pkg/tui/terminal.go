package tui

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/vt"
	"github.com/creack/pty"
)

// composeTickMsg triggers a re-render of the compose pane.
type composeTickMsg struct{}

// composeExitMsg signals that the editor has exited.
type composeExitMsg struct{ err error }

// composeTick ticks at ~30fps while the editor runs.
func composeTick() tea.Cmd {
	return tea.Tick(33*time.Millisecond, func(time.Time) tea.Msg {
		return composeTickMsg{}
	})
}

// ComposePane runs the user's editor on a scratch file inside an embedded
// virtual terminal backed by a PTY, so article content can be written with
// a real editor without leaving the blog.
type ComposePane struct {
	emulator *vt.Emulator
	ptmx     *os.File
	cmd      *exec.Cmd
	path     string

	mu      sync.Mutex // guards done and exitErr
	done    bool
	exitErr error
}

// editorCommand returns the command that edits path with editor, run
// through the user's shell so editor arguments and config are honoured.
func editorCommand(editor, path string) *exec.Cmd {
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = "vi"
	}
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/sh"
	}
	return exec.Command(shell, "-c", fmt.Sprintf("%s %q", editor, path))
}

// OpenCompose writes content to a scratch file and starts editor on it in a
// w x h terminal.
func OpenCompose(editor, content string, w, h int) (*ComposePane, tea.Cmd, error) {
	f, err := os.CreateTemp("", "blog-article-*.md")
	if err != nil {
		return nil, nil, err
	}
	path := f.Name()
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		os.Remove(path)
		return nil, nil, err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, nil, err
	}

	cmd := editorCommand(editor, path)
	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: uint16(h), Cols: uint16(w)})
	if err != nil {
		os.Remove(path)
		return nil, nil, err
	}

	c := &ComposePane{
		emulator: vt.NewEmulator(w, h),
		ptmx:     ptmx,
		cmd:      cmd,
		path:     path,
	}
	go func() {
		_, _ = io.Copy(c.emulator, ptmx)
		waitErr := cmd.Wait()
		c.mu.Lock()
		c.done = true
		c.exitErr = waitErr
		c.mu.Unlock()
	}()
	return c, composeTick(), nil
}

// Update forwards keys to the editor and polls for its exit.
func (c *ComposePane) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if b := encodeKey(msg); len(b) > 0 {
			_, _ = c.ptmx.Write(b)
		}
		return nil

	case composeTickMsg:
		c.mu.Lock()
		done, err := c.done, c.exitErr
		c.mu.Unlock()
		if done {
			return func() tea.Msg { return composeExitMsg{err: err} }
		}
		return composeTick()
	}
	return nil
}

// View renders the editor's screen.
func (c *ComposePane) View() string {
	return c.emulator.Render()
}

// Resize resizes the emulator and PTY.
func (c *ComposePane) Resize(w, h int) {
	c.emulator.Resize(w, h)
	_ = pty.Setsize(c.ptmx, &pty.Winsize{Rows: uint16(h), Cols: uint16(w)})
}

// Result returns the edited text.
func (c *ComposePane) Result() (string, error) {
	b, err := os.ReadFile(c.path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Close kills the editor if it's still running and removes the scratch file.
func (c *ComposePane) Close() {
	if c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
	_ = c.ptmx.Close()
	_ = os.Remove(c.path)
}

var keySequences = map[tea.KeyType]string{
	tea.KeyEnter:     "\r",
	tea.KeyBackspace: "\x7f",
	tea.KeyTab:       "\t",
	tea.KeyShiftTab:  "\x1b[Z",
	tea.KeySpace:     " ",
	tea.KeyEsc:       "\x1b",
	tea.KeyUp:        "\x1b[A",
	tea.KeyDown:      "\x1b[B",
	tea.KeyRight:     "\x1b[C",
	tea.KeyLeft:      "\x1b[D",
	tea.KeyHome:      "\x1b[H",
	tea.KeyEnd:       "\x1b[F",
	tea.KeyPgUp:      "\x1b[5~",
	tea.KeyPgDown:    "\x1b[6~",
	tea.KeyInsert:    "\x1b[2~",
	tea.KeyDelete:    "\x1b[3~",
	tea.KeyF1:        "\x1bOP",
	tea.KeyF2:        "\x1bOQ",
	tea.KeyF3:        "\x1bOR",
	tea.KeyF4:        "\x1bOS",
	tea.KeyF5:        "\x1b[15~",
	tea.KeyF6:        "\x1b[17~",
	tea.KeyF7:        "\x1b[18~",
	tea.KeyF8:        "\x1b[19~",
	tea.KeyF9:        "\x1b[20~",
	tea.KeyF10:       "\x1b[21~",
	tea.KeyF11:       "\x1b[23~",
	tea.KeyF12:       "\x1b[24~",
}

// encodeKey converts a key press into the bytes a terminal would send.
func encodeKey(msg tea.KeyMsg) []byte {
	if msg.Type == tea.KeyRunes {
		b := []byte(string(msg.Runes))
		if msg.Alt {
			b = append([]byte{0x1b}, b...)
		}
		return b
	}
	if s, ok := keySequences[msg.Type]; ok {
		return []byte(s)
	}
	// Remaining control keys (ctrl+a through ctrl+z and friends) are their
	// own byte values.
	if msg.Type >= 0 && msg.Type < 0x20 {
		return []byte{byte(msg.Type)}
	}
	return nil
}
