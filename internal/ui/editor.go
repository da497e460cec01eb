package ui

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/jroimartin/gocui"

	"swashark/internal/httpclient"
)

type singleLineEditor struct{}

func (e singleLineEditor) Edit(v *gocui.View, key gocui.Key, ch rune, mod gocui.Modifier) {
	switch {
	case key == gocui.KeyBackspace || key == gocui.KeyBackspace2:
		v.EditDelete(true)
	case key == gocui.KeyDelete:
		v.EditDelete(false)
	case key == gocui.KeyArrowLeft:
		v.MoveCursor(-1, 0, false)
	case key == gocui.KeyArrowRight:
		v.MoveCursor(1, 0, false)
	case key == gocui.KeyHome:
		_ = v.SetCursor(0, 0)
	case key == gocui.KeyEnd || key == gocui.KeyCtrlE:
		_ = v.SetCursor(len(viewText(v)), 0)
	case key == gocui.KeySpace:
		v.EditWrite(' ')
	case key == gocui.KeyEnter:
		// handled by the keybinding
	case ch != 0 && mod == 0:
		v.EditWrite(ch)
	}
}

// beginEdit opens the centered single-line modal. target says where the
// value goes when confirmed.
func (a *App) beginEdit(target, title, value string) error {
	a.editing = true
	a.editTarget = target

	maxX, maxY := a.g.Size()
	width := 70
	if width > maxX-4 {
		width = maxX - 4
	}
	x0 := (maxX - width) / 2
	y0 := (maxY - 3) / 2

	ev, err := a.g.SetView("edit", x0, y0, x0+width, y0+2)
	if err != nil && err != gocui.ErrUnknownView {
		return err
	}
	ev.Title = fmt.Sprintf(" %s (enter=ok, esc=cancel) ", title)
	ev.Editable = true
	ev.Editor = singleLineEditor{}
	ev.Clear()
	fmt.Fprint(ev, value)
	_ = ev.SetOrigin(0, 0)
	_ = ev.SetCursor(len(value), 0)
	_, err = a.g.SetCurrentView("edit")
	return err
}

func (a *App) closeEdit() error {
	if !a.editing {
		return nil
	}
	if v, err := a.g.View("edit"); err == nil {
		v.Clear()
		_ = a.g.DeleteView("edit")
	}
	a.editing = false
	a.editTarget = ""
	return nil
}

func (a *App) confirmEdit(_ *gocui.Gui, v *gocui.View) error {
	if !a.editing || v == nil {
		return nil
	}
	val := strings.TrimSpace(viewText(v))
	target := a.editTarget
	if err := a.closeEdit(); err != nil {
		return err
	}
	a.applyEdit(target, val)
	return nil
}

// editBodyInEditor writes the body to a temp file and leaves the main loop;
// Run starts $EDITOR on it and rebuilds the Gui afterwards.
func (a *App) editBodyInEditor(*gocui.Gui, *gocui.View) error {
	if a.running {
		a.infoMsg = "wait for the request to finish"
		return nil
	}
	seed := a.input.Body
	if strings.TrimSpace(seed) == "" {
		seed = a.seedBody(a.input.ContentType)
	}
	if !strings.HasSuffix(seed, "\n") {
		seed += "\n"
	}

	ext := ".txt"
	if httpclient.IsJSON(a.input.ContentType) {
		ext = ".json"
	}
	f, err := os.CreateTemp("", "swashark-body-*"+ext)
	if err != nil {
		a.errorMsg = err.Error()
		return nil
	}
	defer f.Close()
	if _, err := f.WriteString(seed); err != nil {
		a.errorMsg = err.Error()
		return nil
	}
	a.suspendEditorFile = f.Name()
	return gocui.ErrQuit
}

func (a *App) runExternalEditor(file string) error {
	defer os.Remove(file)

	editor := strings.TrimSpace(os.Getenv("SWASHARK_EDITOR"))
	if editor == "" {
		editor = strings.TrimSpace(os.Getenv("EDITOR"))
	}
	args := splitCommand(editor)
	cmd := exec.Command(args[0], append(args[1:], file)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return err
	}

	b, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	body, warn := editedBody(string(b), a.input.ContentType)
	a.input.Body = body
	if a.op != nil {
		a.saveBody()
	}
	if warn != nil {
		a.infoMsg = warn.Error() + "; sent as typed"
	}
	return nil
}

// editedBody returns the editor text without the trailing newlines the
// editor appends. For JSON media types it also reports text that does not
// parse; the text is kept either way.
func editedBody(raw, contentType string) (string, error) {
	body := strings.TrimRight(raw, "\r\n")
	if !httpclient.IsJSON(contentType) || strings.TrimSpace(body) == "" {
		return body, nil
	}
	dec := json.NewDecoder(strings.NewReader(body))
	var v any
	if err := dec.Decode(&v); err != nil {
		return body, fmt.Errorf("invalid json body: %w", err)
	}
	if dec.More() {
		return body, errors.New("invalid json body: multiple json values")
	}
	return body, nil
}

// splitCommand splits an editor command on whitespace. Quoting is not
// supported.
func splitCommand(s string) []string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return []string{"vi"}
	}
	return fields
}
