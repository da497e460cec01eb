package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jroimartin/gocui"
	"github.com/rs/zerolog"

	"swashark/internal/aigen"
	"swashark/internal/config"
	"swashark/internal/httpclient"
	"swashark/internal/model"
	"swashark/internal/openapi"
	"swashark/internal/session"
	"swashark/internal/store"
)

type screen int

const (
	screenEndpoints screen = iota
	screenDetail
	screenBuilder
	screenResponse
)

type focusPane int

const (
	paneParams focusPane = iota
	paneBody
	paneHeaders
)

// Options wires the terminal UI to the session core.
type Options struct {
	Sessions  *session.Manager
	Version   string
	Cache     *store.SessionCache
	Creds     *store.Credentials
	UI        *store.UIState
	Generator *aigen.Generator
	Log       zerolog.Logger
}

type App struct {
	opts Options
	log  zerolog.Logger

	g *gocui.Gui

	scr  screen
	sess *session.Session

	// endpoints screen
	endpoints []model.Endpoint
	filter    string
	filtered  []int
	selected  int

	// detail screen
	op         *openapi.Operation
	detailRows []detailRow
	expandAll  bool

	// builder screen
	input      httpclient.Input
	fieldErrs  map[string]string
	pane       focusPane
	paramRows  []string
	bodyRows   []bodyRow
	headerRows int
	editing    bool
	editTarget string

	running  bool
	busy     string
	lastExec *httpclient.Execution
	showCurl bool

	auth authState

	suspendEditorFile string
	errorMsg          string
	infoMsg           string
}

func NewApp(opts Options) *App {
	return &App{opts: opts, log: opts.Log, scr: screenEndpoints, fieldErrs: map[string]string{}}
}

// Init loads the selected version and prepares the endpoint list.
func (a *App) Init(ctx context.Context) error {
	versions := a.opts.Sessions.Versions()
	if len(versions) == 0 {
		return errors.New("spec required (use --spec-url or --spec-file, or set SWASHARK_SPEC_URL/SWASHARK_SPEC_FILE)")
	}
	name := a.opts.Version
	if name == "" && a.opts.UI != nil {
		name = a.opts.UI.LastVersion()
	}
	if !hasVersion(versions, name) {
		name = versions[0].Name
	}
	sess, err := a.opts.Sessions.Open(ctx, name)
	if err != nil {
		return err
	}
	a.setSession(sess)
	return nil
}

func hasVersion(versions []config.Version, name string) bool {
	for _, v := range versions {
		if v.Name == name {
			return true
		}
	}
	return false
}

func (a *App) setSession(sess *session.Session) {
	a.sess = sess
	a.endpoints = sess.Catalog.Endpoints()
	a.filter = ""
	a.selected = 0
	a.op = nil
	a.lastExec = nil
	a.scr = screenEndpoints
	a.recomputeFilter()
	if a.opts.UI != nil {
		a.opts.UI.SetLastVersion(sess.Version)
	}
}

func (a *App) Run() error {
	// gocui has no suspend/resume, so running $EDITOR means leaving the main
	// loop and building a new Gui afterwards.
	for {
		g, err := gocui.NewGui(gocui.OutputNormal)
		if err != nil {
			return err
		}
		a.g = g
		a.applyTheme()

		g.Cursor = true
		g.InputEsc = true
		g.SetManagerFunc(a.layout)

		if err := a.bindKeys(); err != nil {
			g.Close()
			return err
		}

		err = g.MainLoop()
		g.Close()

		if a.suspendEditorFile != "" {
			file := a.suspendEditorFile
			a.suspendEditorFile = ""
			if err := a.runExternalEditor(file); err != nil {
				a.errorMsg = err.Error()
			}
			continue
		}

		if err != nil && err != gocui.ErrQuit {
			return err
		}
		return nil
	}
}

func (a *App) applyTheme() {
	theme := store.ThemeDark
	if a.opts.UI != nil {
		theme = a.opts.UI.Theme()
	}
	if theme == store.ThemeLight {
		a.g.BgColor = gocui.ColorWhite
		a.g.FgColor = gocui.ColorBlack
		return
	}
	a.g.BgColor = gocui.ColorBlack
	a.g.FgColor = gocui.ColorWhite
}

func (a *App) layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()

	if v, err := g.SetView("header", 0, 0, maxX-1, 2); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Frame = false
	}
	a.renderHeader()

	if v, err := g.SetView("footer", 0, maxY-2, maxX-1, maxY); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Frame = false
	}
	a.renderFooter()

	if a.auth.open {
		return a.layoutAuth(maxX, maxY)
	}

	switch a.scr {
	case screenEndpoints:
		return a.layoutEndpoints(maxX, maxY)
	case screenDetail:
		return a.layoutDetail(maxX, maxY)
	case screenBuilder:
		return a.layoutBuilder(maxX, maxY)
	case screenResponse:
		return a.layoutResponse(maxX, maxY)
	default:
		return nil
	}
}

var mainViews = []string{"filter", "endpoints", "detail", "selected", "params", "body", "headers", "edit", "response"}

func (a *App) clearMainViews(keep []string) {
	keepSet := map[string]bool{"header": true, "footer": true}
	for _, k := range keep {
		keepSet[k] = true
	}
	for _, n := range mainViews {
		if keepSet[n] {
			continue
		}
		if v, err := a.g.View(n); err == nil {
			v.Clear()
			_ = a.g.DeleteView(n)
		}
	}
}

func (a *App) bindKeys() error {
	g := a.g
	bind := func(view string, key any, h func(*gocui.Gui, *gocui.View) error) error {
		return g.SetKeybinding(view, key, gocui.ModNone, h)
	}

	global := []struct {
		key any
		h   func(*gocui.Gui, *gocui.View) error
	}{
		{gocui.KeyCtrlC, a.quit},
		{gocui.KeyEsc, a.back},
		{gocui.KeyCtrlA, a.openAuth},
		{gocui.KeyCtrlV, a.nextVersion},
		{gocui.KeyCtrlT, a.toggleTheme},
		{gocui.KeyCtrlX, a.clearCache},
		{gocui.KeyCtrlR, a.executeRequest},
		{gocui.KeyTab, a.tabPane},
	}
	for _, b := range global {
		if err := bind("", b.key, b.h); err != nil {
			return err
		}
	}

	if err := a.bindEndpoints(bind); err != nil {
		return err
	}
	if err := a.bindDetail(bind); err != nil {
		return err
	}
	if err := a.bindBuilder(bind); err != nil {
		return err
	}
	if err := a.bindResponse(bind); err != nil {
		return err
	}
	return a.bindAuth(bind)
}

type binder func(view string, key any, h func(*gocui.Gui, *gocui.View) error) error

func (a *App) quit(*gocui.Gui, *gocui.View) error { return gocui.ErrQuit }

func (a *App) back(*gocui.Gui, *gocui.View) error {
	if a.auth.open {
		a.closeAuth()
		return nil
	}
	if a.editing {
		return a.closeEdit()
	}
	switch a.scr {
	case screenResponse:
		a.scr = screenBuilder
	case screenBuilder:
		a.scr = screenDetail
	case screenDetail:
		a.scr = screenEndpoints
	case screenEndpoints:
		// no previous screen
	}
	a.errorMsg = ""
	a.infoMsg = ""
	return nil
}

// nextVersion switches to the following configured version and rebuilds
// the session from a freshly fetched document.
func (a *App) nextVersion(*gocui.Gui, *gocui.View) error {
	if a.editing || a.auth.open || a.running {
		return nil
	}
	versions := a.opts.Sessions.Versions()
	if len(versions) < 2 {
		a.infoMsg = "only one version configured"
		return nil
	}
	next := versions[0].Name
	for i, v := range versions {
		if v.Name == a.sess.Version {
			next = versions[(i+1)%len(versions)].Name
		}
	}
	sess, err := a.opts.Sessions.Switch(context.Background(), next)
	if err != nil {
		a.errorMsg = err.Error()
		return nil
	}
	a.setSession(sess)
	a.infoMsg = "switched to " + next
	return nil
}

func (a *App) toggleTheme(*gocui.Gui, *gocui.View) error {
	if a.opts.UI == nil {
		return nil
	}
	next := store.ThemeLight
	if a.opts.UI.Theme() == store.ThemeLight {
		next = store.ThemeDark
	}
	a.opts.UI.SetTheme(next)
	a.applyTheme()
	return nil
}

func (a *App) clearCache(*gocui.Gui, *gocui.View) error {
	if a.editing || a.auth.open || a.opts.Cache == nil {
		return nil
	}
	a.opts.Cache.Clear()
	a.infoMsg = "session cache cleared"
	return nil
}

func (a *App) renderHeader() {
	v, err := a.g.View("header")
	if err != nil {
		return
	}
	v.Clear()
	title := "swashark"
	if a.sess != nil {
		title = fmt.Sprintf("%s  -  %s %s  [%s]", title, a.sess.Catalog.Title, a.sess.Catalog.Version, a.sess.Version)
	}
	fmt.Fprintln(v, colorGreen+title+colorReset)
}

func (a *App) renderFooter() {
	v, err := a.g.View("footer")
	if err != nil {
		return
	}
	v.Clear()
	if a.errorMsg != "" {
		fmt.Fprint(v, colorRed+a.errorMsg+colorReset)
		return
	}
	if a.running {
		fmt.Fprint(v, colorYellow+a.busy+colorReset)
		return
	}
	if a.infoMsg != "" {
		fmt.Fprint(v, colorCyan+a.infoMsg+colorReset)
		return
	}

	var msg string
	switch {
	case a.auth.open:
		msg = "auth: enter=edit/save   ctrl+d=clear   esc=close"
	case a.scr == screenEndpoints:
		msg = "type: filter   enter: open   ctrl+a: auth   ctrl+v: version   ctrl+t: theme   ctrl+x: clear cache   ctrl+c: quit"
	case a.scr == screenDetail:
		msg = "enter: expand/collapse   x: expand all   m: minimize   t: try it out   ctrl+a: auth   esc: back"
	case a.scr == screenBuilder:
		msg = "tab: switch pane   enter: edit   d: reset   ctrl+r: send   esc: back"
		if a.pane == paneBody {
			msg = "tab: switch pane   enter: edit   c: content type   g: generate   d: reset   ctrl+r: send   esc: back"
		}
	case a.scr == screenResponse:
		msg = "up/down: scroll   c: toggle curl   r: rerun   enter: endpoints   esc: back"
	}
	fmt.Fprint(v, msg)
}

func viewText(v *gocui.View) string {
	return strings.TrimSuffix(v.Buffer(), "\n")
}

// cursorRow is the buffer line under the cursor of v.
func cursorRow(v *gocui.View) int {
	_, cy := v.Cursor()
	_, oy := v.Origin()
	return oy + cy
}

func moveCursor(v *gocui.View, delta, rows int) {
	ox, oy := v.Origin()
	cx, cy := v.Cursor()
	abs := oy + cy + delta
	if abs < 0 || abs >= rows {
		return
	}
	_, h := v.Size()
	newY := cy + delta
	switch {
	case newY < 0:
		_ = v.SetOrigin(ox, oy-1)
	case newY >= h:
		_ = v.SetOrigin(ox, oy+1)
	default:
		_ = v.SetCursor(cx, newY)
	}
}
