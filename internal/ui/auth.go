package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jroimartin/gocui"

	"swashark/internal/model"
	"swashark/internal/store"
)

type authState struct {
	open     bool
	editing  bool
	schemes  []string
	selected int
	value    string
	err      string
}

func (a *App) bindAuth(bind binder) error {
	if err := bind("auth-schemes", gocui.KeyArrowDown, a.moveAuthSel(1)); err != nil {
		return err
	}
	if err := bind("auth-schemes", gocui.KeyArrowUp, a.moveAuthSel(-1)); err != nil {
		return err
	}
	if err := bind("auth-schemes", gocui.KeyEnter, a.authEnter); err != nil {
		return err
	}
	if err := bind("auth-schemes", gocui.KeyCtrlD, a.clearAuth); err != nil {
		return err
	}
	if err := bind("auth-schemes", gocui.KeyBackspace, a.authBackspace); err != nil {
		return err
	}
	if err := bind("auth-schemes", gocui.KeyBackspace2, a.authBackspace); err != nil {
		return err
	}
	for r := rune(32); r <= rune(126); r++ {
		if err := bind("auth-schemes", r, a.authTypeRune(r)); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) layoutAuth(maxX, maxY int) error {
	width := maxX - 10
	if width > 100 {
		width = 100
	}
	if width < 40 {
		width = 40
	}
	height := 14
	if height > maxY-4 {
		height = maxY - 4
	}
	if height < 10 {
		height = 10
	}
	x0 := (maxX - width) / 2
	y0 := (maxY - height) / 2
	x1 := x0 + width
	y1 := y0 + height

	if v, err := a.g.SetView("auth-box", x0, y0, x1, y1); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Authorize"
	}
	leftW := width / 3
	if leftW < 14 {
		leftW = 14
	}
	if v, err := a.g.SetView("auth-schemes", x0+1, y0+1, x0+leftW, y1-1); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Schemes"
		v.Highlight = true
		v.SelFgColor = gocui.ColorBlack
		v.SelBgColor = gocui.ColorGreen
	}
	if v, err := a.g.SetView("auth-form", x0+leftW+1, y0+1, x1-1, y1-1); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Credential"
		v.Wrap = true
	}
	a.renderAuth()

	if _, err := a.g.SetCurrentView("auth-schemes"); err != nil {
		return err
	}
	_, _ = a.g.SetViewOnTop("auth-box")
	_, _ = a.g.SetViewOnTop("auth-schemes")
	_, _ = a.g.SetViewOnTop("auth-form")
	return nil
}

func (a *App) openAuth(*gocui.Gui, *gocui.View) error {
	if a.auth.open || a.editing || a.sess == nil {
		return nil
	}
	if len(a.sess.Catalog.Schemes) == 0 {
		a.errorMsg = "document declares no security schemes"
		return nil
	}
	names := make([]string, 0, len(a.sess.Catalog.Schemes))
	for name := range a.sess.Catalog.Schemes {
		names = append(names, name)
	}
	sort.Strings(names)
	a.auth = authState{open: true, schemes: names}
	a.errorMsg = ""
	return nil
}

func (a *App) closeAuth() {
	a.auth = authState{}
	for _, name := range []string{"auth-form", "auth-schemes", "auth-box"} {
		if v, err := a.g.View(name); err == nil {
			v.Clear()
			_ = a.g.DeleteView(name)
		}
	}
}

func (a *App) activeScheme() (string, model.SecurityScheme) {
	if len(a.auth.schemes) == 0 {
		return "", model.SecurityScheme{}
	}
	name := a.auth.schemes[a.auth.selected]
	return name, a.sess.Catalog.Schemes[name]
}

func (a *App) moveAuthSel(delta int) func(*gocui.Gui, *gocui.View) error {
	return func(*gocui.Gui, *gocui.View) error {
		if !a.auth.open || a.auth.editing || len(a.auth.schemes) == 0 {
			return nil
		}
		a.auth.selected += delta
		if a.auth.selected < 0 {
			a.auth.selected = 0
		}
		if a.auth.selected >= len(a.auth.schemes) {
			a.auth.selected = len(a.auth.schemes) - 1
		}
		a.auth.err = ""
		return nil
	}
}

// authEnter starts editing the selected scheme, or saves the typed value
// when already editing. Saving an empty value removes the credential.
func (a *App) authEnter(*gocui.Gui, *gocui.View) error {
	if !a.auth.open || a.opts.Creds == nil {
		return nil
	}
	name, _ := a.activeScheme()
	if name == "" {
		return nil
	}
	if !a.auth.editing {
		a.auth.editing = true
		a.auth.value, _ = a.opts.Creds.Get(name)
		a.auth.err = ""
		return nil
	}
	val := strings.TrimSpace(a.auth.value)
	if val == "" {
		a.opts.Creds.Remove(name)
	} else {
		a.opts.Creds.Set(name, val)
	}
	a.log.Debug().Str("scheme", name).Bool("set", val != "").Msg("credential updated")
	a.auth.editing = false
	a.auth.value = ""
	return nil
}

func (a *App) authTypeRune(r rune) func(*gocui.Gui, *gocui.View) error {
	return func(*gocui.Gui, *gocui.View) error {
		if !a.auth.open || !a.auth.editing {
			return nil
		}
		a.auth.value += string(r)
		return nil
	}
}

func (a *App) authBackspace(*gocui.Gui, *gocui.View) error {
	if !a.auth.open || !a.auth.editing || a.auth.value == "" {
		return nil
	}
	a.auth.value = a.auth.value[:len(a.auth.value)-1]
	return nil
}

func (a *App) clearAuth(*gocui.Gui, *gocui.View) error {
	if !a.auth.open || a.opts.Creds == nil {
		return nil
	}
	name, _ := a.activeScheme()
	if name == "" {
		return nil
	}
	a.opts.Creds.Remove(name)
	a.auth.editing = false
	a.auth.value = ""
	return nil
}

func (a *App) renderAuth() {
	if v, err := a.g.View("auth-schemes"); err == nil {
		v.Clear()
		for _, name := range a.auth.schemes {
			status := "[ ]"
			if a.opts.Creds != nil {
				if _, ok := a.opts.Creds.Get(name); ok {
					status = "[x]"
				}
			}
			fmt.Fprintf(v, "%s %s\n", status, name)
		}
		_ = v.SetCursor(0, a.auth.selected)
	}

	v, err := a.g.View("auth-form")
	if err != nil {
		return
	}
	v.Clear()
	name, s := a.activeScheme()
	if name == "" {
		fmt.Fprintln(v, "No security schemes.")
		return
	}
	if a.auth.err != "" {
		fmt.Fprintf(v, "%serror: %s%s\n\n", colorRed, a.auth.err, colorReset)
	}
	fmt.Fprintf(v, "scheme: %s\n", name)
	fmt.Fprintf(v, "type:   %s\n", schemeLabel(s))
	if d := strings.TrimSpace(s.Description); d != "" {
		fmt.Fprintf(v, "%s%s%s\n", colorDim, d, colorReset)
	}
	fmt.Fprintln(v)

	if a.auth.editing {
		fmt.Fprintf(v, "%s:\n> %s\n", credentialPrompt(s), a.auth.value)
		return
	}
	stored := ""
	if a.opts.Creds != nil {
		stored, _ = a.opts.Creds.Get(name)
	}
	if stored == "" {
		fmt.Fprintln(v, colorDim+"(not set)"+colorReset)
		return
	}
	fmt.Fprintf(v, "value: %s\n", store.Mask(stored))
	if info, ok := store.DescribeToken(stored, time.Now()); ok {
		if info.Subject != "" {
			fmt.Fprintf(v, "sub:   %s\n", info.Subject)
		}
		if info.Issuer != "" {
			fmt.Fprintf(v, "iss:   %s\n", info.Issuer)
		}
		if !info.ExpiresAt.IsZero() {
			exp := info.ExpiresAt.Local().Format(time.RFC1123)
			if info.Expired {
				exp = colorRed + exp + " (expired)" + colorReset
			}
			fmt.Fprintf(v, "exp:   %s\n", exp)
		}
	}
}

func schemeLabel(s model.SecurityScheme) string {
	switch s.Type {
	case model.SchemeHTTP:
		return "http " + s.Scheme
	case model.SchemeAPIKey:
		return fmt.Sprintf("api key (%s %q)", s.In, s.ParamName)
	default:
		return string(s.Type)
	}
}

func credentialPrompt(s model.SecurityScheme) string {
	switch {
	case s.Type == model.SchemeHTTP && s.Scheme == "basic":
		return "username:password"
	case s.Type == model.SchemeAPIKey:
		return "api key"
	default:
		return "token"
	}
}
