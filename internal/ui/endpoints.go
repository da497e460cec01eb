package ui

import (
	"fmt"

	"github.com/jroimartin/gocui"
)

func (a *App) bindEndpoints(bind binder) error {
	if err := bind("endpoints", gocui.KeyArrowDown, a.moveSel(1)); err != nil {
		return err
	}
	if err := bind("endpoints", gocui.KeyArrowUp, a.moveSel(-1)); err != nil {
		return err
	}
	if err := bind("endpoints", gocui.KeyEnter, a.openDetail); err != nil {
		return err
	}
	if err := bind("endpoints", gocui.KeyBackspace, a.filterBackspace); err != nil {
		return err
	}
	if err := bind("endpoints", gocui.KeyBackspace2, a.filterBackspace); err != nil {
		return err
	}
	// printable ASCII types into the filter
	for r := rune(32); r <= rune(126); r++ {
		if err := bind("endpoints", r, a.appendFilterRune(r)); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) layoutEndpoints(maxX, maxY int) error {
	a.clearMainViews([]string{"filter", "endpoints"})

	if v, err := a.g.SetView("filter", 0, 2, maxX-1, 4); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Filter"
	}
	if v, err := a.g.SetView("endpoints", 0, 4, maxX-1, maxY-3); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Endpoints"
		v.Highlight = true
		v.SelFgColor = gocui.ColorBlack
		v.SelBgColor = gocui.ColorGreen
	}
	a.renderFilter()
	a.renderEndpoints()
	_, err := a.g.SetCurrentView("endpoints")
	return err
}

func (a *App) appendFilterRune(r rune) func(*gocui.Gui, *gocui.View) error {
	return func(*gocui.Gui, *gocui.View) error {
		if a.scr != screenEndpoints || a.editing || a.auth.open {
			return nil
		}
		a.filter += string(r)
		a.selected = 0
		a.recomputeFilter()
		return nil
	}
}

func (a *App) filterBackspace(*gocui.Gui, *gocui.View) error {
	if a.scr != screenEndpoints || len(a.filter) == 0 {
		return nil
	}
	a.filter = a.filter[:len(a.filter)-1]
	a.recomputeFilter()
	return nil
}

func (a *App) recomputeFilter() {
	a.filtered = filterEndpoints(a.endpoints, a.filter)
	if a.selected >= len(a.filtered) {
		a.selected = 0
	}
}

func (a *App) moveSel(delta int) func(*gocui.Gui, *gocui.View) error {
	return func(*gocui.Gui, *gocui.View) error {
		if a.scr != screenEndpoints || len(a.filtered) == 0 {
			return nil
		}
		a.selected += delta
		if a.selected < 0 {
			a.selected = 0
		}
		if a.selected >= len(a.filtered) {
			a.selected = len(a.filtered) - 1
		}
		return nil
	}
}

func (a *App) renderFilter() {
	v, err := a.g.View("filter")
	if err != nil {
		return
	}
	v.Clear()
	fmt.Fprint(v, a.filter)
}

// renderEndpoints lists the filtered endpoints. Without a filter they keep
// catalog order, so the tag column reads as groups.
func (a *App) renderEndpoints() {
	v, err := a.g.View("endpoints")
	if err != nil {
		return
	}
	v.Clear()
	if len(a.endpoints) == 0 {
		fmt.Fprintln(v, "(document declares no operations)")
		return
	}

	tagWidth := 0
	for _, ep := range a.endpoints {
		if len(ep.Tag) > tagWidth {
			tagWidth = len(ep.Tag)
		}
	}
	for _, idx := range a.filtered {
		ep := a.endpoints[idx]
		label := firstNonEmpty(ep.Summary, ep.OperationID)
		if label != "" {
			label = " - " + label
		}
		lock := "  "
		if ep.RequiresAuth {
			lock = colorYellow + "* " + colorReset
		}
		path := highlightPathParams(ep.Path)
		if ep.Deprecated {
			path = colorDim + ep.Path + " (deprecated)" + colorReset
		}
		fmt.Fprintf(v, "%s%s%s  %s  %s%s\n", colorDim, padRight(ep.Tag, tagWidth), colorReset, colorizeMethod(ep.Method), lock+path, label)
	}

	_, h := v.Size()
	oy := 0
	if h > 0 && a.selected >= h {
		oy = a.selected - h + 1
	}
	_ = v.SetOrigin(0, oy)
	_ = v.SetCursor(0, a.selected-oy)
}

func (a *App) openDetail(*gocui.Gui, *gocui.View) error {
	if a.scr != screenEndpoints || len(a.filtered) == 0 {
		return nil
	}
	ep := a.endpoints[a.filtered[a.selected]]
	op, err := a.sess.Select(ep.Method, ep.Path)
	if err != nil {
		a.errorMsg = err.Error()
		return nil
	}
	a.op = op
	a.expandAll = false
	a.scr = screenDetail
	a.errorMsg = ""
	a.infoMsg = ""
	return nil
}
