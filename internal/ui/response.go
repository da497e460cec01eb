package ui

import (
	"fmt"
	"sort"

	"github.com/jroimartin/gocui"
)

func (a *App) bindResponse(bind binder) error {
	if err := bind("response", gocui.KeyArrowDown, a.scrollResponse(1)); err != nil {
		return err
	}
	if err := bind("response", gocui.KeyArrowUp, a.scrollResponse(-1)); err != nil {
		return err
	}
	if err := bind("response", gocui.KeyPgdn, a.scrollResponse(10)); err != nil {
		return err
	}
	if err := bind("response", gocui.KeyPgup, a.scrollResponse(-10)); err != nil {
		return err
	}
	if err := bind("response", 'c', a.toggleCurl); err != nil {
		return err
	}
	if err := bind("response", 'r', a.executeRequest); err != nil {
		return err
	}
	if err := bind("response", gocui.KeyEnter, a.responseToEndpoints); err != nil {
		return err
	}
	return bind("response", 'q', a.quit)
}

func (a *App) layoutResponse(maxX, maxY int) error {
	a.clearMainViews([]string{"response"})
	if a.lastExec == nil {
		a.scr = screenBuilder
		return nil
	}
	if v, err := a.g.SetView("response", 0, 2, maxX-1, maxY-3); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Wrap = true
	}
	a.renderResponse()
	_, err := a.g.SetCurrentView("response")
	return err
}

func (a *App) renderResponse() {
	v, err := a.g.View("response")
	if err != nil {
		return
	}
	v.Clear()
	ex := a.lastExec
	v.Title = " Response "
	if a.op != nil {
		v.Title = " " + a.op.Method + " " + a.op.Path + " "
	}

	if a.showCurl {
		fmt.Fprintln(v, colorDim+"# curl"+colorReset)
		fmt.Fprintln(v, ex.Curl)
		fmt.Fprintln(v)
	}

	if ex.Response == nil {
		fmt.Fprintf(v, "%s%s%s\n", colorRed, ex.State, colorReset)
		if ex.Err != nil {
			fmt.Fprintln(v, ex.Err.Error())
		}
		return
	}

	r := ex.Response
	fmt.Fprintf(v, "%s  %s%d ms%s", colorizeStatus(r.Status, r.StatusText), colorDim, r.DurationMs, colorReset)
	if r.ContentType != "" {
		fmt.Fprintf(v, "  %s", r.ContentType)
	}
	fmt.Fprintln(v)

	if len(r.Headers) > 0 {
		names := make([]string, 0, len(r.Headers))
		for k := range r.Headers {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			fmt.Fprintf(v, "%s%s%s: %s\n", colorCyan, k, colorReset, r.Headers[k])
		}
	}
	fmt.Fprintln(v)
	if r.Body == "" {
		fmt.Fprintln(v, colorDim+"(empty body)"+colorReset)
		return
	}
	fmt.Fprintln(v, formatBody(r.Body, r.IsJSON))
}

func (a *App) toggleCurl(*gocui.Gui, *gocui.View) error {
	if a.scr != screenResponse {
		return nil
	}
	a.showCurl = !a.showCurl
	return nil
}

func (a *App) scrollResponse(delta int) func(*gocui.Gui, *gocui.View) error {
	return func(_ *gocui.Gui, v *gocui.View) error {
		if a.scr != screenResponse || v == nil {
			return nil
		}
		ox, oy := v.Origin()
		oy += delta
		if oy < 0 {
			oy = 0
		}
		_ = v.SetOrigin(ox, oy)
		return nil
	}
}

func (a *App) responseToEndpoints(*gocui.Gui, *gocui.View) error {
	if a.scr != screenResponse {
		return nil
	}
	a.scr = screenEndpoints
	a.op = nil
	a.showCurl = false
	return nil
}
