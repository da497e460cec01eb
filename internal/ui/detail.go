package ui

import (
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/jroimartin/gocui"

	"swashark/internal/httpclient"
	"swashark/internal/model"
	"swashark/internal/schema"
)

// detailRow ties one line of the detail view to the render tree node it
// shows. Lines that are not tree nodes have an empty view.
type detailRow struct {
	view       string
	path       string
	expandable bool
	panel      string
}

func (a *App) bindDetail(bind binder) error {
	if err := bind("detail", gocui.KeyArrowDown, a.moveDetail(1)); err != nil {
		return err
	}
	if err := bind("detail", gocui.KeyArrowUp, a.moveDetail(-1)); err != nil {
		return err
	}
	if err := bind("detail", gocui.KeyEnter, a.toggleNode); err != nil {
		return err
	}
	if err := bind("detail", 'm', a.toggleMinimized); err != nil {
		return err
	}
	if err := bind("detail", 'x', a.toggleExpandAll); err != nil {
		return err
	}
	if err := bind("detail", 't', a.openBuilder); err != nil {
		return err
	}
	return bind("detail", 'q', a.quit)
}

func (a *App) layoutDetail(maxX, maxY int) error {
	a.clearMainViews([]string{"detail"})
	if a.op == nil {
		a.scr = screenEndpoints
		return nil
	}
	if v, err := a.g.SetView("detail", 0, 2, maxX-1, maxY-3); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Highlight = true
		v.SelFgColor = gocui.ColorBlack
		v.SelBgColor = gocui.ColorCyan
	}
	a.renderDetail()
	_, err := a.g.SetCurrentView("detail")
	return err
}

func (a *App) renderDetail() {
	v, err := a.g.View("detail")
	if err != nil {
		return
	}
	v.Clear()
	op := a.op
	v.Title = " " + op.Method + " " + op.Path + " "
	a.detailRows = a.detailRows[:0]

	text := func(format string, args ...any) {
		fmt.Fprintf(v, format+"\n", args...)
		a.detailRows = append(a.detailRows, detailRow{})
	}
	// heading starts a panel and reports whether its content is shown.
	heading := func(panel, format string, args ...any) bool {
		fmt.Fprintf(v, format+"\n", args...)
		a.detailRows = append(a.detailRows, detailRow{panel: panel})
		if a.sess.Minimized(panel) {
			text("  %s(minimized, m to show)%s", colorDim, colorReset)
			return false
		}
		return true
	}
	tree := func(view string, ref *openapi3.SchemaRef, ptr string, indent string) {
		root := a.sess.Resolver.Render(ref, ptr, schema.RenderOptions{Expand: a.sess.Expand(view), ExpandAll: a.expandAll})
		for _, l := range schema.Lines(root) {
			fmt.Fprintf(v, "%s%s%s\n", indent, strings.Repeat("  ", l.Depth), l.Text)
			a.detailRows = append(a.detailRows, detailRow{view: view, path: l.Path, expandable: l.Expandable})
		}
	}

	text("%s  %s", colorizeMethod(op.Method), highlightPathParams(op.Path))
	if op.Summary != "" {
		text("%s", op.Summary)
	}
	for _, line := range strings.Split(strings.TrimSpace(op.Description), "\n") {
		if line != "" {
			text("%s%s%s", colorDim, line, colorReset)
		}
	}
	if op.Deprecated {
		text("%sdeprecated%s", colorYellow, colorReset)
	}
	for _, w := range op.Warnings {
		text("%s! %s%s", colorRed, w, colorReset)
	}
	if op.RequiresAuth() {
		text("%s", a.authSummary())
	}

	if len(op.Parameters) > 0 {
		text("")
		if heading("parameters", "%sParameters%s", colorGreen, colorReset) {
			for _, p := range op.Parameters {
				req := ""
				if p.Required {
					req = "*"
				}
				text("  %s%s (%s)  %s", p.Name, req, p.In, p.Description)
				tree(op.Key()+"#param:"+string(p.In)+":"+p.Name, p.Schema, p.Pointer, "    ")
			}
		}
	}

	if len(op.RequestBody) > 0 {
		text("")
		req := ""
		if op.BodyRequired {
			req = " (required)"
		}
		if heading("request", "%sRequest body%s%s", colorGreen, colorReset, req) {
			for _, mt := range op.RequestBody {
				text("  %s", mt.ContentType)
				tree(op.Key()+"#request:"+mt.ContentType, mt.Schema, mt.Pointer, "    ")
			}
		}
	}

	if len(op.Responses) > 0 {
		text("")
		if heading("responses", "%sResponses%s", colorGreen, colorReset) {
			for _, r := range op.Responses {
				text("  %s  %s", colorizeStatusCode(r.Status), r.Description)
				for _, mt := range r.Content {
					text("    %s", mt.ContentType)
					tree(op.Key()+"#response:"+r.Status+":"+mt.ContentType, mt.Schema, mt.Pointer, "      ")
				}
			}
		}
	}
}

// colorizeStatusCode colors a declared response status, which may be a
// range like "4XX" or "default".
func colorizeStatusCode(status string) string {
	switch {
	case strings.HasPrefix(status, "2"):
		return colorGreen + status + colorReset
	case strings.HasPrefix(status, "4"):
		return colorYellow + status + colorReset
	case strings.HasPrefix(status, "5"):
		return colorRed + status + colorReset
	default:
		return status
	}
}

// authSummary lists the schemes an operation needs and whether a credential
// is stored for each.
func (a *App) authSummary() string {
	var parts []string
	seen := map[string]bool{}
	for _, req := range a.op.Security {
		for _, name := range req {
			if seen[name] {
				continue
			}
			seen[name] = true
			mark := colorRed + "missing" + colorReset
			if a.opts.Creds != nil {
				if _, ok := a.opts.Creds.Get(name); ok {
					mark = colorGreen + "set" + colorReset
				}
			}
			parts = append(parts, name+" "+mark)
		}
	}
	if len(parts) == 0 {
		return colorYellow + "auth: optional" + colorReset
	}
	return colorYellow + "auth: " + colorReset + strings.Join(parts, ", ")
}

func (a *App) moveDetail(delta int) func(*gocui.Gui, *gocui.View) error {
	return func(_ *gocui.Gui, v *gocui.View) error {
		if a.scr != screenDetail || v == nil {
			return nil
		}
		moveCursor(v, delta, len(a.detailRows))
		return nil
	}
}

func (a *App) toggleNode(_ *gocui.Gui, v *gocui.View) error {
	if a.scr != screenDetail || v == nil {
		return nil
	}
	row := cursorRow(v)
	if row < 0 || row >= len(a.detailRows) {
		return nil
	}
	r := a.detailRows[row]
	if !r.expandable {
		return nil
	}
	a.sess.Toggle(r.view, r.path)
	return nil
}

// toggleMinimized hides or shows the panel whose heading is under the
// cursor. The choice lasts for the session.
func (a *App) toggleMinimized(_ *gocui.Gui, v *gocui.View) error {
	if a.scr != screenDetail || v == nil {
		return nil
	}
	row := cursorRow(v)
	if row < 0 || row >= len(a.detailRows) || a.detailRows[row].panel == "" {
		return nil
	}
	panel := a.detailRows[row].panel
	a.sess.SetMinimized(panel, !a.sess.Minimized(panel))
	return nil
}

func (a *App) toggleExpandAll(*gocui.Gui, *gocui.View) error {
	if a.scr != screenDetail {
		return nil
	}
	a.expandAll = !a.expandAll
	return nil
}

// openBuilder fills the request form from the cached record of the
// operation, seeding the body from the schema when nothing was cached.
func (a *App) openBuilder(*gocui.Gui, *gocui.View) error {
	if a.scr != screenDetail || a.op == nil {
		return nil
	}
	op := a.op
	in := httpclient.Input{
		Params:     map[string]string{},
		FormValues: map[string]string{},
		Files:      map[string][]string{},
	}
	if len(op.RequestBody) > 0 {
		in.ContentType = op.RequestBody[0].ContentType
	}

	var cached *model.CachedInteraction
	if a.opts.Cache != nil {
		cached, _ = a.opts.Cache.Get(op.Key())
	}
	if cached != nil {
		for k, v := range cached.Parameters {
			in.Params[k] = v
		}
		if _, ok := op.MediaType(cached.ContentType); ok {
			in.ContentType = cached.ContentType
		}
		if cached.RequestBody != nil {
			in.Body = *cached.RequestBody
		}
		in.Headers = append(in.Headers, cached.CustomHeaders...)
	}
	if cached == nil || cached.RequestBody == nil {
		in.Body = a.seedBody(in.ContentType)
	}

	a.input = in
	a.fieldErrs = map[string]string{}
	a.pane = paneParams
	a.lastExec = nil
	if cached != nil && cached.Response != nil {
		a.lastExec = cachedExecution(op.Key(), cached.Response)
	}
	a.scr = screenBuilder
	a.errorMsg = ""
	a.infoMsg = ""
	return nil
}

// seedBody is the starting body for a JSON-like media type: its declared
// example, else one synthesized from the schema.
func (a *App) seedBody(contentType string) string {
	if contentType == "" || httpclient.IsForm(contentType) {
		return ""
	}
	mt, ok := a.op.MediaType(contentType)
	if !ok {
		return ""
	}
	if mt.Example != nil {
		if s, ok := mt.Example.(string); ok {
			return s
		}
		if b, err := jsonIndent(mt.Example); err == nil {
			return b
		}
	}
	ex, err := a.sess.Resolver.ExampleJSON(mt.Schema, mt.Pointer)
	if err != nil {
		a.log.Debug().Err(err).Str("operation", a.op.Key()).Msg("example synthesis failed")
		return ""
	}
	return ex
}

// cachedExecution turns a cached response back into an execution so the
// response screen can show the last result of an earlier session.
func cachedExecution(key string, r *model.CachedResponse) *httpclient.Execution {
	return &httpclient.Execution{
		Key:   key,
		State: httpclient.StateSucceeded,
		Curl:  r.Curl,
		Response: &httpclient.Response{
			Status:     r.Status,
			StatusText: r.StatusText,
			DurationMs: r.DurationMs,
			Body:       r.Body,
			IsJSON:     isJSONText(r.Body),
		},
	}
}
