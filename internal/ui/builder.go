package ui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jroimartin/gocui"

	"swashark/internal/httpclient"
	"swashark/internal/model"
	"swashark/internal/openapi"
	"swashark/internal/validate"
)

const generateTimeout = 45 * time.Second

// bodyRow is one field of a form body.
type bodyRow struct {
	name     string
	file     bool
	multiple bool
	required bool
}

func (a *App) bindBuilder(bind binder) error {
	for _, view := range []string{"params", "body", "headers"} {
		if err := bind(view, gocui.KeyArrowDown, a.moveRow(1)); err != nil {
			return err
		}
		if err := bind(view, gocui.KeyArrowUp, a.moveRow(-1)); err != nil {
			return err
		}
		if err := bind(view, 'd', a.resetRow); err != nil {
			return err
		}
	}
	if err := bind("params", gocui.KeyEnter, a.editParam); err != nil {
		return err
	}
	if err := bind("body", gocui.KeyEnter, a.bodyEnter); err != nil {
		return err
	}
	if err := bind("body", 'c', a.cycleContentType); err != nil {
		return err
	}
	if err := bind("body", 'g', a.beginGenerate); err != nil {
		return err
	}
	if err := bind("headers", gocui.KeyEnter, a.editHeader); err != nil {
		return err
	}
	if err := bind("headers", 'a', a.addHeader); err != nil {
		return err
	}
	return bind("edit", gocui.KeyEnter, a.confirmEdit)
}

func (a *App) layoutBuilder(maxX, maxY int) error {
	keep := []string{"selected", "params", "body", "headers"}
	if a.editing {
		keep = append(keep, "edit")
	}
	a.clearMainViews(keep)
	if a.op == nil {
		a.scr = screenEndpoints
		return nil
	}

	mid := maxX / 2
	split := maxY - 9
	if split < 8 {
		split = maxY - 4
	}
	views := []struct {
		name           string
		x0, y0, x1, y1 int
	}{
		{"selected", 0, 2, maxX - 1, 4},
		{"params", 0, 4, mid - 1, split},
		{"body", mid, 4, maxX - 1, split},
		{"headers", 0, split, maxX - 1, maxY - 3},
	}
	for _, vw := range views {
		if v, err := a.g.SetView(vw.name, vw.x0, vw.y0, vw.x1, vw.y1); err != nil {
			if err != gocui.ErrUnknownView {
				return err
			}
			v.SelFgColor = gocui.ColorBlack
			v.SelBgColor = gocui.ColorGreen
		}
	}
	a.ensureValidPane()
	a.renderBuilder()

	if a.editing {
		_, err := a.g.SetCurrentView("edit")
		return err
	}
	_, err := a.g.SetCurrentView(a.paneView())
	return err
}

func (a *App) paneView() string {
	switch a.pane {
	case paneBody:
		return "body"
	case paneHeaders:
		return "headers"
	default:
		return "params"
	}
}

func (a *App) panes() []focusPane {
	var out []focusPane
	if len(a.op.Parameters) > 0 {
		out = append(out, paneParams)
	}
	if len(a.op.RequestBody) > 0 {
		out = append(out, paneBody)
	}
	return append(out, paneHeaders)
}

func (a *App) ensureValidPane() {
	panes := a.panes()
	for _, p := range panes {
		if p == a.pane {
			return
		}
	}
	a.pane = panes[0]
}

func (a *App) tabPane(*gocui.Gui, *gocui.View) error {
	if a.scr != screenBuilder || a.editing || a.auth.open {
		return nil
	}
	panes := a.panes()
	for i, p := range panes {
		if p == a.pane {
			a.pane = panes[(i+1)%len(panes)]
			return nil
		}
	}
	a.pane = panes[0]
	return nil
}

func (a *App) renderBuilder() {
	a.renderSelected()
	a.renderParams()
	a.renderBody()
	a.renderHeaders()
	for _, name := range []string{"params", "body", "headers"} {
		if v, err := a.g.View(name); err == nil {
			v.Highlight = name == a.paneView() && !a.editing
		}
	}
}

func (a *App) renderSelected() {
	v, err := a.g.View("selected")
	if err != nil {
		return
	}
	v.Clear()
	base := a.sess.BaseURL
	if base == "" {
		base = colorRed + "(no base url)" + colorReset
	}
	fmt.Fprintf(v, "%s %s%s", colorizeMethod(a.op.Method), colorDim+base+colorReset, highlightPathParams(a.op.Path))
	if a.op.RequiresAuth() {
		fmt.Fprint(v, "  "+a.authSummary())
	}
}

func (a *App) renderParams() {
	v, err := a.g.View("params")
	if err != nil {
		return
	}
	v.Clear()
	v.Title = " Parameters "
	a.paramRows = a.paramRows[:0]
	if len(a.op.Parameters) == 0 {
		fmt.Fprintln(v, colorDim+"(none)"+colorReset)
		return
	}
	width := 0
	for _, p := range a.op.Parameters {
		if len(p.Name) > width {
			width = len(p.Name)
		}
	}
	for _, p := range a.op.Parameters {
		name := p.Name
		if p.Required {
			name += "*"
		}
		line := fmt.Sprintf("%s %s%-6s%s %s", padRight(name, width+1), colorDim, p.In, colorReset, a.input.Params[p.Name])
		if msg := a.fieldErrs[p.Name]; msg != "" {
			line += "  " + colorRed + msg + colorReset
		}
		fmt.Fprintln(v, line)
		a.paramRows = append(a.paramRows, p.Name)
	}
}

func (a *App) renderBody() {
	v, err := a.g.View("body")
	if err != nil {
		return
	}
	v.Clear()
	a.bodyRows = a.bodyRows[:0]
	if len(a.op.RequestBody) == 0 {
		v.Title = " Body "
		fmt.Fprintln(v, colorDim+"(no request body)"+colorReset)
		return
	}
	v.Title = " Body: " + a.input.ContentType + " "
	if len(a.op.RequestBody) > 1 {
		v.Title += "[c] "
	}

	ct := a.input.ContentType
	if !httpclient.IsForm(ct) {
		if strings.TrimSpace(a.input.Body) == "" {
			fmt.Fprintln(v, colorDim+"(empty, enter to edit)"+colorReset)
			return
		}
		fmt.Fprintln(v, formatBody(a.input.Body, httpclient.IsJSON(ct)))
		return
	}

	mt, _ := a.op.MediaType(ct)
	fields := a.sess.Builder().FormFields(mt)
	for _, f := range fields {
		a.bodyRows = append(a.bodyRows, bodyRow{name: f.Name, file: f.File, multiple: f.Multiple, required: f.Required})
		name := f.Name
		if f.Required {
			name += "*"
		}
		var val string
		switch {
		case f.File:
			val = colorDim + "file: " + colorReset + strings.Join(a.input.Files[f.Name], ", ")
		default:
			val = a.input.FormValues[f.Name]
		}
		fmt.Fprintf(v, "%s %s%s%s %s\n", name, colorDim, f.Type, colorReset, val)
	}
	if len(fields) == 0 {
		fmt.Fprintln(v, colorDim+"(schema declares no fields)"+colorReset)
	}
}

func (a *App) renderHeaders() {
	v, err := a.g.View("headers")
	if err != nil {
		return
	}
	v.Clear()
	v.Title = " Headers "
	for _, h := range a.input.Headers {
		fmt.Fprintf(v, "%s%s%s: %s\n", colorCyan, h.Key, colorReset, h.Value)
	}
	fmt.Fprintln(v, colorDim+"+ add header"+colorReset)
	a.headerRows = len(a.input.Headers) + 1
}

func (a *App) rowsIn(view string) int {
	switch view {
	case "params":
		return len(a.paramRows)
	case "body":
		if httpclient.IsForm(a.input.ContentType) {
			return len(a.bodyRows)
		}
		return len(strings.Split(a.input.Body, "\n"))
	case "headers":
		return a.headerRows
	}
	return 0
}

func (a *App) moveRow(delta int) func(*gocui.Gui, *gocui.View) error {
	return func(_ *gocui.Gui, v *gocui.View) error {
		if a.scr != screenBuilder || a.editing || v == nil {
			return nil
		}
		moveCursor(v, delta, a.rowsIn(v.Name()))
		return nil
	}
}

func (a *App) editParam(_ *gocui.Gui, v *gocui.View) error {
	if a.scr != screenBuilder || a.editing || v == nil {
		return nil
	}
	row := cursorRow(v)
	if row < 0 || row >= len(a.paramRows) {
		return nil
	}
	name := a.paramRows[row]
	return a.beginEdit("param:"+name, name, a.input.Params[name])
}

func (a *App) bodyEnter(g *gocui.Gui, v *gocui.View) error {
	if a.scr != screenBuilder || a.editing || v == nil || len(a.op.RequestBody) == 0 {
		return nil
	}
	if !httpclient.IsForm(a.input.ContentType) {
		return a.editBodyInEditor(g, v)
	}
	row := cursorRow(v)
	if row < 0 || row >= len(a.bodyRows) {
		return nil
	}
	f := a.bodyRows[row]
	if f.file {
		title := f.name + " (file path)"
		if f.multiple {
			title = f.name + " (file paths, comma separated)"
		}
		return a.beginEdit("file:"+f.name, title, strings.Join(a.input.Files[f.name], ", "))
	}
	return a.beginEdit("form:"+f.name, f.name, a.input.FormValues[f.name])
}

func (a *App) editHeader(_ *gocui.Gui, v *gocui.View) error {
	if a.scr != screenBuilder || a.editing || v == nil {
		return nil
	}
	row := cursorRow(v)
	if row < 0 || row >= len(a.input.Headers) {
		return a.beginEdit("newheader", "Key: value", "")
	}
	h := a.input.Headers[row]
	return a.beginEdit("header:"+strconv.Itoa(row), "Key: value (empty removes)", h.Key+": "+h.Value)
}

func (a *App) addHeader(*gocui.Gui, *gocui.View) error {
	if a.scr != screenBuilder || a.editing {
		return nil
	}
	return a.beginEdit("newheader", "Key: value", "")
}

// resetRow clears the value under the cursor. On a raw body it restores
// the example body.
func (a *App) resetRow(_ *gocui.Gui, v *gocui.View) error {
	if a.scr != screenBuilder || a.editing || v == nil {
		return nil
	}
	row := cursorRow(v)
	key := a.op.Key()
	switch v.Name() {
	case "params":
		if row >= 0 && row < len(a.paramRows) {
			delete(a.input.Params, a.paramRows[row])
			delete(a.fieldErrs, a.paramRows[row])
			a.saveParams()
		}
	case "body":
		if !httpclient.IsForm(a.input.ContentType) {
			a.input.Body = a.seedBody(a.input.ContentType)
			a.saveBody()
			return nil
		}
		if row >= 0 && row < len(a.bodyRows) {
			delete(a.input.FormValues, a.bodyRows[row].name)
			delete(a.input.Files, a.bodyRows[row].name)
		}
	case "headers":
		if row >= 0 && row < len(a.input.Headers) {
			a.input.Headers = append(a.input.Headers[:row], a.input.Headers[row+1:]...)
			if a.opts.Cache != nil {
				a.opts.Cache.SaveHeaders(key, a.input.Headers)
			}
		}
	}
	return nil
}

// cycleContentType moves to the next declared media type. A body still
// equal to the old type's example is replaced by the new type's example.
func (a *App) cycleContentType(*gocui.Gui, *gocui.View) error {
	if a.scr != screenBuilder || a.editing || len(a.op.RequestBody) < 2 {
		return nil
	}
	cur := a.input.ContentType
	next := a.op.RequestBody[0].ContentType
	for i, mt := range a.op.RequestBody {
		if strings.EqualFold(mt.ContentType, cur) {
			next = a.op.RequestBody[(i+1)%len(a.op.RequestBody)].ContentType
			break
		}
	}
	if strings.TrimSpace(a.input.Body) == "" || a.input.Body == a.seedBody(cur) {
		a.input.Body = a.seedBody(next)
	}
	a.input.ContentType = next
	a.saveBody()
	return nil
}

func (a *App) beginGenerate(*gocui.Gui, *gocui.View) error {
	if a.scr != screenBuilder || a.editing || a.running || httpclient.IsForm(a.input.ContentType) {
		return nil
	}
	if !a.opts.Generator.Enabled() {
		a.generate("")
		return nil
	}
	return a.beginEdit("gen", "describe the data to generate (optional)", "")
}

// generate fills the body from the example generator. Without a configured
// generator it falls back to the synthesized example at once.
func (a *App) generate(hint string) {
	mt, ok := a.op.MediaType(a.input.ContentType)
	if !ok {
		return
	}
	if !a.opts.Generator.Enabled() {
		a.applyGenerated(a.sess.Resolver.Example(mt.Schema, mt.Pointer))
		a.infoMsg = "example synthesized from schema"
		return
	}

	g, gen, resolver := a.g, a.opts.Generator, a.sess.Resolver
	a.running = true
	a.busy = "generating example..."
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), generateTimeout)
		defer cancel()
		example := gen.Example(ctx, resolver, mt.Schema, mt.Pointer, hint, nil)
		g.Update(func(*gocui.Gui) error {
			a.running = false
			a.applyGenerated(example)
			a.infoMsg = "example generated"
			return nil
		})
	}()
}

func (a *App) applyGenerated(example any) {
	body, err := jsonIndent(example)
	if err != nil {
		a.errorMsg = err.Error()
		return
	}
	a.input.Body = body
	a.saveBody()
}

func (a *App) saveParams() {
	if a.opts.Cache != nil {
		a.opts.Cache.SaveParameters(a.op.Key(), a.input.Params)
	}
}

func (a *App) saveBody() {
	if a.opts.Cache == nil {
		return
	}
	if httpclient.IsForm(a.input.ContentType) {
		a.opts.Cache.SaveBody(a.op.Key(), nil, a.input.ContentType)
		return
	}
	body := a.input.Body
	a.opts.Cache.SaveBody(a.op.Key(), &body, a.input.ContentType)
}

// applyEdit stores the value typed into the edit modal.
func (a *App) applyEdit(target, val string) {
	kind, name, _ := strings.Cut(target, ":")
	switch kind {
	case "param":
		if val == "" {
			delete(a.input.Params, name)
		} else {
			a.input.Params[name] = val
		}
		delete(a.fieldErrs, name)
		a.saveParams()
	case "form":
		if val == "" {
			delete(a.input.FormValues, name)
		} else {
			a.input.FormValues[name] = val
		}
	case "file":
		var paths []string
		for _, p := range strings.Split(val, ",") {
			if p = strings.TrimSpace(p); p != "" {
				paths = append(paths, p)
			}
		}
		if len(paths) == 0 {
			delete(a.input.Files, name)
		} else {
			a.input.Files[name] = paths
		}
	case "header", "newheader":
		a.applyHeaderEdit(kind, name, val)
	case "gen":
		a.generate(val)
	}
}

func (a *App) applyHeaderEdit(kind, idx, val string) {
	k, v, _ := strings.Cut(val, ":")
	h := model.Header{Key: strings.TrimSpace(k), Value: strings.TrimSpace(v)}
	if kind == "newheader" {
		if h.Key == "" {
			return
		}
		a.input.Headers = append(a.input.Headers, h)
	} else {
		i, err := strconv.Atoi(idx)
		if err != nil || i < 0 || i >= len(a.input.Headers) {
			return
		}
		if h.Key == "" {
			a.input.Headers = append(a.input.Headers[:i], a.input.Headers[i+1:]...)
		} else {
			a.input.Headers[i] = h
		}
	}
	if a.opts.Cache != nil {
		a.opts.Cache.SaveHeaders(a.op.Key(), a.input.Headers)
	}
}

// executeRequest runs the current form off the UI goroutine. The result is
// published back with g.Update.
func (a *App) executeRequest(*gocui.Gui, *gocui.View) error {
	if (a.scr != screenBuilder && a.scr != screenResponse) || a.editing || a.auth.open || a.running || a.op == nil {
		return nil
	}
	g, exec, op, in := a.g, a.sess.Executor, a.op, cloneInput(a.input)
	a.running = true
	a.busy = "sending request..."
	a.errorMsg = ""
	a.infoMsg = ""
	a.log.Debug().Str("operation", op.Key()).Msg("execute")

	go func() {
		ex, err := send(exec, op, in)
		g.Update(func(*gocui.Gui) error {
			a.finishExecution(ex, err)
			return nil
		})
	}()
	return nil
}

// send runs one execution to completion. Requests carry no deadline of
// their own.
func send(exec *httpclient.Executor, op *openapi.Operation, in httpclient.Input) (*httpclient.Execution, error) {
	return exec.Execute(context.Background(), op, in)
}

func (a *App) finishExecution(ex *httpclient.Execution, err error) {
	a.running = false
	if err != nil {
		a.errorMsg = err.Error()
		return
	}
	if a.op == nil || ex.Key != a.op.Key() {
		// the user moved on; the result is in the cache
		return
	}
	a.fieldErrs = map[string]string{}

	switch ex.State {
	case httpclient.StateValidationFailed:
		var verr *validate.Errors
		if errors.As(ex.Err, &verr) {
			for _, f := range verr.Fields {
				a.fieldErrs[f.Field] = f.Message
			}
			a.errorMsg = fmt.Sprintf("%d parameter(s) need fixing", len(verr.Fields))
		} else {
			a.errorMsg = ex.Err.Error()
		}
		a.scr = screenBuilder
		a.pane = paneParams
	case httpclient.StateFailed:
		if ex.Curl == "" {
			// never sent: the request could not be built
			a.errorMsg = ex.Err.Error()
			a.scr = screenBuilder
			return
		}
		a.lastExec = ex
		a.showCurl = false
		a.scr = screenResponse
	case httpclient.StateSucceeded:
		a.lastExec = ex
		a.showCurl = false
		a.scr = screenResponse
	}
}

func cloneInput(in httpclient.Input) httpclient.Input {
	out := httpclient.Input{
		ContentType: in.ContentType,
		Body:        in.Body,
		Params:      make(map[string]string, len(in.Params)),
		FormValues:  make(map[string]string, len(in.FormValues)),
		Files:       make(map[string][]string, len(in.Files)),
		Headers:     append([]model.Header(nil), in.Headers...),
	}
	for k, v := range in.Params {
		out.Params[k] = v
	}
	for k, v := range in.FormValues {
		out.FormValues[k] = v
	}
	for k, v := range in.Files {
		out.Files[k] = append([]string(nil), v...)
	}
	return out
}
