package httpclient

import (
	"strings"
)

// Curl renders r as a copy-pasteable, backslash-continued curl command.
// Multipart requests list one -F per field and file and leave Content-Type
// to curl; other bodies are passed literally with -d.
func Curl(r Request) string {
	lines := []string{"curl -X " + shellQuote(r.Method), shellQuote(r.URL)}
	for _, h := range r.Headers {
		if r.Multipart && strings.EqualFold(h.Key, "Content-Type") {
			continue
		}
		lines = append(lines, "-H "+shellQuote(h.Key+": "+h.Value))
	}
	switch {
	case r.Multipart:
		for _, p := range r.Form {
			if p.IsFile() {
				lines = append(lines, "-F "+shellQuote(p.Name+"=@"+p.FilePath))
			} else {
				lines = append(lines, "-F "+shellQuote(p.Name+"="+p.Value))
			}
		}
	case len(r.Body) > 0:
		lines = append(lines, "-d "+shellQuote(string(r.Body)))
	}
	return strings.Join(lines, " \\\n  ")
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
