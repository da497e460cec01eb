package ui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"swashark/internal/schema"
)

// ansi colors
const (
	colorDim     = "\033[90m"
	colorReset   = "\033[0m"
	colorRed     = "\033[31m"
	colorGreen   = "\033[32m"
	colorYellow  = "\033[33m"
	colorBlue    = "\033[34m"
	colorMagenta = "\033[35m"
	colorCyan    = "\033[36m"
	colorWhite   = "\033[37m"
)

// json token colors
const (
	colorKey     = colorCyan
	colorString  = colorGreen
	colorNumber  = colorYellow
	colorBool    = colorMagenta
	colorNull    = colorDim
	colorBracket = colorWhite
)

var pathParamRe = regexp.MustCompile(`\{([^}]+)\}`)

func padRight(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return s + strings.Repeat(" ", n-len(s))
}

func colorizeMethod(method string) string {
	var color string
	switch strings.ToUpper(method) {
	case "GET":
		color = colorBlue
	case "POST":
		color = colorGreen
	case "PUT":
		color = colorYellow
	case "DELETE":
		color = colorRed
	case "PATCH":
		color = colorCyan
	case "HEAD":
		color = colorMagenta
	default:
		color = colorReset
	}
	return color + padRight(method, 7) + colorReset
}

func colorizeStatus(code int, text string) string {
	status := strconv.Itoa(code)
	if text != "" {
		status += " " + text
	}
	var color string
	switch {
	case code >= 200 && code < 300:
		color = colorGreen
	case code >= 400 && code < 500:
		color = colorYellow
	case code >= 500:
		color = colorRed
	default:
		color = colorReset
	}
	return color + status + colorReset
}

func highlightPathParams(path string) string {
	return pathParamRe.ReplaceAllString(path, colorCyan+"{$1}"+colorReset)
}

// formatBody colorizes JSON bodies in member order and returns anything
// else unchanged.
func formatBody(body string, isJSON bool) string {
	if !isJSON {
		return body
	}
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	v, err := decodeOrdered(dec)
	if err != nil {
		return body
	}
	return colorizeJSON(v, 0)
}

// decodeOrdered reads one JSON value, keeping object members in order.
func decodeOrdered(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := schema.Object{}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, _ := kt.(string)
				val, err := decodeOrdered(dec)
				if err != nil {
					return nil, err
				}
				obj = append(obj, schema.Member{Name: key, Value: val})
			}
			_, err := dec.Token()
			return obj, err
		case '[':
			arr := []any{}
			for dec.More() {
				val, err := decodeOrdered(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, val)
			}
			_, err := dec.Token()
			return arr, err
		}
		return nil, fmt.Errorf("unexpected delimiter %v", t)
	default:
		return tok, nil
	}
}

func colorizeJSON(v any, indent int) string {
	prefix := strings.Repeat("  ", indent)

	switch val := v.(type) {
	case nil:
		return colorNull + "null" + colorReset
	case bool:
		return colorBool + strconv.FormatBool(val) + colorReset
	case json.Number:
		return colorNumber + val.String() + colorReset
	case float64:
		return colorNumber + strconv.FormatFloat(val, 'f', -1, 64) + colorReset
	case string:
		return colorString + quoteJSON(val) + colorReset
	case []any:
		if len(val) == 0 {
			return colorBracket + "[]" + colorReset
		}
		var sb strings.Builder
		sb.WriteString(colorBracket + "[" + colorReset + "\n")
		for i, item := range val {
			sb.WriteString(prefix + "  " + colorizeJSON(item, indent+1))
			if i < len(val)-1 {
				sb.WriteString(",")
			}
			sb.WriteString("\n")
		}
		sb.WriteString(prefix + colorBracket + "]" + colorReset)
		return sb.String()
	case schema.Object:
		if len(val) == 0 {
			return colorBracket + "{}" + colorReset
		}
		var sb strings.Builder
		sb.WriteString(colorBracket + "{" + colorReset + "\n")
		for i, m := range val {
			sb.WriteString(prefix + "  " + colorKey + quoteJSON(m.Name) + colorReset + ": ")
			sb.WriteString(colorizeJSON(m.Value, indent+1))
			if i < len(val)-1 {
				sb.WriteString(",")
			}
			sb.WriteString("\n")
		}
		sb.WriteString(prefix + colorBracket + "}" + colorReset)
		return sb.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

func quoteJSON(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return strconv.Quote(s)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

func jsonIndent(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func isJSONText(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && json.Valid([]byte(s))
}
