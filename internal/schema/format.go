package schema

import (
	"fmt"
	"strings"
)

// Line is one row of a text rendering, tied to the node path it shows.
type Line struct {
	Path       string
	Depth      int
	Text       string
	Expandable bool
}

// Lines flattens the visible part of a render tree.
func Lines(root *RenderNode) []Line {
	var out []Line
	var walk func(n *RenderNode, depth int)
	walk = func(n *RenderNode, depth int) {
		out = append(out, Line{Path: n.Path, Depth: depth, Text: describe(n), Expandable: n.Expandable})
		for _, c := range n.Children {
			walk(c, depth+1)
		}
	}
	if root != nil {
		walk(root, 0)
	}
	return out
}

// Format renders a tree as indented plain text.
func Format(root *RenderNode) string {
	var sb strings.Builder
	for _, l := range Lines(root) {
		sb.WriteString(strings.Repeat("  ", l.Depth))
		sb.WriteString(l.Text)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func describe(n *RenderNode) string {
	var sb strings.Builder
	switch {
	case n.Expandable && n.Expanded:
		sb.WriteString("[-] ")
	case n.Expandable:
		sb.WriteString("[+] ")
	default:
		sb.WriteString("    ")
	}
	if n.Name != "" {
		sb.WriteString(n.Name)
		if n.Required {
			sb.WriteByte('*')
		}
		sb.WriteString("  ")
	}
	sb.WriteString(n.Type)
	if n.Format != "" {
		fmt.Fprintf(&sb, "<%s>", n.Format)
	}
	switch {
	case n.Cycle:
		fmt.Fprintf(&sb, "  (%s, recursive)", n.Ref)
	case n.Unresolved:
		fmt.Fprintf(&sb, "  (%s)", n.Error)
	case n.Ref != "":
		fmt.Fprintf(&sb, "  %s", n.Ref)
	}
	for _, c := range n.Constraints {
		fmt.Fprintf(&sb, "  %s=%s", c.Name, c.Value)
	}
	if n.Description != "" {
		line, _, _ := strings.Cut(n.Description, "\n")
		fmt.Fprintf(&sb, "  # %s", line)
	}
	return sb.String()
}
