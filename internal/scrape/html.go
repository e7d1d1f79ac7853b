package scrape

import (
	"strings"

	"golang.org/x/net/html"
)

// Node-walking helpers over x/net/html trees.

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attrValue(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func findByID(root *html.Node, tag, id string) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) {
		if found == nil && n.Type == html.ElementNode && n.Data == tag && attrValue(n, "id") == id {
			found = n
		}
	})
	return found
}

func findByClass(root *html.Node, tag, class string) []*html.Node {
	var nodes []*html.Node
	walk(root, func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == tag && hasClass(n, class) {
			nodes = append(nodes, n)
		}
	})
	return nodes
}

func findElement(root *html.Node, tag string) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) {
		if found == nil && n.Type == html.ElementNode && n.Data == tag {
			found = n
		}
	})
	return found
}

// tableRows returns the tr nodes of a table's tbody, or of the table itself
// when it has no tbody. Header rows inside thead are excluded either way.
func tableRows(table *html.Node) []*html.Node {
	scope := table
	if tbody := findElement(table, "tbody"); tbody != nil {
		scope = tbody
	}
	var rows []*html.Node
	walk(scope, func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" && !insideTag(n, scope, "thead") {
			rows = append(rows, n)
		}
	})
	return rows
}

func insideTag(n, stop *html.Node, tag string) bool {
	for p := n.Parent; p != nil && p != stop; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == tag {
			return true
		}
	}
	return false
}

// childElements returns direct descendants matching tag, skipping nested
// tables so a cell containing its own table is not double-counted.
func childElements(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var rec func(*html.Node)
	rec = func(c *html.Node) {
		for x := c.FirstChild; x != nil; x = x.NextSibling {
			if x.Type == html.ElementNode && x.Data == tag {
				out = append(out, x)
				continue
			}
			if x.Type == html.ElementNode && x.Data == "table" {
				continue
			}
			rec(x)
		}
	}
	rec(n)
	return out
}

// blockTags force a line break in extracted text so "label: value" lines
// stay separable after rendering.
var blockTags = map[string]bool{
	"br": true, "p": true, "div": true, "tr": true, "li": true,
	"table": true, "h1": true, "h2": true, "h3": true, "h4": true,
}

// textWithBreaks renders the node's text content, inserting newlines at
// block boundaries.
func textWithBreaks(n *html.Node) string {
	var b strings.Builder
	var rec func(*html.Node)
	rec = func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		if c.Type == html.ElementNode && blockTags[c.Data] {
			b.WriteString("\n")
		}
		for x := c.FirstChild; x != nil; x = x.NextSibling {
			rec(x)
		}
		if c.Type == html.ElementNode && blockTags[c.Data] && c.Data != "br" {
			b.WriteString("\n")
		}
	}
	rec(n)
	return b.String()
}
