package highlight

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ClassMarker presents highlights with a CSS class: matched text is wrapped in
// a span carrying the class, and code-matched elements get the class added.
type ClassMarker struct {
	Class string
}

// MarkText splits node so that data[start:end] sits in its own span.
func (m ClassMarker) MarkText(node *html.Node, start, end int) {
	if node == nil || node.Type != html.TextNode || node.Parent == nil {
		return
	}
	if start < 0 || end > len(node.Data) || start >= end {
		return
	}
	data := node.Data
	node.Data = data[:start]

	span := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Span,
		Data:     "span",
		Attr:     []html.Attribute{{Key: "class", Val: m.Class}},
	}
	span.AppendChild(&html.Node{Type: html.TextNode, Data: data[start:end]})
	node.Parent.InsertBefore(span, node.NextSibling)

	if end < len(data) {
		node.Parent.InsertBefore(&html.Node{Type: html.TextNode, Data: data[end:]}, span.NextSibling)
	}
}

// MarkElement adds the class to node unless it already has it.
func (m ClassMarker) MarkElement(node *html.Node) {
	if node == nil || node.Type != html.ElementNode {
		return
	}
	for i, attr := range node.Attr {
		if attr.Key != "class" {
			continue
		}
		if hasToken(attr.Val, m.Class) {
			return
		}
		node.Attr[i].Val = strings.TrimSpace(attr.Val + " " + m.Class)
		return
	}
	node.Attr = append(node.Attr, html.Attribute{Key: "class", Val: m.Class})
}
