package web

import (
	"strings"

	"golang.org/x/net/html"
)

// Matcher selects nodes during a tree walk.
type Matcher func(*html.Node) bool

// FindAll walks the tree depth-first and returns every element node the
// matcher accepts.
func FindAll(n *html.Node, match Matcher) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && match(node) {
			out = append(out, node)
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	if n != nil {
		walk(n)
	}
	return out
}

// FindFirst returns the first matching element node, or nil.
func FindFirst(n *html.Node, match Matcher) *html.Node {
	nodes := FindAll(n, match)
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

// ByClass matches elements whose class attribute contains the given class.
func ByClass(class string) Matcher {
	return func(n *html.Node) bool {
		for _, cls := range strings.Fields(Attr(n, "class")) {
			if cls == class {
				return true
			}
		}
		return false
	}
}

// ByTag matches elements with the given tag name.
func ByTag(tag string) Matcher {
	return func(n *html.Node) bool { return n.Data == tag }
}

// Attr returns the value of the named attribute, or "".
func Attr(n *html.Node, key string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// Text returns the concatenated text content of the subtree, trimmed.
func Text(n *html.Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}
