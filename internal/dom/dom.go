// Package dom holds the small set of tree operations the layout pass needs on
// top of golang.org/x/net/html. Every lookup returns an explicit "not found"
// instead of failing, so callers branch on presence.
package dom

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// ByID returns the first element in document order whose id equals id.
func ByID(root *html.Node, id string) (*html.Node, bool) {
	if root == nil || id == "" {
		return nil, false
	}
	if root.Type == html.ElementNode && htmlquery.SelectAttr(root, "id") == id {
		return root, true
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if n, ok := ByID(c, id); ok {
			return n, true
		}
	}
	return nil, false
}

// QueryAll evaluates an XPath expression against root.
func QueryAll(root *html.Node, expr string) ([]*html.Node, error) {
	if root == nil {
		return nil, nil
	}
	nodes, err := htmlquery.QueryAll(root, expr)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", expr, err)
	}
	return nodes, nil
}

// First returns the first node matching expr, if any.
func First(root *html.Node, expr string) (*html.Node, bool, error) {
	if root == nil {
		return nil, false, nil
	}
	n, err := htmlquery.Query(root, expr)
	if err != nil {
		return nil, false, fmt.Errorf("query %q: %w", expr, err)
	}
	return n, n != nil, nil
}

// HasClassExpr builds the XPath predicate that matches a single class token,
// equivalent to the CSS ".name" selector.
func HasClassExpr(name string) string {
	return fmt.Sprintf("contains(concat(' ', normalize-space(@class), ' '), ' %s ')", name)
}

// Detach unlinks n from its parent and siblings. The subtree stays intact and
// can be inserted elsewhere.
func Detach(n *html.Node) *html.Node {
	if n != nil && n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
	return n
}

// Remove detaches n and reports whether it was attached.
func Remove(n *html.Node) bool {
	if n == nil || n.Parent == nil {
		return false
	}
	Detach(n)
	return true
}

// AppendChild moves n to the end of parent's children.
func AppendChild(parent, n *html.Node) {
	Detach(n)
	parent.AppendChild(n)
}

// InsertAfter places n directly after ref. It returns false when ref has no
// parent, in which case n is left detached.
func InsertAfter(ref, n *html.Node) bool {
	Detach(n)
	if ref == nil || ref.Parent == nil {
		return false
	}
	// InsertBefore with a nil sibling appends.
	ref.Parent.InsertBefore(n, ref.NextSibling)
	return true
}

// Attr returns the value of attribute key and whether it is set.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets attribute key, adding it if missing.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// HasClass reports whether the class attribute contains the token name.
func HasClass(n *html.Node, name string) bool {
	v, _ := Attr(n, "class")
	for _, c := range strings.Fields(v) {
		if c == name {
			return true
		}
	}
	return false
}

// AddClass appends name to the class attribute unless already present.
func AddClass(n *html.Node, name string) bool {
	if HasClass(n, name) {
		return false
	}
	v, _ := Attr(n, "class")
	if v = strings.TrimSpace(v); v != "" {
		v += " "
	}
	SetAttr(n, "class", v+name)
	return true
}

// Text returns the concatenated text content of n, trimmed of white space
// and byte order marks.
func Text(n *html.Node) string {
	return strings.TrimFunc(htmlquery.InnerText(n), isTrimmable)
}

func isTrimmable(r rune) bool {
	return unicode.IsSpace(r) || r == '\uFEFF'
}

// IsElement reports whether n is an element with the given tag.
func IsElement(n *html.Node, tag string) bool {
	return n != nil && n.Type == html.ElementNode && n.Data == tag
}

// HasAncestor reports whether any ancestor of n satisfies match.
func HasAncestor(n *html.Node, match func(*html.Node) bool) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if match(p) {
			return true
		}
	}
	return false
}

// Contains reports whether n is root or one of its descendants.
func Contains(root, n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n == root {
			return true
		}
	}
	return false
}
