package html_util

import (
	"bufio"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ParseFragment parses `source` as content of a <body> element. Parsed nodes
// are attached to a new document node, which is returned as container.
func ParseFragment(source string) (*html.Node, error) {
	context := &html.Node{
		Type:     html.ElementNode,
		Data:     atom.Body.String(),
		DataAtom: atom.Body,
	}

	nodes, err := html.ParseFragment(strings.NewReader(source), context)
	if err != nil {
		return nil, err
	}

	container := &html.Node{
		Type: html.DocumentNode,
	}
	for _, node := range nodes {
		container.AppendChild(node)
	}

	return container, nil
}

// IsDocument reports whether `source` is a full HTML document rather than a
// fragment, that is it starts with a doctype or an <html> tag. Leading
// whitespace and byte order mark are ignored.
func IsDocument(source string) bool {
	source = strings.TrimLeft(source, "\ufeff \t\r\n\f")

	prefix := strings.ToLower(source[:min(len(source), 9)])
	if strings.HasPrefix(prefix, "<!doctype") {
		return true
	} else if !strings.HasPrefix(prefix, "<html") {
		return false
	}

	if len(source) == 5 {
		return true
	}

	switch source[5] {
	case '>', '/', ' ', '\t', '\r', '\n', '\f':
		return true
	default:
		return false
	}
}

// ParseDocument parses `source` as a complete document, returned node is the
// document root.
func ParseDocument(source string) (*html.Node, error) {
	return html.Parse(strings.NewReader(source))
}

// RenderDocument renders the whole tree under document node, doctype included.
func RenderDocument(doc *html.Node) (string, error) {
	buffer := &strings.Builder{}
	if err := html.Render(buffer, doc); err != nil {
		return "", err
	}
	return buffer.String(), nil
}

// RenderChildren renders all children of given node in order, the node itself
// is not included in output.
func RenderChildren(node *html.Node) (string, error) {
	buffer := &strings.Builder{}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if err := html.Render(buffer, child); err != nil {
			return "", err
		}
	}
	return buffer.String(), nil
}

// NewElement creates a detached element node with given tag and attributes.
func NewElement(tag atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     tag.String(),
		DataAtom: tag,
		Attr:     attrs,
	}
}

// PrependChild inserts `child` as the first child of `parent`.
func PrependChild(parent, child *html.Node) {
	if parent.FirstChild == nil {
		parent.AppendChild(child)
	} else {
		parent.InsertBefore(child, parent.FirstChild)
	}
}

// WrapNode replaces `node` in its parent with `wrapper`, then moves `node`
// under `wrapper` as its last child. Detached node is wrapped without being
// attached to anything.
func WrapNode(node, wrapper *html.Node) {
	if parent := node.Parent; parent != nil {
		parent.InsertBefore(wrapper, node)
		parent.RemoveChild(node)
	}
	wrapper.AppendChild(node)
}

func GetNodeAttr(node *html.Node, attrName string) *html.Attribute {
	var result *html.Attribute

	for i := range node.Attr {
		attr := &node.Attr[i]
		if attr.Key == attrName {
			result = attr
			break
		}
	}

	return result
}

// GetNodeAttrVal returns value of specified attreibute. If such attribute cannot
// be found, this function will return `defaultValue` instead.
func GetNodeAttrVal(node *html.Node, attrName string, defaultValue string) (string, bool) {
	if attr := GetNodeAttr(node, attrName); attr != nil {
		return attr.Val, true
	} else {
		return defaultValue, false
	}
}

// SetNodeAttr updates value of an existing attribute in place, or appends a new
// attribute to the end of attribute list.
func SetNodeAttr(node *html.Node, attrName, value string) {
	if attr := GetNodeAttr(node, attrName); attr != nil {
		attr.Val = value
		return
	}

	node.Attr = append(node.Attr, html.Attribute{
		Key: attrName,
		Val: value,
	})
}

// RemoveNodeAttr deletes all attributes with given name. Returns true if
// anything was removed.
func RemoveNodeAttr(node *html.Node, attrName string) bool {
	kept := node.Attr[:0]
	for _, attr := range node.Attr {
		if attr.Key != attrName {
			kept = append(kept, attr)
		}
	}

	removed := len(kept) != len(node.Attr)
	node.Attr = kept

	return removed
}

// RenameNodeAttr changes name of an attribute while keeping its position. An
// existing attribute named `newName` is dropped first.
func RenameNodeAttr(node *html.Node, oldName, newName string) bool {
	if GetNodeAttr(node, oldName) == nil {
		return false
	}

	RemoveNodeAttr(node, newName)
	GetNodeAttr(node, oldName).Key = newName

	return true
}

func splitClass(classStr string) []string {
	names := []string{}

	scan := bufio.NewScanner(strings.NewReader(classStr))
	scan.Split(bufio.ScanWords)
	for scan.Scan() {
		names = append(names, scan.Text())
	}

	return names
}

func HasClass(node *html.Node, className string) bool {
	classStr, _ := GetNodeAttrVal(node, "class", "")
	for _, name := range splitClass(classStr) {
		if name == className {
			return true
		}
	}
	return false
}

// AddClass appends a class token to node's class attribute, attribute is
// created when missing. Token already present will not be added again.
func AddClass(node *html.Node, className string) {
	attr := GetNodeAttr(node, "class")
	if attr == nil {
		SetNodeAttr(node, "class", className)
		return
	}

	names := splitClass(attr.Val)
	for _, name := range names {
		if name == className {
			return
		}
	}

	attr.Val = strings.Join(append(names, className), " ")
}

type NodeMatchArgs struct {
	Type  map[html.NodeType]bool
	Tag   map[atom.Atom]bool // a list of allowed tag type
	Id    map[string]bool    // node should have specified ID
	Class map[string]bool    // node should contain specified classes
	Attr  map[string]bool    // node should have specified attributes

	MatchFunc func(*html.Node, *NodeMatchArgs) bool // custom matching function to use in addition to tag meta data rules.

	Root *html.Node // starting point of this match argument, this node won't be included in search result.
}

func CheckNodeIsMatch(node *html.Node, args *NodeMatchArgs) bool {
	if node == args.Root {
		return false
	}

	if args.Type != nil {
		if _, ok := args.Type[node.Type]; !ok {
			return false
		}
	}

	if args.Tag != nil {
		if _, ok := args.Tag[node.DataAtom]; !ok {
			return false
		}
	}

	if args.Id != nil {
		id, _ := GetNodeAttrVal(node, "id", "")
		if _, ok := args.Id[id]; !ok {
			return false
		}
	}

	if args.Class != nil {
		class := map[string]bool{}
		classStr, _ := GetNodeAttrVal(node, "class", "")
		for _, name := range splitClass(classStr) {
			class[name] = true
		}

		for k := range args.Class {
			if !class[k] {
				return false
			}
		}
	}

	if args.Attr != nil {
		attrSet := map[string]bool{}
		for _, attr := range node.Attr {
			attrSet[attr.Key] = true
		}

		for name := range args.Attr {
			if !attrSet[name] {
				return false
			}
		}
	}

	if args.MatchFunc != nil {
		if !args.MatchFunc(node, args) {
			return false
		}
	}

	return true
}

// FindAllMatchingNodes returns all matching nodes under `args.Root` in
// document order.
func FindAllMatchingNodes(args *NodeMatchArgs) []*html.Node {
	matches := []*html.Node{}
	if args.Root == nil {
		return matches
	}

	var walk func(node *html.Node)
	walk = func(node *html.Node) {
		if CheckNodeIsMatch(node, args) {
			matches = append(matches, node)
		}

		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(args.Root)

	return matches
}
