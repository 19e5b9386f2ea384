// Package page hosts widgets inside an HTML document held in memory. Click handlers run
// in-process for tests, and Finalize turns them into markup the bootstrap script replays
// in the browser.
package page

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/MarkoPoloResearchLab/reseller_cta/internal/task"
)

// Markup attributes read by the bootstrap script.
const (
	AttributeNode     = "data-trc-node"
	AttributeAppend   = "data-trc-append"
	AttributeRemove   = "data-trc-remove"
	AttributeSelf     = "data-trc-self"
	AttributeTemplate = "data-trc-template"
	AttributeDelay    = "data-trc-delay"

	nodeIDPrefix = "trc-"

	errorMessageParse       = "page: parse document"
	errorMessageMissingBody = "page: document has no body"
	errorMessageRender      = "page: render document"
)

// ErrMissingBody indicates the parsed markup lacks head or body elements.
var ErrMissingBody = errors.New(errorMessageMissingBody)

const blankDocument = "<!doctype html><html><head></head><body></body></html>"

type clickBinding struct {
	selfOnly bool
	handler  func()
}

type captureEffects struct {
	appended []*html.Node
	removed  []*html.Node
}

// Document is an HTML page that widgets draw into.
type Document struct {
	documentMutex sync.Mutex
	root          *html.Node
	head          *html.Node
	body          *html.Node
	bindings      map[*html.Node][]clickBinding
	boundNodes    []*html.Node
	capture       *captureEffects
	newNodeID     func() string
}

// Parse reads a full HTML document.
func Parse(reader io.Reader) (*Document, error) {
	root, parseErr := html.Parse(reader)
	if parseErr != nil {
		return nil, fmt.Errorf("%s: %w", errorMessageParse, parseErr)
	}
	document := &Document{
		root:     root,
		head:     findFirst(root, atom.Head),
		body:     findFirst(root, atom.Body),
		bindings: make(map[*html.Node][]clickBinding),
		newNodeID: func() string {
			return nodeIDPrefix + uuid.NewString()
		},
	}
	if document.head == nil || document.body == nil {
		return nil, ErrMissingBody
	}
	return document, nil
}

// ParseBytes is Parse over an in-memory page.
func ParseBytes(payload []byte) (*Document, error) {
	return Parse(bytes.NewReader(payload))
}

// Blank returns an empty document.
func Blank() *Document {
	document, _ := Parse(strings.NewReader(blankDocument))
	return document
}

func (document *Document) Head() *html.Node {
	return document.head
}

func (document *Document) Body() *html.Node {
	return document.body
}

// InstallStyle appends a style element to the head.
func (document *Document) InstallStyle(css string) {
	style := &html.Node{Type: html.ElementNode, Data: atom.Style.String(), DataAtom: atom.Style}
	style.AppendChild(&html.Node{Type: html.TextNode, Data: css})

	document.documentMutex.Lock()
	defer document.documentMutex.Unlock()
	document.head.AppendChild(style)
}

// Append adds a detached node at the end of the body.
func (document *Document) Append(node *html.Node) {
	if node == nil {
		return
	}
	document.documentMutex.Lock()
	defer document.documentMutex.Unlock()
	if document.capture != nil {
		document.capture.appended = append(document.capture.appended, node)
		return
	}
	detach(node)
	document.body.AppendChild(node)
}

// Remove detaches a node from wherever it sits.
func (document *Document) Remove(node *html.Node) {
	if node == nil {
		return
	}
	document.documentMutex.Lock()
	defer document.documentMutex.Unlock()
	if document.capture != nil {
		document.capture.removed = append(document.capture.removed, node)
		return
	}
	detach(node)
}

func (document *Document) OnClick(node *html.Node, selfOnly bool, handler func()) {
	if node == nil || handler == nil {
		return
	}
	document.documentMutex.Lock()
	defer document.documentMutex.Unlock()
	if _, known := document.bindings[node]; !known {
		document.boundNodes = append(document.boundNodes, node)
	}
	document.bindings[node] = append(document.bindings[node], clickBinding{selfOnly: selfOnly, handler: handler})
}

// Click dispatches a click on target, bubbling through its ancestors.
func (document *Document) Click(target *html.Node) {
	document.documentMutex.Lock()
	var handlers []func()
	for current := target; current != nil; current = current.Parent {
		for _, binding := range document.bindings[current] {
			if binding.selfOnly && current != target {
				continue
			}
			handlers = append(handlers, binding.handler)
		}
	}
	document.documentMutex.Unlock()

	for _, handler := range handlers {
		handler()
	}
}

// Contains reports whether node is attached to the document.
func (document *Document) Contains(node *html.Node) bool {
	document.documentMutex.Lock()
	defer document.documentMutex.Unlock()
	for current := node; current != nil; current = current.Parent {
		if current == document.root {
			return true
		}
	}
	return false
}

// FindByClass returns attached elements carrying the class name, in document order.
func (document *Document) FindByClass(className string) []*html.Node {
	document.documentMutex.Lock()
	defer document.documentMutex.Unlock()
	var matches []*html.Node
	walk(document.root, func(node *html.Node) {
		if hasClass(node, className) {
			matches = append(matches, node)
		}
	})
	return matches
}

// Finalize prepares the document for the browser. Pending tasks and click handlers run in
// capture mode: the nodes they would append become templates and the nodes they would
// remove are referenced by id. scriptURL, when set, loads the bootstrap that replays them.
func (document *Document) Finalize(pending []task.Pending, scriptURL string) {
	for _, deferred := range pending {
		effects := document.captureRun(deferred.Run)
		if len(effects.appended) == 0 {
			continue
		}
		template := document.newTemplate(effects.appended)
		setAttribute(template, AttributeDelay, fmt.Sprintf("%d", deferred.Delay.Milliseconds()))
		document.appendRaw(template)
	}

	processed := make(map[*html.Node]struct{})
	for {
		node, bindings := document.nextUnprocessed(processed)
		if node == nil {
			break
		}
		processed[node] = struct{}{}
		document.finalizeBindings(node, bindings)
	}

	if strings.TrimSpace(scriptURL) != "" {
		script := &html.Node{Type: html.ElementNode, Data: atom.Script.String(), DataAtom: atom.Script}
		setAttribute(script, "src", scriptURL)
		setAttribute(script, "defer", "")
		document.appendRaw(script)
	}
}

// Render serializes the document.
func (document *Document) Render(writer io.Writer) error {
	document.documentMutex.Lock()
	defer document.documentMutex.Unlock()
	if renderErr := html.Render(writer, document.root); renderErr != nil {
		return fmt.Errorf("%s: %w", errorMessageRender, renderErr)
	}
	return nil
}

// Bytes renders the document into memory.
func (document *Document) Bytes() ([]byte, error) {
	var buffer bytes.Buffer
	if renderErr := document.Render(&buffer); renderErr != nil {
		return nil, renderErr
	}
	return buffer.Bytes(), nil
}

func (document *Document) finalizeBindings(node *html.Node, bindings []clickBinding) {
	document.ensureNodeID(node)
	var appendTemplates []string
	var removeTargets []string
	selfOnly := false
	for _, binding := range bindings {
		selfOnly = selfOnly || binding.selfOnly
		effects := document.captureRun(binding.handler)
		if len(effects.appended) > 0 {
			template := document.newTemplate(effects.appended)
			document.appendRaw(template)
			appendTemplates = append(appendTemplates, attributeValue(template, AttributeTemplate))
		}
		for _, removed := range effects.removed {
			removeTargets = append(removeTargets, document.ensureNodeID(removed))
		}
	}
	if len(appendTemplates) > 0 {
		setAttribute(node, AttributeAppend, strings.Join(appendTemplates, " "))
	}
	if len(removeTargets) > 0 {
		setAttribute(node, AttributeRemove, strings.Join(removeTargets, " "))
	}
	if selfOnly {
		setAttribute(node, AttributeSelf, "true")
	}
}

func (document *Document) nextUnprocessed(processed map[*html.Node]struct{}) (*html.Node, []clickBinding) {
	document.documentMutex.Lock()
	defer document.documentMutex.Unlock()
	for _, node := range document.boundNodes {
		if _, done := processed[node]; done {
			continue
		}
		return node, append([]clickBinding(nil), document.bindings[node]...)
	}
	return nil, nil
}

func (document *Document) captureRun(run func()) *captureEffects {
	effects := &captureEffects{}
	document.documentMutex.Lock()
	document.capture = effects
	document.documentMutex.Unlock()

	defer func() {
		document.documentMutex.Lock()
		document.capture = nil
		document.documentMutex.Unlock()
	}()
	run()
	return effects
}

func (document *Document) newTemplate(children []*html.Node) *html.Node {
	template := &html.Node{Type: html.ElementNode, Data: atom.Template.String(), DataAtom: atom.Template}
	setAttribute(template, AttributeTemplate, document.newNodeID())
	for _, child := range children {
		detach(child)
		template.AppendChild(child)
	}
	return template
}

func (document *Document) appendRaw(node *html.Node) {
	document.documentMutex.Lock()
	defer document.documentMutex.Unlock()
	document.body.AppendChild(node)
}

func (document *Document) ensureNodeID(node *html.Node) string {
	if existing := attributeValue(node, AttributeNode); existing != "" {
		return existing
	}
	nodeID := document.newNodeID()
	setAttribute(node, AttributeNode, nodeID)
	return nodeID
}

func detach(node *html.Node) {
	if node.Parent != nil {
		node.Parent.RemoveChild(node)
	}
}

func findFirst(root *html.Node, tag atom.Atom) *html.Node {
	var found *html.Node
	walk(root, func(node *html.Node) {
		if found == nil && node.Type == html.ElementNode && node.DataAtom == tag {
			found = node
		}
	})
	return found
}

func walk(node *html.Node, visit func(*html.Node)) {
	if node == nil {
		return
	}
	visit(node)
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		walk(child, visit)
	}
}

func hasClass(node *html.Node, className string) bool {
	if node.Type != html.ElementNode {
		return false
	}
	for _, candidate := range strings.Fields(attributeValue(node, "class")) {
		if candidate == className {
			return true
		}
	}
	return false
}

func attributeValue(node *html.Node, key string) string {
	for _, attribute := range node.Attr {
		if attribute.Key == key {
			return attribute.Val
		}
	}
	return ""
}

func setAttribute(node *html.Node, key string, value string) {
	for index, attribute := range node.Attr {
		if attribute.Key == key {
			node.Attr[index].Val = value
			return
		}
	}
	node.Attr = append(node.Attr, html.Attribute{Key: key, Val: value})
}

// Attribute returns the value of an attribute or the empty string.
func Attribute(node *html.Node, key string) string {
	if node == nil {
		return ""
	}
	return attributeValue(node, key)
}

// TextContent concatenates the text beneath node.
func TextContent(node *html.Node) string {
	var builder strings.Builder
	walk(node, func(current *html.Node) {
		if current.Type == html.TextNode {
			builder.WriteString(current.Data)
		}
	})
	return builder.String()
}
