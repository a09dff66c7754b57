// Package ui is the minimal element tree the widget renders into.
//
// It stands in for the page DOM: a Document owns a tree of Elements addressed by id,
// elements carry text, attributes and click handlers, and only elements connected to the
// document body can be found or clicked. Every element of a document shares the
// document's lock, so a provider goroutine rendering into a container and the widget
// thread re-rendering the cart never interleave a tree mutation.
package ui

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// Document is the root of an element tree.
type Document struct {
	mu     sync.Mutex
	body   *Element
	alerts []string
}

// Element is a node of a Document.
type Element struct {
	doc      *Document
	tag      string
	id       string
	text     string
	attrs    map[string]string
	children []*Element
	parent   *Element
	handlers map[string][]func()
}

// NewDocument creates a document with an empty body.
func NewDocument() *Document {
	d := &Document{}
	d.body = d.Create("body", "")
	return d
}

// Body returns the root element.
func (d *Document) Body() *Element { return d.body }

// Create makes a detached element owned by this document.
func (d *Document) Create(tag, id string) *Element {
	return &Element{doc: d, tag: tag, id: id}
}

// ByID finds a connected element by id, or nil.
func (d *Document) ByID(id string) *Element {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.body.findLocked(id)
}

// Alert records a user-facing acknowledgment.
func (d *Document) Alert(msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.alerts = append(d.alerts, msg)
}

// Alerts returns every acknowledgment shown so far.
func (d *Document) Alerts() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]string, len(d.alerts))
	copy(out, d.alerts)
	return out
}

// Render writes an indented outline of the connected tree.
func (d *Document) Render(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var sb strings.Builder
	d.body.renderLocked(&sb, 0)
	_, err := io.WriteString(w, sb.String())
	return err
}

func (e *Element) ID() string  { return e.id }
func (e *Element) Tag() string { return e.tag }

// Document returns the owning document.
func (e *Element) Document() *Document { return e.doc }

// Append attaches children to e, detaching them from any previous parent.
func (e *Element) Append(children ...*Element) *Element {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	for _, c := range children {
		if c.parent != nil {
			c.parent.removeChildLocked(c)
		}
		c.parent = e
		e.children = append(e.children, c)
	}
	return e
}

// Clear discards the whole subtree below e. Discarded elements lose their handlers and
// can no longer be found or clicked.
func (e *Element) Clear() {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	e.clearLocked()
}

func (e *Element) clearLocked() {
	for _, c := range e.children {
		c.releaseLocked()
	}
	e.children = nil
}

func (e *Element) releaseLocked() {
	for _, c := range e.children {
		c.releaseLocked()
	}
	e.parent = nil
	e.handlers = nil
}

// Remove detaches e from its parent, keeping its subtree intact.
func (e *Element) Remove() {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	if e.parent != nil {
		e.parent.removeChildLocked(e)
		e.parent = nil
	}
}

func (e *Element) removeChildLocked(c *Element) {
	for i, child := range e.children {
		if child == c {
			e.children = append(e.children[:i:i], e.children[i+1:]...)
			return
		}
	}
}

// Replace discards e's subtree and attaches children in its place.
func (e *Element) Replace(children ...*Element) {
	e.Clear()
	e.Append(children...)
}

func (e *Element) SetText(text string) *Element {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	e.text = text
	return e
}

// Text returns e's own text, not its children's.
func (e *Element) Text() string {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	return e.text
}

// TextContent returns the concatenated text of e and its subtree.
func (e *Element) TextContent() string {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	var parts []string
	e.collectTextLocked(&parts)
	return strings.Join(parts, " ")
}

func (e *Element) collectTextLocked(parts *[]string) {
	if e.text != "" {
		*parts = append(*parts, e.text)
	}
	for _, c := range e.children {
		c.collectTextLocked(parts)
	}
}

func (e *Element) SetAttr(key, value string) *Element {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	if e.attrs == nil {
		e.attrs = make(map[string]string)
	}
	e.attrs[key] = value
	return e
}

func (e *Element) Attr(key string) string {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	return e.attrs[key]
}

// Children returns a snapshot of e's direct children.
func (e *Element) Children() []*Element {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	out := make([]*Element, len(e.children))
	copy(out, e.children)
	return out
}

// Find returns the descendant with the given id, or nil.
func (e *Element) Find(id string) *Element {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	for _, c := range e.children {
		if found := c.findLocked(id); found != nil {
			return found
		}
	}
	return nil
}

func (e *Element) findLocked(id string) *Element {
	if e.id == id && id != "" {
		return e
	}
	for _, c := range e.children {
		if found := c.findLocked(id); found != nil {
			return found
		}
	}
	return nil
}

// ByClass returns descendants whose class attribute equals class, in document order.
func (e *Element) ByClass(class string) []*Element {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	var out []*Element
	var walk func(*Element)
	walk = func(n *Element) {
		for _, c := range n.children {
			if c.attrs["class"] == class {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(e)
	return out
}

// On binds a handler for a named event such as "click".
func (e *Element) On(event string, fn func()) *Element {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	if e.handlers == nil {
		e.handlers = make(map[string][]func())
	}
	e.handlers[event] = append(e.handlers[event], fn)
	return e
}

// HandlerCount reports how many handlers are bound for event.
func (e *Element) HandlerCount(event string) int {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	return len(e.handlers[event])
}

// Dispatch runs the handlers bound for event and reports whether any ran. Detached
// elements ignore events. Handlers run without the document lock held.
func (e *Element) Dispatch(event string) bool {
	e.doc.mu.Lock()
	if !e.connectedLocked() {
		e.doc.mu.Unlock()
		return false
	}
	hs := make([]func(), len(e.handlers[event]))
	copy(hs, e.handlers[event])
	e.doc.mu.Unlock()

	for _, h := range hs {
		h()
	}
	return len(hs) > 0
}

// Click dispatches a "click" event.
func (e *Element) Click() bool { return e.Dispatch("click") }

// Connected reports whether e is attached to the document body.
func (e *Element) Connected() bool {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	return e.connectedLocked()
}

func (e *Element) connectedLocked() bool {
	for n := e; n != nil; n = n.parent {
		if n == e.doc.body {
			return true
		}
	}
	return false
}

func (e *Element) renderLocked(sb *strings.Builder, depth int) {
	if e.attrs["display"] == "none" {
		return
	}
	fmt.Fprintf(sb, "%s<%s", strings.Repeat("  ", depth), e.tag)
	if e.id != "" {
		fmt.Fprintf(sb, " #%s", e.id)
	}
	keys := make([]string, 0, len(e.attrs))
	for k := range e.attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(sb, " %s=%q", k, e.attrs[k])
	}
	sb.WriteString(">")
	if e.text != "" {
		fmt.Fprintf(sb, " %s", e.text)
	}
	sb.WriteString("\n")
	for _, c := range e.children {
		c.renderLocked(sb, depth+1)
	}
}
