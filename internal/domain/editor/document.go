// Package editor provides the reference host editor: a minimal
// embed-bearing document used by the websocket relay sessions and by
// tests. Real deployments may bind any editor that satisfies the
// upload contracts instead.
package editor

import (
	"strings"
	"sync"
	"unicode/utf8"

	"inkwell-server-go/internal/domain/upload"
)

// Run is one contiguous piece of content: text, or a single embedded
// object when Embed is set.
type Run struct {
	Text  string
	Embed *Embed
}

// Embed is an embedded object. An embed occupies exactly one position
// in the document.
type Embed struct {
	Type    string
	Payload any
	Source  upload.Source
}

// Document holds ordered runs of text and embeds, a cursor, a toolbar
// handler registry, a deferred task queue, and drop/paste subscriber
// lists. It implements the orchestrator's Editor, EventSource,
// CaretPlacer, and Deferrer contracts. Safe for concurrent use.
type Document struct {
	mu           sync.RWMutex
	runs         []Run
	selection    int
	hasSelection bool

	handlers map[string]func()

	nextSub   int
	dropSubs  map[int]func(upload.DropEvent)
	pasteSubs map[int]func(upload.PasteEvent)

	deferred []func()
}

// NewDocument creates a document seeded with the given text.
func NewDocument(text string) *Document {
	doc := &Document{
		handlers:  make(map[string]func()),
		dropSubs:  make(map[int]func(upload.DropEvent)),
		pasteSubs: make(map[int]func(upload.PasteEvent)),
	}
	if text != "" {
		doc.runs = append(doc.runs, Run{Text: text})
	}
	return doc
}

// Length returns the document length in positions; every embed counts
// as one.
func (d *Document) Length() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lengthLocked()
}

func (d *Document) lengthLocked() int {
	total := 0
	for _, run := range d.runs {
		if run.Embed != nil {
			total++
			continue
		}
		total += utf8.RuneCountInString(run.Text)
	}
	return total
}

// Selection reports the cursor index, false when no cursor is active.
func (d *Document) Selection() (int, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.selection, d.hasSelection
}

// SetSelection moves the cursor, clamped into the document bounds.
func (d *Document) SetSelection(index int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if index < 0 {
		index = 0
	}
	if length := d.lengthLocked(); index > length {
		index = length
	}
	d.selection = index
	d.hasSelection = true
}

// ClearSelection removes the cursor.
func (d *Document) ClearSelection() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.selection = 0
	d.hasSelection = false
}

// PlaceCaret repositions the cursor for a drop gesture.
func (d *Document) PlaceCaret(index int) {
	d.SetSelection(index)
}

// InsertEmbed places an embed at index, splitting a text run when the
// index falls inside one. An index past the end appends.
func (d *Document) InsertEmbed(index int, embedType string, payload any, source upload.Source) {
	d.mu.Lock()
	defer d.mu.Unlock()

	embed := Run{Embed: &Embed{Type: embedType, Payload: payload, Source: source}}
	if index < 0 {
		index = 0
	}

	out := make([]Run, 0, len(d.runs)+2)
	remaining := index
	inserted := false
	for _, run := range d.runs {
		if inserted {
			out = append(out, run)
			continue
		}

		size := 1
		if run.Embed == nil {
			size = utf8.RuneCountInString(run.Text)
		}

		switch {
		case remaining > size:
			remaining -= size
			out = append(out, run)
		case remaining == size:
			out = append(out, run, embed)
			inserted = true
		case run.Embed != nil:
			out = append(out, embed, run)
			inserted = true
		default:
			runes := []rune(run.Text)
			if before := string(runes[:remaining]); before != "" {
				out = append(out, Run{Text: before})
			}
			out = append(out, embed)
			if after := string(runes[remaining:]); after != "" {
				out = append(out, Run{Text: after})
			}
			inserted = true
		}
	}
	if !inserted {
		out = append(out, embed)
	}
	d.runs = out
}

// RegisterHandler binds a toolbar action. The returned func removes the
// binding.
func (d *Document) RegisterHandler(action string, h func()) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[action] = h
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.handlers, action)
	}
}

// Trigger runs the handler bound to action and reports whether one ran.
func (d *Document) Trigger(action string) bool {
	d.mu.RLock()
	h := d.handlers[action]
	d.mu.RUnlock()
	if h == nil {
		return false
	}
	h()
	return true
}

// OnDrop subscribes to drop gestures; the returned func unsubscribes.
func (d *Document) OnDrop(h func(upload.DropEvent)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextSub
	d.nextSub++
	d.dropSubs[id] = h
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.dropSubs, id)
	}
}

// OnPaste subscribes to paste gestures; the returned func unsubscribes.
func (d *Document) OnPaste(h func(upload.PasteEvent)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextSub
	d.nextSub++
	d.pasteSubs[id] = h
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.pasteSubs, id)
	}
}

// EmitDrop delivers one drop gesture to every subscriber. Handlers run
// outside the document lock so they may call back in.
func (d *Document) EmitDrop(event upload.DropEvent) {
	d.mu.RLock()
	subs := make([]func(upload.DropEvent), 0, len(d.dropSubs))
	for _, h := range d.dropSubs {
		subs = append(subs, h)
	}
	d.mu.RUnlock()
	for _, h := range subs {
		h(event)
	}
}

// EmitPaste delivers one paste gesture to every subscriber.
func (d *Document) EmitPaste(event upload.PasteEvent) {
	d.mu.RLock()
	subs := make([]func(upload.PasteEvent), 0, len(d.pasteSubs))
	for _, h := range d.pasteSubs {
		subs = append(subs, h)
	}
	d.mu.RUnlock()
	for _, h := range subs {
		h(event)
	}
}

// Defer queues a task for the next tick.
func (d *Document) Defer(task func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deferred = append(d.deferred, task)
}

// RunDeferred drains the deferred queue in order. The host decides what
// a tick is; the ws relay drains after each inbound frame.
func (d *Document) RunDeferred() {
	d.mu.Lock()
	tasks := d.deferred
	d.deferred = nil
	d.mu.Unlock()
	for _, task := range tasks {
		task()
	}
}

// Runs returns a copy of the document content.
func (d *Document) Runs() []Run {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Run, len(d.runs))
	copy(out, d.runs)
	return out
}

// Embeds returns the document's embeds in order.
func (d *Document) Embeds() []Embed {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []Embed
	for _, run := range d.runs {
		if run.Embed != nil {
			out = append(out, *run.Embed)
		}
	}
	return out
}

// PlainText renders the content with every embed as one object
// replacement character.
func (d *Document) PlainText() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var b strings.Builder
	for _, run := range d.runs {
		if run.Embed != nil {
			b.WriteRune('￼')
			continue
		}
		b.WriteString(run.Text)
	}
	return b.String()
}
