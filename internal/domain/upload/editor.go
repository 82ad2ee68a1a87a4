package upload

import "context"

// Source attributes a document mutation to its originator.
type Source string

const (
	SourceUser Source = "user"
	SourceAPI  Source = "api"
)

// Editor is the host editor surface the orchestrator drives. Selection
// reports the current cursor index, false when no cursor is active.
// RegisterHandler binds a toolbar action by name and returns the
// matching unregister func.
type Editor interface {
	Selection() (int, bool)
	Length() int
	InsertEmbed(index int, embedType string, payload any, source Source)
	RegisterHandler(action string, h func()) (unregister func())
}

// DropEvent carries the files of one drop gesture plus the caret index
// the host computed from the drop coordinates, when it has one.
type DropEvent struct {
	Files      []File
	CaretIndex *int
}

// PasteEvent carries the files extracted from one clipboard paste.
type PasteEvent struct {
	Files []File
}

// EventSource is an optional editor capability: hosts that surface drop
// and paste gestures implement it so Attach can subscribe. Both methods
// return the matching unsubscribe func.
type EventSource interface {
	OnDrop(h func(DropEvent)) (unsubscribe func())
	OnPaste(h func(PasteEvent)) (unsubscribe func())
}

// CaretPlacer is an optional editor capability: reposition the cursor
// before a drop insertion.
type CaretPlacer interface {
	PlaceCaret(index int)
}

// Deferrer is an optional editor capability: run a task on the next
// scheduler tick. Hosts whose selection state settles late after a
// paste implement it.
type Deferrer interface {
	Defer(task func())
}

// FilePicker opens the host's native file dialog. accept is a MIME
// pattern such as "image/*".
type FilePicker interface {
	Pick(ctx context.Context, accept string) ([]File, error)
}

// PickerFunc adapts a plain func to the FilePicker interface.
type PickerFunc func(ctx context.Context, accept string) ([]File, error)

func (f PickerFunc) Pick(ctx context.Context, accept string) ([]File, error) {
	return f(ctx, accept)
}

// Notifier surfaces a user-facing alert.
type Notifier interface {
	Alert(message string)
}
