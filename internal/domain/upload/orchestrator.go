// Package upload implements the image attachment orchestrator: intake
// from toolbar selection, drag-drop, and clipboard paste; image MIME
// filtering; a user-overridable pre-send check; and a three-way send
// strategy (custom uploader, multipart upload, base64 fallback) feeding
// a single document insert funnel.
package upload

import (
	"context"
	"strconv"
	"sync"

	"inkwell-server-go/internal/platform/errors"
	"inkwell-server-go/internal/platform/logging"
	"inkwell-server-go/internal/platform/observability"
)

// Options carries the construction collaborators that are not part of
// the upload configuration itself.
type Options struct {
	Logger *logging.Logger
	// Picker backs the toolbar "image" action. Without one the action
	// logs and does nothing.
	Picker FilePicker
}

// Orchestrator drives image attachments for one bound editor. Each
// file's chain runs on its own goroutine with no ordering guarantees
// across a batch; the orchestrator itself keeps no per-file state.
type Orchestrator struct {
	editor Editor
	cfg    Config
	logger *logging.Logger
	picker FilePicker

	mu           sync.Mutex
	attached     bool
	unsubscribes []func()
}

// New binds an editor and resolves the configuration. Defaults are
// baked in here once; the orchestrator never consults the original
// Config again. No listeners are registered until Attach.
func New(editor Editor, cfg Config, opts Options) (*Orchestrator, error) {
	if editor == nil {
		return nil, errors.New(errors.KindUpload, "upload.new", "editor must not be nil")
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.DefaultLogger
	}

	resolved, err := resolveConfig(cfg, logger)
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		editor: editor,
		cfg:    resolved,
		logger: logger,
		picker: opts.Picker,
	}, nil
}

// Attach registers the toolbar "image" handler and, when the editor
// exposes an event source, the drop and paste listeners. Attach on an
// already attached orchestrator is a no-op.
func (o *Orchestrator) Attach() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.attached {
		return
	}
	o.attached = true

	o.unsubscribes = append(o.unsubscribes, o.editor.RegisterHandler("image", o.pickAndSend))

	if source, ok := o.editor.(EventSource); ok {
		o.unsubscribes = append(o.unsubscribes, source.OnDrop(o.HandleDrop))
		o.unsubscribes = append(o.unsubscribes, source.OnPaste(o.HandlePaste))
	}
}

// Detach removes everything Attach registered. Detach on a never
// attached orchestrator is a no-op.
func (o *Orchestrator) Detach() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.attached {
		return
	}
	o.attached = false

	for _, unsubscribe := range o.unsubscribes {
		unsubscribe()
	}
	o.unsubscribes = nil
}

// pickAndSend is the toolbar action: open the host file picker
// restricted to images and feed the selection through intake.
func (o *Orchestrator) pickAndSend() {
	if o.picker == nil {
		o.logger.WarnTag("Upload", "image action triggered without a file picker")
		return
	}

	files, err := o.picker.Pick(context.Background(), "image/*")
	if err != nil {
		o.logger.ErrorTag("Upload", "file picker failed: %v", err)
		return
	}
	o.HandleSelect(files)
}

// HandleSelect feeds files from the toolbar selection path.
func (o *Orchestrator) HandleSelect(files []File) {
	for _, file := range o.filterImages(files) {
		go o.process(file)
	}
}

// HandleDrop feeds one drop gesture. When the host computed a caret
// index from the drop coordinates and the editor can place the caret,
// the cursor moves there before any insertion happens.
func (o *Orchestrator) HandleDrop(event DropEvent) {
	if event.CaretIndex != nil {
		if placer, ok := o.editor.(CaretPlacer); ok {
			placer.PlaceCaret(*event.CaretIndex)
		}
	}
	for _, file := range o.filterImages(event.Files) {
		go o.process(file)
	}
}

// HandlePaste feeds one clipboard paste. The upload policy routes files
// through the same chain as selection and drop. The inline policy
// decodes each file to a data URI and inserts directly, deferred one
// tick when the editor supports it so late-settling selection state is
// still honored.
func (o *Orchestrator) HandlePaste(event PasteEvent) {
	files := o.filterImages(event.Files)

	if o.cfg.PastePolicy == PasteInline {
		for _, file := range files {
			uri := DataURI(file)
			insert := func() { o.insert(uri) }
			if deferrer, ok := o.editor.(Deferrer); ok {
				deferrer.Defer(insert)
				continue
			}
			insert()
		}
		return
	}

	for _, file := range files {
		go o.process(file)
	}
}

// filterImages drops every non-image entry. Dropped files are logged
// and nothing else: no alert, no document mutation, no failure callback.
func (o *Orchestrator) filterImages(files []File) []File {
	var kept []File
	for _, file := range files {
		file = file.Sniffed()
		if !file.IsImage() {
			o.logger.InfoTag("Upload", "dropping non-image file %q (%s)", file.Name, file.MIME)
			continue
		}
		kept = append(kept, file)
	}
	return kept
}

// process runs one file's chain: pre-send check, then send, then
// insert. The chain is never cancelled and has no timeout; a check that
// never calls next parks the chain forever. next is honored once.
func (o *Orchestrator) process(file File) {
	ctx, end := observability.StartSpan(context.Background(), "upload", "process")

	var once sync.Once
	o.cfg.CheckBeforeSend(file, func(checked File) {
		once.Do(func() {
			o.sendToServer(ctx, checked)
			end(nil)
		})
	})
}

// sendToServer picks the send strategy: the custom uploader when set,
// the built-in request when a URL is configured, the base64 fallback
// otherwise. Exactly one path runs per file.
func (o *Orchestrator) sendToServer(ctx context.Context, file File) {
	switch {
	case o.cfg.CustomUploader != nil:
		o.cfg.CustomUploader(file, o.insert)

	case o.cfg.URL != "":
		payload, uploadErr := o.sendRequest(file)
		if uploadErr != nil {
			observability.RecordCount(ctx, "upload.failed", 1, map[string]string{
				"code": strconv.Itoa(uploadErr.Code),
			})
			o.cfg.CallbackKO(*uploadErr)
			return
		}
		observability.RecordCount(ctx, "upload.completed", 1, nil)
		o.cfg.CallbackOK(payload, o.insert)

	default:
		o.cfg.CallbackOK(DataURI(file), o.insert)
	}
}

// insert is the single funnel that mutates the document: at the current
// selection index when one exists, at the document end otherwise.
// Stateless across calls and attributed to the user.
func (o *Orchestrator) insert(payload any) {
	index, ok := o.editor.Selection()
	if !ok {
		index = o.editor.Length()
	}
	o.editor.InsertEmbed(index, "image", payload, SourceUser)
}
