package protocol

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/zot/pagelayer/internal/composer"
	"github.com/zot/pagelayer/internal/document"
	"github.com/zot/pagelayer/internal/interaction"
	"github.com/zot/pagelayer/internal/logging"
	"github.com/zot/pagelayer/internal/storage"
	"github.com/zot/pagelayer/internal/transform"
	"github.com/zot/pagelayer/internal/upload"
)

var (
	ErrUnknownMessage = errors.New("unknown message type")
	// ErrRefused is returned for structural edits the hierarchy forbids.
	ErrRefused   = errors.New("refused")
	ErrNoStorage = errors.New("no storage configured")
	ErrNoScripts = errors.New("scripting disabled")
)

// ScriptRunner runs a named script against the document.
type ScriptRunner interface {
	RunNamed(ctx context.Context, doc *document.Document, name string) error
}

// Options configures a Handler.
type Options struct {
	Uploads       upload.Reader
	Backend       storage.Backend
	RotationAware bool
	Scripts       ScriptRunner
	// Post runs fn on the goroutine that owns the document. When nil, uploads
	// are read synchronously.
	Post func(fn func())
	// Context bounds background upload reads. It outlives single requests
	// and defaults to context.Background.
	Context context.Context
	Logger  *logging.Logger
}

// Handler applies view messages to one document and queues the resulting
// page state for the view.
type Handler struct {
	doc  *document.Document
	ctl  *interaction.Controller
	opts Options
	out  *Batcher
	view transform.Transform
	log  *logging.Logger
}

// NewHandler wires a handler to doc and ctl. State messages are queued on out
// whenever the document changes.
func NewHandler(doc *document.Document, ctl *interaction.Controller, out *Batcher, opts Options) *Handler {
	h := &Handler{
		doc:  doc,
		ctl:  ctl,
		opts: opts,
		out:  out,
		view: ctl.View(),
		log:  logging.OrNop(opts.Logger),
	}
	h.view.RotationAware = opts.RotationAware
	h.applyView()
	doc.OnChange(func(document.Change) { h.QueueState() })
	return h
}

func (h *Handler) applyView() {
	h.view.Page = h.doc.PageSize(h.doc.ActivePage())
	h.ctl.SetView(h.view)
}

// State builds the page state message.
func (h *Handler) State() LayersMessage {
	f := h.frame()
	return LayersMessage{
		Page:     h.doc.ActivePage(),
		Layers:   h.doc.Layers(),
		Rows:     f.Rows,
		Selected: h.doc.Selected(),
		Editing:  h.doc.Editing(),
		CanUndo:  h.doc.CanUndo(),
		CanRedo:  h.doc.CanRedo(),
		Visual:   f.Visual,
		Scale:    h.view.Scale,
	}
}

// QueueState queues the current page state, replacing any state not yet sent.
func (h *Handler) QueueState() {
	msg, err := NewMessage(MsgLayers, h.State())
	if err != nil {
		h.log.Error().Err(err).Msg("encode page state")
		return
	}
	h.out.Queue(string(MsgLayers), PriorityMedium, msg)
}

// QueueError queues an error for the view.
func (h *Handler) QueueError(err error) {
	code := "error"
	switch {
	case errors.Is(err, ErrRefused):
		code = "refused"
	case errors.Is(err, upload.ErrNotImage), errors.Is(err, upload.ErrTooLarge):
		code = "bad-upload"
	case errors.Is(err, interaction.ErrNotPlaceholder):
		code = "not-placeholder"
	case errors.Is(err, ErrUnknownMessage):
		code = "unknown-message"
	}
	msg, _ := NewMessage(MsgError, ErrorMessage{Code: code, Description: err.Error()})
	h.out.Queue("", PriorityHigh, msg)
}

func (h *Handler) frame() composer.Frame {
	return composer.Build(composer.State{
		Layers:   h.doc.Layers(),
		Selected: h.doc.Selected(),
		Editing:  h.doc.Editing(),
	}, h.view)
}

func decode[T any](data json.RawMessage) (T, error) {
	var v T
	if len(data) == 0 {
		return v, nil
	}
	err := json.Unmarshal(data, &v)
	return v, err
}

func refused(ok bool, what string) error {
	if ok {
		return nil
	}
	return fmt.Errorf("%s: %w", what, ErrRefused)
}

// Handle applies one message.
func (h *Handler) Handle(ctx context.Context, msg *Message) error {
	h.log.Log(2, "message %s", msg.Type)
	switch msg.Type {
	case MsgSelect:
		m, err := decode[SelectMessage](msg.Data)
		if err != nil {
			return err
		}
		h.doc.Select(m.LayerID)
	case MsgAdd:
		m, err := decode[AddMessage](msg.Data)
		if err != nil {
			return err
		}
		h.doc.Add(m.Kind, m.Overrides)
	case MsgUpdate:
		m, err := decode[UpdateMessage](msg.Data)
		if err != nil {
			return err
		}
		h.doc.Update(m.LayerID, m.Patch)
	case MsgDelete:
		m, err := decode[DeleteMessage](msg.Data)
		if err != nil {
			return err
		}
		h.doc.Delete(m.LayerID)
	case MsgReorder:
		m, err := decode[ReorderMessage](msg.Data)
		if err != nil {
			return err
		}
		return refused(h.doc.Reorder(m.IDs), "reorder")
	case MsgReparent:
		m, err := decode[ReparentMessage](msg.Data)
		if err != nil {
			return err
		}
		return refused(h.doc.Reparent(m.LayerID, m.ParentID), "reparent "+m.LayerID)
	case MsgGroup:
		_, ok := h.doc.Group()
		return refused(ok, "group")
	case MsgUngroup:
		return refused(h.doc.Ungroup(), "ungroup")
	case MsgHide:
		m, err := decode[HideMessage](msg.Data)
		if err != nil {
			return err
		}
		h.doc.SetHidden(m.LayerID, m.Hidden)
	case MsgCollapse:
		m, err := decode[SelectMessage](msg.Data)
		if err != nil {
			return err
		}
		h.doc.ToggleCollapsed(m.LayerID)
	case MsgArrange:
		m, err := decode[ArrangeMessage](msg.Data)
		if err != nil {
			return err
		}
		return h.arrange(m)
	case MsgCell:
		m, err := decode[CellMessage](msg.Data)
		if err != nil {
			return err
		}
		return refused(h.doc.SetCell(m.LayerID, m.Row, m.Col, m.Value), "cell")
	case MsgUndo:
		h.doc.Undo()
	case MsgRedo:
		h.doc.Redo()
	case MsgKey:
		m, err := decode[KeyMessage](msg.Data)
		if err != nil {
			return err
		}
		h.doc.HandleKey(m.Key, m.FocusEditable)
	case MsgPointer:
		in, err := decode[composer.Input](msg.Data)
		if err != nil {
			return err
		}
		h.frame().Dispatch(h.ctl, in)
	case MsgDrop:
		m, err := decode[DropMessage](msg.Data)
		if err != nil {
			return err
		}
		h.ctl.DropNew(m.Kind, m.Payload, transform.Point{X: m.X, Y: m.Y})
	case MsgUpload:
		m, err := decode[UploadMessage](msg.Data)
		if err != nil {
			return err
		}
		return h.upload(ctx, m)
	case MsgPage:
		m, err := decode[PageMessage](msg.Data)
		if err != nil {
			return err
		}
		if m.Page < 1 {
			return fmt.Errorf("page %d: %w", m.Page, ErrRefused)
		}
		if m.Width > 0 && m.Height > 0 {
			h.doc.SetPageSize(m.Page, m.Width, m.Height)
		}
		h.ctl.PointerUp()
		h.doc.SetActivePage(m.Page)
		h.applyView()
		h.QueueState()
	case MsgView:
		m, err := decode[ViewMessage](msg.Data)
		if err != nil {
			return err
		}
		scale, err := h.viewScale(m)
		if err != nil {
			return err
		}
		h.view.Scale = scale
		h.view.Rotation = transform.NormalizeRotation(m.Rotation)
		h.applyView()
		h.QueueState()
	case MsgStyles:
		m, err := decode[StylesMessage](msg.Data)
		if err != nil {
			return err
		}
		h.doc.SetNextStyles(m.Styles)
	case MsgSave:
		if h.opts.Backend == nil {
			return ErrNoStorage
		}
		return h.doc.Save(ctx, h.opts.Backend)
	case MsgScript:
		m, err := decode[ScriptMessage](msg.Data)
		if err != nil {
			return err
		}
		if h.opts.Scripts == nil {
			return ErrNoScripts
		}
		h.ctl.PointerUp()
		return h.opts.Scripts.RunNamed(ctx, h.doc, m.Name)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownMessage, msg.Type)
	}
	return nil
}

// viewScale returns the zoom m asks for, fitting the page as m rotates it.
func (h *Handler) viewScale(m ViewMessage) (float64, error) {
	page := h.doc.PageSize(h.doc.ActivePage())
	visual := transform.New(1, m.Rotation, page).VisualSize(page.Width, page.Height)
	current := h.view.Scale
	if current <= 0 {
		current = 1
	}
	switch {
	case m.Fit == "width":
		return transform.ClampScale(transform.FitScale(m.Box.Width, visual.Width)), nil
	case m.Fit == "page":
		return transform.ClampScale(transform.FitPage(m.Box, visual)), nil
	case m.Fit != "":
		return 0, fmt.Errorf("fit %q: %w", m.Fit, ErrUnknownMessage)
	case m.Zoom == "in":
		return transform.ZoomIn(current), nil
	case m.Zoom == "out":
		return transform.ZoomOut(current), nil
	case m.Zoom != "":
		return 0, fmt.Errorf("zoom %q: %w", m.Zoom, ErrUnknownMessage)
	}
	return transform.ClampScale(m.Scale), nil
}

func (h *Handler) arrange(m ArrangeMessage) error {
	var ok bool
	switch m.Action {
	case "forward":
		ok = h.doc.BringForward(m.LayerID)
	case "backward":
		ok = h.doc.SendBackward(m.LayerID)
	case "front":
		ok = h.doc.BringToFront(m.LayerID)
	case "back":
		ok = h.doc.SendToBack(m.LayerID)
	default:
		return fmt.Errorf("arrange %q: %w", m.Action, ErrUnknownMessage)
	}
	if !ok {
		h.log.Log(3, "arrange %s %s: no change", m.Action, m.LayerID)
	}
	return nil
}

// UploadTimeout bounds an upload read that continues after its request.
const UploadTimeout = 2 * time.Minute

func (h *Handler) upload(ctx context.Context, m UploadMessage) error {
	f := upload.File{Name: m.Name, Type: m.Type, Body: bytes.NewReader(m.Data)}
	if h.opts.Post == nil {
		return h.ctl.DropFile(ctx, h.opts.Uploads, m.LayerID, f)
	}
	if err := h.ctl.CheckDropTarget(m.LayerID); err != nil {
		return err
	}
	base := h.opts.Context
	if base == nil {
		base = context.Background()
	}
	rctx, cancel := context.WithTimeout(base, UploadTimeout)
	results := h.opts.Uploads.ReadAsync(rctx, f)
	go func() {
		defer cancel()
		res := <-results
		h.opts.Post(func() {
			if err := h.ctl.ApplyUpload(m.LayerID, res); err != nil {
				h.QueueError(err)
			}
		})
	}()
	return nil
}
