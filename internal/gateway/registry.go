package gateway

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/gatectl/internal/observability"
	"github.com/danmuck/gatectl/internal/protocol"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Callback receives the parser output and the instance bound at
// registration.
type Callback func(ctx context.Context, instance any, payload any) error

// Parser turns a raw dispatch into the value handed to a Callback.
type Parser func(ctx context.Context, d protocol.Dispatch) (any, error)

// RawParser hands the dispatch through unchanged.
func RawParser(_ context.Context, d protocol.Dispatch) (any, error) {
	return d, nil
}

// Handler pairs a callback with its parser. A nil Parser means the
// session default applies.
type Handler struct {
	Callback Callback
	Parser   Parser
}

// Handlers is one alias's routing table. Event names are matched
// case-insensitively.
type Handlers struct {
	mu       sync.RWMutex
	events   map[string]Handler
	fallback *Handler
}

func NewHandlers() *Handlers {
	return &Handlers{events: make(map[string]Handler)}
}

// On routes dispatches named event to cb, replacing any earlier entry.
func (h *Handlers) On(event string, cb Callback, parser Parser) error {
	key := strings.ToLower(strings.TrimSpace(event))
	if key == "" {
		return ErrEventNameRequired
	}
	if cb == nil {
		return ErrNilCallback
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events[key] = Handler{Callback: cb, Parser: parser}
	return nil
}

// Fallback receives every dispatch with no named entry.
func (h *Handlers) Fallback(cb Callback, parser Parser) error {
	if cb == nil {
		return ErrNilCallback
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fallback = &Handler{Callback: cb, Parser: parser}
	return nil
}

func (h *Handlers) resolve(event string) (Handler, bool) {
	key := strings.ToLower(event)
	h.mu.RLock()
	defer h.mu.RUnlock()
	if key != "" {
		if handler, ok := h.events[key]; ok {
			return handler, true
		}
	}
	if h.fallback != nil {
		return *h.fallback, true
	}
	return Handler{}, false
}

// Events lists the registered event names, sorted.
func (h *Handlers) Events() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.events))
	for name := range h.events {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// dispatcher invokes handlers for one session. Handler failures are
// contained here and never reach the receive pump.
type dispatcher struct {
	alias         string
	handlers      *Handlers
	defaultParser Parser
	instance      any
	logger        zerolog.Logger
	tracer        trace.Tracer
}

func newDispatcher(alias string, handlers *Handlers, defaultParser Parser, instance any, logger zerolog.Logger) *dispatcher {
	return &dispatcher{
		alias:         alias,
		handlers:      handlers,
		defaultParser: defaultParser,
		instance:      instance,
		logger:        logger,
		tracer:        otel.Tracer(observability.TracerName + "/gateway"),
	}
}

// parserFor substitutes the session default for an unset parser. The
// registry entry itself is left untouched.
func (d *dispatcher) parserFor(h Handler) Parser {
	if h.Parser != nil {
		return h.Parser
	}
	if d.defaultParser != nil {
		return d.defaultParser
	}
	return RawParser
}

func (d *dispatcher) dispatch(ctx context.Context, msg protocol.Dispatch) {
	handler, ok := d.handlers.resolve(msg.Name)
	if !ok {
		d.logger.Debug().Str("event", msg.Name).Msg("dispatch without handler")
		return
	}
	event := strings.ToLower(msg.Name)
	ctx, span := d.tracer.Start(ctx, "gateway.dispatch", trace.WithAttributes(
		attribute.String("gateway.alias", d.alias),
		attribute.String("gateway.event", event),
	))
	defer span.End()

	start := time.Now()
	err := d.invoke(ctx, handler, msg)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.logger.Error().Err(err).Str("event", event).Msg("event handler failed")
	}
	observability.RecordDispatch(d.alias, event, outcome, time.Since(start))
}

func (d *dispatcher) invoke(ctx context.Context, h Handler, msg protocol.Dispatch) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
			d.logger.Debug().Bytes("stack", debug.Stack()).Msg("handler panic stack")
		}
	}()
	payload, err := d.parserFor(h)(ctx, msg)
	if err != nil {
		return fmt.Errorf("parse %s: %w", msg.Name, err)
	}
	return h.Callback(ctx, d.instance, payload)
}
