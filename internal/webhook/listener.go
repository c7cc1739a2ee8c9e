package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"sync"
	"time"

	"github.com/feedloop/paygate/internal/models"
	"github.com/feedloop/paygate/internal/services"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrHandlerNotComparable = errors.New("event handler must be a comparable value; wrap functions with HandlerFunc")

// EventHandler receives verified, parsed webhook events.
type EventHandler interface {
	Handle(ctx context.Context, event *models.WebhookEvent) error
}

type funcHandler struct {
	fn func(ctx context.Context, event *models.WebhookEvent) error
}

func (h *funcHandler) Handle(ctx context.Context, event *models.WebhookEvent) error {
	return h.fn(ctx, event)
}

// HandlerFunc wraps fn in a handler with its own identity. Keep the returned
// value to remove the handler later with Off.
func HandlerFunc(fn func(ctx context.Context, event *models.WebhookEvent) error) EventHandler {
	return &funcHandler{fn: fn}
}

// ErrorCallback observes handler failures that turned a delivery into a 500.
type ErrorCallback func(event *models.WebhookEvent, err error)

// Result is the outcome of one delivery.
type Result struct {
	Status  int
	Success bool
	Error   string
}

// ToResponse converts the result to its JSON body.
func (r Result) ToResponse() models.WebhookResult {
	return models.WebhookResult{Status: r.Status, Success: r.Success, Error: r.Error}
}

// Listener maps event types to handler sets and dispatches verified events.
//
// Matched handlers run concurrently and the listener waits for all of them.
// If any fails the delivery is answered with 500, but handlers that already
// completed are not rolled back: delivery is at-least-once and not
// transactional, so handlers must tolerate redelivery of the same event id.
type Listener struct {
	auth            *services.WebhookAuthenticator
	logger          *zap.Logger
	onError         ErrorCallback
	dispatchTimeout time.Duration

	mu       sync.RWMutex
	handlers map[models.EventType]map[EventHandler]struct{}
}

// Option configures a Listener
type Option func(*Listener)

// WithErrorCallback sets the callback invoked when a handler fails
func WithErrorCallback(cb ErrorCallback) Option {
	return func(l *Listener) {
		l.onError = cb
	}
}

// WithDispatchTimeout bounds the context handed to handlers
func WithDispatchTimeout(d time.Duration) Option {
	return func(l *Listener) {
		l.dispatchTimeout = d
	}
}

func NewListener(auth *services.WebhookAuthenticator, logger *zap.Logger, opts ...Option) *Listener {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Listener{
		auth:     auth,
		logger:   logger,
		handlers: make(map[models.EventType]map[EventHandler]struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// On registers handler for every given type. Registering the same handler
// twice for a type is a no-op.
func (l *Listener) On(handler EventHandler, types ...models.EventType) error {
	if handler == nil || !reflect.TypeOf(handler).Comparable() {
		return ErrHandlerNotComparable
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, t := range types {
		set, ok := l.handlers[t]
		if !ok {
			set = make(map[EventHandler]struct{})
			l.handlers[t] = set
		}
		set[handler] = struct{}{}
	}
	return nil
}

// Off removes handler from every given type.
func (l *Listener) Off(handler EventHandler, types ...models.EventType) {
	if handler == nil || !reflect.TypeOf(handler).Comparable() {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, t := range types {
		if set, ok := l.handlers[t]; ok {
			delete(set, handler)
			if len(set) == 0 {
				delete(l.handlers, t)
			}
		}
	}
}

// RemoveAll drops every handler of the given types, or of all types when
// none are given.
func (l *Listener) RemoveAll(types ...models.EventType) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(types) == 0 {
		l.handlers = make(map[models.EventType]map[EventHandler]struct{})
		return
	}
	for _, t := range types {
		delete(l.handlers, t)
	}
}

// Handlers returns how many handlers are registered for t.
func (l *Listener) Handlers(t models.EventType) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.handlers[t])
}

func (l *Listener) snapshot(t models.EventType) []EventHandler {
	l.mu.RLock()
	defer l.mu.RUnlock()
	set := l.handlers[t]
	out := make([]EventHandler, 0, len(set))
	for h := range set {
		out = append(out, h)
	}
	return out
}

// Process authenticates, parses and dispatches one delivery.
func (l *Listener) Process(ctx context.Context, rawBody []byte, header http.Header) Result {
	if !l.auth.VerifySignature(rawBody, services.SignatureFromHeader(header)) {
		l.logger.Warn("Rejected webhook with invalid signature")
		return Result{Status: http.StatusUnauthorized, Error: models.ErrInvalidSignature.Error()}
	}

	event, err := models.ParseWebhookEvent(rawBody)
	if err != nil {
		l.logger.Warn("Rejected malformed webhook", zap.Error(err))
		return Result{Status: http.StatusBadRequest, Error: err.Error()}
	}

	logger := l.logger.With(zap.String("event_id", event.ID.String()), zap.String("event_type", string(event.Type)))
	handlers := l.snapshot(event.Type)
	if len(handlers) == 0 {
		logger.Warn("No handlers registered for event type")
		return Result{Status: http.StatusOK, Success: true}
	}

	if err := l.dispatch(ctx, event, handlers); err != nil {
		logger.Error("Webhook handler failed", zap.Error(err))
		if l.onError != nil {
			l.onError(event, err)
		}
		return Result{Status: http.StatusInternalServerError, Error: "event handler failed"}
	}

	logger.Info("Webhook processed", zap.Int("handlers", len(handlers)))
	return Result{Status: http.StatusOK, Success: true}
}

func (l *Listener) dispatch(ctx context.Context, event *models.WebhookEvent, handlers []EventHandler) error {
	if l.dispatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.dispatchTimeout)
		defer cancel()
	}

	// A plain group rather than WithContext: a failing handler must not
	// cancel the others mid-flight.
	var g errgroup.Group
	for _, h := range handlers {
		h := h
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("handler panic: %v", r)
				}
			}()
			return h.Handle(ctx, event)
		})
	}
	return g.Wait()
}
