package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/feedloop/paygate/internal/models"
	"go.uber.org/zap"
)

// DefaultMaxBodyBytes caps request bodies read by the router.
const DefaultMaxBodyBytes int64 = 1 << 20

// Action is one kind of request the gateway endpoint accepts. The router asks
// CanHandle in registration order; the first match owns the request.
type Action interface {
	CanHandle(req *Request) bool
	VerifyAuthentication(req *Request) bool
	ProcessAction(ctx context.Context, req *Request) (*Response, error)
}

// Request is a framework-neutral view of an incoming request. The body has
// already been read, so actions can verify signatures over the exact bytes.
type Request struct {
	Method string
	URL    *url.URL
	Header http.Header
	Body   []byte

	query url.Values
}

// NewRequest reads r's body (at most maxBodyBytes) and records the absolute
// URL the client addressed.
func NewRequest(w http.ResponseWriter, r *http.Request, maxBodyBytes int64) (*Request, error) {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	var body []byte
	if r.Body != nil {
		var err error
		body, err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("reading request body: %w", err)
		}
	}

	u := *r.URL
	if u.Host == "" {
		u.Host = r.Host
	}
	if u.Scheme == "" {
		u.Scheme = "http"
		if r.TLS != nil {
			u.Scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			u.Scheme = proto
		}
	}

	return &Request{
		Method: r.Method,
		URL:    &u,
		Header: r.Header,
		Body:   body,
	}, nil
}

// Query returns the parsed query string.
func (r *Request) Query() url.Values {
	if r.query == nil {
		r.query = r.URL.Query()
	}
	return r.query
}

// Param returns the first value of a query parameter.
func (r *Request) Param(name string) string {
	return r.Query().Get(name)
}

// Response is what an action wants written back.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// JSON renders v as the response body.
func JSON(status int, v interface{}) *Response {
	body, err := json.Marshal(v)
	if err != nil {
		return errorResponse(models.NewInternalError(""))
	}
	h := http.Header{}
	h.Set("Content-Type", "application/json; charset=utf-8")
	return &Response{Status: status, Header: h, Body: body}
}

// Binary returns a downloadable document.
func Binary(contentType, filename string, body []byte) *Response {
	h := http.Header{}
	h.Set("Content-Type", contentType)
	if filename != "" {
		h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	}
	return &Response{Status: http.StatusOK, Header: h, Body: body}
}

// Redirect sends the client to location with 302 Found.
func Redirect(location string) *Response {
	h := http.Header{}
	h.Set("Location", location)
	return &Response{Status: http.StatusFound, Header: h}
}

func errorResponse(err *models.APIError) *Response {
	return JSON(err.StatusCode, err.ToResponse())
}

// Write copies the response onto w.
func (r *Response) Write(w http.ResponseWriter) {
	for k, vs := range r.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(r.Status)
	if len(r.Body) > 0 {
		w.Write(r.Body)
	}
}

// Router dispatches gateway requests to the first action that claims them.
type Router struct {
	actions []Action
	logger  *zap.Logger

	MaxBodyBytes int64
}

func NewRouter(logger *zap.Logger, actions ...Action) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		actions:      actions,
		logger:       logger,
		MaxBodyBytes: DefaultMaxBodyBytes,
	}
}

// Register appends an action. Earlier registrations take precedence.
func (rt *Router) Register(action Action) {
	rt.actions = append(rt.actions, action)
}

// Route runs the matching action and converts its outcome into a response.
// Errors carrying an *models.APIError keep their status and message; any
// other failure is reported as a generic 500.
func (rt *Router) Route(ctx context.Context, req *Request) (resp *Response) {
	defer func() {
		if r := recover(); r != nil {
			rt.logger.Error("Action panicked", zap.Any("panic", r), zap.String("method", req.Method))
			resp = errorResponse(models.NewInternalError(""))
		}
	}()

	for _, action := range rt.actions {
		if !action.CanHandle(req) {
			continue
		}
		name := fmt.Sprintf("%T", action)
		if !action.VerifyAuthentication(req) {
			rt.logger.Warn("Action authentication failed", zap.String("action", name))
			return errorResponse(models.NewUnauthorized("authentication failed"))
		}

		out, err := action.ProcessAction(ctx, req)
		if err != nil {
			apiErr := models.AsAPIError(err)
			if apiErr.StatusCode >= http.StatusInternalServerError {
				rt.logger.Error("Action failed", zap.String("action", name), zap.Error(err))
			} else {
				rt.logger.Info("Action rejected", zap.String("action", name), zap.Error(err))
			}
			return errorResponse(apiErr)
		}
		if out == nil {
			out = &Response{Status: http.StatusNoContent, Header: http.Header{}}
		}
		return out
	}

	return errorResponse(models.NewBadRequest("unsupported action"))
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, err := NewRequest(w, r, rt.MaxBodyBytes)
	if err != nil {
		errorResponse(models.NewBadRequest("unable to read request body")).Write(w)
		return
	}
	rt.Route(r.Context(), req).Write(w)
}
