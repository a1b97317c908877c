package http

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/metastage/metastage/kit/platform/errors"
	"go.uber.org/zap"
)

// API provides the JSON encoding and error handling shared by handlers.
type API struct {
	log        *zap.Logger
	errHandler ErrorHandler
}

// APIOptFn configures an API.
type APIOptFn func(*API)

// WithLog sets the logger used for encoding failures.
func WithLog(log *zap.Logger) APIOptFn {
	return func(api *API) { api.log = log }
}

// NewAPI returns an API.
func NewAPI(opts ...APIOptFn) *API {
	api := &API{log: zap.NewNop()}
	for _, o := range opts {
		o(api)
	}
	return api
}

// DecodeJSON decodes r into v. An empty body leaves v untouched.
func (a *API) DecodeJSON(r io.Reader, v interface{}) error {
	err := json.NewDecoder(r).Decode(v)
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return &errors.Error{
			Code: errors.EInvalid,
			Msg:  "failed to decode request body",
			Err:  err,
		}
	}
	return nil
}

// Respond writes v as JSON with the status code. A nil v writes no body.
func (a *API) Respond(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	if v == nil {
		w.WriteHeader(status)
		return
	}

	b, err := json.Marshal(v)
	if err != nil {
		a.Err(w, r, &errors.Error{
			Code: errors.EInternal,
			Msg:  "failed to encode response",
			Err:  err,
		})
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(b); err != nil {
		a.log.Debug("Failed to write response", zap.Error(err))
	}
}

// Err writes err with the status code derived from its error code.
func (a *API) Err(w http.ResponseWriter, r *http.Request, err error) {
	if code := errors.ErrorCode(err); code == errors.EInternal {
		a.log.Error("Internal error", zap.String("path", r.URL.Path), zap.Error(err))
	}
	a.errHandler.HandleHTTPError(r.Context(), err, w)
}
