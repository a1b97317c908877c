package staging

import (
	"io"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/metastage/metastage/changes"
	icontext "github.com/metastage/metastage/context"
	"github.com/metastage/metastage/kit/platform/errors"
	kithttp "github.com/metastage/metastage/kit/transport/http"
	"github.com/metastage/metastage/logger"
	"go.uber.org/zap"
)

const (
	// PrefixStaging is the route prefix of the staging API.
	PrefixStaging = "/api/staging"

	// Headers naming the caller. Authentication happens in front of this
	// service; the values end up in the change log.
	HeaderUser         = "X-Metastage-User"
	HeaderUserFullName = "X-Metastage-User-Name"
)

// Handler serves the staging API.
type Handler struct {
	chi.Router

	api *kithttp.API
	log *zap.Logger
	svc Service
}

// NewHandler returns the staging API handler.
func NewHandler(log *zap.Logger, svc Service) *Handler {
	h := &Handler{
		api: kithttp.NewAPI(kithttp.WithLog(log)),
		log: log,
		svc: svc,
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer,
		middleware.RealIP,
		withPrincipal,
	)
	r.Route("/{applicationId}", func(r chi.Router) {
		r.Get("/", h.handleGetStaging)
		r.Post("/", h.handlePerformStaging)
	})

	h.Router = r
	return h
}

// Prefix returns the route prefix the handler is mounted on.
func (h *Handler) Prefix() string {
	return PrefixStaging
}

func withPrincipal(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get(HeaderUser); id != "" {
			ctx := icontext.SetPrincipal(r.Context(), icontext.Principal{
				ID:       id,
				FullName: r.Header.Get(HeaderUserFullName),
			})
			ctx = logger.WithFields(ctx, zap.String("principal", id))
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	}
	return http.HandlerFunc(fn)
}

type stagingRequest struct {
	applicationID string
	from          string
	to            string
}

func decodeStagingRequest(r *http.Request) (*stagingRequest, error) {
	req := &stagingRequest{
		applicationID: chi.URLParam(r, "applicationId"),
		from:          r.URL.Query().Get("from"),
		to:            r.URL.Query().Get("to"),
	}
	if req.from == "" {
		return nil, &errors.Error{
			Code: errors.EInvalid,
			Msg:  "url missing from",
		}
	}
	return req, nil
}

// handleGetStaging is the HTTP handler for the GET /api/staging/:applicationId route.
func (h *Handler) handleGetStaging(w http.ResponseWriter, r *http.Request) {
	req, err := decodeStagingRequest(r)
	if err != nil {
		h.api.Err(w, r, err)
		return
	}

	s, err := h.svc.Prepare(r.Context(), req.applicationID, req.from, req.to, nil)
	if err != nil {
		h.api.Err(w, r, err)
		return
	}
	h.api.Respond(w, r, http.StatusOK, s)
}

// handlePerformStaging is the HTTP handler for the POST /api/staging/:applicationId route.
// The optional body is a JSON array of changes limiting the staging.
func (h *Handler) handlePerformStaging(w http.ResponseWriter, r *http.Request) {
	req, err := decodeStagingRequest(r)
	if err != nil {
		h.api.Err(w, r, err)
		return
	}

	filter, err := decodeFilter(r.Body)
	if err != nil {
		h.api.Err(w, r, err)
		return
	}

	s, err := h.svc.Prepare(r.Context(), req.applicationID, req.from, req.to, filter)
	if err != nil {
		h.api.Err(w, r, err)
		return
	}
	results, err := h.svc.Perform(r.Context(), s)
	if err != nil {
		h.api.Err(w, r, err)
		return
	}
	if results == nil {
		results = []Result{}
	}
	h.api.Respond(w, r, http.StatusOK, results)
}

func decodeFilter(body io.Reader) ([]changes.Change, error) {
	b, err := io.ReadAll(body)
	if err != nil {
		return nil, &errors.Error{Code: errors.EInvalid, Msg: "failed to read request body", Err: err}
	}
	if len(b) == 0 {
		return nil, nil
	}
	filter, err := changes.UnmarshalList(b)
	if err != nil {
		return nil, err
	}
	return filter, nil
}
