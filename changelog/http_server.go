package changelog

import (
	"net/http"

	"github.com/NYTimes/gziphandler"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	kithttp "github.com/metastage/metastage/kit/transport/http"
	"go.uber.org/zap"
)

// PrefixChangeLog is the route prefix of the change log API.
const PrefixChangeLog = "/api/changelog"

// Handler serves the change log of every environment.
type Handler struct {
	chi.Router

	api *kithttp.API
	log *zap.Logger
	svc *Service
}

// NewHandler returns the change log API handler.
func NewHandler(log *zap.Logger, svc *Service) *Handler {
	h := &Handler{
		api: kithttp.NewAPI(kithttp.WithLog(log)),
		log: log,
		svc: svc,
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer,
		middleware.RealIP,
	)
	r.Method(http.MethodGet, "/{environmentId}", gziphandler.GzipHandler(http.HandlerFunc(h.handleGetChangeLog)))

	h.Router = r
	return h
}

// Prefix returns the route prefix the handler is mounted on.
func (h *Handler) Prefix() string {
	return PrefixChangeLog
}

func (h *Handler) handleGetChangeLog(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.GetChangeLog(r.Context(), chi.URLParam(r, "environmentId"))
	if err != nil {
		h.api.Err(w, r, err)
		return
	}
	if entries == nil {
		entries = []*Entry{}
	}
	h.api.Respond(w, r, http.StatusOK, entries)
}
