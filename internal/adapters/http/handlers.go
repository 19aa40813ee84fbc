package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/jobrunner/geotrans/internal/application"
	"github.com/jobrunner/geotrans/internal/domain"
)

// handleHealth returns detailed health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	details := s.health.GetHealthDetails(r.Context())

	status := http.StatusOK
	if !details.Healthy {
		status = http.StatusServiceUnavailable
	}

	s.writeJSON(w, status, map[string]interface{}{
		"status":         boolToStatus(details.Healthy),
		"ready":          details.Ready,
		"crs_registered": details.CRSRegistered,
		"components":     details.Components,
	})
}

// handleLiveness returns liveness status.
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	if s.health.IsHealthy(r.Context()) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	} else {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
	}
}

// handleReadiness returns readiness status.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.health.IsReady(r.Context()) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	} else {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
	}
}

// handleListCRS lists the known CRS, optionally filtered by ?bbox= or by
// the position ?at=lon,lat.
func (s *Server) handleListCRS(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if query.Has("bbox") && query.Has("at") {
		s.writeError(w, http.StatusBadRequest, "bbox and at are exclusive")
		return
	}

	var list []domain.CRSInfo
	var err error
	switch {
	case query.Has("at"):
		lon, lat, perr := domain.ParsePosition(query.Get("at"))
		if perr != nil {
			s.writeError(w, http.StatusBadRequest, "invalid at parameter")
			return
		}
		list, err = s.crs.CRSAt(r.Context(), lon, lat)
	case query.Get("bbox") != "":
		b, perr := domain.ParseBBox(query.Get("bbox"))
		if perr != nil {
			s.writeError(w, http.StatusBadRequest, "invalid bbox parameter")
			return
		}
		list, err = s.crs.ListCRS(r.Context(), &b)
	default:
		list, err = s.crs.ListCRS(r.Context(), nil)
	}
	if err != nil {
		s.handleCRSError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"crs":   list,
		"count": len(list),
	})
}

// handleGetCRS returns the description of a CRS.
func (s *Server) handleGetCRS(w http.ResponseWriter, r *http.Request) {
	code, err := codeVar(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid crs code")
		return
	}

	info, err := s.crs.DescribeCRS(r.Context(), code)
	if err != nil {
		s.handleCRSError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, info)
}

// handleValidDomain returns the domain of validity of a CRS in its own
// coordinates.
func (s *Server) handleValidDomain(w http.ResponseWriter, r *http.Request) {
	code, err := codeVar(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid crs code")
		return
	}

	box, err := s.crs.ValidDomain(r.Context(), code)
	if err != nil {
		s.handleCRSError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"code": code,
		"domain": map[string]float64{
			"min_x": box[0],
			"min_y": box[1],
			"max_x": box[2],
			"max_y": box[3],
		},
	})
}

// handleBatchRun triggers a batch run over all files of the storage.
func (s *Server) handleBatchRun(w http.ResponseWriter, r *http.Request) {
	summary, err := s.opts.Batch.TriggerRun(r.Context())
	if err != nil {
		if errors.Is(err, application.ErrRateLimited) {
			w.Header().Set("Retry-After", strconv.Itoa(int(application.DefaultCooldown/time.Second)))
			s.writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}
		s.logger.Error("batch run failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Batch run failed")
		return
	}

	s.writeJSON(w, http.StatusOK, summary)
}

// handleOpenAPI returns the OpenAPI document as JSON.
func (s *Server) handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	doc, err := getOpenAPIJSON()
	if err != nil {
		s.logger.Error("failed to get OpenAPI document", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to load OpenAPI document")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(doc)
}

// handleCRSError maps engine errors to HTTP status codes.
func (s *Server) handleCRSError(w http.ResponseWriter, err error) {
	var unknown *domain.UnknownCRSError
	switch {
	case errors.As(err, &unknown):
		s.writeError(w, http.StatusNotFound, unknown.Error())
	case errors.Is(err, domain.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnsupported):
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.logger.Error("crs request failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Request failed")
	}
}

// codeVar returns the unescaped {code} path variable. Codes like
// "http://www.opengis.net/def/crs/EPSG/0/4326" arrive path-escaped.
func codeVar(r *http.Request) (string, error) {
	return url.PathUnescape(mux.Vars(r)["code"])
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]interface{}{
		"error":   http.StatusText(status),
		"message": message,
	})
}

func boolToStatus(b bool) string {
	if b {
		return "ok"
	}
	return "unhealthy"
}
