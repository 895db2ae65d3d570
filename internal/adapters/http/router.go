package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/kirillkom/docstream/internal/core/domain"
	"github.com/kirillkom/docstream/internal/core/ports"
	"github.com/kirillkom/docstream/internal/core/usecase"
	"github.com/kirillkom/docstream/internal/observability/metrics"
)

type Router struct {
	reserveUC *usecase.ReserveCodesUseCase
	storeUC   *usecase.StoreResourceUseCase
	splitUC   *usecase.AcceptSplitUseCase
	findUC    ports.PreResourceFinder
	metrics   *metrics.APIMetrics

	maxUploadBytes int64
}

func NewRouter(
	reserveUC *usecase.ReserveCodesUseCase,
	storeUC *usecase.StoreResourceUseCase,
	splitUC *usecase.AcceptSplitUseCase,
	findUC ports.PreResourceFinder,
	apiMetrics *metrics.APIMetrics,
	maxUploadBytes int64,
) *Router {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 100 << 20
	}
	return &Router{
		reserveUC:      reserveUC,
		storeUC:        storeUC,
		splitUC:        splitUC,
		findUC:         findUC,
		metrics:        apiMetrics,
		maxUploadBytes: maxUploadBytes,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/codes/reserve", rt.reserveCodes)
	mux.HandleFunc("/v1/resources", rt.uploadResource)
	mux.HandleFunc("/v1/resources/split", rt.submitSplit)
	mux.HandleFunc("/v1/pre-resources/", rt.getPreResource)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) reserveCodes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	codes, err := rt.reserveUC.Reserve(r.Context(), req.Count)
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.CodesReserved(len(codes))
	}
	writeJSON(w, http.StatusOK, map[string][]string{"codes": codes})
}

func (rt *Router) uploadResource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, rt.maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	res, err := rt.storeUC.Store(r.Context(), ports.PlainUploadRequest{
		FileName:    header.Filename,
		ProjectID:   r.FormValue("project_id"),
		Title:       r.FormValue("title"),
		Namespace:   r.FormValue("namespace"),
		Type:        r.FormValue("type"),
		Description: r.FormValue("description"),
		Code:        r.FormValue("code"),
		MimeType:    header.Header.Get("Content-Type"),
		ByteSize:    header.Size,
		Body:        file,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.ResourceStored("plain", header.Size)
	}
	writeJSON(w, http.StatusCreated, res)
}

func (rt *Router) submitSplit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, rt.maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	pre, err := rt.splitUC.Accept(r.Context(), ports.SplitUploadRequest{
		FileName:   header.Filename,
		ProjectID:  r.FormValue("project_id"),
		SplitMode:  domain.SplitMode(r.FormValue("split_mode")),
		PageRanges: r.FormValue("page_ranges"),
		Code:       r.FormValue("code"),
		MimeType:   header.Header.Get("Content-Type"),
		ByteSize:   header.Size,
		Body:       file,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.ResourceStored("split", header.Size)
	}
	writeJSON(w, http.StatusAccepted, pre)
}

func (rt *Router) getPreResource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/pre-resources/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "pre-resource id is required"})
		return
	}

	pre, err := rt.findUC.FindPreResource(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pre)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}
