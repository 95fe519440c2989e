package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/auditwise/docqa/internal/config"
	"github.com/auditwise/docqa/internal/core/domain"
	"github.com/auditwise/docqa/internal/core/ports"
)

type Router struct {
	cfg       config.Config
	ingestUC  ports.DocumentIngestor
	retriever ports.Retriever
	chat      ports.ChatService
	docs      ports.DocumentReader
	remover   ports.DocumentRemover
	metrics   http.Handler
}

func NewRouter(
	cfg config.Config,
	ingestUC ports.DocumentIngestor,
	retriever ports.Retriever,
	chat ports.ChatService,
	docs ports.DocumentReader,
	remover ports.DocumentRemover,
	metrics http.Handler,
) *Router {
	return &Router{
		cfg:       cfg,
		ingestUC:  ingestUC,
		retriever: retriever,
		chat:      chat,
		docs:      docs,
		remover:   remover,
		metrics:   metrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/documents", rt.uploadDocument)
	mux.HandleFunc("/v1/documents/", rt.documentByID)
	mux.HandleFunc("/v1/retrieval/query", rt.retrievalQuery)
	mux.HandleFunc("/v1/retrieval/cache/stats", rt.cacheStats)
	mux.HandleFunc("/v1/chat/query", rt.chatQuery)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics)
	}

	var handler http.Handler = mux
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	if rt.cfg.APIMaxInFlight > 0 {
		handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, backpressureWait)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	doc, err := rt.ingestUC.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) documentByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	switch r.Method {
	case http.MethodGet:
		doc, err := rt.docs.GetByID(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	case http.MethodDelete:
		if err := rt.remover.Remove(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeMethodNotAllowed(w)
	}
}

type retrievalQueryRequest struct {
	Query   string                `json:"query"`
	Limit   int                   `json:"limit"`
	Filter  domain.SearchFilter   `json:"filter"`
	Session domain.SessionContext `json:"session"`
}

func (rt *Router) retrievalQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req retrievalQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	result, err := rt.retriever.Retrieve(r.Context(), req.Query, req.Limit, req.Filter, req.Session)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) cacheStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, rt.retriever.CacheStats())
}

func (rt *Router) chatQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}

	answer, err := rt.chat.Answer(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

const backpressureWait = 50 * time.Millisecond

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
