package router

import (
	"net/http"

	"go.uber.org/zap"

	docHandler "doccloud/internal/document"
	"doccloud/internal/document/service"
	"doccloud/internal/metrics"
	"doccloud/middleware"
	"doccloud/socket"
)

func Setup(svc *service.DocumentService, hub *socket.Hub, m *metrics.Metrics, corsOrigins []string, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()

	// WebSocket
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		socket.ServeWs(hub, w, r)
	})

	// REST API
	h := docHandler.NewDocumentHandler(svc)
	mux.HandleFunc("/api/hello", h.Hello)
	mux.HandleFunc("/api/doc/upload", h.Upload)
	mux.HandleFunc("/api/doc", h.GetDocuments)
	mux.HandleFunc("/api/doc/history", h.GetHistory)
	mux.HandleFunc("/api/doc/summary", h.GetSummaries)

	mux.Handle("/metrics", m.Handler())

	// Outermost first: CORS, access log, recovery, slash redirect, routes.
	var handler http.Handler = mux
	handler = middleware.StripTrailingSlash(handler)
	handler = middleware.Recovery(logger)(handler)
	handler = middleware.AccessLog(logger)(handler)
	handler = middleware.CORSMiddleware(corsOrigins)(handler)
	return handler
}
