package tools

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// HealthResponse is the JSON body of the /health endpoint
type HealthResponse struct {
	Status    string `json:"status"`
	Index     string `json:"index"`
	Records   uint64 `json:"records"`
	Engine    string `json:"engine"`
	Source    string `json:"source,omitempty"`
	BuildID   string `json:"build_id,omitempty"`
	Timestamp string `json:"timestamp"`
}

// NewHealthHandler reports whether a search index is loaded
func NewHealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := HealthResponse{
			Engine:    settings.Engine,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}

		w.Header().Set("Content-Type", "application/json")

		snap := indexMgr.acquire()
		if snap == nil {
			response.Status = "unhealthy"
			response.Index = "not loaded"
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(response)
			return
		}

		defer snap.release()

		count, err := snap.engine.Count()
		if err != nil {
			response.Status = "unhealthy"
			response.Index = "unavailable"
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(response)
			return
		}

		response.Status = "healthy"
		response.Index = "loaded"
		response.Records = count
		response.Source = snap.source
		response.BuildID = snap.buildID
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(response)
	}
}

// NewHTTPHandler serves MCP over the streamable HTTP transport at /mcp
// and the health check at /health
func NewHTTPHandler(server *mcp.Server, stateless bool) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", NewHealthHandler())
	mux.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return server
	}, &mcp.StreamableHTTPOptions{Stateless: stateless}))
	return mux
}
