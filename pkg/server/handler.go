package server

import (
	"encoding/json"
	"log"
	"net/http"
)

// ReloadResponse is the JSON shape returned by the reload endpoint.
type ReloadResponse struct {
	Success      bool     `json:"success"`
	ReloadedAPIs []string `json:"reloaded_apis,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// writeServerError writes a structured error as the JSON response body.
func writeServerError(w http.ResponseWriter, status int, serverErr *ServerError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(serverErr); err != nil {
		log.Printf("Failed to encode error response: %v", err)
	}
}

// HandleReload serves POST /reload: re-reads the stored specifications and
// reports which APIs were reloaded.
func HandleReload(reloadFunc func() ([]string, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeServerError(w, http.StatusMethodNotAllowed,
				NewError(ErrorTypeValidation, "method not allowed", "reload requires POST"))
			return
		}

		reloadedAPIs, err := reloadFunc()

		response := ReloadResponse{
			Success:      err == nil,
			ReloadedAPIs: reloadedAPIs,
		}
		if err != nil {
			response.Error = err.Error()
			log.Printf("Reload failed: %v", err)
		} else {
			log.Printf("Successfully reloaded %d APIs: %v", len(reloadedAPIs), reloadedAPIs)
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(response); err != nil {
			log.Printf("Failed to encode reload response: %v", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
	}
}

// HandleHealth serves GET /health.
func HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)

		response := map[string]any{
			"status":  "healthy",
			"service": "mcp-bridge",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			log.Printf("Failed to encode health response: %v", err)
		}
	}
}

// HandleAPIList serves a JSON listing of the mounted APIs.
func HandleAPIList(listFunc func() ([]map[string]any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apis, err := listFunc()
		if err != nil {
			log.Printf("Failed to list APIs: %v", err)
			writeServerError(w, http.StatusInternalServerError,
				Wrap(err, ErrorTypeInternal, "failed to list APIs"))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(apis); err != nil {
			log.Printf("Failed to encode API list: %v", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
	}
}
