// Package api provides HTTP handlers for mentionbridge endpoints.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/opencontrib/mentionbridge/internal/models"
)

// reactRequest is the body of POST /react.
type reactRequest struct {
	Platform string `json:"platform"`
	URL      string `json:"url"`
	Reaction string `json:"reaction"`
}

// replyRequest is the body of POST /reply.
type replyRequest struct {
	Platform string `json:"platform"`
	URL      string `json:"url"`
	Text     string `json:"text"`
}

// mentionRequest is the body of POST /mentions.
type mentionRequest struct {
	ItemID    string         `json:"item_id"`
	Platform  string         `json:"platform"`
	Suggester string         `json:"suggester,omitempty"`
	RawData   models.RawData `json:"raw_data"`
}

func (s *Server) reactHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.reactHandler: processing react request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.reactHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req reactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.reactHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	platform, err := models.ParsePlatform(req.Platform)
	if err != nil {
		slog.Warn("Server.reactHandler: unknown platform", "platform", req.Platform)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Unknown platform: "+req.Platform))
		return
	}
	if req.URL == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(models.ErrEmptyURL.Error()))
		return
	}

	ok, err := s.dispatcher.AddReactionToMessage(r.Context(), platform, req.URL, req.Reaction)
	if err != nil {
		slog.Error("Server.reactHandler: platform session unusable", "error", err, "platform", platform, "url", req.URL)
		writeJSONResponse(w, http.StatusBadGateway, models.Error("Platform authentication failed"))
		return
	}
	slog.Info("Server.reactHandler: reaction attempted", "platform", platform, "url", req.URL, "reaction", req.Reaction, "success", ok)
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]bool{"success": ok}))
}

func (s *Server) replyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.replyHandler: processing reply request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.replyHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req replyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.replyHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	platform, err := models.ParsePlatform(req.Platform)
	if err != nil {
		slog.Warn("Server.replyHandler: unknown platform", "platform", req.Platform)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Unknown platform: "+req.Platform))
		return
	}
	if req.URL == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(models.ErrEmptyURL.Error()))
		return
	}

	ok, err := s.dispatcher.AddReplyToMessage(r.Context(), platform, req.URL, req.Text)
	if err != nil {
		slog.Error("Server.replyHandler: platform session unusable", "error", err, "platform", platform, "url", req.URL)
		writeJSONResponse(w, http.StatusBadGateway, models.Error("Platform authentication failed"))
		return
	}
	slog.Info("Server.replyHandler: reply attempted", "platform", platform, "url", req.URL, "success", ok)
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]bool{"success": ok}))
}

// messageHandler resolves a platform URL into the canonical message record
// (GET /message?url=). A lookup miss yields a success=false record with HTTP
// 200: for the consumer that is a normal outcome, not a transport failure.
func (s *Server) messageHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.messageHandler: processing message request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		slog.Warn("Server.messageHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	url := r.URL.Query().Get("url")
	if url == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required parameter: url"))
		return
	}

	msg := s.dispatcher.MessageFromURL(r.Context(), url)
	slog.Debug("Server.messageHandler: message resolved", "url", url, "success", msg.Success)
	writeJSONResponse(w, http.StatusOK, models.Success(msg))
}

// mentionsHandler ingests a newly processed item (POST /mentions). Inserting
// an (item_id, platform) pair that already exists yields 409.
func (s *Server) mentionsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.mentionsHandler: processing mention request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.mentionsHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req mentionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.mentionsHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	platform, err := models.ParsePlatform(req.Platform)
	if err != nil {
		slog.Warn("Server.mentionsHandler: unknown platform", "platform", req.Platform)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Unknown platform: "+req.Platform))
		return
	}
	if req.ItemID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(models.ErrEmptyItemID.Error()))
		return
	}

	mention, err := s.lg.MarkProcessed(req.ItemID, platform, req.Suggester, req.RawData)
	if err != nil {
		if errors.Is(err, models.ErrAlreadyProcessed) {
			slog.Warn("Server.mentionsHandler: mention already processed", "item_id", req.ItemID, "platform", platform)
			writeJSONResponse(w, http.StatusConflict, models.Error("Mention already processed"))
			return
		}
		slog.Error("Server.mentionsHandler: failed to record mention", "error", err, "item_id", req.ItemID, "platform", platform)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to record mention"))
		return
	}
	slog.Info("Server.mentionsHandler: mention recorded", "item_id", mention.ItemID, "platform", mention.Platform)
	writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("Mention recorded successfully", mention))
}

// processedHandler reports whether an item has already been ingested
// (GET /mentions/processed?item_id=&platform=).
func (s *Server) processedHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.processedHandler: processing request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	itemID := r.URL.Query().Get("item_id")
	if itemID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required parameter: item_id"))
		return
	}
	platform, err := models.ParsePlatform(r.URL.Query().Get("platform"))
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Unknown platform: "+r.URL.Query().Get("platform")))
		return
	}

	processed, err := s.lg.IsProcessed(itemID, platform)
	if err != nil {
		slog.Error("Server.processedHandler: lookup failed", "error", err, "item_id", itemID, "platform", platform)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to check mention"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]bool{"processed": processed}))
}

// lastHandler returns the newest payload timestamp seen for a platform
// (GET /mentions/last?platform=), the incremental-poll cursor.
func (s *Server) lastHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.lastHandler: processing request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	platform, err := models.ParsePlatform(r.URL.Query().Get("platform"))
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Unknown platform: "+r.URL.Query().Get("platform")))
		return
	}

	ts, found, err := s.lg.LastProcessedTimestamp(platform)
	if err != nil {
		slog.Error("Server.lastHandler: lookup failed", "error", err, "platform", platform)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch last timestamp"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"timestamp": ts,
		"found":     found,
	}))
}

// logsHandler returns recent audit entries, newest first (GET /logs?limit=).
func (s *Server) logsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.logsHandler: processing request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := DefaultLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid limit parameter"))
			return
		}
		limit = parsed
	}

	logs, err := s.lg.RecentLogs(limit)
	if err != nil {
		slog.Error("Server.logsHandler: failed to fetch logs", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch logs"))
		return
	}
	slog.Debug("Server.logsHandler: logs fetched", "count", len(logs))
	writeJSONResponse(w, http.StatusOK, models.Success(logs))
}

// healthHandler provides a health check endpoint for monitoring and load balancing
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	healthData := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	// The ledger is the only stateful dependency worth probing.
	if _, err := s.lg.RecentLogs(1); err != nil {
		slog.Warn("Health check: ledger probe failed", "error", err)
		healthData["status"] = "degraded"
		healthData["error"] = "Failed to query ledger"
	}

	statusCode := http.StatusOK
	if healthData["status"] == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSONResponse(w, statusCode, healthData)
}
