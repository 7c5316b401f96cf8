package webhook

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"tvcollector/pkg/storage"

	"go.uber.org/zap"
)

// writeTimeout bounds a single DB insert so a stalled medium surfaces as an
// error instead of hanging the webhook sender.
const writeTimeout = 2 * time.Second

// Handler serves the webhook ingestion and query endpoints. The store is the
// only shared state; all observation writes go through ReceiveWebhook.
type Handler struct {
	store  storage.Store
	hub    *Hub
	logger *zap.Logger
}

func NewHandler(store storage.Store, hub *Hub, logger *zap.Logger) *Handler {
	return &Handler{
		store:  store,
		hub:    hub,
		logger: logger,
	}
}

// webhookResponse confirms a stored observation back to the sender.
type webhookResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    observationData `json:"data"`
}

type observationData struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	ATR       float64 `json:"atr"`
	ExitPrice float64 `json:"exit_price"`
}

// ReceiveWebhook handles POST /webhook. It validates the payload, appends it
// to the store, and confirms with the computed exit price. Nothing is written
// when validation fails.
func (h *Handler) ReceiveWebhook(w http.ResponseWriter, r *http.Request) {
	var payload Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid payload")
		return
	}

	symbol, price, atr, err := Validate(payload)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	obs, err := h.store.Append(ctx, symbol, price, atr)
	if err != nil {
		h.logger.Error("failed to store observation",
			zap.String("symbol", symbol), zap.Error(err))
		writeDetail(w, http.StatusInternalServerError, "failed to store data")
		return
	}

	h.hub.Broadcast(obs)

	h.logger.Info("observation stored",
		zap.String("symbol", obs.Symbol),
		zap.Float64("price", obs.Price),
		zap.Float64("atr", obs.ATR))

	writeJSON(w, http.StatusOK, webhookResponse{
		Status:  "success",
		Message: fmt.Sprintf("Data for %s received and stored", obs.Symbol),
		Data: observationData{
			Symbol:    obs.Symbol,
			Price:     obs.Price,
			ATR:       obs.ATR,
			ExitPrice: obs.ExitPrice(),
		},
	})
}

// LatestObservations handles GET /observations/latest. It returns the latest
// observation per symbol, most recently updated symbol first.
func (h *Handler) LatestObservations(w http.ResponseWriter, r *http.Request) {
	observations, err := h.store.LatestPerSymbol(r.Context())
	if err != nil {
		h.logger.Error("failed to query latest observations", zap.Error(err))
		writeDetail(w, http.StatusInternalServerError, "failed to fetch data")
		return
	}

	writeJSON(w, http.StatusOK, observations)
}

// AllObservations handles GET /observations?limit=N. Limit absent or <= 0
// means unbounded.
func (h *Handler) AllObservations(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	observations, err := h.store.All(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to query observations", zap.Error(err))
		writeDetail(w, http.StatusInternalServerError, "failed to fetch data")
		return
	}

	writeJSON(w, http.StatusOK, observations)
}

// ExportObservations handles GET /observations/export. It renders the
// latest-per-symbol view as a CSV download for the dashboard.
func (h *Handler) ExportObservations(w http.ResponseWriter, r *http.Request) {
	observations, err := h.store.LatestPerSymbol(r.Context())
	if err != nil {
		h.logger.Error("failed to export observations", zap.Error(err))
		writeDetail(w, http.StatusInternalServerError, "failed to fetch data")
		return
	}

	filename := fmt.Sprintf("observations_%s.csv", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"symbol", "price", "atr", "exit_price", "timestamp"})
	for _, obs := range observations {
		_ = cw.Write([]string{
			obs.Symbol,
			strconv.FormatFloat(obs.Price, 'f', 2, 64),
			strconv.FormatFloat(obs.ATR, 'f', 2, 64),
			strconv.FormatFloat(obs.ExitPrice(), 'f', 2, 64),
			obs.Timestamp.Format("2006-01-02 15:04:05"),
		})
	}
	cw.Flush()
}

// Root handles GET /. It returns the service banner and endpoint map.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "online",
		"service": "TradingView Webhook Receiver",
		"endpoints": map[string]string{
			"webhook": "/webhook (POST)",
			"latest":  "/observations/latest (GET)",
			"all":     "/observations (GET)",
			"export":  "/observations/export (GET)",
			"stream":  "/ws (GET)",
			"health":  "/health (GET)",
		},
	})
}

// Health handles GET /health. A store failure reports a degraded status
// instead of an error page so the dashboard can show it.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	observations, err := h.store.LatestPerSymbol(r.Context())
	if err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":   "unhealthy",
			"database": "error",
			"error":    err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "healthy",
		"database":      "connected",
		"records_count": len(observations),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
