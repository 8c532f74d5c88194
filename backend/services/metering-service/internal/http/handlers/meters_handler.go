package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"submeter/backend/services/metering-service/internal/coordinator"
	"submeter/backend/services/metering-service/internal/http/middleware"
	"submeter/backend/services/metering-service/internal/meter"
)

const defaultHistoryLimit = 50

// HistorySource returns persisted settlements, most recent first.
type HistorySource interface {
	History(ctx context.Context, meterID string, limit int) ([]meter.Record, error)
}

// MetersHandlers serves the meter endpoints.
type MetersHandlers struct {
	coord   *coordinator.Coordinator
	history HistorySource
	clock   func() time.Time
	logger  *zap.Logger
}

// NewMetersHandlers returns handlers; history may be nil to serve in-memory history only.
func NewMetersHandlers(coord *coordinator.Coordinator, history HistorySource, logger *zap.Logger) *MetersHandlers {
	return &MetersHandlers{coord: coord, history: history, clock: time.Now, logger: logger}
}

type createMeterRequest struct {
	ID          string          `json:"id"`
	Policy      string          `json:"policy"`
	Consumption float64         `json:"consumption"`
	Balance     decimal.Decimal `json:"balance"`
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type consumeRequest struct {
	Amount *float64 `json:"amount"`
}

type settleRequest struct {
	Period  string          `json:"period"`
	Payment decimal.Decimal `json:"payment"`
}

type strategyRequest struct {
	Policy string `json:"policy"`
}

type consumeResponse struct {
	meter.Outcome
	Meter meter.Snapshot `json:"meter"`
}

// List handles GET /meters.
func (h *MetersHandlers) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"meters":     h.coord.Meters(),
		"total_kwh":  h.coord.TotalConsumption(),
		"updated_at": h.clock().UTC(),
	})
}

// Create handles POST /meters.
func (h *MetersHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req createMeterRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Consumption < 0 {
		writeError(w, http.StatusBadRequest, meter.ErrInvalidAmount.Error())
		return
	}
	policy, err := meter.PolicyByName(req.Policy)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	handle, err := h.coord.AddMeter(req.ID,
		coordinator.WithPolicy(policy),
		coordinator.WithConsumption(req.Consumption),
		coordinator.WithBalance(req.Balance),
	)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.audit(r, "meter added", req.ID)
	writeJSON(w, http.StatusCreated, handle.Meter().Snapshot())
}

// Get handles GET /meters/{id}.
func (h *MetersHandlers) Get(w http.ResponseWriter, r *http.Request) {
	m, err := h.coord.GetMeter(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m.Snapshot())
}

// History handles GET /meters/{id}/history.
func (h *MetersHandlers) History(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	m, err := h.coord.GetMeter(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	records := m.History()
	source := "memory"
	if h.history != nil {
		persisted, err := h.history.History(r.Context(), id, limit)
		if err != nil {
			h.logger.Warn("settlement history unavailable, serving memory", zap.String("meter_id", id), zap.Error(err))
		} else {
			records = persisted
			source = "journal"
		}
	}
	if len(records) > limit {
		records = records[:limit]
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"meter_id": id,
		"source":   source,
		"records":  records,
	})
}

// Consume handles POST /meters/{id}/consume. Refused consumption is
// reported in the body with 200, not as an HTTP error.
func (h *MetersHandlers) Consume(w http.ResponseWriter, r *http.Request) {
	var req consumeRequest
	if err := decodeJSON(r, &req, false); err != nil || req.Amount == nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	handle, err := h.coord.Handle(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := handle.Consume(*req.Amount)
	writeJSON(w, http.StatusOK, consumeResponse{Outcome: out, Meter: handle.Meter().Snapshot()})
}

// TopUp handles POST /meters/{id}/topup.
func (h *MetersHandlers) TopUp(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Amount.IsPositive() {
		writeError(w, http.StatusBadRequest, meter.ErrInvalidAmount.Error())
		return
	}
	handle, err := h.coord.Handle(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	handle.TopUp(req.Amount)
	writeJSON(w, http.StatusOK, handle.Meter().Snapshot())
}

// Settle handles POST /meters/{id}/settle. The period defaults to the current month.
func (h *MetersHandlers) Settle(w http.ResponseWriter, r *http.Request) {
	var req settleRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Payment.IsNegative() {
		writeError(w, http.StatusBadRequest, meter.ErrInvalidAmount.Error())
		return
	}
	handle, err := h.coord.Handle(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if req.Payment.IsPositive() {
		handle.TopUp(req.Payment)
	}
	period := req.Period
	if period == "" {
		period = meter.PeriodLabel(h.clock())
	}
	rec := handle.Settle(period)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"record": rec,
		"meter":  handle.Meter().Snapshot(),
	})
}

// Activate handles POST /meters/{id}/activate.
func (h *MetersHandlers) Activate(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, "meter activated", h.coord.ActivateMeter)
}

// Deactivate handles POST /meters/{id}/deactivate.
func (h *MetersHandlers) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, "meter deactivated", h.coord.DeactivateMeter)
}

// Reset handles POST /meters/{id}/reset.
func (h *MetersHandlers) Reset(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, "meter reset", h.coord.ResetMeter)
}

// Strategy handles POST /meters/{id}/strategy.
func (h *MetersHandlers) Strategy(w http.ResponseWriter, r *http.Request) {
	var req strategyRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	policy, err := meter.PolicyByName(req.Policy)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.apply(w, r, "meter strategy changed", func(id string) error {
		return h.coord.ChangeStrategy(id, policy)
	})
}

// Remove handles POST /meters/{id}/remove.
func (h *MetersHandlers) Remove(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.coord.RemoveMeter(id); err != nil {
		writeDomainError(w, err)
		return
	}
	h.audit(r, "meter removed", id)
	w.WriteHeader(http.StatusNoContent)
}

// ResetAll handles POST /meters/reset-all.
func (h *MetersHandlers) ResetAll(w http.ResponseWriter, r *http.Request) {
	if err := h.coord.ResetAll(); err != nil {
		h.logger.Error("reset all meters failed", zap.Error(err))
		writeDomainError(w, err)
		return
	}
	h.audit(r, "all meters reset", "")
	writeJSON(w, http.StatusOK, map[string]interface{}{"meters": h.coord.Meters()})
}

// Total handles GET /consumption/total.
func (h *MetersHandlers) Total(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]float64{"total_kwh": h.coord.TotalConsumption()})
}

func (h *MetersHandlers) apply(w http.ResponseWriter, r *http.Request, action string, op func(id string) error) {
	id := r.PathValue("id")
	if err := op(id); err != nil {
		writeDomainError(w, err)
		return
	}
	h.audit(r, action, id)
	m, err := h.coord.GetMeter(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m.Snapshot())
}

// audit logs an operator action with the token subject when admin auth is on.
func (h *MetersHandlers) audit(r *http.Request, action, meterID string) {
	fields := []zap.Field{zap.String("action", action)}
	if meterID != "" {
		fields = append(fields, zap.String("meter_id", meterID))
	}
	if subject, ok := middleware.SubjectFromContext(r.Context()); ok {
		fields = append(fields, zap.String("admin", subject))
	}
	h.logger.Info("admin action", fields...)
}
