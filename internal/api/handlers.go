package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"paperTrader/internal/app"
	"paperTrader/internal/domain"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			s.logger.Warn(r.Context(), "Health check failed", map[string]interface{}{"error": err.Error()})
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreatePortfolio(w http.ResponseWriter, r *http.Request) {
	var req app.CreatePortfolioRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	p, err := s.service.CreatePortfolio(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, "CreatePortfolio", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPortfolioResponse(p))
}

func (s *Server) handleListPortfolios(w http.ResponseWriter, r *http.Request) {
	activeOnly := false
	if v := r.URL.Query().Get("active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "active must be true or false")
			return
		}
		activeOnly = b
	}
	portfolios, err := s.service.ListPortfolios(r.Context(), activeOnly)
	if err != nil {
		s.writeServiceError(w, r, "ListPortfolios", err)
		return
	}
	out := make([]portfolioResponse, 0, len(portfolios))
	for _, p := range portfolios {
		out = append(out, toPortfolioResponse(p))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"portfolios": out})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.service.GetPortfolioSummary(r.Context(), chi.URLParam(r, "portfolioID"))
	if err != nil {
		s.writeServiceError(w, r, "GetPortfolioSummary", err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryResponse(summary))
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	var from, to time.Time
	var err error
	if v := r.URL.Query().Get("from"); v != "" {
		if from, err = time.Parse(time.DateOnly, v); err != nil {
			writeError(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
			return
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if to, err = time.Parse(time.DateOnly, v); err != nil {
			writeError(w, http.StatusBadRequest, "to must be YYYY-MM-DD")
			return
		}
	}

	snaps, err := s.service.ListSnapshots(r.Context(), chi.URLParam(r, "portfolioID"), from, to)
	if err != nil {
		s.writeServiceError(w, r, "ListSnapshots", err)
		return
	}
	out := make([]snapshotResponse, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, toSnapshotResponse(snap))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"snapshots": out})
}

func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	report, err := s.service.Performance(r.Context(), chi.URLParam(r, "portfolioID"))
	if err != nil {
		s.writeServiceError(w, r, "Performance", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	p, err := s.service.DeactivatePortfolio(r.Context(), chi.URLParam(r, "portfolioID"))
	if err != nil {
		s.writeServiceError(w, r, "DeactivatePortfolio", err)
		return
	}
	writeJSON(w, http.StatusOK, toPortfolioResponse(p))
}

func (s *Server) handleExecutePending(w http.ResponseWriter, r *http.Request) {
	res, err := s.service.ExecutePendingTrades(r.Context(), chi.URLParam(r, "portfolioID"))
	if err != nil && res.Promoted+res.Cancelled+res.StillPending+res.Failed == 0 {
		s.writeServiceError(w, r, "ExecutePendingTrades", err)
		return
	}
	body := map[string]interface{}{
		"promoted":     res.Promoted,
		"cancelled":    res.Cancelled,
		"stillPending": res.StillPending,
		"failed":       res.Failed,
	}
	if err != nil {
		s.logger.Error(r.Context(), err, "ExecutePendingTrades partially failed")
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleCloseExpired(w http.ResponseWriter, r *http.Request) {
	closed, err := s.service.CloseExpiredPositions(r.Context(), chi.URLParam(r, "portfolioID"))
	if err != nil && closed == 0 {
		s.writeServiceError(w, r, "CloseExpiredPositions", err)
		return
	}
	if err != nil {
		s.logger.Error(r.Context(), err, "CloseExpiredPositions partially failed")
	}
	writeJSON(w, http.StatusOK, map[string]int{"closed": closed})
}

func (s *Server) handleRecompute(w http.ResponseWriter, r *http.Request) {
	snap, err := s.service.RecomputePortfolio(r.Context(), chi.URLParam(r, "portfolioID"))
	if err != nil {
		s.writeServiceError(w, r, "RecomputePortfolio", err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotResponse(snap))
}

func (s *Server) handleEvaluateSignal(w http.ResponseWriter, r *http.Request) {
	sig, ok := s.decodeSignal(w, r)
	if !ok {
		return
	}
	eval, err := s.service.EvaluateSignal(r.Context(), sig)
	if err != nil {
		s.writeServiceError(w, r, "EvaluateSignal", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"accepted":   eval.Accepted,
		"reason":     string(eval.Reason),
		"category":   string(eval.Reason.Category()),
		"detail":     eval.Detail,
		"targetDate": eval.TargetDate.Format(time.DateOnly),
	})
}

func (s *Server) handleExecuteSignal(w http.ResponseWriter, r *http.Request) {
	sig, ok := s.decodeSignal(w, r)
	if !ok {
		return
	}
	res, err := s.service.ExecuteTrade(r.Context(), sig)
	if err != nil {
		s.writeServiceError(w, r, "ExecuteTrade", err)
		return
	}
	status := http.StatusOK
	if !res.Rejected() {
		status = http.StatusCreated
	}
	writeJSON(w, status, toExecutionResponse(res))
}

func (s *Server) handleClosePosition(w http.ResponseWriter, r *http.Request) {
	var req closeRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	reason, err := domain.ParseCloseReason(req.Reason)
	if err != nil {
		writeError(w, http.StatusBadRequest, "reason must be MANUAL, SL or TP")
		return
	}
	res, err := s.service.ClosePosition(r.Context(), chi.URLParam(r, "tradeID"), reason)
	if err != nil {
		s.writeServiceError(w, r, "ClosePosition", err)
		return
	}
	writeJSON(w, http.StatusOK, toCloseResponse(res))
}

func (s *Server) decodeSignal(w http.ResponseWriter, r *http.Request) (domain.Signal, bool) {
	var req signalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return domain.Signal{}, false
	}
	sig, err := req.toSignal()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return domain.Signal{}, false
	}
	return sig, true
}
