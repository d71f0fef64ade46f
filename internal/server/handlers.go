package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"hardcore/internal/bootstrap/logging"
	"hardcore/internal/domain/revival"
	"hardcore/internal/errs"
	"hardcore/internal/usecase/command"
)

type statusResponse struct {
	ParticipantID    string  `json:"participantId"`
	GroupKey         string  `json:"groupKey,omitempty"`
	Incapacitated    bool    `json:"incapacitated"`
	RemainingSeconds int64   `json:"remainingSeconds"`
	EligibleAt       *string `json:"eligibleAt,omitempty"`
	Unacknowledged   bool    `json:"unacknowledged"`
	RestoreMethod    string  `json:"restoreMethod,omitempty"`
	Completed        bool    `json:"completed"`
	RecordFound      bool    `json:"recordFound"`
}

type joinRequest struct {
	Name string `json:"name"`
}

type joinResponse struct {
	Incapacitated    bool  `json:"incapacitated"`
	RemainingSeconds int64 `json:"remainingSeconds"`
	Unacknowledged   bool  `json:"unacknowledged"`
}

type deathRequest struct {
	GroupKey string            `json:"groupKey"`
	Cause    string            `json:"cause"`
	Location *revival.Location `json:"location,omitempty"`
}

type deathResponse struct {
	Duplicate        bool  `json:"duplicate"`
	RemainingSeconds int64 `json:"remainingSeconds"`
	KeepInventory    bool  `json:"keepInventory"`
}

type commandRequest struct {
	ParticipantID string   `json:"participantId"`
	Name          string   `json:"name"`
	Permissions   []string `json:"permissions"`
	Args          []string `json:"args"`
}

type commandResponse struct {
	Lines []string `json:"lines"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := participantParam(w, r)
	if !ok {
		return
	}
	group := r.URL.Query().Get("group")

	snapshot, err := s.cfg.Lifecycle.Inspect(r.Context(), id, group)
	if err != nil && !errors.Is(err, revival.ErrParse) {
		logging.Error(s.ctx, "inspect participant failed", slog.String("participant_id", id.String()), slog.Any("err", errs.Loggable(err)))
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", err.Error())
		return
	}

	resp := statusResponse{
		ParticipantID:    id.String(),
		GroupKey:         snapshot.Record.GroupKey,
		Incapacitated:    snapshot.Status.Incapacitated,
		RemainingSeconds: snapshot.Status.RemainingSeconds(),
		Unacknowledged:   snapshot.Unacknowledged,
		RestoreMethod:    snapshot.Record.Method(),
		Completed:        snapshot.Record.Completed,
		RecordFound:      snapshot.Found,
	}
	if snapshot.Status.Incapacitated {
		eligible := snapshot.Status.EligibleAt.UTC().Format(time.RFC3339)
		resp.EligibleAt = &eligible
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePlaceholders(w http.ResponseWriter, r *http.Request) {
	id, ok := participantParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.cfg.Commands.Placeholders(r.Context(), id))
}

func (s *Server) handlePlaceholder(w http.ResponseWriter, r *http.Request) {
	id, ok := participantParam(w, r)
	if !ok {
		return
	}
	value, ok := s.cfg.Commands.Placeholder(r.Context(), id, chi.URLParam(r, "key"))
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown placeholder")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(value))
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	id, ok := participantParam(w, r)
	if !ok {
		return
	}
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json body")
		return
	}

	result := s.cfg.Commands.Join(r.Context(), id, req.Name)
	writeJSON(w, http.StatusOK, joinResponse{
		Incapacitated:    result.Status.Incapacitated,
		RemainingSeconds: result.Status.RemainingSeconds(),
		Unacknowledged:   result.Unacknowledged,
	})
}

func (s *Server) handleDeath(w http.ResponseWriter, r *http.Request) {
	id, ok := participantParam(w, r)
	if !ok {
		return
	}
	var req deathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json body")
		return
	}

	result, err := s.cfg.Commands.Death(r.Context(), command.DeathInput{
		ParticipantID: id,
		GroupKey:      req.GroupKey,
		Cause:         req.Cause,
		Location:      req.Location,
	})
	if err != nil {
		logging.Error(s.ctx, "death handling failed", slog.String("participant_id", id.String()), slog.Any("err", errs.Loggable(err)))
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", err.Error())
		return
	}

	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, deathResponse{
		Duplicate:        result.Duplicate,
		RemainingSeconds: result.Status.RemainingSeconds(),
		KeepInventory:    result.KeepInventory,
	})
}

// handleCommand runs one command line. A request without participantId is
// a console sender.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json body")
		return
	}

	sender := command.Console()
	if req.ParticipantID != "" {
		id, err := uuid.Parse(req.ParticipantID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid participantId")
			return
		}
		sender = command.Sender{
			ParticipantID: id,
			Name:          req.Name,
			IsParticipant: true,
			Permissions:   req.Permissions,
		}
	}

	out := s.cfg.Commands.Execute(r.Context(), sender, req.Args)
	lines := out.Lines
	if lines == nil {
		lines = []string{}
	}
	writeJSON(w, http.StatusOK, commandResponse{Lines: lines})
}
