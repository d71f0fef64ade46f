package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"hardcore/internal/bootstrap/logging"
	"hardcore/internal/errs"
	"hardcore/internal/infrastructure/session"
	"hardcore/internal/usecase/command"
)

// sessionHandler bridges websocket sessions to the command surface. Each
// inbound text line is one command, with or without a leading slash.
type sessionHandler struct {
	commands Commands
}

func (h sessionHandler) Joined(ctx context.Context, s *session.Session) {
	h.commands.Join(ctx, s.ParticipantID, s.Name)
}

func (h sessionHandler) Message(ctx context.Context, s *session.Session, line string) {
	args := strings.Fields(strings.TrimPrefix(line, "/"))
	if len(args) > 0 && strings.EqualFold(args[0], "hardcore") {
		args = args[1:]
	}
	out := h.commands.Execute(ctx, command.Sender{
		ParticipantID: s.ParticipantID,
		Name:          s.Name,
		IsParticipant: true,
		Permissions:   s.Permissions,
	}, args)
	if len(out.Lines) > 0 {
		s.Reply(out.String())
	}
}

func (h sessionHandler) Left(context.Context, *session.Session) {}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	id, err := uuid.Parse(query.Get("participant"))
	if err != nil || id == uuid.Nil {
		writeError(w, http.StatusBadRequest, "bad_request", "participant query parameter must be a uuid")
		return
	}

	sess := &session.Session{
		ParticipantID: id,
		Name:          strings.TrimSpace(query.Get("name")),
		Permissions:   append([]string(nil), s.cfg.SessionPermissions...),
	}
	if err := s.cfg.Hub.Accept(s.ctx, w, r, sess, sessionHandler{commands: s.cfg.Commands}); err != nil {
		logging.Warn(s.ctx, "session rejected", slog.String("participant_id", id.String()), slog.Any("err", errs.Loggable(err)))
	}
}
