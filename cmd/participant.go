package cmd

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"hardcore/internal/bootstrap"
	"hardcore/internal/errs"
)

// resolveParticipant accepts a uuid or a name remembered by the directory.
func resolveParticipant(ctx context.Context, app *bootstrap.App, arg string) (uuid.UUID, error) {
	arg = strings.TrimSpace(arg)
	if id, err := uuid.Parse(arg); err == nil {
		return id, nil
	}
	id, err := app.Directory.LookupByName(ctx, arg)
	if err != nil {
		return uuid.Nil, errs.Wrapf(err, "resolve participant %q", arg)
	}
	return id, nil
}
