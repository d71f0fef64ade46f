package schema

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hardcore/internal/bootstrap/logging"
	"hardcore/internal/domain/revival"
	"hardcore/internal/errs"
	"hardcore/internal/infrastructure/persistence/model"
)

const maxIdentifierLength = 64

// Ensure creates the records table when it is absent and verifies the
// required columns when it is present. The directory and wallet tables are
// auto-migrated alongside.
func Ensure(ctx context.Context, db *gorm.DB, table string) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if db == nil {
		return errors.New("db is required")
	}
	table = strings.TrimSpace(table)
	if table == "" {
		table = model.DefaultRecordTable
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "persistence.schema"), slog.String("table", table))

	if err := ensureRecordTable(logCtx, db, table); err != nil {
		return err
	}

	if err := db.WithContext(ctx).AutoMigrate(&model.Participant{}, &model.PointBalance{}); err != nil {
		return errs.Mark(errs.Wrap(err, "auto migrate directory and wallet"), revival.ErrSchema)
	}

	logging.Info(logCtx, "schema verified")
	return nil
}

func ensureRecordTable(ctx context.Context, db *gorm.DB, table string) error {
	migrator := db.WithContext(ctx).Migrator()
	if migrator.HasTable(table) {
		return verifyColumns(ctx, db, table)
	}

	logging.Info(ctx, "records table absent, creating")
	if err := db.WithContext(ctx).Table(table).Migrator().CreateTable(&model.IncapacitationRecord{}); err != nil {
		// Another host may have created it between the check and the create.
		if !migrator.HasTable(table) {
			return errs.Mark(errs.Wrapf(err, "create table %s", table), revival.ErrSchema)
		}
		logging.Debug(ctx, "records table created concurrently")
		return verifyColumns(ctx, db, table)
	}

	if err := db.WithContext(ctx).Exec(
		"CREATE INDEX ? ON ? (participant_id, group_key, updated_at)",
		clause.Table{Name: indexName(table)},
		clause.Table{Name: table},
	).Error; err != nil {
		// Reads stay correct without the index, only slower.
		logging.Warn(ctx, "create latest-record index failed", slog.Any("err", errs.Loggable(err)))
	}
	return nil
}

func verifyColumns(ctx context.Context, db *gorm.DB, table string) error {
	columns, err := db.WithContext(ctx).Migrator().ColumnTypes(table)
	if err != nil {
		return errs.Mark(errs.Wrapf(err, "inspect table %s", table), revival.ErrSchema)
	}

	present := make(map[string]struct{}, len(columns))
	for _, column := range columns {
		present[strings.ToLower(column.Name())] = struct{}{}
	}

	var missing []string
	for _, name := range model.RecordColumns {
		if _, ok := present[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return errs.Mark(
			fmt.Errorf("table %s is missing columns: %s", table, strings.Join(missing, ", ")),
			revival.ErrSchema,
		)
	}
	return nil
}

func indexName(table string) string {
	name := "idx_" + table + "_latest"
	if len(name) > maxIdentifierLength {
		name = name[:maxIdentifierLength]
	}
	return name
}
