package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"hardcore/internal/domain/revival"
	"hardcore/internal/infrastructure/persistence/schema"
	"hardcore/internal/infrastructure/persistence/uow"
)

const testTable = "hardcore_records"

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "repo.sqlite")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := schema.Ensure(context.Background(), db, testTable); err != nil {
		t.Fatalf("schema.Ensure() error = %v", err)
	}
	return db
}

// steppedClock advances one second per call so rows get distinct timestamps.
func steppedClock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		current = current.Add(time.Second)
		return current
	}
}

func newTestStore(t *testing.T) *StateStore {
	t.Helper()

	store := NewStateStore(openTestDB(t), testTable)
	store.now = steppedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	return store
}

func TestStateStoreSelectLatestEmpty(t *testing.T) {
	store := newTestStore(t)

	_, found, err := store.SelectLatest(context.Background(), uuid.New(), "survival")
	if err != nil {
		t.Fatalf("SelectLatest() error = %v", err)
	}
	if found {
		t.Fatalf("SelectLatest() found = true on empty table")
	}
}

func TestStateStoreLatestWinsAndKeysAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	id := uuid.New()

	for _, data := range []string{`{"beganAt":1}`, `{"beganAt":2}`} {
		if err := store.Insert(ctx, revival.Record{ParticipantID: id, GroupKey: "survival", EventData: data}); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}
	if err := store.Insert(ctx, revival.Record{ParticipantID: id, GroupKey: "creative", EventData: `{"beganAt":3}`}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	record, found, err := store.SelectLatest(ctx, id, "survival")
	if err != nil || !found {
		t.Fatalf("SelectLatest() = found %v, err %v", found, err)
	}
	if record.EventData != `{"beganAt":2}` {
		t.Fatalf("SelectLatest() eventData = %q", record.EventData)
	}
	if record.ParticipantID != id || record.GroupKey != "survival" {
		t.Fatalf("SelectLatest() key = %s/%s", record.ParticipantID, record.GroupKey)
	}
}

func TestStateStoreEqualTimestampsFallBackToInsertOrder(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	fixed := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }
	id := uuid.New()

	for _, data := range []string{"first", "second"} {
		if err := store.Insert(ctx, revival.Record{ParticipantID: id, GroupKey: "g", EventData: data}); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	record, _, err := store.SelectLatest(ctx, id, "g")
	if err != nil {
		t.Fatalf("SelectLatest() error = %v", err)
	}
	if record.EventData != "second" {
		t.Fatalf("SelectLatest() eventData = %q, want second", record.EventData)
	}
}

func TestStateStoreUpdateLatestTouchesOnlyNewestRow(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	id := uuid.New()

	for _, data := range []string{"old", "new"} {
		if err := store.Insert(ctx, revival.Record{ParticipantID: id, GroupKey: "g", EventData: data}); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	affected, err := store.UpdateLatestRestoreMethod(ctx, id, "g", revival.MethodCommand, true)
	if err != nil {
		t.Fatalf("UpdateLatestRestoreMethod() error = %v", err)
	}
	if affected != 1 {
		t.Fatalf("UpdateLatestRestoreMethod() affected = %d, want 1", affected)
	}

	history, err := store.ListHistory(ctx, id, "g", 0)
	if err != nil {
		t.Fatalf("ListHistory() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("ListHistory() len = %d", len(history))
	}
	if history[0].EventData != "new" || history[0].Method() != revival.MethodCommand || !history[0].Completed {
		t.Fatalf("latest row = %+v", history[0])
	}
	if history[1].RestoreMethod != nil || history[1].Completed {
		t.Fatalf("older row was modified: %+v", history[1])
	}
}

func TestStateStoreUpdateLatestKeepsCompletedMonotonic(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	id := uuid.New()

	if err := store.Insert(ctx, revival.Record{ParticipantID: id, GroupKey: "g", EventData: "x"}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if _, err := store.UpdateLatestRestoreMethod(ctx, id, "g", revival.MethodCommandPay, true); err != nil {
		t.Fatalf("UpdateLatestRestoreMethod() error = %v", err)
	}
	if _, err := store.UpdateLatestRestoreMethod(ctx, id, "g", revival.MethodAdminReset, false); err != nil {
		t.Fatalf("UpdateLatestRestoreMethod() error = %v", err)
	}

	record, _, err := store.SelectLatest(ctx, id, "g")
	if err != nil {
		t.Fatalf("SelectLatest() error = %v", err)
	}
	if !record.Completed || record.Method() != revival.MethodAdminReset {
		t.Fatalf("record = %+v", record)
	}
}

func TestStateStoreUpdateLatestWithoutRows(t *testing.T) {
	store := newTestStore(t)

	affected, err := store.UpdateLatestRestoreMethod(context.Background(), uuid.New(), "g", revival.MethodAdminReset, false)
	if err != nil {
		t.Fatalf("UpdateLatestRestoreMethod() error = %v", err)
	}
	if affected != 0 {
		t.Fatalf("UpdateLatestRestoreMethod() affected = %d, want 0", affected)
	}
}

func TestStateStoreUpdateLatestRequiresMethod(t *testing.T) {
	store := newTestStore(t)

	_, err := store.UpdateLatestRestoreMethod(context.Background(), uuid.New(), "g", " ", true)
	if !errors.Is(err, revival.ErrMethodRequired) {
		t.Fatalf("UpdateLatestRestoreMethod() error = %v", err)
	}
}

func TestStateStoreHistoryLimitAndDeleteAll(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	id := uuid.New()
	other := uuid.New()

	for i := 0; i < 3; i++ {
		if err := store.Insert(ctx, revival.Record{ParticipantID: id, GroupKey: "g", EventData: "x"}); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}
	if err := store.Insert(ctx, revival.Record{ParticipantID: other, GroupKey: "g", EventData: "y"}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	limited, err := store.ListHistory(ctx, id, "g", 2)
	if err != nil {
		t.Fatalf("ListHistory() error = %v", err)
	}
	if len(limited) != 2 || limited[0].ID < limited[1].ID {
		t.Fatalf("ListHistory() = %+v", limited)
	}

	deleted, err := store.DeleteAll(ctx, id, "g")
	if err != nil {
		t.Fatalf("DeleteAll() error = %v", err)
	}
	if deleted != 3 {
		t.Fatalf("DeleteAll() deleted = %d, want 3", deleted)
	}
	if _, found, _ := store.SelectLatest(ctx, other, "g"); !found {
		t.Fatalf("DeleteAll() removed another participant's rows")
	}
}

func TestStateStoreRejectsNilParticipant(t *testing.T) {
	store := newTestStore(t)

	err := store.Insert(context.Background(), revival.Record{GroupKey: "g"})
	if !errors.Is(err, revival.ErrParticipantRequired) {
		t.Fatalf("Insert() error = %v", err)
	}
}

func TestStateStoreMarksDriverErrors(t *testing.T) {
	db := openTestDB(t)
	store := NewStateStore(db, "missing_table")

	_, _, err := store.SelectLatest(context.Background(), uuid.New(), "g")
	if !errors.Is(err, revival.ErrStoreUnavailable) {
		t.Fatalf("SelectLatest() error = %v, want ErrStoreUnavailable", err)
	}
}

func TestDisabledStateStoreDropsWrites(t *testing.T) {
	store := NewDisabledStateStore(revival.ErrSchema)
	ctx := context.Background()
	id := uuid.New()

	if err := store.Insert(ctx, revival.Record{ParticipantID: id, GroupKey: "g"}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if affected, err := store.UpdateLatestRestoreMethod(ctx, id, "g", revival.MethodCommand, true); err != nil || affected != 0 {
		t.Fatalf("UpdateLatestRestoreMethod() = %d, %v", affected, err)
	}
	if _, found, err := store.SelectLatest(ctx, id, "g"); err != nil || found {
		t.Fatalf("SelectLatest() = found %v, err %v", found, err)
	}
}

func TestDirectoryRememberAndLookup(t *testing.T) {
	ctx := context.Background()
	dir := NewDirectory(openTestDB(t))
	dir.now = steppedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	first := uuid.New()
	second := uuid.New()

	if err := dir.Remember(ctx, first, "Steve"); err != nil {
		t.Fatalf("Remember() error = %v", err)
	}
	if err := dir.Remember(ctx, second, "steve"); err != nil {
		t.Fatalf("Remember() error = %v", err)
	}

	got, err := dir.LookupByName(ctx, "STEVE")
	if err != nil {
		t.Fatalf("LookupByName() error = %v", err)
	}
	if got != second {
		t.Fatalf("LookupByName() = %s, want most recent %s", got, second)
	}

	if err := dir.Remember(ctx, second, "Alex"); err != nil {
		t.Fatalf("Remember() rename error = %v", err)
	}
	got, err = dir.LookupByName(ctx, "steve")
	if err != nil || got != first {
		t.Fatalf("LookupByName() after rename = %s, %v", got, err)
	}

	if _, err := dir.LookupByName(ctx, "nobody"); !errors.Is(err, revival.ErrNotFound) {
		t.Fatalf("LookupByName() error = %v, want ErrNotFound", err)
	}
}

func TestWalletGrantSpendBalance(t *testing.T) {
	ctx := context.Background()
	wallet := NewWallet(openTestDB(t))
	id := uuid.New()

	if got, err := wallet.Balance(ctx, id, "points"); err != nil || got != 0 {
		t.Fatalf("Balance() = %d, %v", got, err)
	}

	if got, err := wallet.Grant(ctx, id, "points", 150); err != nil || got != 150 {
		t.Fatalf("Grant() = %d, %v", got, err)
	}
	if got, err := wallet.Grant(ctx, id, "points", 50); err != nil || got != 200 {
		t.Fatalf("Grant() = %d, %v", got, err)
	}

	if err := wallet.Spend(ctx, id, "points", 120); err != nil {
		t.Fatalf("Spend() error = %v", err)
	}
	if err := wallet.Spend(ctx, id, "points", 100); !errors.Is(err, revival.ErrInsufficientBalance) {
		t.Fatalf("Spend() error = %v, want ErrInsufficientBalance", err)
	}
	if got, _ := wallet.Balance(ctx, id, "points"); got != 80 {
		t.Fatalf("Balance() = %d, want 80", got)
	}
}

func TestWalletSpendRollsBackWithUnitOfWork(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	wallet := NewWallet(db)
	unit := uow.NewUnitOfWork(db)
	id := uuid.New()

	if _, err := wallet.Grant(ctx, id, "points", 100); err != nil {
		t.Fatalf("Grant() error = %v", err)
	}
	if _, err := wallet.Grant(ctx, id, "gems", 1); err != nil {
		t.Fatalf("Grant() error = %v", err)
	}

	err := unit.WithTx(ctx, func(txCtx context.Context) error {
		if err := wallet.Spend(txCtx, id, "points", 100); err != nil {
			return err
		}
		return wallet.Spend(txCtx, id, "gems", 5)
	})
	if !errors.Is(err, revival.ErrInsufficientBalance) {
		t.Fatalf("WithTx() error = %v, want ErrInsufficientBalance", err)
	}

	if got, _ := wallet.Balance(ctx, id, "points"); got != 100 {
		t.Fatalf("points balance = %d, want rollback to 100", got)
	}
}
