package core_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"admissions/internal/blob"
	"admissions/internal/core"
	"admissions/pkg/domain"
)

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time { return c.t }

func newExporter(t *testing.T, store blob.Store) (*core.Exporter, *core.Service, *fixedClock) {
	t.Helper()
	svc := newService(t, 150)
	if err := svc.Import(context.Background(), domain.SeedState(time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC))); err != nil {
		t.Fatalf("import: %v", err)
	}
	clock := &fixedClock{t: time.Date(2024, 9, 14, 16, 30, 5, 0, time.UTC)}
	return core.NewExporter(svc, store, core.WithExportClock(clock)), svc, clock
}

func TestExportSnapshotWritesDatedBackup(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemory()
	exp, svc, _ := newExporter(t, store)

	out, err := exp.ExportSnapshot(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if out.Info.Key != "backups/shs-admission-backup-2024-09-14.json" {
		t.Fatalf("unexpected key %s", out.Info.Key)
	}
	if out.Info.ContentType != "application/json" || out.Students != 3 {
		t.Fatalf("unexpected export %+v", out)
	}
	if out.URL != "" {
		t.Fatalf("memory store cannot presign, got %s", out.URL)
	}
	_, rc, err := store.Get(ctx, out.Info.Key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	payload, _ := io.ReadAll(rc)
	_ = rc.Close()
	if !strings.Contains(string(payload), "\n  \"students\": [") {
		t.Fatalf("expected indented document, got %s", payload)
	}
	var decoded domain.AppState
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := svc.State()
	if len(decoded.Students) != 3 || decoded.FormInventory != want.FormInventory || decoded.TotalRevenue != want.TotalRevenue {
		t.Fatalf("backup differs from state: %+v", decoded)
	}
	if !decoded.Students[0].CreatedAt.Equal(want.Students[0].CreatedAt) {
		t.Fatalf("timestamps not preserved")
	}
}

func TestExportSnapshotCollisionAddsTimeSuffix(t *testing.T) {
	ctx := context.Background()
	exp, _, _ := newExporter(t, blob.NewMemory())
	if _, err := exp.ExportSnapshot(ctx); err != nil {
		t.Fatalf("first export: %v", err)
	}
	out, err := exp.ExportSnapshot(ctx)
	if err != nil {
		t.Fatalf("second export: %v", err)
	}
	if out.Info.Key != "backups/shs-admission-backup-2024-09-14-163005.json" {
		t.Fatalf("unexpected collision key %s", out.Info.Key)
	}
	if _, err := exp.ExportSnapshot(ctx); !errors.Is(err, blob.ErrExists) {
		t.Fatalf("expected third export in the same second to fail, got %v", err)
	}
}

func TestExportSnapshotToS3Presigns(t *testing.T) {
	exp, _, _ := newExporter(t, blob.NewMockS3ForTests())
	out, err := exp.ExportSnapshot(context.Background())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(out.URL, "shs-admission-backup-2024-09-14.json") || !strings.Contains(out.URL, "X-Amz-Signature") {
		t.Fatalf("expected presigned url, got %q", out.URL)
	}
}

func TestExportRosterRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemory()
	exp, svc, _ := newExporter(t, store)
	kofi := svc.State().Students[2]
	if _, _, err := svc.SellForm(ctx, kofi.ID); err != nil {
		t.Fatalf("sell: %v", err)
	}
	if _, _, err := svc.RecordPayment(ctx, kofi.ID, "650"); err != nil {
		t.Fatalf("pay: %v", err)
	}

	out, err := exp.ExportRoster(ctx)
	if err != nil {
		t.Fatalf("roster: %v", err)
	}
	if out.Info.Key != "reports/shs-admission-roster-2024-09-14.xlsx" {
		t.Fatalf("unexpected key %s", out.Info.Key)
	}
	_, rc, err := store.Get(ctx, out.Info.Key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	payload, _ := io.ReadAll(rc)
	_ = rc.Close()
	rows, err := core.ReadRoster(payload)
	if err != nil {
		t.Fatalf("read roster: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header plus 3 rows, got %d", len(rows))
	}
	header := core.RosterHeader()
	if len(rows[0]) != len(header) || rows[0][0] != "Name" || rows[0][len(header)-1] != "Amount Paid" {
		t.Fatalf("unexpected header %v", rows[0])
	}
	first := rows[1]
	if first[0] != "Kwame Mensah" || first[4] != "completed" || first[9] != "pending" || first[10] != "5/6 Stages" {
		t.Fatalf("unexpected first row %v", first)
	}
	last := rows[3]
	if last[0] != "Kofi Asante" || last[6] != "completed" || last[10] != "3/6 Stages" || last[11] != "650" {
		t.Fatalf("unexpected last row %v", last)
	}
}

func TestImportSnapshotRestoresBackup(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemory()
	exp, svc, _ := newExporter(t, store)
	out, err := exp.ExportSnapshot(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	issue(t, svc, "Late", "Form 1 Science")
	if len(svc.State().Students) != 4 {
		t.Fatalf("expected new record before restore")
	}
	state, err := exp.ImportSnapshot(ctx, out.Info.Key)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(state.Students) != 3 || len(svc.State().Students) != 3 {
		t.Fatalf("restore did not replace state: %+v", state)
	}
}

func TestImportSnapshotErrors(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemory()
	exp, svc, _ := newExporter(t, store)
	if _, err := exp.ImportSnapshot(ctx, "backups/none.json"); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	for key, body := range map[string]string{
		"backups/broken.json":  "{",
		"backups/nostate.json": `{"formInventory":3}`,
	} {
		if _, err := store.Put(ctx, key, strings.NewReader(body), blob.PutOptions{}); err != nil {
			t.Fatalf("put: %v", err)
		}
		if _, err := exp.ImportSnapshot(ctx, key); !domain.IsValidation(err) {
			t.Fatalf("%s: expected validation error, got %v", key, err)
		}
	}
	if len(svc.State().Students) != 3 {
		t.Fatalf("failed imports must leave state untouched")
	}
}

func TestPruneBackupsKeepsNewest(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemory()
	exp, _, clock := newExporter(t, store)
	for day := 10; day <= 14; day++ {
		clock.t = time.Date(2024, 9, day, 9, 0, 0, 0, time.UTC)
		if _, err := exp.ExportSnapshot(ctx); err != nil {
			t.Fatalf("export day %d: %v", day, err)
		}
	}
	if _, err := exp.ExportRoster(ctx); err != nil {
		t.Fatalf("roster: %v", err)
	}
	removed, err := exp.PruneBackups(ctx, 2)
	if err != nil || removed != 3 {
		t.Fatalf("prune: removed %d, err %v", removed, err)
	}
	backups, _ := exp.Backups(ctx)
	if len(backups) != 2 || !strings.HasSuffix(backups[0].Key, "2024-09-14.json") || !strings.HasSuffix(backups[1].Key, "2024-09-13.json") {
		t.Fatalf("unexpected remaining backups %+v", backups)
	}
	reports, _ := store.List(ctx, core.ReportPrefix)
	if len(reports) != 1 {
		t.Fatalf("pruning must not touch reports")
	}
	if n, _ := exp.PruneBackups(ctx, 0); n != 0 {
		t.Fatalf("keep=0 disables pruning")
	}
}

func TestDecodeSnapshotAcceptsEmptyStudents(t *testing.T) {
	state, err := core.DecodeSnapshot([]byte(`{"students":[],"formInventory":150,"totalRevenue":0}`))
	if err != nil || len(state.Students) != 0 || state.FormInventory != 150 {
		t.Fatalf("unexpected decode %+v %v", state, err)
	}
	payload, err := core.EncodeSnapshot(core.AppState{})
	if err != nil || !strings.Contains(string(payload), `"students": []`) {
		t.Fatalf("empty state must encode an empty list: %s %v", payload, err)
	}
}

func TestBackupsOrdersSameDayExportsNewestFirst(t *testing.T) {
	ctx := context.Background()
	exp, _, clock := newExporter(t, blob.NewMemory())
	for _, hour := range []int{8, 12, 17} {
		clock.t = time.Date(2024, 9, 14, hour, 0, 0, 0, time.UTC)
		if _, err := exp.ExportSnapshot(ctx); err != nil {
			t.Fatalf("export %d: %v", hour, err)
		}
	}
	backups, err := exp.Backups(ctx)
	if err != nil {
		t.Fatalf("backups: %v", err)
	}
	want := []string{
		"backups/shs-admission-backup-2024-09-14-170000.json",
		"backups/shs-admission-backup-2024-09-14-120000.json",
		"backups/shs-admission-backup-2024-09-14.json",
	}
	if len(backups) != len(want) {
		t.Fatalf("expected %d backups, got %d", len(want), len(backups))
	}
	for i, key := range want {
		if backups[i].Key != key {
			t.Fatalf("position %d: expected %s, got %s", i, key, backups[i].Key)
		}
	}
}
