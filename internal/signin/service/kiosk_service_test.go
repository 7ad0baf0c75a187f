package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/BikerAndy/site-signin/internal/signin/policy"
	"github.com/BikerAndy/site-signin/internal/signin/service"
	"github.com/BikerAndy/site-signin/internal/signin/store"
	"github.com/BikerAndy/site-signin/internal/signin/store/memory"
	"github.com/BikerAndy/site-signin/internal/signin/types"
)

func silentLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// newTestKioskService builds a loaded KioskService backed by kv with
// deterministic ids and a clock that advances one second per call.
func newTestKioskService(kv *memory.Store) *service.KioskService {
	n := 0
	tick := time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC)
	svc := service.NewKioskService(kv, silentLogger(), service.Options{
		NewID: func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		},
		Clock: func() time.Time {
			tick = tick.Add(time.Second)
			return tick
		},
	})
	svc.Load(context.Background())
	return svc
}

func fullDeclarations() types.Declarations {
	return types.Declarations{
		PPEWorn:            []string{policy.PPEBoots, policy.PPEHiVis, policy.PPEHardHat},
		InductionConfirmed: true,
		RAMSConfirmed:      true,
		SiteRulesAck:       true,
	}
}

func newcomer(name, company string) types.SignInRequest {
	return types.SignInRequest{
		Worker:       types.WorkerProfile{Name: name, Company: company},
		Declarations: fullDeclarations(),
	}
}

func mustSignIn(t *testing.T, svc *service.KioskService, req types.SignInRequest) service.Outcome {
	t.Helper()
	out, err := svc.SignIn(context.Background(), req)
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if !out.Result.OK {
		t.Fatalf("SignIn rejected: %s", out.Result.Reason)
	}
	return out
}

func storedCount(t *testing.T, kv *memory.Store, key string) int {
	t.Helper()
	raw, ok, _ := kv.Load(context.Background(), key)
	if !ok {
		return -1
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		t.Fatalf("decode %s: %v", key, err)
	}
	return len(items)
}

// ── Sign in / out ────────────────────────────────────────────────────────────

func TestSignIn_NewWorker_RecordsEventAndProfile(t *testing.T) {
	kv := memory.New()
	svc := newTestKioskService(kv)

	out := mustSignIn(t, svc, newcomer("  Ann Smith ", "Acme"))

	if out.Worker.ID != "id-1" {
		t.Errorf("expected generated worker id id-1, got %q", out.Worker.ID)
	}
	if out.Worker.Name != "Ann Smith" {
		t.Errorf("expected trimmed name, got %q", out.Worker.Name)
	}
	if out.Event == nil {
		t.Fatal("expected event")
	}
	if out.Event.ID != "id-2" || out.Event.WorkerID != "id-1" {
		t.Errorf("unexpected event ids: %+v", out.Event)
	}
	if out.Event.Direction != types.DirectionIn {
		t.Errorf("expected IN, got %s", out.Event.Direction)
	}
	if out.Event.Timestamp != "2026-03-02T07:00:01.000Z" {
		t.Errorf("unexpected timestamp %q", out.Event.Timestamp)
	}
	if !out.Event.InductionConfirmed || !out.Event.RAMSConfirmed {
		t.Error("expected declarations captured on the event")
	}
	if out.OnSite != 1 {
		t.Errorf("expected 1 on site, got %d", out.OnSite)
	}

	if got := storedCount(t, kv, store.KeyWorkers); got != 1 {
		t.Errorf("expected 1 persisted worker, got %d", got)
	}
	if got := storedCount(t, kv, store.KeyVisits); got != 1 {
		t.Errorf("expected 1 persisted visit, got %d", got)
	}
}

func TestSignIn_InductionMissing_NoStateChange(t *testing.T) {
	kv := memory.New()
	svc := newTestKioskService(kv)

	req := newcomer("Ann", "Acme")
	req.Declarations.InductionConfirmed = false

	out, err := svc.SignIn(context.Background(), req)
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if out.Result.OK {
		t.Fatal("expected rejection")
	}
	if out.Result.Reason != policy.ReasonInduction {
		t.Errorf("expected induction_required, got %s", out.Result.Reason)
	}
	if out.Event != nil {
		t.Error("expected no event on rejection")
	}
	if len(svc.Visits()) != 0 || len(svc.Workers()) != 0 {
		t.Error("expected no ledger append and no directory upsert")
	}
	if keys := kv.Keys(); len(keys) != 0 {
		t.Errorf("expected nothing persisted, got keys %v", keys)
	}
}

func TestSignOut_IdentityOnly_Accepted(t *testing.T) {
	svc := newTestKioskService(memory.New())

	in := mustSignIn(t, svc, newcomer("Ann", "Acme"))

	out, err := svc.SignOut(context.Background(), types.SignInRequest{
		Worker: types.WorkerProfile{ID: in.Worker.ID, Name: "Ann", Company: "Acme"},
	})
	if err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if !out.Result.OK {
		t.Fatalf("expected sign-out accepted, got %s", out.Result.Reason)
	}
	if out.Event.Direction != types.DirectionOut {
		t.Errorf("expected OUT, got %s", out.Event.Direction)
	}
	if len(out.Event.PPEWorn) != 0 || out.Event.InductionConfirmed {
		t.Error("expected no declaration payload on OUT event")
	}
	if out.OnSite != 0 || len(svc.Roster()) != 0 {
		t.Error("expected nobody on site after sign-out")
	}
}

func TestSignOut_MissingCompany_Rejected(t *testing.T) {
	svc := newTestKioskService(memory.New())

	out, err := svc.SignOut(context.Background(), types.SignInRequest{
		Worker: types.WorkerProfile{Name: "Ann"},
	})
	if err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if out.Result.Reason != policy.ReasonCompanyRequired {
		t.Errorf("expected company_required, got %s", out.Result.Reason)
	}
}

func TestSignIn_UnknownWorkerID(t *testing.T) {
	svc := newTestKioskService(memory.New())

	req := newcomer("Ann", "Acme")
	req.Worker.ID = "never-issued"

	_, err := svc.SignIn(context.Background(), req)
	if !errors.Is(err, service.ErrUnknownWorker) {
		t.Fatalf("expected ErrUnknownWorker, got %v", err)
	}
	if len(svc.Visits()) != 0 {
		t.Error("expected no event for unknown worker")
	}
}

func TestSignIn_ReturningWorker_ReplacesProfile(t *testing.T) {
	svc := newTestKioskService(memory.New())

	first := mustSignIn(t, svc, types.SignInRequest{
		Worker:       types.WorkerProfile{Name: "Ann", Company: "Acme", Phone: "0123"},
		Declarations: fullDeclarations(),
	})

	again := newcomer("Ann", "Beta Ltd")
	again.Worker.ID = first.Worker.ID
	mustSignIn(t, svc, again)

	workers := svc.Workers()
	if len(workers) != 1 {
		t.Fatalf("expected 1 worker, got %d", len(workers))
	}
	if workers[0].Company != "Beta Ltd" {
		t.Errorf("expected latest company, got %q", workers[0].Company)
	}
	if workers[0].Phone != "" {
		t.Errorf("expected wholesale replacement, phone=%q survived", workers[0].Phone)
	}
}

func TestSignIn_DuplicateIsIdempotentForRoster(t *testing.T) {
	svc := newTestKioskService(memory.New())

	first := mustSignIn(t, svc, newcomer("Ann", "Acme"))
	again := newcomer("Ann", "Acme")
	again.Worker.ID = first.Worker.ID
	second := mustSignIn(t, svc, again)

	roster := svc.Roster()
	if len(roster) != 1 || roster[0].Worker.ID != first.Worker.ID {
		t.Fatalf("expected exactly one roster entry, got %+v", roster)
	}
	if roster[0].SinceIn.ID != second.Event.ID {
		t.Errorf("expected roster to point at latest IN event")
	}
	if len(svc.Visits()) != 2 {
		t.Errorf("expected both events in ledger, got %d", len(svc.Visits()))
	}
}

func TestRoster_MixedTraffic(t *testing.T) {
	svc := newTestKioskService(memory.New())
	ctx := context.Background()

	w1 := mustSignIn(t, svc, newcomer("Ann", "Acme")).Worker
	w2 := mustSignIn(t, svc, newcomer("Bob", "Acme")).Worker
	if _, err := svc.SignOut(ctx, types.SignInRequest{Worker: w1}); err != nil {
		t.Fatalf("SignOut: %v", err)
	}

	roster := svc.Roster()
	if len(roster) != 1 || roster[0].Worker.ID != w2.ID {
		t.Fatalf("expected only Bob on site, got %+v", roster)
	}
	if roster[0].Worker.Name != "Bob" {
		t.Errorf("expected joined profile, got %+v", roster[0].Worker)
	}
	if svc.OnSite(w1.ID) || !svc.OnSite(w2.ID) {
		t.Error("OnSite disagrees with roster")
	}
}

func TestSignIn_PPENormalized(t *testing.T) {
	svc := newTestKioskService(memory.New())

	req := newcomer("Ann", "Acme")
	req.Declarations.PPEWorn = []string{"hardhat", "jetpack", "boots", "hivis", "boots"}

	out := mustSignIn(t, svc, req)
	got := strings.Join(out.Event.PPEWorn, ",")
	if got != "boots,hivis,hardhat" {
		t.Errorf("unexpected ppe %q", got)
	}
}

// ── Persistence ──────────────────────────────────────────────────────────────

func TestLoad_RestoresStateAndRoster(t *testing.T) {
	kv := memory.New()
	svc := newTestKioskService(kv)

	w1 := mustSignIn(t, svc, newcomer("Ann", "Acme")).Worker
	mustSignIn(t, svc, newcomer("Bob", "Acme"))
	_, _ = svc.SignOut(context.Background(), types.SignInRequest{Worker: w1})

	reloaded := newTestKioskService(kv)

	if len(reloaded.Workers()) != 2 {
		t.Errorf("expected 2 workers, got %d", len(reloaded.Workers()))
	}
	if len(reloaded.Visits()) != 3 {
		t.Errorf("expected 3 visits, got %d", len(reloaded.Visits()))
	}
	roster := reloaded.Roster()
	if len(roster) != 1 || roster[0].Worker.Name != "Bob" {
		t.Errorf("expected Bob on site after reload, got %+v", roster)
	}
}

func TestLoad_EmptyStoreUsesDefaults(t *testing.T) {
	svc := newTestKioskService(memory.New())

	got := svc.Settings()
	want := policy.Defaults()
	if got.SiteName != want.SiteName || got.AdminPIN != want.AdminPIN {
		t.Errorf("expected defaults, got %+v", got)
	}
	if len(svc.Workers()) != 0 || len(svc.Visits()) != 0 {
		t.Error("expected empty directory and ledger")
	}
}

func TestLoad_PartialSettingsBlobMergedOntoDefaults(t *testing.T) {
	kv := memory.New()
	_ = kv.Save(context.Background(), store.KeySettings, []byte(`{"siteName":"Dock 4","requireRAMS":false}`))

	got := newTestKioskService(kv).Settings()

	if got.SiteName != "Dock 4" {
		t.Errorf("expected stored site name, got %q", got.SiteName)
	}
	if got.RequireRAMS {
		t.Error("expected stored requireRAMS=false")
	}
	if !got.RequireInduction {
		t.Error("expected default requireInduction=true")
	}
	if got.AdminPIN != policy.DefaultAdminPIN {
		t.Errorf("expected default pin, got %q", got.AdminPIN)
	}
}

func TestLoad_CorruptBlobPreserved(t *testing.T) {
	kv := memory.New()
	ctx := context.Background()
	_ = kv.Save(ctx, store.KeyWorkers, []byte(`[{"id":"w1","name":"Ann","company":"Acme"}]`))
	_ = kv.Save(ctx, store.KeyVisits, []byte(`{not json`))

	svc := newTestKioskService(kv)

	if len(svc.Visits()) != 0 {
		t.Errorf("expected empty ledger for corrupt blob, got %d", len(svc.Visits()))
	}
	if len(svc.Workers()) != 1 {
		t.Errorf("expected workers unaffected, got %d", len(svc.Workers()))
	}

	var backup string
	for _, k := range kv.Keys() {
		if strings.HasPrefix(k, store.KeyVisits+".corrupt.") {
			backup = k
		}
	}
	if backup == "" {
		t.Fatalf("expected corrupt blob backup, keys=%v", kv.Keys())
	}
	raw, _, _ := kv.Load(ctx, backup)
	if string(raw) != `{not json` {
		t.Errorf("backup does not hold raw blob: %q", raw)
	}
}

func TestSignIn_SaveFailureNotPropagated(t *testing.T) {
	kv := memory.New()
	svc := newTestKioskService(kv)
	kv.FailSave = errors.New("disk full")

	out, err := svc.SignIn(context.Background(), newcomer("Ann", "Acme"))
	if err != nil {
		t.Fatalf("expected save failure to be swallowed, got %v", err)
	}
	if !out.Result.OK || len(svc.Roster()) != 1 {
		t.Error("expected in-memory state to stay authoritative")
	}
}

// ── Admin ────────────────────────────────────────────────────────────────────

func TestUpdateSettings_WrongPIN(t *testing.T) {
	kv := memory.New()
	svc := newTestKioskService(kv)

	name := "Hacked"
	_, err := svc.UpdateSettings(context.Background(), "0000", policy.Patch{SiteName: &name})
	if !errors.Is(err, service.ErrAdminPIN) {
		t.Fatalf("expected ErrAdminPIN, got %v", err)
	}
	if svc.Settings().SiteName == "Hacked" {
		t.Error("settings changed despite wrong pin")
	}
	if _, ok, _ := kv.Load(context.Background(), store.KeySettings); ok {
		t.Error("expected nothing persisted")
	}
}

func TestUpdateSettings_PersistsAndApplies(t *testing.T) {
	kv := memory.New()
	svc := newTestKioskService(kv)

	off := false
	ppe := []string{policy.PPEGloves}
	got, err := svc.UpdateSettings(context.Background(), policy.DefaultAdminPIN, policy.Patch{
		RequireInduction: &off,
		RequireRAMS:      &off,
		RequirePPE:       &ppe,
	})
	if err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if got.RequireInduction || len(got.RequirePPE) != 1 {
		t.Errorf("unexpected settings %+v", got)
	}

	// New policy is enforced immediately.
	out, _ := svc.SignIn(context.Background(), types.SignInRequest{
		Worker:       types.WorkerProfile{Name: "Ann", Company: "Acme"},
		Declarations: types.Declarations{SiteRulesAck: true},
	})
	if out.Result.Reason != policy.ReasonPPEMissing {
		t.Errorf("expected ppe_missing under new policy, got %q", out.Result.Reason)
	}

	// And survives a reload.
	reloaded := newTestKioskService(kv).Settings()
	if reloaded.RequireInduction || reloaded.RequirePPE[0] != policy.PPEGloves {
		t.Errorf("settings not persisted: %+v", reloaded)
	}
}

func TestResetAll_ClearsDirectoryAndLedgerTogether(t *testing.T) {
	kv := memory.New()
	svc := newTestKioskService(kv)
	mustSignIn(t, svc, newcomer("Ann", "Acme"))
	mustSignIn(t, svc, newcomer("Bob", "Acme"))

	if err := svc.ResetAll(context.Background(), "wrong"); !errors.Is(err, service.ErrAdminPIN) {
		t.Fatalf("expected ErrAdminPIN, got %v", err)
	}
	if len(svc.Visits()) != 2 {
		t.Fatal("wrong pin must not clear anything")
	}

	if err := svc.ResetAll(context.Background(), policy.DefaultAdminPIN); err != nil {
		t.Fatalf("ResetAll: %v", err)
	}

	if len(svc.Workers()) != 0 || len(svc.Visits()) != 0 || len(svc.Roster()) != 0 {
		t.Error("expected empty state after reset")
	}
	if storedCount(t, kv, store.KeyWorkers) != 0 || storedCount(t, kv, store.KeyVisits) != 0 {
		t.Error("expected persisted blobs to be empty after reset")
	}

	reloaded := newTestKioskService(kv)
	if len(reloaded.Workers()) != 0 || len(reloaded.Visits()) != 0 {
		t.Error("expected empty state after reload")
	}
}

// ── Export ───────────────────────────────────────────────────────────────────

func TestExport_CSV(t *testing.T) {
	kv := memory.New()
	svc := newTestKioskService(kv)
	w := mustSignIn(t, svc, newcomer("Ann", "Acme")).Worker
	_, _ = svc.SignOut(context.Background(), types.SignInRequest{Worker: w})

	exp, err := svc.Export(service.FormatCSV)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if exp.Rows != 2 {
		t.Errorf("expected 2 rows, got %d", exp.Rows)
	}
	if !strings.HasPrefix(exp.Filename, "site-attendance_2026-03-02") || !strings.HasSuffix(exp.Filename, ".csv") {
		t.Errorf("unexpected filename %q", exp.Filename)
	}
	lines := strings.Split(strings.TrimSpace(string(exp.Body)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines", len(lines))
	}
	if !strings.Contains(lines[1], `"IN","Ann","Acme"`) {
		t.Errorf("unexpected first row %s", lines[1])
	}
}

func TestExport_XLSX(t *testing.T) {
	svc := newTestKioskService(memory.New())
	mustSignIn(t, svc, newcomer("Ann", "Acme"))

	exp, err := svc.Export(service.FormatXLSX)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	// xlsx files are zip archives.
	if len(exp.Body) < 4 || string(exp.Body[:2]) != "PK" {
		t.Error("expected zip payload")
	}
}

func TestExport_UnknownFormat(t *testing.T) {
	svc := newTestKioskService(memory.New())
	if _, err := svc.Export("pdf"); !errors.Is(err, service.ErrExportFormat) {
		t.Errorf("expected ErrExportFormat, got %v", err)
	}
}
