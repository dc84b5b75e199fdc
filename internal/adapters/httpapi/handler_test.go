package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"admissions/internal/blob"
	"admissions/internal/core"
	"admissions/internal/infra/persistence/memory"
	"admissions/pkg/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Success  bool            `json:"success"`
	Data     json.RawMessage `json:"data"`
	Warnings []Warning       `json:"warnings"`
	Error    *ErrorDetail    `json:"error"`
}

func newTestHandler(t *testing.T, archive bool) *Handler {
	t.Helper()
	store := memory.NewStore(core.NewDefaultRulesEngine())
	store.ImportState(domain.SeedState(time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)))
	svc := core.NewService(store)
	h := &Handler{Service: svc, Summarizer: core.StaticSummarizer("all good"), InsightsTimeout: time.Second}
	if archive {
		h.Exporter = core.NewExporter(svc, blob.NewMemory())
	}
	return h
}

func do(t *testing.T, r http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, path, err, rec.Body.String())
		}
	}
	return rec, env
}

func TestOverviewReflectsSeed(t *testing.T) {
	r := NewRouter(newTestHandler(t, false), zerolog.Nop(), nil)
	rec, env := do(t, r, http.MethodGet, "/api/v1/overview", "")
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
	var view core.OverviewView
	if err := json.Unmarshal(env.Data, &view); err != nil {
		t.Fatalf("decode overview: %v", err)
	}
	if view.TotalStudents != 3 || view.FormInventory != 150 || view.TotalRevenue != 25000 {
		t.Fatalf("unexpected overview %+v", view)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected generated request id")
	}
}

func TestRoleViewsListEligibleRecords(t *testing.T) {
	r := NewRouter(newTestHandler(t, false), zerolog.Nop(), nil)

	_, env := do(t, r, http.MethodGet, "/api/v1/views/secretary", "")
	var sec core.SecretaryView
	_ = json.Unmarshal(env.Data, &sec)
	if len(sec.Eligible) != 1 || sec.Eligible[0].ID != "3" {
		t.Fatalf("expected Kofi waiting for a form, got %+v", sec.Eligible)
	}

	_, env = do(t, r, http.MethodGet, "/api/v1/views/accountant", "")
	var acc core.AccountantView
	_ = json.Unmarshal(env.Data, &acc)
	if len(acc.Eligible) != 1 || acc.Eligible[0].ID != "2" || acc.StandardFee != core.DefaultStandardFee {
		t.Fatalf("unexpected accountant view %+v", acc)
	}

	_, env = do(t, r, http.MethodGet, "/api/v1/views/rector", "")
	var rv core.RectorView
	_ = json.Unmarshal(env.Data, &rv)
	if len(rv.Pending) != 1 || rv.Pending[0].ID != "1" || len(rv.Reviewed) != 0 {
		t.Fatalf("unexpected rector view %+v", rv)
	}

	for _, path := range []string{"/api/v1/views/headmaster", "/api/v1/views/dataentry"} {
		if rec, _ := do(t, r, http.MethodGet, path, ""); rec.Code != http.StatusOK {
			t.Fatalf("%s: status %d", path, rec.Code)
		}
	}
}

func TestIssueSlipAndAdvance(t *testing.T) {
	r := NewRouter(newTestHandler(t, false), zerolog.Nop(), nil)

	rec, env := do(t, r, http.MethodPost, "/api/v1/students", `{"name":"Yaa Asantewaa","class":"Form 1 Science","gender":"Female","cheatNumber":"CHT-9"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("issue: %d %s", rec.Code, rec.Body.String())
	}
	var created StudentDetail
	_ = json.Unmarshal(env.Data, &created)
	if created.ID == "" || created.Progress != "1/6 Stages" || len(created.Actions) != 1 || created.Actions[0] != core.ActionSellForm {
		t.Fatalf("unexpected created record %+v", created)
	}

	base := "/api/v1/students/" + created.ID
	if rec, _ := do(t, r, http.MethodPost, base+"/sell", ""); rec.Code != http.StatusOK {
		t.Fatalf("sell: %d", rec.Code)
	}
	rec, env = do(t, r, http.MethodPost, base+"/pay", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("pay: %d %s", rec.Code, rec.Body.String())
	}
	var paid StudentDetail
	_ = json.Unmarshal(env.Data, &paid)
	if paid.AmountPaid == nil || *paid.AmountPaid != core.DefaultStandardFee {
		t.Fatalf("expected standard fee, got %+v", paid.AmountPaid)
	}
	for _, step := range []string{"/biodata", "/transcript"} {
		if rec, _ := do(t, r, http.MethodPost, base+step, ""); rec.Code != http.StatusOK {
			t.Fatalf("%s: %d", step, rec.Code)
		}
	}
	rec, env = do(t, r, http.MethodPost, base+"/review", `{"approve":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("review: %d %s", rec.Code, rec.Body.String())
	}
	var done StudentDetail
	_ = json.Unmarshal(env.Data, &done)
	if done.RectorReview != core.StatusCompleted || done.Progress != "6/6 Stages" || len(done.Actions) != 0 {
		t.Fatalf("unexpected final record %+v", done)
	}
}

func TestPaymentWithExplicitAmount(t *testing.T) {
	h := newTestHandler(t, false)
	r := NewRouter(h, zerolog.Nop(), nil)
	rec, _ := do(t, r, http.MethodPost, "/api/v1/students/2/pay", `{"amount":"750.50"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("pay: %d %s", rec.Code, rec.Body.String())
	}
	if got := h.Service.State().TotalRevenue; got != 25750.50 {
		t.Fatalf("expected revenue 25750.50, got %v", got)
	}
}

func TestErrorMapping(t *testing.T) {
	r := NewRouter(newTestHandler(t, false), zerolog.Nop(), nil)
	cases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"missing student", http.MethodGet, "/api/v1/students/99", "", http.StatusNotFound, CodeNotFound},
		{"gated not found", http.MethodPost, "/api/v1/students/99/sell", "", http.StatusNotFound, CodeNotFound},
		{"ineligible", http.MethodPost, "/api/v1/students/3/pay", "", http.StatusUnprocessableEntity, CodeIneligible},
		{"bad amount", http.MethodPost, "/api/v1/students/2/pay", `{"amount":"abc"}`, http.StatusUnprocessableEntity, CodeValidation},
		{"blank name", http.MethodPost, "/api/v1/students", `{"name":"  ","class":"Form 1 Science","gender":"Male","cheatNumber":"C1"}`, http.StatusUnprocessableEntity, CodeValidation},
		{"malformed body", http.MethodPost, "/api/v1/students", `{`, http.StatusBadRequest, CodeBadRequest},
		{"review without decision", http.MethodPost, "/api/v1/students/1/review", `{}`, http.StatusUnprocessableEntity, CodeValidation},
		{"archive missing", http.MethodPost, "/api/v1/backups", "", http.StatusServiceUnavailable, CodeUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, env := do(t, r, tc.method, tc.path, tc.body)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d (%s)", tc.status, rec.Code, rec.Body.String())
			}
			if env.Success || env.Error == nil || env.Error.Code != tc.code {
				t.Fatalf("expected error code %s, got %+v", tc.code, env.Error)
			}
		})
	}
}

func TestHandleErrorRuleViolation(t *testing.T) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	handleError(c, core.RuleViolationError{Result: core.Result{Violations: []core.Violation{
		{Rule: "stage_transition", Severity: core.SeverityBlock, Message: "form cannot move back to Processing"},
	}}})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "form cannot move back to Processing") {
		t.Fatalf("expected violation message, got %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(rec)
	handleError(c, errors.New("disk on fire"))
	if rec.Code != http.StatusInternalServerError || strings.Contains(rec.Body.String(), "disk on fire") {
		t.Fatalf("internal errors must not leak: %d %s", rec.Code, rec.Body.String())
	}
}

func TestOversellReturnsWarning(t *testing.T) {
	h := newTestHandler(t, false)
	state := h.Service.State()
	state.FormInventory = 0
	if err := h.Service.Import(context.Background(), state); err != nil {
		t.Fatalf("import: %v", err)
	}
	r := NewRouter(h, zerolog.Nop(), nil)
	rec, env := do(t, r, http.MethodPost, "/api/v1/students/3/sell", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("sell: %d", rec.Code)
	}
	if len(env.Warnings) != 1 || env.Warnings[0].Rule != "inventory_floor" {
		t.Fatalf("expected inventory warning, got %+v", env.Warnings)
	}
}

func TestInsightsFallsBackWithoutSummarizer(t *testing.T) {
	h := newTestHandler(t, false)
	r := NewRouter(h, zerolog.Nop(), nil)
	_, env := do(t, r, http.MethodGet, "/api/v1/insights", "")
	var got Insight
	_ = json.Unmarshal(env.Data, &got)
	if got.Summary != "all good" {
		t.Fatalf("unexpected summary %q", got.Summary)
	}

	h.Summarizer = nil
	_, env = do(t, r, http.MethodGet, "/api/v1/insights", "")
	_ = json.Unmarshal(env.Data, &got)
	if got.Summary != core.FallbackSummary {
		t.Fatalf("expected fallback, got %q", got.Summary)
	}
}

func TestBackupRoundTrip(t *testing.T) {
	h := newTestHandler(t, true)
	r := NewRouter(h, zerolog.Nop(), nil)

	rec, env := do(t, r, http.MethodPost, "/api/v1/backups", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("export: %d %s", rec.Code, rec.Body.String())
	}
	var out core.Export
	_ = json.Unmarshal(env.Data, &out)
	if !strings.HasPrefix(out.Info.Key, core.BackupPrefix) || out.Students != 3 {
		t.Fatalf("unexpected export %+v", out)
	}

	if rec, _ := do(t, r, http.MethodPost, "/api/v1/students/3/sell", ""); rec.Code != http.StatusOK {
		t.Fatalf("sell: %d", rec.Code)
	}

	_, env = do(t, r, http.MethodGet, "/api/v1/backups", "")
	var infos []blob.Info
	_ = json.Unmarshal(env.Data, &infos)
	if len(infos) != 1 || infos[0].Key != out.Info.Key {
		t.Fatalf("unexpected backup list %+v", infos)
	}

	rec, _ = do(t, r, http.MethodPost, "/api/v1/backups/restore", `{"key":"`+out.Info.Key+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("restore: %d %s", rec.Code, rec.Body.String())
	}
	if got := h.Service.State().FormInventory; got != 150 {
		t.Fatalf("expected restored inventory 150, got %d", got)
	}

	rec, env = do(t, r, http.MethodPost, "/api/v1/backups/restore", `{"key":"backups/missing.json"}`)
	if rec.Code != http.StatusNotFound || env.Error.Code != CodeNotFound {
		t.Fatalf("expected 404 for missing backup, got %d", rec.Code)
	}
}

func TestRosterEndpoints(t *testing.T) {
	r := NewRouter(newTestHandler(t, true), zerolog.Nop(), nil)

	rec, _ := do(t, r, http.MethodGet, "/api/v1/reports/roster.xlsx", "")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != xlsxContentType {
		t.Fatalf("download: %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
	rows, err := core.ReadRoster(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("read roster: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header plus 3 rows, got %d", len(rows))
	}
	if rows[1][0] != "Kwame Mensah" || rows[3][0] != "Kofi Asante" {
		t.Fatalf("expected rows in enrolment order, got %v / %v", rows[1], rows[3])
	}

	rec, env := do(t, r, http.MethodPost, "/api/v1/reports/roster", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("archive roster: %d %s", rec.Code, rec.Body.String())
	}
	var out core.Export
	_ = json.Unmarshal(env.Data, &out)
	if !strings.HasPrefix(out.Info.Key, core.ReportPrefix) {
		t.Fatalf("unexpected roster key %s", out.Info.Key)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := core.NewPrometheusRecorder(reg)
	if err != nil {
		t.Fatalf("recorder: %v", err)
	}
	store := memory.NewStore(core.NewDefaultRulesEngine())
	store.ImportState(domain.SeedState(time.Now()))
	h := &Handler{Service: core.NewService(store, core.WithMetrics(rec))}
	r := NewRouter(h, zerolog.Nop(), reg)

	if resp, _ := do(t, r, http.MethodPost, "/api/v1/students/3/sell", ""); resp.Code != http.StatusOK {
		t.Fatalf("sell: %d", resp.Code)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := resp.Body.String()
	if resp.Code != http.StatusOK || !strings.Contains(body, `admissions_operations_total{operation="sell_form",status="success"} 1`) {
		t.Fatalf("unexpected metrics output: %d\n%s", resp.Code, body)
	}
	if !strings.Contains(body, "admissions_form_inventory 149") {
		t.Fatalf("expected inventory gauge, got\n%s", body)
	}
}

func TestDebugVarsServesExpvarRecorder(t *testing.T) {
	rec := core.NewExpvarMetricsRecorder("admissions_httpapi_debug_vars")
	store := memory.NewStore(core.NewDefaultRulesEngine())
	store.ImportState(domain.SeedState(time.Now()))
	h := &Handler{Service: core.NewService(store, core.WithMetrics(rec))}
	r := NewRouter(h, zerolog.Nop(), nil)

	if resp, _ := do(t, r, http.MethodPost, "/api/v1/students/3/sell", ""); resp.Code != http.StatusOK {
		t.Fatalf("sell: %d", resp.Code)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/debug/vars", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("debug vars: %d", resp.Code)
	}
	var vars map[string]json.RawMessage
	if err := json.Unmarshal(resp.Body.Bytes(), &vars); err != nil {
		t.Fatalf("decode vars: %v", err)
	}
	var snap core.ExpvarMetricsSnapshot
	if err := json.Unmarshal(vars[rec.Name()], &snap); err != nil {
		t.Fatalf("decode recorder: %v (%s)", err, resp.Body.String())
	}
	if snap.Results["sell_form"]["success"] != 1 || snap.FormInventory != 149 {
		t.Fatalf("unexpected expvar snapshot %+v", snap)
	}
}

func TestRequestIDIsPropagated(t *testing.T) {
	r := NewRouter(newTestHandler(t, false), zerolog.Nop(), nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Header().Get(requestIDHeader) != "abc-123" {
		t.Fatalf("expected propagated id, got %q", rec.Header().Get(requestIDHeader))
	}
}
