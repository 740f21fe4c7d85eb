package httpapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/salesrouter/backend/internal/config"
	"github.com/salesrouter/backend/internal/engine"
	httpapi "github.com/salesrouter/backend/internal/http"
	"github.com/salesrouter/backend/internal/memstore"
	"github.com/salesrouter/backend/internal/models"
	"github.com/salesrouter/backend/internal/scoring"
	"github.com/salesrouter/backend/internal/strategy"
)

func testRouter(t *testing.T, adminKey string) (*gin.Engine, *memstore.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memstore.New()
	eng := &engine.Engine{
		Reps:        store,
		Rules:       store,
		Assignments: store,
		Leads:       store,
		Selectors:   strategy.Selectors(store, scoring.MockScorer{}, time.Second, nil),
		Logger:      zerolog.Nop(),
	}
	monitor := &engine.Monitor{
		Engine: eng,
		SLA:    func(string) time.Duration { return 24 * time.Hour },
		Logger: zerolog.Nop(),
	}
	cfg := config.Config{AdminKey: adminKey, CORSAllowed: "*"}
	return httpapi.Router(cfg, store, eng, monitor, zerolog.Nop()), store
}

func do(t *testing.T, r *gin.Engine, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	r, _ := testRouter(t, "")
	w := do(t, r, http.MethodGet, "/healthz", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestLeadCreateRoutes(t *testing.T) {
	r, store := testRouter(t, "")
	seedRoundRobin(t, store)

	body := `{"company_name":"Acme","company_size":120,"region":"NA","source":"webinar"}`
	w := do(t, r, http.MethodPost, "/api/leads", body, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Routing engine.RouteResult `json:"routing"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Routing.Assignment == nil || resp.Routing.Assignment.RepID != "r1" {
		t.Fatalf("expected assignment on r1, got %+v", resp.Routing)
	}
}

func TestLeadCreateValidation(t *testing.T) {
	r, _ := testRouter(t, "")
	w := do(t, r, http.MethodPost, "/api/leads", `{"company_size":5}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing company_name, got %d", w.Code)
	}
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if resp.Error.Code != "INVALID_REQUEST" {
		t.Fatalf("expected INVALID_REQUEST, got %q", resp.Error.Code)
	}
}

func TestRouteConflictOnSecondAttempt(t *testing.T) {
	r, store := testRouter(t, "")
	seedRoundRobin(t, store)
	if err := store.CreateLead(context.Background(), models.Lead{ID: "l1", CompanyName: "Acme"}); err != nil {
		t.Fatalf("create lead: %v", err)
	}

	w := do(t, r, http.MethodPost, "/api/leads/l1/route", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("first route: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	w = do(t, r, http.MethodPost, "/api/leads/l1/route", "", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("second route: expected 409, got %d", w.Code)
	}
}

func TestAssignmentLifecycleOverHTTP(t *testing.T) {
	r, store := testRouter(t, "")
	seedRoundRobin(t, store)
	if err := store.CreateLead(context.Background(), models.Lead{ID: "l1", CompanyName: "Acme"}); err != nil {
		t.Fatalf("create lead: %v", err)
	}

	w := do(t, r, http.MethodPost, "/api/leads/l1/route", "", nil)
	var result engine.RouteResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode route result: %v", err)
	}
	id := result.Assignment.ID

	w = do(t, r, http.MethodPost, "/api/assignments/"+id+"/accept", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("accept: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	// pending -> accepted happened already; a second accept conflicts
	w = do(t, r, http.MethodPost, "/api/assignments/"+id+"/accept", "", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("double accept: expected 409, got %d", w.Code)
	}
	w = do(t, r, http.MethodPost, "/api/assignments/"+id+"/convert", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("convert: expected 200, got %d", w.Code)
	}
	w = do(t, r, http.MethodGet, "/api/assignments/"+id, "", nil)
	var a models.LeadAssignment
	if err := json.Unmarshal(w.Body.Bytes(), &a); err != nil {
		t.Fatalf("decode assignment: %v", err)
	}
	if a.Status != models.StatusConverted {
		t.Fatalf("expected converted, got %s", a.Status)
	}
}

func TestAdminKeyRequired(t *testing.T) {
	r, _ := testRouter(t, "secret")

	body := `{"name":"Catch all","routing_type":"round_robin","is_active":true}`
	w := do(t, r, http.MethodPost, "/api/rules", body, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", w.Code)
	}

	w = do(t, r, http.MethodPost, "/api/rules", body, map[string]string{"X-Admin-Key": "secret"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 with key, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSweepTriggerEndpoint(t *testing.T) {
	r, _ := testRouter(t, "secret")
	w := do(t, r, http.MethodPost, "/api/escalations/sweep", "", map[string]string{"X-Admin-Key": "secret"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var summary engine.SweepSummary
	if err := json.Unmarshal(w.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
}

func seedRoundRobin(t *testing.T, store *memstore.Store) {
	t.Helper()
	if err := store.CreateRep(context.Background(), models.SalesRep{ID: "r1", Name: "Rep One", Available: true, MaxCapacity: 10}); err != nil {
		t.Fatalf("seed rep: %v", err)
	}
	rule := models.RoutingRule{ID: "rule-1", Name: "catch-all", Priority: 1, IsActive: true, RoutingType: models.RoutingRoundRobin}
	if err := store.CreateRule(context.Background(), rule); err != nil {
		t.Fatalf("seed rule: %v", err)
	}
}
