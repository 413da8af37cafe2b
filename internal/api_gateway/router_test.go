package api_gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mortgage-deed-signing/internal/api_gateway/handler"
	"github.com/mortgage-deed-signing/internal/api_gateway/middleware"
	"github.com/mortgage-deed-signing/internal/api_gateway/service"
	"github.com/mortgage-deed-signing/internal/config"
	"github.com/mortgage-deed-signing/internal/data/memory"
	"github.com/mortgage-deed-signing/internal/domain/deed"
	"github.com/mortgage-deed-signing/internal/domain/identity"
	"github.com/mortgage-deed-signing/internal/durations"
	"github.com/mortgage-deed-signing/internal/ledger"
	"github.com/mortgage-deed-signing/internal/platform/metrics"
	"github.com/mortgage-deed-signing/internal/signing"
	"github.com/mortgage-deed-signing/internal/stats"
)

const (
	annaPN  = "198001011111"
	erikPN  = "198502022222"
	gretaPN = "196501015555"
)

type gateway struct {
	handler  http.Handler
	verifier *middleware.TokenVerifier
	coop     deed.Cooperative
}

func newGateway(t *testing.T) *gateway {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := &config.Config{
		Application: config.ApplicationConfig{Env: "test"},
		Server: config.ServerConfig{
			Port:            8080,
			ShutdownTimeout: time.Second,
			ReadTimeout:     time.Second,
			WriteTimeout:    time.Second,
			IdleTimeout:     time.Second,
		},
		Auth: config.AuthConfig{JWTSecret: "router-test-secret", JWTIssuer: "idp", JWTAudience: "deeds"},
	}

	store := memory.NewStore()
	coop := store.AddCooperative(deed.Cooperative{
		Name:                      "BRF Eken",
		OrganisationNumber:        "769600-1234",
		AdministratorName:         "Greta",
		AdministratorPersonNumber: gretaPN,
		AdministratorEmail:        "greta@brf-eken.se",
	})

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	auditLedger := ledger.New(store.Audit(), log)
	engine := signing.NewEngine(store, store.Deeds(), auditLedger, store.Outbox(),
		signing.NewComposer("Pantbrev", "https://deeds.example.se/"), log, signing.WithMetrics(m))

	services := Services{
		Signing: engine,
		Queries: service.NewDeedQueryService(engine, auditLedger, durations.NewAccumulator(store.Deeds(), auditLedger, nil), store.Deliveries()),
		Stats:   stats.NewAggregator(store.Deeds(), auditLedger, log, stats.WithMetrics(m)),
	}
	server := NewServer(log, cfg, services, m, registry)

	return &gateway{
		handler:  server.Handler(),
		verifier: middleware.NewTokenVerifier(cfg.Auth),
		coop:     coop,
	}
}

func (g *gateway) call(t *testing.T, claims *identity.Claims, method, path string, body any) (*httptest.ResponseRecorder, handler.Response) {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req, _ := http.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if claims != nil {
		token, err := g.verifier.Issue(*claims, time.Minute)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	g.handler.ServeHTTP(rr, req)

	var resp handler.Response
	if rr.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	}
	return rr, resp
}

func dataInto(t *testing.T, resp handler.Response, dst any) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, dst))
}

func TestRouter_SigningWorkflow(t *testing.T) {
	g := newGateway(t)
	clerk := identity.Claims{Subject: "clerk-1", Role: identity.RoleBankClerk, BankID: 10}
	anna := identity.Claims{Subject: "anna", Role: identity.RoleBorrower, PersonNumber: annaPN}
	erik := identity.Claims{Subject: "erik", Role: identity.RoleBorrower, PersonNumber: erikPN}
	greta := identity.Claims{Subject: "greta", Role: identity.RoleCooperativeRepresentative, CooperativeID: g.coop.ID, PersonNumber: gretaPN}

	rr, resp := g.call(t, &clerk, http.MethodPost, "/deeds", map[string]any{
		"credit_number":     "CR-2026-001",
		"apartment_address": "Storgatan 1",
		"apartment_number":  "1101",
		"bank_id":           10,
		"cooperative_id":    g.coop.ID,
		"borrowers": []map[string]any{
			{"name": "Anna", "person_number": annaPN, "email": "anna@example.se", "ownership_percentage": "60"},
			{"name": "Erik", "person_number": erikPN, "email": "erik@example.se", "ownership_percentage": "40"},
		},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var created handler.DeedResponse
	dataInto(t, resp, &created)
	assert.Equal(t, "CREATED", created.Status)
	require.Len(t, created.CooperativeSigners, 1)
	assert.Equal(t, gretaPN, created.CooperativeSigners[0].PersonNumber)
	base := fmt.Sprintf("/deeds/%d", created.ID)

	rr, _ = g.call(t, &greta, http.MethodPost, base+"/cooperative-signer/sign", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr, _ = g.call(t, &clerk, http.MethodPost, base+"/send-for-signing", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr, resp = g.call(t, &clerk, http.MethodGet, base+"/audit-log", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var entries []handler.AuditEntryResponse
	dataInto(t, resp, &entries)
	byType := map[string]int{}
	for _, e := range entries {
		byType[e.ActionType]++
	}
	assert.Equal(t, 1, byType["STATUS_CHANGED"])
	assert.Equal(t, 2, byType["NOTIFICATION_SENT"])

	rr, _ = g.call(t, &anna, http.MethodPost, base+"/borrowers/"+erikPN+"/sign", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr, resp = g.call(t, &anna, http.MethodPost, base+"/borrowers/"+annaPN+"/sign", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var afterAnna handler.DeedResponse
	dataInto(t, resp, &afterAnna)
	assert.Equal(t, "PENDING_BORROWER_SIGNATURE", afterAnna.Status)

	rr, resp = g.call(t, &greta, http.MethodGet, "/signing/pending", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var pending []handler.DeedSummaryResponse
	dataInto(t, resp, &pending)
	assert.Empty(t, pending)

	rr, _ = g.call(t, &erik, http.MethodPost, base+"/borrowers/"+erikPN+"/sign", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr, resp = g.call(t, &erik, http.MethodGet, base+"/status", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var status handler.StatusResponse
	dataInto(t, resp, &status)
	assert.Equal(t, "PENDING_HOUSING_COOPERATIVE_SIGNATURE", status.Status)

	outsider := identity.Claims{Subject: "eve", Role: identity.RoleBorrower, PersonNumber: "199909099999"}
	rr, _ = g.call(t, &outsider, http.MethodGet, base+"/status", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr, resp = g.call(t, &greta, http.MethodGet, "/signing/pending", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	dataInto(t, resp, &pending)
	require.Len(t, pending, 1)
	assert.Equal(t, created.ID, pending[0].ID)

	rr, _ = g.call(t, &greta, http.MethodPost, base+"/cooperative-signer/sign", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr, resp = g.call(t, &anna, http.MethodGet, base+"/status-durations", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var report handler.StatusDurationsResponse
	dataInto(t, resp, &report)
	assert.Equal(t, "COMPLETED", report.CurrentStatus)
	require.Len(t, report.Intervals, 4)
	for _, i := range report.Intervals[:3] {
		assert.False(t, i.Open, i.Status)
	}
	assert.True(t, report.Intervals[3].Open)

	rr, resp = g.call(t, &clerk, http.MethodGet, "/stats/summary", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var summary stats.Summary
	dataInto(t, resp, &summary)
	assert.Equal(t, int64(1), summary.TotalDeeds)
	assert.Equal(t, int64(1), summary.ByStatus["COMPLETED"])

	rr, resp = g.call(t, &clerk, http.MethodGet, base+"/notifications", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotNil(t, resp.Data)
}

func TestRouter_AuditLogPaging(t *testing.T) {
	g := newGateway(t)
	clerk := identity.Claims{Subject: "clerk-1", Role: identity.RoleBankClerk, BankID: 10}

	rr, resp := g.call(t, &clerk, http.MethodPost, "/deeds", map[string]any{
		"credit_number":     "CR-2026-002",
		"apartment_address": "Storgatan 2",
		"apartment_number":  "1201",
		"bank_id":           10,
		"cooperative_id":    g.coop.ID,
		"borrowers": []map[string]any{
			{"name": "Anna", "person_number": annaPN, "email": "anna@example.se", "ownership_percentage": 100},
		},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var created handler.DeedResponse
	dataInto(t, resp, &created)
	base := fmt.Sprintf("/deeds/%d", created.ID)

	rr, _ = g.call(t, &clerk, http.MethodPost, base+"/send-for-signing", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	seen := 0
	cursor := ""
	for pages := 0; pages < 10; pages++ {
		path := base + "/audit-log?limit=1"
		if cursor != "" {
			path += "&cursor=" + cursor
		}
		rr, resp = g.call(t, &clerk, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		var page []handler.AuditEntryResponse
		dataInto(t, resp, &page)
		seen += len(page)
		if resp.Meta == nil || resp.Meta.NextCursor == "" {
			break
		}
		cursor = resp.Meta.NextCursor
	}
	// created, status changed, one notification per audience
	assert.Equal(t, 4, seen)

	rr, resp = g.call(t, &clerk, http.MethodGet, base+"/audit-log?cursor=not-a-cursor", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_FAILED", resp.Error.Code)
}

func TestRouter_PublicAndProtectedRoutes(t *testing.T) {
	g := newGateway(t)

	rr, _ := g.call(t, nil, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr, _ = g.call(t, nil, http.MethodGet, "/stats/summary", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr, _ = g.call(t, nil, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "# TYPE")
}
