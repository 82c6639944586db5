package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	alertapp "solarwatch/internal/alerts/application"
	alerts "solarwatch/internal/alerts/domain"
	"solarwatch/internal/alerts/infrastructure/memory"
)

func newTestStore(t *testing.T) *alertapp.WatchedStore {
	t.Helper()
	store, err := alertapp.NewWatchedStore(memory.NewAlertRepository(), nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func seedAlerts(t *testing.T, store *alertapp.WatchedStore) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	closed := &alerts.VoltageAlert{ID: "a-1", StartedAt: base, MinVoltage: 45, IsActive: true}
	if err := store.Create(ctx, closed); err != nil {
		t.Fatalf("seed closed alert: %v", err)
	}
	if err := store.Close(ctx, "a-1", base.Add(2*time.Second), 2, 46.5); err != nil {
		t.Fatalf("close seed alert: %v", err)
	}
	active := &alerts.VoltageAlert{ID: "a-2", StartedAt: base.Add(time.Minute), MinVoltage: 48, IsActive: true}
	if err := store.Create(ctx, active); err != nil {
		t.Fatalf("seed active alert: %v", err)
	}
}

func TestHandlerListAlerts(t *testing.T) {
	store := newTestStore(t)
	seedAlerts(t, store)
	handler, err := NewHandler(store)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	var payload struct {
		Alerts []alerts.VoltageAlert `json:"alerts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Alerts) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(payload.Alerts))
	}
	// Newest first.
	if payload.Alerts[0].ID != "a-2" {
		t.Errorf("first alert = %s, want a-2", payload.Alerts[0].ID)
	}
}

func TestHandlerListLimit(t *testing.T) {
	store := newTestStore(t)
	seedAlerts(t, store)
	handler, _ := NewHandler(store)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts?limit=1", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	var payload struct {
		Alerts []alerts.VoltageAlert `json:"alerts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(payload.Alerts))
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/alerts?limit=bogus", nil)
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Errorf("bogus limit status = %d, want 400", resp.Code)
	}
}

func TestHandlerActiveAlert(t *testing.T) {
	store := newTestStore(t)
	handler, _ := NewHandler(store)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts/active", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("empty store status = %d, want 404", resp.Code)
	}

	seedAlerts(t, store)
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/alerts/active", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	var alert alerts.VoltageAlert
	if err := json.NewDecoder(resp.Body).Decode(&alert); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if alert.ID != "a-2" || !alert.IsActive {
		t.Errorf("active alert = %+v", alert)
	}
}

func TestHandlerMethodNotAllowed(t *testing.T) {
	store := newTestStore(t)
	handler, _ := NewHandler(store)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.Code)
	}
}

func TestExportHandlerCSV(t *testing.T) {
	store := newTestStore(t)
	seedAlerts(t, store)
	handler, err := NewExportHandler(store)
	if err != nil {
		t.Fatalf("new export handler: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/exports/alerts.csv", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	if got := resp.Header().Get("Content-Type"); got != "text/csv" {
		t.Errorf("content-type = %q", got)
	}
	body := resp.Body.String()
	lines := strings.Split(strings.TrimSpace(body), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "id,started_at,ended_at") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(body, "46.50") {
		t.Errorf("closed alert avg missing from csv: %q", body)
	}
}

func TestExportHandlerUnknownFormat(t *testing.T) {
	store := newTestStore(t)
	handler, _ := NewExportHandler(store)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/exports/alerts.txt", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.Code)
	}
}

func TestBuildAlertsCSVOpenAlertBlanks(t *testing.T) {
	history := []alerts.VoltageAlert{{
		ID:         "a-1",
		StartedAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		MinVoltage: 44,
		IsActive:   true,
	}}
	body, err := BuildAlertsCSV(history)
	if err != nil {
		t.Fatalf("build csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d", len(lines))
	}
	fields := strings.Split(lines[1], ",")
	if fields[2] != "" || fields[3] != "" || fields[5] != "" {
		t.Errorf("open alert must have blank ended/duration/avg fields: %v", fields)
	}
}

func TestSSEBrokerBroadcast(t *testing.T) {
	broker := NewSSEBroker()
	ch := broker.Subscribe()
	defer broker.Unsubscribe(ch)

	broker.HandleChange(alertapp.AlertChange{
		Type:  alertapp.ChangeCreated,
		Alert: alerts.VoltageAlert{ID: "a-1", MinVoltage: 48, IsActive: true},
	})

	select {
	case payload := <-ch:
		var change alertapp.AlertChange
		if err := json.Unmarshal(payload, &change); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if change.Type != alertapp.ChangeCreated || change.Alert.ID != "a-1" {
			t.Errorf("change = %+v", change)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no broadcast received")
	}
}

func TestStreamHandlerEmitsEvents(t *testing.T) {
	broker := NewSSEBroker()
	handler := NewStreamHandler(broker)
	server := httptest.NewServer(handler)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get stream: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("content-type = %q", got)
	}

	buf := make([]byte, 256)
	n, err := resp.Body.Read(buf)
	if err != nil {
		t.Fatalf("read ready frame: %v", err)
	}
	if !strings.Contains(string(buf[:n]), "event: ready") {
		t.Fatalf("expected ready frame, got %q", string(buf[:n]))
	}

	broker.HandleChange(alertapp.AlertChange{
		Type:  alertapp.ChangeCreated,
		Alert: alerts.VoltageAlert{ID: "a-1", IsActive: true},
	})

	n, err = resp.Body.Read(buf)
	if err != nil {
		t.Fatalf("read alert frame: %v", err)
	}
	frame := string(buf[:n])
	if !strings.Contains(frame, "event: alert") || !strings.Contains(frame, "a-1") {
		t.Fatalf("unexpected frame %q", frame)
	}
}
