package application

import (
	"context"
	"testing"
	"time"

	alerts "solarwatch/internal/alerts/domain"
	"solarwatch/internal/alerts/infrastructure/memory"
)

func collectChanges(t *testing.T, ch <-chan AlertChange, want int) []AlertChange {
	t.Helper()
	out := make([]AlertChange, 0, want)
	timeout := time.After(2 * time.Second)
	for len(out) < want {
		select {
		case change := <-ch:
			out = append(out, change)
		case <-timeout:
			t.Fatalf("timed out waiting for changes, got %d of %d", len(out), want)
		}
	}
	return out
}

func TestWatchedStoreDeliversCommittedChanges(t *testing.T) {
	store, err := NewWatchedStore(memory.NewAlertRepository(), nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	received := make(chan AlertChange, 8)
	sub := store.Subscribe(func(change AlertChange) {
		received <- change
	})
	defer sub.Unsubscribe()

	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	alert := &alerts.VoltageAlert{ID: "a-1", StartedAt: base, MinVoltage: 48, IsActive: true}

	if err := store.Create(ctx, alert); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.UpdateMinVoltage(ctx, "a-1", 44, base.Add(time.Second)); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := store.Close(ctx, "a-1", base.Add(2*time.Second), 2, 46); err != nil {
		t.Fatalf("close: %v", err)
	}

	changes := collectChanges(t, received, 3)
	if changes[0].Type != ChangeCreated {
		t.Errorf("first change = %s, want created", changes[0].Type)
	}
	if changes[1].Type != ChangeUpdated {
		t.Errorf("second change = %s, want updated", changes[1].Type)
	}
	// Pushed rows are the committed state, not the caller's arguments.
	if changes[1].Alert.MinVoltage != 44 {
		t.Errorf("updated row min = %v, want 44", changes[1].Alert.MinVoltage)
	}
	if changes[2].Type != ChangeClosed {
		t.Errorf("third change = %s, want closed", changes[2].Type)
	}
	if changes[2].Alert.IsActive {
		t.Error("closed row must not be active")
	}
}

func TestWatchedStoreUnsubscribeStopsDelivery(t *testing.T) {
	store, err := NewWatchedStore(memory.NewAlertRepository(), nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	received := make(chan AlertChange, 8)
	sub := store.Subscribe(func(change AlertChange) {
		received <- change
	})
	sub.Unsubscribe()
	sub.Unsubscribe() // idempotent

	ctx := context.Background()
	alert := &alerts.VoltageAlert{ID: "a-1", StartedAt: time.Now().UTC(), MinVoltage: 48, IsActive: true}
	if err := store.Create(ctx, alert); err != nil {
		t.Fatalf("create: %v", err)
	}

	select {
	case change := <-received:
		t.Fatalf("unexpected delivery after unsubscribe: %v", change)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatchedStoreNoChangeOnFailedWrite(t *testing.T) {
	repo := &flakyRepo{AlertRepository: memory.NewAlertRepository(), failCreate: true}
	store, err := NewWatchedStore(repo, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	received := make(chan AlertChange, 8)
	sub := store.Subscribe(func(change AlertChange) {
		received <- change
	})
	defer sub.Unsubscribe()

	alert := &alerts.VoltageAlert{ID: "a-1", StartedAt: time.Now().UTC(), MinVoltage: 48, IsActive: true}
	if err := store.Create(context.Background(), alert); err == nil {
		t.Fatal("expected create failure")
	}

	select {
	case change := <-received:
		t.Fatalf("failed write must not broadcast, got %v", change)
	case <-time.After(100 * time.Millisecond):
	}
}
