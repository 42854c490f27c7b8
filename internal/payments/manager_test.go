package payments

import (
	"context"
	"errors"
	"testing"
)

type fakeProvider struct {
	name     string
	sessions int
	charges  int
	lookups  int
}

func (f *fakeProvider) CreateCheckoutSession(context.Context, CheckoutSessionRequest) (CheckoutSession, error) {
	f.sessions++
	return CheckoutSession{ID: "cs_" + f.name}, nil
}

func (f *fakeProvider) Charge(context.Context, ChargeRequest) (PaymentDetails, error) {
	f.charges++
	return PaymentDetails{PaymentID: "pi_" + f.name}, nil
}

func (f *fakeProvider) LookupPayment(context.Context, LookupRequest) (PaymentDetails, error) {
	f.lookups++
	return PaymentDetails{PaymentID: "pi_" + f.name}, nil
}

func TestNewManagerRequiresProviders(t *testing.T) {
	if _, err := NewManager(nil); err == nil {
		t.Fatal("expected error for empty provider map")
	}
	if _, err := NewManager(map[string]Provider{" ": &fakeProvider{}}); err == nil {
		t.Fatal("expected error for blank provider key")
	}
}

func TestManagerDefaultsToStripe(t *testing.T) {
	stripeP := &fakeProvider{name: "stripe"}
	other := &fakeProvider{name: "other"}
	manager, err := NewManager(map[string]Provider{"stripe": stripeP, "other": other})
	if err != nil {
		t.Fatalf("NewManager returned error: %v", err)
	}

	session, err := manager.CreateCheckoutSession(context.Background(), PaymentContext{}, CheckoutSessionRequest{})
	if err != nil {
		t.Fatalf("CreateCheckoutSession returned error: %v", err)
	}
	if session.Provider != "stripe" {
		t.Fatalf("expected stripe resolved, got %q", session.Provider)
	}
	if stripeP.sessions != 1 || other.sessions != 0 {
		t.Fatalf("expected stripe called once, got stripe=%d other=%d", stripeP.sessions, other.sessions)
	}
}

func TestManagerHonoursPreferredProvider(t *testing.T) {
	stripeP := &fakeProvider{name: "stripe"}
	other := &fakeProvider{name: "other"}
	manager, err := NewManager(map[string]Provider{"stripe": stripeP, "other": other})
	if err != nil {
		t.Fatalf("NewManager returned error: %v", err)
	}

	details, err := manager.Charge(context.Background(), PaymentContext{PreferredProvider: "Other"}, ChargeRequest{})
	if err != nil {
		t.Fatalf("Charge returned error: %v", err)
	}
	if details.Provider != "other" {
		t.Fatalf("expected other resolved, got %q", details.Provider)
	}
	if other.charges != 1 {
		t.Fatalf("expected other charged once, got %d", other.charges)
	}
}

func TestManagerSingleProviderFallback(t *testing.T) {
	only := &fakeProvider{name: "solo"}
	manager, err := NewManager(map[string]Provider{"solo": only})
	if err != nil {
		t.Fatalf("NewManager returned error: %v", err)
	}

	details, err := manager.LookupPayment(context.Background(), PaymentContext{}, LookupRequest{})
	if err != nil {
		t.Fatalf("LookupPayment returned error: %v", err)
	}
	if details.Provider != "solo" {
		t.Fatalf("expected solo resolved, got %q", details.Provider)
	}
}

func TestManagerUnknownPreferenceWithoutDefault(t *testing.T) {
	manager, err := NewManager(map[string]Provider{
		"alpha": &fakeProvider{name: "alpha"},
		"beta":  &fakeProvider{name: "beta"},
	})
	if err != nil {
		t.Fatalf("NewManager returned error: %v", err)
	}

	_, err = manager.Charge(context.Background(), PaymentContext{PreferredProvider: "gamma"}, ChargeRequest{})
	if !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("expected ErrUnsupportedProvider, got %v", err)
	}
}
