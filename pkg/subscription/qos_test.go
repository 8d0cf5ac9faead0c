package subscription

import "testing"

func TestClassify_OnChange(t *testing.T) {
	c := Classify(OnChangeSubscriptionQos{MinIntervalMs: 100})
	if !c.IsOnChange {
		t.Fatalf("expected IsOnChange=true")
	}
	if c.MinIntervalMs != 100 {
		t.Fatalf("MinIntervalMs = %d, want 100", c.MinIntervalMs)
	}
	if c.PeriodicPublicationIntervalMs != NoInterval || c.AlertAfterIntervalMs != NoInterval {
		t.Fatalf("expected no periodic/alert interval, got %+v", c)
	}
}

func TestClassify_OnChangeWithKeepAlive(t *testing.T) {
	c := Classify(OnChangeWithKeepAliveSubscriptionQos{
		MinIntervalMs:        100,
		MaxIntervalMs:        1000,
		AlertAfterIntervalMs: 2000,
	})
	if !c.IsOnChange {
		t.Fatalf("expected IsOnChange=true")
	}
	if c.MinIntervalMs != 100 {
		t.Fatalf("MinIntervalMs = %d, want 100", c.MinIntervalMs)
	}
	if c.PeriodicPublicationIntervalMs != 1000 {
		t.Fatalf("PeriodicPublicationIntervalMs = %d, want 1000 (maxInterval, not -1)", c.PeriodicPublicationIntervalMs)
	}
	if c.AlertAfterIntervalMs != 2000 {
		t.Fatalf("AlertAfterIntervalMs = %d, want 2000", c.AlertAfterIntervalMs)
	}
}

func TestClassify_Periodic(t *testing.T) {
	c := Classify(PeriodicSubscriptionQos{PeriodMs: 500, AlertAfterIntervalMs: 1500})
	if c.IsOnChange {
		t.Fatalf("expected IsOnChange=false")
	}
	if c.MinIntervalMs != NoInterval {
		t.Fatalf("MinIntervalMs = %d, want -1", c.MinIntervalMs)
	}
	if c.PeriodicPublicationIntervalMs != 500 {
		t.Fatalf("PeriodicPublicationIntervalMs = %d, want 500", c.PeriodicPublicationIntervalMs)
	}
	if c.AlertAfterIntervalMs != 1500 {
		t.Fatalf("AlertAfterIntervalMs = %d, want 1500", c.AlertAfterIntervalMs)
	}
}

func TestClassify_UnknownVariantPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for unknown SubscriptionQos variant")
		}
	}()
	Classify(unknownQos{})
}

type unknownQos struct{}

func (unknownQos) isSubscriptionQos() {}

func TestIsOnChangeSubscription(t *testing.T) {
	if !IsOnChangeSubscription(OnChangeSubscriptionQos{}) {
		t.Fatalf("OnChange should be on-change")
	}
	if !IsOnChangeSubscription(OnChangeWithKeepAliveSubscriptionQos{}) {
		t.Fatalf("OnChangeWithKeepAlive should be on-change")
	}
	if IsOnChangeSubscription(PeriodicSubscriptionQos{}) {
		t.Fatalf("Periodic should not be on-change")
	}
}
