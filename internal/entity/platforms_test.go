package entity

import "testing"

func TestPlatformOrder(t *testing.T) {
	want := []string{"button", "media_player", "number", "select", "switch", "vacuum"}

	platforms := Platforms()
	if len(platforms) != len(want) {
		t.Fatalf("len(Platforms()) = %d, want %d", len(platforms), len(want))
	}
	for i, name := range want {
		if platforms[i].Name() != name {
			t.Errorf("Platforms()[%d].Name() = %q, want %q", i, platforms[i].Name(), name)
		}
	}
}

func TestBrokerPlatformsPreservesOrder(t *testing.T) {
	adapted := BrokerPlatforms(Platforms())
	if len(adapted) != 6 {
		t.Fatalf("len = %d, want 6", len(adapted))
	}
	if adapted[0].Name() != "button" || adapted[5].Name() != "vacuum" {
		t.Errorf("order not preserved: %q ... %q", adapted[0].Name(), adapted[5].Name())
	}
}
