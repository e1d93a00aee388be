package entity

import (
	"context"
	"errors"
	"testing"

	"github.com/DSorlov/smartthingsng/internal/broker"
)

func TestNumberState(t *testing.T) {
	device := testDevice("dev-1", "Soundbar", "audioVolume")
	setAttr(device, broker.CapabilityAudioVolume, broker.AttributeVolume, float64(42))

	entities := NumberPlatform{}.Entities(device, []string{"audioVolume"}, &commandSpy{})
	if len(entities) != 1 {
		t.Fatalf("len(entities) = %d, want 1", len(entities))
	}

	state, ok := entities[0].State()
	if !ok {
		t.Fatal("State() ok = false, want true")
	}
	if state != "42" {
		t.Errorf("State() = %q, want 42", state)
	}
}

func TestNumberSetValue(t *testing.T) {
	device := testDevice("dev-1", "Soundbar", "audioVolume")
	spy := &commandSpy{}

	entities := NumberPlatform{}.Entities(device, []string{"audioVolume"}, spy)
	if err := entities[0].HandleCommand(context.Background(), []byte("35")); err != nil {
		t.Fatalf("HandleCommand() error = %v", err)
	}

	sent := spy.sent()
	if len(sent) != 1 {
		t.Fatalf("len(sent) = %d, want 1", len(sent))
	}
	if sent[0].capability != "audioVolume" || sent[0].command != "setVolume" {
		t.Errorf("sent = %+v, want audioVolume/setVolume", sent[0])
	}
	if len(sent[0].arguments) != 1 || sent[0].arguments[0] != 35 {
		t.Errorf("arguments = %v, want [35] as int", sent[0].arguments)
	}

	// Optimistic update.
	if value, _ := device.FloatAttribute(broker.CapabilityAudioVolume, broker.AttributeVolume); value != 35 {
		t.Errorf("volume attribute = %v, want 35", value)
	}
}

func TestNumberOutOfRange(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"above max", "101"},
		{"below min", "-1"},
		{"not a number", "loud"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			device := testDevice("dev-1", "Soundbar", "audioVolume")
			spy := &commandSpy{}
			entities := NumberPlatform{}.Entities(device, []string{"audioVolume"}, spy)

			err := entities[0].HandleCommand(context.Background(), []byte(tt.payload))
			if !errors.Is(err, ErrInvalidPayload) {
				t.Errorf("HandleCommand(%q) error = %v, want ErrInvalidPayload", tt.payload, err)
			}
			if len(spy.sent()) != 0 {
				t.Errorf("sent = %v, want no commands", spy.sent())
			}
		})
	}
}

func TestNumberDiscoveryExtras(t *testing.T) {
	device := testDevice("dev-1", "Oven", "ovenSetpoint")
	entities := NumberPlatform{}.Entities(device, []string{"ovenSetpoint"}, &commandSpy{})

	extras := entities[0].DiscoveryExtras()
	if extras["min"] != float64(0) || extras["max"] != float64(300) || extras["step"] != float64(5) {
		t.Errorf("extras = %v, want min 0 max 300 step 5", extras)
	}
	if extras["unit_of_measurement"] != "°C" {
		t.Errorf("unit = %v, want °C", extras["unit_of_measurement"])
	}
}

func TestNumberNegativeSetpoint(t *testing.T) {
	device := testDevice("dev-1", "Fridge", "refrigerationSetpoint")
	spy := &commandSpy{}
	entities := NumberPlatform{}.Entities(device, []string{"refrigerationSetpoint"}, spy)

	if err := entities[0].HandleCommand(context.Background(), []byte("-5")); err != nil {
		t.Fatalf("HandleCommand() error = %v", err)
	}
	sent := spy.sent()
	if len(sent) != 1 || sent[0].arguments[0] != -5 {
		t.Errorf("arguments = %v, want [-5]", sent)
	}
}
