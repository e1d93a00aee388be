package entity

import (
	"context"
	"errors"
	"testing"

	"github.com/DSorlov/smartthingsng/internal/broker"
)

func switchEntityForTest(t *testing.T, spy *commandSpy) (Entity, *broker.Device) {
	t.Helper()
	device := testDevice("dev-1", "Lamp", "switch")
	entities := SwitchPlatform{}.Entities(device, []string{"switch"}, spy)
	if len(entities) != 1 {
		t.Fatalf("len(entities) = %d, want 1", len(entities))
	}
	return entities[0], device
}

func TestSwitchState(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"on", "on", "ON"},
		{"off", "off", "OFF"},
		{"unset defaults to off", "", "OFF"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, device := switchEntityForTest(t, &commandSpy{})
			if tt.value != "" {
				setAttr(device, broker.CapabilitySwitch, broker.AttributeSwitch, tt.value)
			}

			state, ok := e.State()
			if !ok {
				t.Fatal("State() ok = false, want true")
			}
			if state != tt.want {
				t.Errorf("State() = %q, want %q", state, tt.want)
			}
		})
	}
}

func TestSwitchCommandOptimisticUpdate(t *testing.T) {
	spy := &commandSpy{}
	e, device := switchEntityForTest(t, spy)
	setAttr(device, broker.CapabilitySwitch, broker.AttributeSwitch, "off")

	if err := e.HandleCommand(context.Background(), []byte("ON")); err != nil {
		t.Fatalf("HandleCommand() error = %v", err)
	}

	sent := spy.sent()
	if len(sent) != 1 || sent[0].capability != "switch" || sent[0].command != "on" {
		t.Fatalf("sent = %+v, want switch/on", sent)
	}
	if got := device.StringAttribute(broker.CapabilitySwitch, broker.AttributeSwitch); got != "on" {
		t.Errorf("switch attribute = %q, want optimistic on", got)
	}
}

func TestSwitchCommandFailureSkipsUpdate(t *testing.T) {
	spy := &commandSpy{err: errors.New("boom")}
	e, device := switchEntityForTest(t, spy)
	setAttr(device, broker.CapabilitySwitch, broker.AttributeSwitch, "off")

	if err := e.HandleCommand(context.Background(), []byte("ON")); err == nil {
		t.Fatal("HandleCommand() error = nil, want failure")
	}
	if got := device.StringAttribute(broker.CapabilitySwitch, broker.AttributeSwitch); got != "off" {
		t.Errorf("switch attribute = %q, want unchanged off", got)
	}
}

func TestSwitchInvalidPayload(t *testing.T) {
	e, _ := switchEntityForTest(t, &commandSpy{})

	err := e.HandleCommand(context.Background(), []byte("TOGGLE"))
	if !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("HandleCommand() error = %v, want ErrInvalidPayload", err)
	}
}

func TestSwitchAcceptsLowercase(t *testing.T) {
	spy := &commandSpy{}
	e, _ := switchEntityForTest(t, spy)

	if err := e.HandleCommand(context.Background(), []byte("off")); err != nil {
		t.Fatalf("HandleCommand() error = %v", err)
	}
	if sent := spy.sent(); len(sent) != 1 || sent[0].command != "off" {
		t.Errorf("sent = %+v, want off", sent)
	}
}
