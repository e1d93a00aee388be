package entity

import (
	"context"
	"errors"
	"testing"

	"github.com/DSorlov/smartthingsng/internal/broker"
)

func TestSupportedAttribute(t *testing.T) {
	tests := []struct {
		attribute string
		want      string
	}{
		{"washerMode", "supportedWasherModes"},
		{"airConditionerMode", "supportedAirConditionerModes"},
		{"inputSource", "supportedInputSources"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := supportedAttribute(tt.attribute); got != tt.want {
			t.Errorf("supportedAttribute(%q) = %q, want %q", tt.attribute, got, tt.want)
		}
	}
}

func TestSelectOptionsFromSupported(t *testing.T) {
	device := testDevice("dev-1", "Washer", "washerMode")
	setAttr(device, broker.CapabilityWasherMode, "washerMode", "normal")
	setAttr(device, broker.CapabilityWasherMode, "supportedWasherModes", []any{"normal", "heavy", "delicate"})

	entities := SelectPlatform{}.Entities(device, []string{"washerMode"}, &commandSpy{})
	e := entities[0].(*selectEntity)

	options := e.Options()
	want := []string{"normal", "heavy", "delicate"}
	if len(options) != len(want) {
		t.Fatalf("Options() = %v, want %v", options, want)
	}
	for i := range want {
		if options[i] != want[i] {
			t.Errorf("Options()[%d] = %q, want %q", i, options[i], want[i])
		}
	}
}

func TestSelectOptionsFallbackToCurrent(t *testing.T) {
	device := testDevice("dev-1", "Washer", "washerMode")
	setAttr(device, broker.CapabilityWasherMode, "washerMode", "normal")

	entities := SelectPlatform{}.Entities(device, []string{"washerMode"}, &commandSpy{})
	e := entities[0].(*selectEntity)

	options := e.Options()
	if len(options) != 1 || options[0] != "normal" {
		t.Errorf("Options() = %v, want [normal]", options)
	}
}

func TestSelectCommandOptimisticUpdate(t *testing.T) {
	device := testDevice("dev-1", "Washer", "washerMode")
	setAttr(device, broker.CapabilityWasherMode, "washerMode", "normal")
	setAttr(device, broker.CapabilityWasherMode, "supportedWasherModes", []any{"normal", "heavy"})
	spy := &commandSpy{}

	entities := SelectPlatform{}.Entities(device, []string{"washerMode"}, spy)
	if err := entities[0].HandleCommand(context.Background(), []byte("heavy")); err != nil {
		t.Fatalf("HandleCommand() error = %v", err)
	}

	sent := spy.sent()
	if len(sent) != 1 || sent[0].command != "setMachineState" || sent[0].arguments[0] != "heavy" {
		t.Fatalf("sent = %+v, want setMachineState [heavy]", sent)
	}
	if got := device.StringAttribute(broker.CapabilityWasherMode, "washerMode"); got != "heavy" {
		t.Errorf("washerMode = %q, want optimistic heavy", got)
	}
}

func TestSelectRejectsUnknownOption(t *testing.T) {
	device := testDevice("dev-1", "Washer", "washerMode")
	setAttr(device, broker.CapabilityWasherMode, "supportedWasherModes", []any{"normal", "heavy"})
	spy := &commandSpy{}

	entities := SelectPlatform{}.Entities(device, []string{"washerMode"}, spy)
	err := entities[0].HandleCommand(context.Background(), []byte("boil"))
	if !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("HandleCommand() error = %v, want ErrInvalidPayload", err)
	}
	if len(spy.sent()) != 0 {
		t.Errorf("sent = %v, want no commands", spy.sent())
	}
}

func TestSelectInputSourceUsesOwnCommand(t *testing.T) {
	device := testDevice("dev-1", "Receiver", "mediaInputSource")
	setAttr(device, broker.CapabilityMediaInputSource, "inputSource", "HDMI1")
	spy := &commandSpy{}

	entities := SelectPlatform{}.Entities(device, []string{"mediaInputSource"}, spy)
	if err := entities[0].HandleCommand(context.Background(), []byte("HDMI1")); err != nil {
		t.Fatalf("HandleCommand() error = %v", err)
	}

	sent := spy.sent()
	if len(sent) != 1 || sent[0].command != "setInputSource" {
		t.Errorf("sent = %+v, want setInputSource", sent)
	}
}
