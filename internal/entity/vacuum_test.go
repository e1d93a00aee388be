package entity

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/DSorlov/smartthingsng/internal/broker"
)

func vacuumEntityForTest(t *testing.T, spy *commandSpy, assigned []string, deviceCapabilities ...string) (*vacuumEntity, *broker.Device) {
	t.Helper()
	device := testDevice("dev-1", "Roomba", deviceCapabilities...)
	entities := VacuumPlatform{}.Entities(device, assigned, spy)
	if len(entities) != 1 {
		t.Fatalf("len(entities) = %d, want 1", len(entities))
	}
	return entities[0].(*vacuumEntity), device
}

func TestVacuumStateMapping(t *testing.T) {
	tests := []struct {
		name     string
		movement string
		want     string
	}{
		{"homing is returning", "homing", "returning"},
		{"charging is docked", "charging", "docked"},
		{"cleaning", "cleaning", "cleaning"},
		{"paused", "paused", "paused"},
		{"unknown defaults to idle", "wandering", "idle"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, device := vacuumEntityForTest(t, &commandSpy{},
				[]string{"robotCleanerMovement"}, "robotCleanerMovement")
			setAttr(device, broker.CapabilityRobotCleanerMovement, "robotCleanerMovement", tt.movement)

			payload, ok := e.State()
			if !ok {
				t.Fatal("State() ok = false, want true")
			}
			var state vacuumState
			if err := json.Unmarshal([]byte(payload), &state); err != nil {
				t.Fatalf("unmarshal state: %v", err)
			}
			if state.State != tt.want {
				t.Errorf("state = %q, want %q", state.State, tt.want)
			}
		})
	}
}

func TestVacuumCleaningModeState(t *testing.T) {
	e, device := vacuumEntityForTest(t, &commandSpy{},
		[]string{"robotCleanerCleaningMode"}, "robotCleanerCleaningMode")
	setAttr(device, broker.CapabilityRobotCleanerCleaningMode, "robotCleanerCleaningMode", "auto")

	payload, _ := e.State()
	var state vacuumState
	if err := json.Unmarshal([]byte(payload), &state); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if state.State != "cleaning" {
		t.Errorf("state = %q, want cleaning", state.State)
	}
	if state.FanSpeed != "Auto" {
		t.Errorf("fan_speed = %q, want Auto", state.FanSpeed)
	}
}

func TestVacuumBatteryPassthrough(t *testing.T) {
	e, device := vacuumEntityForTest(t, &commandSpy{},
		[]string{"robotCleanerMovement"}, "robotCleanerMovement", "battery")
	setAttr(device, broker.CapabilityBattery, broker.AttributeBattery, float64(72))

	payload, _ := e.State()
	var state vacuumState
	if err := json.Unmarshal([]byte(payload), &state); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if state.BatteryLevel == nil || *state.BatteryLevel != 72 {
		t.Errorf("battery_level = %v, want 72", state.BatteryLevel)
	}
}

func TestVacuumTurboModeFanSpeed(t *testing.T) {
	e, device := vacuumEntityForTest(t, &commandSpy{},
		[]string{"robotCleanerCleaningMode"}, "robotCleanerCleaningMode", "robotCleanerTurboMode")
	setAttr(device, broker.CapabilityRobotCleanerTurboMode, "robotCleanerTurboMode", "on")
	setAttr(device, broker.CapabilityRobotCleanerCleaningMode, "robotCleanerCleaningMode", "auto")

	payload, _ := e.State()
	var state vacuumState
	if err := json.Unmarshal([]byte(payload), &state); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if state.FanSpeed != "Turbo" {
		t.Errorf("fan_speed = %q, want Turbo while turbo mode is on", state.FanSpeed)
	}
}

func TestVacuumControlPrefersCleaningMode(t *testing.T) {
	tests := []struct {
		command  string
		wantMode string
	}{
		{"start", "auto"},
		{"pause", "pause"},
		{"stop", "stop"},
		{"return_to_base", "homing"},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			spy := &commandSpy{}
			e, _ := vacuumEntityForTest(t, spy,
				[]string{"robotCleanerCleaningMode", "robotCleanerMovement"},
				"robotCleanerCleaningMode", "robotCleanerMovement")

			if err := e.HandleCommand(context.Background(), []byte(tt.command)); err != nil {
				t.Fatalf("HandleCommand(%q) error = %v", tt.command, err)
			}
			sent := spy.sent()
			if len(sent) != 1 {
				t.Fatalf("len(sent) = %d, want 1", len(sent))
			}
			if sent[0].capability != "robotCleanerCleaningMode" || sent[0].command != "setRobotCleanerCleaningMode" {
				t.Errorf("sent = %+v, want setRobotCleanerCleaningMode", sent[0])
			}
			if sent[0].arguments[0] != tt.wantMode {
				t.Errorf("arguments = %v, want [%s]", sent[0].arguments, tt.wantMode)
			}
		})
	}
}

func TestVacuumControlMovementFallback(t *testing.T) {
	tests := []struct {
		command      string
		wantMovement string
	}{
		{"start", "cleaning"},
		{"pause", "paused"},
		{"stop", "idle"},
		{"return_to_base", "homing"},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			spy := &commandSpy{}
			e, _ := vacuumEntityForTest(t, spy,
				[]string{"robotCleanerMovement"}, "robotCleanerMovement")

			if err := e.HandleCommand(context.Background(), []byte(tt.command)); err != nil {
				t.Fatalf("HandleCommand(%q) error = %v", tt.command, err)
			}
			sent := spy.sent()
			if len(sent) != 1 || sent[0].command != "setRobotCleanerMovement" {
				t.Fatalf("sent = %+v, want setRobotCleanerMovement", sent)
			}
			if sent[0].arguments[0] != tt.wantMovement {
				t.Errorf("arguments = %v, want [%s]", sent[0].arguments, tt.wantMovement)
			}
		})
	}
}

func TestVacuumSetFanSpeedTurboInterplay(t *testing.T) {
	spy := &commandSpy{}
	e, _ := vacuumEntityForTest(t, spy,
		[]string{"robotCleanerCleaningMode"}, "robotCleanerCleaningMode", "robotCleanerTurboMode")

	if err := e.HandleCommand(context.Background(), []byte("Turbo")); err != nil {
		t.Fatalf("HandleCommand(Turbo) error = %v", err)
	}

	sent := spy.sent()
	if len(sent) != 2 {
		t.Fatalf("len(sent) = %d, want turbo + mode commands", len(sent))
	}
	if sent[0].capability != "robotCleanerTurboMode" || sent[0].arguments[0] != "on" {
		t.Errorf("sent[0] = %+v, want turbo on", sent[0])
	}
	if sent[1].capability != "robotCleanerCleaningMode" || sent[1].arguments[0] != "turbo" {
		t.Errorf("sent[1] = %+v, want cleaning mode turbo", sent[1])
	}
}

func TestVacuumSetFanSpeedTurnsTurboOff(t *testing.T) {
	spy := &commandSpy{}
	e, _ := vacuumEntityForTest(t, spy,
		[]string{"robotCleanerCleaningMode"}, "robotCleanerCleaningMode", "robotCleanerTurboMode")

	if err := e.HandleCommand(context.Background(), []byte("Quiet")); err != nil {
		t.Fatalf("HandleCommand(Quiet) error = %v", err)
	}

	sent := spy.sent()
	if len(sent) != 2 {
		t.Fatalf("len(sent) = %d, want 2", len(sent))
	}
	if sent[0].arguments[0] != "off" {
		t.Errorf("sent[0] = %+v, want turbo off", sent[0])
	}
	if sent[1].arguments[0] != "quiet" {
		t.Errorf("sent[1] = %+v, want cleaning mode quiet", sent[1])
	}
}

func TestVacuumFanSpeedList(t *testing.T) {
	e, _ := vacuumEntityForTest(t, &commandSpy{},
		[]string{"robotCleanerCleaningMode"}, "robotCleanerCleaningMode", "robotCleanerTurboMode")

	speeds := e.fanSpeedList()
	want := []string{"Quiet", "Standard", "Turbo", "Auto", "Spot Clean", "Edge Clean"}
	if len(speeds) != len(want) {
		t.Fatalf("fanSpeedList() = %v, want %v", speeds, want)
	}
	for i := range want {
		if speeds[i] != want[i] {
			t.Errorf("fanSpeedList()[%d] = %q, want %q", i, speeds[i], want[i])
		}
	}
}

func TestVacuumNoAssignmentNoEntity(t *testing.T) {
	device := testDevice("dev-1", "Roomba", "robotCleanerMovement")
	if entities := (VacuumPlatform{}).Entities(device, nil, &commandSpy{}); entities != nil {
		t.Errorf("Entities() = %v, want nil", entities)
	}
}
