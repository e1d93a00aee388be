package entity

import (
	"context"
	"sync"

	smartthings "github.com/tj-smith47/smartthings-go"

	"github.com/DSorlov/smartthingsng/internal/broker"
)

// testDevice builds a device with the capabilities on its main component.
func testDevice(id, label string, capabilities ...string) *broker.Device {
	refs := make([]smartthings.CapabilityRef, 0, len(capabilities))
	for _, c := range capabilities {
		refs = append(refs, smartthings.CapabilityRef{ID: c})
	}
	return broker.NewDevice(smartthings.Device{
		DeviceID: id,
		Label:    label,
		Components: []smartthings.Component{
			{ID: broker.ComponentMain, Capabilities: refs},
		},
	})
}

// setAttr seeds a status attribute on the main component.
func setAttr(d *broker.Device, capability, attribute string, value any) {
	d.ApplyAttributeUpdate(broker.ComponentMain, capability, attribute, value)
}

type sentCommand struct {
	deviceID   string
	component  string
	capability string
	command    string
	arguments  []any
}

// commandSpy records sent commands and can fail on demand.
type commandSpy struct {
	mu       sync.Mutex
	commands []sentCommand
	err      error
}

func (s *commandSpy) SendCommand(_ context.Context, deviceID, componentID, capability, command string, arguments []any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.commands = append(s.commands, sentCommand{
		deviceID:   deviceID,
		component:  componentID,
		capability: capability,
		command:    command,
		arguments:  arguments,
	})
	return nil
}

func (s *commandSpy) sent() []sentCommand {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentCommand(nil), s.commands...)
}
