package entity

import (
	"github.com/DSorlov/smartthingsng/internal/infrastructure/mqtt"
)

// discoveryPayload assembles the Home Assistant discovery config for an
// entity: base topics, the device block and the platform's extras.
func discoveryPayload(e Entity, topics mqtt.Topics) map[string]any {
	device := e.Device()
	config := map[string]any{
		"name":                  e.Name(),
		"unique_id":             e.UniqueID(),
		"command_topic":         topics.Command(device.ID(), e.EntityID()),
		"availability_topic":    topics.Availability(),
		"json_attributes_topic": attributesTopic(topics, e),
		"device":                deviceBlock(e),
	}
	if _, ok := e.State(); ok {
		config["state_topic"] = topics.State(device.ID(), e.EntityID())
	}
	for key, value := range e.DiscoveryExtras() {
		config[key] = value
	}
	return config
}

// attributesTopic is the retained attribute payload topic, alongside the
// state topic.
func attributesTopic(topics mqtt.Topics, e Entity) string {
	return topics.State(e.Device().ID(), e.EntityID()) + "/attributes"
}

// deviceBlock groups the entity under its device in the Home Assistant
// registry.
func deviceBlock(e Entity) map[string]any {
	device := e.Device()
	info := device.Info()

	block := map[string]any{
		"identifiers": []string{device.ID()},
		"name":        device.Label(),
	}
	if info.OCF != nil {
		if info.OCF.ManufacturerName != "" {
			block["manufacturer"] = info.OCF.ManufacturerName
		}
		if info.OCF.ModelNumber != "" {
			block["model"] = info.OCF.ModelNumber
		}
		if info.OCF.FirmwareVersion != "" {
			block["sw_version"] = info.OCF.FirmwareVersion
		}
		if info.OCF.HwVersion != "" {
			block["hw_version"] = info.OCF.HwVersion
		}
	}
	return block
}
