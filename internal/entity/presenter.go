package entity

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/DSorlov/smartthingsng/internal/broker"
	"github.com/DSorlov/smartthingsng/internal/infrastructure/mqtt"
)

// Publisher is the MQTT client subset the presenter needs. Satisfied by
// *mqtt.Client.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	PublishString(topic string, payload string, qos byte, retained bool) error
	PublishRetained(topic string, payload []byte) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	Topics() mqtt.Topics
}

// Broker is the device broker subset the presenter needs. Satisfied by
// *broker.DeviceBroker.
type Broker interface {
	Commander
	Devices() []*broker.Device
	GetAssigned(deviceID, platform string) []string
	Dispatcher() *broker.Dispatcher
}

// Presenter publishes entities over MQTT: retained discovery configs,
// state and attribute payloads, and command handling on the shared
// command topic pattern.
type Presenter struct {
	client    Publisher
	broker    Broker
	platforms []Platform
	logger    Logger
	qos       byte

	mu       sync.Mutex
	entities map[string][]Entity // keyed by device ID
	index    map[string]Entity   // keyed by deviceID + "/" + entityID
	started  bool

	unsubUpdates func()
	unsubButtons func()
}

// NewPresenter creates a presenter for the broker's devices.
//
// Parameters:
//   - client: connected MQTT client
//   - b: device broker with assigned capabilities
//   - platforms: entity platforms in declaration order
//   - logger: may be nil
func NewPresenter(client Publisher, b Broker, platforms []Platform, logger Logger) *Presenter {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Presenter{
		client:    client,
		broker:    b,
		platforms: platforms,
		logger:    logger,
		qos:       1,
		entities:  make(map[string][]Entity),
		index:     make(map[string]Entity),
	}
}

// Start builds the entities from the broker's capability assignments,
// publishes their discovery configs and initial states, and subscribes
// to the command topics and broker signals. Start is idempotent.
func (p *Presenter) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return nil
	}
	p.buildEntities()
	p.started = true
	p.mu.Unlock()

	for _, device := range p.broker.Devices() {
		for _, e := range p.entities[device.ID()] {
			if err := p.publishDiscovery(e); err != nil {
				return fmt.Errorf("publishing discovery for %s: %w", e.UniqueID(), err)
			}
			p.publishState(e)
		}
	}

	topics := p.client.Topics()
	if err := p.client.Subscribe(topics.AllCommands(), p.qos, p.handleCommand); err != nil {
		return fmt.Errorf("subscribing to command topics: %w", err)
	}

	dispatcher := p.broker.Dispatcher()
	p.unsubUpdates = dispatcher.SubscribeUpdates(p.onUpdate)
	p.unsubButtons = dispatcher.SubscribeButtons(p.onButton)

	p.logger.Info("mqtt presenter started", "entities", len(p.index))
	return nil
}

// Stop unsubscribes from command topics and broker signals. Stop is
// idempotent.
func (p *Presenter) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}
	p.started = false

	if err := p.client.Unsubscribe(p.client.Topics().AllCommands()); err != nil {
		p.logger.Warn("unsubscribing command topics", "error", err)
	}
	if p.unsubUpdates != nil {
		p.unsubUpdates()
	}
	if p.unsubButtons != nil {
		p.unsubButtons()
	}
}

// EntityCount returns the number of presented entities.
func (p *Presenter) EntityCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.index)
}

// Entities returns the entities of one device.
func (p *Presenter) Entities(deviceID string) []Entity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.entities[deviceID]
}

// buildEntities constructs entities from the broker's assignments, in
// platform declaration order. Caller holds the lock.
func (p *Presenter) buildEntities() {
	for _, device := range p.broker.Devices() {
		var deviceEntities []Entity
		for _, platform := range p.platforms {
			assigned := p.broker.GetAssigned(device.ID(), platform.Name())
			if len(assigned) == 0 {
				continue
			}
			deviceEntities = append(deviceEntities, platform.Entities(device, assigned, p.broker)...)
		}
		if len(deviceEntities) == 0 {
			continue
		}
		p.entities[device.ID()] = deviceEntities
		for _, e := range deviceEntities {
			p.index[device.ID()+"/"+e.EntityID()] = e
		}
	}
}

func (p *Presenter) publishDiscovery(e Entity) error {
	topics := p.client.Topics()
	payload, err := json.Marshal(discoveryPayload(e, topics))
	if err != nil {
		return err
	}
	return p.client.PublishRetained(topics.Discovery(e.Component(), e.UniqueID()), payload)
}

// publishState publishes the state and attribute payloads. Publish
// failures are logged, not propagated; the next update retries.
func (p *Presenter) publishState(e Entity) {
	topics := p.client.Topics()

	if state, ok := e.State(); ok {
		topic := topics.State(e.Device().ID(), e.EntityID())
		if err := p.client.PublishString(topic, state, p.qos, true); err != nil {
			p.logger.Warn("publishing state", "entity", e.UniqueID(), "error", err)
		}
	}

	attrs, err := json.Marshal(e.Attributes())
	if err != nil {
		p.logger.Warn("marshaling attributes", "entity", e.UniqueID(), "error", err)
		return
	}
	if err := p.client.PublishRetained(attributesTopic(topics, e), attrs); err != nil {
		p.logger.Warn("publishing attributes", "entity", e.UniqueID(), "error", err)
	}
}

// handleCommand routes an inbound command payload to its entity and
// republishes the entity's state on success.
func (p *Presenter) handleCommand(topic string, payload []byte) error {
	deviceID, entityID, ok := p.client.Topics().ParseCommand(topic)
	if !ok {
		return fmt.Errorf("%w: topic %q", ErrUnknownEntity, topic)
	}

	p.mu.Lock()
	e, found := p.index[deviceID+"/"+entityID]
	p.mu.Unlock()
	if !found {
		return fmt.Errorf("%w: %s/%s", ErrUnknownEntity, deviceID, entityID)
	}

	if err := e.HandleCommand(context.Background(), payload); err != nil {
		p.logger.Warn("command failed", "entity", e.UniqueID(), "error", err)
		return err
	}
	p.publishState(e)
	return nil
}

// onUpdate republishes the entities of the devices touched by an event
// batch.
func (p *Presenter) onUpdate(touched map[string]struct{}) {
	for deviceID := range touched {
		p.mu.Lock()
		deviceEntities := p.entities[deviceID]
		p.mu.Unlock()
		for _, e := range deviceEntities {
			p.publishState(e)
		}
	}
}

// onButton publishes a button press event to the device's event topic.
func (p *Presenter) onButton(event broker.ButtonEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("marshaling button event", "device", event.DeviceID, "error", err)
		return
	}
	topic := p.client.Topics().ButtonEvent(event.DeviceID)
	if err := p.client.Publish(topic, payload, p.qos, false); err != nil {
		p.logger.Warn("publishing button event", "device", event.DeviceID, "error", err)
	}
}
