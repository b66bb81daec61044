package modules

import (
	"encoding/json"
	"fmt"
	"path"
	"strconv"

	"github.com/gaetancollaud/vantage-mqtt/pkg/bridge"
	"github.com/gaetancollaud/vantage-mqtt/pkg/config"
	"github.com/gaetancollaud/vantage-mqtt/pkg/homeassistant"
	"github.com/gaetancollaud/vantage-mqtt/pkg/mqtt"
	"github.com/gaetancollaud/vantage-mqtt/pkg/vantage"
	"github.com/rs/zerolog/log"
)

const (
	keypads string = "keypad"
	button  string = "button"
	tasks   string = "task"

	payloadPress   string = "press"
	payloadRelease string = "release"
	payloadRunning string = "running"
	payloadStopped string = "stopped"
)

// Keypad Module publishes button and task activity seen on the bus. Keypads
// are read-only from the MQTT side: buttons cannot be pressed remotely, so
// there are no command subscriptions here. Entities outside the configured
// inventory are announced to Home Assistant the first time they show up.
type KeypadModule struct {
	mqttClient mqtt.Client
	bridge     *bridge.Bridge
	hass       config.ConfigHomeAssistant
}

func (c *KeypadModule) Start() error {
	c.bridge.OnButtonEvent(func(event bridge.ButtonEvent) {
		if err := c.publishButtonEvent(event); err != nil {
			log.Error().Err(err).Int("vid", event.Button.Vid).Msg("Error publishing button event.")
		}
	})
	c.bridge.OnTaskEvent(func(event bridge.TaskEvent) {
		if err := c.publishTaskEvent(event); err != nil {
			log.Error().Err(err).Int("taskId", event.TaskId).Msg("Error publishing task event.")
		}
	})
	c.bridge.OnDiscovery(func(entity bridge.EntityRef) {
		if err := c.announceEntity(entity); err != nil {
			log.Error().Err(err).Str("entity", entity.TopicId()).Msg("Error announcing discovered entity.")
		}
	})
	return nil
}

func (c *KeypadModule) Stop() error {
	return nil
}

func (c *KeypadModule) publishButtonEvent(event bridge.ButtonEvent) error {
	payload := payloadRelease
	if event.Action == vantage.ActionPress {
		payload = payloadPress
	}
	return c.mqttClient.Publish(buttonActionTopic(event.Button.KeypadId, event.Button.Position), payload)
}

func (c *KeypadModule) publishTaskEvent(event bridge.TaskEvent) error {
	payload := payloadStopped
	if event.Running {
		payload = payloadRunning
	}
	return c.mqttClient.Publish(taskStateTopic(event.TaskId), payload)
}

func buttonActionTopic(keypadId int, position int) string {
	return path.Join(keypads, strconv.Itoa(keypadId), button, strconv.Itoa(position), mqtt.Action)
}

func taskStateTopic(taskId int) string {
	return path.Join(tasks, strconv.Itoa(taskId), mqtt.State)
}

// announceEntity publishes the Home Assistant trigger config for an entity
// the first time it is observed on the bus. The bridge deduplicates, so this
// fires once per entity per process lifetime.
func (c *KeypadModule) announceEntity(entity bridge.EntityRef) error {
	if !c.hass.DiscoveryEnabled {
		return nil
	}
	if entity.Kind != bridge.EntityButton {
		return nil
	}

	deviceName := entity.Name
	if deviceName == "" {
		deviceName = fmt.Sprintf("Keypad %d", entity.Id)
	}
	deviceId := mqtt.NormalizeForTopicName(fmt.Sprintf("vantage-keypad-%d-%s", entity.Id, deviceName))
	for _, trigger := range []struct {
		kind    string
		payload string
	}{
		{"button_short_press", payloadPress},
		{"button_short_release", payloadRelease},
	} {
		triggerConfig := &homeassistant.DeviceTriggerConfig{
			BaseConfig: homeassistant.BaseConfig{
				Device: homeassistant.Device{
					Identifiers:      []string{deviceId},
					Manufacturer:     "Vantage",
					Name:             deviceName,
					SuggestedArea:    entity.Area,
					ConfigurationUrl: "http://" + c.hass.VantageHost,
				},
			},
			AutomationType: "trigger",
			Type:           trigger.kind,
			Subtype:        fmt.Sprintf("button_%d", entity.Position),
			Payload:        trigger.payload,
			Topic:          c.mqttClient.GetFullTopic(buttonActionTopic(entity.Id, entity.Position)),
		}
		objectId := fmt.Sprintf("button_%d_%s", entity.Position, trigger.payload)
		if err := c.publishTriggerConfig(deviceId, objectId, triggerConfig); err != nil {
			return err
		}
	}
	return nil
}

func (c *KeypadModule) publishTriggerConfig(deviceId string, objectId string, triggerConfig *homeassistant.DeviceTriggerConfig) error {
	topic := path.Join(
		c.hass.DiscoveryTopicPrefix,
		string(homeassistant.DeviceAutomation),
		deviceId,
		objectId,
		"config")
	payload, err := json.Marshal(triggerConfig)
	if err != nil {
		return fmt.Errorf("error serializing trigger config to JSON: %w", err)
	}
	t := c.mqttClient.RawClient().Publish(topic, 0, true, payload)
	<-t.Done()
	if t.Error() != nil {
		return fmt.Errorf("error publishing trigger config to MQTT: %w", t.Error())
	}
	return nil
}

// GetHomeAssistantEntities announces the triggers of the configured keypads
// at startup, without waiting for someone to press them.
func (c *KeypadModule) GetHomeAssistantEntities() ([]homeassistant.DiscoveryConfig, error) {
	configs := []homeassistant.DiscoveryConfig{}

	for _, keypad := range c.bridge.Registry().Keypads() {
		deviceId := mqtt.NormalizeForTopicName(fmt.Sprintf("vantage-keypad-%d-%s", keypad.Id, keypad.Name))
		for _, keypadButton := range keypad.Buttons {
			entityConfig := &homeassistant.DeviceTriggerConfig{
				BaseConfig: homeassistant.BaseConfig{
					Device: homeassistant.Device{
						Identifiers:   []string{deviceId},
						Name:          keypad.Name,
						SuggestedArea: keypad.Area,
					},
				},
				AutomationType: "trigger",
				Type:           "button_short_press",
				Subtype:        fmt.Sprintf("button_%d", keypadButton.Position),
				Payload:        payloadPress,
				Topic:          c.mqttClient.GetFullTopic(buttonActionTopic(keypad.Id, keypadButton.Position)),
			}
			configs = append(configs, homeassistant.DiscoveryConfig{
				Domain:   homeassistant.DeviceAutomation,
				DeviceId: deviceId,
				ObjectId: fmt.Sprintf("button_%d_%s", keypadButton.Position, payloadPress),
				Config:   entityConfig,
			})
		}
	}
	return configs, nil
}

func NewKeypadModule(mqttClient mqtt.Client, b *bridge.Bridge, config *config.Config) Module {
	return &KeypadModule{
		mqttClient: mqttClient,
		bridge:     b,
		hass:       config.HomeAssistant,
	}
}

func init() {
	Register("keypads", NewKeypadModule)
}
