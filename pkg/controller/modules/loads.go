package modules

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	mqtt_base "github.com/eclipse/paho.mqtt.golang"
	"github.com/gaetancollaud/vantage-mqtt/pkg/bridge"
	"github.com/gaetancollaud/vantage-mqtt/pkg/config"
	"github.com/gaetancollaud/vantage-mqtt/pkg/homeassistant"
	"github.com/gaetancollaud/vantage-mqtt/pkg/mqtt"
	"github.com/rs/zerolog/log"
)

const (
	lights     string = "light"
	brightness string = "brightness"

	payloadOn  string = "ON"
	payloadOff string = "OFF"
)

// Load Module encapsulates the MQTT surface of the loads. Inbound set
// messages are queued as commands on the bridge, and every confirmed state
// change is published back out as power and brightness state topics.
type LoadModule struct {
	mqttClient mqtt.Client
	bridge     *bridge.Bridge
}

func (c *LoadModule) Start() error {
	c.bridge.OnLoadChange(func(state bridge.LoadState) {
		if err := c.publishLoadState(state); err != nil {
			log.Error().Err(err).Int("loadId", state.Id).Msg("Error publishing load state.")
		}
	})

	// Subscribe to MQTT commands with one wildcard per command topic.
	setTopic := path.Join(lights, "+", mqtt.Set)
	if err := c.mqttClient.Subscribe(setTopic, func(client mqtt_base.Client, message mqtt_base.Message) {
		if err := c.onPowerMessage(message.Topic(), string(message.Payload())); err != nil {
			log.Error().Err(err).Str("topic", message.Topic()).Msg("Error handling MQTT Message.")
		}
	}); err != nil {
		return err
	}

	brightnessTopic := path.Join(lights, "+", brightness, mqtt.Set)
	if err := c.mqttClient.Subscribe(brightnessTopic, func(client mqtt_base.Client, message mqtt_base.Message) {
		if err := c.onBrightnessMessage(message.Topic(), string(message.Payload())); err != nil {
			log.Error().Err(err).Str("topic", message.Topic()).Msg("Error handling MQTT Message.")
		}
	}); err != nil {
		return err
	}

	return nil
}

func (c *LoadModule) Stop() error {
	return nil
}

func (c *LoadModule) onPowerMessage(topic string, payload string) error {
	loadId, err := loadIdFromTopic(topic)
	if err != nil {
		return err
	}
	var on bool
	switch strings.ToUpper(strings.TrimSpace(payload)) {
	case payloadOn:
		on = true
	case payloadOff:
		on = false
	default:
		return fmt.Errorf("unexpected power payload '%s'", payload)
	}
	log.Info().Int("loadId", loadId).Bool("on", on).Msg("Setting power.")
	return c.bridge.SetPower(loadId, on)
}

func (c *LoadModule) onBrightnessMessage(topic string, payload string) error {
	loadId, err := loadIdFromTopic(topic)
	if err != nil {
		return err
	}
	// A literal ON on the brightness topic means "restore the last level".
	if strings.EqualFold(strings.TrimSpace(payload), payloadOn) {
		log.Info().Int("loadId", loadId).Msg("Setting power on via brightness topic.")
		return c.bridge.SetPower(loadId, true)
	}
	value, err := strconv.Atoi(strings.TrimSpace(payload))
	if err != nil {
		return fmt.Errorf("error parsing message as brightness value: %w", err)
	}
	log.Info().Int("loadId", loadId).Int("brightness", value).Msg("Setting brightness.")
	return c.bridge.SetBrightness(loadId, value)
}

func (c *LoadModule) publishLoadState(state bridge.LoadState) error {
	power := payloadOff
	if state.Power {
		power = payloadOn
	}
	if err := c.mqttClient.Publish(loadStateTopic(state.Id), power); err != nil {
		return err
	}
	// Relays have no brightness topic.
	if !state.Dimmable {
		return nil
	}
	return c.mqttClient.Publish(loadBrightnessStateTopic(state.Id), strconv.Itoa(state.Brightness))
}

func loadStateTopic(loadId int) string {
	return path.Join(lights, strconv.Itoa(loadId), mqtt.State)
}

func loadBrightnessStateTopic(loadId int) string {
	return path.Join(lights, strconv.Itoa(loadId), brightness, mqtt.State)
}

// loadIdFromTopic extracts the load id from a command topic, whatever prefix
// the subscription was made under.
func loadIdFromTopic(topic string) (int, error) {
	segments := strings.Split(topic, "/")
	for i, segment := range segments {
		if segment == lights && i+1 < len(segments) {
			loadId, err := strconv.Atoi(segments[i+1])
			if err != nil {
				return 0, fmt.Errorf("error parsing load id from topic '%s': %w", topic, err)
			}
			return loadId, nil
		}
	}
	return 0, fmt.Errorf("no load id found in topic '%s'", topic)
}

func (c *LoadModule) GetHomeAssistantEntities() ([]homeassistant.DiscoveryConfig, error) {
	configs := []homeassistant.DiscoveryConfig{}

	for _, load := range c.bridge.Registry().Loads() {
		// Configured names can carry anything; the id has to stay safe as a
		// discovery topic segment.
		deviceId := mqtt.NormalizeForTopicName(fmt.Sprintf("vantage-load-%d-%s", load.Id, load.Name))
		entityConfig := &homeassistant.LightConfig{
			BaseConfig: homeassistant.BaseConfig{
				Device: homeassistant.Device{
					Identifiers:   []string{deviceId},
					Name:          load.Name,
					SuggestedArea: load.Area,
				},
				Name:     load.Name,
				UniqueId: deviceId + "_light",
			},
			CommandTopic: c.mqttClient.GetFullTopic(
				path.Join(lights, strconv.Itoa(load.Id), mqtt.Set)),
			StateTopic: c.mqttClient.GetFullTopic(loadStateTopic(load.Id)),
			PayloadOn:  payloadOn,
			PayloadOff: payloadOff,
		}
		if load.Dimmable {
			entityConfig.OnCommandType = "last"
			entityConfig.BrightnessScale = 255
			entityConfig.BrightnessStateTopic = c.mqttClient.GetFullTopic(
				loadBrightnessStateTopic(load.Id))
			entityConfig.BrightnessCommandTopic = c.mqttClient.GetFullTopic(
				path.Join(lights, strconv.Itoa(load.Id), brightness, mqtt.Set))
		}
		configs = append(configs, homeassistant.DiscoveryConfig{
			Domain:   homeassistant.Light,
			DeviceId: deviceId,
			ObjectId: "light",
			Config:   entityConfig,
		})
	}
	return configs, nil
}

func NewLoadModule(mqttClient mqtt.Client, b *bridge.Bridge, config *config.Config) Module {
	return &LoadModule{
		mqttClient: mqttClient,
		bridge:     b,
	}
}

func init() {
	Register("loads", NewLoadModule)
}
