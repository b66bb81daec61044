package controller

import (
	"fmt"

	"github.com/gaetancollaud/vantage-mqtt/pkg/bridge"
	"github.com/gaetancollaud/vantage-mqtt/pkg/config"
	"github.com/gaetancollaud/vantage-mqtt/pkg/controller/modules"
	"github.com/gaetancollaud/vantage-mqtt/pkg/health"
	"github.com/gaetancollaud/vantage-mqtt/pkg/homeassistant"
	"github.com/gaetancollaud/vantage-mqtt/pkg/mqtt"
	"github.com/gaetancollaud/vantage-mqtt/pkg/vantage"
	"github.com/rs/zerolog/log"
)

const diagnosticSubscriptionId = "controller"

type Controller struct {
	vantageClient vantage.Client
	mqttClient    mqtt.Client
	bridge        *bridge.Bridge
	hass          *homeassistant.HomeAssistantDiscovery
	healthCheck   health.Health

	modules map[string]modules.Module
}

func NewController(config *config.Config) *Controller {
	// Create the Vantage client.
	vantageOptions := vantage.NewClientOptions().
		SetHost(config.Vantage.Host).
		SetPort(config.Vantage.Port).
		SetUsername(config.Vantage.Username).
		SetPassword(config.Vantage.Password)
	vantageClient := vantage.NewClient(vantageOptions)

	mqttOptions := mqtt.NewClientOptions().
		SetMqttUrl(config.Mqtt.MqttUrl).
		SetUsername(config.Mqtt.Username).
		SetPassword(config.Mqtt.Password).
		SetTopicPrefix(config.Mqtt.TopicPrefix).
		SetRetain(config.Mqtt.Retain)
	mqttClient := mqtt.NewClient(mqttOptions)

	registry := registryFromConfig(config)
	bridgeOptions := bridge.NewBridgeOptions().
		SetQuietTime(config.PollQuietTime).
		SetPollInterval(config.PollInterval).
		SetCommandThrottle(config.CommandThrottle).
		SetRefreshAtStart(config.RefreshAtStart)
	b := bridge.NewBridge(NewDriver(vantageClient, registry), registry, bridgeOptions)

	controller := Controller{
		vantageClient: vantageClient,
		mqttClient:    mqttClient,
		bridge:        b,
		hass:          homeassistant.NewHomeAssistantDiscovery(mqttClient, &config.HomeAssistant),
		modules:       map[string]modules.Module{},
	}
	if config.HealthCheck.Enabled {
		controller.healthCheck = health.NewHealth(config.HealthCheck, mqttClient, vantageClient)
	}

	for name, builder := range modules.Modules {
		module := builder(mqttClient, b, config)
		controller.modules[name] = module
	}

	return &controller
}

// VantageClient exposes the underlying bus client so that extra diagnostic
// taps can be attached.
func (c *Controller) VantageClient() vantage.Client {
	return c.vantageClient
}

func (c *Controller) Start() error {
	log.Info().Msg("Starting controller.")
	if err := c.mqttClient.Connect(); err != nil {
		return fmt.Errorf("error connecting to MQTT client: %w", err)
	}
	if err := c.vantageClient.Connect(); err != nil {
		return fmt.Errorf("error connecting to Vantage controller: %w", err)
	}
	if err := c.vantageClient.DiagnosticSubscribe(diagnosticSubscriptionId, c.bridge.OnDiagnosticLine); err != nil {
		return fmt.Errorf("error subscribing to the diagnostic stream: %w", err)
	}

	// Modules register their handlers before the bridge starts emitting.
	for name, module := range c.modules {
		log.Info().Str("module", name).Msg("Starting module.")
		if err := module.Start(); err != nil {
			return fmt.Errorf("error starting module '%s': %w", name, err)
		}
	}

	if err := c.bridge.Start(); err != nil {
		return fmt.Errorf("error starting bridge: %w", err)
	}

	// Collect and publish the Home Assistant discovery messages for the
	// configured inventory.
	for name, module := range c.modules {
		hassModule, ok := module.(homeassistant.HomeAssistantDiscoveryInterface)
		if !ok {
			continue
		}
		configs, err := hassModule.GetHomeAssistantEntities()
		if err != nil {
			return fmt.Errorf("error getting entities from module '%s': %w", name, err)
		}
		c.hass.AddConfigs(configs)
	}
	if err := c.hass.PublishDiscoveryMessages(); err != nil {
		return fmt.Errorf("error publishing discovery messages: %w", err)
	}

	if c.healthCheck != nil {
		if err := c.healthCheck.Start(); err != nil {
			return fmt.Errorf("error starting health check server: %w", err)
		}
	}

	return nil
}

func (c *Controller) Stop() error {
	log.Info().Msg("Stopping controller.")

	for name, module := range c.modules {
		log.Info().Str("module", name).Msg("Stopping module.")
		if err := module.Stop(); err != nil {
			return fmt.Errorf("error stopping module '%s': %w", name, err)
		}
	}

	c.bridge.Stop()

	if err := c.vantageClient.DiagnosticUnsubscribe(diagnosticSubscriptionId); err != nil {
		return fmt.Errorf("error unsubscribing from the diagnostic stream: %w", err)
	}
	if err := c.vantageClient.Disconnect(); err != nil {
		return fmt.Errorf("error disconnecting from Vantage controller: %w", err)
	}
	if err := c.mqttClient.Disconnect(); err != nil {
		return fmt.Errorf("error disconnecting to MQTT client: %w", err)
	}

	if c.healthCheck != nil {
		if err := c.healthCheck.Stop(); err != nil {
			return fmt.Errorf("error stopping health check server: %w", err)
		}
	}

	return nil
}

// registryFromConfig converts the configured inventory into the runtime
// object registry.
func registryFromConfig(config *config.Config) *vantage.Registry {
	loads := make([]vantage.Load, 0, len(config.Loads))
	for _, load := range config.Loads {
		loads = append(loads, vantage.Load{
			Id:       load.Id,
			Name:     load.Name,
			Area:     load.Area,
			Dimmable: load.IsDimmable(),
		})
	}
	keypads := make([]vantage.Keypad, 0, len(config.Keypads))
	for _, keypad := range config.Keypads {
		buttons := make([]vantage.KeypadButton, 0, len(keypad.Buttons))
		for _, keypadButton := range keypad.Buttons {
			buttons = append(buttons, vantage.KeypadButton{
				Vid:      keypadButton.Vid,
				Position: keypadButton.Position,
			})
		}
		keypads = append(keypads, vantage.Keypad{
			Id:      keypad.Id,
			Name:    keypad.Name,
			Area:    keypad.Area,
			Buttons: buttons,
		})
	}
	return vantage.NewRegistry(loads, keypads)
}
