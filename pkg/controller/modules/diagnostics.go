package modules

import (
	"fmt"
	"path"
	"runtime"
	"time"

	"github.com/gaetancollaud/vantage-mqtt/pkg/bridge"
	"github.com/gaetancollaud/vantage-mqtt/pkg/config"
	"github.com/gaetancollaud/vantage-mqtt/pkg/homeassistant"
	"github.com/gaetancollaud/vantage-mqtt/pkg/mqtt"
	"github.com/rs/zerolog/log"
)

const (
	diagnostics string = "diagnostics"

	diagnosticsInterval = 30 * time.Second
)

// Diagnostics Module periodically publishes bridge health figures: uptime,
// memory usage, message counters and the number of known entities. It also
// refreshes the retained online status so that a broker restart does not
// leave the bridge looking dead.
type DiagnosticsModule struct {
	mqttClient mqtt.Client
	bridge     *bridge.Bridge

	startTime time.Time
	ticker    *time.Ticker
	done      chan struct{}
}

func (c *DiagnosticsModule) Start() error {
	c.startTime = time.Now()
	c.ticker = time.NewTicker(diagnosticsInterval)
	c.done = make(chan struct{})

	go func() {
		for {
			select {
			case <-c.done:
				return
			case <-c.ticker.C:
				if err := c.publishDiagnostics(); err != nil {
					log.Error().Err(err).Msg("Error publishing diagnostics.")
				}
			}
		}
	}()
	return nil
}

func (c *DiagnosticsModule) Stop() error {
	c.ticker.Stop()
	close(c.done)
	return nil
}

func (c *DiagnosticsModule) publishDiagnostics() error {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	values := map[string]string{
		"uptime_s":           fmt.Sprintf("%.0f", time.Since(c.startTime).Seconds()),
		"memory_bytes":       fmt.Sprint(memStats.Alloc),
		"messages_published": fmt.Sprint(c.mqttClient.PublishCount()),
		"entity_count":       fmt.Sprint(c.bridge.Discovery().Count()),
	}
	for name, value := range values {
		if err := c.mqttClient.Publish(path.Join(diagnostics, name), value); err != nil {
			return err
		}
	}
	return c.mqttClient.PublishOnline()
}

// GetHomeAssistantEntities exposes the bridge itself as a device with its
// status and uptime as sensors.
func (c *DiagnosticsModule) GetHomeAssistantEntities() ([]homeassistant.DiscoveryConfig, error) {
	deviceId := "vantage-bridge"
	device := homeassistant.Device{
		Identifiers: []string{deviceId},
		Name:        "Vantage MQTT bridge",
	}

	statusConfig := &homeassistant.SensorConfig{
		BaseConfig: homeassistant.BaseConfig{
			Device:   device,
			Name:     "Bridge status",
			UniqueId: deviceId + "_status",
		},
		StateTopic: c.mqttClient.BridgeStatusTopic(),
		Icon:       "mdi:bridge",
	}
	uptimeConfig := &homeassistant.SensorConfig{
		BaseConfig: homeassistant.BaseConfig{
			Device:   device,
			Name:     "Bridge uptime",
			UniqueId: deviceId + "_uptime",
		},
		StateTopic:        c.mqttClient.GetFullTopic(path.Join(diagnostics, "uptime_s")),
		UnitOfMeasurement: "s",
		Icon:              "mdi:timer-outline",
	}

	return []homeassistant.DiscoveryConfig{
		{
			Domain:   homeassistant.Sensor,
			DeviceId: deviceId,
			ObjectId: "status",
			Config:   statusConfig,
		},
		{
			Domain:   homeassistant.Sensor,
			DeviceId: deviceId,
			ObjectId: "uptime",
			Config:   uptimeConfig,
		},
	}, nil
}

func NewDiagnosticsModule(mqttClient mqtt.Client, b *bridge.Bridge, config *config.Config) Module {
	return &DiagnosticsModule{
		mqttClient: mqttClient,
		bridge:     b,
	}
}

func init() {
	Register("diagnostics", NewDiagnosticsModule)
}
