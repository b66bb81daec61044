package controller

import (
	"fmt"

	"github.com/gaetancollaud/vantage-mqtt/pkg/bridge"
	"github.com/gaetancollaud/vantage-mqtt/pkg/vantage"
)

// vantageDriver adapts the controller client to the bridge driver surface,
// translating between the 0-255 brightness scale used everywhere above it and
// the percent levels the bus speaks.
type vantageDriver struct {
	client   vantage.Client
	registry *vantage.Registry
}

func NewDriver(client vantage.Client, registry *vantage.Registry) bridge.Driver {
	return &vantageDriver{
		client:   client,
		registry: registry,
	}
}

func (d *vantageDriver) QueryAll() ([]bridge.LoadLevel, error) {
	levels, err := d.client.QueryAll(d.registry.LoadIds())
	if err != nil {
		return nil, fmt.Errorf("error querying load levels: %w", err)
	}
	result := make([]bridge.LoadLevel, 0, len(levels))
	for _, level := range levels {
		result = append(result, bridge.LoadLevel{
			Id:         level.Id,
			Brightness: vantage.BrightnessFromLevel(level.Level),
		})
	}
	return result, nil
}

func (d *vantageDriver) SetBrightness(id int, brightness int) error {
	return d.client.SetLoadLevel(id, vantage.LevelFromBrightness(brightness))
}
