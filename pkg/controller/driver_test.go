package controller

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gaetancollaud/vantage-mqtt/pkg/vantage"
)

type stubClient struct {
	levels    map[int]float64
	setCalls  []setCall
	connected bool
}

type setCall struct {
	id    int
	level float64
}

func (c *stubClient) Connect() error      { c.connected = true; return nil }
func (c *stubClient) Disconnect() error   { c.connected = false; return nil }
func (c *stubClient) IsConnected() bool   { return c.connected }
func (c *stubClient) GetLoadLevel(id int) (float64, error) {
	return c.levels[id], nil
}
func (c *stubClient) QueryAll(ids []int) ([]vantage.LoadLevel, error) {
	levels := make([]vantage.LoadLevel, 0, len(ids))
	for _, id := range ids {
		levels = append(levels, vantage.LoadLevel{Id: id, Level: c.levels[id]})
	}
	return levels, nil
}
func (c *stubClient) SetLoadLevel(id int, level float64) error {
	c.setCalls = append(c.setCalls, setCall{id: id, level: level})
	return nil
}
func (c *stubClient) DiagnosticSubscribe(id string, callback vantage.DiagnosticCallback) error {
	return nil
}
func (c *stubClient) DiagnosticUnsubscribe(id string) error { return nil }

func TestDriverQueryAllConvertsToBrightness(t *testing.T) {
	client := &stubClient{levels: map[int]float64{118: 100, 42: 0, 7: 50}}
	registry := vantage.NewRegistry([]vantage.Load{{Id: 7}, {Id: 42}, {Id: 118}}, nil)
	driver := NewDriver(client, registry)

	levels, err := driver.QueryAll()
	assert.NoError(t, err)
	assert.Len(t, levels, 3)

	byId := map[int]int{}
	for _, level := range levels {
		byId[level.Id] = level.Brightness
	}
	assert.Equal(t, 255, byId[118])
	assert.Equal(t, 0, byId[42])
	assert.Equal(t, 128, byId[7])
}

func TestDriverSetBrightnessConvertsToPercent(t *testing.T) {
	client := &stubClient{levels: map[int]float64{}}
	registry := vantage.NewRegistry([]vantage.Load{{Id: 118}}, nil)
	driver := NewDriver(client, registry)

	assert.NoError(t, driver.SetBrightness(118, 255))
	assert.NoError(t, driver.SetBrightness(118, 0))
	assert.NoError(t, driver.SetBrightness(118, 128))

	assert.Len(t, client.setCalls, 3)
	assert.Equal(t, 100.0, client.setCalls[0].level)
	assert.Equal(t, 0.0, client.setCalls[1].level)
	assert.InDelta(t, 50.2, client.setCalls[2].level, 0.1)
}
