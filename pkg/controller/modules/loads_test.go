package modules

import (
	"fmt"
	"path"
	"testing"

	mqtt_base "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"

	"github.com/gaetancollaud/vantage-mqtt/pkg/bridge"
	"github.com/gaetancollaud/vantage-mqtt/pkg/homeassistant"
	"github.com/gaetancollaud/vantage-mqtt/pkg/vantage"
)

type publishedMessage struct {
	topic   string
	payload string
}

// fakeMqttClient records publishes and resolves topics under a fixed prefix.
type fakeMqttClient struct {
	prefix    string
	published []publishedMessage
}

func newFakeMqttClient() *fakeMqttClient {
	return &fakeMqttClient{prefix: "vantage"}
}

func (c *fakeMqttClient) Connect() error    { return nil }
func (c *fakeMqttClient) Disconnect() error { return nil }
func (c *fakeMqttClient) Publish(topic string, message interface{}) error {
	c.published = append(c.published, publishedMessage{topic: topic, payload: fmt.Sprint(message)})
	return nil
}
func (c *fakeMqttClient) PublishAndRetain(topic string, message interface{}) error {
	return c.Publish(topic, message)
}
func (c *fakeMqttClient) Subscribe(topic string, handler mqtt_base.MessageHandler) error {
	return nil
}
func (c *fakeMqttClient) GetFullTopic(topic string) string {
	return path.Join(c.prefix, topic)
}
func (c *fakeMqttClient) BridgeStatusTopic() string {
	return path.Join(c.prefix, "bridge", "status")
}
func (c *fakeMqttClient) PublishOnline() error      { return nil }
func (c *fakeMqttClient) PublishCount() uint64      { return uint64(len(c.published)) }
func (c *fakeMqttClient) RawClient() mqtt_base.Client { return nil }

func newTestBridge() *bridge.Bridge {
	registry := vantage.NewRegistry(
		[]vantage.Load{
			{Id: 118, Name: "Kitchen Spots", Area: "Kitchen", Dimmable: true},
			{Id: 42, Name: "Hall Relay", Area: "Hall"},
		},
		[]vantage.Keypad{
			{Id: 30, Name: "Kitchen keypad", Area: "Kitchen", Buttons: []vantage.KeypadButton{
				{Vid: 301, Position: 1},
			}},
		},
	)
	return bridge.NewBridge(nil, registry, bridge.NewBridgeOptions())
}

func TestLoadIdFromTopic(t *testing.T) {
	id, err := loadIdFromTopic("vantage/light/118/set")
	assert.NoError(t, err)
	assert.Equal(t, 118, id)

	id, err = loadIdFromTopic("vantage/light/42/brightness/set")
	assert.NoError(t, err)
	assert.Equal(t, 42, id)

	// Nested prefixes keep working.
	id, err = loadIdFromTopic("home/floor1/light/7/set")
	assert.NoError(t, err)
	assert.Equal(t, 7, id)
}

func TestLoadIdFromTopicErrors(t *testing.T) {
	_, err := loadIdFromTopic("vantage/light/not-a-number/set")
	assert.Error(t, err)

	_, err = loadIdFromTopic("vantage/keypad/30/button/1/action")
	assert.Error(t, err)
}

func TestLoadTopics(t *testing.T) {
	assert.Equal(t, "light/118/state", loadStateTopic(118))
	assert.Equal(t, "light/118/brightness/state", loadBrightnessStateTopic(118))
}

func TestButtonAndTaskTopics(t *testing.T) {
	assert.Equal(t, "keypad/30/button/3/action", buttonActionTopic(30, 3))
	assert.Equal(t, "task/77/state", taskStateTopic(77))
}

func TestPublishLoadStateSkipsBrightnessForRelays(t *testing.T) {
	client := newFakeMqttClient()
	module := &LoadModule{mqttClient: client, bridge: newTestBridge()}

	err := module.publishLoadState(bridge.LoadState{Id: 42, Power: true, Brightness: 255})
	assert.NoError(t, err)
	assert.Len(t, client.published, 1)
	assert.Equal(t, "light/42/state", client.published[0].topic)
	assert.Equal(t, "ON", client.published[0].payload)

	err = module.publishLoadState(bridge.LoadState{Id: 118, Dimmable: true, Power: true, Brightness: 180})
	assert.NoError(t, err)
	assert.Len(t, client.published, 3)
	assert.Equal(t, "light/118/brightness/state", client.published[2].topic)
	assert.Equal(t, "180", client.published[2].payload)
}

func TestLoadEntitiesUseNormalizedDeviceIds(t *testing.T) {
	client := newFakeMqttClient()
	module := &LoadModule{mqttClient: client, bridge: newTestBridge()}

	configs, err := module.GetHomeAssistantEntities()
	assert.NoError(t, err)
	assert.Len(t, configs, 2)

	// Registry loads are sorted by id: 42 first, then 118.
	assert.Equal(t, "vantage-load-42-Hall_Relay", configs[0].DeviceId)
	assert.Equal(t, "vantage-load-118-Kitchen_Spots", configs[1].DeviceId)

	relay := configs[0].Config.(*homeassistant.LightConfig)
	assert.Empty(t, relay.BrightnessStateTopic, "relays get no brightness topics")
	dimmer := configs[1].Config.(*homeassistant.LightConfig)
	assert.Equal(t, 255, dimmer.BrightnessScale)
	assert.Equal(t, "vantage/light/118/brightness/state", dimmer.BrightnessStateTopic)
}
