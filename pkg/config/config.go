package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type ConfigVantage struct {
	Host     string
	Port     int
	Username string
	Password string
}
type ConfigMqtt struct {
	MqttUrl     string
	Username    string
	Password    string
	TopicPrefix string
	Retain      bool
}
type ConfigHomeAssistant struct {
	DiscoveryEnabled     bool
	DiscoveryTopicPrefix string
	RemoveRegexpFromName string
	VantageHost          string
	Retain               bool
}
type ConfigHealthCheck struct {
	Enabled bool
	Port    int
}

// LoadConfig describes one controllable load on the Vantage bus. The
// host-command port has no object enumeration, so the inventory is part of
// the configuration file.
type LoadConfig struct {
	Id       int    `mapstructure:"id"`
	Name     string `mapstructure:"name"`
	Area     string `mapstructure:"area"`
	Dimmable *bool  `mapstructure:"dimmable"`
}

// ButtonConfig maps an event-log VID onto a physical keypad position.
type ButtonConfig struct {
	Vid      int `mapstructure:"vid"`
	Position int `mapstructure:"position"`
}
type KeypadConfig struct {
	Id      int            `mapstructure:"id"`
	Name    string         `mapstructure:"name"`
	Area    string         `mapstructure:"area"`
	Buttons []ButtonConfig `mapstructure:"buttons"`
}

type Config struct {
	Vantage       ConfigVantage
	Mqtt          ConfigMqtt
	HomeAssistant ConfigHomeAssistant
	HealthCheck   ConfigHealthCheck

	Loads   []LoadConfig
	Keypads []KeypadConfig

	RefreshAtStart  bool
	LogLevel        string
	PollQuietTime   time.Duration
	PollInterval    time.Duration
	CommandThrottle time.Duration
}

const (
	undefined                               string = "__undefined__"
	configKeyLoads                          string = "loads"
	configKeyKeypads                        string = "keypads"
	envKeyVantageHost                       string = "vantage_host"
	envKeyVantagePort                       string = "vantage_port"
	envKeyVantageUsername                   string = "vantage_username"
	envKeyVantagePassword                   string = "vantage_password"
	envKeyMqttUrl                           string = "mqtt_url"
	envKeyMqttUsername                      string = "mqtt_username"
	envKeyMqttPassword                      string = "mqtt_password"
	envKeyMqttTopicPrefix                   string = "mqtt_topic_prefix"
	envKeyMqttRetain                        string = "mqtt_retain"
	envKeyRefreshAtStart                    string = "refresh_at_start"
	envKeyLogLevel                          string = "log_level"
	envKeyPollQuietTime                     string = "poll_quiet_time"
	envKeyPollInterval                      string = "poll_interval"
	envKeyCommandThrottleDelay              string = "command_throttle_delay"
	envKeyHealthCheckEnabled                string = "health_check_enabled"
	envKeyHealthCheckPort                   string = "health_check_port"
	envKeyHomeAssistantDiscoveryEnabled     string = "home_assistant_discovery_enabled"
	envKeyHomeAssistantDiscoveryPrefix      string = "home_assistant_discovery_prefix"
	envKeyHomeAssistantRemoveRegexpFromName string = "home_assistant_remove_regexp_from_name"
)

var defaultConfig = map[string]interface{}{
	envKeyVantageHost:                       undefined,
	envKeyVantagePort:                       3001,
	envKeyVantageUsername:                   "",
	envKeyVantagePassword:                   "",
	envKeyMqttUrl:                           undefined,
	envKeyMqttUsername:                      "",
	envKeyMqttPassword:                      "",
	envKeyMqttTopicPrefix:                   "vantage",
	envKeyMqttRetain:                        false,
	envKeyRefreshAtStart:                    true,
	envKeyLogLevel:                          "INFO",
	envKeyPollQuietTime:                     5 * time.Second,
	envKeyPollInterval:                      90 * time.Second,
	envKeyCommandThrottleDelay:              20 * time.Millisecond,
	envKeyHealthCheckEnabled:                true,
	envKeyHealthCheckPort:                   8080,
	envKeyHomeAssistantDiscoveryEnabled:     false,
	envKeyHomeAssistantDiscoveryPrefix:      "homeassistant",
	envKeyHomeAssistantRemoveRegexpFromName: "",
}

// ReadConfig returns a Config from config.yaml and env variables.
func ReadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	// Set the current directory where the binary is being run.
	viper.AddConfigPath(".")
	viper.AutomaticEnv()
	for key, value := range defaultConfig {
		if value != undefined {
			viper.SetDefault(key, value)
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		// The whole configuration can come from the environment, so a
		// missing file is not an error.
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("ReadInConfig error: %w", err)
		}
	}

	// Check for undefined fields.
	for fieldName, defaultValue := range defaultConfig {
		if defaultValue == undefined && !viper.IsSet(fieldName) {
			return nil, fmt.Errorf("required field not found in config: %s", fieldName)
		}
	}

	loads := []LoadConfig{}
	if err := decodeSection(viper.Get(configKeyLoads), &loads); err != nil {
		return nil, fmt.Errorf("error decoding loads from config: %w", err)
	}
	keypads := []KeypadConfig{}
	if err := decodeSection(viper.Get(configKeyKeypads), &keypads); err != nil {
		return nil, fmt.Errorf("error decoding keypads from config: %w", err)
	}

	config := &Config{
		Vantage: ConfigVantage{
			Host:     viper.GetString(envKeyVantageHost),
			Port:     viper.GetInt(envKeyVantagePort),
			Username: viper.GetString(envKeyVantageUsername),
			Password: viper.GetString(envKeyVantagePassword),
		},
		Mqtt: ConfigMqtt{
			MqttUrl:     viper.GetString(envKeyMqttUrl),
			Username:    viper.GetString(envKeyMqttUsername),
			Password:    viper.GetString(envKeyMqttPassword),
			TopicPrefix: viper.GetString(envKeyMqttTopicPrefix),
			Retain:      viper.GetBool(envKeyMqttRetain),
		},
		HomeAssistant: ConfigHomeAssistant{
			DiscoveryEnabled:     viper.GetBool(envKeyHomeAssistantDiscoveryEnabled),
			DiscoveryTopicPrefix: viper.GetString(envKeyHomeAssistantDiscoveryPrefix),
			RemoveRegexpFromName: viper.GetString(envKeyHomeAssistantRemoveRegexpFromName),
			VantageHost:          viper.GetString(envKeyVantageHost),
			Retain:               viper.GetBool(envKeyMqttRetain),
		},
		HealthCheck: ConfigHealthCheck{
			Enabled: viper.GetBool(envKeyHealthCheckEnabled),
			Port:    viper.GetInt(envKeyHealthCheckPort),
		},
		Loads:           loads,
		Keypads:         keypads,
		RefreshAtStart:  viper.GetBool(envKeyRefreshAtStart),
		LogLevel:        viper.GetString(envKeyLogLevel),
		PollQuietTime:   viper.GetDuration(envKeyPollQuietTime),
		PollInterval:    viper.GetDuration(envKeyPollInterval),
		CommandThrottle: viper.GetDuration(envKeyCommandThrottleDelay),
	}

	return config, nil
}

// IsDimmable defaults to true when the field is absent, matching the bus
// where almost every load is a dimmer.
func (l *LoadConfig) IsDimmable() bool {
	if l.Dimmable == nil {
		return true
	}
	return *l.Dimmable
}

// decodeSection maps the generic structure returned by viper into an explicit
// struct list.
func decodeSection(raw interface{}, result interface{}) error {
	if raw == nil {
		return nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           result,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("error building decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return fmt.Errorf("error decoding section: %w", err)
	}
	return nil
}

func (c *Config) String() string {
	return fmt.Sprintf("%+v\n", c.Vantage)
}
