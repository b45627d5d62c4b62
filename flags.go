package main

import (
	"time"

	"github.com/urfave/cli/v2"
)

var FlagLogLevel = &cli.StringFlag{
	Name:     "log-level",
	EnvVars:  []string{"LOG_LEVEL"},
	Value:    "info",
	Required: false,
}

var FlagLogWriter = &cli.StringFlag{
	Name:     "log-writer",
	Usage:    "one of: [console, json]",
	EnvVars:  []string{"LOG_WRITER"},
	Value:    "console",
	Required: false,
}

var FlagMQTTUrl = &cli.StringFlag{
	Name:     "mqtt-url",
	Usage:    "tcp://broker:port",
	EnvVars:  []string{"MQTT_URL"},
	Value:    "tcp://broker.hivemq.com:1883",
	Required: false,
}

var FlagMQTTUsername = &cli.StringFlag{
	Name:     "mqtt-username",
	EnvVars:  []string{"MQTT_USERNAME"},
	Required: false,
}

var FlagMQTTPassword = &cli.StringFlag{
	Name:     "mqtt-password",
	EnvVars:  []string{"MQTT_PASSWORD"},
	Required: false,
}

var FlagMQTTClientPrefix = &cli.StringFlag{
	Name:     "mqtt-client-prefix",
	Usage:    "client id prefix, a node id and random suffix are appended",
	EnvVars:  []string{"MQTT_CLIENT_PREFIX"},
	Value:    "esp32",
	Required: false,
}

var FlagBaseTopic = &cli.StringFlag{
	Name:     "base-topic",
	EnvVars:  []string{"BASE_TOPIC"},
	Value:    "Informatika/IoT-E/Kelompok9/multi_node",
	Required: false,
}

var FlagNodeID = &cli.StringFlag{
	Name:     "node-id",
	Usage:    "node id, empty publishes directly on the base topic",
	EnvVars:  []string{"NODE_ID"},
	Value:    "node_001",
	Required: false,
}

var FlagPosX = &cli.Float64Flag{
	Name:    "pos-x",
	Usage:   "node position in meters",
	EnvVars: []string{"POS_X"},
	Value:   25.0,
}

var FlagPosY = &cli.Float64Flag{
	Name:    "pos-y",
	Usage:   "node position in meters",
	EnvVars: []string{"POS_Y"},
	Value:   25.0,
}

var FlagSampleInterval = &cli.DurationFlag{
	Name:    "sample-interval",
	EnvVars: []string{"SAMPLE_INTERVAL"},
	Value:   2 * time.Second,
}

var FlagPublishInterval = &cli.DurationFlag{
	Name:    "publish-interval",
	EnvVars: []string{"PUBLISH_INTERVAL"},
	Value:   5 * time.Second,
}

var FlagNoiseTempDelta = &cli.Float64Flag{
	Name:    "noise-temp-delta",
	Usage:   "largest accepted temperature jump between readings, 0 disables",
	EnvVars: []string{"NOISE_TEMP_DELTA"},
	Value:   10.0,
}

var FlagNoiseHumDelta = &cli.Float64Flag{
	Name:    "noise-hum-delta",
	Usage:   "largest accepted humidity jump between readings, 0 disables",
	EnvVars: []string{"NOISE_HUM_DELTA"},
	Value:   20.0,
}

var FlagLinkTimeout = &cli.DurationFlag{
	Name:    "link-timeout",
	Usage:   "restart when the link does not come up in time",
	EnvVars: []string{"LINK_TIMEOUT"},
	Value:   10 * time.Second,
}

var FlagLinkInterface = &cli.StringFlag{
	Name:    "link-interface",
	Usage:   "network interface that must be up, empty skips the check",
	EnvVars: []string{"LINK_INTERFACE"},
}

var FlagLinkTarget = &cli.StringFlag{
	Name:    "link-target",
	Usage:   "link-local tcp address that must accept a connection, e.g. the gateway; empty skips the check",
	EnvVars: []string{"LINK_TARGET"},
}

var FlagSessionBackoff = &cli.DurationFlag{
	Name:    "session-backoff",
	EnvVars: []string{"SESSION_BACKOFF"},
	Value:   5 * time.Second,
}

var FlagNonBlockingBackoff = &cli.BoolFlag{
	Name:    "non-blocking-backoff",
	Usage:   "keep sampling while waiting to retry the broker",
	EnvVars: []string{"NON_BLOCKING_BACKOFF"},
}

var FlagCommands = &cli.BoolFlag{
	Name:    "commands",
	Usage:   "subscribe to the control topic",
	EnvVars: []string{"COMMANDS"},
	Value:   true,
}

var FlagLEDs = &cli.BoolFlag{
	Name:    "leds",
	EnvVars: []string{"LEDS"},
	Value:   true,
}

var FlagAlarm = &cli.BoolFlag{
	Name:    "alarm",
	Usage:   "drive the temperature alarm indicator",
	EnvVars: []string{"ALARM"},
}

var FlagAlarmLow = &cli.Float64Flag{
	Name:    "alarm-low",
	EnvVars: []string{"ALARM_LOW"},
	Value:   45.0,
}

var FlagAlarmHigh = &cli.Float64Flag{
	Name:    "alarm-high",
	EnvVars: []string{"ALARM_HIGH"},
	Value:   55.0,
}

var FlagPayloadNodeID = &cli.BoolFlag{
	Name:    "payload-node-id",
	EnvVars: []string{"PAYLOAD_NODE_ID"},
	Value:   true,
}

var FlagPayloadPosition = &cli.BoolFlag{
	Name:    "payload-position",
	EnvVars: []string{"PAYLOAD_POSITION"},
	Value:   true,
}

var FlagPayloadTimestamp = &cli.BoolFlag{
	Name:    "payload-timestamp",
	EnvVars: []string{"PAYLOAD_TIMESTAMP"},
	Value:   true,
}

var FlagConfig = &cli.StringFlag{
	Name:    "config",
	Usage:   "yaml provisioning file",
	EnvVars: []string{"CONFIG"},
}

var FlagConsole = &cli.BoolFlag{
	Name:    "console",
	Usage:   "read operator commands from stdin",
	EnvVars: []string{"CONSOLE"},
}

var FlagMetricsAddr = &cli.StringFlag{
	Name:    "metrics-addr",
	Usage:   "serve /metrics and /healthz, empty disables",
	EnvVars: []string{"METRICS_ADDR"},
}

var FlagSensorGlitch = &cli.Float64Flag{
	Name:    "sensor-glitch",
	Usage:   "probability of a failed simulated sensor read",
	EnvVars: []string{"SENSOR_GLITCH"},
}

var FlagStaleAfter = &cli.DurationFlag{
	Name:    "stale-after",
	Usage:   "nodes silent for longer are reported inactive",
	EnvVars: []string{"STALE_AFTER"},
	Value:   30 * time.Second,
}
