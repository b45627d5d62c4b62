package main

import (
	"dht-to-mqtt/application"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func parseNodeConfig(t *testing.T, args ...string) application.NodeConfig {
	var cfg application.NodeConfig

	app := cli.App{
		Flags: Flags,
		Commands: []*cli.Command{
			{
				Name:  CommandRun.Name,
				Flags: CommandRun.Flags,
				Action: func(ctx *cli.Context) error {
					cfg = nodeConfigFromFlags(ctx)
					return nil
				},
			},
		},
	}

	require.NoError(t, app.Run(append([]string{"dht-to-mqtt"}, args...)))
	return cfg
}

func TestNodeConfigFromFlags_Defaults(t *testing.T) {
	cfg := parseNodeConfig(t, "run")

	assert.Equal(t, application.NodeIdentity{ID: "node_001", PositionX: 25.0, PositionY: 25.0}, cfg.Identity)
	assert.Equal(t, "Informatika/IoT-E/Kelompok9/multi_node", cfg.BaseTopic)
	assert.Equal(t, 2*time.Second, cfg.SampleInterval)
	assert.Equal(t, 5*time.Second, cfg.PublishInterval)
	assert.Equal(t, application.DefaultNoiseFilter(), cfg.Noise)
	assert.Equal(t, application.AllPayloadFields(), cfg.Fields)
	assert.Equal(t, application.DefaultAlarmThresholds(), cfg.Alarm)
	assert.True(t, cfg.CommandsEnabled)
	assert.True(t, cfg.LEDsEnabled)
	assert.False(t, cfg.AlarmEnabled)
	assert.NoError(t, cfg.Validate())
}

func TestNodeConfigFromFlags_SingleNodeVariant(t *testing.T) {
	cfg := parseNodeConfig(t,
		"--base-topic", "home/climate",
		"run",
		"--node-id", "",
		"--payload-node-id=false",
		"--payload-position=false",
		"--payload-timestamp=false",
		"--commands=false",
		"--publish-interval", "10s",
		"--alarm",
		"--alarm-low", "20",
		"--alarm-high", "30",
	)

	assert.Equal(t, "home/climate", cfg.BaseTopic)
	assert.Equal(t, "", cfg.Identity.ID)
	assert.Equal(t, application.PayloadFields{}, cfg.Fields)
	assert.False(t, cfg.CommandsEnabled)
	assert.Equal(t, 10*time.Second, cfg.PublishInterval)
	assert.True(t, cfg.AlarmEnabled)
	assert.Equal(t, application.AlarmThresholds{Low: 20, High: 30}, cfg.Alarm)
	assert.NoError(t, cfg.Validate())
}
