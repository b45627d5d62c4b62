package adapters

import (
	"bytes"
	"dht-to-mqtt/application"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Provisioning is the YAML description of one or more nodes sharing a
// broker and base topic.
type Provisioning struct {
	BaseTopic string        `yaml:"base_topic"`
	Nodes     []NodeProfile `yaml:"nodes"`
}

type NodeProfile struct {
	ID   string  `yaml:"id"`
	PosX float64 `yaml:"pos_x"`
	PosY float64 `yaml:"pos_y"`

	SampleInterval  time.Duration `yaml:"sample_interval"`
	PublishInterval time.Duration `yaml:"publish_interval"`

	Enabled *bool          `yaml:"enabled"`
	Sensor  *SensorProfile `yaml:"sensor"`
}

func (p NodeProfile) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

// SensorProfile returns the simulated climate of the node.
func (p NodeProfile) SensorProfile() SensorProfile {
	if p.Sensor == nil {
		return DefaultSensorProfile()
	}
	return *p.Sensor
}

// Apply overrides the identity and timing of cfg with the profile.
func (p NodeProfile) Apply(cfg *application.NodeConfig) {
	cfg.Identity = application.NodeIdentity{ID: p.ID, PositionX: p.PosX, PositionY: p.PosY}
	if p.SampleInterval > 0 {
		cfg.SampleInterval = p.SampleInterval
	}
	if p.PublishInterval > 0 {
		cfg.PublishInterval = p.PublishInterval
	}
}

func LoadProvisioning(path string) (Provisioning, error) {
	f, err := os.Open(path)
	if err != nil {
		return Provisioning{}, err
	}
	defer f.Close()

	p, err := ParseProvisioning(f)
	if err != nil {
		return Provisioning{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

func ParseProvisioning(r io.Reader) (Provisioning, error) {
	var p Provisioning

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return Provisioning{}, fmt.Errorf("decode provisioning: %w", err)
	}

	if err := p.Validate(); err != nil {
		return Provisioning{}, err
	}
	return p, nil
}

func (p Provisioning) Validate() error {
	seen := map[string]bool{}
	for i, n := range p.Nodes {
		if n.ID == "" {
			return fmt.Errorf("node %d: id is empty", i)
		}
		if seen[n.ID] {
			return fmt.Errorf("node %s: duplicate id", n.ID)
		}
		seen[n.ID] = true

		if n.SampleInterval < 0 || n.PublishInterval < 0 {
			return fmt.Errorf("node %s: intervals must not be negative", n.ID)
		}
		if s := n.Sensor; s != nil && (s.GlitchProbability < 0 || s.GlitchProbability > 1) {
			return fmt.Errorf("node %s: glitch probability must be within [0,1]", n.ID)
		}
	}
	return nil
}

// Node looks up a profile by id.
func (p Provisioning) Node(id string) (NodeProfile, bool) {
	for _, n := range p.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return NodeProfile{}, false
}

// Enabled returns the profiles that are not switched off.
func (p Provisioning) Enabled() []NodeProfile {
	var out []NodeProfile
	for _, n := range p.Nodes {
		if n.IsEnabled() {
			out = append(out, n)
		}
	}
	return out
}

func (p Provisioning) Marshal() ([]byte, error) {
	var buf bytes.Buffer

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DefaultProvisioning is the five node field layout, 100m x 100m with the
// origin at the bottom left corner. Publish intervals are staggered to
// spread broker traffic.
func DefaultProvisioning() Provisioning {
	return Provisioning{
		BaseTopic: "Informatika/IoT-E/Kelompok9/multi_node",
		Nodes: []NodeProfile{
			{
				ID: "node_001", PosX: 25.0, PosY: 25.0,
				PublishInterval: 5000 * time.Millisecond,
				Sensor:          &SensorProfile{BaseTemperature: 28.0, TemperatureVariation: 3.0, BaseHumidity: 65.0, HumidityVariation: 10.0},
			},
			{
				ID: "node_002", PosX: 75.0, PosY: 25.0,
				PublishInterval: 5500 * time.Millisecond,
				Sensor:          &SensorProfile{BaseTemperature: 26.5, TemperatureVariation: 2.5, BaseHumidity: 70.0, HumidityVariation: 8.0},
			},
			{
				ID: "node_003", PosX: 50.0, PosY: 75.0,
				PublishInterval: 6000 * time.Millisecond,
				Sensor:          &SensorProfile{BaseTemperature: 30.0, TemperatureVariation: 4.0, BaseHumidity: 60.0, HumidityVariation: 12.0},
			},
			{
				ID: "node_004", PosX: 15.0, PosY: 85.0,
				PublishInterval: 6500 * time.Millisecond,
				Sensor:          &SensorProfile{BaseTemperature: 27.0, TemperatureVariation: 2.0, BaseHumidity: 72.0, HumidityVariation: 6.0},
			},
			{
				ID: "node_005", PosX: 85.0, PosY: 85.0,
				PublishInterval: 7000 * time.Millisecond,
				Sensor:          &SensorProfile{BaseTemperature: 29.5, TemperatureVariation: 3.5, BaseHumidity: 62.0, HumidityVariation: 9.0},
			},
		},
	}
}
