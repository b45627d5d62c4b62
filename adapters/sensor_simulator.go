package adapters

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

const (
	SimulatorMinTemperature = 15.0
	SimulatorMaxTemperature = 45.0
	SimulatorMinHumidity    = 20.0
	SimulatorMaxHumidity    = 95.0
)

// SensorProfile describes the climate a simulated sensor reports.
type SensorProfile struct {
	BaseTemperature      float64 `yaml:"base_temperature"`
	TemperatureVariation float64 `yaml:"temperature_variation"`
	BaseHumidity         float64 `yaml:"base_humidity"`
	HumidityVariation    float64 `yaml:"humidity_variation"`
	// GlitchProbability is the chance in [0,1] that a read fails.
	GlitchProbability float64 `yaml:"glitch_probability"`
}

func DefaultSensorProfile() SensorProfile {
	return SensorProfile{
		BaseTemperature:      28.0,
		TemperatureVariation: 3.0,
		BaseHumidity:         65.0,
		HumidityVariation:    10.0,
	}
}

type SensorSimulatorParams struct {
	Profile SensorProfile

	Rand *rand.Rand
	Now  func() time.Time
}

func (p *SensorSimulatorParams) EnsureDefaults() {
	if p.Rand == nil {
		p.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if p.Now == nil {
		p.Now = time.Now
	}
}

// SensorSimulator stands in for a DHT22. Readings wander around the
// profile base values with a slow hourly drift; humidity moves against
// temperature.
type SensorSimulator struct {
	params SensorSimulatorParams

	mu sync.Mutex
}

func NewSensorSimulator(params SensorSimulatorParams) *SensorSimulator {
	params.EnsureDefaults()
	return &SensorSimulator{params: params}
}

func (s *SensorSimulator) Read() (temperature, humidity float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.params.Profile
	r := s.params.Rand

	if p.GlitchProbability > 0 && r.Float64() < p.GlitchProbability {
		return math.NaN(), math.NaN()
	}

	drift := math.Sin(float64(s.params.Now().Unix())/3600) * 0.5

	temperature = p.BaseTemperature + uniform(r, p.TemperatureVariation) + drift*2
	humidity = p.BaseHumidity + uniform(r, p.HumidityVariation) - drift*5

	temperature = clamp(temperature, SimulatorMinTemperature, SimulatorMaxTemperature)
	humidity = clamp(humidity, SimulatorMinHumidity, SimulatorMaxHumidity)

	return round2(temperature), round2(humidity)
}

func uniform(r *rand.Rand, spread float64) float64 {
	if spread <= 0 {
		return 0
	}
	return (r.Float64()*2 - 1) * spread
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
