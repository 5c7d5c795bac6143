package paper

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/betbot/deltamm/internal/domain"
)

// Seed is the initial state of a paper exchange, loaded from YAML.
type Seed struct {
	Instruments []SeedInstrument    `yaml:"instruments"`
	Books       map[string]SeedBook `yaml:"books"`
	Positions   map[string]int      `yaml:"positions"`
}

type SeedInstrument struct {
	ID         string    `yaml:"id"`
	Kind       string    `yaml:"kind"`
	BaseID     string    `yaml:"base_id"`
	Expiry     time.Time `yaml:"expiry"`
	Strike     float64   `yaml:"strike"`
	OptionKind string    `yaml:"option_kind"`
}

type SeedLevel struct {
	Price  float64 `yaml:"price"`
	Volume int     `yaml:"volume"`
}

type SeedBook struct {
	Bids []SeedLevel `yaml:"bids"`
	Asks []SeedLevel `yaml:"asks"`
}

// LoadSeed 读取种子文件
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read seed")
	}
	var s Seed
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrapf(err, "parse seed %s", path)
	}
	return &s, nil
}

// Apply loads the seed into e. Instruments are validated first.
func (s *Seed) Apply(e *Exchange) error {
	for _, si := range s.Instruments {
		inst := domain.Instrument{
			ID:         si.ID,
			Kind:       domain.InstrumentKind(si.Kind),
			BaseID:     si.BaseID,
			Expiry:     si.Expiry,
			Strike:     si.Strike,
			OptionKind: domain.OptionKind(si.OptionKind),
		}
		if err := e.AddInstrument(inst); err != nil {
			return errors.Wrap(err, "seed instrument")
		}
	}
	for id, b := range s.Books {
		e.SetBook(id, seedLevels(b.Bids), seedLevels(b.Asks))
	}
	for id, v := range s.Positions {
		e.SetPosition(id, v)
	}
	return nil
}

func seedLevels(in []SeedLevel) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(in))
	for _, l := range in {
		out = append(out, domain.PriceLevel{Price: l.Price, Volume: l.Volume})
	}
	return out
}
