package config

import (
	"fmt"
	"os"
	"path/filepath"

	sdkmath "cosmossdk.io/math"
	"github.com/BurntSushi/toml"
)

// Config is the protocol-level configuration for the lending service.
type Config struct {
	DataDir            string `toml:"DataDir"`
	ListenAddress      string `toml:"ListenAddress"`
	ModuleAddress      string `toml:"ModuleAddress"`
	CreditManager      string `toml:"CreditManagerAddress"`
	Incentives         string `toml:"IncentivesAddress"`
	FeeCollector       string `toml:"FeeCollectorAddress"`
	Owner              string `toml:"OwnerAddress"`
	EmergencyOwner     string `toml:"EmergencyOwnerAddress"`
	TargetHealthFactor string `toml:"TargetHealthFactor"`

	DefaultInterestModel InterestModelConfig `toml:"DefaultInterestModel"`
}

// InterestModelConfig is the rate curve a market starts with when the init
// call does not override it.
type InterestModelConfig struct {
	OptimalUtilization string `toml:"OptimalUtilization"`
	Base               string `toml:"Base"`
	Slope1             string `toml:"Slope1"`
	Slope2             string `toml:"Slope2"`
}

func defaultConfig() *Config {
	return &Config{
		DataDir:            "./data",
		ListenAddress:      "0.0.0.0:8645",
		TargetHealthFactor: "1.05",
		DefaultInterestModel: InterestModelConfig{
			OptimalUtilization: "0.8",
			Base:               "0",
			Slope1:             "0.07",
			Slope2:             "0.45",
		},
	}
}

// Load reads the configuration from path, creating a default file when none
// exists.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path, cfg)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func createDefault(path string, cfg *Config) (*Config, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the numeric fields parse and sit in their allowed ranges.
func (c *Config) Validate() error {
	thf, err := sdkmath.LegacyNewDecFromStr(c.TargetHealthFactor)
	if err != nil {
		return fmt.Errorf("config: TargetHealthFactor %q: %w", c.TargetHealthFactor, err)
	}
	if thf.LTE(sdkmath.LegacyOneDec()) {
		return fmt.Errorf("config: TargetHealthFactor %s must exceed 1", thf)
	}
	if _, err := c.DefaultInterestModel.Decode(); err != nil {
		return err
	}
	return nil
}

// TargetHF returns the parsed target health factor. Validate must have
// passed.
func (c *Config) TargetHF() sdkmath.LegacyDec {
	return sdkmath.LegacyMustNewDecFromStr(c.TargetHealthFactor)
}

// Decode parses the four curve parameters.
func (m InterestModelConfig) Decode() (parsed struct {
	OptimalUtilization sdkmath.LegacyDec
	Base               sdkmath.LegacyDec
	Slope1             sdkmath.LegacyDec
	Slope2             sdkmath.LegacyDec
}, err error) {
	fields := []struct {
		name  string
		value string
		out   *sdkmath.LegacyDec
	}{
		{"OptimalUtilization", m.OptimalUtilization, &parsed.OptimalUtilization},
		{"Base", m.Base, &parsed.Base},
		{"Slope1", m.Slope1, &parsed.Slope1},
		{"Slope2", m.Slope2, &parsed.Slope2},
	}
	for _, f := range fields {
		d, derr := sdkmath.LegacyNewDecFromStr(f.value)
		if derr != nil {
			return parsed, fmt.Errorf("config: DefaultInterestModel.%s %q: %w", f.name, f.value, derr)
		}
		*f.out = d
	}
	return parsed, nil
}
