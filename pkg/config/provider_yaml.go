package config

import (
	"os"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads the complete configuration from YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	return ParseYAML(cfgFile)
}

// ParseYAML converts YAML configuration bytes into ConfigData
func ParseYAML(data []byte) (*ConfigData, error) {
	var yamlConfig ConfigYAML
	if err := yaml.UnmarshalStrict(data, &yamlConfig); err != nil {
		return nil, err
	}

	config := &ConfigData{
		Feed: FeedData{
			URL:         yamlConfig.Feed.URL,
			Timeout:     yamlConfig.Feed.Timeout,
			FallbackMin: yamlConfig.Feed.FallbackMin,
			FallbackMax: yamlConfig.Feed.FallbackMax,
		},
		Timing: TimingData{
			BaseSeconds:   yamlConfig.Timing.BaseSeconds,
			BudgetSeconds: yamlConfig.Timing.BudgetSeconds,
		},
		Controller: ControllerData{
			RefreshInterval: yamlConfig.Controller.RefreshInterval,
			Mode:            yamlConfig.Controller.Mode,
			ManualApproach:  yamlConfig.Controller.ManualApproach,
			Seed:            yamlConfig.Controller.Seed,
		},
		RESTServer: RESTServerData{
			ListenAddr: yamlConfig.REST.ListenAddr,
			Port:       yamlConfig.REST.Port,
			Cert:       yamlConfig.REST.Cert,
			Key:        yamlConfig.REST.Key,
			EnableCORS: yamlConfig.REST.EnableCORS,
		},
	}

	if err := config.Finalize(); err != nil {
		return nil, err
	}
	return config, nil
}

// IsReadOnly returns true since YAML files are read-only in this implementation
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}

// YAML-specific structs that match the on-disk layout

type ConfigYAML struct {
	Feed       FeedYAML       `yaml:"feed,omitempty"`
	Timing     TimingYAML     `yaml:"timing,omitempty"`
	Controller ControllerYAML `yaml:"controller,omitempty"`
	REST       RESTServerYAML `yaml:"rest,omitempty"`
}

type FeedYAML struct {
	URL         string `yaml:"url,omitempty"`
	Timeout     string `yaml:"timeout,omitempty"`
	FallbackMin int    `yaml:"fallback-min,omitempty"`
	FallbackMax int    `yaml:"fallback-max,omitempty"`
}

type TimingYAML struct {
	BaseSeconds   int `yaml:"base-seconds,omitempty"`
	BudgetSeconds int `yaml:"budget-seconds,omitempty"`
}

type ControllerYAML struct {
	RefreshInterval string `yaml:"refresh-interval,omitempty"`
	Mode            string `yaml:"mode,omitempty"`
	ManualApproach  string `yaml:"manual-approach,omitempty"`
	Seed            uint64 `yaml:"seed,omitempty"`
}

type RESTServerYAML struct {
	ListenAddr string `yaml:"listen-addr,omitempty"`
	Port       int    `yaml:"port,omitempty"`
	Cert       string `yaml:"cert,omitempty"`
	Key        string `yaml:"key,omitempty"`
	EnableCORS bool   `yaml:"enable-cors,omitempty"`
}
