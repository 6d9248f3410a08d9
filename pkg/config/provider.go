package config

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration, with defaults applied and validated
	LoadConfig() (*ConfigData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Feed       FeedData       `json:"feed"`
	Timing     TimingData     `json:"timing"`
	Controller ControllerData `json:"controller"`
	RESTServer RESTServerData `json:"rest"`
}

// FeedData configures the vehicle count feed
type FeedData struct {
	URL         string `json:"url,omitempty"`
	Timeout     string `json:"timeout,omitempty"`
	FallbackMin int    `json:"fallback_min,omitempty"`
	FallbackMax int    `json:"fallback_max,omitempty"`
}

// TimingData holds the green time allocation parameters
type TimingData struct {
	BaseSeconds   int `json:"base_seconds"`
	BudgetSeconds int `json:"budget_seconds"`
}

// ControllerData configures the refresh loop and the operator's initial choice
type ControllerData struct {
	RefreshInterval string `json:"refresh_interval,omitempty"`
	Mode            string `json:"mode,omitempty"`
	ManualApproach  string `json:"manual_approach,omitempty"`
	Seed            uint64 `json:"seed,omitempty"`
}

// RESTServerData configures the REST API that exposes each cycle
type RESTServerData struct {
	ListenAddr string `json:"listen_addr,omitempty"`
	Port       int    `json:"port,omitempty"`
	Cert       string `json:"cert,omitempty"`
	Key        string `json:"key,omitempty"`
	EnableCORS bool   `json:"enable_cors,omitempty"`
}
