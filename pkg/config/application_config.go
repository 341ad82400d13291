package config

// ApplicationConfiguration config specific to the node.
type ApplicationConfiguration struct {
	LogLevel   string       `yaml:"LogLevel"`
	LogPath    string       `yaml:"LogPath"`
	Pprof      BasicService `yaml:"Pprof"`
	Prometheus BasicService `yaml:"Prometheus"`
	RPC        RPC          `yaml:"RPC"`
}
