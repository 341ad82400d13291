package config

type (
	// RPC is an RPC service configuration information.
	RPC struct {
		BasicService          `yaml:",inline"`
		EnableCORSWorkaround  bool `yaml:"EnableCORSWorkaround"`
		MaxRequestBodyBytes   int  `yaml:"MaxRequestBodyBytes"`
		MaxRequestHeaderBytes int  `yaml:"MaxRequestHeaderBytes"`
		MaxWebSocketClients   int  `yaml:"MaxWebSocketClients"`
		TLSConfig             TLS  `yaml:"TLSConfig"`
	}

	// TLS describes SSL/TLS configuration.
	TLS struct {
		BasicService `yaml:",inline"`
		CertFile     string `yaml:"CertFile"`
		KeyFile      string `yaml:"KeyFile"`
	}
)
