package params

type ListenerConfig struct {
	Network string
	Address string
}

// WebDaemonConfig configures the HTTP daemon serving tiles and
// composites to on-device collaborators (display loop, portal UI).
type WebDaemonConfig struct {
	ListenerConfig
	EngineConfig *EngineConfig
}

func DefaultWebDaemonConfig() *WebDaemonConfig {
	return &WebDaemonConfig{
		ListenerConfig: ListenerConfig{
			Network: "tcp",
			Address: "localhost:8971",
		},
		EngineConfig: DefaultEngineConfig(),
	}
}
