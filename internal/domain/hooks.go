package domain

// HookConfig defines scripts for a single operation type (deploy or undeploy)
type HookConfig struct {
	BeforeAll string `yaml:"before_all"`
	AfterAll  string `yaml:"after_all"`
}

// IsEmpty returns true if no hooks are configured
func (h HookConfig) IsEmpty() bool {
	return h.BeforeAll == "" && h.AfterAll == ""
}

// GameHooks contains all hooks for a game
type GameHooks struct {
	Deploy   HookConfig `yaml:"deploy"`
	Undeploy HookConfig `yaml:"undeploy"`
}

// IsEmpty returns true if no hooks are configured
func (h GameHooks) IsEmpty() bool {
	return h.Deploy.IsEmpty() && h.Undeploy.IsEmpty()
}
