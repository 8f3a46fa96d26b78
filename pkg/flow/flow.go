// Package flow handles parsing and representation of YAML flow files.
package flow

// Flow represents a parsed flow file.
type Flow struct {
	SourcePath string // Path to the source file
	Config     Config // Flow configuration (appId, tags, etc.)
	Steps      []Step // Steps to execute
}

// Config represents flow-level configuration.
type Config struct {
	AppID          string            `yaml:"appId"`
	URL            string            `yaml:"url"` // Web app URL (alternative to appId)
	Name           string            `yaml:"name"`
	Tags           []string          `yaml:"tags"`
	Env            map[string]string `yaml:"env"`
	Timeout        int               `yaml:"timeout"` // Flow timeout in ms
	WaitForIdleTimeout *int          `yaml:"waitForIdleTimeout"` // Per-flow override in ms (nil = not set)
	OnFlowStart    []Step            `yaml:"-"`       // Lifecycle hook: runs before commands
	OnFlowComplete []Step            `yaml:"-"`       // Lifecycle hook: runs after commands
	Ext            map[string]string `yaml:"-"`       // Resolved from an applyConfiguration command, if present
}
