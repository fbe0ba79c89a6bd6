package events

import "github.com/dshills/heft/internal/event/topic"

// Configuration topics.
const (
	// TopicConfigReloaded fires after the configuration file changed on
	// disk and the merged configuration was rebuilt. Documents opened
	// after this point see the new settings; decided documents keep
	// their verdicts.
	TopicConfigReloaded topic.Topic = "config.reloaded"
)

// ConfigReloadedPayload accompanies TopicConfigReloaded.
type ConfigReloadedPayload struct {
	// Path is the configuration file that changed.
	Path string
}
