package mqtt

// Topic scheme:
//
//	wonderback/system/status          retained server online/offline status
//	wonderback/issues/<package>       issues found for one app package
//	wonderback/session/summary        summary published when a session ends
//
// Dashboards subscribe with wonderback/# to see everything.

const topicPrefix = "wonderback"

// Topics builds topic strings. Zero value is ready to use.
type Topics struct{}

// SystemStatus is the retained server status topic.
func (Topics) SystemStatus() string {
	return topicPrefix + "/system/status"
}

// Issues is the topic for issues found in the given app package. An empty
// package falls back to "unknown" so the topic stays valid.
func (Topics) Issues(packageName string) string {
	if packageName == "" {
		packageName = "unknown"
	}
	return topicPrefix + "/issues/" + packageName
}

// SessionSummary is the topic for end-of-session summaries.
func (Topics) SessionSummary() string {
	return topicPrefix + "/session/summary"
}
