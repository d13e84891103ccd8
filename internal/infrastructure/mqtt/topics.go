package mqtt

// TopicPrefix is the root of every topic the bridge publishes or consumes.
const TopicPrefix = "hcbridge"

// Topics builds the bridge's MQTT topic names.
type Topics struct{}

// SystemStatus carries the retained online/offline status and the last will.
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// Pass carries the report of each completed sync pass.
func (Topics) Pass() string {
	return TopicPrefix + "/pass"
}

// Accessory carries lifecycle events (registered, updated, removed) for one
// accessory, keyed by accessory key.
func (Topics) Accessory(key string) string {
	return TopicPrefix + "/accessory/" + key
}

// SyncCommand requests an immediate sync pass.
func (Topics) SyncCommand() string {
	return TopicPrefix + "/command/sync"
}
