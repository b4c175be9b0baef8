package mqtt

import "strings"

// Topics builds topic names under a common prefix.
type Topics struct {
	Prefix string
}

// Status carries the retained online/offline marker.
func (t Topics) Status() string {
	return t.Prefix + "/status"
}

func (t Topics) State(entityID string) string {
	return t.Prefix + "/" + entityID + "/state"
}

func (t Topics) Command(entityID string) string {
	return t.Prefix + "/" + entityID + "/set"
}

// AllCommands matches the command topic of every light.
func (t Topics) AllCommands() string {
	return t.Prefix + "/+/set"
}

// EntityFromCommand extracts the entity id from a command topic.
func (t Topics) EntityFromCommand(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, t.Prefix+"/")
	if !ok {
		return "", false
	}
	entityID, ok := strings.CutSuffix(rest, "/set")
	if !ok || entityID == "" || strings.Contains(entityID, "/") {
		return "", false
	}
	return entityID, true
}
