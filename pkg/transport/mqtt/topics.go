package mqtt

import "strconv"

// Topics derives the topics of one controller, all below
// feeder/<controller-id>/.
type Topics struct {
	Controller string
}

// TopicRoot is the first level of every feeder topic.
const TopicRoot = "feeder"

// Base is the topic prefix of the controller.
func (t Topics) Base() string {
	return TopicRoot + "/" + t.Controller
}

// Command is where hosts publish command frames.
func (t Topics) Command() string {
	return t.Base() + "/cmd"
}

// Response is where the controller publishes response frames.
func (t Topics) Response() string {
	return t.Base() + "/rsp"
}

// Meta holds the retained controller description.
func (t Topics) Meta() string {
	return t.Base() + "/meta"
}

// Status holds the retained status of one feeder.
func (t Topics) Status(feeder uint8) string {
	return t.Base() + "/status/" + strconv.Itoa(int(feeder))
}

// StatusWildcard matches the status of every feeder of every controller.
const StatusWildcard = TopicRoot + "/+/status/+"

// MetaWildcard matches the description of every controller.
const MetaWildcard = TopicRoot + "/+/meta"
