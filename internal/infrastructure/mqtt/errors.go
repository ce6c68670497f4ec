package mqtt

import "errors"

// Sentinel errors for broker operations, matched with errors.Is. The
// mqtt-device adapter maps all of them onto its unreachable failure kind,
// so the distinctions here matter mostly for logs.
var (
	// ErrNotConnected: the broker link is down and the operation was not attempted.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed: the initial Connect did not reach the broker.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed: the broker did not acknowledge a publish.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed: the broker did not acknowledge a subscription.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrUnsubscribeFailed: the broker did not acknowledge an unsubscribe.
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrInvalidQoS: qos outside 0..2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic: empty topic.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")
)
