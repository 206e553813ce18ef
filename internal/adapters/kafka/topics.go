package kafka

// Topic definitions for Kafka event streaming
const (
	// Risk events
	TopicRiskAlert     = "risk.alerts"
	TopicRiskEmergency = "risk.emergency"

	// Position events
	TopicSnapshotTaken = "position.snapshots"
)
