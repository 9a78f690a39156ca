package models

import "time"

// EventType identifies a lifecycle event emitted by the engine.
type EventType string

const (
	EventDecisionMade       EventType = "DECISION_MADE"
	EventPositionOpened     EventType = "POSITION_OPENED"
	EventPositionClosed     EventType = "POSITION_CLOSED"
	EventCommandAcknowledge EventType = "COMMAND_ACK"
	EventError              EventType = "ERROR"
)

// Event is a lifecycle or decision event consumed by the notification
// sink. Exactly one of the payload pointers is set, matching Type.
type Event struct {
	Type      EventType
	Timestamp time.Time

	Decision   *ConsensusResult
	Position   *Position
	Trade      *Trade
	CommandAck *CommandAck
	Err        *ErrorPayload
}

// CommandAck acknowledges an operator command, including unknown ones.
type CommandAck struct {
	Command string
	Message string
}

// ErrorPayload carries an error surfaced to the operator.
type ErrorPayload struct {
	Context  string
	Message  string
	Severity ErrorSeverity
}

// ErrorSeverity grades operator-facing errors.
type ErrorSeverity string

const (
	SeverityWarning  ErrorSeverity = "WARNING"
	SeverityCritical ErrorSeverity = "CRITICAL"
)

// CommandType identifies an operator command.
type CommandType string

const (
	CommandPause    CommandType = "PAUSE"
	CommandResume   CommandType = "RESUME"
	CommandCloseAll CommandType = "CLOSEALL"
	CommandStatus   CommandType = "STATUS"
	CommandSettings CommandType = "SETTINGS"
	CommandHelp     CommandType = "HELP"
	CommandUnknown  CommandType = "UNKNOWN"
)

// CommandEvent is a parsed operator command. Ephemeral, consumed once.
type CommandEvent struct {
	Type     CommandType
	RawText  string
	IssuedAt time.Time
}
