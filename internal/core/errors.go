package core

// Error reasons reported to clients in error frames.
const (
	// Protocol errors.
	ReasonBadJSON     = "bad_json"
	ReasonUnknownType = "unknown_type"

	// Authorization errors.
	ReasonNotInRoom          = "not_in_room"
	ReasonNotHost            = "not_host"
	ReasonAuthRequired       = "authentication_required"
	ReasonInvalidCredentials = "invalid_credentials"

	// Domain errors.
	ReasonRoomNotFound    = "room_not_found"
	ReasonVersionMismatch = "version_mismatch"
	ReasonNameTaken       = "name_taken"
	ReasonBanned          = "banned"
	ReasonAlreadyInRoom   = "already_in_room"
	ReasonInvalidTarget   = "invalid_target"

	// Storage failures surfaced to the sender.
	ReasonStorageFailure = "storage_failure"
)

// DomainError is a structured outcome of a registry operation. It is
// returned as a value, never raised through the connection loop.
type DomainError struct {
	Reason string
}

func (e *DomainError) Error() string {
	return e.Reason
}

var (
	errRoomNotFound    = &DomainError{Reason: ReasonRoomNotFound}
	errVersionMismatch = &DomainError{Reason: ReasonVersionMismatch}
	errNameTaken       = &DomainError{Reason: ReasonNameTaken}
	errBanned          = &DomainError{Reason: ReasonBanned}
)
