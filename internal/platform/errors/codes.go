package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Action algebra errors
	CodeCannotPerformAction Code = "CANNOT_PERFORM_ACTION"
	CodeCannotSkipAction    Code = "CANNOT_SKIP_ACTION"
	CodeNoAction            Code = "NO_ACTION"

	// Lifecycle errors
	CodeGameAlreadyStarted  Code = "GAME_ALREADY_STARTED"
	CodeGameNotStarted      Code = "GAME_NOT_STARTED"
	CodeGameAlreadyEnded    Code = "GAME_ALREADY_ENDED"
	CodeAlreadyAbandoned    Code = "ALREADY_ABANDONED"
	CodeCannotUndo          Code = "CANNOT_UNDO"
	CodeHistoryNotAvailable Code = "HISTORY_NOT_AVAILABLE"
	CodeCannotAbandon       Code = "CANNOT_ABANDON"
	CodeCannotForceEndTurn  Code = "CANNOT_FORCE_END_TURN"
	CodeAlreadyResponded    Code = "ALREADY_RESPONDED"
	CodeNotAccepted         Code = "NOT_ACCEPTED"
	CodeAlreadyLeft         Code = "ALREADY_LEFT"

	// Authorization errors
	CodeNotYourTurn          Code = "NOT_YOUR_TURN"
	CodeNotPlayerInGame      Code = "NOT_PLAYER_IN_GAME"
	CodeMustBeOwner          Code = "MUST_BE_OWNER"
	CodeNotPublic            Code = "NOT_PUBLIC"
	CodeCannotKick           Code = "CANNOT_KICK"
	CodeNotComputer          Code = "NOT_COMPUTER"
	CodeComputerNotSupported Code = "COMPUTER_NOT_SUPPORTED"

	// Rule errors
	CodeInGameError Code = "IN_GAME_ERROR"

	// Capacity errors
	CodeExceedsMaxPlayers      Code = "EXCEEDS_MAX_PLAYERS"
	CodeMinPlayers             Code = "MIN_PLAYERS"
	CodeAlreadyInvited         Code = "ALREADY_INVITED"
	CodeExceedsMaxActiveTables Code = "EXCEEDS_MAX_ACTIVE_TABLES"

	// Concurrency errors
	CodeConcurrentModification Code = "CONCURRENT_MODIFICATION"

	// Storage errors
	CodeNotFound     Code = "NOT_FOUND"
	CodeGameNotFound Code = "GAME_NOT_FOUND"

	// Input errors
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeInvalidCursor   Code = "INVALID_CURSOR"
)

// HTTPStatus maps the code to the HTTP status a transport should answer with.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound, CodeGameNotFound:
		return http.StatusNotFound
	case CodeInvalidArgument, CodeInvalidCursor:
		return http.StatusBadRequest
	case CodeNotYourTurn, CodeNotPlayerInGame, CodeMustBeOwner, CodeNotPublic,
		CodeCannotKick, CodeNotComputer:
		return http.StatusForbidden
	case CodeInGameError, CodeCannotPerformAction, CodeCannotSkipAction, CodeNoAction,
		CodeComputerNotSupported:
		return http.StatusUnprocessableEntity
	case CodeGameAlreadyStarted, CodeGameNotStarted, CodeGameAlreadyEnded, CodeAlreadyAbandoned,
		CodeCannotUndo, CodeHistoryNotAvailable, CodeCannotAbandon, CodeCannotForceEndTurn,
		CodeAlreadyResponded, CodeNotAccepted, CodeAlreadyLeft,
		CodeExceedsMaxPlayers, CodeMinPlayers, CodeAlreadyInvited, CodeExceedsMaxActiveTables,
		CodeConcurrentModification:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
