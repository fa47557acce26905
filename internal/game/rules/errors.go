package rules

import (
	"errors"
	"fmt"
)

// ErrIntegrity marks faults that indicate a bug or corrupt reference data
// rather than a bad player action.
var ErrIntegrity = errors.New("integrity fault")

// Reason codes sent to players whose action was refused.
const (
	ReasonNotYourTurn       = "NOT_YOUR_TURN"
	ReasonWrongPhase        = "WRONG_PHASE"
	ReasonInvalidCard       = "INVALID_CARD"
	ReasonInvalidTarget     = "INVALID_TARGET"
	ReasonInvalidMaterials  = "INVALID_MATERIALS"
	ReasonColumnOccupied    = "COLUMN_OCCUPIED"
	ReasonInvalidColumn     = "INVALID_COLUMN"
	ReasonNoRecipe          = "NO_RECIPE"
	ReasonConditionFailed   = "CONDITION_FAILED"
	ReasonLimitReached      = "LIMIT_REACHED"
	ReasonAlreadyAttacked   = "ALREADY_ATTACKED"
	ReasonSetLimitReached   = "SET_LIMIT_REACHED"
	ReasonResolutionPending = "RESOLUTION_PENDING"
	ReasonMatchNotRunning   = "MATCH_NOT_RUNNING"
	ReasonUnknownPlayer     = "UNKNOWN_PLAYER"
	ReasonNoSuchEffect      = "NO_SUCH_EFFECT"
	ReasonInvalidChoice     = "INVALID_CHOICE"
	ReasonNotChoosingPlayer = "NOT_CHOOSING_PLAYER"
	ReasonMalformedPayload  = "MALFORMED_PAYLOAD"
	ReasonUnknownOpCode     = "UNKNOWN_OPCODE"
	ReasonInternalError     = "INTERNAL_ERROR"
)

// RuleError is a refused player action. It never changes game state.
type RuleError struct {
	Reason string
	Detail string
}

func (e *RuleError) Error() string {
	if e.Detail == "" {
		return e.Reason
	}
	return e.Reason + ": " + e.Detail
}

// Reject builds a RuleError with a formatted detail.
func Reject(reason, format string, args ...any) *RuleError {
	return &RuleError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// ReasonOf extracts the reason code of a RuleError anywhere in err's chain.
func ReasonOf(err error) (string, bool) {
	var re *RuleError
	if errors.As(err, &re) {
		return re.Reason, true
	}
	return "", false
}
