package cards

// BuffType names the property a buff modifies.
type BuffType string

const (
	BuffPower  BuffType = "power"
	BuffHealth BuffType = "health"
	BuffGrade  BuffType = "grade"
	BuffShield BuffType = "shield"
	BuffPierce BuffType = "pierce"
)

// BuffOp names how a buff's amount combines with the current value.
type BuffOp string

const (
	OpAdd      BuffOp = "add"
	OpMultiply BuffOp = "multiply"
	OpCustom   BuffOp = "custom"
)

// Buff is a reversible modifier on one property of one card. The source card
// is referenced by ID only and resolved when a sweep needs it.
type Buff struct {
	ID       string    `json:"id"`
	SourceID string    `json:"source_id,omitempty"`
	Type     BuffType  `json:"type"`
	Op       BuffOp    `json:"op"`
	Amount   int       `json:"amount"`
	Resets   BuffReset `json:"resets"`

	// Zone is where the target sat when the buff was granted.
	Zone Location `json:"zone"`

	// AmountFn, when set, replaces Amount and is evaluated on every fold.
	AmountFn func(board *Board, card *Card) int `json:"-"`
	// Transform implements OpCustom.
	Transform func(current, amount int) int `json:"-"`
}
