package types

type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

func (d Direction) Valid() bool {
	return d == DirectionIn || d == DirectionOut
}

// VisitEvent is one immutable ledger entry. The declaration payload is only
// meaningful for IN events.
type VisitEvent struct {
	ID                 string    `json:"id"`
	WorkerID           string    `json:"workerId"`
	Direction          Direction `json:"direction"`
	Timestamp          string    `json:"timestamp"`
	PPEWorn            []string  `json:"ppeWorn,omitempty"`
	InductionConfirmed bool      `json:"inductionConfirmed"`
	RAMSConfirmed      bool      `json:"ramsConfirmed"`
	Notes              string    `json:"notes,omitempty"`
}

// Declarations are the acknowledgements captured on the sign-in form.
type Declarations struct {
	PPEWorn            []string `json:"ppeWorn,omitempty"`
	InductionConfirmed bool     `json:"inductionConfirmed"`
	RAMSConfirmed      bool     `json:"ramsConfirmed"`
	SiteRulesAck       bool     `json:"siteRulesAck"`
	Notes              string   `json:"notes,omitempty"`
}
