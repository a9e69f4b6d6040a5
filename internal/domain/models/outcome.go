package models

// Verdict is the validator's classification of one observation.
type Verdict string

const (
	VerdictAccepted Verdict = "accepted"
	VerdictFlagged  Verdict = "flagged"
	VerdictRejected Verdict = "rejected"
)

// Validation reasons. First matching rule wins.
const (
	ReasonStructural       = "structural"
	ReasonNonPositivePrice = "non_positive_price"
	ReasonOHLCOrder        = "ohlc_order"
	ReasonPriceJump        = "price_jump"
)

// ValidationOutcome tags an observation as accepted, flagged (stored with an
// annotation) or rejected (counted, never stored).
type ValidationOutcome struct {
	Verdict Verdict
	Reason  string
}

func Accepted() ValidationOutcome {
	return ValidationOutcome{Verdict: VerdictAccepted}
}

func Flagged(reason string) ValidationOutcome {
	return ValidationOutcome{Verdict: VerdictFlagged, Reason: reason}
}

func Rejected(reason string) ValidationOutcome {
	return ValidationOutcome{Verdict: VerdictRejected, Reason: reason}
}

// Storable reports whether the record survives to the loading phase.
func (o ValidationOutcome) Storable() bool {
	return o.Verdict == VerdictAccepted || o.Verdict == VerdictFlagged
}
