package models

// Requests for the observations HTTP endpoints. Defined in domain for consistency and reuse.

type LatestRequest struct {
	Class      string `query:"class" json:"class" validate:"required,oneof=equity crypto forex"`
	Instrument string `query:"instrument" json:"instrument" validate:"required"`
}

type RangeRequest struct {
	Class      string `query:"class" json:"class" validate:"required,oneof=equity crypto forex"`
	Instrument string `query:"instrument" json:"instrument" validate:"required"`
	From       string `query:"from" json:"from"`
	To         string `query:"to" json:"to"`
	Limit      string `query:"limit" json:"limit"`
}
