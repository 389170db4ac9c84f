package models

// Money values are int64 amounts in the smallest currency unit. Floats are
// never used for money anywhere in this codebase.

// AmountBreakdown splits a total into its priced parts.
type AmountBreakdown struct {
	Base     int64  `bson:"base" json:"base"`
	Taxes    int64  `bson:"taxes" json:"taxes"`
	Discount int64  `bson:"discount" json:"discount"`
	Total    int64  `bson:"total" json:"total"`
	Currency string `bson:"currency" json:"currency"`
}
