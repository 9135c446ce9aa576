package model

// Redemption is a successful offer redemption. A value only exists when
// every field came back from the loyalty API.
type Redemption struct {
	Code        string `json:"redemptionText"`
	Title       string `json:"title"`
	Description string `json:"description"`
	OfferID     string `json:"id"`
	// AuthDegraded is set when device registration failed and the
	// redemption went out without a bearer token.
	AuthDegraded bool `json:"-"`
}
