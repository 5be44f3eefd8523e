package model

// OutboundEmail is a fully rendered message ready for delivery.
type OutboundEmail struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	HTMLBody string `json:"html_body"`
}
