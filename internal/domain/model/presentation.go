package model

// Presentation is what a guesser is shown for today's puzzle. Exactly one
// of QuoteText, PictureRef or Classic is set, depending on Variant.
type Presentation struct {
	Date       string          `json:"date"`
	Variant    Variant         `json:"variant"`
	QuoteText  string          `json:"quote_text,omitempty"`
	PictureRef string          `json:"picture_ref,omitempty"`
	Classic    *ClassicSummary `json:"classic,omitempty"`
}

// ClassicSummary lists the attributes a classic guess is scored on.
type ClassicSummary struct {
	Attributes []Attribute `json:"attributes"`
}
