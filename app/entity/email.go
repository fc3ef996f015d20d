package entity

// RenderedEmail is provider-ready content built from a queued message.
type RenderedEmail struct {
	To      string
	From    string
	Subject string
	HTML    string
	Text    string
}
