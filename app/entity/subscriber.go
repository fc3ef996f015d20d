package entity

// Subscriber is a mailing list row owned by the subscription store.
type Subscriber struct {
	Email     string
	Code      string
	Confirmed bool
}
