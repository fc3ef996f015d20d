package entity

const (
	DeliveryStatusSent         int16 = 10
	DeliveryStatusFailed       int16 = 40
	DeliveryStatusDeadLettered int16 = 50
)

// DeliveryRecord is the outcome of one attempt to deliver a queued message.
type DeliveryRecord struct {
	MessageID string
	Kind      string
	Recipient string
	Status    int16
	Attempts  int
	LastError string
}
