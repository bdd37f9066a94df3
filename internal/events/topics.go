package events

// Topic constants for domain events emitted by the engine.
const (
	TopicSaleCommitted       = "sale.committed"
	TopicDebtCreated         = "debt.created"
	TopicDebtPaymentRecorded = "debt.payment.recorded"
)

// DefaultTopics returns the canonical list of topics that support
// webhook subscriptions.
func DefaultTopics() []string {
	return []string{
		TopicSaleCommitted,
		TopicDebtCreated,
		TopicDebtPaymentRecorded,
	}
}
