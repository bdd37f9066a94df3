package store

import (
	"time"

	"github.com/kuropos/backend-pos/internal/pricing"
)

// Product is a catalog entry. Master data is owned elsewhere; the engine
// only reads it to resolve lookups and price cart lines.
type Product struct {
	ID                   string        `json:"productId"`
	Code                 string        `json:"code"`
	Name                 string        `json:"name"`
	Stock                float64       `json:"stock"`
	BasePrice            pricing.Money `json:"basePrice"`
	AllowDecimalQuantity bool          `json:"allowDecimalQuantity"`
	IsTaxable            bool          `json:"isTaxable"`
	IsActive             bool          `json:"isActive"`
	CreatedAt            time.Time     `json:"createdAt"`
	UpdatedAt            time.Time     `json:"updatedAt"`
}

// Customer carries the fields the settlement engine needs: identity and
// credit eligibility. The credit limit is informational, not enforced.
type Customer struct {
	ID          string        `json:"customerId"`
	Fullname    string        `json:"fullname"`
	Phone       string        `json:"phone,omitempty"`
	Email       string        `json:"email,omitempty"`
	Address     string        `json:"address,omitempty"`
	AllowCredit bool          `json:"allowCredit"`
	CreditLimit pricing.Money `json:"creditLimit"`
	IsActive    bool          `json:"isActive"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// Sale is an immutable committed transaction header.
type Sale struct {
	ID           string        `json:"saleId"`
	OperatorID   string        `json:"operatorId"`
	CustomerID   *string       `json:"customerId,omitempty"`
	TotalAmount  pricing.Money `json:"totalAmount"`
	IsPartOfDebt bool          `json:"isPartOfDebt"`
	FiscalStatus string        `json:"fiscalStatus"`
	IsActive     bool          `json:"isActive"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// SaleDetail is one committed cart line. Never updated after insert.
type SaleDetail struct {
	ID        string        `json:"saleDetailId"`
	SaleID    string        `json:"saleId"`
	ProductID string        `json:"productId"`
	Quantity  float64       `json:"quantity"`
	UnitPrice pricing.Money `json:"unitPrice"`
	Subtotal  pricing.Money `json:"subtotal"`
	TaxAmount pricing.Money `json:"taxAmount"`
	LineTotal pricing.Money `json:"lineTotal"`
}

// Debt records principal as originally incurred. The pending balance is
// always derived from payments, never written back to this row.
type Debt struct {
	ID         string        `json:"debtId"`
	CustomerID string        `json:"customerId"`
	Amount     pricing.Money `json:"amount"`
	CreatedAt  time.Time     `json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}

// DebtPayment is append-only settlement evidence against one debt.
type DebtPayment struct {
	ID          string        `json:"debtPaymentId"`
	DebtID      string        `json:"debtId"`
	OperatorID  string        `json:"operatorId"`
	AmountPaid  pricing.Money `json:"amountPaid"`
	PaymentDate time.Time     `json:"paymentDate"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// DebtWithPaid pairs a debt with the re-summed total of its payments.
type DebtWithPaid struct {
	Debt
	Paid pricing.Money `json:"paid"`
}

// DomainEvent is a persisted record of something the engine did.
type DomainEvent struct {
	ID          string    `json:"id"`
	Topic       string    `json:"topic"`
	AggregateID string    `json:"aggregateId"`
	Payload     []byte    `json:"payload"`
	OccurredAt  time.Time `json:"occurredAt"`
}
