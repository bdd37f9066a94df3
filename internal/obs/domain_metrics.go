package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// SalesCommittedTotal counts sale commit outcomes by payment mode.
	SalesCommittedTotal *prometheus.CounterVec
	// SaleAmountCents records committed sale totals in cents.
	SaleAmountCents *prometheus.HistogramVec
	// DebtsCreatedTotal counts debts created by under-paid credit sales.
	DebtsCreatedTotal prometheus.Counter
	// DebtPaymentsTotal counts debt payment rows by origin.
	DebtPaymentsTotal *prometheus.CounterVec
	// ProductLookupTotal counts product resolution attempts by kind and result.
	ProductLookupTotal *prometheus.CounterVec
	// ScannerClassificationsTotal counts keystroke-burst classifications.
	ScannerClassificationsTotal *prometheus.CounterVec
	// WebhookDeliveriesTotal counts webhook delivery attempts by result.
	WebhookDeliveriesTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		SalesCommittedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sales_committed_total",
			Help:      "Count of sale commit attempts by payment mode and result.",
		}, []string{"mode", "result"})
		SaleAmountCents = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sale_amount_cents",
			Help:      "Distribution of committed sale totals in cents.",
			Buckets:   []float64{100, 500, 1000, 2500, 5000, 10000, 25000, 50000, 100000},
		}, []string{"mode"})
		DebtsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "debts_created_total",
			Help:      "Number of debts created by under-paid credit sales.",
		})
		DebtPaymentsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "debt_payments_total",
			Help:      "Count of debt payment rows by origin (sale or allocation).",
		}, []string{"source"})
		ProductLookupTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "product_lookup_total",
			Help:      "Count of product lookups by kind and result.",
		}, []string{"kind", "result"})
		ScannerClassificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scanner_classifications_total",
			Help:      "Count of keystroke-burst classifications by outcome.",
		}, []string{"outcome"})
		WebhookDeliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_deliveries_total",
			Help:      "Count of webhook delivery attempts by result.",
		}, []string{"result"})

		mustRegisterCollector(reg, SalesCommittedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				SalesCommittedTotal = v
			}
		})
		mustRegisterCollector(reg, SaleAmountCents, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				SaleAmountCents = v
			}
		})
		mustRegisterCollector(reg, DebtsCreatedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				DebtsCreatedTotal = v
			}
		})
		mustRegisterCollector(reg, DebtPaymentsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				DebtPaymentsTotal = v
			}
		})
		mustRegisterCollector(reg, ProductLookupTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ProductLookupTotal = v
			}
		})
		mustRegisterCollector(reg, ScannerClassificationsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ScannerClassificationsTotal = v
			}
		})
		mustRegisterCollector(reg, WebhookDeliveriesTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				WebhookDeliveriesTotal = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, replace func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			replace(are.ExistingCollector)
			return
		}
		panic(fmt.Errorf("register collector: %w", err))
	}
}
