package model

// CounterSales names the sale number counter.
const CounterSales = "sales"

// Counter is a named monotonic sequence for dialects without native
// sequences. Incrementing it inside a transaction row-locks it until commit.
type Counter struct {
	Name  string `gorm:"type:varchar(64);primaryKey"`
	Value int64  `gorm:"not null"`
}
