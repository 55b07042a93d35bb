package models

// ProductType is the persisted reference to a catalog product. Subscriptions
// point at product types rather than at catalog entries, so catalog
// membership can change without touching subscription rows. Stale types
// (no matching catalog product) are retained until an operator confirms
// deletion.
type ProductType struct {
	ID   int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Name string `gorm:"column:name;not null;uniqueIndex"`
}
