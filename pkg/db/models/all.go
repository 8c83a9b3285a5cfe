package models

// All lists every model in dependency order; tests auto-migrate it on SQLite.
func All() []any {
	return []any{
		&Product{},
		&PurchasableUnit{},
		&InventoryRecord{},
		&Promotion{},
		&Cart{},
		&CartLine{},
		&Order{},
		&OrderLine{},
		&Payment{},
		&OrderCounter{},
		&OutboxEvent{},
	}
}
