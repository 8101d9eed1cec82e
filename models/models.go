package models

// All lists every table for AutoMigrate.
func All() []any {
	return []any{
		&User{},
		&FoodScan{},
		&FoodScanItem{},
		&Payment{},
		&Alert{},
		&UserDevice{},
		&ContactMessage{},
	}
}
