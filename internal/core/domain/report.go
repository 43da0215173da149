package domain

// PopulationStats is the raw material for the survivor reports.
type PopulationStats struct {
	Survivors      int `db:"survivors"`
	Infected       int `db:"infected"`
	TotalResources int `db:"total_resources"`
}
