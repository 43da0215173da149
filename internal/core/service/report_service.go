package service

import (
	"context"

	"github.com/rl1809/survivor-trade/internal/port"
)

type ReportService struct {
	db port.ReportRepository
}

func NewReportService(db port.ReportRepository) *ReportService {
	return &ReportService{db: db}
}

// InfectedPercentage is the share of active survivors flagged infected, in
// percent. 0 when nobody is registered.
func (s *ReportService) InfectedPercentage(ctx context.Context) (float64, error) {
	stats, err := s.db.PopulationStats(ctx)
	if err != nil {
		return 0, err
	}
	if stats.Survivors == 0 {
		return 0, nil
	}
	return float64(stats.Infected) / float64(stats.Survivors) * 100, nil
}

func (s *ReportService) NonInfectedPercentage(ctx context.Context) (float64, error) {
	stats, err := s.db.PopulationStats(ctx)
	if err != nil {
		return 0, err
	}
	if stats.Survivors == 0 {
		return 0, nil
	}
	return float64(stats.Survivors-stats.Infected) / float64(stats.Survivors) * 100, nil
}

// AverageResources is the total quantity held in active inventory entries
// divided by the number of active survivors.
func (s *ReportService) AverageResources(ctx context.Context) (float64, error) {
	stats, err := s.db.PopulationStats(ctx)
	if err != nil {
		return 0, err
	}
	if stats.Survivors == 0 {
		return 0, nil
	}
	return float64(stats.TotalResources) / float64(stats.Survivors), nil
}
