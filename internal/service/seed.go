package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/factoryops/jobdesk-permit/internal/domain"
)

// demoStaff is the sample roster of a fresh installation.
var demoStaff = []StaffInput{
	{Username: "staff1", Password: "staff123", DisplayName: "Ahmad Rizki", ShiftStart: "05:00"},
	{Username: "staff2", Password: "staff123", DisplayName: "Siti Nurhaliza", ShiftStart: "05:00"},
	{Username: "staff3", Password: "staff123", DisplayName: "Budi Santoso", ShiftStart: "22:00"},
}

// Seed fills an empty catalog with the default jobdesks and, when withDemoStaff
// is set, an empty roster with the sample staff.
func (s *AdminService) Seed(ctx context.Context, withDemoStaff bool) error {
	catalog, err := s.ListJobdesks(ctx)
	if err != nil {
		return err
	}
	if len(catalog) == 0 {
		for _, jobdesk := range domain.DefaultJobdesks() {
			if _, err := s.CreateJobdesk(ctx, JobdeskInput{
				Name:        jobdesk.Name,
				Description: jobdesk.Description,
				Color:       jobdesk.Color,
			}); err != nil {
				return err
			}
		}
		s.logger.Info("default jobdesks seeded", zap.Int("count", len(domain.DefaultJobdesks())))
	}

	if !withDemoStaff {
		return nil
	}
	roster, err := s.ListStaff(ctx)
	if err != nil {
		return err
	}
	if len(roster) > 0 {
		return nil
	}
	for _, input := range demoStaff {
		if _, err := s.CreateStaff(ctx, input); err != nil {
			return err
		}
	}
	s.logger.Info("demo staff seeded", zap.Int("count", len(demoStaff)))
	return nil
}
