package service

import (
	"context"
	"time"

	"go-stock-ledger/internal/repository"
)

type DashboardService interface {
	GetStockMovement(ctx context.Context, days int) ([]repository.StockMovementData, error)
	GetDashboardStats(ctx context.Context) (*repository.DashboardStats, error)
}

type dashboardService struct {
	txRepo repository.TransactionRepository
	now    func() time.Time
}

func NewDashboardService(txRepo repository.TransactionRepository) DashboardService {
	return &dashboardService{txRepo: txRepo, now: time.Now}
}

// GetStockMovement summarizes approved movements for a trailing window in days.
// Out-of-range windows fall back to a week.
func (s *dashboardService) GetStockMovement(ctx context.Context, days int) ([]repository.StockMovementData, error) {
	if days <= 0 || days > 365 {
		days = 7
	}
	endDate := s.now()
	startDate := endDate.AddDate(0, 0, -days)

	return s.txRepo.GetStockMovement(ctx, startDate, endDate)
}

func (s *dashboardService) GetDashboardStats(ctx context.Context) (*repository.DashboardStats, error) {
	return s.txRepo.GetDashboardStats(ctx)
}
