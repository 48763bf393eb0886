package service

import (
	"context"
	"errors"
	"time"

	"go-stock-ledger/internal/model"
	"go-stock-ledger/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ApprovalService decides pending inventory transactions.
type ApprovalService interface {
	Decide(ctx context.Context, txnID uuid.UUID, decision model.TransactionStatus, approver Actor) (*model.InventoryTransaction, error)
	ListPending(ctx context.Context) ([]model.InventoryTransaction, error)
}

type approvalService struct {
	transactionRepo repository.TransactionRepository
	ledger          StockLedger
	db              *gorm.DB
	hub             Broadcaster
	log             *zap.Logger
	now             func() time.Time
}

func NewApprovalService(tRepo repository.TransactionRepository, ledger StockLedger, db *gorm.DB, hub Broadcaster, log *zap.Logger) ApprovalService {
	return &approvalService{
		transactionRepo: tRepo,
		ledger:          ledger,
		db:              db,
		hub:             hub,
		log:             log.Named("approval"),
		now:             time.Now,
	}
}

func (s *approvalService) Decide(ctx context.Context, txnID uuid.UUID, decision model.TransactionStatus, approver Actor) (*model.InventoryTransaction, error) {
	if !approver.IsAdmin() {
		return nil, forbidden("transaction", txnID, "only admins may approve or reject transactions")
	}
	if decision != model.TxApproved && decision != model.TxRejected {
		return nil, invalidStatus("status", decision)
	}

	var decided *model.InventoryTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txn, err := s.transactionRepo.LockByID(tx, txnID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("transaction", txnID)
		}
		if err != nil {
			return err
		}
		if txn.Status != model.TxPending {
			return alreadyProcessed("transaction", txnID, txn.Status)
		}

		if decision == model.TxApproved {
			if err := s.ledger.Approve(tx, txn, approver); err != nil {
				return err
			}
		} else {
			now := s.now()
			txn.Status = model.TxRejected
			txn.ApprovedBy = approver.ID
			txn.ApprovedAt = &now
			if err := s.transactionRepo.UpdateDecision(tx, txn); err != nil {
				return err
			}
		}
		decided = txn
		return nil
	})
	if err != nil {
		failed(s.log, "decide transaction", approver, err)
		return nil, err
	}

	committed(s.hub, s.log, "transaction_"+string(decided.Status), approver, decided)
	return decided, nil
}

func (s *approvalService) ListPending(ctx context.Context) ([]model.InventoryTransaction, error) {
	return s.transactionRepo.FindAll(ctx, repository.TransactionFilter{Status: model.TxPending})
}
