package processors

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/recurware/billing-backend/pkg/db/models"
	pkgerrors "github.com/recurware/billing-backend/pkg/errors"
)

// SimpleName is the routing name of the bundled IOU processor.
const SimpleName = "simple"

// AgreementRepository persists the append-only promise-to-pay records the
// simple processor runs on.
type AgreementRepository interface {
	LatestAgreement(ctx context.Context, accountID uuid.UUID) (*models.BillingAgreement, error)
	RecordAgreement(ctx context.Context, accountID uuid.UUID, hasAgreedToPay bool) error
}

type agreementRepository struct {
	db *gorm.DB
}

func NewAgreementRepository(db *gorm.DB) AgreementRepository {
	return &agreementRepository{db: db}
}

func (r *agreementRepository) LatestAgreement(ctx context.Context, accountID uuid.UUID) (*models.BillingAgreement, error) {
	var agreement models.BillingAgreement
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC, seq DESC").
		First(&agreement).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &agreement, nil
}

func (r *agreementRepository) RecordAgreement(ctx context.Context, accountID uuid.UUID, hasAgreedToPay bool) error {
	return r.db.WithContext(ctx).Create(&models.BillingAgreement{
		AccountID:      accountID,
		HasAgreedToPay: hasAgreedToPay,
	}).Error
}

// SimpleProcessor is an honor-system processor: an account has valid billing
// details once it has recorded a promise to pay. No money moves. It exists so
// the approval path is exercised end to end without a real payment backend.
type SimpleProcessor struct {
	agreements AgreementRepository
}

func NewSimpleProcessor(agreements AgreementRepository) (*SimpleProcessor, error) {
	if agreements == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "agreement repository is required")
	}
	return &SimpleProcessor{agreements: agreements}, nil
}

func (p *SimpleProcessor) Name() string { return SimpleName }

func (p *SimpleProcessor) HasValidBillingDetails(ctx context.Context, accountID uuid.UUID) (bool, error) {
	agreement, err := p.agreements.LatestAgreement(ctx, accountID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load latest billing agreement")
	}
	if agreement == nil {
		return false, nil
	}
	return agreement.HasAgreedToPay, nil
}

func (p *SimpleProcessor) BillingDetailsForm(_ context.Context, _ uuid.UUID) (*Form, error) {
	return &Form{
		Processor: SimpleName,
		Fields: []FormField{
			{
				Name:     "has_agreed_to_pay",
				Label:    "I agree to pay the balance on my account",
				Kind:     "checkbox",
				Required: true,
			},
		},
	}, nil
}
