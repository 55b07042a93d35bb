package subscriptions

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgdb "github.com/recurware/billing-backend/pkg/db"
	"github.com/recurware/billing-backend/pkg/db/models"
	"github.com/recurware/billing-backend/pkg/enums"
	pkgerrors "github.com/recurware/billing-backend/pkg/errors"
	"github.com/recurware/billing-backend/pkg/pagination"
)

// currentStatusSubquery selects the status of a subscription's most recent
// approval event. Ties on created_at are broken by seq, which is strictly
// increasing, so the result is deterministic.
const currentStatusSubquery = `(
	SELECT a.status FROM subscription_approval_statuses a
	WHERE a.subscription_id = subscriptions.id
	ORDER BY a.created_at DESC, a.seq DESC
	LIMIT 1
)`

// Repository handles subscription and approval history persistence. Approval
// events are append-only: nothing here updates or deletes a history row.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateSubscription(ctx context.Context, subscription *models.Subscription) error
	FindSubscription(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	AppendStatus(ctx context.Context, event *models.SubscriptionApprovalStatus) error
	CurrentStatus(ctx context.Context, subscriptionID uuid.UUID) (*models.SubscriptionApprovalStatus, error)
	ListStatuses(ctx context.Context, subscriptionID uuid.UUID) ([]models.SubscriptionApprovalStatus, error)
	ListByAccount(ctx context.Context, params ListSubscriptionsQuery) ([]models.Subscription, *pagination.Cursor, error)
	FilterByCurrentStatuses(ctx context.Context, accountID uuid.UUID, statuses []enums.ApprovalStatus) ([]models.Subscription, error)
	ListSubscribedTypeIDs(ctx context.Context, accountID uuid.UUID) ([]int64, error)
}

// ListSubscriptionsQuery configures paginated subscription listings.
type ListSubscriptionsQuery struct {
	AccountID uuid.UUID
	Limit     int
	Cursor    *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a subscription repository bound to the provided
// database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateSubscription(ctx context.Context, subscription *models.Subscription) error {
	return r.db.WithContext(ctx).Create(subscription).Error
}

func (r *repository) FindSubscription(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	var subscription models.Subscription
	err := r.db.WithContext(ctx).
		Preload("ProductType").
		Where("id = ?", id).
		First(&subscription).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &subscription, nil
}

func (r *repository) AppendStatus(ctx context.Context, event *models.SubscriptionApprovalStatus) error {
	err := r.db.WithContext(ctx).Create(event).Error
	if pkgdb.IsForeignKeyViolation(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	}
	return err
}

func (r *repository) CurrentStatus(ctx context.Context, subscriptionID uuid.UUID) (*models.SubscriptionApprovalStatus, error) {
	var event models.SubscriptionApprovalStatus
	err := r.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("created_at DESC, seq DESC").
		First(&event).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

func (r *repository) ListStatuses(ctx context.Context, subscriptionID uuid.UUID) ([]models.SubscriptionApprovalStatus, error) {
	var events []models.SubscriptionApprovalStatus
	err := r.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("created_at ASC, seq ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repository) ListByAccount(ctx context.Context, params ListSubscriptionsQuery) ([]models.Subscription, *pagination.Cursor, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).
		Preload("ProductType").
		Where("account_id = ?", params.AccountID)
	if params.Cursor != nil {
		query = query.Where("(created_at, seq) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.Seq)
	}

	var subs []models.Subscription
	if err := query.Order("created_at DESC, seq DESC").Limit(pagination.LimitWithBuffer(limit)).Find(&subs).Error; err != nil {
		return nil, nil, err
	}

	if len(subs) > limit {
		next := subs[limit]
		subs = subs[:limit]
		return subs, &pagination.Cursor{
			CreatedAt: next.CreatedAt,
			Seq:       next.Seq,
		}, nil
	}

	return subs, nil, nil
}

func (r *repository) FilterByCurrentStatuses(ctx context.Context, accountID uuid.UUID, statuses []enums.ApprovalStatus) ([]models.Subscription, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	values := make([]string, len(statuses))
	for i, status := range statuses {
		values[i] = status.String()
	}

	var subs []models.Subscription
	err := r.db.WithContext(ctx).
		Preload("ProductType").
		Where("account_id = ?", accountID).
		Where(currentStatusSubquery+" IN ?", values).
		Order("created_at DESC, seq DESC").
		Find(&subs).Error
	if err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *repository) ListSubscribedTypeIDs(ctx context.Context, accountID uuid.UUID) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Distinct("product_type_id").
		Where("account_id = ?", accountID).
		Pluck("product_type_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
