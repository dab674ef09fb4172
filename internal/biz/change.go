package biz

import (
	"context"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/guoxiaopeng875/txcorrelation/pkg/txtrack"
)

// Action is the kind of modification a Change records.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

func (a Action) valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// Change is a change-tracking record tagged with the transaction that
// produced it.
type Change struct {
	ID        int64
	Entity    string
	EntityID  string
	Action    Action
	Payload   string
	TxToken   txtrack.Token
	CreatedAt time.Time
}

// ChangeRepo persists change records.
type ChangeRepo interface {
	Save(context.Context, *Change) (*Change, error)
	// ListByToken returns the changes of the transaction token was minted for.
	ListByToken(context.Context, txtrack.Token) ([]*Change, error)
	// PurgeBefore deletes changes created before t and returns how many.
	PurgeBefore(context.Context, time.Time) (int64, error)
}

// ChangeUsecase records changes against the current transaction.
type ChangeUsecase struct {
	repo ChangeRepo
	tx   Transaction
	log  *log.Helper
}

// NewChangeUsecase creates a ChangeUsecase.
func NewChangeUsecase(repo ChangeRepo, tx Transaction, logger log.Logger) *ChangeUsecase {
	return &ChangeUsecase{
		repo: repo,
		tx:   tx,
		log:  log.NewHelper(log.With(logger, "module", "biz/change")),
	}
}

// Record saves c tagged with the token of the transaction active in ctx.
func (uc *ChangeUsecase) Record(ctx context.Context, c *Change) (*Change, error) {
	if c == nil || c.Entity == "" || c.EntityID == "" || !c.Action.valid() {
		return nil, ErrInvalidChange
	}
	token, ok := txtrack.ActiveToken(ctx)
	if !ok {
		return nil, ErrNoActiveTransaction
	}
	c.TxToken = token
	return uc.repo.Save(ctx, c)
}

// Apply records all changes in one transaction. Nothing is kept if any of
// them fails.
func (uc *ChangeUsecase) Apply(ctx context.Context, changes []*Change) ([]*Change, error) {
	if len(changes) == 0 {
		return nil, ErrEmptyChangeSet
	}
	saved := make([]*Change, 0, len(changes))
	err := uc.tx.InTx(ctx, func(ctx context.Context) error {
		for _, c := range changes {
			s, err := uc.Record(ctx, c)
			if err != nil {
				return err
			}
			saved = append(saved, s)
		}
		return nil
	})
	if err != nil {
		uc.log.WithContext(ctx).Errorf("apply %d changes: %v", len(changes), err)
		return nil, err
	}
	return saved, nil
}

// ListByToken lists the changes produced by the transaction token belongs to.
// Committed tokens resolve to the transaction they were derived from.
func (uc *ChangeUsecase) ListByToken(ctx context.Context, token txtrack.Token) ([]*Change, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	return uc.repo.ListByToken(ctx, token.Base())
}

// Purge removes changes older than maxAge.
func (uc *ChangeUsecase) Purge(ctx context.Context, maxAge time.Duration) (int64, error) {
	n, err := uc.repo.PurgeBefore(ctx, time.Now().Add(-maxAge))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		uc.log.WithContext(ctx).Infof("purged %d changes older than %s", n, maxAge)
	}
	return n, nil
}
