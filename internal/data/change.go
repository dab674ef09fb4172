package data

import (
	"context"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/guoxiaopeng875/txcorrelation/internal/biz"
	"github.com/guoxiaopeng875/txcorrelation/pkg/txtrack"
)

// changeModel is the persisted form of biz.Change.
type changeModel struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Entity    string    `gorm:"column:entity;size:64;not null"`
	EntityID  string    `gorm:"column:entity_id;size:128;not null"`
	Action    string    `gorm:"column:action;size:16;not null"`
	Payload   string    `gorm:"column:payload;type:text"`
	TxToken   string    `gorm:"column:tx_token;size:96;not null;index:idx_tx_changes_token"`
	CreatedAt time.Time `gorm:"column:created_at;not null;index:idx_tx_changes_created_at"`
}

func (changeModel) TableName() string { return "tx_changes" }

func (m *changeModel) toBiz() *biz.Change {
	return &biz.Change{
		ID:        m.ID,
		Entity:    m.Entity,
		EntityID:  m.EntityID,
		Action:    biz.Action(m.Action),
		Payload:   m.Payload,
		TxToken:   txtrack.Token(m.TxToken),
		CreatedAt: m.CreatedAt,
	}
}

type changeRepo struct {
	data *Data
	log  *log.Helper
}

// NewChangeRepo creates a new change repository.
func NewChangeRepo(data *Data, logger log.Logger) biz.ChangeRepo {
	return &changeRepo{
		data: data,
		log:  log.NewHelper(log.With(logger, "module", "data/change")),
	}
}

func (r *changeRepo) Save(ctx context.Context, c *biz.Change) (*biz.Change, error) {
	model := &changeModel{
		Entity:    c.Entity,
		EntityID:  c.EntityID,
		Action:    string(c.Action),
		Payload:   c.Payload,
		TxToken:   c.TxToken.String(),
		CreatedAt: c.CreatedAt,
	}
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now()
	}
	if err := r.data.DB(ctx).Create(model).Error; err != nil {
		return nil, err
	}
	return model.toBiz(), nil
}

func (r *changeRepo) ListByToken(ctx context.Context, token txtrack.Token) ([]*biz.Change, error) {
	var models []*changeModel
	if err := r.data.DB(ctx).Where("tx_token = ?", token.String()).Order("id").Find(&models).Error; err != nil {
		return nil, err
	}
	changes := make([]*biz.Change, 0, len(models))
	for _, m := range models {
		changes = append(changes, m.toBiz())
	}
	return changes, nil
}

func (r *changeRepo) PurgeBefore(ctx context.Context, before time.Time) (int64, error) {
	res := r.data.DB(ctx).Where("created_at < ?", before).Delete(&changeModel{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
