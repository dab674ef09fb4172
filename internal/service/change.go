package service

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/guoxiaopeng875/txcorrelation/internal/biz"
	"github.com/guoxiaopeng875/txcorrelation/pkg/txtrack"
)

// ChangeReply is the transport form of biz.Change.
type ChangeReply struct {
	ID        int64  `json:"id"`
	Entity    string `json:"entity"`
	EntityID  string `json:"entity_id"`
	Action    string `json:"action"`
	Payload   string `json:"payload,omitempty"`
	TxToken   string `json:"tx_token"`
	CreatedAt string `json:"created_at"`
}

// ChangeRequest is one change of an ApplyChangesRequest.
type ChangeRequest struct {
	Entity   string `json:"entity"`
	EntityID string `json:"entity_id"`
	Action   string `json:"action"`
	Payload  string `json:"payload,omitempty"`
}

// ApplyChangesRequest is a batch recorded in a single transaction.
type ApplyChangesRequest struct {
	Changes []*ChangeRequest `json:"changes"`
}

// ListChangesReply lists the changes of one transaction. It is also the
// reply of ApplyChanges, carrying the token minted for the batch.
type ListChangesReply struct {
	Token   string         `json:"token"`
	Changes []*ChangeReply `json:"changes"`
}

// ChangeService exposes change records over the transports.
type ChangeService struct {
	uc  *biz.ChangeUsecase
	log *log.Helper
}

// NewChangeService creates a ChangeService.
func NewChangeService(uc *biz.ChangeUsecase, logger log.Logger) *ChangeService {
	return &ChangeService{
		uc:  uc,
		log: log.NewHelper(log.With(logger, "module", "service/change")),
	}
}

// ApplyChanges records the batch in one tracked transaction and returns the
// token it was tagged with.
func (s *ChangeService) ApplyChanges(ctx context.Context, req *ApplyChangesRequest) (*ListChangesReply, error) {
	var changes []*biz.Change
	if req != nil {
		changes = make([]*biz.Change, 0, len(req.Changes))
		for _, c := range req.Changes {
			if c == nil {
				return nil, toTransportError(biz.ErrInvalidChange)
			}
			changes = append(changes, &biz.Change{
				Entity:   c.Entity,
				EntityID: c.EntityID,
				Action:   biz.Action(c.Action),
				Payload:  c.Payload,
			})
		}
	}

	saved, err := s.uc.Apply(ctx, changes)
	if err != nil {
		return nil, toTransportError(err)
	}
	token := saved[0].TxToken
	s.log.WithContext(ctx).Infof("applied %d changes, token=%s", len(saved), token)
	return newListChangesReply(token, saved), nil
}

// ListChanges lists the changes produced by the transaction token belongs to.
func (s *ChangeService) ListChanges(ctx context.Context, token string) (*ListChangesReply, error) {
	changes, err := s.uc.ListByToken(ctx, txtrack.Token(token))
	if err != nil {
		return nil, toTransportError(err)
	}

	return newListChangesReply(txtrack.Token(token), changes), nil
}

func newListChangesReply(token txtrack.Token, changes []*biz.Change) *ListChangesReply {
	reply := &ListChangesReply{
		Token:   token.Base().String(),
		Changes: make([]*ChangeReply, 0, len(changes)),
	}
	for _, c := range changes {
		reply.Changes = append(reply.Changes, &ChangeReply{
			ID:        c.ID,
			Entity:    c.Entity,
			EntityID:  c.EntityID,
			Action:    string(c.Action),
			Payload:   c.Payload,
			TxToken:   c.TxToken.String(),
			CreatedAt: c.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return reply
}

// toTransportError maps domain failures to 400 and hides everything else
// behind a 500.
func toTransportError(err error) error {
	var de *biz.DomainError
	if stderrors.As(err, &de) {
		return de.ToKratos(http.StatusBadRequest)
	}
	return errors.InternalServer("INTERNAL", "internal error").WithCause(err)
}
