package service

import (
	"context"

	"github.com/askbase/askbase/internal/model"
	"github.com/askbase/askbase/internal/repo"
)

type ConversationService struct {
	convs *repo.ConversationRepo
	msgs  *repo.MessageRepo
}

func NewConversationService(convs *repo.ConversationRepo, msgs *repo.MessageRepo) *ConversationService {
	return &ConversationService{convs: convs, msgs: msgs}
}

func (s *ConversationService) List(ctx context.Context, userID string, offset, limit int) ([]*model.Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.convs.ListByUser(ctx, userID, offset, limit)
}

type ConversationDetail struct {
	Conversation *model.Conversation `json:"conversation"`
	Messages     []*model.Message    `json:"messages"`
}

func (s *ConversationService) Get(ctx context.Context, userID, id string) (*ConversationDetail, error) {
	conv, err := s.convs.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	msgs, err := s.msgs.ListByConversation(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	return &ConversationDetail{Conversation: conv, Messages: msgs}, nil
}

func (s *ConversationService) Delete(ctx context.Context, userID, id string) error {
	conv, err := s.convs.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.msgs.DeleteByConversation(ctx, conv.ID); err != nil {
		return err
	}
	return s.convs.Delete(ctx, userID, conv.ID)
}
