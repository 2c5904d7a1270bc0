package services

import (
	"context"

	"course-chat/contract"
	"course-chat/domain"
)

type IChatService interface {
	Send(ctx context.Context, cmd domain.SendMessageCommand) error
	History(ctx context.Context, query domain.HistoryQuery) ([]domain.Message, error)
	Search(ctx context.Context, course domain.CourseID, terms string, limit int) ([]domain.Message, error)
	Join(session domain.Session, course domain.CourseID)
	Leave(session domain.Session, course domain.CourseID)
}

// ChatService is the thin facade the gateway talks to. It owns no state;
// membership lives in the registry and ordering in the dispatcher.
type ChatService struct {
	dispatcher contract.IDispatcher
	registry   contract.IRegistry
	search     contract.ISearchIndex
}

func NewChatService(dispatcher contract.IDispatcher, registry contract.IRegistry, search contract.ISearchIndex) *ChatService {
	return &ChatService{dispatcher: dispatcher, registry: registry, search: search}
}

func (s *ChatService) Send(ctx context.Context, cmd domain.SendMessageCommand) error {
	return s.dispatcher.Send(ctx, cmd)
}

func (s *ChatService) History(ctx context.Context, query domain.HistoryQuery) ([]domain.Message, error) {
	return s.dispatcher.History(ctx, query)
}

func (s *ChatService) Search(ctx context.Context, course domain.CourseID, terms string, limit int) ([]domain.Message, error) {
	return s.search.Search(ctx, course, terms, limit)
}

func (s *ChatService) Join(session domain.Session, course domain.CourseID) {
	s.registry.Join(session.ID, course)
}

func (s *ChatService) Leave(session domain.Session, course domain.CourseID) {
	s.registry.Leave(session.ID, course)
}
