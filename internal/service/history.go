package service

import (
	"context"

	apperrors "github.com/tastebuds/room-server-go/internal/errors"
	"github.com/tastebuds/room-server-go/internal/model"
	"github.com/tastebuds/room-server-go/internal/repository"
)

type HistoryService struct {
	historyRepo repository.HistoryRepository
}

func NewHistoryService(historyRepo repository.HistoryRepository) *HistoryService {
	return &HistoryService{historyRepo: historyRepo}
}

// List returns the participant's decided rooms, newest first.
func (s *HistoryService) List(ctx context.Context, participantID string) ([]model.HistoryEntry, error) {
	entries, err := s.historyRepo.ListByParticipant(ctx, participantID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return entries, nil
}
