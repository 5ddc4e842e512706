package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/rs/zerolog/log"

	apperrors "github.com/tastebuds/room-server-go/internal/errors"
	"github.com/tastebuds/room-server-go/internal/model"
	"github.com/tastebuds/room-server-go/internal/repository"
	"github.com/tastebuds/room-server-go/internal/util"
)

const maxDisplayNameLen = 50

// GuestIdentityResult carries the bearer token back to the client exactly
// once; only its hash is stored.
type GuestIdentityResult struct {
	ParticipantID string  `json:"participantId"`
	Token         string  `json:"token"`
	DisplayName   *string `json:"displayName,omitempty"`
}

type IdentityService struct {
	identityRepo repository.IdentityRepository
}

func NewIdentityService(identityRepo repository.IdentityRepository) *IdentityService {
	return &IdentityService{identityRepo: identityRepo}
}

// CreateGuest issues a new participant identity. An empty display name
// makes the identity anonymous; anonymous participants never accumulate
// history.
func (s *IdentityService) CreateGuest(ctx context.Context, displayName string) (*GuestIdentityResult, error) {
	if len(displayName) > maxDisplayNameLen {
		return nil, apperrors.InvalidInput("displayName", fmt.Sprintf("must be at most %d characters", maxDisplayNameLen))
	}

	token, err := util.GenerateToken()
	if err != nil {
		return nil, apperrors.Internal("Failed to generate token").WithCause(err)
	}

	var name *string
	if displayName != "" {
		name = &displayName
	}

	identity, err := s.identityRepo.Create(ctx, model.CreateIdentityParams{
		ID:          generateParticipantID(),
		TokenHash:   util.HashToken(token),
		DisplayName: name,
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}

	log.Info().
		Str("participantId", identity.ID).
		Bool("anonymous", identity.Anonymous()).
		Msg("identity created")

	return &GuestIdentityResult{
		ParticipantID: identity.ID,
		Token:         token,
		DisplayName:   identity.DisplayName,
	}, nil
}

func generateParticipantID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		panic(err)
	}
	return hex.EncodeToString(bytes)
}
