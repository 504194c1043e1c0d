package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/evobug-com/story-server/internal/clients"
)

// Mock EconomyClient
type EconomyClient struct {
	mock.Mock
}

func (m *EconomyClient) GrantReward(ctx context.Context, req clients.GrantRewardRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}
