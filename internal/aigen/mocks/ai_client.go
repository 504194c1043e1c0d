package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/evobug-com/story-server/internal/aigen"
)

// Mock AIClient
type AIClient struct {
	mock.Mock
}

func (m *AIClient) GenerateLayer(ctx context.Context, systemPrompt, userInput string) (string, aigen.UsageInfo, error) {
	args := m.Called(ctx, systemPrompt, userInput)
	usage, _ := args.Get(1).(aigen.UsageInfo)
	return args.String(0), usage, args.Error(2)
}
