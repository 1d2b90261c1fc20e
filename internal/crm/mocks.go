package crm

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockClient struct {
	mock.Mock
}

func (m *MockClient) Send(ctx context.Context, payload map[string]any) (Response, CallLog) {
	args := m.Called(ctx, payload)
	return args.Get(0).(Response), args.Get(1).(CallLog)
}

var _ ClientInterface = (*MockClient)(nil)
