package provider

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/ninjapay/payments-reconciler/internal/data"
)

type MockAdapter struct {
	mock.Mock
}

func (m *MockAdapter) Name() data.Provider {
	args := m.Called()
	return args.Get(0).(data.Provider)
}

func (m *MockAdapter) Status(ctx context.Context, token string) (StatusResult, CallLog) {
	args := m.Called(ctx, token)
	return args.Get(0).(StatusResult), args.Get(1).(CallLog)
}

var _ Adapter = (*MockAdapter)(nil)
