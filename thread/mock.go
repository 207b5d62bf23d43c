package thread

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockModule is a testify mock of Module, modeled on the teacher's
// MockDatastore (cassandra/mocks.go): every method records the call and
// returns whatever the test configured via .On(...).
type MockModule struct {
	mock.Mock
}

var _ Module = (*MockModule)(nil)

func (m *MockModule) OnInit(ctx context.Context, resumed bool) error {
	args := m.Called(ctx, resumed)
	return args.Error(0)
}

func (m *MockModule) OnTick(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockModule) OnPause() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockModule) OnUnpause() {
	m.Called()
}

func (m *MockModule) OnClear() error {
	args := m.Called()
	return args.Error(0)
}
