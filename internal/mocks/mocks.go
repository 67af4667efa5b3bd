// File: internal/mocks/mocks.go
package mocks

import (
	"github.com/stretchr/testify/mock"
	"github.com/xkilldash9x/bolt/internal/config"
)

// -- Config Mock --

// MockConfig mocks the config.Interface.
type MockConfig struct {
	mock.Mock
}

var _ config.Interface = (*MockConfig)(nil)

// --- Getters ---

func (m *MockConfig) Logger() config.LoggerConfig {
	args := m.Called()
	return args.Get(0).(config.LoggerConfig)
}

func (m *MockConfig) Browser() config.BrowserConfig {
	args := m.Called()
	return args.Get(0).(config.BrowserConfig)
}

func (m *MockConfig) Target() config.TargetConfig {
	args := m.Called()
	return args.Get(0).(config.TargetConfig)
}

func (m *MockConfig) Waits() config.WaitConfig {
	args := m.Called()
	return args.Get(0).(config.WaitConfig)
}

func (m *MockConfig) Interaction() config.InteractionConfig {
	args := m.Called()
	return args.Get(0).(config.InteractionConfig)
}

func (m *MockConfig) Recovery() config.RecoveryConfig {
	args := m.Called()
	return args.Get(0).(config.RecoveryConfig)
}

func (m *MockConfig) Arrival() config.ArrivalConfig {
	args := m.Called()
	return args.Get(0).(config.ArrivalConfig)
}

func (m *MockConfig) Classification() config.ClassificationConfig {
	args := m.Called()
	return args.Get(0).(config.ClassificationConfig)
}

func (m *MockConfig) Scenario() config.ScenarioConfig {
	args := m.Called()
	return args.Get(0).(config.ScenarioConfig)
}

func (m *MockConfig) Metrics() config.MetricsConfig {
	args := m.Called()
	return args.Get(0).(config.MetricsConfig)
}

func (m *MockConfig) Catalog() config.CatalogConfig {
	args := m.Called()
	return args.Get(0).(config.CatalogConfig)
}

// --- Setters ---

func (m *MockConfig) SetBrowserHeadless(b bool) {
	m.Called(b)
}

func (m *MockConfig) SetTargetURL(u string) {
	m.Called(u)
}

func (m *MockConfig) SetTargetApp(a string) {
	m.Called(a)
}

func (m *MockConfig) SetSkipTechnicalErrors(b bool) {
	m.Called(b)
}

func (m *MockConfig) SetMetricsEnabled(b bool) {
	m.Called(b)
}

// NewMockConfigFrom returns a MockConfig whose getters all answer from cfg.
// Tests add expectations for the setters they exercise.
func NewMockConfigFrom(cfg config.Interface) *MockConfig {
	m := new(MockConfig)
	m.On("Logger").Return(cfg.Logger()).Maybe()
	m.On("Browser").Return(cfg.Browser()).Maybe()
	m.On("Target").Return(cfg.Target()).Maybe()
	m.On("Waits").Return(cfg.Waits()).Maybe()
	m.On("Interaction").Return(cfg.Interaction()).Maybe()
	m.On("Recovery").Return(cfg.Recovery()).Maybe()
	m.On("Arrival").Return(cfg.Arrival()).Maybe()
	m.On("Classification").Return(cfg.Classification()).Maybe()
	m.On("Scenario").Return(cfg.Scenario()).Maybe()
	m.On("Metrics").Return(cfg.Metrics()).Maybe()
	m.On("Catalog").Return(cfg.Catalog()).Maybe()
	return m
}
