package core

import (
	reflect "reflect"

	gomock "go.uber.org/mock/gomock"

	"github.com/flowctl/orchestrator/pkg/flow"
)

// MockDriver is a gomock-style mock of Driver, hand-written in the shape
// mockgen would generate, for tests that need to assert exact call
// sequences/arguments rather than the canned behavior pkg/driver/mock gives.
type MockDriver struct {
	ctrl     *gomock.Controller
	recorder *MockDriverMockRecorder
}

// MockDriverMockRecorder records expected calls for MockDriver.
type MockDriverMockRecorder struct {
	mock *MockDriver
}

// NewMockDriver creates a new mock instance.
func NewMockDriver(ctrl *gomock.Controller) *MockDriver {
	mock := &MockDriver{ctrl: ctrl}
	mock.recorder = &MockDriverMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockDriver) EXPECT() *MockDriverMockRecorder {
	return m.recorder
}

// Execute mocks Driver.Execute.
func (m *MockDriver) Execute(step flow.Step) *CommandResult {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Execute", step)
	ret0, _ := ret[0].(*CommandResult)
	return ret0
}

// Execute indicates an expected call of Execute.
func (mr *MockDriverMockRecorder) Execute(step interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Execute", reflect.TypeOf((*MockDriver)(nil).Execute), step)
}

// Screenshot mocks Driver.Screenshot.
func (m *MockDriver) Screenshot() ([]byte, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Screenshot")
	ret0, _ := ret[0].([]byte)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Screenshot indicates an expected call of Screenshot.
func (mr *MockDriverMockRecorder) Screenshot() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Screenshot", reflect.TypeOf((*MockDriver)(nil).Screenshot))
}

// Hierarchy mocks Driver.Hierarchy.
func (m *MockDriver) Hierarchy() ([]byte, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Hierarchy")
	ret0, _ := ret[0].([]byte)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Hierarchy indicates an expected call of Hierarchy.
func (mr *MockDriverMockRecorder) Hierarchy() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Hierarchy", reflect.TypeOf((*MockDriver)(nil).Hierarchy))
}

// GetState mocks Driver.GetState.
func (m *MockDriver) GetState() *StateSnapshot {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetState")
	ret0, _ := ret[0].(*StateSnapshot)
	return ret0
}

// GetState indicates an expected call of GetState.
func (mr *MockDriverMockRecorder) GetState() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetState", reflect.TypeOf((*MockDriver)(nil).GetState))
}

// GetPlatformInfo mocks Driver.GetPlatformInfo.
func (m *MockDriver) GetPlatformInfo() *PlatformInfo {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetPlatformInfo")
	ret0, _ := ret[0].(*PlatformInfo)
	return ret0
}

// GetPlatformInfo indicates an expected call of GetPlatformInfo.
func (mr *MockDriverMockRecorder) GetPlatformInfo() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetPlatformInfo", reflect.TypeOf((*MockDriver)(nil).GetPlatformInfo))
}

// SetFindTimeout mocks Driver.SetFindTimeout.
func (m *MockDriver) SetFindTimeout(ms int) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "SetFindTimeout", ms)
}

// SetFindTimeout indicates an expected call of SetFindTimeout.
func (mr *MockDriverMockRecorder) SetFindTimeout(ms interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SetFindTimeout", reflect.TypeOf((*MockDriver)(nil).SetFindTimeout), ms)
}

// IsUnicodeInputSupported mocks Driver.IsUnicodeInputSupported.
func (m *MockDriver) IsUnicodeInputSupported() bool {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "IsUnicodeInputSupported")
	ret0, _ := ret[0].(bool)
	return ret0
}

// IsUnicodeInputSupported indicates an expected call of IsUnicodeInputSupported.
func (mr *MockDriverMockRecorder) IsUnicodeInputSupported() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "IsUnicodeInputSupported", reflect.TypeOf((*MockDriver)(nil).IsUnicodeInputSupported))
}

var _ Driver = (*MockDriver)(nil)
