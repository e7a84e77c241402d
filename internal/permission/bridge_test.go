package permission

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPlatform struct {
	mock.Mock
}

func (m *mockPlatform) SDKVersion() int {
	args := m.Called()

	return args.Int(0)
}

func (m *mockPlatform) IsGranted(permission string) bool {
	args := m.Called(permission)

	return args.Bool(0)
}

func (m *mockPlatform) RequestPermissions(permissions []string, requestCode int) {
	m.Called(permissions, requestCode)
}

func TestBridge_RequestNotificationPermission(t *testing.T) {
	call := MethodCall{Method: MethodRequestNotificationPermission}

	tests := []struct {
		name        string
		sdk         int
		granted     bool
		wantRequest bool
	}{
		{name: "API 33 not granted requests", sdk: 33, granted: false, wantRequest: true},
		{name: "API 34 not granted requests", sdk: 34, granted: false, wantRequest: true},
		{name: "API 33 already granted", sdk: 33, granted: true, wantRequest: false},
		{name: "API 32 never requests", sdk: 32, wantRequest: false},
		{name: "API 21 never requests", sdk: 21, wantRequest: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			platform := new(mockPlatform)
			platform.On("SDKVersion").Return(tt.sdk)

			if tt.sdk >= MinSDKVersion {
				platform.On("IsGranted", PostNotifications).Return(tt.granted)
			}

			if tt.wantRequest {
				platform.On("RequestPermissions", []string{PostNotifications}, RequestCode).Return().Once()
			}

			result, err := NewBridge(platform).HandleMethodCall(context.Background(), call)
			require.NoError(t, err)

			// Success is reported whatever the outcome.
			assert.Equal(t, true, result)
			platform.AssertExpectations(t)

			if !tt.wantRequest {
				platform.AssertNotCalled(t, "RequestPermissions", mock.Anything, mock.Anything)
			}

			if tt.sdk < MinSDKVersion {
				platform.AssertNotCalled(t, "IsGranted", mock.Anything)
			}
		})
	}
}

func TestBridge_UnknownMethod(t *testing.T) {
	platform := new(mockPlatform)

	result, err := NewBridge(platform).HandleMethodCall(context.Background(), MethodCall{Method: "openSettings"})

	require.ErrorIs(t, err, ErrMethodNotImplemented)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "openSettings")
	platform.AssertNotCalled(t, "SDKVersion")
}

func TestBridge_Channel(t *testing.T) {
	assert.Equal(t, "trustify/notification_permission", NewBridge(new(mockPlatform)).Channel())
}
