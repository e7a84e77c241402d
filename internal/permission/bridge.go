// Package permission implements the notification permission bridge: a single method-channel
// method that asks the platform for POST_NOTIFICATIONS on API level 33 and above.
package permission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

const (
	// ChannelName is the method channel the bridge is registered on.
	ChannelName = "trustify/notification_permission"
	// MethodRequestNotificationPermission is the only method the bridge answers.
	MethodRequestNotificationPermission = "requestNotificationPermission"
	// PostNotifications is the runtime permission requested by the bridge.
	PostNotifications = "android.permission.POST_NOTIFICATIONS"
	// RequestCode identifies the permission request in the platform callback.
	RequestCode = 12345
	// MinSDKVersion is the first API level (Android 13) with a runtime notification permission.
	MinSDKVersion = 33
)

// ErrMethodNotImplemented is returned for any method other than requestNotificationPermission.
var ErrMethodNotImplemented = errors.New("method not implemented")

// Platform is the part of the host OS the bridge needs.
type Platform interface {
	SDKVersion() int
	IsGranted(permission string) bool
	// RequestPermissions shows the system dialog. The outcome arrives asynchronously and is not observed.
	RequestPermissions(permissions []string, requestCode int)
}

// MethodCall is an incoming call on the channel.
type MethodCall struct {
	Method    string
	Arguments any
}

// Bridge answers method calls on ChannelName.
type Bridge struct {
	platform Platform
}

// NewBridge creates a bridge backed by platform.
func NewBridge(platform Platform) *Bridge {
	return &Bridge{platform: platform}
}

// Channel returns the channel name the bridge should be registered on.
func (b *Bridge) Channel() string {
	return ChannelName
}

// HandleMethodCall dispatches a call. requestNotificationPermission always reports true,
// whether or not the user grants the permission.
func (b *Bridge) HandleMethodCall(ctx context.Context, call MethodCall) (any, error) {
	switch call.Method {
	case MethodRequestNotificationPermission:
		b.maybeRequest(ctx)

		return true, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrMethodNotImplemented, call.Method)
	}
}

// maybeRequest asks for POST_NOTIFICATIONS when the platform needs it and it is not granted yet.
func (b *Bridge) maybeRequest(ctx context.Context) {
	sdk := b.platform.SDKVersion()
	if sdk < MinSDKVersion {
		slog.DebugContext(ctx, "Notification permission not required below API 33", "sdk_version", sdk)

		return
	}

	if b.platform.IsGranted(PostNotifications) {
		slog.DebugContext(ctx, "Notification permission already granted", "sdk_version", sdk)

		return
	}

	b.platform.RequestPermissions([]string{PostNotifications}, RequestCode)
	slog.InfoContext(ctx, "Notification permission requested", "sdk_version", sdk, "request_code", RequestCode)
}
