package linkclient

import (
	"context"
	"encoding/json"
)

// Hooks are the callbacks a widget launcher fires during the hosted link
// flow. Payloads are the vendor's raw callback data; the client resolves
// them at the boundary.
type Hooks struct {
	// OnIntegrationConnected fires when the user completes an account link.
	OnIntegrationConnected func(payload json.RawMessage)

	// OnTransferFinished fires when a transfer started inside the widget
	// completes. It never carries credentials.
	OnTransferFinished func(payload json.RawMessage)

	// OnExit fires when the widget closes, whether or not anything was
	// linked. This is the only exit path; there is no separate cancel.
	OnExit func(payload json.RawMessage)
}

// WidgetLauncher is the single adapter interface a vendor integration must
// satisfy. The launcher is handed the link token and the callback hooks and
// owns the hosted UI from there. Implementations are injected explicitly
// rather than discovered at runtime.
type WidgetLauncher interface {
	Open(ctx context.Context, linkToken string, hooks Hooks) error
}

// WidgetLauncherFunc adapts a function to the WidgetLauncher interface.
type WidgetLauncherFunc func(ctx context.Context, linkToken string, hooks Hooks) error

func (f WidgetLauncherFunc) Open(ctx context.Context, linkToken string, hooks Hooks) error {
	return f(ctx, linkToken, hooks)
}
