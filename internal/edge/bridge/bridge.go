// Package bridge abstracts the short-range wireless transport to the
// wearable and decodes its notification packets. The physical driver lives
// outside the core; everything here works against the DeviceBridge
// interface.
package bridge

import (
	"context"
	"time"

	"github.com/tainadesingsil-coder/Interaopen/internal/edge/types"
)

// NotificationHandler receives raw notification payloads from the wearable.
type NotificationHandler func(data []byte)

// DeviceBridge is the transport collaborator: connect/disconnect lifecycle,
// command writes, a notification stream, and a timed proximity scan that
// returns the strongest sighting per known beacon within the window.
type DeviceBridge interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsConnected() bool
	SendCommand(ctx context.Context, payload []byte) error
	ScanOnce(ctx context.Context, beaconIDs []string, window time.Duration) ([]types.BeaconSighting, error)
	OnNotification(h NotificationHandler)
}
