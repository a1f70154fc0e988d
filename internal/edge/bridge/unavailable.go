package bridge

import (
	"context"
	"errors"
	"time"

	"github.com/tainadesingsil-coder/Interaopen/internal/edge/types"
)

// ErrNoTransport is returned by the Unavailable bridge for every transport
// operation.
var ErrNoTransport = errors.New("no device transport linked")

// Unavailable is the DeviceBridge used when no hardware driver is linked
// into the build. Connection attempts and writes fail with ErrNoTransport;
// scans see nothing. The HTTP surface remains fully functional.
type Unavailable struct{}

func NewUnavailable() *Unavailable { return &Unavailable{} }

func (*Unavailable) Connect(context.Context) error    { return ErrNoTransport }
func (*Unavailable) Disconnect(context.Context) error { return nil }
func (*Unavailable) IsConnected() bool                { return false }

func (*Unavailable) SendCommand(context.Context, []byte) error { return ErrNoTransport }

func (*Unavailable) ScanOnce(ctx context.Context, _ []string, window time.Duration) ([]types.BeaconSighting, error) {
	// Honor the scan window so loop pacing matches a real driver.
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(window):
	}
	return nil, nil
}

func (*Unavailable) OnNotification(NotificationHandler) {}
