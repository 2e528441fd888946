package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Adiao1973/mcprotocol-go/protocol"
)

// DefaultPingTimeout is the recommended timeout for a ping round trip.
const DefaultPingTimeout = 2 * time.Second

// Ping sends a "ping" request via send, waits on recv for the matching
// response (recv is expected to deliver exactly the response paired to
// this id, e.g. a per-call channel handed out by mcpclient's correlation
// table), and reports a locally-synthesized REQUEST_CANCELLED error if no
// response arrives before timeout -- no cancellation frame is sent to the
// peer; the caller simply stops waiting.
func Ping(ctx context.Context, id protocol.RequestID, send func(ctx context.Context, req *protocol.Request) error, recv <-chan *protocol.Response, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultPingTimeout
	}

	req := &protocol.Request{ID: id, Method: protocol.MethodPing}
	if err := send(ctx, req); err != nil {
		return fmt.Errorf("session: send ping: %w", err)
	}

	select {
	case resp := <-recv:
		if resp.Error != nil {
			return resp.Error
		}
		return nil
	case <-time.After(timeout):
		return protocol.NewError(protocol.CodeRequestCancelled, "ping timed out", nil)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// BuildCancelledNotification builds the "notifications/cancelled"
// notification for requestID, forwarded verbatim to the peer.
func BuildCancelledNotification(requestID protocol.RequestID, reason string) (*protocol.Notification, error) {
	params, err := json.Marshal(protocol.CancelledParams{RequestID: requestID.Canonical(), Reason: reason})
	if err != nil {
		return nil, fmt.Errorf("session: marshal cancelled params: %w", err)
	}
	return &protocol.Notification{Method: protocol.MethodCancelled, Params: params}, nil
}

// BuildProgressNotification builds the "$/progress" notification,
// forwarded verbatim to the peer.
func BuildProgressNotification(progressToken string, value interface{}) (*protocol.Notification, error) {
	params, err := json.Marshal(protocol.ProgressParams{ProgressToken: progressToken, Value: value})
	if err != nil {
		return nil, fmt.Errorf("session: marshal progress params: %w", err)
	}
	return &protocol.Notification{Method: protocol.MethodProgress, Params: params}, nil
}
