package main

import (
	"context"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/Tushar13233u/my-new-chat-app/internal/apperr"
	"github.com/Tushar13233u/my-new-chat-app/internal/push"
	"github.com/Tushar13233u/my-new-chat-app/internal/rpc"
)

// GetToken issues a device token for the caller. Storing it on the user
// document is the client's job.
func (s *Server) GetToken(ctx context.Context, req *rpc.TokenRequest) (*rpc.TokenResponse, error) {
	uid, err := callerUID(ctx)
	if err != nil {
		return nil, err
	}
	token, err := s.tokens.Issue(uid, req.VAPIDKey)
	if err != nil {
		return nil, err
	}
	return &rpc.TokenResponse{Token: token}, nil
}

// ClearToken is the cleanupTokens callable over gRPC.
func (s *Server) ClearToken(ctx context.Context, _ *emptypb.Empty) (*rpc.ClearTokenResponse, error) {
	uid, err := callerUID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.ClearToken(ctx, uid); err != nil {
		return nil, err
	}
	return &rpc.ClearTokenResponse{Success: true}, nil
}

// Deliveries registers the stream in the hub for the device token and
// holds it open until the client leaves.
func (s *Server) Deliveries(req *rpc.DeliveriesRequest, stream grpc.ServerStreamingServer[push.Payload]) error {
	ctx := stream.Context()
	uid, err := callerUID(ctx)
	if err != nil {
		return err
	}
	if !s.tokens.Verify(ctx, uid, req.Token) {
		return apperr.Forbidden("token does not belong to caller")
	}

	d := &streamDeliverer{stream: stream, failed: make(chan struct{})}
	id := s.hub.Register(req.Token, d)
	defer s.hub.Unregister(req.Token, id)

	select {
	case <-ctx.Done():
	case <-d.failed:
	}
	d.finish()
	return nil
}

// streamDeliverer adapts a server stream to push.Deliverer. The hub calls
// Deliver from whichever goroutine sends; the mutex keeps Send serial. A
// failed send ends the Deliveries call.
type streamDeliverer struct {
	stream grpc.ServerStreamingServer[push.Payload]
	mu     sync.Mutex
	once   sync.Once
	failed chan struct{}
	done   bool
}

var errDeliveryClosed = apperr.New(apperr.CodeUnavailable, "delivery stream closed")

// finish stops further sends; the stream must not be used once the
// handler returns.
func (d *streamDeliverer) finish() {
	d.mu.Lock()
	d.done = true
	d.mu.Unlock()
}

func (d *streamDeliverer) Deliver(p push.Payload) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.done {
		return errDeliveryClosed
	}
	if err := d.stream.Send(&p); err != nil {
		d.once.Do(func() { close(d.failed) })
		return err
	}
	return nil
}
