package rpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/Tushar13233u/my-new-chat-app/internal/apperr"
)

const (
	RealtimeService = "chat.v1.Realtime"

	Realtime_Session_FullMethodName = "/chat.v1.Realtime/Session"
)

// Session request kinds.
const (
	KindSet                = "set"
	KindOnDisconnectSet    = "on_disconnect_set"
	KindCancelOnDisconnect = "cancel_on_disconnect"
	KindSubscribe          = "subscribe"
	KindUnsubscribe        = "unsubscribe"
)

// Session response kinds.
const (
	KindAck   = "ack"
	KindValue = "value"
)

// SessionRequest is one client frame of a realtime session. Seq is echoed
// back in the ack; SubID names the subscription for subscribe/unsubscribe.
type SessionRequest struct {
	Seq   uint64 `json:"seq"`
	Kind  string `json:"kind"`
	Path  string `json:"path,omitempty"`
	Value any    `json:"value,omitempty"`
	SubID uint64 `json:"sub_id,omitempty"`
}

// SessionResponse is one server frame: an ack (with an optional error) for
// a request, or a value pushed for a subscription.
type SessionResponse struct {
	Kind  string           `json:"kind"`
	Seq   uint64           `json:"seq,omitempty"`
	SubID uint64           `json:"sub_id,omitempty"`
	Path  string           `json:"path,omitempty"`
	Value any              `json:"value"`
	Error *apperr.AppError `json:"error,omitempty"`
}

// Err returns the error carried by an ack.
func (r *SessionResponse) Err() error {
	if r.Error == nil {
		return nil
	}
	return r.Error
}

// RealtimeServer serves one realtime session per stream. Ending the stream
// ends the session and fires its disconnect hooks.
type RealtimeServer interface {
	Session(grpc.BidiStreamingServer[SessionRequest, SessionResponse]) error
}

func _Realtime_Session_Handler(srv any, stream grpc.ServerStream) error {
	return srv.(RealtimeServer).Session(&grpc.GenericServerStream[SessionRequest, SessionResponse]{ServerStream: stream})
}

var Realtime_ServiceDesc = grpc.ServiceDesc{
	ServiceName: RealtimeService,
	HandlerType: (*RealtimeServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Session",
			Handler:       _Realtime_Session_Handler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "chat/v1/realtime",
}

func RegisterRealtimeServer(s grpc.ServiceRegistrar, srv RealtimeServer) {
	s.RegisterService(&Realtime_ServiceDesc, srv)
}

type RealtimeClient interface {
	Session(ctx context.Context, opts ...grpc.CallOption) (grpc.BidiStreamingClient[SessionRequest, SessionResponse], error)
}

type realtimeClient struct {
	cc grpc.ClientConnInterface
}

func NewRealtimeClient(cc grpc.ClientConnInterface) RealtimeClient {
	return &realtimeClient{cc}
}

func (c *realtimeClient) Session(ctx context.Context, opts ...grpc.CallOption) (grpc.BidiStreamingClient[SessionRequest, SessionResponse], error) {
	stream, err := c.cc.NewStream(ctx, &Realtime_ServiceDesc.Streams[0], Realtime_Session_FullMethodName, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	return &grpc.GenericClientStream[SessionRequest, SessionResponse]{ClientStream: stream}, nil
}
