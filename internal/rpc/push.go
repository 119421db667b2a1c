package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/Tushar13233u/my-new-chat-app/internal/push"
)

const (
	PushService = "chat.v1.Push"

	Push_GetToken_FullMethodName   = "/chat.v1.Push/GetToken"
	Push_ClearToken_FullMethodName = "/chat.v1.Push/ClearToken"
	Push_Deliveries_FullMethodName = "/chat.v1.Push/Deliveries"
)

type TokenRequest struct {
	VAPIDKey string `json:"vapid_key"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

// ClearTokenResponse mirrors the callable's {"success": true}.
type ClearTokenResponse struct {
	Success bool `json:"success"`
}

type DeliveriesRequest struct {
	Token string `json:"token"`
}

type PushServer interface {
	GetToken(context.Context, *TokenRequest) (*TokenResponse, error)
	ClearToken(context.Context, *emptypb.Empty) (*ClearTokenResponse, error)
	// Deliveries streams the payloads sent to a device token until the
	// client goes away.
	Deliveries(*DeliveriesRequest, grpc.ServerStreamingServer[push.Payload]) error
}

func _Push_Deliveries_Handler(srv any, stream grpc.ServerStream) error {
	m := new(DeliveriesRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(PushServer).Deliveries(m, &grpc.GenericServerStream[DeliveriesRequest, push.Payload]{ServerStream: stream})
}

var Push_ServiceDesc = grpc.ServiceDesc{
	ServiceName: PushService,
	HandlerType: (*PushServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(PushService, "GetToken", PushServer.GetToken),
		unary(PushService, "ClearToken", PushServer.ClearToken),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Deliveries",
			Handler:       _Push_Deliveries_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "chat/v1/push",
}

func RegisterPushServer(s grpc.ServiceRegistrar, srv PushServer) {
	s.RegisterService(&Push_ServiceDesc, srv)
}

type PushClient interface {
	GetToken(ctx context.Context, in *TokenRequest, opts ...grpc.CallOption) (*TokenResponse, error)
	ClearToken(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*ClearTokenResponse, error)
	Deliveries(ctx context.Context, in *DeliveriesRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[push.Payload], error)
}

type pushClient struct {
	cc grpc.ClientConnInterface
}

func NewPushClient(cc grpc.ClientConnInterface) PushClient {
	return &pushClient{cc}
}

func (c *pushClient) GetToken(ctx context.Context, in *TokenRequest, opts ...grpc.CallOption) (*TokenResponse, error) {
	return invoke[TokenResponse](ctx, c.cc, Push_GetToken_FullMethodName, in, opts)
}

func (c *pushClient) ClearToken(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*ClearTokenResponse, error) {
	return invoke[ClearTokenResponse](ctx, c.cc, Push_ClearToken_FullMethodName, in, opts)
}

func (c *pushClient) Deliveries(ctx context.Context, in *DeliveriesRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[push.Payload], error) {
	return serverStream[DeliveriesRequest, push.Payload](ctx, c.cc, &Push_ServiceDesc.Streams[0], Push_Deliveries_FullMethodName, in, opts)
}
