package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/Tushar13233u/my-new-chat-app/internal/docstore"
)

const (
	DocumentsService = "chat.v1.Documents"

	Documents_Get_FullMethodName       = "/chat.v1.Documents/Get"
	Documents_Add_FullMethodName       = "/chat.v1.Documents/Add"
	Documents_Query_FullMethodName     = "/chat.v1.Documents/Query"
	Documents_Commit_FullMethodName    = "/chat.v1.Documents/Commit"
	Documents_Subscribe_FullMethodName = "/chat.v1.Documents/Subscribe"
)

type GetRequest struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

type AddRequest struct {
	Collection string         `json:"collection"`
	Data       map[string]any `json:"data"`
}

type QueryRequest struct {
	Query docstore.Query `json:"query"`
}

// Snapshot is a full query result.
type Snapshot struct {
	Documents []*docstore.Document `json:"documents"`
}

// CommitRequest applies every op or none.
type CommitRequest struct {
	Ops []docstore.Op `json:"ops"`
}

type DocumentsServer interface {
	Get(context.Context, *GetRequest) (*docstore.Document, error)
	Add(context.Context, *AddRequest) (*docstore.Document, error)
	Query(context.Context, *QueryRequest) (*Snapshot, error)
	Commit(context.Context, *CommitRequest) (*emptypb.Empty, error)
	Subscribe(*QueryRequest, grpc.ServerStreamingServer[Snapshot]) error
}

func _Documents_Subscribe_Handler(srv any, stream grpc.ServerStream) error {
	m := new(QueryRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(DocumentsServer).Subscribe(m, &grpc.GenericServerStream[QueryRequest, Snapshot]{ServerStream: stream})
}

var Documents_ServiceDesc = grpc.ServiceDesc{
	ServiceName: DocumentsService,
	HandlerType: (*DocumentsServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(DocumentsService, "Get", DocumentsServer.Get),
		unary(DocumentsService, "Add", DocumentsServer.Add),
		unary(DocumentsService, "Query", DocumentsServer.Query),
		unary(DocumentsService, "Commit", DocumentsServer.Commit),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       _Documents_Subscribe_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "chat/v1/documents",
}

func RegisterDocumentsServer(s grpc.ServiceRegistrar, srv DocumentsServer) {
	s.RegisterService(&Documents_ServiceDesc, srv)
}

type DocumentsClient interface {
	Get(ctx context.Context, in *GetRequest, opts ...grpc.CallOption) (*docstore.Document, error)
	Add(ctx context.Context, in *AddRequest, opts ...grpc.CallOption) (*docstore.Document, error)
	Query(ctx context.Context, in *QueryRequest, opts ...grpc.CallOption) (*Snapshot, error)
	Commit(ctx context.Context, in *CommitRequest, opts ...grpc.CallOption) (*emptypb.Empty, error)
	Subscribe(ctx context.Context, in *QueryRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[Snapshot], error)
}

type documentsClient struct {
	cc grpc.ClientConnInterface
}

func NewDocumentsClient(cc grpc.ClientConnInterface) DocumentsClient {
	return &documentsClient{cc}
}

func (c *documentsClient) Get(ctx context.Context, in *GetRequest, opts ...grpc.CallOption) (*docstore.Document, error) {
	return invoke[docstore.Document](ctx, c.cc, Documents_Get_FullMethodName, in, opts)
}

func (c *documentsClient) Add(ctx context.Context, in *AddRequest, opts ...grpc.CallOption) (*docstore.Document, error) {
	return invoke[docstore.Document](ctx, c.cc, Documents_Add_FullMethodName, in, opts)
}

func (c *documentsClient) Query(ctx context.Context, in *QueryRequest, opts ...grpc.CallOption) (*Snapshot, error) {
	return invoke[Snapshot](ctx, c.cc, Documents_Query_FullMethodName, in, opts)
}

func (c *documentsClient) Commit(ctx context.Context, in *CommitRequest, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return invoke[emptypb.Empty](ctx, c.cc, Documents_Commit_FullMethodName, in, opts)
}

func (c *documentsClient) Subscribe(ctx context.Context, in *QueryRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[Snapshot], error) {
	return serverStream[QueryRequest, Snapshot](ctx, c.cc, &Documents_ServiceDesc.Streams[0], Documents_Subscribe_FullMethodName, in, opts)
}
