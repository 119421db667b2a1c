package main

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/Tushar13233u/my-new-chat-app/internal/docstore"
	"github.com/Tushar13233u/my-new-chat-app/internal/rpc"
)

// Get returns one document the caller may read.
func (s *Server) Get(ctx context.Context, req *rpc.GetRequest) (*docstore.Document, error) {
	uid, err := callerUID(ctx)
	if err != nil {
		return nil, err
	}
	if err := docstore.ValidatePath(req.Collection, req.ID); err != nil {
		return nil, err
	}
	doc, err := s.docs.Get(ctx, req.Collection, req.ID)
	if err != nil {
		return nil, err
	}
	if err := checkDocumentRead(uid, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Add creates a document and, for chat messages, schedules the
// notification for the receiver.
func (s *Server) Add(ctx context.Context, req *rpc.AddRequest) (*docstore.Document, error) {
	uid, err := callerUID(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkAdd(uid, req.Collection, req.Data); err != nil {
		return nil, err
	}
	doc, err := s.docs.Add(ctx, req.Collection, req.Data)
	if err != nil {
		return nil, err
	}
	if _, ok := messagesChat(doc.Collection); ok {
		s.runTrigger(doc)
	}
	return doc, nil
}

func (s *Server) Query(ctx context.Context, req *rpc.QueryRequest) (*rpc.Snapshot, error) {
	uid, err := callerUID(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkCollectionRead(uid, req.Query); err != nil {
		return nil, err
	}
	docs, err := s.docs.Query(ctx, req.Query)
	if err != nil {
		return nil, err
	}
	return &rpc.Snapshot{Documents: docs}, nil
}

// Commit applies a batch after checking every op against the write rules.
func (s *Server) Commit(ctx context.Context, req *rpc.CommitRequest) (*emptypb.Empty, error) {
	uid, err := callerUID(ctx)
	if err != nil {
		return nil, err
	}
	if err := docstore.ValidateOps(req.Ops); err != nil {
		return nil, err
	}
	for _, op := range req.Ops {
		if err := checkWrite(ctx, s.docs, uid, op); err != nil {
			return nil, err
		}
	}
	if err := s.docs.Batch(ctx, req.Ops); err != nil {
		return nil, err
	}
	return &emptypb.Empty{}, nil
}

// Subscribe streams query snapshots until the client goes away.
func (s *Server) Subscribe(req *rpc.QueryRequest, stream grpc.ServerStreamingServer[rpc.Snapshot]) error {
	ctx := stream.Context()
	uid, err := callerUID(ctx)
	if err != nil {
		return err
	}
	if err := checkCollectionRead(uid, req.Query); err != nil {
		return err
	}
	sub, err := s.docs.Subscribe(ctx, req.Query)
	if err != nil {
		return err
	}
	defer sub.Close()

	for {
		select {
		case docs := <-sub.Updates():
			if err := stream.Send(&rpc.Snapshot{Documents: docs}); err != nil {
				return err
			}
		case <-sub.Done():
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}
