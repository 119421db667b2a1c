package remote

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"google.golang.org/grpc"

	"github.com/Tushar13233u/my-new-chat-app/internal/apperr"
	"github.com/Tushar13233u/my-new-chat-app/internal/docstore"
	"github.com/Tushar13233u/my-new-chat-app/internal/rpc"
	"github.com/Tushar13233u/my-new-chat-app/internal/stream"
)

// Documents is docstore.Store over the Documents service.
type Documents struct {
	client     rpc.DocumentsClient
	creds      *tokenStore
	logger     *slog.Logger
	retryDelay time.Duration
}

var _ docstore.Store = (*Documents)(nil)

func newDocuments(client rpc.DocumentsClient, creds *tokenStore, opts Options) *Documents {
	return &Documents{client: client, creds: creds, logger: opts.Logger, retryDelay: opts.RetryDelay}
}

func (d *Documents) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	doc, err := d.client.Get(ctx, &rpc.GetRequest{Collection: collection, ID: id}, d.creds.callOpts()...)
	if err != nil {
		return nil, rpcError(err)
	}
	return doc, nil
}

func (d *Documents) Add(ctx context.Context, collection string, data map[string]any) (*docstore.Document, error) {
	doc, err := d.client.Add(ctx, &rpc.AddRequest{Collection: collection, Data: data}, d.creds.callOpts()...)
	if err != nil {
		return nil, rpcError(err)
	}
	return doc, nil
}

func (d *Documents) Set(ctx context.Context, collection, id string, data map[string]any, merge bool) error {
	return d.Batch(ctx, []docstore.Op{{Kind: docstore.OpSet, Collection: collection, ID: id, Data: data, Merge: merge}})
}

func (d *Documents) Update(ctx context.Context, collection, id string, data map[string]any) error {
	return d.Batch(ctx, []docstore.Op{{Kind: docstore.OpUpdate, Collection: collection, ID: id, Data: data}})
}

func (d *Documents) Delete(ctx context.Context, collection, id string) error {
	return d.Batch(ctx, []docstore.Op{{Kind: docstore.OpDelete, Collection: collection, ID: id}})
}

func (d *Documents) Query(ctx context.Context, q docstore.Query) ([]*docstore.Document, error) {
	snap, err := d.client.Query(ctx, &rpc.QueryRequest{Query: q}, d.creds.callOpts()...)
	if err != nil {
		return nil, rpcError(err)
	}
	return snap.Documents, nil
}

func (d *Documents) Batch(ctx context.Context, ops []docstore.Op) error {
	if _, err := d.client.Commit(ctx, &rpc.CommitRequest{Ops: ops}, d.creds.callOpts()...); err != nil {
		return rpcError(err)
	}
	return nil
}

// Subscribe waits for the first snapshot, so permission and query errors
// surface here, then keeps the stream open. A broken stream is reopened
// until the subscription is closed or ctx is done.
func (d *Documents) Subscribe(ctx context.Context, q docstore.Query) (*stream.Subscription[[]*docstore.Document], error) {
	if err := docstore.ValidateQuery(q); err != nil {
		return nil, err
	}
	sctx, cancel := context.WithCancel(ctx)
	st, err := d.client.Subscribe(sctx, &rpc.QueryRequest{Query: q}, d.creds.callOpts()...)
	if err != nil {
		cancel()
		return nil, rpcError(err)
	}
	first, err := st.Recv()
	if err != nil {
		cancel()
		return nil, rpcError(err)
	}

	sub := stream.New[[]*docstore.Document](cancel)
	sub.Push(first.Documents)
	go d.follow(sctx, q, st, sub)
	return sub, nil
}

func (d *Documents) follow(ctx context.Context, q docstore.Query, st grpc.ServerStreamingClient[rpc.Snapshot], sub *stream.Subscription[[]*docstore.Document]) {
	defer sub.Close()
	for {
		snap, err := st.Recv()
		if err == nil {
			sub.Push(snap.Documents)
			continue
		}
		if ctx.Err() != nil {
			return
		}
		switch apperr.CodeOf(rpcError(err)) {
		case apperr.CodePermissionDenied, apperr.CodeInvalidArgument:
			d.logger.Error("document subscription rejected", "collection", q.Collection, "err", err)
			return
		}
		if !errors.Is(err, io.EOF) {
			d.logger.Warn("document subscription broken", "collection", q.Collection, "err", err)
		}

		// reopen until it sticks; the next Recv reports whether it did
		for {
			if !sleep(ctx, d.retryDelay) {
				return
			}
			if st, err = d.client.Subscribe(ctx, &rpc.QueryRequest{Query: q}, d.creds.callOpts()...); err == nil {
				break
			}
		}
	}
}
