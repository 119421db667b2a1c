package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"google.golang.org/grpc"

	"github.com/Tushar13233u/my-new-chat-app/internal/auth"
	"github.com/Tushar13233u/my-new-chat-app/internal/data"
	"github.com/Tushar13233u/my-new-chat-app/internal/docstore"
	"github.com/Tushar13233u/my-new-chat-app/internal/push"
	"github.com/Tushar13233u/my-new-chat-app/internal/realtime"
	"github.com/Tushar13233u/my-new-chat-app/internal/rpc"
)

// triggerTimeout bounds one run of the new-message trigger.
const triggerTimeout = 5 * time.Second

// accountStore is the subset of data.AccountsStore the auth handlers use.
type accountStore interface {
	CreateAccount(ctx context.Context, email, hashedPassword string) (*data.Account, error)
	GetByEmail(ctx context.Context, email string) (*data.Account, error)
	GetByID(ctx context.Context, id bson.ObjectID) (*data.Account, error)
	UpdateProfile(ctx context.Context, id bson.ObjectID, displayName, photoURL *string) error
}

// Server implements the Auth, Documents, Realtime and Push services.
type Server struct {
	accounts accountStore
	docs     docstore.Store
	tree     *realtime.Tree
	tokens   *push.Tokens
	hub      *push.Hub
	trigger  *push.Trigger
	auth     *auth.JWTManager
	logger   *slog.Logger

	// background trigger runs, waited for on shutdown
	bg sync.WaitGroup
}

// newServer returns a ready-to-use Server wired with stores and auth manager.
func newServer(accounts accountStore, docs docstore.Store, tree *realtime.Tree, hub *push.Hub, authMgr *auth.JWTManager, appURL string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		accounts: accounts,
		docs:     docs,
		tree:     tree,
		tokens:   push.NewTokens(docs),
		hub:      hub,
		trigger:  push.NewTrigger(docs, hub, appURL, logger.With("component", "trigger")),
		auth:     authMgr,
		logger:   logger,
	}
}

// registerServices registers all four services on the given gRPC server.
func registerServices(s *grpc.Server, srv *Server) {
	rpc.RegisterAuthServer(s, srv)
	rpc.RegisterDocumentsServer(s, srv)
	rpc.RegisterRealtimeServer(s, srv)
	rpc.RegisterPushServer(s, srv)
}

// runTrigger dispatches the new-message trigger for doc off the request path.
func (s *Server) runTrigger(doc *docstore.Document) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), triggerTimeout)
		defer cancel()
		s.trigger.OnDocumentCreated(ctx, doc)
	}()
}

// wait blocks until background work has finished.
func (s *Server) wait() { s.bg.Wait() }
