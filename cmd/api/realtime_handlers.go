package main

import (
	"errors"
	"io"
	"sync"

	"google.golang.org/grpc"

	"github.com/Tushar13233u/my-new-chat-app/internal/apperr"
	"github.com/Tushar13233u/my-new-chat-app/internal/rpc"
	"github.com/Tushar13233u/my-new-chat-app/internal/stream"
)

// Session serves one realtime session for the lifetime of the stream. When
// the stream ends, for any reason, the session closes and its disconnect
// hooks run.
func (s *Server) Session(srv grpc.BidiStreamingServer[rpc.SessionRequest, rpc.SessionResponse]) error {
	ctx := srv.Context()
	uid, err := callerUID(ctx)
	if err != nil {
		return err
	}

	sess := s.tree.NewSession()
	defer sess.Close()

	// Send is not safe for concurrent use; acks and pushed values share it
	var sendMu sync.Mutex
	send := func(r *rpc.SessionResponse) error {
		sendMu.Lock()
		defer sendMu.Unlock()
		return srv.Send(r)
	}

	// forwarders must be done before the handler returns
	var forwarders sync.WaitGroup
	subs := map[uint64]*stream.Subscription[any]{}
	defer func() {
		for _, sub := range subs {
			sub.Close()
		}
		forwarders.Wait()
	}()

	for {
		req, err := srv.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			// the client went away; the deferred Close fires the hooks
			s.logger.Debug("realtime session ended", "uid", uid, "err", err)
			return nil
		}

		var opErr error
		switch req.Kind {
		case rpc.KindSet:
			if opErr = checkRealtimeWrite(uid, req.Path); opErr == nil {
				opErr = sess.Set(ctx, req.Path, req.Value)
			}
		case rpc.KindOnDisconnectSet:
			if opErr = checkRealtimeWrite(uid, req.Path); opErr == nil {
				opErr = sess.OnDisconnectSet(ctx, req.Path, req.Value)
			}
		case rpc.KindCancelOnDisconnect:
			opErr = sess.CancelOnDisconnect(ctx, req.Path)
		case rpc.KindSubscribe:
			if _, dup := subs[req.SubID]; dup {
				opErr = apperr.AlreadyExists("subscription id in use")
				break
			}
			if opErr = checkRealtimeRead(uid, req.Path); opErr != nil {
				break
			}
			var sub *stream.Subscription[any]
			if sub, opErr = sess.Subscribe(ctx, req.Path); opErr == nil {
				subs[req.SubID] = sub
				forwarders.Add(1)
				go func() {
					defer forwarders.Done()
					forwardValues(sub, req.SubID, req.Path, send)
				}()
			}
		case rpc.KindUnsubscribe:
			if sub, ok := subs[req.SubID]; ok {
				delete(subs, req.SubID)
				sub.Close()
			}
		default:
			opErr = apperr.InvalidArg("unknown request kind: " + req.Kind)
		}

		if err := send(ack(req.Seq, opErr)); err != nil {
			return nil
		}
	}
}

// forwardValues pushes every value of sub to the client until sub closes.
func forwardValues(sub *stream.Subscription[any], id uint64, path string, send func(*rpc.SessionResponse) error) {
	for {
		select {
		case v := <-sub.Updates():
			if err := send(&rpc.SessionResponse{Kind: rpc.KindValue, SubID: id, Path: path, Value: v}); err != nil {
				sub.Close()
				return
			}
		case <-sub.Done():
			return
		}
	}
}

func ack(seq uint64, err error) *rpc.SessionResponse {
	r := &rpc.SessionResponse{Kind: rpc.KindAck, Seq: seq}
	if err != nil {
		var ae *apperr.AppError
		if !errors.As(err, &ae) {
			ae = &apperr.AppError{Code: apperr.CodeInternal, Message: "realtime operation failed"}
		}
		r.Error = &apperr.AppError{Code: ae.Code, Reason: ae.Reason, Message: ae.Message}
	}
	return r
}
