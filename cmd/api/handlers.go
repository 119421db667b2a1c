package main

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/Tushar13233u/my-new-chat-app/internal/apperr"
	"github.com/Tushar13233u/my-new-chat-app/internal/auth"
	"github.com/Tushar13233u/my-new-chat-app/internal/data"
	"github.com/Tushar13233u/my-new-chat-app/internal/normalize"
	"github.com/Tushar13233u/my-new-chat-app/internal/rpc"
)

// SignUp handles user registration: hashes password, stores account, returns JWT token
func (s *Server) SignUp(ctx context.Context, req *rpc.SignUpRequest) (*rpc.AuthResponse, error) {
	if !normalize.ValidEmail(req.GetEmail()) {
		return nil, apperr.ErrInvalidEmail
	}
	if len(req.Password) < auth.MinPasswordLength {
		return nil, apperr.ErrWeakPassword
	}

	// Hash password using auth utility
	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "failed to hash password", err)
	}

	// Create account in DB; a taken email surfaces as ErrEmailInUse
	acc, err := s.accounts.CreateAccount(ctx, req.GetEmail(), hashed)
	if err != nil {
		if !errors.Is(err, apperr.ErrEmailInUse) {
			s.logger.Error("create account failed", "err", err)
		}
		return nil, err
	}
	return s.sessionFor(acc)
}

// SignIn authenticates an account and returns a JWT token
func (s *Server) SignIn(ctx context.Context, req *rpc.SignInRequest) (*rpc.AuthResponse, error) {
	// unknown email and wrong password look the same to the caller
	acc, err := s.accounts.GetByEmail(ctx, req.GetEmail())
	if err != nil {
		if errors.Is(err, data.ErrAccountNotFound) {
			return nil, apperr.ErrInvalidCredential
		}
		return nil, err
	}

	// Verify password
	if err := auth.CheckPassword(acc.Password, req.Password); err != nil {
		return nil, apperr.ErrInvalidCredential
	}
	return s.sessionFor(acc)
}

// UpdateProfile changes the display name and/or photo of the caller.
func (s *Server) UpdateProfile(ctx context.Context, req *rpc.UpdateProfileRequest) (*rpc.UserInfo, error) {
	id, err := s.callerAccountID(ctx)
	if err != nil {
		return nil, err
	}
	if req.DisplayName != nil && normalize.DisplayName(*req.DisplayName) == "" {
		return nil, apperr.InvalidArg("display name must not be empty")
	}
	if err := s.accounts.UpdateProfile(ctx, id, req.DisplayName, req.PhotoURL); err != nil {
		return nil, err
	}
	acc, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	info := userInfo(acc)
	return &info, nil
}

// Me returns the caller's profile; clients use it to restore a session.
func (s *Server) Me(ctx context.Context, _ *emptypb.Empty) (*rpc.UserInfo, error) {
	id, err := s.callerAccountID(ctx)
	if err != nil {
		return nil, err
	}
	acc, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	info := userInfo(acc)
	return &info, nil
}

func (s *Server) sessionFor(acc *data.Account) (*rpc.AuthResponse, error) {
	token, expiresAt, err := s.auth.GenerateToken(acc.ID, acc.Email)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "failed to generate token", err)
	}
	return &rpc.AuthResponse{Token: token, ExpiresAt: expiresAt.Unix(), User: userInfo(acc)}, nil
}

func (s *Server) callerAccountID(ctx context.Context) (bson.ObjectID, error) {
	uid, err := callerUID(ctx)
	if err != nil {
		return bson.ObjectID{}, err
	}
	id, err := bson.ObjectIDFromHex(uid)
	if err != nil {
		return bson.ObjectID{}, apperr.Unauthorized("malformed user id in token")
	}
	return id, nil
}

func userInfo(acc *data.Account) rpc.UserInfo {
	return rpc.UserInfo{
		UID:         acc.ID.Hex(),
		Email:       acc.Email,
		DisplayName: acc.DisplayName,
		PhotoURL:    acc.PhotoURL,
	}
}
