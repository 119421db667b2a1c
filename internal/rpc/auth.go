package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
)

const (
	AuthService = "chat.v1.Auth"

	Auth_SignUp_FullMethodName        = "/chat.v1.Auth/SignUp"
	Auth_SignIn_FullMethodName        = "/chat.v1.Auth/SignIn"
	Auth_UpdateProfile_FullMethodName = "/chat.v1.Auth/UpdateProfile"
	Auth_Me_FullMethodName            = "/chat.v1.Auth/Me"
)

type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *SignUpRequest) GetEmail() string { return r.Email }

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *SignInRequest) GetEmail() string { return r.Email }

type UserInfo struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
}

// AuthResponse carries the session token for a signed in user.
type AuthResponse struct {
	Token     string   `json:"token"`
	ExpiresAt int64    `json:"expires_at"` // unix seconds
	User      UserInfo `json:"user"`
}

// UpdateProfileRequest leaves nil fields unchanged.
type UpdateProfileRequest struct {
	DisplayName *string `json:"displayName,omitempty"`
	PhotoURL    *string `json:"photoURL,omitempty"`
}

type AuthServer interface {
	SignUp(context.Context, *SignUpRequest) (*AuthResponse, error)
	SignIn(context.Context, *SignInRequest) (*AuthResponse, error)
	UpdateProfile(context.Context, *UpdateProfileRequest) (*UserInfo, error)
	Me(context.Context, *emptypb.Empty) (*UserInfo, error)
}

var Auth_ServiceDesc = grpc.ServiceDesc{
	ServiceName: AuthService,
	HandlerType: (*AuthServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(AuthService, "SignUp", AuthServer.SignUp),
		unary(AuthService, "SignIn", AuthServer.SignIn),
		unary(AuthService, "UpdateProfile", AuthServer.UpdateProfile),
		unary(AuthService, "Me", AuthServer.Me),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "chat/v1/auth",
}

func RegisterAuthServer(s grpc.ServiceRegistrar, srv AuthServer) {
	s.RegisterService(&Auth_ServiceDesc, srv)
}

type AuthClient interface {
	SignUp(ctx context.Context, in *SignUpRequest, opts ...grpc.CallOption) (*AuthResponse, error)
	SignIn(ctx context.Context, in *SignInRequest, opts ...grpc.CallOption) (*AuthResponse, error)
	UpdateProfile(ctx context.Context, in *UpdateProfileRequest, opts ...grpc.CallOption) (*UserInfo, error)
	Me(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*UserInfo, error)
}

type authClient struct {
	cc grpc.ClientConnInterface
}

func NewAuthClient(cc grpc.ClientConnInterface) AuthClient {
	return &authClient{cc}
}

func (c *authClient) SignUp(ctx context.Context, in *SignUpRequest, opts ...grpc.CallOption) (*AuthResponse, error) {
	return invoke[AuthResponse](ctx, c.cc, Auth_SignUp_FullMethodName, in, opts)
}

func (c *authClient) SignIn(ctx context.Context, in *SignInRequest, opts ...grpc.CallOption) (*AuthResponse, error) {
	return invoke[AuthResponse](ctx, c.cc, Auth_SignIn_FullMethodName, in, opts)
}

func (c *authClient) UpdateProfile(ctx context.Context, in *UpdateProfileRequest, opts ...grpc.CallOption) (*UserInfo, error) {
	return invoke[UserInfo](ctx, c.cc, Auth_UpdateProfile_FullMethodName, in, opts)
}

func (c *authClient) Me(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*UserInfo, error) {
	return invoke[UserInfo](ctx, c.cc, Auth_Me_FullMethodName, in, opts)
}
