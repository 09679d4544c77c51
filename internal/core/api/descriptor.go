package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

/*
 * RuleEngine service descriptor.
 *
 * Messages are google.protobuf.Struct so the service needs no generated code:
 * the descriptor, handlers and client below are what protoc-gen-go-grpc would
 * emit for
 *
 *   service RuleEngine {
 *     rpc Apply(google.protobuf.Struct) returns (google.protobuf.Struct);
 *     rpc PutRuleSet(google.protobuf.Struct) returns (google.protobuf.Struct);
 *     rpc GetRuleSet(google.protobuf.Struct) returns (google.protobuf.Struct);
 *   }
 */

// Full method names of the RuleEngine service.
const (
	RuleEngineServiceName                = "packkeeper.rules.v1.RuleEngine"
	RuleEngine_Apply_FullMethodName      = "/packkeeper.rules.v1.RuleEngine/Apply"
	RuleEngine_PutRuleSet_FullMethodName = "/packkeeper.rules.v1.RuleEngine/PutRuleSet"
	RuleEngine_GetRuleSet_FullMethodName = "/packkeeper.rules.v1.RuleEngine/GetRuleSet"
)

// RuleEngineServer is the server API for the RuleEngine service.
type RuleEngineServer interface {
	Apply(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PutRuleSet(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRuleSet(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterRuleEngineServer registers srv with s.
func RegisterRuleEngineServer(s grpc.ServiceRegistrar, srv RuleEngineServer) {
	s.RegisterService(&RuleEngine_ServiceDesc, srv)
}

// RuleEngine_ServiceDesc is the grpc.ServiceDesc for the RuleEngine service.
var RuleEngine_ServiceDesc = grpc.ServiceDesc{
	ServiceName: RuleEngineServiceName,
	HandlerType: (*RuleEngineServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Apply", Handler: unaryHandler(RuleEngine_Apply_FullMethodName, RuleEngineServer.Apply)},
		{MethodName: "PutRuleSet", Handler: unaryHandler(RuleEngine_PutRuleSet_FullMethodName, RuleEngineServer.PutRuleSet)},
		{MethodName: "GetRuleSet", Handler: unaryHandler(RuleEngine_GetRuleSet_FullMethodName, RuleEngineServer.GetRuleSet)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "packkeeper/rules/v1/rule_engine.proto",
}

type structMethod func(RuleEngineServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call structMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(RuleEngineServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(RuleEngineServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// RuleEngineClient is the client API for the RuleEngine service.
type RuleEngineClient struct {
	cc grpc.ClientConnInterface
}

// NewRuleEngineClient returns a client over cc.
func NewRuleEngineClient(cc grpc.ClientConnInterface) *RuleEngineClient {
	return &RuleEngineClient{cc: cc}
}

func (c *RuleEngineClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Apply runs rules against the rows in the request.
func (c *RuleEngineClient) Apply(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, RuleEngine_Apply_FullMethodName, in, opts...)
}

// PutRuleSet stores a new rule set revision.
func (c *RuleEngineClient) PutRuleSet(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, RuleEngine_PutRuleSet_FullMethodName, in, opts...)
}

// GetRuleSet fetches a stored rule set revision.
func (c *RuleEngineClient) GetRuleSet(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, RuleEngine_GetRuleSet_FullMethodName, in, opts...)
}
