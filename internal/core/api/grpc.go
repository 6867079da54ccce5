package api

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/pact-foundation/pactengine/internal/generators"
	"github.com/pact-foundation/pactengine/internal/interaction"
	"github.com/pact-foundation/pactengine/internal/jsondoc"
	"github.com/pact-foundation/pactengine/internal/plan"
	"github.com/pact-foundation/pactengine/internal/types"
)

/*
 * The gRPC surface carries google.protobuf.Struct in both directions, so
 * no generated stubs are needed.
 *
 *   Verify   {"plan": <plan doc>} or {"plan_name": s} or {"interaction": <doc>}
 *            plus "request" and/or "response" and an optional "contract_id"
 *            -> {"ok": b, "summary": s, "tree": s, "errors": [s],
 *                "verification_id": s}
 *   Generate {"generators": <category map>, "body": <json>, "contract_id"?,
 *             "seed"?, "provider_state"?} -> {"body": <json>}
 */

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "pactengine.v1.ContractEngine"

// Full method names.
const (
	VerifyMethod   = "/" + ServiceName + "/Verify"
	GenerateMethod = "/" + ServiceName + "/Generate"
)

// ContractEngineServer is the server API of the gRPC service.
type ContractEngineServer interface {
	Verify(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Generate(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes the gRPC service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ContractEngineServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Verify", Handler: unaryHandler(VerifyMethod, ContractEngineServer.Verify)},
		{MethodName: "Generate", Handler: unaryHandler(GenerateMethod, ContractEngineServer.Generate)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pactengine/v1/contract_engine.proto",
}

type unaryMethod func(ContractEngineServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, method unaryMethod) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return method(srv.(ContractEngineServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return method(srv.(ContractEngineServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// RegisterContractEngineServer registers srv with s.
func RegisterContractEngineServer(s grpc.ServiceRegistrar, srv ContractEngineServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ContractEngineClient calls the gRPC service.
type ContractEngineClient struct {
	cc grpc.ClientConnInterface
}

// NewContractEngineClient returns a client using cc.
func NewContractEngineClient(cc grpc.ClientConnInterface) *ContractEngineClient {
	return &ContractEngineClient{cc: cc}
}

// Verify calls the Verify method.
func (c *ContractEngineClient) Verify(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, VerifyMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Generate calls the Generate method.
func (c *ContractEngineClient) Generate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GenerateMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// GRPCService adapts a ContractService to ContractEngineServer.
type GRPCService struct {
	svc *ContractService
}

// NewGRPCService wraps svc.
func NewGRPCService(svc *ContractService) *GRPCService {
	return &GRPCService{svc: svc}
}

// Verify implements ContractEngineServer.
func (g *GRPCService) Verify(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := verifyRequestFromStruct(in)
	if err != nil {
		return nil, statusFor(err)
	}
	result, err := g.svc.Verify(ctx, req)
	if err != nil {
		return nil, statusFor(err)
	}

	errs := make([]any, len(result.Errors))
	for i, e := range result.Errors {
		errs[i] = e
	}
	out, err := structpb.NewStruct(map[string]any{
		"ok":              result.OK,
		"summary":         result.Summary(false),
		"tree":            result.PrettyForm(),
		"errors":          errs,
		"verification_id": string(result.VerificationID),
	})
	if err != nil {
		return nil, statusFor(err)
	}
	return out, nil
}

// Generate implements ContractEngineServer.
func (g *GRPCService) Generate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := generateRequestFromStruct(in)
	if err != nil {
		return nil, statusFor(err)
	}
	body, err := g.svc.Generate(ctx, req)
	if err != nil {
		return nil, statusFor(err)
	}
	plain, err := toPlain(body)
	if err != nil {
		return nil, statusFor(err)
	}
	out, err := structpb.NewStruct(map[string]any{"body": plain})
	if err != nil {
		return nil, statusFor(err)
	}
	return out, nil
}

// fromStruct re-reads a Struct as a JSON document so numbers arrive the
// way the document decoders expect.
func fromStruct(in *structpb.Struct) (map[string]any, error) {
	data, err := json.Marshal(in.AsMap())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	doc, err := jsondoc.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	obj, _ := doc.(map[string]any)
	return obj, nil
}

// toPlain converts a JSON document into values structpb accepts.
func toPlain(doc any) (any, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func verifyRequestFromStruct(in *structpb.Struct) (*VerifyRequest, error) {
	obj, err := fromStruct(in)
	if err != nil {
		return nil, err
	}

	req := &VerifyRequest{
		PlanName:   str(obj, "plan_name"),
		ContractID: types.ContractID(str(obj, "contract_id")),
	}
	if raw, ok := obj["plan"]; ok && raw != nil {
		data, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		if req.Plan, err = plan.Decode(data, plan.FormatJSON); err != nil {
			return nil, err
		}
	}
	if raw, ok := obj["interaction"].(map[string]any); ok {
		data, _ := json.Marshal(raw)
		if req.Expected, err = interaction.ParseInteraction(data); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
	}
	if raw, ok := obj["request"].(map[string]any); ok {
		if req.Request, err = interaction.RequestFromJSON(raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
	}
	if raw, ok := obj["response"].(map[string]any); ok {
		if req.Response, err = interaction.ResponseFromJSON(raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
	}
	return req, nil
}

func generateRequestFromStruct(in *structpb.Struct) (*GenerateRequest, error) {
	obj, err := fromStruct(in)
	if err != nil {
		return nil, err
	}

	req := &GenerateRequest{
		Body:       obj["body"],
		ContractID: types.ContractID(str(obj, "contract_id")),
	}
	if gens, ok := obj["generators"].(map[string]any); ok {
		req.Generators = generators.FromJSON(gens)
	}
	if n, ok := obj["seed"].(json.Number); ok {
		if req.Seed, err = n.Int64(); err != nil {
			return nil, fmt.Errorf("%w: seed must be an integer", ErrInvalidRequest)
		}
	}
	if state, ok := obj["provider_state"].(map[string]any); ok {
		req.ProviderState = state
	}
	return req, nil
}

func str(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}
