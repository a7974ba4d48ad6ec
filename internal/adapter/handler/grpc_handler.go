package handler

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rl1809/crm/internal/platform/logger"
)

const (
	ServiceName = "crm.v1.CRMService"

	mutateMethod = "/" + ServiceName + "/Mutate"
	queryMethod  = "/" + ServiceName + "/Query"
)

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec carries the shared JSON envelopes over gRPC under the "json"
// content-subtype.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return "json" }

type CRMServer interface {
	Mutate(ctx context.Context, req *MutationRequest) (*Response, error)
	Query(ctx context.Context, req *QueryRequest) (*Response, error)
}

var CRMServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CRMServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Mutate", Handler: mutateHandler},
		{MethodName: "Query", Handler: queryHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "crm/v1/crm",
}

func RegisterCRMServer(s grpc.ServiceRegistrar, srv CRMServer) {
	s.RegisterService(&CRMServiceDesc, srv)
}

func mutateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(MutationRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CRMServer).Mutate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: mutateMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CRMServer).Mutate(ctx, req.(*MutationRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func queryHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(QueryRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CRMServer).Query(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: queryMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CRMServer).Query(ctx, req.(*QueryRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// GRPCHandler reports operation failures in-band; only undecodable requests
// fail the call itself.
type GRPCHandler struct {
	gw  *Gateway
	log *logger.Logger
}

func NewGRPCHandler(gw *Gateway, log *logger.Logger) *GRPCHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &GRPCHandler{gw: gw, log: log.With("component", "grpc")}
}

func (h *GRPCHandler) Mutate(ctx context.Context, req *MutationRequest) (*Response, error) {
	res, err := h.gw.Mutate(ctx, *req)
	if err != nil {
		return h.failure(ctx, err)
	}
	return ok(res), nil
}

func (h *GRPCHandler) Query(ctx context.Context, req *QueryRequest) (*Response, error) {
	v, err := h.gw.Query(ctx, *req)
	if err != nil {
		return h.failure(ctx, err)
	}
	return ok(v), nil
}

func (h *GRPCHandler) failure(ctx context.Context, err error) (*Response, error) {
	if errors.Is(err, ErrBadRequest) {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, status.FromContextError(ctxErr).Err()
	}
	if StatusFor(err) >= 500 {
		h.log.Error("rpc failed", "error", err)
	}
	return fail(err), nil
}

// UnaryLogger tags each call with a request id and logs its outcome.
func UnaryLogger(log *logger.Logger) grpc.UnaryServerInterceptor {
	if log == nil {
		log = logger.Nop()
	}
	log = log.With("component", "grpc")
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		id := requestIDFrom(ctx)
		if err := grpc.SetHeader(ctx, metadata.Pairs("x-request-id", id)); err != nil {
			log.Debug("set request id header", "error", err)
		}

		resp, err := handler(ctx, req)
		log.Info("grpc request",
			"request_id", id,
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"latency", time.Since(start),
		)
		return resp, err
	}
}

func requestIDFrom(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get("x-request-id"); len(v) > 0 && v[0] != "" {
			return v[0]
		}
	}
	return uuid.NewString()
}

// Client calls CRMService with the JSON codec.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) Mutate(ctx context.Context, req *MutationRequest, opts ...grpc.CallOption) (*Response, error) {
	out := new(Response)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype("json")}, opts...)
	if err := c.cc.Invoke(ctx, mutateMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Query(ctx context.Context, req *QueryRequest, opts ...grpc.CallOption) (*Response, error) {
	out := new(Response)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype("json")}, opts...)
	if err := c.cc.Invoke(ctx, queryMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
