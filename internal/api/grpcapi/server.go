package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/aiserve/modelserver/internal/apperr"
	"github.com/aiserve/modelserver/internal/service"
)

// Server implements the handler methods behind jams_v1.ModelServer,
// delegating to the shared internal/service.Service.
type Server struct {
	svc *service.Service
}

// New returns a Server wrapping svc.
func New(svc *service.Service) *Server {
	return &Server{svc: svc}
}

func (s *Server) HealthCheck(ctx context.Context, req *HealthCheckRequest) (*HealthCheckResponse, error) {
	if err := s.svc.HealthCheck(ctx); err != nil {
		return nil, toGRPCStatus(err)
	}
	return &HealthCheckResponse{}, nil
}

func (s *Server) Predict(ctx context.Context, req *PredictRequest) (*PredictResponse, error) {
	out, err := s.svc.Predict(ctx, req.ModelName, req.Input)
	if err != nil {
		return nil, toGRPCStatus(err)
	}
	encoded, err := service.EncodePredictions(out)
	if err != nil {
		return nil, toGRPCStatus(err)
	}
	return &PredictResponse{Output: encoded}, nil
}

func (s *Server) GetModels(ctx context.Context, req *GetModelsRequest) (*GetModelsResponse, error) {
	models := s.svc.ListModels()
	out := make([]Model, len(models))
	for i, m := range models {
		out[i] = Model{Name: m.Name, Framework: m.Framework, Path: m.Path, LastUpdated: m.LastUpdated}
	}
	return &GetModelsResponse{Total: len(out), Models: out}, nil
}

func (s *Server) AddModel(ctx context.Context, req *AddModelRequest) (*AddModelResponse, error) {
	if err := s.svc.AddModel(ctx, req.ModelName); err != nil {
		return nil, toGRPCStatus(err)
	}
	return &AddModelResponse{}, nil
}

func (s *Server) UpdateModel(ctx context.Context, req *UpdateModelRequest) (*UpdateModelResponse, error) {
	if err := s.svc.UpdateModel(ctx, req.ModelName); err != nil {
		return nil, toGRPCStatus(err)
	}
	return &UpdateModelResponse{}, nil
}

func (s *Server) DeleteModel(ctx context.Context, req *DeleteModelRequest) (*DeleteModelResponse, error) {
	if err := s.svc.DeleteModel(ctx, req.ModelName); err != nil {
		return nil, toGRPCStatus(err)
	}
	return &DeleteModelResponse{}, nil
}

func toGRPCStatus(err error) error {
	switch {
	case apperr.Is(err, apperr.ErrBadInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case apperr.Is(err, apperr.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case apperr.Is(err, apperr.ErrAlreadyPresent):
		return status.Error(codes.AlreadyExists, err.Error())
	case apperr.Is(err, apperr.ErrDeadline):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// serviceDesc mirrors the shape protoc-gen-go-grpc would generate for
// "service ModelServer" in package jams_v1 — method names and a
// handler per RPC, bound to unary call semantics. Registered by
// RegisterModelServerServer.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: "jams_v1.ModelServer",
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "HealthCheck", Handler: healthCheckHandler},
		{MethodName: "Predict", Handler: predictHandler},
		{MethodName: "GetModels", Handler: getModelsHandler},
		{MethodName: "AddModel", Handler: addModelHandler},
		{MethodName: "UpdateModel", Handler: updateModelHandler},
		{MethodName: "DeleteModel", Handler: deleteModelHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "jams_v1/model_server.proto",
}

func healthCheckHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(HealthCheckRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).HealthCheck(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/jams_v1.ModelServer/HealthCheck"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*Server).HealthCheck(ctx, req.(*HealthCheckRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func predictHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(PredictRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).Predict(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/jams_v1.ModelServer/Predict"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*Server).Predict(ctx, req.(*PredictRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func getModelsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(GetModelsRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).GetModels(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/jams_v1.ModelServer/GetModels"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*Server).GetModels(ctx, req.(*GetModelsRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func addModelHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(AddModelRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).AddModel(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/jams_v1.ModelServer/AddModel"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*Server).AddModel(ctx, req.(*AddModelRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func updateModelHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(UpdateModelRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).UpdateModel(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/jams_v1.ModelServer/UpdateModel"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*Server).UpdateModel(ctx, req.(*UpdateModelRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func deleteModelHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(DeleteModelRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).DeleteModel(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/jams_v1.ModelServer/DeleteModel"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*Server).DeleteModel(ctx, req.(*DeleteModelRequest))
	}
	return interceptor(ctx, req, info, handler)
}

// RegisterModelServerServer registers srv against gs, the same call
// shape generated code would expose.
func RegisterModelServerServer(gs *grpc.Server, srv *Server) {
	gs.RegisterService(&serviceDesc, srv)
}

// NewGRPCServer returns a *grpc.Server forced onto the JSON codec so
// no protobuf runtime is needed for wire marshaling.
func NewGRPCServer(opts ...grpc.ServerOption) *grpc.Server {
	allOpts := append([]grpc.ServerOption{grpc.ForceServerCodec(jsonCodec{})}, opts...)
	return grpc.NewServer(allOpts...)
}
