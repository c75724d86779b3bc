package grpcapi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/aiserve/modelserver/internal/dispatcher"
	"github.com/aiserve/modelserver/internal/predictor"
	"github.com/aiserve/modelserver/internal/registry"
	"github.com/aiserve/modelserver/internal/service"
	"github.com/aiserve/modelserver/internal/store"
	"github.com/aiserve/modelserver/internal/tensor"
)

type fakeStore struct{}

func (fakeStore) List(ctx context.Context) ([]store.Artifact, error)     { return nil, nil }
func (fakeStore) Fetch(ctx context.Context, key string) ([]byte, error) { return nil, nil }
func (fakeStore) Exists(ctx context.Context, key string) (bool, error)  { return false, nil }

type fakePredictor struct{ fw predictor.Framework }

func (p *fakePredictor) Predict(ctx context.Context, in *tensor.Input) (*predictor.Output, error) {
	return &predictor.Output{Rows: [][]float64{{9}}}, nil
}
func (p *fakePredictor) Framework() predictor.Framework { return p.fw }
func (p *fakePredictor) Close() error                   { return nil }

func newTestServer(t *testing.T) (*Server, *registry.Registry) {
	t.Helper()
	reg := registry.New()
	disp := dispatcher.New(1, 1)
	t.Cleanup(disp.Stop)
	svc := service.New(reg, disp, nil, fakeStore{})
	return New(svc), reg
}

func TestHealthCheckSucceeds(t *testing.T) {
	s, _ := newTestServer(t)
	_, err := s.HealthCheck(context.Background(), &HealthCheckRequest{})
	require.NoError(t, err)
}

func TestPredictReturnsNotFoundStatus(t *testing.T) {
	s, _ := newTestServer(t)
	_, err := s.Predict(context.Background(), &PredictRequest{ModelName: "missing", Input: "{}"})
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.NotFound, st.Code())
}

func TestPredictSucceeds(t *testing.T) {
	s, reg := newTestServer(t)
	key := registry.Key("m")
	reg.Put(&registry.Entry{Key: key, Framework: predictor.CatBoost, Version: "v1", Ref: predictor.NewRef(&fakePredictor{fw: predictor.CatBoost})})

	resp, err := s.Predict(context.Background(), &PredictRequest{ModelName: "m", Input: `{"x": [1]}`})
	require.NoError(t, err)
	assert.Contains(t, resp.Output, "predictions")
}

func TestGetModelsReturnsEmptyList(t *testing.T) {
	s, _ := newTestServer(t)
	resp, err := s.GetModels(context.Background(), &GetModelsRequest{})
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Total)
	assert.Empty(t, resp.Models)
}

func TestAddModelReturnsAlreadyExistsStatus(t *testing.T) {
	s, reg := newTestServer(t)
	key := registry.Key("m")
	reg.Put(&registry.Entry{Key: key, Framework: predictor.TensorFlow, Version: "v1", Ref: predictor.NewRef(&fakePredictor{fw: predictor.TensorFlow})})

	_, err := s.AddModel(context.Background(), &AddModelRequest{ModelName: "tensorflow-m"})
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.AlreadyExists, st.Code())
}

func TestDeleteModelIsIdempotent(t *testing.T) {
	s, _ := newTestServer(t)
	_, err := s.DeleteModel(context.Background(), &DeleteModelRequest{ModelName: "never-loaded"})
	require.NoError(t, err)
}

func TestRegisterModelServerServerExposesAllMethods(t *testing.T) {
	names := make(map[string]bool)
	for _, m := range serviceDesc.Methods {
		names[m.MethodName] = true
	}
	for _, want := range []string{"HealthCheck", "Predict", "GetModels", "AddModel", "UpdateModel", "DeleteModel"} {
		assert.True(t, names[want], "missing method %s", want)
	}
}
