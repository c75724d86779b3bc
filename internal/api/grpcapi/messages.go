// Package grpcapi implements the jams_v1.ModelServer gRPC service
// (spec §6) by hand, without a protoc toolchain: plain Go structs
// carried over a JSON encoding.Codec, registered through a
// hand-authored grpc.ServiceDesc in the same shape protoc-gen-go-grpc
// would emit. Generated stubs are explicitly out of spec's scope
// (spec §1), and no protoc toolchain is available in this environment.
package grpcapi

// HealthCheckRequest/Response mirror GET /healthcheck.
type HealthCheckRequest struct{}
type HealthCheckResponse struct{}

// PredictRequest/Response mirror POST /api/predict.
type PredictRequest struct {
	ModelName string `json:"model_name"`
	Input     string `json:"input"`
}
type PredictResponse struct {
	Output string `json:"output"`
}

// Model mirrors one entry of GET /api/models' "models" array.
type Model struct {
	Name        string `json:"name"`
	Framework   string `json:"framework"`
	Path        string `json:"path"`
	LastUpdated string `json:"last_updated"`
}

// GetModelsRequest/Response mirror GET /api/models.
type GetModelsRequest struct{}
type GetModelsResponse struct {
	Total  int     `json:"total"`
	Models []Model `json:"models"`
}

// AddModelRequest/Response mirror POST /api/models.
type AddModelRequest struct {
	ModelName string `json:"model_name"`
}
type AddModelResponse struct{}

// UpdateModelRequest/Response mirror PUT /api/models.
type UpdateModelRequest struct {
	ModelName string `json:"model_name"`
}
type UpdateModelResponse struct{}

// DeleteModelRequest/Response mirror DELETE /api/models.
type DeleteModelRequest struct {
	ModelName string `json:"model_name"`
}
type DeleteModelResponse struct{}
