// Package modelmanager combines the model store and registry behind the
// single HTTP surface spec.md §6 describes for the Model Manager service,
// and is the contract the worker's loadModel path consults on a cache miss.
package modelmanager

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/inferna-ai/inferna/internal/apierr"
	"github.com/inferna-ai/inferna/internal/modelstore"
	"github.com/inferna-ai/inferna/internal/registry"
	"github.com/inferna-ai/inferna/internal/types"
)

// Service ties the blob store and catalog together.
type Service struct {
	store    *modelstore.Store
	registry *registry.Registry
}

func New(store *modelstore.Store, reg *registry.Registry) *Service {
	return &Service{store: store, registry: reg}
}

// CreateModelInput is the payload for POST /api/models.
type CreateModelInput struct {
	ModelID     string
	Data        []byte
	Type        string
	Version     string
	Description string
}

// CreateModelResult mirrors the §6 response shape.
type CreateModelResult struct {
	Status    string    `json:"status"`
	Size      int64     `json:"size"`
	Checksum  string    `json:"checksum"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateModel stores the blob and catalogs its metadata. Re-creating an
// existing (modelID, version) is rejected with ModelAlreadyExists — the
// store itself would silently overwrite (spec.md §4.1), so the guard lives
// here at the registry layer as the spec anticipates.
func (s *Service) CreateModel(ctx context.Context, in CreateModelInput) (CreateModelResult, error) {
	if in.ModelID == "" || len(in.Data) == 0 {
		return CreateModelResult{}, fmt.Errorf("%w: modelId and modelData are required", apierr.ErrInvalidModelData)
	}
	if _, err := s.registry.Get(in.ModelID, in.Version); err == nil {
		return CreateModelResult{}, fmt.Errorf("%w: %s", apierr.ErrModelAlreadyExists, in.ModelID)
	}

	res, err := s.store.Store(in.ModelID, in.Data)
	if err != nil {
		return CreateModelResult{}, err
	}

	meta, err := s.registry.Put(in.ModelID, types.ModelMetadata{
		Type:        in.Type,
		Version:     in.Version,
		Description: in.Description,
		StorageKey:  res.StorageKey,
		Checksum:    res.Checksum,
		Size:        res.Size,
	})
	if err != nil {
		_, _ = s.store.Delete(res.StorageKey)
		return CreateModelResult{}, err
	}

	log.Info().Str("model_id", in.ModelID).Str("type", in.Type).Int64("size", res.Size).Msg("model created")

	return CreateModelResult{
		Status:    "stored",
		Size:      meta.Size,
		Checksum:  meta.Checksum,
		CreatedAt: meta.CreatedAt,
	}, nil
}

// GetModel returns the catalog metadata only; the raw blob comes from
// FetchModelData, which is what the "getModel" RPC method (and so the
// worker's ModelFetcher, see Client in client.go) calls through.
func (s *Service) GetModel(modelID, version string) (types.ModelMetadata, error) {
	return s.registry.Get(modelID, version)
}

// FetchModelData returns metadata plus the underlying bytes, re-verifying
// the checksum on read per spec.md §4.1's "validateModel must confirm
// equality on read".
func (s *Service) FetchModelData(modelID, version string) (types.ModelMetadata, []byte, error) {
	meta, err := s.registry.Get(modelID, version)
	if err != nil {
		return types.ModelMetadata{}, nil, err
	}
	data, err := s.store.Fetch(meta.StorageKey)
	if err != nil {
		return types.ModelMetadata{}, nil, err
	}
	ok, err := s.store.Verify(meta.StorageKey, meta.Checksum)
	if err != nil {
		return types.ModelMetadata{}, nil, err
	}
	if !ok {
		return types.ModelMetadata{}, nil, fmt.Errorf("%w: %s", apierr.ErrIntegrityMismatch, modelID)
	}
	return meta, data, nil
}

// ListModels proxies to the registry's List.
func (s *Service) ListModels(modelType string, limit int) []types.ModelMetadata {
	return s.registry.List(modelType, limit)
}

// DeleteModel removes both the catalog entry and its blob.
func (s *Service) DeleteModel(modelID, version string) error {
	meta, err := s.registry.Get(modelID, version)
	if err != nil {
		return err
	}
	s.registry.Delete(modelID, version)
	_, err = s.store.Delete(meta.StorageKey)
	return err
}

// Status aggregates store + registry health for GET /api/v1/status.
type Status struct {
	StoreStats    modelstore.Stats `json:"store"`
	RegistryStats registry.Stats   `json:"registry"`
}

func (s *Service) Status(_ context.Context) (Status, error) {
	storeStats, err := s.store.Stats()
	if err != nil {
		return Status{}, err
	}
	return Status{StoreStats: storeStats, RegistryStats: s.registry.Stats()}, nil
}
