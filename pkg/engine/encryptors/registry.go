package encryptors

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/bridgekit/bridgearchiver/pkg/engine"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

type Factory func(ctx context.Context, logger *zap.Logger, fs afero.Fs, input any) (engine.Encryptor, error)

// TypedFactory is a strongly-typed encryptor factory.
// T is the concrete source type (e.g. CMSSource).
type TypedFactory[T any] func(ctx context.Context, logger *zap.Logger, fs afero.Fs, spec T) (engine.Encryptor, error)

// NewFactory wraps a typed factory into a generic Factory.
// It centralizes the unsafe cast from any → T and provides a clear error if the type mismatches.
func NewFactory[T any](kind string, f TypedFactory[T]) Factory {
	return func(ctx context.Context, logger *zap.Logger, fs afero.Fs, input any) (engine.Encryptor, error) {
		spec, ok := input.(T)
		if !ok {
			return nil, fmt.Errorf("invalid encryptor spec for kind %q: %T", kind, input)
		}
		return f(ctx, logger, fs, spec)
	}
}

// UnsupportedTypeError is returned when an encryptor kind is not registered.
type UnsupportedTypeError struct {
	Kind      string   // the requested kind
	Available []string // registered kinds
}

func (e *UnsupportedTypeError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("unsupported encryptor type %q: no encryptors registered", e.Kind)
	}
	return fmt.Sprintf("unsupported encryptor type %q (available: %v)", e.Kind, e.Available)
}

// CMSSource points at a PEM certificate to encrypt to.
type CMSSource struct {
	CertificatePath string
	Config          CMSConfig
}

// TinkSource points at a JSON public keyset to encrypt to.
type TinkSource struct {
	KeysetPath string
	Config     TinkConfig
}

type Registry struct {
	mu         sync.RWMutex
	encryptors map[string]Factory
	logger     *zap.Logger
	fs         afero.Fs
}

func NewRegistry(logger *zap.Logger, fs afero.Fs) *Registry {
	return &Registry{
		encryptors: make(map[string]Factory),
		logger:     logger,
		fs:         fs,
	}
}

// NewDefaultRegistry returns a registry with the cms and tink encryptors registered.
func NewDefaultRegistry(logger *zap.Logger, fs afero.Fs) *Registry {
	r := NewRegistry(logger, fs)
	r.Register(CMSKind, NewFactory(CMSKind, func(_ context.Context, logger *zap.Logger, fs afero.Fs, spec CMSSource) (engine.Encryptor, error) {
		enc, err := LoadCMS(fs, spec.CertificatePath, spec.Config)
		if err != nil {
			return nil, err
		}
		logger.Debug("loaded cms encryptor", zap.String("certificate", spec.CertificatePath), zap.String("encryptor", enc.Name()))
		return enc, nil
	}))
	r.Register(TinkKind, NewFactory(TinkKind, func(_ context.Context, logger *zap.Logger, fs afero.Fs, spec TinkSource) (engine.Encryptor, error) {
		enc, err := LoadTink(fs, spec.KeysetPath, spec.Config)
		if err != nil {
			return nil, err
		}
		logger.Debug("loaded tink encryptor", zap.String("keyset", spec.KeysetPath), zap.String("encryptor", enc.Name()))
		return enc, nil
	}))
	return r
}

func (r *Registry) Register(kind string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.encryptors[kind] = factory
}

func (r *Registry) Create(ctx context.Context, kind string, spec any) (engine.Encryptor, error) {
	r.mu.RLock()
	factory, ok := r.encryptors[kind]
	available := r.available()
	r.mu.RUnlock()
	if !ok {
		return nil, &UnsupportedTypeError{Kind: kind, Available: available}
	}
	return factory(ctx, r.logger, r.fs, spec)
}

func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.available()
}

func (r *Registry) available() []string {
	kinds := lo.Keys(r.encryptors)
	slices.Sort(kinds)
	return kinds
}
