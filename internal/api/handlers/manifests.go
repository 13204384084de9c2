package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
	"k8s.io/apimachinery/pkg/util/yaml"

	"github.com/pbar1/ssh-benchmark/internal/manifest"
	"github.com/pbar1/ssh-benchmark/internal/topology"
)

// maxRequestBytes bounds the size of a render request body
const maxRequestBytes = 1 << 20

// BundleStore caches rendered bundles by configuration
type BundleStore interface {
	Fetch(ctx context.Context, cfg topology.ScaleConfiguration, render func() ([]byte, error)) ([]byte, bool, error)
}

// ManifestHandler renders manifest bundles on request
type ManifestHandler struct {
	store  BundleStore
	logger *zap.Logger
}

// NewManifestHandler creates a new manifest handler. store may be nil.
func NewManifestHandler(store BundleStore, logger *zap.Logger) *ManifestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ManifestHandler{
		store:  store,
		logger: logger,
	}
}

// Handle handles POST /api/v1/manifests
// The body is a JSON or YAML scale configuration; omitted fields take the defaults
// of the requested strategy. The response is a multi-document YAML bundle.
func (h *ManifestHandler) Handle(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes+1))
	if err != nil {
		h.logger.Warn("failed to read render request", zap.Error(err))
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(body) > maxRequestBytes {
		respondWithError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	cfg, err := decodeScaleConfiguration(body)
	if err != nil {
		h.logger.Warn("failed to decode render request", zap.Error(err))
		if errors.Is(err, topology.ErrInvalidConfig) {
			respondWithJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid scale configuration", Problems: []string{err.Error()}})
			return
		}
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	render := func() ([]byte, error) {
		out, err := manifest.Generate(cfg)
		if err != nil {
			return nil, err
		}
		return manifest.Bundle(out.Documents), nil
	}

	var (
		bundle []byte
		hit    bool
	)
	if h.store != nil {
		bundle, hit, err = h.store.Fetch(r.Context(), cfg, render)
	} else {
		bundle, err = render()
	}
	if err != nil {
		var cerr *topology.ConfigError
		if errors.As(err, &cerr) {
			h.logger.Info("rejected scale configuration",
				zap.String("strategy", cfg.Strategy.String()),
				zap.Strings("problems", cerr.Problems()),
			)
			respondWithJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid scale configuration", Problems: cerr.Problems()})
			return
		}
		h.logger.Error("render failed", zap.Error(err), zap.String("strategy", cfg.Strategy.String()))
		respondWithError(w, http.StatusInternalServerError, "render failed")
		return
	}

	cacheStatus := "miss"
	if hit {
		cacheStatus = "hit"
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("X-Cache", cacheStatus)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(bundle); err != nil {
		h.logger.Warn("failed to write bundle", zap.Error(err))
	}
}

// decodeScaleConfiguration resolves the strategy first, then overlays the request on
// that strategy's defaults. An empty body yields the single-container defaults. Default
// targets that do not fit the requested topology fall back to every target; an explicit
// empty list selects every target too.
func decodeScaleConfiguration(body []byte) (topology.ScaleConfiguration, error) {
	var head struct {
		Strategy string `json:"strategy"`
		Targets  struct {
			Ordinals []int32 `json:"ordinals"`
			Ports    []int32 `json:"ports"`
		} `json:"targets"`
	}
	if err := decodeDocument(body, &head); err != nil {
		return topology.ScaleConfiguration{}, err
	}

	strategy := topology.SingleContainer
	if head.Strategy != "" {
		s, err := topology.ParseStrategy(head.Strategy)
		if err != nil {
			return topology.ScaleConfiguration{}, err
		}
		strategy = s
	}

	cfg := topology.DefaultScaleConfiguration(strategy)
	if err := decodeDocument(body, &cfg); err != nil {
		return topology.ScaleConfiguration{}, err
	}
	cfg.Strategy = strategy
	cfg.FitTargets(head.Targets.Ordinals != nil, head.Targets.Ports != nil)
	return cfg, nil
}

func decodeDocument(body []byte, into interface{}) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := yaml.NewYAMLOrJSONDecoder(bytes.NewReader(body), 4096).Decode(into); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode scale configuration: %w", err)
	}
	return nil
}
