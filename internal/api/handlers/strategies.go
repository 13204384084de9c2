package handlers

import (
	"net/http"

	"github.com/pbar1/ssh-benchmark/internal/topology"
)

// StrategyInfo describes one sharding strategy and its reference parameters
type StrategyInfo struct {
	Name                 topology.Strategy           `json:"name"`
	ExposesObservability bool                        `json:"exposesObservability"`
	ScalesClientMemory   bool                        `json:"scalesClientMemory"`
	Defaults             topology.ScaleConfiguration `json:"defaults"`
}

// HandleStrategies handles GET /api/v1/strategies
func HandleStrategies(w http.ResponseWriter, r *http.Request) {
	strategies := topology.Strategies()
	infos := make([]StrategyInfo, 0, len(strategies))
	for _, s := range strategies {
		infos = append(infos, StrategyInfo{
			Name:                 s,
			ExposesObservability: s.ExposesObservability(),
			ScalesClientMemory:   s.ScalesClientMemory(),
			Defaults:             topology.DefaultScaleConfiguration(s),
		})
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"strategies": infos})
}
