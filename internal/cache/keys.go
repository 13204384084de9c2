package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/pbar1/ssh-benchmark/internal/topology"
)

// KeyPrefix is the prefix for all Redis keys written by the generator
const KeyPrefix = "manifestgen:"

// BundleKey returns the Redis key for the bundle rendered from cfg. Equivalent
// configurations hash to the same key because quantities encode canonically.
func BundleKey(cfg topology.ScaleConfiguration) (string, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to encode configuration: %w", err)
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%sbundle:%s", KeyPrefix, hex.EncodeToString(sum[:])), nil
}
