package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/mr-tron/base58"

	"microstructure-lab/internal/domain"
)

// ComputeParamsHash computes a deterministic fingerprint of a parameter set.
// Formula: SHA256(spread_window|vol_window|depth_window|z_threshold|depth_factor|horizon)
// Floats are formatted with the shortest exact representation.
// Returns hex-encoded hash (64 characters).
func ComputeParamsHash(p domain.Params) string {
	data := fmt.Sprintf("%d|%d|%d|%s|%s|%d",
		p.SpreadWindow,
		p.VolWindow,
		p.DepthWindow,
		strconv.FormatFloat(p.ZThreshold, 'g', -1, 64),
		strconv.FormatFloat(p.DepthFactor, 'g', -1, 64),
		p.Horizon,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeWindowsKey computes a short base58 key of the rolling windows of a
// dataset. Runs that share it can share a rolling table.
// Formula: base58(SHA256(dataset_id|spread_window|vol_window|depth_window)[:16])
func ComputeWindowsKey(datasetID string, w domain.Windows) string {
	data := fmt.Sprintf("%s|%d|%d|%d", datasetID, w.Spread, w.Vol, w.Depth)

	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:16])
}
