package anchor

import (
	"math"

	"github.com/jwgray1010/PawCoin/internal/model"
)

// DefaultNearestDistance is the search radius used when FindNearestAnchor is
// given a negative maxDistance. Zero matches only the exact position.
const DefaultNearestDistance = 1.0

// FindNearestAnchor returns the cached anchor closest to pos within
// maxDistance. Anchors without a position are skipped.
func (m *Manager) FindNearestAnchor(pos model.Position, maxDistance float64) (model.AnchorRecord, bool) {
	if maxDistance < 0 {
		maxDistance = DefaultNearestDistance
	}
	var (
		nearest model.AnchorRecord
		found   bool
		best    = math.Inf(1)
	)
	for _, rec := range m.cache.All() {
		if rec.Position == nil {
			continue
		}
		d := rec.Position.Distance(pos)
		if d < best && d <= maxDistance {
			best, nearest, found = d, rec, true
		}
	}
	return nearest, found
}

// AnchorsForKid returns the cached anchors assigned to kidID.
func (m *Manager) AnchorsForKid(kidID string) []model.AnchorRecord {
	var out []model.AnchorRecord
	for _, rec := range m.cache.All() {
		if rec.AssignedKidID == kidID {
			out = append(out, rec)
		}
	}
	return out
}
