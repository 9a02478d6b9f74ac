package risk

import (
	"log/slog"
	"math"

	"github.com/fridayops/crossing/pkg/analysis/crossing"
	"github.com/fridayops/crossing/pkg/config"
	"github.com/fridayops/crossing/pkg/models"
)

// Scorer converts a detected crossing into information-loss scores and a
// discrete risk level. Meanings are approximated by enclosing function: sites
// in one function carry one meaning, sites in different functions are
// distinct unless they share an identical literal message. Entropy assumes
// uniform meaning frequency since no execution data exists.
type Scorer struct {
	logger  *slog.Logger
	banding config.RiskBandingConfig
}

// NewScorer creates a scorer with the given banding policy.
func NewScorer(logger *slog.Logger, banding config.RiskBandingConfig) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{logger: logger, banding: banding}
}

// Score fills in the derived fields of a finding's crossing. Scores come
// from the confirmed set; when only possible sites exist the meanings are
// counted over those but the level is capped at low, since the reachability
// is unproven.
func (s *Scorer) Score(f *crossing.Finding) {
	c := &f.Crossing
	possibleOnly := len(c.ConfirmedSites) == 0

	sites := c.ConfirmedSites
	if possibleOnly {
		sites = c.PossibleSites
	}

	k := distinctMeanings(sites)
	c.DistinctMeanings = k

	if k <= 1 {
		c.EntropyBits = 0
		c.BitsLost = 0
		c.CollapseFraction = 0
		c.RiskLevel = models.RiskNone
		return
	}

	c.EntropyBits = math.Log2(float64(k))
	c.BitsLost = c.EntropyBits
	if f.Branches > 1 {
		c.BitsLost = math.Max(0, c.EntropyBits-math.Log2(float64(f.Branches)))
	}
	c.CollapseFraction = c.BitsLost / c.EntropyBits

	c.RiskLevel = s.band(k, c.CollapseFraction)
	if possibleOnly && c.RiskLevel > models.RiskLow {
		c.RiskLevel = models.RiskLow
	}
}

// band maps (distinct meanings, collapse fraction) to a level. Monotonic:
// more meanings or more collapse never lowers the level.
func (s *Scorer) band(k int, collapse float64) models.RiskLevel {
	if k <= 1 {
		return models.RiskNone
	}
	if collapse == 0 {
		return models.RiskLow
	}
	if k >= s.banding.HighMeanings && collapse >= s.banding.HighCollapse {
		return models.RiskHigh
	}
	if k >= s.banding.ElevatedMeanings && collapse >= s.banding.ElevatedCollapse {
		return models.RiskElevated
	}
	return models.RiskMedium
}

// distinctMeanings partitions sites by enclosing function, then merges
// functions whose sites share an identical non-empty message template. Two
// raise sites formatting the same message are the same complaint no matter
// where they live.
func distinctMeanings(sites []models.SiteRef) int {
	if len(sites) == 0 {
		return 0
	}

	parent := make(map[string]string)
	var find func(x string) string
	find = func(x string) string {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(a, b string) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	byMessage := make(map[string]string)
	for _, site := range sites {
		fn := site.EnclosingFunction
		if _, ok := parent[fn]; !ok {
			parent[fn] = fn
		}
		if site.Message == "" {
			continue
		}
		if other, ok := byMessage[site.Message]; ok {
			union(fn, other)
		} else {
			byMessage[site.Message] = fn
		}
	}

	roots := make(map[string]bool)
	for fn := range parent {
		roots[find(fn)] = true
	}
	return len(roots)
}
