package risk

import (
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/fridayops/crossing/pkg/analysis/crossing"
	"github.com/fridayops/crossing/pkg/config"
	"github.com/fridayops/crossing/pkg/models"
)

func testScorer() *Scorer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewScorer(logger, config.RiskBandingConfig{
		ElevatedMeanings: 3,
		ElevatedCollapse: 0.5,
		HighMeanings:     4,
		HighCollapse:     0.75,
	})
}

func site(fn, msg string) models.SiteRef {
	return models.SiteRef{File: "app.py", EnclosingFunction: fn, Message: msg}
}

func finding(branches int, confirmed ...models.SiteRef) *crossing.Finding {
	return &crossing.Finding{
		Crossing: models.Crossing{
			CaughtType:     "Exception",
			ConfirmedSites: confirmed,
		},
		Branches: branches,
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSingleMeaningIsRiskFree(t *testing.T) {
	f := finding(1, site("app.f", ""), site("app.f", ""))
	testScorer().Score(f)

	c := f.Crossing
	if c.DistinctMeanings != 1 {
		t.Errorf("distinct meanings = %d, want 1", c.DistinctMeanings)
	}
	if c.EntropyBits != 0 || c.BitsLost != 0 || c.CollapseFraction != 0 {
		t.Errorf("single meaning should score zero: %+v", c)
	}
	if c.RiskLevel != models.RiskNone {
		t.Errorf("risk = %v, want none", c.RiskLevel)
	}
}

func TestEntropyIsLogOfMeanings(t *testing.T) {
	cases := []struct {
		n    int
		want float64
	}{
		{2, 1}, {4, 2}, {8, 3},
	}
	for _, tc := range cases {
		var sites []models.SiteRef
		for i := 0; i < tc.n; i++ {
			sites = append(sites, site("app.f"+string(rune('a'+i)), ""))
		}
		f := finding(1, sites...)
		testScorer().Score(f)

		if f.Crossing.DistinctMeanings != tc.n {
			t.Errorf("n=%d: distinct meanings = %d", tc.n, f.Crossing.DistinctMeanings)
		}
		if !almostEqual(f.Crossing.EntropyBits, tc.want) {
			t.Errorf("n=%d: entropy = %v, want %v", tc.n, f.Crossing.EntropyBits, tc.want)
		}
		if !almostEqual(f.Crossing.CollapseFraction, 1) {
			t.Errorf("n=%d: collapse = %v, want 1", tc.n, f.Crossing.CollapseFraction)
		}
	}
}

func TestSharedMessageMergesMeanings(t *testing.T) {
	f := finding(1,
		site("app.f", "record not found"),
		site("app.g", "record not found"),
		site("app.h", "timeout"),
	)
	testScorer().Score(f)

	if f.Crossing.DistinctMeanings != 2 {
		t.Errorf("distinct meanings = %d, want 2 after message merge", f.Crossing.DistinctMeanings)
	}
}

func TestEmptyMessagesNeverMerge(t *testing.T) {
	f := finding(1, site("app.f", ""), site("app.g", ""))
	testScorer().Score(f)

	if f.Crossing.DistinctMeanings != 2 {
		t.Errorf("distinct meanings = %d, want 2", f.Crossing.DistinctMeanings)
	}
}

func TestBranchesReduceBitsLost(t *testing.T) {
	f := finding(2,
		site("app.f", ""), site("app.g", ""),
		site("app.h", ""), site("app.i", ""),
	)
	testScorer().Score(f)

	c := f.Crossing
	if !almostEqual(c.EntropyBits, 2) {
		t.Errorf("entropy = %v, want 2", c.EntropyBits)
	}
	if !almostEqual(c.BitsLost, 1) {
		t.Errorf("bits lost = %v, want 1 with two branches", c.BitsLost)
	}
	if !almostEqual(c.CollapseFraction, 0.5) {
		t.Errorf("collapse = %v, want 0.5", c.CollapseFraction)
	}
}

func TestBranchesCannotGoNegative(t *testing.T) {
	f := finding(8, site("app.f", ""), site("app.g", ""))
	testScorer().Score(f)

	if f.Crossing.BitsLost != 0 {
		t.Errorf("bits lost = %v, want 0", f.Crossing.BitsLost)
	}
	if f.Crossing.RiskLevel != models.RiskLow {
		t.Errorf("risk = %v, want low when nothing is lost", f.Crossing.RiskLevel)
	}
}

func TestBandingThresholds(t *testing.T) {
	cases := []struct {
		meanings int
		want     models.RiskLevel
	}{
		{2, models.RiskMedium},
		{3, models.RiskElevated},
		{4, models.RiskHigh},
		{6, models.RiskHigh},
	}
	for _, tc := range cases {
		var sites []models.SiteRef
		for i := 0; i < tc.meanings; i++ {
			sites = append(sites, site("app.f"+string(rune('a'+i)), ""))
		}
		f := finding(1, sites...)
		testScorer().Score(f)

		if f.Crossing.RiskLevel != tc.want {
			t.Errorf("meanings=%d: risk = %v, want %v", tc.meanings, f.Crossing.RiskLevel, tc.want)
		}
	}
}

func TestRiskIsMonotonicInMeanings(t *testing.T) {
	prev := models.RiskNone
	for n := 1; n <= 10; n++ {
		var sites []models.SiteRef
		for i := 0; i < n; i++ {
			sites = append(sites, site("app.f"+string(rune('a'+i)), ""))
		}
		f := finding(1, sites...)
		testScorer().Score(f)

		if f.Crossing.RiskLevel < prev {
			t.Fatalf("risk dropped from %v to %v at %d meanings", prev, f.Crossing.RiskLevel, n)
		}
		prev = f.Crossing.RiskLevel
	}
}

func TestPossibleOnlyCappedAtLow(t *testing.T) {
	f := &crossing.Finding{
		Crossing: models.Crossing{
			CaughtType: "Exception",
			PossibleSites: []models.SiteRef{
				site("app.f", ""), site("app.g", ""),
				site("app.h", ""), site("app.i", ""),
			},
		},
		Branches: 1,
	}
	testScorer().Score(f)

	if f.Crossing.DistinctMeanings != 4 {
		t.Errorf("distinct meanings = %d, want 4", f.Crossing.DistinctMeanings)
	}
	if f.Crossing.RiskLevel != models.RiskLow {
		t.Errorf("risk = %v, want low for unproven reachability", f.Crossing.RiskLevel)
	}
}
