package prices

import (
	_ "embed"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// MVARate is the Norwegian value-added tax applied to spot prices in all
// regions except Nord-Norge (NO4).
const MVARate = 0.25

//go:embed regions.yaml
var regionsYAML []byte

// RegionInfo describes one of the five fixed Norwegian price regions.
type RegionInfo struct {
	Code      string `yaml:"code"`
	Label     string `yaml:"label"`
	MVAExempt bool   `yaml:"mva_exempt"`
}

// TaxMultiplier returns the factor applied to raw spot prices for this
// region.
func (r RegionInfo) TaxMultiplier() float64 {
	if r.MVAExempt {
		return 1.0
	}
	return 1 + MVARate
}

type regionFile struct {
	Regions []RegionInfo `yaml:"regions"`
}

var regionTable map[string]RegionInfo

func init() {
	var f regionFile
	if err := yaml.Unmarshal(regionsYAML, &f); err != nil {
		panic(fmt.Sprintf("prices: parse embedded region table: %v", err))
	}
	regionTable = make(map[string]RegionInfo, len(f.Regions))
	for _, r := range f.Regions {
		regionTable[r.Code] = r
	}
}

// Lookup resolves a region code, returning ErrInvalidRegion for codes
// outside the fixed set.
func Lookup(code string) (RegionInfo, error) {
	r, ok := regionTable[code]
	if !ok {
		return RegionInfo{}, fmt.Errorf("%w: %q", ErrInvalidRegion, code)
	}
	return r, nil
}

// Regions returns all supported regions ordered by code.
func Regions() []RegionInfo {
	out := make([]RegionInfo, 0, len(regionTable))
	for _, r := range regionTable {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// TaxedPrice applies the region's MVA multiplier to a raw spot price and
// rounds to 5 decimals, the precision stored in the cache.
func TaxedPrice(raw float64, region RegionInfo) float64 {
	taxed := decimal.NewFromFloat(raw).Mul(decimal.NewFromFloat(region.TaxMultiplier()))
	return taxed.Round(5).InexactFloat64()
}
