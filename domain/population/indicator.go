package population

import (
	"fmt"
	"sort"

	"popdash/domain/core"
)

// Indicator is a World Bank indicator code such as SP.POP.TOTL.
type Indicator string

// Indicator codes consumed from the statistics API. These are wire values and
// must not change.
const (
	IndicatorPopulation     Indicator = "SP.POP.TOTL"
	IndicatorGrowthRate     Indicator = "SP.POP.GROW"
	IndicatorLifeExpectancy Indicator = "SP.DYN.LE00.IN"
	IndicatorDensity        Indicator = "EN.POP.DNST"
)

// Labels offered by the population page selector.
const (
	LabelPopulation     = "Population"
	LabelGrowthRate     = "Growth Rate"
	LabelLifeExpectancy = "Life Expectancy"
	LabelDensity        = "Population Density"
)

// Unit describes how values of an indicator are displayed.
type Unit string

const (
	UnitPeople  Unit = "people"
	UnitPercent Unit = "percent"
	UnitYears   Unit = "years"
	UnitDensity Unit = "people_per_km2"
)

// IndicatorInfo binds a selector label to its code and display unit.
type IndicatorInfo struct {
	Label string    `json:"label"`
	Code  Indicator `json:"code"`
	Unit  Unit      `json:"unit"`
}

var vocabulary = map[string]IndicatorInfo{
	LabelPopulation:     {Label: LabelPopulation, Code: IndicatorPopulation, Unit: UnitPeople},
	LabelGrowthRate:     {Label: LabelGrowthRate, Code: IndicatorGrowthRate, Unit: UnitPercent},
	LabelLifeExpectancy: {Label: LabelLifeExpectancy, Code: IndicatorLifeExpectancy, Unit: UnitYears},
	LabelDensity:        {Label: LabelDensity, Code: IndicatorDensity, Unit: UnitDensity},
}

// ResolveLabel maps a selector label to its indicator. Unknown labels fall
// back to Population.
func ResolveLabel(label string) IndicatorInfo {
	if info, ok := vocabulary[label]; ok {
		return info
	}
	return vocabulary[LabelPopulation]
}

// LookupLabel is the strict form of ResolveLabel. Unknown labels return an
// error wrapping core.ErrUnknownIndicator.
func LookupLabel(label string) (IndicatorInfo, error) {
	info, ok := vocabulary[label]
	if !ok {
		return IndicatorInfo{}, fmt.Errorf("%w: %q", core.ErrUnknownIndicator, label)
	}
	return info, nil
}

// LookupCode returns the indicator info for a code.
func LookupCode(code Indicator) (IndicatorInfo, bool) {
	for _, info := range vocabulary {
		if info.Code == code {
			return info, true
		}
	}
	return IndicatorInfo{}, false
}

// Indicators lists the vocabulary in selector order.
func Indicators() []IndicatorInfo {
	order := map[string]int{
		LabelPopulation:     0,
		LabelGrowthRate:     1,
		LabelLifeExpectancy: 2,
		LabelDensity:        3,
	}
	out := make([]IndicatorInfo, 0, len(vocabulary))
	for _, info := range vocabulary {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return order[out[i].Label] < order[out[j].Label] })
	return out
}

func (i Indicator) String() string { return string(i) }
