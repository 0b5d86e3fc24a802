package optimization

import (
	"math/rand"
	"sort"

	"github.com/helios-labs/strategy-validator/pkg/types"
)

// ExpandSpace materializes the Cartesian product of the search space into
// concrete parameter sets. Combinations that fail structural validation
// (a fast period not shorter than its slow period, for example) are dropped
// here rather than burned as failed evaluations.
//
// When the grid exceeds MaxCandidates, a seeded random subsample of that
// size is taken instead; the original grid order is preserved so a sweep is
// reproducible for a fixed seed.
func ExpandSpace(space types.SearchSpace, seed int64) []types.ParameterSet {
	base := space.Base
	if base == (types.ParameterSet{}) {
		base = types.DefaultParameterSet()
	}

	fasts := intAxis(space.FastPeriods, base.FastPeriod)
	slows := intAxis(space.SlowPeriods, base.SlowPeriod)
	atrs := intAxis(space.ATRPeriods, base.ATRPeriod)
	stops := floatAxis(space.StopMultipliers, base.StopMultiplier)
	rewards := floatAxis(space.RewardRatios, base.RewardRatio)
	trends := floatAxis(space.TrendFloors, base.TrendFloor)
	volMults := floatAxis(space.VolumeMults, base.VolumeMultiplier)

	var sets []types.ParameterSet
	for _, fast := range fasts {
		for _, slow := range slows {
			for _, atr := range atrs {
				for _, stop := range stops {
					for _, reward := range rewards {
						for _, trend := range trends {
							for _, volMult := range volMults {
								p := base
								p.FastPeriod = fast
								p.SlowPeriod = slow
								p.ATRPeriod = atr
								p.StopMultiplier = stop
								p.RewardRatio = reward
								p.TrendFloor = trend
								p.VolumeMultiplier = volMult
								if p.Validate() != nil {
									continue
								}
								sets = append(sets, p)
							}
						}
					}
				}
			}
		}
	}

	if space.MaxCandidates > 0 && len(sets) > space.MaxCandidates {
		sets = subsample(sets, space.MaxCandidates, seed)
	}
	return sets
}

func intAxis(values []int, fallback int) []int {
	if len(values) == 0 {
		return []int{fallback}
	}
	return values
}

func floatAxis(values []float64, fallback float64) []float64 {
	if len(values) == 0 {
		return []float64{fallback}
	}
	return values
}

// subsample picks k grid positions without replacement, keeping grid order.
func subsample(sets []types.ParameterSet, k int, seed int64) []types.ParameterSet {
	rng := rand.New(rand.NewSource(seed))
	picked := rng.Perm(len(sets))[:k]
	sort.Ints(picked)

	out := make([]types.ParameterSet, k)
	for i, idx := range picked {
		out[i] = sets[idx]
	}
	return out
}
