package data

import (
	"fmt"

	"github.com/helios-labs/strategy-validator/pkg/types"
)

// Validate checks the structural soundness of a bar series: non-empty,
// strictly increasing timestamps, positive prices, internally consistent
// OHLC ranges and non-negative volume. The first violation is returned with
// its bar index; downstream stages assume a validated series.
func Validate(bars []types.Bar) error {
	if len(bars) == 0 {
		return fmt.Errorf("empty bar series")
	}

	for i, bar := range bars {
		if i > 0 && !bar.Timestamp.After(bars[i-1].Timestamp) {
			return fmt.Errorf("bar %d: timestamp %s not after previous %s",
				i, bar.Timestamp, bars[i-1].Timestamp)
		}
		if bar.Open.Sign() <= 0 || bar.High.Sign() <= 0 || bar.Low.Sign() <= 0 || bar.Close.Sign() <= 0 {
			return fmt.Errorf("bar %d at %s: non-positive price", i, bar.Timestamp)
		}
		if bar.High.LessThan(bar.Low) {
			return fmt.Errorf("bar %d at %s: high %s below low %s",
				i, bar.Timestamp, bar.High, bar.Low)
		}
		if bar.High.LessThan(bar.Open) || bar.High.LessThan(bar.Close) {
			return fmt.Errorf("bar %d at %s: high %s below open/close", i, bar.Timestamp, bar.High)
		}
		if bar.Low.GreaterThan(bar.Open) || bar.Low.GreaterThan(bar.Close) {
			return fmt.Errorf("bar %d at %s: low %s above open/close", i, bar.Timestamp, bar.Low)
		}
		if bar.Volume.Sign() < 0 {
			return fmt.Errorf("bar %d at %s: negative volume %s", i, bar.Timestamp, bar.Volume)
		}
	}
	return nil
}
