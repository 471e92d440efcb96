package processing

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/dyike/PainRadar/models"
)

// Weights of the pain score. They sum to one.
var (
	FrequencyWeight = decimal.RequireFromString("0.4")
	UpvotesWeight   = decimal.RequireFromString("0.2")
	CommentsWeight  = decimal.RequireFromString("0.1")
	IntensityWeight = decimal.RequireFromString("0.3")
)

var ErrInvalidSignal = errors.New("pain signal must be a finite non-negative number")

// Score combines the four engagement signals of a pain point:
//
//	total = round2(0.4*frequency + 0.2*avgUpvotes + 0.1*avgComments + 0.3*avgIntensity)
//
// Each component is rounded on its own, so the components may not add up to
// the total exactly.
func Score(frequency int, avgUpvotes, avgComments, avgIntensity float64) (models.PainScore, error) {
	if frequency < 0 {
		return models.PainScore{}, fmt.Errorf("%w: frequency=%d", ErrInvalidSignal, frequency)
	}
	for name, v := range map[string]float64{"avg_upvotes": avgUpvotes, "avg_comments": avgComments, "avg_intensity": avgIntensity} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return models.PainScore{}, fmt.Errorf("%w: %s=%v", ErrInvalidSignal, name, v)
		}
	}

	f := FrequencyWeight.Mul(decimal.NewFromInt(int64(frequency)))
	u := UpvotesWeight.Mul(decimal.NewFromFloat(avgUpvotes))
	c := CommentsWeight.Mul(decimal.NewFromFloat(avgComments))
	i := IntensityWeight.Mul(decimal.NewFromFloat(avgIntensity))

	total := f.Add(u).Add(c).Add(i)
	return models.PainScore{
		Total: round2(total),
		Components: models.ScoreComponents{
			Frequency: round2(f),
			Upvotes:   round2(u),
			Comments:  round2(c),
			Intensity: round2(i),
		},
	}, nil
}

// ScoreFinding scores a model-reported pain candidate.
func ScoreFinding(f models.PainFinding) (models.PainScore, error) {
	return Score(f.Frequency, f.AvgUpvotes, f.AvgComments, f.AvgIntensity)
}

func round2(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
