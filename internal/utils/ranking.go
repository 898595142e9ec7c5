package utils

import (
	"math"
	"time"
)

type RankConfig struct {
	Gravity        float64 // 时间重力
	WeightFollower float64
	WeightStory    float64
	WeightLike     float64
	ScaleFactor    float64 // 放大系数
}

var DefaultRankConfig = RankConfig{
	Gravity:        0.8,
	WeightFollower: 3.0,
	WeightStory:    2.0,
	WeightLike:     1.0,
	ScaleFactor:    100.0,
}

// CalculatePopularity scores a pod from its audience and activity, decayed
// by age in days. The result is never negative.
func CalculatePopularity(createdAt time.Time, followers, stories, likes int, now time.Time) float64 {
	return DefaultRankConfig.Score(createdAt, followers, stories, likes, now)
}

func (c RankConfig) Score(createdAt time.Time, followers, stories, likes int, now time.Time) float64 {
	days := now.Sub(createdAt).Hours() / 24
	if days < 0 {
		days = 0
	}

	weighted := float64(followers)*c.WeightFollower +
		float64(stories)*c.WeightStory +
		float64(likes)*c.WeightLike
	if weighted < 0 {
		weighted = 0
	}

	// log10(sum + 1): sum=0 时结果为 0
	numerator := math.Log10(weighted+1) * c.ScaleFactor
	decay := math.Pow(days+2, c.Gravity)

	return numerator / decay
}
