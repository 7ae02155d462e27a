package ui

import (
	"math"
)

// AnimState eases the highlight from the previous line to the new one.
type AnimState struct {
	TransitionProgress float64
	GlowIntensity      float64
}

func (a *AnimState) Reset() {
	a.TransitionProgress = 1
	a.GlowIntensity = 0
}

func (a *AnimState) Update(newLine bool, transitionTicks int) {
	if transitionTicks <= 0 {
		transitionTicks = 4
	}

	if newLine {
		a.TransitionProgress = 0
		a.GlowIntensity = 1.0
	}

	if a.TransitionProgress < 1.0 {
		a.TransitionProgress += 1.0 / float64(transitionTicks)
		if a.TransitionProgress > 1.0 {
			a.TransitionProgress = 1.0
		}
	}

	if a.GlowIntensity > 0 {
		a.GlowIntensity *= 0.7
		if a.GlowIntensity < 0.01 {
			a.GlowIntensity = 0
		}
	}
}

func (a *AnimState) SlideOffset() float64 {
	return easeOutCubic(a.TransitionProgress)
}

func (a *AnimState) Settled() bool {
	return a.TransitionProgress >= 1 && a.GlowIntensity == 0
}

func easeOutCubic(t float64) float64 {
	if t >= 1 {
		return 1
	}
	if t <= 0 {
		return 0
	}
	return 1 - math.Pow(1-t, 3)
}

func lerp(a float64, b float64, t float64) float64 {
	return a + (b-a)*t
}

func clamp(val float64, min float64, max float64) float64 {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
