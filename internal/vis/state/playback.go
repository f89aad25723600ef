package state

import "time"

// PlaybackState manages replay timing over [MinTime, MaxTime].
type PlaybackState struct {
	CurrentTime float64 // Absolute schedule time in seconds
	MinTime     float64 // First launch
	MaxTime     float64 // Last landing
	Speed       float64 // Schedule seconds per wall second
	Playing     bool
	lastUpdate  time.Time
}

// Default speed-up; schedules run for many minutes.
const defaultSpeed = 20.0

// NewPlaybackState creates a paused playback at minTime.
func NewPlaybackState(minTime, maxTime float64) *PlaybackState {
	return &PlaybackState{
		CurrentTime: minTime,
		MinTime:     minTime,
		MaxTime:     maxTime,
		Speed:       defaultSpeed,
		lastUpdate:  time.Now(),
	}
}

// TogglePlay toggles playback on/off.
func (p *PlaybackState) TogglePlay() {
	p.Playing = !p.Playing
	if p.Playing {
		p.lastUpdate = time.Now()
		// Restart if at end
		if p.CurrentTime >= p.MaxTime {
			p.CurrentTime = p.MinTime
		}
	}
}

// Pause stops playback.
func (p *PlaybackState) Pause() {
	p.Playing = false
}

// Reset rewinds to the first launch.
func (p *PlaybackState) Reset() {
	p.CurrentTime = p.MinTime
	p.Playing = false
}

// Advance moves playback forward by the wall time since the last update.
func (p *PlaybackState) Advance() {
	if !p.Playing {
		return
	}
	now := time.Now()
	p.advanceBy(now.Sub(p.lastUpdate).Seconds())
	p.lastUpdate = now
}

func (p *PlaybackState) advanceBy(wall float64) {
	p.CurrentTime += wall * p.Speed
	if p.CurrentTime >= p.MaxTime {
		p.CurrentTime = p.MaxTime
		p.Playing = false
	}
}

// SetTime seeks, clamped to the replay window.
func (p *PlaybackState) SetTime(t float64) {
	p.CurrentTime = min(max(t, p.MinTime), p.MaxTime)
}

// step is 1% of the window, at least a second.
func (p *PlaybackState) step() float64 {
	return max((p.MaxTime-p.MinTime)/100, 1)
}

// StepForward pauses and advances by one step.
func (p *PlaybackState) StepForward() {
	p.Pause()
	p.SetTime(p.CurrentTime + p.step())
}

// StepBack pauses and rewinds by one step.
func (p *PlaybackState) StepBack() {
	p.Pause()
	p.SetTime(p.CurrentTime - p.step())
}

// SetSpeed sets the speed multiplier, clamped to [1, 500].
func (p *PlaybackState) SetSpeed(speed float64) {
	p.Speed = min(max(speed, 1), 500)
}

// Progress returns current progress as 0-1.
func (p *PlaybackState) Progress() float64 {
	span := p.MaxTime - p.MinTime
	if span <= 0 {
		return 0
	}
	return (p.CurrentTime - p.MinTime) / span
}

// Seek moves to a 0-1 fraction of the window.
func (p *PlaybackState) Seek(fraction float64) {
	fraction = min(max(fraction, 0), 1)
	p.SetTime(p.MinTime + fraction*(p.MaxTime-p.MinTime))
}
