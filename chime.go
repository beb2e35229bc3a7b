package main

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
)

const (
	chimeSampleRate = beep.SampleRate(44100)
	chimeFrequency  = 880.0
	chimeLength     = 150 * time.Millisecond
)

// Chime plays a short tone for every received message.
type Chime struct {
	log             *slog.Logger
	speakerInitOnce sync.Once
	speakerInitErr  error
}

func NewChime(log *slog.Logger) *Chime {
	return &Chime{log: log}
}

// Play does not wait for the tone to finish. If the speaker cannot be opened
// the chime stays silent for the rest of the session. A nil Chime is silent.
func (c *Chime) Play() {
	if c == nil {
		return
	}
	c.speakerInitOnce.Do(func() {
		c.speakerInitErr = speaker.Init(chimeSampleRate, chimeSampleRate.N(time.Second/10))
		if c.speakerInitErr != nil {
			c.log.Warn("Chime disabled", "error", fmt.Errorf("failed to initialise speaker: %w", c.speakerInitErr))
		}
	})
	if c.speakerInitErr != nil {
		return
	}
	speaker.Play(tone(chimeSampleRate, chimeFrequency, chimeLength))
}

// tone is a sine wave at freq that fades out linearly over d.
func tone(sr beep.SampleRate, freq float64, d time.Duration) beep.Streamer {
	total := sr.N(d)
	pos := 0
	sine := beep.StreamerFunc(func(samples [][2]float64) (n int, ok bool) {
		for i := range samples {
			t := float64(pos) / float64(sr)
			gain := 1 - float64(pos)/float64(total)
			v := 0.3 * gain * math.Sin(2*math.Pi*freq*t)
			samples[i][0], samples[i][1] = v, v
			pos++
		}
		return len(samples), true
	})
	return beep.Take(total, sine)
}
