package speech

import (
	"encoding/binary"
	"math"
)

const (
	sampleRate     = 16000
	bytesPerSample = 2
	frameMs        = 30
	frameBytes     = sampleRate * frameMs / 1000 * bytesPerSample
)

// VADConfig holds voice activity detection parameters.
type VADConfig struct {
	EnergyThreshold float64 // RMS energy threshold for speech
	SpeechMinDurMs  int     // speech needed to open an utterance
	SilenceMinDurMs int     // silence needed to close an utterance
	MaxUtteranceMs  int     // utterances longer than this are cut
}

// DefaultVADConfig returns defaults for 16 kHz mono PCM.
func DefaultVADConfig() VADConfig {
	return VADConfig{
		EnergyThreshold: 500,
		SpeechMinDurMs:  200,
		SilenceMinDurMs: 700,
		MaxUtteranceMs:  15000,
	}
}

type vadEvent int

const (
	vadNone vadEvent = iota
	vadSpeechStart
	vadSpeechEnd
)

// vad is an energy based voice activity detector over fixed 30 ms frames.
type vad struct {
	config        VADConfig
	speaking      bool
	speechFrames  int
	silenceFrames int
	lastRMS       float64
}

func newVAD(cfg VADConfig) *vad {
	return &vad{config: cfg}
}

func (v *vad) process(frame []byte) vadEvent {
	v.lastRMS = rmsEnergy(frame)

	if v.lastRMS >= v.config.EnergyThreshold {
		v.silenceFrames = 0
		v.speechFrames++
		if !v.speaking && v.speechFrames*frameMs >= v.config.SpeechMinDurMs {
			v.speaking = true
			return vadSpeechStart
		}
		return vadNone
	}

	v.speechFrames = 0
	v.silenceFrames++
	if v.speaking && v.silenceFrames*frameMs >= v.config.SilenceMinDurMs {
		v.speaking = false
		return vadSpeechEnd
	}
	return vadNone
}

// level maps the last frame energy to a 0-100 meter reading.
func (v *vad) level() int {
	if v.lastRMS <= 0 {
		return 0
	}
	// 20*log10 scale over the 16-bit range, floored at -60 dBFS.
	db := 20 * math.Log10(v.lastRMS/math.MaxInt16)
	pct := int((db + 60) / 60 * 100)
	return min(max(pct, 0), 100)
}

// rmsEnergy computes the root-mean-square of 16-bit little endian PCM.
func rmsEnergy(pcm []byte) float64 {
	n := len(pcm) / bytesPerSample
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}
