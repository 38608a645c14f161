package rig

import "strings"

// Channel is an expression channel the animation layer can drive.
type Channel int

const (
	MouthOpen Channel = iota
	Blink
	ChannelCount
)

// ChannelNames holds the canonical name of each channel.
var ChannelNames = [ChannelCount]string{
	"mouthOpen",
	"blink",
}

func (c Channel) String() string {
	if c < 0 || c >= ChannelCount {
		return "unknown"
	}
	return ChannelNames[c]
}

// channelAliases maps lower-cased morph and preset names onto channels.
// VRM 0.x presets use "a" and "blink", VRM 1.0 uses "aa", ARKit rigs expose
// per-eye blinks and jawOpen.
var channelAliases = map[string]Channel{
	"mouthopen":     MouthOpen,
	"aa":            MouthOpen,
	"a":             MouthOpen,
	"jawopen":       MouthOpen,
	"blink":         Blink,
	"eyeblinkleft":  Blink,
	"eyeblinkright": Blink,
	"eyesclosed":    Blink,
}

// ChannelFromName resolves a morph target or expression preset name.
func ChannelFromName(name string) (Channel, bool) {
	c, ok := channelAliases[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

// Weights holds one value per channel, each clamped to [0,1].
type Weights [ChannelCount]float64

func (w *Weights) Set(c Channel, value float64) {
	w[c] = clamp01(value)
}

func (w *Weights) Get(c Channel) float64 {
	return w[c]
}

func (w *Weights) Reset() {
	for i := range w {
		w[i] = 0
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
