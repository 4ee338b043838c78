package workflow

// Preset selects a bundle of assembler tuning parameters.
type Preset string

const (
	PresetDefault       Preset = "default"
	PresetMetaSensitive Preset = "meta-sensitive"
	PresetMetaLarge     Preset = "meta-large"
	PresetFast          Preset = "fast"
)

// Presets lists the recognised presets.
var Presets = []Preset{PresetDefault, PresetMetaSensitive, PresetMetaLarge, PresetFast}

// fastKList is the single k-mer size used by the fast preset.
const fastKList = "21"

// Flags returns the assembler flags for p. The default preset and any
// unrecognised name add no flags, leaving the assembler's own defaults.
func (p Preset) Flags() []string {
	switch p {
	case PresetMetaSensitive, PresetMetaLarge:
		return []string{"--presets", string(p)}
	case PresetFast:
		return []string{"--k-list", fastKList}
	default:
		return nil
	}
}

// Known reports whether p is one of Presets.
func (p Preset) Known() bool {
	for _, known := range Presets {
		if p == known {
			return true
		}
	}
	return false
}
