package camera

// Preset names for common configurations
const (
	PresetDefault = "default"
	PresetQVGA    = "qvga"
	Preset720p    = "720p"
	PresetLowFPS  = "lowfps"
)

// Presets returns all available preset configurations.
func Presets() map[string]Config {
	return map[string]Config{
		PresetDefault: DefaultConfig(),
		PresetQVGA:    QVGAConfig(),
		Preset720p:    HD720Config(),
		PresetLowFPS:  LowFPSConfig(),
	}
}

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	return []string{
		PresetDefault,
		PresetQVGA,
		Preset720p,
		PresetLowFPS,
	}
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	presets := Presets()
	if cfg, ok := presets[name]; ok {
		return &cfg
	}
	return nil
}

// QVGAConfig returns 320x240 capture, the frame size MobileConfig is tuned for.
// Cheapest to run on small boards.
func QVGAConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 320
	cfg.Height = 240
	return cfg
}

// HD720Config returns 720p HD configuration.
// Eyes stay detectable from further away, at a higher CPU cost.
func HD720Config() Config {
	cfg := DefaultConfig()
	cfg.Width = 1280
	cfg.Height = 720
	return cfg
}

// LowFPSConfig returns VGA at 10 FPS for slow CPUs.
func LowFPSConfig() Config {
	cfg := DefaultConfig()
	cfg.Framerate = 10
	return cfg
}
