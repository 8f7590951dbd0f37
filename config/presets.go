package config

// Presets are named run configurations
var Presets = map[string]*Config{
	"cantilever": {
		VoxelSize: 0.001, TimeStep: -1, Steps: 5000, Workers: 1, Gravity: DefaultGravity,
		InstabilityFactor: DefaultInstabilityFactor, CollisionEnvelope: DefaultCollisionEnvelope,
		CollisionExcludeDepth: DefaultCollisionExcludeDepth, LogLevel: "info",
	},
	"drop": {
		VoxelSize: 0.01, TimeStep: -1, Steps: 20000, Workers: 4, Gravity: DefaultGravity, Floor: true,
		InstabilityFactor: DefaultInstabilityFactor, CollisionEnvelope: DefaultCollisionEnvelope,
		CollisionExcludeDepth: DefaultCollisionExcludeDepth, LogLevel: "info",
	},
	"pile": {
		VoxelSize: 0.01, TimeStep: -1, Steps: 40000, Workers: 4, Gravity: DefaultGravity, Floor: true, Collisions: true,
		InstabilityFactor: DefaultInstabilityFactor, CollisionEnvelope: DefaultCollisionEnvelope,
		CollisionExcludeDepth: DefaultCollisionExcludeDepth, LogLevel: "warn",
	},
	"zero_g": {
		VoxelSize: 0.001, TimeStep: -1, Steps: 2000, Workers: 1, Gravity: 0,
		InstabilityFactor: DefaultInstabilityFactor, CollisionEnvelope: DefaultCollisionEnvelope,
		CollisionExcludeDepth: DefaultCollisionExcludeDepth, LogLevel: "debug",
	},
}

// GetPreset returns a copy of the named preset, nil if unknown
func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	c := *cfg
	return &c
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	return names
}
