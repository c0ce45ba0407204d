package config

import "flag"

var (
	flagConfig       = flag.String("config", "", "Path to config file")
	flagDebug        = flag.Bool("debug", false, "Enable debug logging")
	flagThreshold    = flag.Float64("overdraw-threshold", 0, "Allowed ACMR regression for overdraw sorting, e.g. 1.05")
	flagMeshletVerts = flag.Int("meshlet-vertices", 0, "Meshlet vertex cap")
	flagMeshletTris  = flag.Int("meshlet-triangles", 0, "Meshlet triangle cap")
	flagRatio        = flag.Float64("simplify-ratio", 0, "Simplification target as a fraction of input triangles")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagThreshold > 0 {
		cfg.Overdraw.Threshold = float32(*flagThreshold)
	}
	if *flagMeshletVerts > 0 {
		cfg.Meshlets.MaxVertices = *flagMeshletVerts
	}
	if *flagMeshletTris > 0 {
		cfg.Meshlets.MaxTriangles = *flagMeshletTris
	}
	if *flagRatio > 0 {
		cfg.Simplify.Ratio = float32(*flagRatio)
	}
}
