package cnst

const (
	// AppName is the application name used in logs and telemetry.
	AppName = "simlink"

	// SimlinkYaml is the default configuration file name for the bridge.
	SimlinkYaml = "simlink.yaml"

	// MockSimYaml is the default configuration file name for the mock backend.
	MockSimYaml = "mock-sim.yaml"
)
