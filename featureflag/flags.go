package featureflag

type Flag string

const (
	// Viewers cannot set off explosions.
	FlagDisableExplosions Flag = "DISABLE_EXPLOSIONS"

	// Viewers only watch: key inputs are rejected.
	FlagDisableViewerInput Flag = "DISABLE_VIEWER_INPUT"

	// Snapshots are sent without the star field.
	FlagDisableStars Flag = "DISABLE_STARS"

	// Viewers cannot pause the simulation.
	FlagDisablePause Flag = "DISABLE_PAUSE"
)
