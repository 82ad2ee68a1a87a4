package dedupe

import "fmt"

// New creates a dedupe index based on the provided configuration.
func New(cfg Config) (Index, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverMemory
	}

	switch driver {
	case DriverMemory:
		return NewMemory(cfg), nil
	case DriverRedis:
		return NewRedis(cfg)
	default:
		return nil, fmt.Errorf("unsupported dedupe driver: %s", driver)
	}
}
