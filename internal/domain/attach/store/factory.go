package store

import "fmt"

// New creates a blob store based on the provided configuration.
func New(cfg Config) (BlobStore, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverDisk
	}

	switch driver {
	case DriverDisk:
		return NewDisk(cfg)
	case DriverMinio:
		return NewMinio(cfg)
	default:
		return nil, fmt.Errorf("unsupported attachment store driver: %s", driver)
	}
}
