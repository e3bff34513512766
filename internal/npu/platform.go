package npu

import "go.uber.org/zap"

// PlatformBackend returns the accelerator backend for the host platform,
// or nil when none is linked into this build. Vendor integrations
// (NNAPI, Core ML, SNPE) plug in here behind build tags.
func PlatformBackend(logger *zap.Logger) Backend {
	logger.Debug("No platform accelerator linked, using CPU reference backend")
	return nil
}
