package supervisor

import "context"

// Orchestrator is the external collaborator that actually starts, stops and
// health-checks services. The supervisor never inspects the shape of the
// status mapping; it is passed through verbatim.
type Orchestrator interface {
	// GetServiceStatus returns the current service-status snapshot.
	GetServiceStatus(ctx context.Context) (map[string]any, error)

	// StopAllServices tears down every managed service. May take a long
	// time; the supervisor never blocks a caller on it.
	StopAllServices(ctx context.Context) error
}

// ServiceRestarter is implemented by orchestrators that support restarting
// a single service. Orchestrators without it answer restart-service
// requests with an invalid-argument error.
type ServiceRestarter interface {
	RestartService(ctx context.Context, name string) error
}

// ConfigReloader is implemented by orchestrators that support reloading
// configuration in place.
type ConfigReloader interface {
	ReloadConfig(ctx context.Context) error
}
