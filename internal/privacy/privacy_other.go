//go:build !windows

package privacy

// Display-affinity exclusion is a Windows concept; other platforms get a
// no-op backend so the orchestrator's reconciliation logic still runs.
type noopAPI struct{}

func newPlatformWindowAPI() windowAPI {
	return &noopAPI{}
}

func (noopAPI) setProcessAffinity(name string, hide bool) (int, error) {
	return 0, nil
}
