package orchestrator

import "time"

// WaitPolicy bounds one readiness poll. Whether a timeout is fatal is part
// of the policy, not the calling code, so the critical-path classification
// lives in exactly one place.
type WaitPolicy struct {
	Name        string
	Interval    time.Duration
	MaxAttempts int

	// FatalOnTimeout distinguishes critical barriers (a cluster without
	// ready nodes is unusable) from advisory ones (a slow addon usually
	// finishes on its own).
	FatalOnTimeout bool
}

// PolicySet holds the wait policies used by a run. Tests substitute
// millisecond intervals.
type PolicySet struct {
	IdentityProvider    WaitPolicy
	AddonActive         WaitPolicy
	StorageClasses      WaitPolicy
	NodesReady          WaitPolicy
	SecretsOperator     WaitPolicy
	SecretSync          WaitPolicy
	GitOpsWorkloads     WaitPolicy
	ApplicationsHealthy WaitPolicy
}

// DefaultPolicies is the production policy table.
func DefaultPolicies() PolicySet {
	return PolicySet{
		IdentityProvider:    WaitPolicy{Name: "identity-provider", Interval: 5 * time.Second, MaxAttempts: 24, FatalOnTimeout: true},
		AddonActive:         WaitPolicy{Name: "addon-active", Interval: 10 * time.Second, MaxAttempts: 30, FatalOnTimeout: false},
		StorageClasses:      WaitPolicy{Name: "storage-classes", Interval: 5 * time.Second, MaxAttempts: 12, FatalOnTimeout: false},
		NodesReady:          WaitPolicy{Name: "nodes-ready", Interval: 15 * time.Second, MaxAttempts: 40, FatalOnTimeout: true},
		SecretsOperator:     WaitPolicy{Name: "secrets-operator", Interval: 10 * time.Second, MaxAttempts: 30, FatalOnTimeout: true},
		SecretSync:          WaitPolicy{Name: "secret-sync", Interval: 10 * time.Second, MaxAttempts: 30, FatalOnTimeout: false},
		GitOpsWorkloads:     WaitPolicy{Name: "gitops-workloads", Interval: 10 * time.Second, MaxAttempts: 30, FatalOnTimeout: true},
		ApplicationsHealthy: WaitPolicy{Name: "applications-healthy", Interval: 15 * time.Second, MaxAttempts: 40, FatalOnTimeout: false},
	}
}

// scaled returns a copy of the set with every interval replaced, used by
// tests to run waits in real milliseconds.
func (s PolicySet) scaled(interval time.Duration) PolicySet {
	out := s
	for _, p := range []*WaitPolicy{
		&out.IdentityProvider, &out.AddonActive, &out.StorageClasses,
		&out.NodesReady, &out.SecretsOperator, &out.SecretSync,
		&out.GitOpsWorkloads, &out.ApplicationsHealthy,
	} {
		p.Interval = interval
	}
	return out
}
