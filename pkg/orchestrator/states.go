// Package orchestrator sequences cluster provisioning and decommissioning.
// Provisioning walks a strictly ordered list of states, each with an
// idempotency guard, at most one mutating action and an optional bounded
// wait. Destroy runs a four-phase dependency resolver that tolerates
// partially deleted environments.
package orchestrator

// State names one synchronization barrier in the provisioning sequence.
type State string

const (
	StateInfraInit                State = "InfraInit"
	StateInfraApplied             State = "InfraApplied"
	StateKubeconfigBound          State = "KubeconfigBound"
	StateIdentityProviderReady    State = "IdentityProviderReady"
	StateAddonActive              State = "AddonActive"
	StateStorageClassesReady      State = "StorageClassesReady"
	StateNodesReady               State = "NodesReady"
	StateSecretsOperatorInstalled State = "SecretsOperatorInstalled"
	StateSecretsOperatorReady     State = "SecretsOperatorReady"
	StateIRSABound                State = "IRSABound"
	StateSecretsConfigured        State = "SecretsConfigured"
	StateSecretsSynced            State = "SecretsSynced"
	StateGitOpsInstalled          State = "GitOpsInstalled"
	StateApplicationSetApplied    State = "ApplicationSetApplied"
	StateApplicationsHealthy      State = "ApplicationsHealthy"
)

// ProvisionStates is the full provisioning sequence in execution order.
var ProvisionStates = []State{
	StateInfraInit,
	StateInfraApplied,
	StateKubeconfigBound,
	StateIdentityProviderReady,
	StateAddonActive,
	StateStorageClassesReady,
	StateNodesReady,
	StateSecretsOperatorInstalled,
	StateSecretsOperatorReady,
	StateIRSABound,
	StateSecretsConfigured,
	StateSecretsSynced,
	StateGitOpsInstalled,
	StateApplicationSetApplied,
	StateApplicationsHealthy,
}
