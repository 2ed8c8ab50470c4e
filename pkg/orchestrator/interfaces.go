package orchestrator

import (
	"context"
	"time"

	"github.com/thingslab-dev/thingslab-orchestrator/pkg/aws"
	"github.com/thingslab-dev/thingslab-orchestrator/pkg/config"
	"github.com/thingslab-dev/thingslab-orchestrator/pkg/gitops"
	"github.com/thingslab-dev/thingslab-orchestrator/pkg/kubernetes"
	"github.com/thingslab-dev/thingslab-orchestrator/pkg/tofu"
)

// InfraDriver drives the embedded cluster templates through OpenTofu.
type InfraDriver interface {
	Init(ctx context.Context, backend tofu.BackendConfig) error
	Apply(ctx context.Context) error
	Destroy(ctx context.Context, refresh bool) error
	Outputs(ctx context.Context) (map[string]string, error)
}

// CloudAPI is the AWS-side surface the orchestrator touches, one method per
// orchestration concern rather than per SDK call.
type CloudAPI interface {
	AccountID(ctx context.Context) (string, error)

	StateBucketExists(ctx context.Context, bucket string) (bool, error)
	EnsureStateBucket(ctx context.Context, bucket string) error
	DestroyStateBucket(ctx context.Context, bucket string) error

	OIDCProviderARN(ctx context.Context, issuerURL string) (string, error)
	EnsureOIDCProvider(ctx context.Context, issuerURL string) (string, bool, error)
	DeleteOIDCProvider(ctx context.Context, issuerURL string) error

	AddonStatus(ctx context.Context, clusterName, addonName string) (string, error)
	EnsureAddon(ctx context.Context, clusterName, addonName, roleARN string) (bool, error)

	RoleHasPolicy(ctx context.Context, roleName, policyARN string) (bool, error)
	EnsureIRSARole(ctx context.Context, cfg aws.IRSAConfig) (string, error)
	DeleteIRSARole(ctx context.Context, roleName string) error
	EnsureSSMReadPolicy(ctx context.Context, accountID, projectName, policyName string) (string, error)
	DeleteSSMReadPolicy(ctx context.Context, accountID, policyName string) error

	GetSecret(ctx context.Context, path string) (string, error)
	PutSecret(ctx context.Context, path, value string) error
	DeleteClusterSecrets(ctx context.Context, projectName string) error

	ClusterOIDCIssuer(ctx context.Context, clusterName string) (string, error)
	DiscoverVPC(ctx context.Context, clusterName string) (string, error)
	PreCleanup(ctx context.Context, vpcID, clusterName string) error
	SweepVolumes(ctx context.Context, clusterName string) (int, error)
}

// ClusterAPI is the Kubernetes-side surface. Connect binds the remaining
// methods to a cluster; calling them before Connect is a programming error.
type ClusterAPI interface {
	Connect(ctx context.Context, kubeconfig []byte) error

	ReadyNodeCount(ctx context.Context) (int, error)
	EnsureNamespace(ctx context.Context, namespace string) error
	EnsureStorageClasses(ctx context.Context) error
	StorageClassesReady(ctx context.Context) (bool, error)
	WorkloadsReady(ctx context.Context, set kubernetes.WorkloadSet) (bool, error)
	CleanupWorkloads(ctx context.Context, namespaces []string, timeout time.Duration) error
}

// SecretsAPI drives the external-secrets operator and its custom resources.
type SecretsAPI interface {
	Connect(ctx context.Context, kubeconfig []byte) error

	InstallOperator(ctx context.Context, kubeconfig []byte, chartVersion, roleARN string) error
	UninstallOperator(ctx context.Context, kubeconfig []byte) error
	ApplyClusterSecretStore(ctx context.Context, region string) error
	ApplyExternalSecret(ctx context.Context, namespace, projectName string) error
	Synced(ctx context.Context, namespace string) (bool, string, error)
}

// GitOpsAPI drives Argo CD and the environment ApplicationSet.
type GitOpsAPI interface {
	Connect(ctx context.Context, kubeconfig []byte) error

	InstallArgoCD(ctx context.Context, kubeconfig []byte, cfg *config.Config) error
	UninstallArgoCD(ctx context.Context, kubeconfig []byte, namespace string) error
	ApplyApplicationSet(ctx context.Context, cfg *config.Config) error
	ApplicationStatus(ctx context.Context, name, namespace string) (gitops.AppState, error)
}
