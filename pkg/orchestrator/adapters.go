package orchestrator

import (
	"context"
	"fmt"
	"time"

	k8s "k8s.io/client-go/kubernetes"

	"k8s.io/client-go/dynamic"

	"github.com/thingslab-dev/thingslab-orchestrator/pkg/aws"
	"github.com/thingslab-dev/thingslab-orchestrator/pkg/config"
	"github.com/thingslab-dev/thingslab-orchestrator/pkg/gitops"
	"github.com/thingslab-dev/thingslab-orchestrator/pkg/helm"
	kube "github.com/thingslab-dev/thingslab-orchestrator/pkg/kubernetes"
	"github.com/thingslab-dev/thingslab-orchestrator/pkg/secrets"
)

// CloudAdapter implements CloudAPI on the real AWS clients.
type CloudAdapter struct {
	clients *aws.Clients
}

// NewCloudAdapter wraps the AWS service clients for the orchestrator.
func NewCloudAdapter(clients *aws.Clients) *CloudAdapter {
	return &CloudAdapter{clients: clients}
}

func (a *CloudAdapter) AccountID(ctx context.Context) (string, error) {
	return aws.AccountID(ctx, a.clients.STS)
}

func (a *CloudAdapter) StateBucketExists(ctx context.Context, bucket string) (bool, error) {
	return aws.StateBucketExists(ctx, a.clients.S3, bucket)
}

func (a *CloudAdapter) EnsureStateBucket(ctx context.Context, bucket string) error {
	return aws.EnsureStateBucket(ctx, a.clients.S3, bucket, a.clients.Region)
}

func (a *CloudAdapter) DestroyStateBucket(ctx context.Context, bucket string) error {
	return aws.DestroyStateBucket(ctx, a.clients.S3, bucket)
}

func (a *CloudAdapter) OIDCProviderARN(ctx context.Context, issuerURL string) (string, error) {
	return aws.OIDCProviderARN(ctx, a.clients.IAM, issuerURL)
}

func (a *CloudAdapter) EnsureOIDCProvider(ctx context.Context, issuerURL string) (string, bool, error) {
	return aws.EnsureOIDCProvider(ctx, a.clients.IAM, issuerURL)
}

func (a *CloudAdapter) DeleteOIDCProvider(ctx context.Context, issuerURL string) error {
	return aws.DeleteOIDCProvider(ctx, a.clients.IAM, issuerURL)
}

func (a *CloudAdapter) AddonStatus(ctx context.Context, clusterName, addonName string) (string, error) {
	return aws.AddonStatus(ctx, a.clients.EKS, clusterName, addonName)
}

func (a *CloudAdapter) EnsureAddon(ctx context.Context, clusterName, addonName, roleARN string) (bool, error) {
	return aws.EnsureAddon(ctx, a.clients.EKS, clusterName, addonName, roleARN)
}

func (a *CloudAdapter) RoleHasPolicy(ctx context.Context, roleName, policyARN string) (bool, error) {
	return aws.RoleHasPolicy(ctx, a.clients.IAM, roleName, policyARN)
}

func (a *CloudAdapter) EnsureIRSARole(ctx context.Context, cfg aws.IRSAConfig) (string, error) {
	return aws.EnsureIRSARole(ctx, a.clients.IAM, cfg)
}

func (a *CloudAdapter) DeleteIRSARole(ctx context.Context, roleName string) error {
	return aws.DeleteIRSARole(ctx, a.clients.IAM, roleName)
}

func (a *CloudAdapter) EnsureSSMReadPolicy(ctx context.Context, accountID, projectName, policyName string) (string, error) {
	return aws.EnsureSSMReadPolicy(ctx, a.clients.IAM, accountID, projectName, policyName)
}

func (a *CloudAdapter) DeleteSSMReadPolicy(ctx context.Context, accountID, policyName string) error {
	return aws.DeleteSSMReadPolicy(ctx, a.clients.IAM, accountID, policyName)
}

func (a *CloudAdapter) GetSecret(ctx context.Context, path string) (string, error) {
	return aws.GetSecret(ctx, a.clients.SSM, path)
}

func (a *CloudAdapter) PutSecret(ctx context.Context, path, value string) error {
	return aws.PutSecret(ctx, a.clients.SSM, path, value)
}

func (a *CloudAdapter) DeleteClusterSecrets(ctx context.Context, projectName string) error {
	return aws.DeleteClusterSecrets(ctx, a.clients.SSM, projectName)
}

func (a *CloudAdapter) ClusterOIDCIssuer(ctx context.Context, clusterName string) (string, error) {
	return aws.ClusterOIDCIssuer(ctx, a.clients.EKS, clusterName)
}

func (a *CloudAdapter) DiscoverVPC(ctx context.Context, clusterName string) (string, error) {
	return aws.DiscoverVPC(ctx, a.clients.EC2, a.clients.EKS, clusterName)
}

func (a *CloudAdapter) PreCleanup(ctx context.Context, vpcID, clusterName string) error {
	return aws.PreCleanup(ctx, a.clients, vpcID, clusterName)
}

func (a *CloudAdapter) SweepVolumes(ctx context.Context, clusterName string) (int, error) {
	return aws.SweepVolumes(ctx, a.clients.EC2, clusterName)
}

// ClusterAdapter implements ClusterAPI on a client-go clientset.
type ClusterAdapter struct {
	clientset k8s.Interface
}

// NewClusterAdapter returns an unconnected adapter; Connect binds it.
func NewClusterAdapter() *ClusterAdapter {
	return &ClusterAdapter{}
}

func (a *ClusterAdapter) Connect(ctx context.Context, kubeconfig []byte) error {
	clientset, err := kube.NewClientset(ctx, kubeconfig)
	if err != nil {
		return err
	}
	a.clientset = clientset
	return nil
}

func (a *ClusterAdapter) ready() error {
	if a.clientset == nil {
		return fmt.Errorf("cluster adapter not connected")
	}
	return nil
}

func (a *ClusterAdapter) ReadyNodeCount(ctx context.Context) (int, error) {
	if err := a.ready(); err != nil {
		return 0, err
	}
	return kube.ReadyNodeCount(ctx, a.clientset)
}

func (a *ClusterAdapter) EnsureNamespace(ctx context.Context, namespace string) error {
	if err := a.ready(); err != nil {
		return err
	}
	return kube.EnsureNamespace(ctx, a.clientset, namespace)
}

func (a *ClusterAdapter) EnsureStorageClasses(ctx context.Context) error {
	if err := a.ready(); err != nil {
		return err
	}
	return kube.EnsureStorageClasses(ctx, a.clientset)
}

func (a *ClusterAdapter) StorageClassesReady(ctx context.Context) (bool, error) {
	if err := a.ready(); err != nil {
		return false, err
	}
	return kube.StorageClassesReady(ctx, a.clientset)
}

func (a *ClusterAdapter) WorkloadsReady(ctx context.Context, set kube.WorkloadSet) (bool, error) {
	if err := a.ready(); err != nil {
		return false, err
	}
	return kube.WorkloadsReady(ctx, a.clientset, set)
}

func (a *ClusterAdapter) CleanupWorkloads(ctx context.Context, namespaces []string, timeout time.Duration) error {
	if err := a.ready(); err != nil {
		return err
	}
	return kube.CleanupWorkloads(ctx, a.clientset, namespaces, timeout)
}

// SecretsAdapter implements SecretsAPI on the dynamic client plus Helm.
type SecretsAdapter struct {
	dyn dynamic.Interface
}

// NewSecretsAdapter returns an unconnected adapter; Connect binds it.
func NewSecretsAdapter() *SecretsAdapter {
	return &SecretsAdapter{}
}

func (a *SecretsAdapter) Connect(_ context.Context, kubeconfig []byte) error {
	dyn, err := kube.NewDynamicClient(kubeconfig)
	if err != nil {
		return err
	}
	a.dyn = dyn
	return nil
}

func (a *SecretsAdapter) ready() error {
	if a.dyn == nil {
		return fmt.Errorf("secrets adapter not connected")
	}
	return nil
}

func (a *SecretsAdapter) InstallOperator(ctx context.Context, kubeconfig []byte, chartVersion, roleARN string) error {
	return secrets.InstallOperator(ctx, kubeconfig, chartVersion, roleARN)
}

func (a *SecretsAdapter) UninstallOperator(ctx context.Context, kubeconfig []byte) error {
	return helm.Uninstall(ctx, kubeconfig, "external-secrets", secrets.OperatorNamespace)
}

func (a *SecretsAdapter) ApplyClusterSecretStore(ctx context.Context, region string) error {
	if err := a.ready(); err != nil {
		return err
	}
	return secrets.ApplyClusterSecretStore(ctx, a.dyn, region)
}

func (a *SecretsAdapter) ApplyExternalSecret(ctx context.Context, namespace, projectName string) error {
	if err := a.ready(); err != nil {
		return err
	}
	return secrets.ApplyExternalSecret(ctx, a.dyn, namespace, projectName)
}

func (a *SecretsAdapter) Synced(ctx context.Context, namespace string) (bool, string, error) {
	if err := a.ready(); err != nil {
		return false, "", err
	}
	return secrets.Synced(ctx, a.dyn, namespace)
}

// GitOpsAdapter implements GitOpsAPI on the dynamic client plus Helm.
type GitOpsAdapter struct {
	dyn dynamic.Interface
}

// NewGitOpsAdapter returns an unconnected adapter; Connect binds it.
func NewGitOpsAdapter() *GitOpsAdapter {
	return &GitOpsAdapter{}
}

func (a *GitOpsAdapter) Connect(_ context.Context, kubeconfig []byte) error {
	dyn, err := kube.NewDynamicClient(kubeconfig)
	if err != nil {
		return err
	}
	a.dyn = dyn
	return nil
}

func (a *GitOpsAdapter) ready() error {
	if a.dyn == nil {
		return fmt.Errorf("gitops adapter not connected")
	}
	return nil
}

func (a *GitOpsAdapter) InstallArgoCD(ctx context.Context, kubeconfig []byte, cfg *config.Config) error {
	return gitops.InstallArgoCD(ctx, kubeconfig, cfg)
}

func (a *GitOpsAdapter) UninstallArgoCD(ctx context.Context, kubeconfig []byte, namespace string) error {
	return helm.Uninstall(ctx, kubeconfig, "argocd", namespace)
}

func (a *GitOpsAdapter) ApplyApplicationSet(ctx context.Context, cfg *config.Config) error {
	if err := a.ready(); err != nil {
		return err
	}
	return gitops.ApplyApplicationSet(ctx, a.dyn, cfg)
}

func (a *GitOpsAdapter) ApplicationStatus(ctx context.Context, name, namespace string) (gitops.AppState, error) {
	if err := a.ready(); err != nil {
		return gitops.AppState{}, err
	}
	return gitops.ApplicationStatus(ctx, a.dyn, name, namespace)
}

// Compile-time interface checks.
var (
	_ CloudAPI   = (*CloudAdapter)(nil)
	_ ClusterAPI = (*ClusterAdapter)(nil)
	_ SecretsAPI = (*SecretsAdapter)(nil)
	_ GitOpsAPI  = (*GitOpsAdapter)(nil)
)
