package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/thingslab-dev/thingslab-orchestrator/pkg/aws"
	"github.com/thingslab-dev/thingslab-orchestrator/pkg/config"
	"github.com/thingslab-dev/thingslab-orchestrator/pkg/gitops"
	"github.com/thingslab-dev/thingslab-orchestrator/pkg/kubernetes"
	"github.com/thingslab-dev/thingslab-orchestrator/pkg/tofu"
)

type fakeInfra struct {
	outputs    map[string]string
	outputsErr error
	applyErr   error
	// outputsAfterApply becomes the output set once Apply succeeds,
	// mimicking a fresh state gaining outputs.
	outputsAfterApply map[string]string
	destroyErr        []error // consumed per call; nil entry means success

	initCalls    int
	applyCalls   int
	destroyCalls []bool // refresh flag per call
}

func (f *fakeInfra) Init(_ context.Context, _ tofu.BackendConfig) error {
	f.initCalls++
	return nil
}

func (f *fakeInfra) Apply(_ context.Context) error {
	f.applyCalls++
	if f.applyErr != nil {
		return f.applyErr
	}
	if f.outputsAfterApply != nil {
		f.outputs = f.outputsAfterApply
	}
	return nil
}

func (f *fakeInfra) Destroy(_ context.Context, refresh bool) error {
	call := len(f.destroyCalls)
	f.destroyCalls = append(f.destroyCalls, refresh)
	if call < len(f.destroyErr) {
		return f.destroyErr[call]
	}
	return nil
}

func (f *fakeInfra) Outputs(_ context.Context) (map[string]string, error) {
	if f.outputsErr != nil {
		return nil, f.outputsErr
	}
	return f.outputs, nil
}

type fakeCloud struct {
	accountID    string
	bucketExists bool
	providerARN  string
	oidcIssuer   string
	// addonStatuses is consumed one per AddonStatus call; the last entry
	// repeats forever.
	addonStatuses []string
	addonCalls    int
	roleBound     bool
	parameters    map[string]string
	vpcID         string
	sweepCount    int

	ensureBucketCalls   int
	destroyBucketCalls  int
	ensureProviderCalls int
	deleteProviderCalls int
	ensureAddonCalls    int
	ensureRoleCalls     []string
	deleteRoleCalls     []string
	ensurePolicyCalls   int
	deletePolicyCalls   int
	putCalls            int
	deleteSecretsCalls  int
	preCleanupCalls     int
	sweepCalls          int
}

func (f *fakeCloud) AccountID(_ context.Context) (string, error) {
	return f.accountID, nil
}

func (f *fakeCloud) StateBucketExists(_ context.Context, _ string) (bool, error) {
	return f.bucketExists, nil
}

func (f *fakeCloud) EnsureStateBucket(_ context.Context, _ string) error {
	f.ensureBucketCalls++
	f.bucketExists = true
	return nil
}

func (f *fakeCloud) DestroyStateBucket(_ context.Context, _ string) error {
	f.destroyBucketCalls++
	f.bucketExists = false
	return nil
}

func (f *fakeCloud) OIDCProviderARN(_ context.Context, _ string) (string, error) {
	return f.providerARN, nil
}

func (f *fakeCloud) EnsureOIDCProvider(_ context.Context, issuerURL string) (string, bool, error) {
	f.ensureProviderCalls++
	f.providerARN = "arn:aws:iam::111122223333:oidc-provider/" + issuerURL
	return f.providerARN, true, nil
}

func (f *fakeCloud) DeleteOIDCProvider(_ context.Context, _ string) error {
	f.deleteProviderCalls++
	return nil
}

func (f *fakeCloud) AddonStatus(_ context.Context, _, _ string) (string, error) {
	idx := f.addonCalls
	f.addonCalls++
	if idx >= len(f.addonStatuses) {
		idx = len(f.addonStatuses) - 1
	}
	if idx < 0 {
		return "NOT_FOUND", nil
	}
	return f.addonStatuses[idx], nil
}

func (f *fakeCloud) EnsureAddon(_ context.Context, _, _, _ string) (bool, error) {
	f.ensureAddonCalls++
	return true, nil
}

func (f *fakeCloud) RoleHasPolicy(_ context.Context, _, _ string) (bool, error) {
	return f.roleBound, nil
}

func (f *fakeCloud) EnsureIRSARole(_ context.Context, cfg aws.IRSAConfig) (string, error) {
	f.ensureRoleCalls = append(f.ensureRoleCalls, cfg.RoleName)
	f.roleBound = true
	return cfg.RoleARN(), nil
}

func (f *fakeCloud) DeleteIRSARole(_ context.Context, roleName string) error {
	f.deleteRoleCalls = append(f.deleteRoleCalls, roleName)
	return nil
}

func (f *fakeCloud) EnsureSSMReadPolicy(_ context.Context, accountID, _, policyName string) (string, error) {
	f.ensurePolicyCalls++
	return fmt.Sprintf("arn:aws:iam::%s:policy/%s", accountID, policyName), nil
}

func (f *fakeCloud) DeleteSSMReadPolicy(_ context.Context, _, _ string) error {
	f.deletePolicyCalls++
	return nil
}

func (f *fakeCloud) GetSecret(_ context.Context, path string) (string, error) {
	value, ok := f.parameters[path]
	if !ok {
		return "", fmt.Errorf("parameter %s not found", path)
	}
	return value, nil
}

func (f *fakeCloud) PutSecret(_ context.Context, path, value string) error {
	f.putCalls++
	if f.parameters == nil {
		f.parameters = map[string]string{}
	}
	f.parameters[path] = value
	return nil
}

func (f *fakeCloud) DeleteClusterSecrets(_ context.Context, _ string) error {
	f.deleteSecretsCalls++
	return nil
}

func (f *fakeCloud) ClusterOIDCIssuer(_ context.Context, _ string) (string, error) {
	return f.oidcIssuer, nil
}

func (f *fakeCloud) DiscoverVPC(_ context.Context, _ string) (string, error) {
	return f.vpcID, nil
}

func (f *fakeCloud) PreCleanup(_ context.Context, _, _ string) error {
	f.preCleanupCalls++
	return nil
}

func (f *fakeCloud) SweepVolumes(_ context.Context, _ string) (int, error) {
	f.sweepCalls++
	return f.sweepCount, nil
}

type fakeCluster struct {
	readyNodes     int
	storageReady   bool
	workloadsReady bool

	connectCalls        int
	ensureStorageCalls  int
	ensureNSCalls       []string
	cleanupCalls        [][]string
}

func (f *fakeCluster) Connect(_ context.Context, _ []byte) error {
	f.connectCalls++
	return nil
}

func (f *fakeCluster) ReadyNodeCount(_ context.Context) (int, error) {
	return f.readyNodes, nil
}

func (f *fakeCluster) EnsureNamespace(_ context.Context, namespace string) error {
	f.ensureNSCalls = append(f.ensureNSCalls, namespace)
	return nil
}

func (f *fakeCluster) EnsureStorageClasses(_ context.Context) error {
	f.ensureStorageCalls++
	f.storageReady = true
	return nil
}

func (f *fakeCluster) StorageClassesReady(_ context.Context) (bool, error) {
	return f.storageReady, nil
}

func (f *fakeCluster) WorkloadsReady(_ context.Context, _ kubernetes.WorkloadSet) (bool, error) {
	return f.workloadsReady, nil
}

func (f *fakeCluster) CleanupWorkloads(_ context.Context, namespaces []string, _ time.Duration) error {
	f.cleanupCalls = append(f.cleanupCalls, namespaces)
	return nil
}

type fakeSecrets struct {
	synced     bool
	syncReason string

	connectCalls   int
	installCalls   int
	uninstallCalls int
	storeCalls     int
	secretCalls    []string
}

func (f *fakeSecrets) Connect(_ context.Context, _ []byte) error {
	f.connectCalls++
	return nil
}

func (f *fakeSecrets) InstallOperator(_ context.Context, _ []byte, _, _ string) error {
	f.installCalls++
	return nil
}

func (f *fakeSecrets) UninstallOperator(_ context.Context, _ []byte) error {
	f.uninstallCalls++
	return nil
}

func (f *fakeSecrets) ApplyClusterSecretStore(_ context.Context, _ string) error {
	f.storeCalls++
	return nil
}

func (f *fakeSecrets) ApplyExternalSecret(_ context.Context, namespace, _ string) error {
	f.secretCalls = append(f.secretCalls, namespace)
	return nil
}

func (f *fakeSecrets) Synced(_ context.Context, _ string) (bool, string, error) {
	reason := f.syncReason
	if reason == "" && f.synced {
		reason = "SecretSynced"
	}
	return f.synced, reason, nil
}

type fakeGitOps struct {
	appStates map[string]gitops.AppState

	connectCalls   int
	installCalls   int
	uninstallCalls int
	applySetCalls  int
}

func (f *fakeGitOps) Connect(_ context.Context, _ []byte) error {
	f.connectCalls++
	return nil
}

func (f *fakeGitOps) InstallArgoCD(_ context.Context, _ []byte, _ *config.Config) error {
	f.installCalls++
	return nil
}

func (f *fakeGitOps) UninstallArgoCD(_ context.Context, _ []byte, _ string) error {
	f.uninstallCalls++
	return nil
}

func (f *fakeGitOps) ApplyApplicationSet(_ context.Context, _ *config.Config) error {
	f.applySetCalls++
	return nil
}

func (f *fakeGitOps) ApplicationStatus(_ context.Context, name, _ string) (gitops.AppState, error) {
	state, ok := f.appStates[name]
	if !ok {
		return gitops.AppState{}, fmt.Errorf("application %s not found", name)
	}
	return state, nil
}

// Compile-time interface checks.
var (
	_ InfraDriver = (*fakeInfra)(nil)
	_ CloudAPI    = (*fakeCloud)(nil)
	_ ClusterAPI  = (*fakeCluster)(nil)
	_ SecretsAPI  = (*fakeSecrets)(nil)
	_ GitOpsAPI   = (*fakeGitOps)(nil)
)

func testRunConfig() *config.Config {
	cfg := &config.Config{
		ProjectName:     "iot-demo",
		Region:          "us-west-2",
		ClusterName:     "iot-demo",
		NamespacePrefix: "iot-demo",
		Environments: []config.Environment{
			{Name: "dev", Profile: "small"},
		},
		Credentials: config.Credentials{
			InfluxDBAdminPassword: "influx-pw",
			GrafanaAdminPassword:  "grafana-pw",
			MQTTPassword:          "mqtt-pw",
		},
		GitOps: config.GitOps{
			RepoURL: "https://github.com/thingslab-dev/iot-demo-deploy.git",
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

func appliedOutputs() map[string]string {
	return map[string]string{
		"cluster_name":                       "iot-demo",
		"cluster_endpoint":                   "https://ABCDEF.gr7.us-west-2.eks.amazonaws.com",
		"cluster_certificate_authority_data": "Y2VydGlmaWNhdGUtZGF0YQ==",
		"cluster_oidc_issuer_url":            "https://oidc.eks.us-west-2.amazonaws.com/id/ABCDEF",
		"vpc_id":                             "vpc-0123",
	}
}
