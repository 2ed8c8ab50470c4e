package orchestrator

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/thingslab-dev/thingslab-orchestrator/pkg/aws"
	"github.com/thingslab-dev/thingslab-orchestrator/pkg/config"
	"github.com/thingslab-dev/thingslab-orchestrator/pkg/gitops"
	kube "github.com/thingslab-dev/thingslab-orchestrator/pkg/kubernetes"
	"github.com/thingslab-dev/thingslab-orchestrator/pkg/secrets"
	"github.com/thingslab-dev/thingslab-orchestrator/pkg/status"
	"github.com/thingslab-dev/thingslab-orchestrator/pkg/tofu"
)

// Run carries the identifiers resolved while provisioning. Everything flows
// through this struct explicitly; the orchestrator keeps no globals.
type Run struct {
	// State is the last barrier passed.
	State State

	AccountID  string
	OIDCIssuer string
	Outputs    map[string]string
	Kubeconfig []byte

	EBSCSIRoleARN  string
	SecretsRoleARN string

	// Apps holds the last observed state of each generated Application.
	Apps []gitops.AppState
}

// Provisioner walks the provisioning state machine. Each step is guarded, so
// re-running after a partial failure resumes where the previous run stopped
// without redundant mutations.
type Provisioner struct {
	cfg      *config.Config
	infra    InfraDriver
	cloud    CloudAPI
	cluster  ClusterAPI
	secrets  SecretsAPI
	gitops   GitOpsAPI
	policies PolicySet
}

// NewProvisioner wires a provisioner from explicit collaborators.
func NewProvisioner(cfg *config.Config, infra InfraDriver, cloud CloudAPI, cluster ClusterAPI, sec SecretsAPI, git GitOpsAPI) *Provisioner {
	return &Provisioner{
		cfg:      cfg,
		infra:    infra,
		cloud:    cloud,
		cluster:  cluster,
		secrets:  sec,
		gitops:   git,
		policies: DefaultPolicies(),
	}
}

// NewProvisionerFromClients is the production wiring: real AWS clients and
// adapters that connect to the cluster once its kubeconfig exists.
func NewProvisionerFromClients(cfg *config.Config, infra InfraDriver, clients *aws.Clients) *Provisioner {
	return NewProvisioner(cfg, infra, NewCloudAdapter(clients), NewClusterAdapter(), NewSecretsAdapter(), NewGitOpsAdapter())
}

// Provision runs the state machine to completion. The returned Run reports
// the last barrier passed even on error, so callers can tell the user where
// provisioning stopped.
func (p *Provisioner) Provision(ctx context.Context) (*Run, error) {
	tracer := otel.Tracer("thingslab-orchestrator")
	ctx, span := tracer.Start(ctx, "orchestrator.Provision")
	defer span.End()

	span.SetAttributes(
		attribute.String("cluster_name", p.cfg.ClusterName),
		attribute.String("region", p.cfg.Region),
	)

	run := &Run{}

	steps := []struct {
		state State
		fn    func(context.Context, *Run) error
	}{
		{StateInfraInit, p.stepInfraInit},
		{StateInfraApplied, p.stepInfraApplied},
		{StateKubeconfigBound, p.stepKubeconfigBound},
		{StateIdentityProviderReady, p.stepIdentityProvider},
		{StateAddonActive, p.stepAddonActive},
		{StateStorageClassesReady, p.stepStorageClasses},
		{StateNodesReady, p.stepNodesReady},
		{StateSecretsOperatorInstalled, p.stepSecretsOperatorInstalled},
		{StateSecretsOperatorReady, p.stepSecretsOperatorReady},
		{StateIRSABound, p.stepIRSABound},
		{StateSecretsConfigured, p.stepSecretsConfigured},
		{StateSecretsSynced, p.stepSecretsSynced},
		{StateGitOpsInstalled, p.stepGitOpsInstalled},
		{StateApplicationSetApplied, p.stepApplicationSetApplied},
		{StateApplicationsHealthy, p.stepApplicationsHealthy},
	}

	for _, s := range steps {
		if err := s.fn(ctx, run); err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("failed_state", string(s.state)))
			return run, fmt.Errorf("%s: %w", s.state, err)
		}
		run.State = s.state
	}

	status.Send(ctx, status.NewUpdate(status.LevelSuccess, "Provisioning complete").
		WithResource("cluster").
		WithAction("provisioned").
		WithMetadata("cluster_name", p.cfg.ClusterName).
		WithMetadata("environments", len(p.cfg.Environments)))
	return run, nil
}

func (p *Provisioner) stepInfraInit(ctx context.Context, _ *Run) error {
	bucket := p.cfg.StateBucketName()

	exists, err := p.cloud.StateBucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if !exists {
		if err := p.cloud.EnsureStateBucket(ctx, bucket); err != nil {
			return err
		}
	}

	return p.infra.Init(ctx, tofu.BackendConfig{
		Bucket: bucket,
		Key:    p.cfg.StateKey(),
		Region: p.cfg.Region,
	})
}

func (p *Provisioner) stepInfraApplied(ctx context.Context, run *Run) error {
	outputs, err := p.infra.Outputs(ctx)
	if err == nil && outputs["cluster_name"] == p.cfg.ClusterName {
		status.Send(ctx, status.NewUpdate(status.LevelInfo, "Infrastructure already applied, skipping").
			WithResource("infrastructure").
			WithAction("up-to-date"))
		run.Outputs = outputs
		return nil
	}

	if err := p.infra.Apply(ctx); err != nil {
		return err
	}

	outputs, err = p.infra.Outputs(ctx)
	if err != nil {
		return fmt.Errorf("failed to read outputs after apply: %w", err)
	}
	run.Outputs = outputs
	return nil
}

func (p *Provisioner) stepKubeconfigBound(ctx context.Context, run *Run) error {
	kubeconfig, err := aws.BuildKubeconfig(
		p.cfg.ClusterName,
		p.cfg.Region,
		run.Outputs["cluster_endpoint"],
		run.Outputs["cluster_certificate_authority_data"],
	)
	if err != nil {
		return err
	}
	run.Kubeconfig = kubeconfig

	for _, c := range []interface {
		Connect(context.Context, []byte) error
	}{p.cluster, p.secrets, p.gitops} {
		if err := c.Connect(ctx, kubeconfig); err != nil {
			return err
		}
	}

	issuer := run.Outputs["cluster_oidc_issuer_url"]
	if issuer == "" {
		issuer, err = p.cloud.ClusterOIDCIssuer(ctx, p.cfg.ClusterName)
		if err != nil {
			return err
		}
	}
	run.OIDCIssuer = issuer

	run.AccountID, err = p.cloud.AccountID(ctx)
	return err
}

func (p *Provisioner) stepIdentityProvider(ctx context.Context, run *Run) error {
	arn, err := p.cloud.OIDCProviderARN(ctx, run.OIDCIssuer)
	if err != nil {
		return err
	}
	if arn == "" {
		if _, _, err := p.cloud.EnsureOIDCProvider(ctx, run.OIDCIssuer); err != nil {
			return err
		}
	}

	return wait(ctx, p.policies.IdentityProvider, func(ctx context.Context) (CheckResult, error) {
		arn, err := p.cloud.OIDCProviderARN(ctx, run.OIDCIssuer)
		if err != nil {
			return CheckResult{}, err
		}
		return CheckResult{Done: arn != "", Status: "registered"}, nil
	})
}

func (p *Provisioner) stepAddonActive(ctx context.Context, run *Run) error {
	addonState, err := p.cloud.AddonStatus(ctx, p.cfg.ClusterName, aws.EBSCSIAddonName)
	if err != nil {
		return err
	}

	if addonState != "ACTIVE" {
		roleARN, err := p.cloud.EnsureIRSARole(ctx, p.ebsCSIIRSAConfig(run))
		if err != nil {
			return err
		}
		run.EBSCSIRoleARN = roleARN

		if _, err := p.cloud.EnsureAddon(ctx, p.cfg.ClusterName, aws.EBSCSIAddonName, roleARN); err != nil {
			return err
		}
	}

	return wait(ctx, p.policies.AddonActive, func(ctx context.Context) (CheckResult, error) {
		st, err := p.cloud.AddonStatus(ctx, p.cfg.ClusterName, aws.EBSCSIAddonName)
		if err != nil {
			return CheckResult{}, err
		}
		return CheckResult{
			Done:     st == "ACTIVE",
			Terminal: st == "DEGRADED" || st == "CREATE_FAILED",
			Status:   st,
		}, nil
	})
}

func (p *Provisioner) stepStorageClasses(ctx context.Context, _ *Run) error {
	if err := p.cluster.EnsureStorageClasses(ctx); err != nil {
		return err
	}

	return wait(ctx, p.policies.StorageClasses, func(ctx context.Context) (CheckResult, error) {
		ready, err := p.cluster.StorageClassesReady(ctx)
		if err != nil {
			return CheckResult{}, err
		}
		return CheckResult{Done: ready, Status: "applied"}, nil
	})
}

func (p *Provisioner) stepNodesReady(ctx context.Context, _ *Run) error {
	want := p.cfg.NodeGroup.MinNodes

	return wait(ctx, p.policies.NodesReady, func(ctx context.Context) (CheckResult, error) {
		count, err := p.cluster.ReadyNodeCount(ctx)
		if err != nil {
			return CheckResult{}, err
		}
		return CheckResult{
			Done:   count >= want,
			Status: fmt.Sprintf("%d/%d nodes ready", count, want),
		}, nil
	})
}

func (p *Provisioner) stepSecretsOperatorInstalled(ctx context.Context, run *Run) error {
	// The role ARN is deterministic, so the service account can be
	// annotated before the role exists; IRSABound creates it afterwards.
	irsa := p.secretsIRSAConfig(run)
	run.SecretsRoleARN = irsa.RoleARN()

	return p.secrets.InstallOperator(ctx, run.Kubeconfig, secrets.DefaultChartVersion, run.SecretsRoleARN)
}

func (p *Provisioner) stepSecretsOperatorReady(ctx context.Context, _ *Run) error {
	set := kube.ExternalSecretsWorkloads(secrets.OperatorNamespace)

	return wait(ctx, p.policies.SecretsOperator, func(ctx context.Context) (CheckResult, error) {
		ready, err := p.cluster.WorkloadsReady(ctx, set)
		if err != nil {
			return CheckResult{}, err
		}
		return CheckResult{Done: ready, Status: "deployments ready"}, nil
	})
}

func (p *Provisioner) stepIRSABound(ctx context.Context, run *Run) error {
	policyARN, err := p.cloud.EnsureSSMReadPolicy(ctx, run.AccountID, p.cfg.ProjectName, p.ssmPolicyName())
	if err != nil {
		return err
	}

	irsa := p.secretsIRSAConfig(run)
	irsa.PolicyARN = policyARN

	bound, err := p.cloud.RoleHasPolicy(ctx, irsa.RoleName, policyARN)
	if err != nil {
		return err
	}
	if bound {
		status.Send(ctx, status.NewUpdate(status.LevelInfo, "IAM role already bound, skipping").
			WithResource("iam-role").
			WithAction("up-to-date").
			WithMetadata("role", irsa.RoleName))
		return nil
	}

	arn, err := p.cloud.EnsureIRSARole(ctx, irsa)
	if err != nil {
		return err
	}
	run.SecretsRoleARN = arn
	return nil
}

func (p *Provisioner) stepSecretsConfigured(ctx context.Context, _ *Run) error {
	for _, sc := range aws.SecretComponents {
		value := p.credentialFor(sc.Component)
		path := aws.SecretPath(p.cfg.ProjectName, sc.Component, sc.Key)

		current, err := p.cloud.GetSecret(ctx, path)
		if err == nil && current == value {
			continue
		}
		if err := p.cloud.PutSecret(ctx, path, value); err != nil {
			return err
		}
	}

	if err := p.secrets.ApplyClusterSecretStore(ctx, p.cfg.Region); err != nil {
		return err
	}

	for _, env := range p.cfg.Environments {
		namespace := p.cfg.Namespace(env.Name)
		if err := p.cluster.EnsureNamespace(ctx, namespace); err != nil {
			return err
		}
		if err := p.secrets.ApplyExternalSecret(ctx, namespace, p.cfg.ProjectName); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provisioner) stepSecretsSynced(ctx context.Context, _ *Run) error {
	return wait(ctx, p.policies.SecretSync, func(ctx context.Context) (CheckResult, error) {
		allSynced := true
		for _, env := range p.cfg.Environments {
			synced, reason, err := p.secrets.Synced(ctx, p.cfg.Namespace(env.Name))
			if err != nil {
				return CheckResult{Status: err.Error()}, nil
			}
			if reason == "SecretSyncedError" {
				return CheckResult{Terminal: true, Status: reason}, nil
			}
			if !synced {
				allSynced = false
			}
		}
		return CheckResult{Done: allSynced, Status: "SecretSynced"}, nil
	})
}

func (p *Provisioner) stepGitOpsInstalled(ctx context.Context, run *Run) error {
	if err := p.gitops.InstallArgoCD(ctx, run.Kubeconfig, p.cfg); err != nil {
		return err
	}

	set := kube.ArgoCDWorkloads(p.cfg.GitOps.ArgoCDNamespace)
	return wait(ctx, p.policies.GitOpsWorkloads, func(ctx context.Context) (CheckResult, error) {
		ready, err := p.cluster.WorkloadsReady(ctx, set)
		if err != nil {
			return CheckResult{}, err
		}
		return CheckResult{Done: ready, Status: "workloads ready"}, nil
	})
}

func (p *Provisioner) stepApplicationSetApplied(ctx context.Context, _ *Run) error {
	return p.gitops.ApplyApplicationSet(ctx, p.cfg)
}

func (p *Provisioner) stepApplicationsHealthy(ctx context.Context, run *Run) error {
	err := wait(ctx, p.policies.ApplicationsHealthy, func(ctx context.Context) (CheckResult, error) {
		states := make([]gitops.AppState, 0, len(p.cfg.Environments))
		allReady := true
		for _, env := range p.cfg.Environments {
			name := gitops.ApplicationName(p.cfg.ProjectName, env.Name)
			state, err := p.gitops.ApplicationStatus(ctx, name, p.cfg.GitOps.ArgoCDNamespace)
			if err != nil {
				// Not generated yet.
				allReady = false
				states = append(states, gitops.AppState{Name: name})
				continue
			}
			states = append(states, state)
			if state.Degraded() {
				run.Apps = states
				return CheckResult{Terminal: true, Status: fmt.Sprintf("%s is Degraded", name)}, nil
			}
			if !state.Ready() {
				allReady = false
			}
		}
		run.Apps = states
		return CheckResult{Done: allReady, Status: "applications synced"}, nil
	})
	if err != nil {
		return err
	}

	for _, app := range run.Apps {
		status.Send(ctx, status.NewUpdate(status.LevelInfo, fmt.Sprintf("Application %s: sync=%s health=%s", app.Name, app.Sync, app.Health)).
			WithResource("argocd-application").
			WithAction("observed").
			WithMetadata("application", app.Name))
	}
	return nil
}

func (p *Provisioner) ebsCSIIRSAConfig(run *Run) aws.IRSAConfig {
	return aws.IRSAConfig{
		RoleName:       p.cfg.ClusterName + "-ebs-csi-irsa",
		Namespace:      "kube-system",
		ServiceAccount: "ebs-csi-controller-sa",
		AccountID:      run.AccountID,
		OIDCIssuer:     run.OIDCIssuer,
		PolicyARN:      aws.EBSCSIDriverPolicyARN,
	}
}

func (p *Provisioner) secretsIRSAConfig(run *Run) aws.IRSAConfig {
	return aws.IRSAConfig{
		RoleName:       p.cfg.ClusterName + "-external-secrets-irsa",
		Namespace:      secrets.OperatorNamespace,
		ServiceAccount: secrets.ServiceAccountName,
		AccountID:      run.AccountID,
		OIDCIssuer:     run.OIDCIssuer,
	}
}

func (p *Provisioner) ssmPolicyName() string {
	return p.cfg.ClusterName + "-ssm-read"
}

func (p *Provisioner) credentialFor(component string) string {
	switch component {
	case "influxdb":
		return p.cfg.Credentials.InfluxDBAdminPassword
	case "grafana":
		return p.cfg.Credentials.GrafanaAdminPassword
	case "mqtt":
		return p.cfg.Credentials.MQTTPassword
	default:
		return ""
	}
}
