package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/thingslab-dev/thingslab-orchestrator/pkg/aws"
	"github.com/thingslab-dev/thingslab-orchestrator/pkg/config"
	"github.com/thingslab-dev/thingslab-orchestrator/pkg/secrets"
	"github.com/thingslab-dev/thingslab-orchestrator/pkg/status"
	"github.com/thingslab-dev/thingslab-orchestrator/pkg/tofu"
)

const workloadCleanupTimeout = 5 * time.Minute

// DestroyResult summarizes what a destroy run accomplished and what, if
// anything, needs manual follow-up.
type DestroyResult struct {
	VPCID              string
	VolumesSwept       int
	StateBucketDeleted bool

	// Leftovers lists cleanup steps that failed best-effort and may need
	// manual attention.
	Leftovers []string
}

// Destroyer tears an environment down in four phases: VPC discovery,
// orphaned-resource pre-cleanup, the driven destroy, and a retry pass with a
// forced refresh. Every phase is repeatable; destroying an environment that
// never existed is a successful no-op.
type Destroyer struct {
	cfg     *config.Config
	infra   InfraDriver
	cloud   CloudAPI
	cluster ClusterAPI
	secrets SecretsAPI
	gitops  GitOpsAPI
}

// NewDestroyer wires a destroyer from explicit collaborators.
func NewDestroyer(cfg *config.Config, infra InfraDriver, cloud CloudAPI, cluster ClusterAPI, sec SecretsAPI, git GitOpsAPI) *Destroyer {
	return &Destroyer{
		cfg:     cfg,
		infra:   infra,
		cloud:   cloud,
		cluster: cluster,
		secrets: sec,
		gitops:  git,
	}
}

// NewDestroyerFromClients is the production wiring.
func NewDestroyerFromClients(cfg *config.Config, infra InfraDriver, clients *aws.Clients) *Destroyer {
	return NewDestroyer(cfg, infra, NewCloudAdapter(clients), NewClusterAdapter(), NewSecretsAdapter(), NewGitOpsAdapter())
}

// Destroy runs the four phases. It returns an error only for a double driven
// destroy failure or a permission problem; partial cleanup failures land in
// the result's Leftovers.
func (d *Destroyer) Destroy(ctx context.Context) (*DestroyResult, error) {
	tracer := otel.Tracer("thingslab-orchestrator")
	ctx, span := tracer.Start(ctx, "orchestrator.Destroy")
	defer span.End()

	span.SetAttributes(attribute.String("cluster_name", d.cfg.ClusterName))

	res := &DestroyResult{}
	bucket := d.cfg.StateBucketName()

	hasState, outputs := d.loadState(ctx, bucket, res)

	// Phase 1: discovery.
	vpcID := outputs["vpc_id"]
	if vpcID == "" {
		discovered, err := d.cloud.DiscoverVPC(ctx, d.cfg.ClusterName)
		if err != nil {
			span.RecordError(err)
			return res, err
		}
		vpcID = discovered
	}
	res.VPCID = vpcID

	if vpcID == "" && !hasState {
		status.Send(ctx, status.NewUpdate(status.LevelSuccess, "Nothing to destroy").
			WithResource("cluster").
			WithAction("already-gone").
			WithMetadata("cluster_name", d.cfg.ClusterName))
		return res, nil
	}

	// The issuer URL must be captured now: the IAM OIDC provider outlives
	// the cluster, but the EKS API that knows the issuer does not. State
	// written before the issuer output existed falls back to the API.
	issuer := outputs["cluster_oidc_issuer_url"]
	if issuer == "" {
		if found, err := d.cloud.ClusterOIDCIssuer(ctx, d.cfg.ClusterName); err == nil {
			issuer = found
		}
	}

	// Phase 2: pre-cleanup of resources that block the driven destroy.
	if vpcID != "" {
		if err := d.cloud.PreCleanup(ctx, vpcID, d.cfg.ClusterName); err != nil {
			span.RecordError(err)
			return res, err
		}
	}

	// Phase 3: workload cleanup, then the driven destroy.
	d.cleanupWorkloads(ctx, outputs, res)

	var destroyErr error
	if hasState {
		destroyErr = d.infra.Destroy(ctx, false)
		if destroyErr != nil {
			destroyErr = d.retryDestroy(ctx, res, destroyErr)
		}
	}

	// The volume sweep runs regardless of the destroy outcome: dynamically
	// provisioned volumes are invisible to the recorded state.
	swept, err := d.cloud.SweepVolumes(ctx, d.cfg.ClusterName)
	if err != nil {
		res.Leftovers = append(res.Leftovers, fmt.Sprintf("volume sweep: %v", err))
	}
	res.VolumesSwept = swept

	if destroyErr != nil {
		span.RecordError(destroyErr)
		status.Send(ctx, status.NewUpdate(status.LevelError, "Destroy failed twice, state left intact").
			WithResource("infrastructure").
			WithAction("destroy-failed").
			WithMetadata("error", destroyErr.Error()))
		return res, fmt.Errorf("destroy failed after retry: %w", destroyErr)
	}

	d.cleanupIdentities(ctx, issuer, res)

	if err := d.cloud.DestroyStateBucket(ctx, bucket); err != nil {
		res.Leftovers = append(res.Leftovers, fmt.Sprintf("state bucket %s: %v", bucket, err))
	} else {
		res.StateBucketDeleted = true
	}

	status.Send(ctx, status.NewUpdate(status.LevelSuccess, "Environment destroyed").
		WithResource("cluster").
		WithAction("destroyed").
		WithMetadata("cluster_name", d.cfg.ClusterName).
		WithMetadata("volumes_swept", res.VolumesSwept).
		WithMetadata("leftovers", len(res.Leftovers)))
	return res, nil
}

// loadState initializes the backend when the state bucket exists and reads
// the recorded outputs. A missing or unreadable state is not an error; the
// destroy falls back to discovery.
func (d *Destroyer) loadState(ctx context.Context, bucket string, res *DestroyResult) (bool, map[string]string) {
	exists, err := d.cloud.StateBucketExists(ctx, bucket)
	if err != nil || !exists {
		return false, nil
	}

	err = d.infra.Init(ctx, tofu.BackendConfig{
		Bucket: bucket,
		Key:    d.cfg.StateKey(),
		Region: d.cfg.Region,
	})
	if err != nil {
		res.Leftovers = append(res.Leftovers, fmt.Sprintf("backend init: %v", err))
		return false, nil
	}

	outputs, err := d.infra.Outputs(ctx)
	if err != nil {
		return true, nil
	}
	return true, outputs
}

// cleanupWorkloads deletes the environment namespaces and uninstalls the
// controllers so nothing recreates cloud resources mid-destroy. Everything
// here is best-effort: an unreachable cluster just means tofu does the work.
func (d *Destroyer) cleanupWorkloads(ctx context.Context, outputs map[string]string, res *DestroyResult) {
	endpoint := outputs["cluster_endpoint"]
	caData := outputs["cluster_certificate_authority_data"]
	if endpoint == "" || caData == "" {
		return
	}

	kubeconfig, err := aws.BuildKubeconfig(d.cfg.ClusterName, d.cfg.Region, endpoint, caData)
	if err != nil {
		res.Leftovers = append(res.Leftovers, fmt.Sprintf("kubeconfig: %v", err))
		return
	}

	if err := d.cluster.Connect(ctx, kubeconfig); err != nil {
		res.Leftovers = append(res.Leftovers, fmt.Sprintf("cluster connection: %v", err))
		return
	}

	if err := d.gitops.UninstallArgoCD(ctx, kubeconfig, d.cfg.GitOps.ArgoCDNamespace); err != nil {
		res.Leftovers = append(res.Leftovers, fmt.Sprintf("argocd uninstall: %v", err))
	}
	if err := d.secrets.UninstallOperator(ctx, kubeconfig); err != nil {
		res.Leftovers = append(res.Leftovers, fmt.Sprintf("external-secrets uninstall: %v", err))
	}

	namespaces := make([]string, 0, len(d.cfg.Environments)+2)
	for _, env := range d.cfg.Environments {
		namespaces = append(namespaces, d.cfg.Namespace(env.Name))
	}
	namespaces = append(namespaces, d.cfg.GitOps.ArgoCDNamespace, secrets.OperatorNamespace)

	if err := d.cluster.CleanupWorkloads(ctx, namespaces, workloadCleanupTimeout); err != nil {
		res.Leftovers = append(res.Leftovers, fmt.Sprintf("workload cleanup: %v", err))
	}
}

// retryDestroy is phase 4: re-run discovery and pre-cleanup (the first
// destroy may have removed the blockers itself), then destroy again with a
// forced refresh so resources deleted out-of-band disappear from the plan.
func (d *Destroyer) retryDestroy(ctx context.Context, res *DestroyResult, firstErr error) error {
	status.Send(ctx, status.NewUpdate(status.LevelWarning, "Destroy failed, retrying after another cleanup pass").
		WithResource("infrastructure").
		WithAction("retrying").
		WithMetadata("error", firstErr.Error()))

	vpcID, err := d.cloud.DiscoverVPC(ctx, d.cfg.ClusterName)
	if err != nil {
		return fmt.Errorf("rediscovery failed: %w (first destroy error: %v)", err, firstErr)
	}
	if vpcID != "" {
		res.VPCID = vpcID
		if err := d.cloud.PreCleanup(ctx, vpcID, d.cfg.ClusterName); err != nil {
			return fmt.Errorf("pre-cleanup retry failed: %w (first destroy error: %v)", err, firstErr)
		}
	}

	return d.infra.Destroy(ctx, true)
}

// cleanupIdentities removes the IAM artifacts the provisioner created
// outside of the tofu state. All best-effort.
func (d *Destroyer) cleanupIdentities(ctx context.Context, issuer string, res *DestroyResult) {
	for _, role := range []string{
		d.cfg.ClusterName + "-external-secrets-irsa",
		d.cfg.ClusterName + "-ebs-csi-irsa",
	} {
		if err := d.cloud.DeleteIRSARole(ctx, role); err != nil {
			res.Leftovers = append(res.Leftovers, fmt.Sprintf("iam role %s: %v", role, err))
		}
	}

	accountID, err := d.cloud.AccountID(ctx)
	if err != nil {
		res.Leftovers = append(res.Leftovers, fmt.Sprintf("account lookup: %v", err))
	} else {
		policyName := d.cfg.ClusterName + "-ssm-read"
		if err := d.cloud.DeleteSSMReadPolicy(ctx, accountID, policyName); err != nil {
			res.Leftovers = append(res.Leftovers, fmt.Sprintf("iam policy %s: %v", policyName, err))
		}
	}

	if issuer != "" {
		if err := d.cloud.DeleteOIDCProvider(ctx, issuer); err != nil {
			res.Leftovers = append(res.Leftovers, fmt.Sprintf("oidc provider: %v", err))
		}
	} else {
		res.Leftovers = append(res.Leftovers, "oidc provider: issuer unknown, check IAM for an orphaned provider")
	}

	if err := d.cloud.DeleteClusterSecrets(ctx, d.cfg.ProjectName); err != nil {
		res.Leftovers = append(res.Leftovers, fmt.Sprintf("ssm parameters: %v", err))
	}
}
