// Package gitrepo is the pre-flight check for the GitOps deployment
// repository. It lists remote refs without cloning so a typoed URL or a
// missing branch is caught before any cloud resource is created.
package gitrepo

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// TokenEnvVar names the environment variable holding an optional access
// token for private deployment repositories.
const TokenEnvVar = "TLO_GIT_TOKEN"

// CheckReachable lists the repository's remote refs and, when revision is
// non-empty, verifies that a branch or tag with that name exists.
func CheckReachable(ctx context.Context, repoURL, revision string) error {
	tracer := otel.Tracer("thingslab-orchestrator")
	ctx, span := tracer.Start(ctx, "gitrepo.CheckReachable")
	defer span.End()

	span.SetAttributes(
		attribute.String("repo_url", repoURL),
		attribute.String("revision", revision),
	)

	remote := git.NewRemote(memory.NewStorage(), &gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{repoURL},
	})

	refs, err := remote.ListContext(ctx, &git.ListOptions{
		Auth: authFromEnv(),
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("gitops repository %s is not reachable: %w", repoURL, err)
	}

	span.SetAttributes(attribute.Int("ref_count", len(refs)))

	if revision == "" {
		return nil
	}
	for _, ref := range refs {
		name := ref.Name()
		if name.IsBranch() && name.Short() == revision {
			return nil
		}
		if name.IsTag() && name.Short() == revision {
			return nil
		}
	}
	return fmt.Errorf("gitops repository %s has no branch or tag %q", repoURL, revision)
}

// authFromEnv builds token auth when TLO_GIT_TOKEN is set. Public
// repositories need no credentials.
func authFromEnv() transport.AuthMethod {
	token := strings.TrimSpace(os.Getenv(TokenEnvVar))
	if token == "" {
		return nil
	}
	return &http.BasicAuth{
		Username: "git",
		Password: token,
	}
}
