package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"propcheck/internal/config"
	"propcheck/internal/repo"
)

// ResolveOrgAndConfig picks the active org and ensures the org row and its
// config exist in the database, seeding defaults if missing. It prefers the
// override, then the workspace propcheck.yml, then the default org id.
func ResolveOrgAndConfig(ctx context.Context, workspace, orgOverride, actorID string, r repo.Repo) (string, *config.Config, error) {
	orgID := orgOverride
	var fileCfg *config.Config
	if cfg, err := config.LoadOptional(workspace); err != nil {
		return "", nil, err
	} else if cfg != nil {
		fileCfg = cfg
		if orgID == "" {
			orgID = cfg.Org.ID
		}
	}
	if orgID == "" {
		orgID = "default-org"
	}

	if _, err := r.GetOrg(ctx, orgID); err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return "", nil, err
		}
		if err := createOrg(ctx, r, orgID, fileCfg); err != nil {
			return "", nil, err
		}
	}

	cfg, err := r.GetOrgConfig(ctx, orgID)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return "", nil, err
		}
		seed := fileCfg
		if seed == nil {
			seed = config.Default(orgID)
		}
		if err := r.UpsertOrgConfig(ctx, orgID, seed); err != nil {
			return "", nil, fmt.Errorf("seed org config: %w", err)
		}
		cfg = seed
	}
	cfg.Org.ID = orgID
	return orgID, cfg, nil
}

// createOrg inserts a minimal org footprint using the seed config.
func createOrg(ctx context.Context, r repo.Repo, orgID string, seedCfg *config.Config) error {
	if seedCfg == nil {
		seedCfg = config.Default(orgID)
	}
	name := seedCfg.Org.Name
	if name == "" {
		name = "Default Org"
	}
	now := time.Now().UTC().Format(time.RFC3339)
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := r.EnsureOrg(ctx, tx, orgID, name, now); err != nil {
		return fmt.Errorf("ensure org: %w", err)
	}
	if err := r.UpsertOrgConfigTx(ctx, tx, orgID, seedCfg); err != nil {
		return fmt.Errorf("insert org config: %w", err)
	}
	return tx.Commit()
}
