package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DeploymentStatus is the outcome recorded for a deployment
type DeploymentStatus string

const (
	StatusRunning    DeploymentStatus = "running"
	StatusDeployed   DeploymentStatus = "deployed"
	StatusFailed     DeploymentStatus = "failed"
	StatusUndeployed DeploymentStatus = "undeployed"
)

// Deployment is one row of the deployment history
type Deployment struct {
	ID          string
	GameID      string
	ProfileName string
	Status      DeploymentStatus
	FileCount   int
	Error       string
	StartedAt   time.Time
	FinishedAt  *time.Time
}

// OwnedFile is a deployed path and the mod that wrote it
type OwnedFile struct {
	Path    string // As recorded in the deployment manifest
	ModName string // Empty for files that do not come from a mod
	Root    bool
}

// Conflict is a path a mod lost to an earlier mod or to an untracked file
type Conflict struct {
	Path   string
	Winner string // Empty when the path held a file sml did not write
	Loser  string
}

// BeginDeployment records a running deployment and returns its ID
func (d *DB) BeginDeployment(gameID, profileName string) (string, error) {
	id := uuid.NewString()
	_, err := d.Exec(`
		INSERT INTO deployments (id, game_id, profile_name, status)
		VALUES (?, ?, ?, ?)
	`, id, gameID, profileName, StatusRunning)
	if err != nil {
		return "", fmt.Errorf("recording deployment: %w", err)
	}
	return id, nil
}

// FinishDeployment sets the final status of a deployment
func (d *DB) FinishDeployment(id string, status DeploymentStatus, fileCount int, deployErr error) error {
	var msg sql.NullString
	if deployErr != nil {
		msg = sql.NullString{String: deployErr.Error(), Valid: true}
	}
	_, err := d.Exec(`
		UPDATE deployments SET status = ?, file_count = ?, error = ?, finished_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, status, fileCount, msg, id)
	if err != nil {
		return fmt.Errorf("finishing deployment: %w", err)
	}
	return nil
}

// SaveDeployedFiles records file ownership and conflicts of a deployment in one transaction.
// Earlier records for the same paths are replaced.
func (d *DB) SaveDeployedFiles(deploymentID, gameID, profileName string, files []OwnedFile, conflicts []Conflict) error {
	tx, err := d.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	fileStmt, err := tx.Prepare(`
		INSERT INTO deployed_files (game_id, profile_name, path, mod_name, root, deployment_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(game_id, profile_name, path) DO UPDATE SET
			mod_name = excluded.mod_name,
			root = excluded.root,
			deployment_id = excluded.deployment_id,
			deployed_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return fmt.Errorf("preparing file insert: %w", err)
	}
	defer fileStmt.Close()

	for _, f := range files {
		if _, err := fileStmt.Exec(gameID, profileName, f.Path, f.ModName, f.Root, deploymentID); err != nil {
			return fmt.Errorf("saving deployed file %s: %w", f.Path, err)
		}
	}

	for _, c := range conflicts {
		if _, err := tx.Exec(`
			INSERT OR REPLACE INTO deployment_conflicts (deployment_id, path, winner, loser)
			VALUES (?, ?, ?, ?)
		`, deploymentID, c.Path, c.Winner, c.Loser); err != nil {
			return fmt.Errorf("saving conflict %s: %w", c.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing deployed files: %w", err)
	}
	return nil
}

// GetFileOwner returns the deployed record of a path, or nil when no mod owns it
func (d *DB) GetFileOwner(gameID, profileName, path string) (*OwnedFile, error) {
	owner := OwnedFile{Path: path}
	err := d.QueryRow(`
		SELECT mod_name, root FROM deployed_files
		WHERE game_id = ? AND profile_name = ? AND path = ?
	`, gameID, profileName, path).Scan(&owner.ModName, &owner.Root)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting file owner: %w", err)
	}
	return &owner, nil
}

// ListDeployedFiles returns every deployed file of a profile ordered by path
func (d *DB) ListDeployedFiles(gameID, profileName string) ([]OwnedFile, error) {
	rows, err := d.Query(`
		SELECT path, mod_name, root FROM deployed_files
		WHERE game_id = ? AND profile_name = ?
		ORDER BY path
	`, gameID, profileName)
	if err != nil {
		return nil, fmt.Errorf("querying deployed files: %w", err)
	}
	defer rows.Close()

	var files []OwnedFile
	for rows.Next() {
		var f OwnedFile
		if err := rows.Scan(&f.Path, &f.ModName, &f.Root); err != nil {
			return nil, fmt.Errorf("scanning deployed file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// ClearDeployedFiles forgets every deployed file of a profile
func (d *DB) ClearDeployedFiles(gameID, profileName string) error {
	_, err := d.Exec(`
		DELETE FROM deployed_files WHERE game_id = ? AND profile_name = ?
	`, gameID, profileName)
	if err != nil {
		return fmt.Errorf("clearing deployed files: %w", err)
	}
	return nil
}

// ListConflicts returns the conflicts of a deployment ordered by path
func (d *DB) ListConflicts(deploymentID string) ([]Conflict, error) {
	rows, err := d.Query(`
		SELECT path, winner, loser FROM deployment_conflicts
		WHERE deployment_id = ?
		ORDER BY path, loser
	`, deploymentID)
	if err != nil {
		return nil, fmt.Errorf("querying conflicts: %w", err)
	}
	defer rows.Close()

	var conflicts []Conflict
	for rows.Next() {
		var c Conflict
		if err := rows.Scan(&c.Path, &c.Winner, &c.Loser); err != nil {
			return nil, fmt.Errorf("scanning conflict: %w", err)
		}
		conflicts = append(conflicts, c)
	}
	return conflicts, rows.Err()
}

// ListDeployments returns the most recent deployments of a profile, newest first
func (d *DB) ListDeployments(gameID, profileName string, limit int) ([]Deployment, error) {
	rows, err := d.Query(`
		SELECT id, game_id, profile_name, status, file_count, COALESCE(error, ''), started_at, finished_at
		FROM deployments
		WHERE game_id = ? AND profile_name = ?
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, gameID, profileName, limit)
	if err != nil {
		return nil, fmt.Errorf("querying deployments: %w", err)
	}
	defer rows.Close()

	var out []Deployment
	for rows.Next() {
		var dep Deployment
		var finished sql.NullTime
		if err := rows.Scan(&dep.ID, &dep.GameID, &dep.ProfileName, &dep.Status, &dep.FileCount, &dep.Error, &dep.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("scanning deployment: %w", err)
		}
		if finished.Valid {
			dep.FinishedAt = &finished.Time
		}
		out = append(out, dep)
	}
	return out, rows.Err()
}

// LatestDeployment returns the newest deployment of a profile, or nil when there is none
func (d *DB) LatestDeployment(gameID, profileName string) (*Deployment, error) {
	deps, err := d.ListDeployments(gameID, profileName, 1)
	if err != nil || len(deps) == 0 {
		return nil, err
	}
	return &deps[0], nil
}
