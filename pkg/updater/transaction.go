package updater

import (
	"fmt"
	"os"
	"path/filepath"

	"kiosk-firmware/pkg/appconfig"
	"kiosk-firmware/pkg/globals"
)

// apply performs one atomic update from a located package. Everything before
// BackingUp is side-effect-free on the live system; from BackingUp on, any
// failure routes through rollback before returning.
func (u *Updater) apply(pkgPath string) error {
	pkgConfig := filepath.Join(pkgPath, globals.PackageConfigName)
	pkgAssets := filepath.Join(pkgPath, globals.PackageAssetDir)

	staging := u.layout.stagingDir()
	stagingConfig := filepath.Join(staging, filepath.Base(u.layout.ConfigPath))
	stagingAssets := filepath.Join(staging, filepath.FromSlash(u.layout.AssetPrefix))

	backup := u.layout.backupDir()
	backupConfig := filepath.Join(backup, filepath.Base(u.layout.ConfigPath)+".bak")
	backupAssets := filepath.Join(backup, filepath.Base(u.layout.assetDir())+".bak")

	liveConfig := u.layout.ConfigPath
	liveAssets := u.layout.assetDir()

	// PreValidating: the package config as found, untouched.
	u.setState(StatePreValidating)
	u.status("Validating package configuration...")
	doc, err := appconfig.Load(pkgConfig)
	if err != nil {
		return err
	}

	// Staging: fresh staging area, then only the assets the config reaches.
	u.setState(StateStaging)
	u.status("Preparing staging area...")
	if err := os.RemoveAll(staging); err != nil {
		return &IOError{Op: "remove stale staging", Path: staging, Err: err}
	}
	if err := os.MkdirAll(stagingAssets, 0755); err != nil {
		return &IOError{Op: "create staging", Path: stagingAssets, Err: err}
	}

	assets := GatherAssets(doc)
	if len(assets) == 0 {
		u.status("No package-relative assets referenced; config-only update.")
	} else {
		u.status(fmt.Sprintf("Copying %d asset(s) to staging...", len(assets)))
	}
	for rel, original := range assets {
		src := filepath.Join(pkgAssets, filepath.FromSlash(rel))
		dst := filepath.Join(stagingAssets, filepath.FromSlash(rel))
		if _, err := os.Stat(src); err != nil {
			os.RemoveAll(staging)
			return &AssetMissingError{Path: original}
		}
		if err := copyFile(src, dst); err != nil {
			os.RemoveAll(staging)
			return &IOError{Op: "copy asset", Path: src, Err: err}
		}
	}

	// Rewriting: remap asset paths to the live convention and write the
	// staged config.
	u.setState(StateRewriting)
	u.status("Rewriting asset paths in staged configuration...")
	rewritten := RewritePaths(doc, u.layout.AssetPrefix)
	if u.rewriteFault != nil {
		u.rewriteFault(rewritten)
	}
	data, err := rewritten.Marshal()
	if err != nil {
		os.RemoveAll(staging)
		return &IOError{Op: "encode staged config", Path: stagingConfig, Err: err}
	}
	if err := os.WriteFile(stagingConfig, data, 0644); err != nil {
		os.RemoveAll(staging)
		return &IOError{Op: "write staged config", Path: stagingConfig, Err: err}
	}

	// PostValidating: re-read the staged artifact from disk so rewriting or
	// serialization bugs cannot reach commit.
	u.setState(StatePostValidating)
	u.status("Validating rewritten staged configuration...")
	if _, err := appconfig.Load(stagingConfig); err != nil {
		os.RemoveAll(staging)
		return err
	}

	// BackingUp: last point before any live-visible mutation. Rollback only
	// ever restores components whose backup completed, so a failure in here
	// still leaves the live system untouched.
	u.setState(StateBackingUp)
	u.status("Backing up current configuration and assets...")
	var haveConfigBackup, haveAssetBackup bool
	if err := os.RemoveAll(backup); err != nil {
		os.RemoveAll(staging)
		return &IOError{Op: "remove stale backup", Path: backup, Err: err}
	}
	if err := os.MkdirAll(backup, 0755); err != nil {
		os.RemoveAll(staging)
		return &IOError{Op: "create backup dir", Path: backup, Err: err}
	}
	if _, err := os.Stat(liveConfig); err == nil {
		if err := copyFile(liveConfig, backupConfig); err != nil {
			os.RemoveAll(staging)
			return u.rollback(&IOError{Op: "backup config", Path: liveConfig, Err: err}, haveConfigBackup, haveAssetBackup)
		}
		haveConfigBackup = true
	}
	if _, err := os.Stat(liveAssets); err == nil {
		if err := copyTree(liveAssets, backupAssets); err != nil {
			os.RemoveAll(staging)
			return u.rollback(&IOError{Op: "backup assets", Path: liveAssets, Err: err}, haveConfigBackup, haveAssetBackup)
		}
		haveAssetBackup = true
	}

	// Committing: assets move before the config that references them, and the
	// old tree is renamed aside rather than removed so a crash between the
	// two renames still leaves a complete tree on disk.
	u.setState(StateCommitting)
	u.status("Committing update...")
	if err := u.commit(liveConfig, liveAssets, stagingConfig, stagingAssets); err != nil {
		os.RemoveAll(staging)
		return u.rollback(&CommitError{Err: err}, haveConfigBackup, haveAssetBackup)
	}

	// CleaningUp: staging is disposable; the backup snapshot is retained as a
	// manual-recovery escape hatch.
	u.setState(StateCleaningUp)
	u.status("Cleaning up staging area...")
	os.RemoveAll(staging)
	return nil
}

func (u *Updater) commit(liveConfig, liveAssets, stagingConfig, stagingAssets string) error {
	asideAssets := liveAssets + ".old"

	if err := os.MkdirAll(filepath.Dir(liveAssets), 0755); err != nil {
		return fmt.Errorf("create asset parent dir: %w", err)
	}
	if err := os.RemoveAll(asideAssets); err != nil {
		return fmt.Errorf("remove stale aside tree: %w", err)
	}
	if _, err := os.Stat(liveAssets); err == nil {
		if err := os.Rename(liveAssets, asideAssets); err != nil {
			return fmt.Errorf("move live assets aside: %w", err)
		}
	}
	if err := os.Rename(stagingAssets, liveAssets); err != nil {
		return fmt.Errorf("move staged assets into place: %w", err)
	}

	if u.commitFault != nil {
		if err := u.commitFault(); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(liveConfig), 0755); err != nil {
		return fmt.Errorf("create config parent dir: %w", err)
	}
	if err := os.Rename(stagingConfig, liveConfig); err != nil {
		return fmt.Errorf("move staged config into place: %w", err)
	}

	os.RemoveAll(asideAssets)
	return nil
}

// rollback restores the live config and asset tree from the backup snapshot
// and returns the failure that triggered it. A failure during rollback is
// terminal: it is surfaced as critical and nothing further is attempted.
func (u *Updater) rollback(cause error, haveConfigBackup, haveAssetBackup bool) error {
	u.setState(StateRollingBack)
	u.status(fmt.Sprintf("Update failed (%v). Rolling back...", cause))

	backup := u.layout.backupDir()
	backupConfig := filepath.Join(backup, filepath.Base(u.layout.ConfigPath)+".bak")
	backupAssets := filepath.Join(backup, filepath.Base(u.layout.assetDir())+".bak")
	liveConfig := u.layout.ConfigPath
	liveAssets := u.layout.assetDir()

	// A failed commit may have left the previous asset tree renamed aside.
	os.RemoveAll(liveAssets + ".old")

	if haveConfigBackup {
		if err := copyFile(backupConfig, liveConfig); err != nil {
			rb := &RollbackError{Cause: cause, Err: err}
			u.status(fmt.Sprintf("CRITICAL: rollback failed, manual intervention required: %v", rb))
			return rb
		}
	}
	if haveAssetBackup {
		if err := os.RemoveAll(liveAssets); err != nil {
			rb := &RollbackError{Cause: cause, Err: err}
			u.status(fmt.Sprintf("CRITICAL: rollback failed, manual intervention required: %v", rb))
			return rb
		}
		if err := copyTree(backupAssets, liveAssets); err != nil {
			rb := &RollbackError{Cause: cause, Err: err}
			u.status(fmt.Sprintf("CRITICAL: rollback failed, manual intervention required: %v", rb))
			return rb
		}
	}

	u.status("Rollback complete. Previous configuration restored.")
	return cause
}
