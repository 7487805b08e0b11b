package usbmedia

import (
	"os"
	"path/filepath"

	"kiosk-firmware/pkg/globals"
)

// FindPackage looks for the fixed package directory directly under the mount
// root. A well-formed package holds both a config file and an asset
// subdirectory; anything else is "not found", never an error.
func (l *Locator) FindPackage(mountPath string) (string, bool) {
	if mountPath == "" {
		return "", false
	}
	if info, err := os.Stat(mountPath); err != nil || !info.IsDir() {
		return "", false
	}

	pkgPath := filepath.Join(mountPath, globals.PackageDirName)
	if info, err := os.Stat(pkgPath); err != nil || !info.IsDir() {
		return "", false
	}
	if info, err := os.Stat(filepath.Join(pkgPath, globals.PackageConfigName)); err != nil || info.IsDir() {
		return "", false
	}
	if info, err := os.Stat(filepath.Join(pkgPath, globals.PackageAssetDir)); err != nil || !info.IsDir() {
		return "", false
	}
	return pkgPath, true
}
