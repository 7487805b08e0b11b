package globals

import "path/filepath"

// FirmwareVersion is set at build time via -ldflags
var FirmwareVersion = "dev"

// Application root on the device
var AppRoot = "/opt/kiosk"

// Engine directory under AppRoot (holds the live config and asset sets)
var EngineDirName = "engine"

// Live config
var ConfigPath = filepath.Join(AppRoot, EngineDirName, "config.json")

// Live asset sets; the prefix is what rewritten config paths start with,
// relative to AppRoot
var AssetDirName = "image_sets"
var LiveAssetPrefix = EngineDirName + "/" + AssetDirName

// Update working directories, siblings of the engine dir
var StagingDirName = ".update_staging"
var BackupDirName = ".update_backup"

// Removable media
var MountBase = "/mnt/kiosk-usb"
var PackageDirName = "kiosk_update_package"
var PackageConfigName = "config.json"
var PackageAssetDir = "assets"

// Firmware data
var FirmwareDataDir = filepath.Join(AppRoot, ".firmware-data")

// Logs
var LogsPath = filepath.Join(FirmwareDataDir, "logs.json")

// Local diagnostics endpoint
var StatusAddr = "127.0.0.1:8720"
