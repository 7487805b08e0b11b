package usbmedia

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"kiosk-firmware/pkg/globals"

	"github.com/shirou/gopsutil/v3/disk"
)

// Mounter is the OS mount/unmount primitive. The engine treats it as opaque.
type Mounter interface {
	Mount(device, target string) error
	Unmount(target string) error
}

type execMounter struct{}

func (execMounter) Mount(device, target string) error {
	if output, err := exec.Command("sudo", "mount", device, target).CombinedOutput(); err != nil {
		return fmt.Errorf("mount %s: %w (output: %s)", device, err, strings.TrimSpace(string(output)))
	}
	return nil
}

func (execMounter) Unmount(target string) error {
	if output, err := exec.Command("sudo", "umount", target).CombinedOutput(); err != nil {
		return fmt.Errorf("umount %s: %w (output: %s)", target, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// Locator finds removable storage and update packages on it.
type Locator struct {
	MountBase  string
	SysBlock   string
	Mounter    Mounter
	ListMounts func() ([]disk.PartitionStat, error)
}

func New() *Locator {
	return &Locator{
		MountBase:  globals.MountBase,
		SysBlock:   "/sys/block",
		Mounter:    execMounter{},
		ListMounts: func() ([]disk.PartitionStat, error) { return disk.Partitions(true) },
	}
}

// Locate returns a mount path holding a removable partition. An already
// mounted removable partition wins; otherwise the first unmounted one is
// mounted under MountBase. Returns false when no removable partition can be
// made available.
func (l *Locator) Locate() (string, bool) {
	partitions, err := l.removablePartitions()
	if err != nil {
		log.Printf("Failed to enumerate block devices: %v", err)
		return "", false
	}
	if len(partitions) == 0 {
		return "", false
	}

	mounted, err := l.mountedSet()
	if err != nil {
		log.Printf("Failed to list mounted filesystems: %v", err)
		return "", false
	}

	for _, part := range partitions {
		if target, ok := mounted["/dev/"+part]; ok {
			return target, true
		}
	}

	// Nothing mounted yet; mount the first candidate.
	part := partitions[0]
	target := filepath.Join(l.MountBase, part)
	created := false
	if _, err := os.Stat(target); os.IsNotExist(err) {
		if err := os.MkdirAll(target, 0755); err != nil {
			log.Printf("Failed to create mount point %s: %v", target, err)
			return "", false
		}
		created = true
	}

	if err := l.Mounter.Mount("/dev/"+part, target); err != nil {
		log.Printf("Failed to mount removable partition: %v", err)
		if created {
			os.Remove(target)
		}
		return "", false
	}
	return target, true
}

// Unmount releases a mount path returned by Locate. Succeeds trivially when
// the path is not mounted. The mount directory is removed only when it lives
// under MountBase; failure to remove it is non-fatal.
func (l *Locator) Unmount(path string) bool {
	if path == "" {
		return true
	}
	mounted, err := l.mountedSet()
	if err != nil {
		log.Printf("Failed to list mounted filesystems: %v", err)
		return false
	}
	isMounted := false
	for _, target := range mounted {
		if target == path {
			isMounted = true
			break
		}
	}
	if !isMounted {
		return true
	}

	if err := l.Mounter.Unmount(path); err != nil {
		log.Printf("Failed to unmount %s: %v", path, err)
		return false
	}

	if strings.HasPrefix(path, l.MountBase+string(os.PathSeparator)) {
		if err := os.Remove(path); err != nil {
			log.Printf("Could not remove mount point %s: %v", path, err)
		}
	}
	return true
}

// removablePartitions lists partition names (e.g. sda1) of removable block
// devices, sorted for a deterministic mount order.
func (l *Locator) removablePartitions() ([]string, error) {
	devices, err := os.ReadDir(l.SysBlock)
	if err != nil {
		return nil, err
	}

	var parts []string
	for _, dev := range devices {
		flag, err := os.ReadFile(filepath.Join(l.SysBlock, dev.Name(), "removable"))
		if err != nil || strings.TrimSpace(string(flag)) != "1" {
			continue
		}
		children, err := os.ReadDir(filepath.Join(l.SysBlock, dev.Name()))
		if err != nil {
			continue
		}
		for _, child := range children {
			if child.IsDir() && strings.HasPrefix(child.Name(), dev.Name()) {
				parts = append(parts, child.Name())
			}
		}
	}
	sort.Strings(parts)
	return parts, nil
}

func (l *Locator) mountedSet() (map[string]string, error) {
	stats, err := l.ListMounts()
	if err != nil {
		return nil, err
	}
	mounted := make(map[string]string, len(stats))
	for _, st := range stats {
		mounted[st.Device] = st.Mountpoint
	}
	return mounted, nil
}
