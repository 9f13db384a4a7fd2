// Package health runs pre-flight checks before expensive or disk-hungry
// operations such as a bulk backfill or a database backup.
package health

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/disk"
)

// DiskSpaceReport is the free/total space on the volume backing a path.
type DiskSpaceReport struct {
	Path        string
	TotalBytes  uint64
	FreeBytes   uint64
	UsedPercent float64
}

// CheckDiskSpace inspects the volume backing dataDir and errors if free
// space is below minFreeBytes. Run before a bulk backfill or backup so a
// full disk fails fast with a clear message instead of mid-write.
func CheckDiskSpace(dataDir string, minFreeBytes uint64) (DiskSpaceReport, error) {
	usage, err := disk.Usage(dataDir)
	if err != nil {
		return DiskSpaceReport{}, fmt.Errorf("stat disk usage for %s: %w", dataDir, err)
	}

	report := DiskSpaceReport{
		Path:        dataDir,
		TotalBytes:  usage.Total,
		FreeBytes:   usage.Free,
		UsedPercent: usage.UsedPercent,
	}

	if usage.Free < minFreeBytes {
		return report, fmt.Errorf("insufficient disk space on %s: %d bytes free, need at least %d",
			dataDir, usage.Free, minFreeBytes)
	}
	return report, nil
}
