package source

import (
	"context"
	"fmt"
	"os"

	"github.com/xuri/excelize/v2"
)

// localConnector reads the spreadsheet straight from the filesystem.
type localConnector struct {
	cfg SourceConfig
}

// Probe checks existence, that the path is a regular file, and that the
// workbook actually opens with the configured sheet present. Corrupt
// exports are caught here instead of midway through an import.
func (c *localConnector) Probe(ctx context.Context) (ProbeInfo, error) {
	addr := c.cfg.Address

	info, err := os.Stat(addr)
	if os.IsNotExist(err) {
		return ProbeInfo{}, notFound("probe", addr, err)
	}
	if err != nil {
		return ProbeInfo{}, transport("probe", addr, err)
	}
	if !info.Mode().IsRegular() {
		return ProbeInfo{}, invalidPathf("probe", addr, "not a regular file")
	}

	wb, err := excelize.OpenFile(addr)
	if err != nil {
		return ProbeInfo{}, invalidPathf("probe", addr, "not a readable workbook: %v", err)
	}
	defer wb.Close()

	if idx, err := wb.GetSheetIndex(c.cfg.SheetName); err != nil || idx < 0 {
		return ProbeInfo{}, invalidPathf("probe", addr, "sheet %q not present", c.cfg.SheetName)
	}

	return ProbeInfo{
		Detail: fmt.Sprintf("file found: %s (%d bytes)", info.Name(), info.Size()),
		Size:   info.Size(),
	}, nil
}

// Fetch copies the file byte for byte into a scratch file.
func (c *localConnector) Fetch(ctx context.Context) (string, error) {
	addr := c.cfg.Address

	src, err := os.Open(addr)
	if os.IsNotExist(err) {
		return "", notFound("fetch", addr, err)
	}
	if err != nil {
		return "", transport("fetch", addr, err)
	}
	defer src.Close()

	path, err := copyToScratch(src)
	if err != nil {
		return "", transport("fetch", addr, err)
	}
	return path, nil
}
