// Package source fetches the usage spreadsheet from one of several
// transport backends behind a single Connector interface.
package source

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"
)

// Transport kinds accepted in SourceConfig.ImportType.
const (
	KindLocal       = "local"
	KindNetwork     = "network"
	KindObjectStore = "objectstore"
	KindFTP         = "ftp"
)

const scratchPattern = "fleetcare-*.xlsx"

// ProbeInfo describes the outcome of a successful reachability check.
type ProbeInfo struct {
	Detail string `json:"detail"`
	Size   int64  `json:"size,omitempty"`
}

// Connector is implemented by each transport variant.
//
// Probe verifies reachability/existence without downloading the full
// payload where the transport allows a cheap check. Fetch materializes
// the remote file into a uniquely named local scratch file and returns
// its path; the caller owns cleanup via Discard on every exit path.
type Connector interface {
	Probe(ctx context.Context) (ProbeInfo, error)
	Fetch(ctx context.Context) (string, error)
}

// Options carries connector behavior that is deployment configuration
// rather than per-source settings.
type Options struct {
	// Timeout bounds every network dial and transfer.
	Timeout time.Duration
	// LocalMirror optionally names a local copy of the network-share
	// spreadsheet used when direct SMB access is unavailable. This is a
	// deployment-environment affordance, not general behavior.
	LocalMirror string
}

func (o Options) timeout() time.Duration {
	if o.Timeout <= 0 {
		return 30 * time.Second
	}
	return o.Timeout
}

// New selects the connector variant for cfg. The password in cfg must
// already be decrypted by the caller.
func New(cfg SourceConfig, opts Options) (Connector, error) {
	switch cfg.ImportType {
	case KindLocal:
		return &localConnector{cfg: cfg}, nil
	case KindNetwork:
		return &networkConnector{cfg: cfg, opts: opts}, nil
	case KindObjectStore:
		return &objectStoreConnector{cfg: cfg, opts: opts}, nil
	case KindFTP:
		return &ftpConnector{cfg: cfg, opts: opts}, nil
	default:
		return nil, fmt.Errorf("unsupported import type %q", cfg.ImportType)
	}
}

// newScratch creates the scratch file a fetch writes into.
func newScratch() (*os.File, error) {
	f, err := os.CreateTemp("", scratchPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch file: %w", err)
	}
	return f, nil
}

// Discard removes a scratch file produced by Fetch. Safe to call with
// an empty path.
func Discard(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("source: failed to remove scratch file %s: %v", path, err)
	}
}

// copyToScratch drains r into a fresh scratch file and returns its path.
// The scratch file is removed again if the copy fails.
func copyToScratch(r io.Reader) (string, error) {
	f, err := newScratch()
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		Discard(f.Name())
		return "", fmt.Errorf("failed to write scratch file: %w", err)
	}
	if err := f.Close(); err != nil {
		Discard(f.Name())
		return "", fmt.Errorf("failed to close scratch file: %w", err)
	}
	return f.Name(), nil
}
