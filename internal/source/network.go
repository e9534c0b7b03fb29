package source

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"strings"

	"github.com/hirochachacha/go-smb2"
)

// uncPath is a parsed \\server\share\path\to\file address.
type uncPath struct {
	Server string
	Share  string
	Path   string // share-relative, backslash separated
}

// parseUNC splits a UNC address into server, share and file path. It is
// called before any credential handling so a malformed address always
// surfaces as InvalidPath, never as an auth problem.
func parseUNC(op, addr string) (uncPath, error) {
	if !strings.HasPrefix(addr, `\\`) {
		return uncPath{}, invalidPathf(op, addr, "UNC path must start with \\\\")
	}

	parts := strings.Split(strings.Trim(addr, `\`), `\`)
	if len(parts) < 3 {
		return uncPath{}, invalidPathf(op, addr, "UNC path needs server, share and file segments")
	}

	return uncPath{
		Server: parts[0],
		Share:  parts[1],
		Path:   strings.Join(parts[2:], `\`),
	}, nil
}

// networkConnector fetches the spreadsheet from an SMB network share.
type networkConnector struct {
	cfg  SourceConfig
	opts Options
}

// Probe validates the address structurally and checks that credentials
// are configured. Connectivity itself is not exercised here; shares in
// the field flap too often for a probe to be meaningful.
func (c *networkConnector) Probe(ctx context.Context) (ProbeInfo, error) {
	if _, err := parseUNC("probe", c.cfg.Address); err != nil {
		return ProbeInfo{}, err
	}

	if c.cfg.Username == "" || c.cfg.Password == "" {
		return ProbeInfo{}, authFailed("probe", c.cfg.Address,
			fmt.Errorf("network credentials not configured"))
	}

	return ProbeInfo{Detail: fmt.Sprintf("network source configured: %s", c.cfg.Address)}, nil
}

// Fetch downloads the file over SMB. When the share cannot be reached
// and a local mirror is configured, the mirror substitutes for the
// share; that fallback exists for containerized deployments without
// routed access to the office network and is logged loudly.
func (c *networkConnector) Fetch(ctx context.Context) (string, error) {
	addr := c.cfg.Address

	unc, err := parseUNC("fetch", addr)
	if err != nil {
		return "", err
	}
	if c.cfg.Username == "" || c.cfg.Password == "" {
		return "", authFailed("fetch", addr, fmt.Errorf("network credentials not configured"))
	}

	path, err := c.fetchSMB(ctx, unc)
	if err == nil {
		return path, nil
	}

	if IsKind(err, KindTransport) && c.opts.LocalMirror != "" {
		log.Printf("source: SMB access to %s failed (%v); substituting local mirror %s",
			addr, err, c.opts.LocalMirror)
		return c.fetchMirror(addr)
	}
	return "", err
}

func (c *networkConnector) fetchSMB(ctx context.Context, unc uncPath) (string, error) {
	addr := c.cfg.Address

	conn, err := net.DialTimeout("tcp", net.JoinHostPort(unc.Server, "445"), c.opts.timeout())
	if err != nil {
		return "", transport("fetch", addr, err)
	}
	defer conn.Close()

	dialer := &smb2.Dialer{
		Initiator: &smb2.NTLMInitiator{
			User:     c.cfg.Username,
			Password: c.cfg.Password,
		},
	}

	session, err := dialer.DialContext(ctx, conn)
	if err != nil {
		return "", authFailed("fetch", addr, err)
	}
	defer session.Logoff()

	share, err := session.Mount(unc.Share)
	if err != nil {
		return "", notFound("fetch", addr, err)
	}
	defer share.Umount()

	f, err := share.Open(unc.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", notFound("fetch", addr, err)
		}
		return "", transport("fetch", addr, err)
	}
	defer f.Close()

	path, err := copyToScratch(f)
	if err != nil {
		return "", transport("fetch", addr, err)
	}
	return path, nil
}

func (c *networkConnector) fetchMirror(addr string) (string, error) {
	src, err := os.Open(c.opts.LocalMirror)
	if err != nil {
		return "", transport("fetch", addr, fmt.Errorf("local mirror unavailable: %w", err))
	}
	defer src.Close()

	path, err := copyToScratch(src)
	if err != nil {
		return "", transport("fetch", addr, err)
	}
	return path, nil
}
