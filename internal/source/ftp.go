package source

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"os"
	"strings"

	"github.com/jlaffaye/ftp"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// ftpRef is a parsed (s)ftp://host[:port]/path address.
type ftpRef struct {
	Secure bool
	Host   string // host:port
	Path   string
}

func parseFTPAddress(op, addr string) (ftpRef, error) {
	var rest string
	var ref ftpRef

	switch {
	case strings.HasPrefix(addr, "sftp://"):
		ref.Secure = true
		rest = strings.TrimPrefix(addr, "sftp://")
	case strings.HasPrefix(addr, "ftp://"):
		rest = strings.TrimPrefix(addr, "ftp://")
	default:
		return ftpRef{}, invalidPathf(op, addr, "address must start with ftp:// or sftp://")
	}

	host, path, ok := strings.Cut(rest, "/")
	if !ok || host == "" || path == "" {
		return ftpRef{}, invalidPathf(op, addr, "address must name a host and a file path")
	}

	if _, _, err := net.SplitHostPort(host); err != nil {
		if ref.Secure {
			host = net.JoinHostPort(host, "22")
		} else {
			host = net.JoinHostPort(host, "21")
		}
	}

	ref.Host = host
	ref.Path = path
	return ref, nil
}

// ftpConnector fetches the spreadsheet over FTP or SFTP; the address
// scheme selects the protocol.
type ftpConnector struct {
	cfg  SourceConfig
	opts Options
}

// Probe stats the remote file without transferring it.
func (c *ftpConnector) Probe(ctx context.Context) (ProbeInfo, error) {
	ref, err := parseFTPAddress("probe", c.cfg.Address)
	if err != nil {
		return ProbeInfo{}, err
	}

	if ref.Secure {
		return c.probeSFTP(ref)
	}
	return c.probeFTP(ref)
}

// Fetch downloads the remote file into a scratch file.
func (c *ftpConnector) Fetch(ctx context.Context) (string, error) {
	ref, err := parseFTPAddress("fetch", c.cfg.Address)
	if err != nil {
		return "", err
	}

	if ref.Secure {
		return c.fetchSFTP(ref)
	}
	return c.fetchFTP(ref)
}

func (c *ftpConnector) dialSFTP(op string, ref ftpRef) (*ssh.Client, *sftp.Client, error) {
	addr := c.cfg.Address

	sshCfg := &ssh.ClientConfig{
		User:            c.cfg.Username,
		Auth:            []ssh.AuthMethod{ssh.Password(c.cfg.Password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         c.opts.timeout(),
	}

	conn, err := ssh.Dial("tcp", ref.Host, sshCfg)
	if err != nil {
		if strings.Contains(err.Error(), "unable to authenticate") {
			return nil, nil, authFailed(op, addr, err)
		}
		return nil, nil, transport(op, addr, err)
	}

	client, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, nil, transport(op, addr, err)
	}
	return conn, client, nil
}

func (c *ftpConnector) probeSFTP(ref ftpRef) (ProbeInfo, error) {
	conn, client, err := c.dialSFTP("probe", ref)
	if err != nil {
		return ProbeInfo{}, err
	}
	defer conn.Close()
	defer client.Close()

	stat, err := client.Stat(ref.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ProbeInfo{}, notFound("probe", c.cfg.Address, err)
		}
		return ProbeInfo{}, transport("probe", c.cfg.Address, err)
	}

	return ProbeInfo{
		Detail: fmt.Sprintf("SFTP file accessible: %s", ref.Path),
		Size:   stat.Size(),
	}, nil
}

func (c *ftpConnector) fetchSFTP(ref ftpRef) (string, error) {
	conn, client, err := c.dialSFTP("fetch", ref)
	if err != nil {
		return "", err
	}
	defer conn.Close()
	defer client.Close()

	f, err := client.Open(ref.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", notFound("fetch", c.cfg.Address, err)
		}
		return "", transport("fetch", c.cfg.Address, err)
	}
	defer f.Close()

	path, err := copyToScratch(f)
	if err != nil {
		return "", transport("fetch", c.cfg.Address, err)
	}
	return path, nil
}

func (c *ftpConnector) dialFTP(op string, ref ftpRef) (*ftp.ServerConn, error) {
	addr := c.cfg.Address

	conn, err := ftp.Dial(ref.Host, ftp.DialWithTimeout(c.opts.timeout()))
	if err != nil {
		return nil, transport(op, addr, err)
	}

	if err := conn.Login(c.cfg.Username, c.cfg.Password); err != nil {
		conn.Quit()
		return nil, classifyFTPError(op, addr, err)
	}
	return conn, nil
}

func (c *ftpConnector) probeFTP(ref ftpRef) (ProbeInfo, error) {
	conn, err := c.dialFTP("probe", ref)
	if err != nil {
		return ProbeInfo{}, err
	}
	defer conn.Quit()

	size, err := conn.FileSize(ref.Path)
	if err != nil {
		return ProbeInfo{}, classifyFTPError("probe", c.cfg.Address, err)
	}

	return ProbeInfo{
		Detail: fmt.Sprintf("FTP file accessible: %s", ref.Path),
		Size:   size,
	}, nil
}

func (c *ftpConnector) fetchFTP(ref ftpRef) (string, error) {
	conn, err := c.dialFTP("fetch", ref)
	if err != nil {
		return "", err
	}
	defer conn.Quit()

	resp, err := conn.Retr(ref.Path)
	if err != nil {
		return "", classifyFTPError("fetch", c.cfg.Address, err)
	}
	defer resp.Close()

	path, err := copyToScratch(resp)
	if err != nil {
		return "", transport("fetch", c.cfg.Address, err)
	}
	return path, nil
}

// classifyFTPError maps FTP reply codes onto the connector taxonomy:
// 530 is a login rejection, 550 an absent file.
func classifyFTPError(op, addr string, err error) *Error {
	var proto *textproto.Error
	if errors.As(err, &proto) {
		switch proto.Code {
		case ftp.StatusNotLoggedIn:
			return authFailed(op, addr, err)
		case ftp.StatusFileUnavailable:
			return notFound(op, addr, err)
		}
	}
	return transport(op, addr, err)
}
