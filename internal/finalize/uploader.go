package finalize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/celestiaorg/docconv/config"
	"github.com/celestiaorg/docconv/internal/logger"
)

// NewUploader builds the uploader selected by cfg, or nil when none is configured
func NewUploader(cfg config.UploadConfig) (Uploader, error) {
	switch cfg.Type {
	case config.UploadNone:
		return nil, nil
	case config.UploadDir:
		return NewDirUploader(cfg.Dir, cfg.BaseURL), nil
	case config.UploadSFTP:
		return NewSFTPUploader(cfg.SFTP)
	default:
		return nil, fmt.Errorf("unknown upload type %q", cfg.Type)
	}
}

// DirUploader copies archives into a mounted durable directory
type DirUploader struct {
	dir     string
	baseURL string
}

var _ Uploader = &DirUploader{}

// NewDirUploader creates a DirUploader
func NewDirUploader(dir, baseURL string) *DirUploader {
	return &DirUploader{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}
}

// Upload implements Uploader
func (u *DirUploader) Upload(ctx context.Context, localPath, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(u.dir, 0o755); err != nil {
		return "", err
	}
	dst := filepath.Join(u.dir, name)
	if err := copyFile(localPath, dst); err != nil {
		return "", err
	}
	if u.baseURL == "" {
		return "file://" + filepath.ToSlash(dst), nil
	}
	return u.baseURL + "/" + name, nil
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = out.Close()
			_ = os.Remove(tmp)
		}
	}()
	if _, err = io.Copy(out, in); err != nil {
		return err
	}
	if err = out.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, dst)
}

const sftpDialTimeout = 15 * time.Second

// SFTPUploader stores archives on an SFTP server
type SFTPUploader struct {
	address   string
	remoteDir string
	baseURL   string
	config    *ssh.ClientConfig
}

var _ Uploader = &SFTPUploader{}

// NewSFTPUploader creates an SFTPUploader. Host keys are checked against
// cfg.KnownHosts when set.
func NewSFTPUploader(cfg config.SFTPConfig) (*SFTPUploader, error) {
	hostKeys := ssh.InsecureIgnoreHostKey() //nolint:gosec // opt-in through known_hosts
	if cfg.KnownHosts != "" {
		cb, err := knownhosts.New(cfg.KnownHosts)
		if err != nil {
			return nil, fmt.Errorf("failed to load known hosts: %w", err)
		}
		hostKeys = cb
	} else {
		logger.Warn("SFTP host key verification disabled, set storage.upload.sftp.known_hosts to enable it")
	}

	return &SFTPUploader{
		address:   cfg.Address,
		remoteDir: cfg.RemoteDir,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		config: &ssh.ClientConfig{
			User:            cfg.User,
			Auth:            []ssh.AuthMethod{ssh.Password(cfg.Password)},
			HostKeyCallback: hostKeys,
			Timeout:         sftpDialTimeout,
		},
	}, nil
}

// Upload implements Uploader
func (u *SFTPUploader) Upload(ctx context.Context, localPath, name string) (string, error) {
	dialer := net.Dialer{Timeout: u.config.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", u.address)
	if err != nil {
		return "", fmt.Errorf("failed to dial %s: %w", u.address, err)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, u.address, u.config)
	if err != nil {
		_ = conn.Close()
		return "", fmt.Errorf("ssh handshake failed: %w", err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)
	defer client.Close()

	// unblock the transfer when ctx ends
	stop := context.AfterFunc(ctx, func() { _ = client.Close() })
	defer stop()

	sc, err := sftp.NewClient(client)
	if err != nil {
		return "", fmt.Errorf("failed to start sftp: %w", err)
	}
	defer sc.Close()

	if err := sc.MkdirAll(u.remoteDir); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", u.remoteDir, err)
	}

	remote := path.Join(u.remoteDir, name)
	if err := u.put(sc, localPath, remote+".part"); err != nil {
		return "", errors.Join(err, ctx.Err())
	}
	_ = sc.Remove(remote)
	if err := sc.Rename(remote+".part", remote); err != nil {
		return "", fmt.Errorf("failed to rename %s: %w", remote, err)
	}

	if u.baseURL == "" {
		return "sftp://" + u.address + remote, nil
	}
	return u.baseURL + "/" + name, nil
}

func (u *SFTPUploader) put(sc *sftp.Client, localPath, remote string) error {
	in, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := sc.Create(remote)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", remote, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to write %s: %w", remote, err)
	}
	return out.Close()
}
