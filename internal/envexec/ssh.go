package envexec

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SSHLauncher runs command vectors on a remote POSIX host. The vector is
// re-quoted for the remote login shell, so build it with PosixPlatform.
type SSHLauncher struct {
	Host                        string
	Port                        string
	User                        string
	KeyPath                     string
	Passphrase                  []byte
	KnownHostsPath              string
	InsecureSkipHostKeyChecking bool
	Timeout                     time.Duration
}

func (l SSHLauncher) Launch(argv []string) (Process, error) {
	if len(argv) == 0 {
		return nil, spawnError("empty command vector")
	}

	client, err := l.dial()
	if err != nil {
		return nil, spawnError("ssh dial: %w", err)
	}

	session, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, spawnError("ssh session: %w", err)
	}

	reader, writer := io.Pipe()
	session.Stdout = writer
	session.Stderr = writer

	if err := session.Start(remoteCommandLine(argv)); err != nil {
		session.Close()
		client.Close()
		writer.Close()
		return nil, spawnError("%s: %w", argv[0], err)
	}

	return &sshProcess{
		client:  client,
		session: session,
		output:  reader,
		writer:  writer,
	}, nil
}

type sshProcess struct {
	client  *ssh.Client
	session *ssh.Session
	output  *io.PipeReader
	writer  *io.PipeWriter
}

func (p *sshProcess) Output() io.Reader {
	return p.output
}

func (p *sshProcess) Wait() (int, error) {
	err := p.session.Wait()
	// session.Wait returns after the output copies finished.
	p.writer.Close()
	p.session.Close()
	p.client.Close()
	if err == nil {
		return 0, nil
	}

	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitStatus(), nil
	}
	return -1, err
}

func remoteCommandLine(argv []string) string {
	var builder strings.Builder
	for i, arg := range argv {
		if i > 0 {
			builder.WriteByte(' ')
		}
		builder.WriteString(singleQuote(arg))
	}
	return builder.String()
}

func singleQuote(value string) string {
	if value == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(value, "'", `'"'"'`) + "'"
}

func (l SSHLauncher) dial() (*ssh.Client, error) {
	address, err := l.address()
	if err != nil {
		return nil, err
	}

	config, err := l.clientConfig()
	if err != nil {
		return nil, err
	}

	if l.Timeout <= 0 {
		return ssh.Dial("tcp", address, config)
	}

	conn, err := net.DialTimeout("tcp", address, l.Timeout)
	if err != nil {
		return nil, err
	}

	clientConn, chans, reqs, err := ssh.NewClientConn(conn, address, config)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return ssh.NewClient(clientConn, chans, reqs), nil
}

func (l SSHLauncher) address() (string, error) {
	host := strings.TrimSpace(l.Host)
	if host == "" {
		return "", fmt.Errorf("ssh host is required")
	}

	if l.Port != "" {
		return net.JoinHostPort(host, l.Port), nil
	}

	if _, _, err := net.SplitHostPort(host); err == nil {
		return host, nil
	}

	return net.JoinHostPort(host, "22"), nil
}

func (l SSHLauncher) clientConfig() (*ssh.ClientConfig, error) {
	if l.User == "" {
		return nil, fmt.Errorf("ssh user is required")
	}

	signer, err := l.signer()
	if err != nil {
		return nil, err
	}

	var hostKeyCallback ssh.HostKeyCallback
	if l.InsecureSkipHostKeyChecking {
		hostKeyCallback = ssh.InsecureIgnoreHostKey()
	} else {
		callback, err := l.knownHostsCallback()
		if err != nil {
			return nil, err
		}
		hostKeyCallback = callback
	}

	return &ssh.ClientConfig{
		User:            l.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         l.Timeout,
	}, nil
}

func (l SSHLauncher) signer() (ssh.Signer, error) {
	if l.KeyPath == "" {
		return nil, fmt.Errorf("ssh key path is required")
	}

	privateKey, err := os.ReadFile(l.KeyPath)
	if err != nil {
		return nil, err
	}

	if len(l.Passphrase) > 0 {
		return ssh.ParsePrivateKeyWithPassphrase(privateKey, l.Passphrase)
	}

	return ssh.ParsePrivateKey(privateKey)
}

func (l SSHLauncher) knownHostsCallback() (ssh.HostKeyCallback, error) {
	path := strings.TrimSpace(l.KnownHostsPath)
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("known hosts path not set and home dir unavailable")
		}
		path = filepath.Join(home, ".ssh", "known_hosts")
	}

	return knownhosts.New(path)
}
