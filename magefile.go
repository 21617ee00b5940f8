//go:build mage
// +build mage

package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/magefile/mage/mg" // mg contains helpful utility functions, like Deps
	"github.com/magefile/mage/sh"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

var Default = Build

type Pi mg.Namespace

const (
	buildDir   = "bin"
	libexecDir = "/usr/libexec/apptop"
	serverBin  = "apptop-server"
)

// output name -> package
var binaries = map[string]string{
	serverBin:          "./cmd/server",
	"apptop":           "./cmd/cli",
	"apptop-processes": "./cmd/apptop-processes",
	"apptop-kill":      "./cmd/apptop-kill",
}

// installed into libexecDir, found there by the server and the CLI
var helpers = []string{"apptop-processes", "apptop-kill"}

// Regenerates the Go code for internal/web/*.templ
func Generate() error {
	return sh.RunV("templ", "generate", "-path", "internal/web")
}

// Builds every binary for the current platform into bin/
func Build() error {
	mg.Deps(Generate)
	return build(nil, buildDir)
}

// Runs all tests
func Test() error {
	mg.Deps(Generate)
	return sh.RunV("go", "test", "./...")
}

// Installs the privileged helpers into /usr/libexec/apptop (run as root)
func Install() error {
	mg.Deps(Build)
	if err := sh.Run("install", "-d", libexecDir); err != nil {
		return fmt.Errorf("creating %s: %w", libexecDir, err)
	}
	for _, name := range helpers {
		if err := sh.Run("install", "-m", "0755", filepath.Join(buildDir, name), libexecDir); err != nil {
			return fmt.Errorf("installing %s: %w", name, err)
		}
	}
	return nil
}

// Removes build output
func Clean() {
	fmt.Println("Cleaning...")
	os.RemoveAll(buildDir)
}

func build(env map[string]string, dir string) error {
	names := make([]string, 0, len(binaries))
	for name := range binaries {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("Building %s...\n", name)
		if err := sh.RunWithV(env, "go", "build", "-o", filepath.Join(dir, name), binaries[name]); err != nil {
			return err
		}
	}
	return nil
}

// Cross-compiles every binary for the Raspberry Pi (linux/arm64)
func (Pi) Build() error {
	return build(map[string]string{"GOOS": "linux", "GOARCH": "arm64"}, piDir)
}

var piDir = filepath.Join(buildDir, "pi")

// Copies every binary to ~/apptop on the Pi over SSH.
// Assumes your key is loaded in ssh-agent.
func (Pi) Deploy(host, username string) error {
	mg.Deps(Pi.Build)
	r, err := dialRemote(username, host)
	if err != nil {
		return err
	}
	defer r.Close()

	dest := remoteDir(username)
	if err := r.run("mkdir -p " + dest); err != nil {
		return err
	}
	for name := range binaries {
		fmt.Printf("Uploading %s to %s:%s\n", name, host, dest)
		if err := r.upload(filepath.Join(piDir, name), dest+"/"+name); err != nil {
			return err
		}
	}
	return nil
}

// Deploys and runs the server on the Pi. Ctrl-C stops it, a second Ctrl-C kills it.
func (Pi) Start(host, username string) error {
	mg.Deps(mg.F(Pi.Deploy, host, username))
	r, err := dialRemote(username, host)
	if err != nil {
		return err
	}
	defer r.Close()

	session, err := r.client.NewSession()
	if err != nil {
		return fmt.Errorf("opening session: %w", err)
	}
	defer session.Close()
	session.Stdout = os.Stdout
	session.Stderr = os.Stderr

	dest := remoteDir(username)
	// no root on the Pi: the helpers run from the deploy dir
	cmd := fmt.Sprintf("APPTOP_LIBEXEC_DIR=%s %s/%s", dest, dest, serverBin)
	if err := session.Start(cmd); err != nil {
		return fmt.Errorf("starting %s: %w", serverBin, err)
	}

	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		<-sigs
		session.Signal(ssh.SIGTERM)
		<-sigs
		fmt.Println("Force killing server...")
		session.Signal(ssh.SIGKILL)
		session.Close()
	}()

	err = session.Wait()
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		switch exitErr.ExitStatus() {
		case 130, 143:
			return nil
		}
		return fmt.Errorf("%s exited with status %d", serverBin, exitErr.ExitStatus())
	}
	return err
}

func remoteDir(username string) string { return "/home/" + username + "/apptop" }

type remote struct {
	client *ssh.Client
}

func dialRemote(user, host string) (*remote, error) {
	var auth []ssh.AuthMethod
	if conn, err := net.Dial("unix", os.Getenv("SSH_AUTH_SOCK")); err == nil {
		if signers, err := agent.NewClient(conn).Signers(); err == nil {
			auth = append(auth, ssh.PublicKeys(withSHA2(signers)...))
		}
	}
	if len(auth) == 0 {
		fmt.Println("No SSH keys found in the agent")
	}

	client, err := ssh.Dial("tcp", net.JoinHostPort(host, "22"), &ssh.ClientConfig{
		User:            user,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // Dev only.
	})
	if err != nil {
		return nil, fmt.Errorf("dialing %s@%s: %w", user, host, err)
	}
	return &remote{client: client}, nil
}

func (r *remote) Close() error { return r.client.Close() }

func (r *remote) run(cmd string) error {
	session, err := r.client.NewSession()
	if err != nil {
		return err
	}
	defer session.Close()
	if out, err := session.CombinedOutput(cmd); err != nil {
		return fmt.Errorf("%s: %w: %s", cmd, err, out)
	}
	return nil
}

// upload streams a local file into path and marks it executable.
func (r *remote) upload(local, path string) error {
	f, err := os.Open(local)
	if err != nil {
		return err
	}
	defer f.Close()

	session, err := r.client.NewSession()
	if err != nil {
		return err
	}
	defer session.Close()
	session.Stdin = f
	if out, err := session.CombinedOutput(fmt.Sprintf("cat > %s.new && chmod 0755 %s.new && mv %s.new %s", path, path, path, path)); err != nil {
		return fmt.Errorf("uploading %s: %w: %s", local, err, out)
	}
	return nil
}

// withSHA2 makes RSA agent keys sign with rsa-sha2-*; newer sshd rejects ssh-rsa.
func withSHA2(signers []ssh.Signer) []ssh.Signer {
	out := make([]ssh.Signer, 0, len(signers))
	for _, s := range signers {
		as, ok := s.(ssh.AlgorithmSigner)
		if !ok || s.PublicKey().Type() != ssh.KeyAlgoRSA {
			out = append(out, s)
			continue
		}
		ms, err := ssh.NewSignerWithAlgorithms(as, []string{ssh.KeyAlgoRSASHA256, ssh.KeyAlgoRSASHA512, ssh.KeyAlgoRSA})
		if err != nil {
			out = append(out, s)
			continue
		}
		out = append(out, ms)
	}
	return out
}
