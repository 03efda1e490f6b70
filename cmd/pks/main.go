// Command pks is the bootstrap CLI for the identity manager: it generates a
// new device identity, optionally associates it with a sigchain, and
// persists it to an encrypted envelope on disk. Its command structure is
// grounded on the teacher package's xmssmt/main.go (a urfave/cli app with
// one subcommand per action); the password prompt is grounded on the
// golang.org/x/term usage shown across the wider example corpus.
package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nightlyone/lockfile"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/amosson/public-keys/client"
	"github.com/amosson/public-keys/errs"
	"github.com/amosson/public-keys/logging"
)

func defaultClientPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".pks", "client"), nil
}

func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

// cmdBootstrap loads the client envelope at path, or generates and stores a
// fresh one if none exists, per spec.md §6's bootstrap contract. Exit
// conditions propagate cryptographic failures unchanged. The load-or-generate
// decision and any resulting write are guarded by an advisory lockfile next
// to the envelope, grounded on the teacher package's fsContainer.flock
// (container.go), so two concurrent bootstrap invocations can't race each
// other into generating two different identities at the same path.
func cmdBootstrap(c *cli.Context) error {
	path, err := resolveClientPath(c.Args().First())
	if err != nil {
		return err
	}

	lockPath, err := filepath.Abs(path + ".lock")
	if err != nil {
		return errs.Wrap(errs.NotFound, err, "failed to resolve bootstrap lock path")
	}
	lock, err := lockfile.New(lockPath)
	if err != nil {
		return errs.Wrap(errs.NotFound, err, "failed to construct bootstrap lockfile %s", lockPath)
	}
	if err := lock.TryLock(); err != nil {
		return errs.Wrap(errs.NotFound, err, "another pks bootstrap already holds %s", lockPath)
	}
	defer lock.Unlock()

	log := logging.NewLogrus(logrus.StandardLogger())

	password, err := readPassword("client password: ")
	if err != nil {
		return err
	}

	cl := client.New()
	cl.SetLogger(log)

	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := cl.Load(password, bufio.NewReader(f)); err != nil {
			return err
		}
		fmt.Printf("loaded client %s (%s)\n", cl.Name, cl.ID)
	case os.IsNotExist(err):
		name, err := promptLine("device name: ")
		if err != nil {
			return err
		}
		if err := cl.Generate(name, ""); err != nil {
			return err
		}
		if err := persist(cl, password, path); err != nil {
			return err
		}
		fmt.Printf("generated client %s (%s)\n", cl.Name, cl.ID)
	default:
		return errs.Wrap(errs.NotFound, err, "failed to open client envelope %s", path)
	}

	return nil
}

// cmdGenerate creates a brand-new client identity, optionally associating
// it with a sigchain store, and writes it to the client envelope path.
func cmdGenerate(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		return cli.Exit("generate requires a device name argument", 1)
	}

	path, err := resolveClientPath(c.String("client"))
	if err != nil {
		return err
	}

	password, err := readPassword("client password: ")
	if err != nil {
		return err
	}

	cl := client.New()
	cl.SetLogger(logging.NewLogrus(logrus.StandardLogger()))
	if err := cl.Generate(name, c.String("sigchain")); err != nil {
		return err
	}
	if err := persist(cl, password, path); err != nil {
		return err
	}

	fmt.Printf("generated client %s (%s)\n", cl.Name, cl.ID)
	return nil
}

func persist(cl *client.Client, password, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errs.Wrap(errs.NotFound, err, "failed to create client directory")
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return errs.Wrap(errs.NotFound, err, "failed to open client envelope %s for writing", path)
	}
	defer f.Close()
	return cl.Store(password, f)
}

func resolveClientPath(arg string) (string, error) {
	if arg == "" {
		return defaultClientPath()
	}
	info, err := os.Stat(arg)
	if err == nil && info.IsDir() {
		return filepath.Join(arg, "client"), nil
	}
	return arg, nil
}

func promptLine(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return trimNewline(line), nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func main() {
	app := &cli.App{
		Name:  "pks",
		Usage: "manage a device sigchain identity",
		Commands: []*cli.Command{
			{
				Name:      "bootstrap",
				Usage:     "load the client envelope, generating one if it does not exist",
				ArgsUsage: "[dir]",
				Action:    cmdBootstrap,
			},
			{
				Name:      "generate",
				Usage:     "generate a new device identity",
				ArgsUsage: "<name>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "sigchain", Usage: "sigchain store locator to associate, e.g. chain.jsonl@localhost"},
					&cli.StringFlag{Name: "client", Usage: "client envelope path (default ~/.pks/client)"},
				},
				Action: cmdGenerate,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
