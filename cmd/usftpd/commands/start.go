package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	sftpd "github.com/kjellberg/usftpd"
	"github.com/kjellberg/usftpd/internal/config"
	"github.com/kjellberg/usftpd/internal/sshutil"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh"
)

var foreground bool

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the SFTP server",
	Long: `Start the SFTP server using the configuration read from the
environment (see usftpd --help). The server runs in the foreground and
stops on SIGINT/SIGTERM.`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVarP(&foreground, "foreground", "f", true, "run in the foreground")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	log := logrus.StandardLogger()
	sLog := sftpd.NewLogrusLogger(log)

	fs, err := sftpd.NewDirFS(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("opening data dir %q: %w", cfg.DataDir, err)
	}

	hostKey, err := sshutil.LoadOrCreateHostKey(cfg.ConfigDir)
	if err != nil {
		return fmt.Errorf("loading host key: %w", err)
	}

	serverConfig := ssh.ServerConfig{
		PasswordCallback: sshutil.PasswordCallback(),
	}
	serverConfig.AddHostKey(hostKey)

	driver := &singleTreeDriver{
		config: &sftpd.Config{
			ServerConfig: serverConfig,
			HostPort:     cfg.HostPort,
			Log:          sLog,
		},
		fs: fs,
	}

	srv := sftpd.NewSftpServer(driver)

	done := make(chan error, 1)
	go func() { done <- srv.RunServer() }()

	if err := srv.BlockTillReady(); err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.HostPort, err)
	}
	log.WithField("addr", cfg.HostPort).Info("usftpd listening")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		log.Info("shutdown signal received")
		return srv.Close()
	case err := <-done:
		return err
	}
}

// singleTreeDriver is the simplest possible SftpDriver: every
// authenticated connection is handed the same FileSystem, with no
// per-user jailing beyond what DirFS already enforces.
type singleTreeDriver struct {
	config *sftpd.Config
	fs     sftpd.FileSystem
}

func (d *singleTreeDriver) GetConfig() *sftpd.Config { return d.config }

func (d *singleTreeDriver) GetFileSystem(sc *ssh.ServerConn) (sftpd.FileSystem, error) {
	return d.fs, nil
}

func (d *singleTreeDriver) Close() {}
