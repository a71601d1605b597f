// Command kernel boots the scheduler, process table, and boot filesystem
// and runs a single command line to completion, then exits with that
// process's exit code as its own status, the way a shell reports $? for
// a foreground job.
package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"webos/pkg/kernel"
)

var (
	schedFlag   string
	configFlag  string
	binDirFlag  string
	diskRoot    string
	nofileLimit uint64
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "kernel",
	Short: "A teaching kernel for process and thread scheduling",
	Long: `kernel boots a scheduler, process table, and in-memory filesystem,
then runs a single command line as its first process, the way Pintos's
pintos run "cmd args..." does for a test program.`,
}

var runCmd = &cobra.Command{
	Use:   "run <cmdline>",
	Short: "Boot the kernel and run a command line as its first process",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRun,
}

func main() {
	rootCmd.AddCommand(runCmd)
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("kernel: %v", err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&schedFlag, "sched", "",
		"scheduler policy: fifo, prio, fair, or mlfqs (overrides --config)")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "",
		"path to a YAML boot configuration file")
	rootCmd.PersistentFlags().StringVar(&binDirFlag, "bindir", "",
		"filesystem path program names resolve against (overrides --config)")
	rootCmd.PersistentFlags().StringVar(&diskRoot, "disk-root", "",
		"real on-disk directory backing the boot filesystem's lower layer")
	rootCmd.PersistentFlags().Uint64Var(&nofileLimit, "nofile-limit", 0,
		"soft RLIMIT_NOFILE to request at boot; 0 leaves the host's limit untouched")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"emit structured boot and process-exit logs instead of running silently")
}

// loadConfig assembles the boot configuration from, in ascending
// precedence, DefaultConfig, --config's file, and the individual flags
// WEBOS_SCHED/--sched, --bindir, --disk-root, and --nofile-limit, the
// same env-then-flag-then-explicit-override layering the teacher's
// webos-server applies to WEBOS_ADDR/WEBOS_STATIC/WEBOS_TLS.
func loadConfig() (kernel.Config, error) {
	cfg := kernel.DefaultConfig()
	if configFlag != "" {
		var err error
		cfg, err = kernel.LoadConfig(configFlag)
		if err != nil {
			return kernel.Config{}, fmt.Errorf("loading %s: %w", configFlag, err)
		}
	}

	if envSched := os.Getenv("WEBOS_SCHED"); envSched != "" && schedFlag == "" {
		schedFlag = envSched
	}

	if schedFlag != "" {
		cfg.Scheduler = schedFlag
	}
	if binDirFlag != "" {
		cfg.BinDir = binDirFlag
	}
	if diskRoot != "" {
		cfg.DiskRoot = diskRoot
	}
	if nofileLimit != 0 {
		cfg.NoFileLimit = nofileLimit
	}
	return cfg, nil
}

func newLogger() (*zap.Logger, error) {
	if !verbose {
		return zap.NewNop(), nil
	}
	return zap.NewDevelopment()
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := newLogger()
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	k, err := kernel.Boot(cfg, log)
	if err != nil {
		return fmt.Errorf("booting kernel: %w", err)
	}
	defer k.Shutdown() //nolint:errcheck

	cmdline := strings.Join(args, " ")
	p, err := k.Table.Execute(nil, cmdline, os.Stdout, os.Stderr)
	if err != nil {
		return fmt.Errorf("executing %q: %w", cmdline, err)
	}

	status, err := k.Table.Wait(p.PID(), k.BootThread)
	if err != nil {
		return fmt.Errorf("waiting on %q: %w", cmdline, err)
	}

	if status.ExitCode != 0 {
		os.Exit(int(status.ExitCode))
	}
	return nil
}
