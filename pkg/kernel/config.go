package kernel

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the kernel's boot configuration, loaded from a YAML file
// the same way mit-pdos-sigmaos's kernel/param.go loads its boot
// parameters, generalized from that system's node/service topology to
// this kernel's much smaller surface: which scheduler policy to run and
// where program images live.
type Config struct {
	// Scheduler selects the dispatch policy: "fifo", "prio", "fair", or
	// "mlfqs". Empty means "fifo".
	Scheduler string `yaml:"scheduler"`

	// BinDir is the filesystem path Execute resolves program names
	// against.
	BinDir string `yaml:"bin_dir"`

	// DiskRoot, if set, backs the boot filesystem's lower layer with a
	// real on-disk directory via pkg/vfs/diskfs; otherwise the boot
	// filesystem is purely in-memory.
	DiskRoot string `yaml:"disk_root"`

	// NoFileLimit, if nonzero, is the soft RLIMIT_NOFILE Boot attempts
	// to raise the host process to.
	NoFileLimit uint64 `yaml:"nofile_limit"`
}

// DefaultConfig returns the configuration Boot uses when no config file
// is given: FIFO scheduling, an in-memory-only filesystem, programs
// resolved under /bin.
func DefaultConfig() Config {
	return Config{
		Scheduler: "fifo",
		BinDir:    "/bin",
	}
}

// LoadConfig reads and parses a YAML boot configuration file, filling
// in DefaultConfig's values for anything the file leaves unset.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	if cfg.BinDir == "" {
		cfg.BinDir = "/bin"
	}
	return cfg, nil
}
