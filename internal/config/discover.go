package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const configDirName = "sfsync"

// FileNames are the file names searched in each directory, in order.
var FileNames = []string{"sfsync.yaml", "sfsync.yml", "sfsync.toml"}

// EnvConfigPath names the environment variable that points at a config file.
const EnvConfigPath = "SFSYNC_CONFIG"

// ErrNotFound is returned by Discover when no candidate file exists.
var ErrNotFound = errors.New("no configuration file found")

// ConfigLevel represents where a candidate configuration file lives.
type ConfigLevel string

const (
	LevelExplicit ConfigLevel = "explicit"
	LevelProject  ConfigLevel = "project"
	LevelUser     ConfigLevel = "user"
	LevelSystem   ConfigLevel = "system"
)

// Candidate is one path Discover considers.
type Candidate struct {
	Path  string
	Level ConfigLevel
}

// DiscoverOptions controls how config paths are discovered.
type DiscoverOptions struct {
	// Explicit is the --config flag value. When set, it is the only candidate.
	Explicit string

	// WorkDir is the project directory. Empty means the current directory.
	WorkDir string

	// SystemConfigDir overrides the default system config directory.
	// Empty means use the OS default. Set to a nonexistent path to skip.
	SystemConfigDir string

	// UserConfigDir overrides the default user config directory.
	// Empty means use the OS default. Set to a nonexistent path to skip.
	UserConfigDir string
}

// Candidates returns the ordered list of config file paths to check, from
// highest precedence (explicit, then project) to lowest (system).
// Paths are deduplicated by resolved absolute path.
func Candidates(opts DiscoverOptions) []Candidate {
	explicit := opts.Explicit
	if explicit == "" {
		explicit = strings.TrimSpace(os.Getenv(EnvConfigPath))
	}
	if explicit != "" {
		return []Candidate{{Path: explicit, Level: LevelExplicit}}
	}

	var out []Candidate
	seen := make(map[string]bool)

	addDir := func(level ConfigLevel, dir string) {
		if dir == "" {
			return
		}
		for _, name := range FileNames {
			path := filepath.Join(dir, name)
			abs, err := filepath.Abs(path)
			if err != nil {
				abs = path
			}
			if seen[abs] {
				continue
			}
			seen[abs] = true
			out = append(out, Candidate{Path: path, Level: level})
		}
	}

	workDir := opts.WorkDir
	if workDir == "" {
		workDir = "."
	}
	addDir(LevelProject, workDir)

	userDir := opts.UserConfigDir
	if userDir == "" {
		userDir = defaultUserConfigDir()
	}
	addDir(LevelUser, userDir)

	sysDir := opts.SystemConfigDir
	if sysDir == "" {
		sysDir = defaultSystemConfigDir()
	}
	addDir(LevelSystem, sysDir)

	return out
}

// Discover returns the first candidate that exists. An explicit path is
// returned as-is so that Load reports the real read error.
func Discover(opts DiscoverOptions) (Candidate, error) {
	cands := Candidates(opts)
	if len(cands) == 1 && cands[0].Level == LevelExplicit {
		return cands[0], nil
	}
	for _, c := range cands {
		if info, err := os.Stat(c.Path); err == nil && !info.IsDir() {
			return c, nil
		}
	}
	return Candidate{}, ErrNotFound
}

// defaultSystemConfigDir returns the platform-standard system config directory.
func defaultSystemConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		pd := os.Getenv("ProgramData")
		if pd == "" {
			pd = `C:\ProgramData`
		}
		return filepath.Join(pd, configDirName)
	default: // linux, darwin, etc.
		return filepath.Join("/etc", configDirName)
	}
}

// defaultUserConfigDir returns the platform-standard user config directory.
func defaultUserConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, configDirName)
}
