package osutil

import (
	"errors"
	"os"
	"os/user"
	"path/filepath"
)

// NormalizeCommand has very similar semantics to NormalizeFilePath, except it
// only absolutes the path if it exists on the filesystem. This ensures that:
//
// "templates/worker.sh" => "/home/me/project/templates/worker.sh"
// "~/.rch/worker.sh"    => "/home/me/.rch/worker.sh"
// "cat Readme.md"       => "cat Readme.md"
func NormalizeCommand(commandPath string) (string, error) {
	if commandPath == "" {
		return "", nil
	}

	commandPath, err := ExpandHome(os.ExpandEnv(commandPath))
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(commandPath); err == nil {
		absoluteCommandPath, err := filepath.Abs(commandPath)
		if err != nil {
			return "", err
		}
		commandPath = absoluteCommandPath
	}

	return commandPath, nil
}

// NormalizeFilePath returns a clean absolute version of path. It expands
// environment variables, converts a leading "~/" into the user's home
// directory, and resolves "./" against the current working directory.
func NormalizeFilePath(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	path, err := ExpandHome(os.ExpandEnv(path))
	if err != nil {
		return "", err
	}

	absolutePath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	return absolutePath, nil
}

// ExpandHome expands path to include the home directory if it is prefixed
// with "~". Otherwise path is returned unchanged.
func ExpandHome(path string) (string, error) {
	if len(path) == 0 {
		return path, nil
	}

	if path[0] != '~' {
		return path, nil
	}

	if len(path) > 1 && path[1] != '/' && path[1] != '\\' {
		return "", errors.New("cannot expand user-specific home dir")
	}

	usr, err := user.Current()
	if err != nil {
		return "", err
	}

	return filepath.Join(usr.HomeDir, path[1:]), nil
}
