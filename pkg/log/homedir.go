package log

import "github.com/mitchellh/go-homedir"

// homeDir resolves the caller's home directory for ImportMaskFromFile's
// default path, via go-homedir rather than a bare os.UserHomeDir so that
// the $HOME-unset edge cases go-homedir already handles (and caches) are
// not reimplemented here.
func homeDir() (string, error) {
	return homedir.Dir()
}
