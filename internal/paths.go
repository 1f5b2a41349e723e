package internal

import (
	"os"
	"path/filepath"
)

// ExpandPath 展开 "~/" 开头的路径并转换为绝对路径
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "~" || (len(path) >= 2 && path[0] == '~' && (path[1] == '/' || path[1] == '\\')) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[1:])
	}
	return filepath.Abs(path)
}
