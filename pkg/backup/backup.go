package backup

import (
	"os"

	"github.com/kwonwoo078/presto/pkg/storelog"
)

// Service tells whether shards lost on every node can be restored from
// backup storage by whichever node is asked to read them.
type Service interface {
	IsBackupAvailable() bool
}

type None struct{}

var _ Service = None{}

func (None) IsBackupAvailable() bool {
	return false
}

// Directory is a backup store on a shared file system mount.
type Directory struct {
	Path string
}

var _ Service = &Directory{}

func NewDirectory(path string) *Directory {
	return &Directory{Path: path}
}

func (d *Directory) IsBackupAvailable() bool {
	if d.Path == "" {
		return false
	}
	st, err := os.Stat(d.Path)
	if err != nil {
		storelog.Zero.Warn().Err(err).Str("path", d.Path).Msg("backup: directory is not accessible")
		return false
	}
	return st.IsDir()
}

// FromConfig returns None when dir is empty.
func FromConfig(dir string) Service {
	if dir == "" {
		return None{}
	}
	return NewDirectory(dir)
}
