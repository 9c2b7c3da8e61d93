package fuseadapter

import (
	"golang.org/x/xerrors"

	"github.com/sedimentfs/sedimentfs/internal/catalog"
	"github.com/sedimentfs/sedimentfs/internal/store"
	"github.com/sedimentfs/sedimentfs/internal/workspace"
)

func isNotFound(err error) bool {
	return xerrors.Is(err, catalog.ErrInodeNotFound) ||
		xerrors.Is(err, catalog.ErrDirEntryNotFound) ||
		xerrors.Is(err, store.ErrChunkGet) ||
		xerrors.Is(err, workspace.ErrInodeLookup) ||
		xerrors.Is(err, workspace.ErrDirEntryLookup)
}

func isExists(err error) bool {
	return xerrors.Is(err, workspace.ErrExists)
}

func isNotEmpty(err error) bool {
	return xerrors.Is(err, workspace.ErrNotEmpty)
}

func isNotDirectory(err error) bool {
	return xerrors.Is(err, workspace.ErrNotDirectory) || xerrors.Is(err, workspace.ErrUnsupportedRename)
}

func isAccessDenied(err error) bool {
	return xerrors.Is(err, workspace.ErrAccess)
}
