package catalog

import (
	"encoding/binary"

	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"
	"golang.org/x/xerrors"

	"github.com/sedimentfs/sedimentfs/internal/inode"
)

var (
	bucketInodes     = []byte("inodes")
	bucketDirEntries = []byte("dir_entries")
	bucketMeta       = []byte("meta")

	metaKeyVersion  = []byte("catalog_version")
	metaKeyMaxIndex = []byte("max_index")
)

// boltCatalog is the durable Catalog backend: a single go.etcd.io/bbolt
// database file with three named sub-databases, exactly as described in
// spec §4.4 and §6.
type boltCatalog struct {
	db *bolt.DB
}

// Open opens (creating if necessary) the catalog database at path.
func Open(path string) (Catalog, error) {
	db, err := bolt.Open(path, 0o644, nil)
	if err != nil {
		return nil, xerrors.Errorf("catalog: opening %s: %w", path, err)
	}
	c := &boltCatalog{db: db}
	if err := c.init(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *boltCatalog) init() error {
	return c.db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketInodes, bucketDirEntries, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return xerrors.Errorf("catalog: creating bucket %s: %w", b, err)
			}
		}
		meta := tx.Bucket(bucketMeta)
		if v := meta.Get(metaKeyVersion); v == nil {
			return meta.Put(metaKeyVersion, itob(currentVersion))
		} else if got := btoi(v); got > currentVersion {
			return xerrors.Errorf("catalog: file version %d newer than supported %d: %w", got, currentVersion, ErrVersion)
		}
		return nil
	})
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func btoi(b []byte) uint64 { return binary.BigEndian.Uint64(b) }

func (c *boltCatalog) MaxIndex() uint64 {
	var max uint64
	c.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketMeta).Get(metaKeyMaxIndex)
		if v != nil {
			max = btoi(v)
		}
		return nil
	})
	return max
}

func (c *boltCatalog) setMaxIndex(tx *bolt.Tx, i uint64) error {
	meta := tx.Bucket(bucketMeta)
	cur := meta.Get(metaKeyMaxIndex)
	if cur != nil && btoi(cur) >= i {
		return nil
	}
	return meta.Put(metaKeyMaxIndex, itob(i))
}

func (c *boltCatalog) Inode(i uint64) (inode.INode, error) {
	var ino inode.INode
	err := c.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketInodes).Get(itob(i))
		if v == nil {
			return xerrors.Errorf("catalog: inode %d: %w", i, ErrInodeNotFound)
		}
		if err := cbor.Unmarshal(v, &ino); err != nil {
			return xerrors.Errorf("catalog: decoding inode %d: %w", i, ErrSerialization)
		}
		return nil
	})
	return ino, err
}

func (c *boltCatalog) dirEntryMap(tx *bolt.Tx, parent uint64) (map[string]inode.DirEntry, error) {
	v := tx.Bucket(bucketDirEntries).Get(itob(parent))
	if v == nil {
		return make(map[string]inode.DirEntry), nil
	}
	var m map[string]inode.DirEntry
	if err := cbor.Unmarshal(v, &m); err != nil {
		return nil, xerrors.Errorf("catalog: decoding dir entries of %d: %w", parent, ErrSerialization)
	}
	return m, nil
}

func (c *boltCatalog) putDirEntryMap(tx *bolt.Tx, parent uint64, m map[string]inode.DirEntry) error {
	b, err := cbor.Marshal(m)
	if err != nil {
		return xerrors.Errorf("catalog: encoding dir entries of %d: %w", parent, ErrSerialization)
	}
	return tx.Bucket(bucketDirEntries).Put(itob(parent), b)
}

func (c *boltCatalog) DirEntryIndex(parent uint64, name string) (uint64, bool, error) {
	var idx uint64
	var ok bool
	err := c.db.View(func(tx *bolt.Tx) error {
		m, err := c.dirEntryMap(tx, parent)
		if err != nil {
			return err
		}
		e, found := m[name]
		idx, ok = e.Index, found
		return nil
	})
	return idx, ok, err
}

func (c *boltCatalog) DirEntries(parent uint64) ([]inode.DirEntry, error) {
	var out []inode.DirEntry
	err := c.db.View(func(tx *bolt.Tx) error {
		m, err := c.dirEntryMap(tx, parent)
		if err != nil {
			return err
		}
		out = make([]inode.DirEntry, 0, len(m))
		for _, e := range m {
			out = append(out, e)
		}
		return nil
	})
	return out, err
}

func (c *boltCatalog) AddInode(ino inode.INode) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		b, err := cbor.Marshal(ino)
		if err != nil {
			return xerrors.Errorf("catalog: encoding inode %d: %w", ino.Attributes.Index, ErrSerialization)
		}
		if err := tx.Bucket(bucketInodes).Put(itob(ino.Attributes.Index), b); err != nil {
			return xerrors.Errorf("catalog: writing inode %d: %w", ino.Attributes.Index, err)
		}
		return c.setMaxIndex(tx, ino.Attributes.Index)
	})
}

func (c *boltCatalog) AddDirEntry(parent uint64, name string, child uint64, childType inode.FileType) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		m, err := c.dirEntryMap(tx, parent)
		if err != nil {
			return err
		}
		m[name] = inode.DirEntry{Index: child, Name: name, EntryType: childType}
		if err := c.putDirEntryMap(tx, parent, m); err != nil {
			return err
		}

		v := tx.Bucket(bucketInodes).Get(itob(child))
		if v == nil {
			return nil
		}
		var ino inode.INode
		if err := cbor.Unmarshal(v, &ino); err != nil {
			return xerrors.Errorf("catalog: decoding inode %d: %w", child, ErrSerialization)
		}
		ino.Attributes.Nlink++
		b, err := cbor.Marshal(ino)
		if err != nil {
			return xerrors.Errorf("catalog: encoding inode %d: %w", child, ErrSerialization)
		}
		return tx.Bucket(bucketInodes).Put(itob(child), b)
	})
}

func (c *boltCatalog) RemoveDirEntry(parent uint64, name string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		m, err := c.dirEntryMap(tx, parent)
		if err != nil {
			return err
		}
		delete(m, name)
		return c.putDirEntryMap(tx, parent, m)
	})
}

func (c *boltCatalog) RemoveInode(i uint64) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketInodes).Delete(itob(i)); err != nil {
			return xerrors.Errorf("catalog: deleting inode %d: %w", i, err)
		}
		return tx.Bucket(bucketDirEntries).Delete(itob(i))
	})
}

func (c *boltCatalog) Close() error {
	return c.db.Close()
}
