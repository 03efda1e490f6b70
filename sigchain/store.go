package sigchain

import (
	"bufio"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/amosson/public-keys/errs"
)

// Store is the pluggable append-only log backing a SigChain. It is
// grounded on the teacher package's PrivateKeyContainer interface
// (container.go): a small capability set expressed as an interface rather
// than a base class, with concrete in-memory and file-backed variants.
type Store interface {
	// Load returns every stored entry, in append order.
	Load() ([]string, error)
	// Store replaces the store's contents with entries, in order.
	Store(entries []string) error
	// Add atomically appends one entry.
	Add(entry string) error
	// Location returns this store's round-trippable locator string.
	Location() string
}

// MemoryStore is a Store backed by an in-process slice of strings.
type MemoryStore struct {
	entries []string
}

// NewMemoryStore returns an empty MemoryStore, or one pre-seeded with
// entries if given.
func NewMemoryStore(entries []string) *MemoryStore {
	ms := &MemoryStore{}
	if entries != nil {
		ms.entries = append([]string(nil), entries...)
	}
	return ms
}

func (ms *MemoryStore) Load() ([]string, error) {
	return append([]string(nil), ms.entries...), nil
}

func (ms *MemoryStore) Store(entries []string) error {
	ms.entries = append([]string(nil), entries...)
	return nil
}

func (ms *MemoryStore) Add(entry string) error {
	ms.entries = append(ms.entries, entry)
	return nil
}

func (ms *MemoryStore) Location() string {
	return "@inmemory"
}

// FileStore is a Store backed by a line-delimited text file, one base64
// entry per line. Following the concurrency policy of spec.md §5, a
// FileStore holds no persistent file handle: every call opens the file
// with the mode it needs and closes it before returning, including on the
// error paths, so a chain instance never leaks a descriptor. This is a
// deliberate departure from the teacher's fsContainer (container.go),
// which keeps the cache file open and guards the key file with
// nightlyone/lockfile for the lifetime of the container — unnecessary
// here because every FileStore operation is a single self-contained
// append or rewrite of complete lines (see DESIGN.md).
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore backed by the file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load returns the file's lines in order. A file that does not exist yet
// is an empty store.
func (fs *FileStore) Load() ([]string, error) {
	f, err := os.Open(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.Wrap(errs.NotFound, err, "failed to open sigchain store %s", fs.path)
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		out = append(out, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.Wrap(errs.NotFound, err, "failed to read sigchain store %s", fs.path)
	}
	return out, nil
}

// Store replaces the file's contents with entries. Write and close errors
// are accumulated with go-multierror rather than the close error silently
// shadowing a write failure, the same pattern the teacher package's
// fsContainer.Close uses to report every cleanup failure it hits rather
// than just the first (container.go's closeCache/Close).
func (fs *FileStore) Store(entries []string) (err error) {
	f, ferr := os.OpenFile(fs.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if ferr != nil {
		return errs.Wrap(errs.NotFound, ferr, "failed to open sigchain store %s for writing", fs.path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			err = multierror.Append(err, errs.Wrap(errs.NotFound, cerr, "failed to close sigchain store %s", fs.path))
		}
	}()

	w := bufio.NewWriter(f)
	for _, entry := range entries {
		if _, werr := w.WriteString(entry); werr != nil {
			return errs.Wrap(errs.NotFound, werr, "failed to write sigchain entry")
		}
		if werr := w.WriteByte('\n'); werr != nil {
			return errs.Wrap(errs.NotFound, werr, "failed to write sigchain entry")
		}
	}
	if werr := w.Flush(); werr != nil {
		return errs.Wrap(errs.NotFound, werr, "failed to flush sigchain store %s", fs.path)
	}
	return nil
}

// Add atomically appends entry as one more line. Write and close errors are
// accumulated the same way Store's are.
func (fs *FileStore) Add(entry string) (err error) {
	f, ferr := os.OpenFile(fs.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if ferr != nil {
		return errs.Wrap(errs.NotFound, ferr, "failed to open sigchain store %s for appending", fs.path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			err = multierror.Append(err, errs.Wrap(errs.NotFound, cerr, "failed to close sigchain store %s", fs.path))
		}
	}()

	if _, werr := f.WriteString(entry + "\n"); werr != nil {
		return errs.Wrap(errs.NotFound, werr, "failed to append sigchain entry")
	}
	return nil
}

func (fs *FileStore) Location() string {
	return fs.path + "@localhost"
}

// CreateStore parses a store locator (spec.md §6) and returns the matching
// Store. seed, if non-nil, pre-populates a freshly created MemoryStore.
func CreateStore(loc string, seed []string) (Store, error) {
	switch {
	case loc == "@inmemory":
		return NewMemoryStore(seed), nil
	case strings.HasSuffix(loc, "@localhost"):
		path := strings.TrimSuffix(loc, "@localhost")
		return NewFileStore(path), nil
	default:
		return nil, errs.New(errs.UnsupportedStore, "unsupported store locator: %q", loc)
	}
}
