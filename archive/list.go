package archive

import (
	"archive/tar"
	"io"
	"path"
	"slices"
	"strings"
)

// Listing describes the contents of a payload without touching the disk.
type Listing struct {
	// Files maps each file path to its contents.
	Files map[string][]byte
	// Dirs maps each directory path to the sorted paths of its direct
	// children. Top-level entries are listed under "/".
	Dirs map[string][]string
}

// Root is the [Listing.Dirs] key for top-level entries.
const Root = "/"

// List reads payload into memory. Entries with any dot-prefixed path
// component are skipped.
func List(payload []byte) (*Listing, error) {
	l := &Listing{
		Files: make(map[string][]byte),
		Dirs:  map[string][]string{Root: {}},
	}

	err := walk(payload, func(hdr *tar.Header, name string, r io.Reader) error {
		if hidden(name) {
			return nil
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			l.addDir(name)
		case tar.TypeReg:
			data, err := io.ReadAll(r)
			if err != nil {
				return err
			}
			l.Files[name] = data
			l.addChild(name)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, children := range l.Dirs {
		slices.Sort(children)
	}

	return l, nil
}

// Paths returns every file and directory path in sorted order.
func (l *Listing) Paths() []string {
	paths := make([]string, 0, len(l.Files)+len(l.Dirs))
	for p := range l.Files {
		paths = append(paths, p)
	}
	for p := range l.Dirs {
		if p != Root {
			paths = append(paths, p)
		}
	}
	slices.Sort(paths)

	return paths
}

func (l *Listing) addDir(name string) {
	if _, ok := l.Dirs[name]; ok {
		return
	}
	l.Dirs[name] = []string{}
	l.addChild(name)
}

// addChild records name under its parent, creating missing parents.
func (l *Listing) addChild(name string) {
	parent := path.Dir(name)
	if parent == "." {
		parent = Root
	} else {
		l.addDir(parent)
	}

	if !slices.Contains(l.Dirs[parent], name) {
		l.Dirs[parent] = append(l.Dirs[parent], name)
	}
}

func hidden(name string) bool {
	for part := range strings.SplitSeq(name, "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}

	return false
}
