// Package directory serves the peer set from a YAML file:
//
//	peers:
//	  - uid: 0
//	    hotkey: 5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY
//	    url: http://10.0.0.7:8091
//
// The file is re-read on every call, so edits take effect at the next round.
package directory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/mr-tron/base58"
	"gopkg.in/yaml.v3"

	"github.com/rony4d/go-drain-scorer/drain/scoring"
)

var (
	ErrBadIdentity = errors.New("peer identity is not a valid SS58 address")
	ErrSparseUIDs  = errors.New("peer uids must be 0..n-1 without gaps")
)

// ss58 address: prefix (1-2 bytes), 32-byte public key, 2-byte checksum
const (
	minSS58Len = 35
	maxSS58Len = 36
)

type entry struct {
	UID    int    `yaml:"uid"`
	Hotkey string `yaml:"hotkey"`
	URL    string `yaml:"url"`
}

type file struct {
	Peers []entry `yaml:"peers"`
}

// ValidIdentity reports whether id decodes as an SS58 address.
func ValidIdentity(id string) bool {
	raw, err := base58.Decode(id)
	if err != nil {
		return false
	}
	return len(raw) >= minSS58Len && len(raw) <= maxSS58Len
}

// Parse decodes a directory document into peers ordered by uid.
func Parse(data []byte) ([]scoring.Peer, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	sort.SliceStable(f.Peers, func(i, j int) bool { return f.Peers[i].UID < f.Peers[j].UID })

	peers := make([]scoring.Peer, len(f.Peers))
	for i, e := range f.Peers {
		if e.UID != i {
			return nil, fmt.Errorf("%w: expected uid %d, got %d", ErrSparseUIDs, i, e.UID)
		}
		hotkey := strings.TrimSpace(e.Hotkey)
		if !ValidIdentity(hotkey) {
			return nil, fmt.Errorf("%w: uid %d %q", ErrBadIdentity, e.UID, e.Hotkey)
		}
		peers[i] = scoring.Peer{
			UID:      e.UID,
			Identity: hotkey,
			URL:      strings.TrimSpace(e.URL),
		}
	}
	return peers, nil
}

// File is a directory backed by a YAML file.
type File struct {
	Path string
}

// Peers reads and parses the file.
func (d File) Peers(ctx context.Context) ([]scoring.Peer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(d.Path)
	if err != nil {
		return nil, err
	}
	peers, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", d.Path, err)
	}
	return peers, nil
}

// Static is a fixed peer set.
type Static []scoring.Peer

// Peers returns a copy of the set.
func (s Static) Peers(context.Context) ([]scoring.Peer, error) {
	out := make([]scoring.Peer, len(s))
	copy(out, s)
	return out, nil
}
