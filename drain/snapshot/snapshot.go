// Package snapshot stores the score vector on disk.
//
// Layout: a cser body (version, round, scores, identities) followed by a
// 32-byte keccak256 checksum of the length-prefixed body. Files are replaced
// atomically, so a crash leaves either the old snapshot or the new one.
package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Fantom-foundation/lachesis-base/common/bigendian"
	"github.com/Fantom-foundation/lachesis-base/hash"

	"github.com/rony4d/go-drain-scorer/drain/scoring"
	"github.com/rony4d/go-drain-scorer/utils/cser"
)

const (
	// FileName is the snapshot name inside the data directory.
	FileName = "scores.snap"

	version = 1

	checksumLen    = 32
	maxSlots       = 1 << 16
	maxIdentityLen = 256
)

var (
	ErrChecksum       = errors.New("snapshot checksum mismatch")
	ErrUnknownVersion = errors.New("unknown snapshot version")
	ErrTooManySlots   = errors.New("snapshot has too many slots")
)

func checksum(body []byte) hash.Hash {
	return hash.Of(bigendian.Uint64ToBytes(uint64(len(body))), body)
}

// Encode serialises s.
func Encode(s scoring.State) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if s.Len() > maxSlots {
		return nil, ErrTooManySlots
	}
	body, err := cser.MarshalBinaryAdapter(func(w *cser.Writer) error {
		w.U8(version)
		w.U64(s.Round)
		w.U64(uint64(s.Len()))
		for _, v := range s.Scores {
			w.F64(v)
		}
		for _, id := range s.Identities {
			if len(id) > maxIdentityLen {
				return fmt.Errorf("identity %q is too long", id)
			}
			w.String(id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sum := checksum(body)
	return append(body, sum.Bytes()...), nil
}

// Decode parses and validates a snapshot produced by Encode.
func Decode(raw []byte) (scoring.State, error) {
	if len(raw) < checksumLen {
		return scoring.State{}, cser.ErrMalformedEncoding
	}
	body, sum := raw[:len(raw)-checksumLen], raw[len(raw)-checksumLen:]
	expect := checksum(body)
	if !bytes.Equal(expect.Bytes(), sum) {
		return scoring.State{}, ErrChecksum
	}

	var s scoring.State
	err := cser.UnmarshalBinaryAdapter(body, func(r *cser.Reader) error {
		if v := r.U8(); v != version {
			return fmt.Errorf("%w: %d", ErrUnknownVersion, v)
		}
		s.Round = r.U64()
		n := r.U64()
		if n > maxSlots {
			return ErrTooManySlots
		}
		s.Scores = make([]float64, n)
		for i := range s.Scores {
			s.Scores[i] = r.F64()
		}
		s.Identities = make([]string, n)
		for i := range s.Identities {
			s.Identities[i] = r.String(maxIdentityLen)
		}
		return nil
	})
	if err != nil {
		return scoring.State{}, err
	}
	if err := s.Validate(); err != nil {
		return scoring.State{}, err
	}
	return s, nil
}

// Store keeps one snapshot file.
type Store struct {
	path string
}

// NewStore returns a Store writing FileName under dir.
func NewStore(dir string) *Store {
	return &Store{path: filepath.Join(dir, FileName)}
}

// Path of the snapshot file.
func (s *Store) Path() string {
	return s.path
}

// Load reads the snapshot. A missing file wraps scoring.ErrNoState.
func (s *Store) Load() (scoring.State, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return scoring.State{}, fmt.Errorf("%w: %s", scoring.ErrNoState, s.path)
	}
	if err != nil {
		return scoring.State{}, err
	}
	st, err := Decode(raw)
	if err != nil {
		return scoring.State{}, fmt.Errorf("%s: %w", s.path, err)
	}
	return st, nil
}

// Save replaces the snapshot atomically.
func (s *Store) Save(st scoring.State) error {
	raw, err := Encode(st)
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, FileName+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
