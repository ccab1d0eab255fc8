package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-drain-scorer/drain/claims"
	"github.com/rony4d/go-drain-scorer/drain/scoring"
	"github.com/rony4d/go-drain-scorer/inter/providercheck"
	"github.com/rony4d/go-drain-scorer/utils/cser"
)

func sampleState() scoring.State {
	return scoring.State{
		Round:      42,
		Scores:     []float64{0, 0.058, 0.99999, 1},
		Identities: []string{"5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY", "", "5FHneW46", "x"},
	}
}

func TestEncodeDecode(t *testing.T) {
	raw, err := Encode(sampleState())
	require.NoError(t, err)

	got, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, sampleState(), got)

	raw, err = Encode(scoring.NewState(nil))
	require.NoError(t, err)
	got, err = Decode(raw)
	require.NoError(t, err)
	require.Equal(t, 0, got.Len())
}

func TestDecode_Corruption(t *testing.T) {
	raw, err := Encode(sampleState())
	require.NoError(t, err)

	for name, mutate := range map[string]func([]byte) []byte{
		"flipped body byte": func(b []byte) []byte { b[3] ^= 0x01; return b },
		"flipped checksum":  func(b []byte) []byte { b[len(b)-1] ^= 0x80; return b },
		"truncated":         func(b []byte) []byte { return b[:len(b)-5] },
		"appended":          func(b []byte) []byte { return append(b, 0) },
	} {
		t.Run(name, func(t *testing.T) {
			b := append([]byte(nil), raw...)
			_, err := Decode(mutate(b))
			require.Error(t, err)
		})
	}

	_, err = Decode([]byte{1, 2, 3})
	require.ErrorIs(t, err, cser.ErrMalformedEncoding)
}

func TestDecode_RejectsInvalidScores(t *testing.T) {
	_, err := Encode(scoring.State{Scores: []float64{-1}, Identities: []string{"a"}})
	require.Error(t, err)
	_, err = Encode(scoring.State{Scores: []float64{1, 2}, Identities: []string{"a"}})
	require.Error(t, err)
}

func TestStore(t *testing.T) {
	require := require.New(t)

	dir := filepath.Join(t.TempDir(), "nested")
	s := NewStore(dir)

	_, err := s.Load()
	require.ErrorIs(err, scoring.ErrNoState)

	require.NoError(s.Save(sampleState()))
	got, err := s.Load()
	require.NoError(err)
	require.Equal(sampleState(), got)

	next := sampleState()
	next.Round++
	next.Scores[0] = 0.5
	require.NoError(s.Save(next))
	got, err = s.Load()
	require.NoError(err)
	require.Equal(next, got)

	// no temp files left behind
	entries, err := os.ReadDir(dir)
	require.NoError(err)
	require.Len(entries, 1)
	require.Equal(FileName, entries[0].Name())

	require.NoError(os.WriteFile(s.Path(), []byte("garbage that is long enough to hold a checksum"), 0600))
	_, err = s.Load()
	require.ErrorIs(err, ErrChecksum)
}

type noPeers struct{}

func (noPeers) Peers(context.Context) ([]scoring.Peer, error) { return nil, nil }

func (noPeers) Query(context.Context, scoring.Peer) (*providercheck.Response, error) {
	return nil, nil
}

func (noPeers) Claims(context.Context) (*claims.Ledger, error) { return claims.Empty(), nil }

func TestStore_CorruptFileStartsFromZero(t *testing.T) {
	require := require.New(t)

	s := NewStore(t.TempDir())
	require.NoError(os.WriteFile(s.Path(), []byte("not a snapshot at all, just some bytes on disk"), 0600))

	e, err := scoring.New(scoring.DefaultConfig(), scoring.Deps{
		Directory: noPeers{},
		Querier:   noPeers{},
		Claims:    noPeers{},
		Store:     s,
	})
	require.NoError(err)
	require.NoError(e.Load())
	require.Zero(e.State().Len())

	// the next round overwrites the bad file
	rep, err := e.RunRound(context.Background())
	require.NoError(err)
	require.True(rep.Persisted)
	got, err := s.Load()
	require.NoError(err)
	require.Equal(uint64(1), got.Round)
}
