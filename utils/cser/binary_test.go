package cser

import (
	"errors"
	"math"
	"testing"

	"github.com/rony4d/go-drain-scorer/utils/fast"
	"github.com/stretchr/testify/require"
)

func TestEmpty(t *testing.T) {
	buf, err := MarshalBinaryAdapter(func(w *Writer) error { return nil })
	require.NoError(t, err)

	err = UnmarshalBinaryAdapter(buf, func(r *Reader) error { return nil })
	require.NoError(t, err)
}

// TestErr covers error propagation and the strict-decoding checks.
func TestErr(t *testing.T) {
	buf, err := MarshalBinaryAdapter(func(w *Writer) error {
		w.U64(math.MaxUint64)
		return nil
	})
	require.NoError(t, err)

	bufCopy := func() []byte {
		return append([]byte(nil), buf...)
	}

	t.Run("Write err", func(t *testing.T) {
		errExp := errors.New("custom")
		_, err := MarshalBinaryAdapter(func(w *Writer) error {
			w.Bool(false)
			return errExp
		})
		require.Equal(t, errExp, err)
	})

	t.Run("Read nil", func(t *testing.T) {
		err := UnmarshalBinaryAdapter(nil, func(r *Reader) error { return nil })
		require.Equal(t, ErrMalformedEncoding, err)
	})

	t.Run("Read err", func(t *testing.T) {
		errExp := errors.New("custom")
		err := UnmarshalBinaryAdapter(bufCopy(), func(r *Reader) error {
			require.Equal(t, uint64(math.MaxUint64), r.U64())
			return errExp
		})
		require.Equal(t, errExp, err)
	})

	t.Run("Read corrupted size", func(t *testing.T) {
		_, bbytes, err := binaryToCSER(bufCopy())
		require.NoError(t, err)

		corrupted := fast.NewWriter(bbytes)
		size := fast.NewWriter(nil)
		writeUint64Compact(size, uint64(len(bbytes)+1))
		corrupted.Write(reversed(size.Bytes()))

		_, _, err = binaryToCSER(corrupted.Bytes())
		require.Equal(t, ErrMalformedEncoding, err)
	})

	repackWithDefect := func(defect func(bbits, bbytes *[]byte) error) func(t *testing.T) {
		return func(t *testing.T) {
			bbits, bbytes, err := binaryToCSER(bufCopy())
			require.NoError(t, err)

			errExp := defect(&bbits.Bytes, &bbytes)

			corrupted, err := binaryFromCSER(bbits, bbytes)
			require.NoError(t, err)

			err = UnmarshalBinaryAdapter(corrupted, func(r *Reader) error {
				_ = r.U64()
				return nil
			})
			require.Equal(t, errExp, err)
		}
	}

	t.Run("Read valid", repackWithDefect(func(bbits, bbytes *[]byte) error {
		return nil
	}))
	t.Run("Read extra bytes", repackWithDefect(func(bbits, bbytes *[]byte) error {
		*bbytes = append(*bbytes, 0xFF)
		return ErrNonCanonicalEncoding
	}))
	t.Run("Read extra bits", repackWithDefect(func(bbits, bbytes *[]byte) error {
		*bbits = append(*bbits, 0x0F)
		return ErrNonCanonicalEncoding
	}))
	t.Run("Read truncated bytes", repackWithDefect(func(bbits, bbytes *[]byte) error {
		*bbytes = (*bbytes)[:len(*bbytes)-1]
		return ErrMalformedEncoding
	}))
}

// TestNonCanonicalInteger rejects an integer carrying a zero high byte.
func TestNonCanonicalInteger(t *testing.T) {
	w := NewWriter()
	w.BytesW.Write([]byte{0x05, 0x00})
	w.BitsW.Write(3, 1)
	raw, err := binaryFromCSER(w.BitsW.Array, w.BytesW.Bytes())
	require.NoError(t, err)

	err = UnmarshalBinaryAdapter(raw, func(r *Reader) error {
		_ = r.U64()
		return nil
	})
	require.Equal(t, ErrNonCanonicalEncoding, err)
}

func TestTooLargeAlloc(t *testing.T) {
	raw, err := MarshalBinaryAdapter(func(w *Writer) error {
		w.SliceBytes(make([]byte, 16))
		return nil
	})
	require.NoError(t, err)

	err = UnmarshalBinaryAdapter(raw, func(r *Reader) error {
		_ = r.SliceBytes(8)
		return nil
	})
	require.Equal(t, ErrTooLargeAlloc, err)
}
