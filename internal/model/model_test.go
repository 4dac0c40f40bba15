package model

import (
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRequestEnforcesMethodBodyCompatibility(t *testing.T) {
	_, err := NewRequest("GET", "https://example.com", NewBytesBody([]byte("x")))
	require.Error(t, err)

	_, err = NewRequest("POST", "https://example.com", nil)
	require.Error(t, err)

	req, err := NewRequest("POST", "https://example.com", NewBytesBody([]byte("x")))
	require.NoError(t, err)
	require.Equal(t, "POST", req.Method)
}

func TestRequestWithTagClonesNotMutatesOriginal(t *testing.T) {
	req, err := NewRequest("GET", "https://example.com", nil)
	require.NoError(t, err)

	type marker struct{ n int }
	tagged := req.WithTag(marker{n: 1})

	_, ok := Tag[marker](req.Tags)
	require.False(t, ok, "original request must not see the tag")

	got, ok := Tag[marker](tagged.Tags)
	require.True(t, ok)
	require.Equal(t, 1, got.n)
}

func TestTagOrComputeInsertsExactlyOnce(t *testing.T) {
	var mu sync.Mutex
	tags := NewTags()

	type counter struct{ n int }
	var calls int32
	var wg sync.WaitGroup
	results := make([]counter, 20)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = TagOrCompute(&mu, &tags, func() counter {
				calls++
				return counter{n: i}
			})
		}(i)
	}
	wg.Wait()

	first := results[0]
	for _, r := range results {
		require.Equal(t, first, r, "every caller must observe the same winning value")
	}
}

func TestResponseCloseIsIdempotent(t *testing.T) {
	var closes int
	r := &Response{
		Body: NewBodyReader(func() ([]byte, error) { return nil, nil }, func() error {
			closes++
			return nil
		}),
	}
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	require.Equal(t, 1, closes)
}

func TestBodyReaderReadsUntilEOF(t *testing.T) {
	chunks := [][]byte{[]byte("ab"), []byte("cd"), nil}
	i := 0
	br := NewBodyReader(func() ([]byte, error) {
		c := chunks[i]
		i++
		return c, nil
	}, func() error { return nil })

	buf := make([]byte, 1)
	var out []byte
	for {
		n, err := br.Read(buf)
		out = append(out, buf[:n]...)
		if err != nil {
			break
		}
	}
	require.Equal(t, "abcd", string(out))
}

func TestBodyReaderDoneOnlyAfterEOF(t *testing.T) {
	chunks := [][]byte{[]byte("ab"), nil}
	i := 0
	br := NewBodyReader(func() ([]byte, error) {
		c := chunks[i]
		i++
		return c, nil
	}, func() error { return nil })

	require.False(t, br.Done())

	buf := make([]byte, 2)
	_, err := br.Read(buf)
	require.NoError(t, err)
	require.False(t, br.Done(), "Done must not flip until the read that observes EOF")

	_, err = br.Read(buf)
	require.ErrorIs(t, err, io.EOF)
	require.True(t, br.Done())
}
