package whitelist

import (
	"sync"
	"testing"

	"github.com/nspcc-dev/cmtree/internal/random"
	"github.com/nspcc-dev/cmtree/pkg/cmt"
	"github.com/nspcc-dev/cmtree/pkg/config"
	"github.com/nspcc-dev/cmtree/pkg/crypto/hash"
	"github.com/nspcc-dev/cmtree/pkg/encoding/address"
	"github.com/nspcc-dev/cmtree/pkg/util"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestService(t *testing.T, cfg config.TreeConfiguration) *Service {
	s, err := New(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	return s
}

func TestNew(t *testing.T) {
	t.Run("nil logger", func(t *testing.T) {
		_, err := New(config.TreeConfiguration{}, nil)
		require.Error(t, err)
	})
	t.Run("unknown hash", func(t *testing.T) {
		_, err := New(config.TreeConfiguration{HashFunction: "sha3"}, zaptest.NewLogger(t))
		require.Error(t, err)
	})
	t.Run("default hash", func(t *testing.T) {
		s := newTestService(t, config.TreeConfiguration{})
		require.Equal(t, util.Uint256{}, s.Root())
		require.Equal(t, 0, s.Size())
	})
	t.Run("preload", func(t *testing.T) {
		keys := []util.Uint256{random.Uint256(), random.Uint256()}
		s := newTestService(t, config.TreeConfiguration{Preload: keys})
		require.Equal(t, 2, s.Size())
		for _, k := range keys {
			require.True(t, s.Has(k))
		}
	})
	t.Run("duplicate preload", func(t *testing.T) {
		k := random.Uint256()
		_, err := New(config.TreeConfiguration{Preload: []util.Uint256{k, k}}, zaptest.NewLogger(t))
		require.ErrorIs(t, err, cmt.ErrDuplicateKey)
	})
}

func TestServiceUpdates(t *testing.T) {
	s := newTestService(t, config.TreeConfiguration{HashFunction: hash.NameSha256})
	key := random.Uint256()

	ev, err := s.Insert(key)
	require.NoError(t, err)
	require.Equal(t, OpInsert, ev.Op)
	require.Equal(t, key, ev.Key)
	require.Equal(t, 1, ev.Size)
	require.Equal(t, s.Root(), ev.Root)
	require.True(t, s.Has(key))

	_, err = s.Insert(key)
	require.ErrorIs(t, err, cmt.ErrDuplicateKey)

	ev, err = s.Remove(key)
	require.NoError(t, err)
	require.Equal(t, OpRemove, ev.Op)
	require.Equal(t, 0, ev.Size)
	require.Equal(t, util.Uint256{}, ev.Root)
	require.False(t, s.Has(key))

	_, err = s.Remove(key)
	require.ErrorIs(t, err, cmt.ErrKeyNotFound)
}

func TestServiceAddresses(t *testing.T) {
	s := newTestService(t, config.TreeConfiguration{})
	key := random.Uint256()
	addr := address.Uint256ToString(key)

	ev, err := s.InsertAddress(addr)
	require.NoError(t, err)
	require.Equal(t, key, ev.Key)
	require.True(t, s.Has(key))

	_, err = s.InsertAddress("definitely not an address")
	require.Error(t, err)

	_, err = s.RemoveAddress(addr)
	require.NoError(t, err)
	require.False(t, s.Has(key))
}

func TestServiceProofs(t *testing.T) {
	keys := make([]util.Uint256, 10)
	for i := range keys {
		keys[i] = random.Uint256()
	}
	s := newTestService(t, config.TreeConfiguration{Preload: keys})

	t.Run("membership", func(t *testing.T) {
		p, root := s.GetProof(keys[0])
		require.True(t, p.Existence)

		// twice, the second time is answered from the cache
		for i := 0; i < 2; i++ {
			ok, err := s.VerifyProof(root, keys[0], p)
			require.NoError(t, err)
			require.True(t, ok)
		}
	})
	t.Run("non-membership", func(t *testing.T) {
		absent := random.Uint256()
		p, root := s.GetProof(absent)
		require.False(t, p.Existence)

		ok, err := s.VerifyProof(root, absent, p)
		require.NoError(t, err)
		require.True(t, ok)
	})
	t.Run("stale root", func(t *testing.T) {
		p, root := s.GetProof(keys[1])
		_, err := s.Insert(random.Uint256())
		require.NoError(t, err)

		ok, err := s.VerifyProof(s.Root(), keys[1], p)
		require.NoError(t, err)
		require.False(t, ok)

		ok, err = s.VerifyProof(root, keys[1], p)
		require.NoError(t, err)
		require.True(t, ok)
	})
	t.Run("malformed", func(t *testing.T) {
		_, err := s.VerifyProof(s.Root(), keys[0], nil)
		require.ErrorIs(t, err, cmt.ErrMalformedProof)
	})
}

func TestServiceSubscriptions(t *testing.T) {
	s := newTestService(t, config.TreeConfiguration{})
	ch := make(chan RootEvent, 2)
	s.SubscribeForRoots(ch)

	key := random.Uint256()
	ev, err := s.Insert(key)
	require.NoError(t, err)
	require.Equal(t, *ev, <-ch)

	ev, err = s.Remove(key)
	require.NoError(t, err)
	require.Equal(t, *ev, <-ch)

	s.UnsubscribeFromRoots(ch)
	_, err = s.Insert(key)
	require.NoError(t, err)
	require.Len(t, ch, 0)

	// a full subscriber channel doesn't block updates
	full := make(chan RootEvent)
	s.SubscribeForRoots(full)
	_, err = s.Insert(random.Uint256())
	require.NoError(t, err)
}

func TestServiceConcurrency(t *testing.T) {
	s := newTestService(t, config.TreeConfiguration{})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				key := random.Uint256()
				_, err := s.Insert(key)
				require.NoError(t, err)

				p, root := s.GetProof(key)
				ok, err := s.VerifyProof(root, key, p)
				require.NoError(t, err)
				require.True(t, ok)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = s.Root()
				_ = s.Size()
				_ = s.Has(random.Uint256())
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 200, s.Size())
}
