// Package whitelist maintains an authenticated set of member keys. Every
// update produces a new root that commits to the whole set, so a holder
// of the current root can check membership proofs without trusting the
// service. Verification results are cached, verifying the same proof
// against the same root twice costs one cache lookup.
package whitelist

import (
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/nspcc-dev/cmtree/pkg/cmt"
	"github.com/nspcc-dev/cmtree/pkg/config"
	"github.com/nspcc-dev/cmtree/pkg/crypto/hash"
	"github.com/nspcc-dev/cmtree/pkg/encoding/address"
	"github.com/nspcc-dev/cmtree/pkg/util"
	"go.uber.org/zap"
)

// verifyCacheSize is the number of verification results kept.
const verifyCacheSize = 1000

// Update operation names used in root events.
const (
	OpInsert = "insert"
	OpRemove = "remove"
)

type (
	// Service wraps the key set with locking, address conversion, a
	// verification cache and root change subscriptions.
	Service struct {
		log *zap.Logger
		cfg config.TreeConfiguration

		mtx  sync.RWMutex
		tree *cmt.Tree

		hashFunc    hash.Func
		verifyCache *lru.Cache

		subsMtx sync.Mutex
		subs    map[chan<- RootEvent]bool
	}

	// RootEvent is sent to subscribers after every successful update of
	// the key set.
	RootEvent struct {
		Root util.Uint256 `json:"root"`
		Size int          `json:"size"`
		Op   string       `json:"operation"`
		Key  util.Uint256 `json:"key"`
	}
)

// New creates a Service for the given configuration, inserting the
// preload keys before it returns.
func New(cfg config.TreeConfiguration, log *zap.Logger) (*Service, error) {
	if log == nil {
		return nil, errors.New("logger must not be nil")
	}
	h := hash.Sha256
	if cfg.HashFunction != "" {
		var err error
		if h, err = hash.ByName(cfg.HashFunction); err != nil {
			return nil, err
		}
	}
	cache, err := lru.New(verifyCacheSize)
	if err != nil {
		return nil, err
	}

	s := &Service{
		log:         log,
		cfg:         cfg,
		tree:        cmt.New(h, cfg.MaxProofLength),
		hashFunc:    h,
		verifyCache: cache,
		subs:        make(map[chan<- RootEvent]bool),
	}
	for _, k := range cfg.Preload {
		if err := s.tree.Insert(k); err != nil {
			return nil, fmt.Errorf("preloading key %s: %w", k, err)
		}
	}
	updateSizeMetric(s.tree.Size())
	log.Info("key set initialized",
		zap.String("hash", cfg.HashFunction),
		zap.Int("size", s.tree.Size()),
		zap.Stringer("root", s.tree.Root()))
	return s, nil
}

// Root returns the current root of the key set.
func (s *Service) Root() util.Uint256 {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.tree.Root()
}

// Size returns the number of keys in the set.
func (s *Service) Size() int {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.tree.Size()
}

// State returns the current root and size as a single consistent snapshot.
func (s *Service) State() (util.Uint256, int) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.tree.Root(), s.tree.Size()
}

// Has checks whether the key is in the set.
func (s *Service) Has(key util.Uint256) bool {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.tree.Has(key)
}

// Insert adds the key to the set and returns the produced root event.
func (s *Service) Insert(key util.Uint256) (*RootEvent, error) {
	return s.update(OpInsert, key)
}

// Remove deletes the key from the set and returns the produced root
// event.
func (s *Service) Remove(key util.Uint256) (*RootEvent, error) {
	return s.update(OpRemove, key)
}

func (s *Service) update(op string, key util.Uint256) (*RootEvent, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	var err error
	if op == OpInsert {
		err = s.tree.Insert(key)
	} else {
		err = s.tree.Remove(key)
	}
	if err != nil {
		return nil, err
	}
	updateOpMetrics(op)
	updateSizeMetric(s.tree.Size())

	ev := RootEvent{
		Root: s.tree.Root(),
		Size: s.tree.Size(),
		Op:   op,
		Key:  key,
	}
	s.log.Debug("key set updated",
		zap.String("op", op),
		zap.Stringer("key", key),
		zap.Stringer("root", ev.Root))
	s.notify(ev)
	return &ev, nil
}

// InsertAddress adds the key given in its address form.
func (s *Service) InsertAddress(addr string) (*RootEvent, error) {
	key, err := address.StringToUint256(addr)
	if err != nil {
		return nil, err
	}
	return s.Insert(key)
}

// RemoveAddress deletes the key given in its address form.
func (s *Service) RemoveAddress(addr string) (*RootEvent, error) {
	key, err := address.StringToUint256(addr)
	if err != nil {
		return nil, err
	}
	return s.Remove(key)
}

// GetProof returns a proof for the key along with the root the proof was
// built against. The pair is taken atomically, the proof always verifies
// against the returned root.
func (s *Service) GetProof(key util.Uint256) (*cmt.Proof, util.Uint256) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.tree.GetProof(key), s.tree.Root()
}

// VerifyProof checks the proof against the given root and key. The check
// is a pure function of its arguments, any root ever produced by any tree
// with the same hash function can be used, not only the current one.
func (s *Service) VerifyProof(root, key util.Uint256, p *cmt.Proof) (bool, error) {
	if p == nil {
		return false, fmt.Errorf("%w: nil proof", cmt.ErrMalformedProof)
	}
	ck := cacheKey(root, key, p)
	if v, ok := s.verifyCache.Get(ck); ok {
		updateCacheHitMetric()
		return v.(bool), nil
	}
	res, err := cmt.VerifyProof(s.hashFunc, s.cfg.MaxProofLength, root, key, p)
	if err != nil {
		return false, err
	}
	s.verifyCache.Add(ck, res)
	updateVerifyMetric()
	return res, nil
}

func cacheKey(root, key util.Uint256, p *cmt.Proof) util.Uint256 {
	pb := p.Bytes()
	buf := make([]byte, 0, util.Uint256Size*2+len(pb))
	buf = append(buf, root.BytesBE()...)
	buf = append(buf, key.BytesBE()...)
	buf = append(buf, pb...)
	return hash.Sha256(buf)
}

// SubscribeForRoots adds the given channel to the subscriber set. Events
// are sent with a non-blocking send, a subscriber that can't keep up
// loses them.
func (s *Service) SubscribeForRoots(ch chan<- RootEvent) {
	s.subsMtx.Lock()
	s.subs[ch] = true
	s.subsMtx.Unlock()
}

// UnsubscribeFromRoots removes the given channel from the subscriber set.
func (s *Service) UnsubscribeFromRoots(ch chan<- RootEvent) {
	s.subsMtx.Lock()
	delete(s.subs, ch)
	s.subsMtx.Unlock()
}

func (s *Service) notify(ev RootEvent) {
	s.subsMtx.Lock()
	defer s.subsMtx.Unlock()
	for ch := range s.subs {
		select {
		case ch <- ev:
		default:
			s.log.Warn("root event skipped", zap.Stringer("root", ev.Root))
		}
	}
}
