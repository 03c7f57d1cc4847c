package fstore

import (
	"fmt"
	"github.com/ValentinKolb/lmstore/lib/codec"
	"github.com/ValentinKolb/lmstore/lib/common"
	"github.com/ValentinKolb/lmstore/lib/store"
	"github.com/ValentinKolb/lmstore/lib/util"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/spf13/afero"
	"golang.org/x/sync/singleflight"
	"io"
	"net/url"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"
)

var log = logger.GetLogger(common.LoggerStore)

type storeImpl struct {
	config common.StoreConfig
	codec  *codec.FileCodec
	clock  func() time.Time

	cache   *xsync.MapOf[string, *layerRecord] // layer -> record
	loads   singleflight.Group                 // first load of a layer
	queue   *util.LockFreeMPSC[layerRecord]    // dirty records waiting for the flusher
	metrics *storeMetrics

	// background work
	flushMu sync.Mutex // one flush (or eviction) cycle at a time
	stop    chan struct{}
	workers sync.WaitGroup
	running atomic.Bool
	closed  atomic.Bool
	closeMu sync.RWMutex // writers hold the read lock until their record is queued
}

// NewFileStore creates a store persisting all layers below config.RootDir.
// The root directory is created on the first write.
//
// Thread-safety: The returned store is safe for concurrent use. Close must be called
// during shutdown, otherwise changes of the last flush interval are lost.
func NewFileStore(config common.StoreConfig) (store.IStore, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return NewFileStoreFs(afero.NewBasePathFs(afero.NewOsFs(), config.RootDir), config)
}

// NewFileStoreFs creates a store on fs. All layer directories are created relative to
// the root of fs, config.RootDir is only used for logging.
func NewFileStoreFs(fs afero.Fs, config common.StoreConfig) (store.IStore, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	s := newStore(fs, config, time.Now)
	s.start()
	return s, nil
}

// newStore creates a store without starting the background goroutines
func newStore(fs afero.Fs, config common.StoreConfig, clock func() time.Time) *storeImpl {
	s := &storeImpl{
		config: config,
		codec:  codec.NewFileCodec(fs, util.FilterLayerName),
		clock:  clock,
		cache:  xsync.NewMapOf[string, *layerRecord](),
		queue:  util.NewLockFreeMPSC[layerRecord](),
		stop:   make(chan struct{}),
	}
	s.metrics = newStoreMetrics(s)
	return s
}

// --------------------------------------------------------------------------
// Cache
// --------------------------------------------------------------------------

// get returns the record of a layer, loading it from disk on the first access.
// Concurrent first accesses of the same layer share one load, different layers are
// loaded independently. A failed load is not cached.
func (s *storeImpl) get(layer string) (*layerRecord, error) {
	now := s.clock()

	if rec, ok := s.cache.Load(layer); ok {
		rec.touch(now)
		return rec, nil
	}

	v, err, _ := s.loads.Do(layer, func() (interface{}, error) {
		// another load may have finished between the cache miss and this call
		if rec, ok := s.cache.Load(layer); ok {
			return rec, nil
		}

		data, err := s.codec.Load(layer)
		if err != nil {
			return nil, err
		}
		s.metrics.loads.Inc()

		rec, _ := s.cache.LoadOrStore(layer, newLayerRecord(layer, data, now))
		return rec, nil
	})
	if err != nil {
		log.Warningf("failed to load metadata of layer %s: %v", layer, err)
		return nil, err
	}

	rec := v.(*layerRecord)
	rec.touch(now)
	return rec, nil
}

// attach makes sure the change applied to rec reaches the cached record of the layer.
// rec may have been evicted after get returned it. If the layer was loaded again apply
// is repeated on the new record, otherwise rec is put back into the cache. rec is dirty
// at this point, so it can't be evicted once it is cached.
func (s *storeImpl) attach(rec *layerRecord, apply func(rec *layerRecord)) *layerRecord {
	for {
		cached, _ := s.cache.LoadOrStore(rec.layer, rec)
		if cached == rec {
			return rec
		}
		apply(cached)
		rec = cached
	}
}

// checkOpen returns an error if the store is closed
func (s *storeImpl) checkOpen() error {
	if s.closed.Load() {
		return store.NewError(store.RetCClosed, "store is closed")
	}
	return nil
}

// --------------------------------------------------------------------------
// Value Encoding
// --------------------------------------------------------------------------

// encodeValue percent-encodes a value (UTF-8, form encoding with '+' for spaces)
func encodeValue(value string) string {
	return url.QueryEscape(value)
}

// decodeValue reverses encodeValue
func decodeValue(encoded string) (string, error) {
	return url.QueryUnescape(encoded)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) GetLayerMetadata(layer string) (map[string]string, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	rec, err := s.get(layer)
	if err != nil {
		return nil, err
	}
	return rec.snapshot(), nil
}

func (s *storeImpl) GetEntry(layer, key string) (string, bool, error) {
	if err := s.checkOpen(); err != nil {
		return "", false, err
	}
	rec, err := s.get(layer)
	if err != nil {
		return "", false, err
	}

	encoded, ok := rec.get(key)
	if !ok {
		return "", false, nil
	}

	value, err := decodeValue(encoded)
	if err != nil {
		return "", false, store.WrapError(store.RetCLoadMalformed, err, fmt.Sprintf("value of key %s in layer %s is not percent-encoded", key, layer))
	}
	return value, true, nil
}

func (s *storeImpl) PutEntry(layer, key, value string) error {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return err
	}
	if key == "" {
		// an empty key can't be written to the properties file
		return store.NewError(store.RetCEncode, fmt.Sprintf("key of layer %s must not be empty", layer))
	}
	if !utf8.ValidString(key) || !utf8.ValidString(value) {
		return store.NewError(store.RetCEncode, fmt.Sprintf("key or value of layer %s is not valid UTF-8", layer))
	}

	rec, err := s.get(layer)
	if err != nil {
		return err
	}

	return s.putRecord(rec, key, encodeValue(value))
}

// putRecord sets an entry of rec and queues the change
func (s *storeImpl) putRecord(rec *layerRecord, key, encoded string) error {
	if !rec.put(key, encoded) {
		return nil
	}
	rec = s.attach(rec, func(cached *layerRecord) {
		if !cached.put(key, encoded) {
			// the value is already set, but rec was changed and must be written
			cached.addModification()
		}
	})

	if !s.queue.Push(rec) {
		// the store was closed while the value was written
		return store.NewError(store.RetCClosed, fmt.Sprintf("store closed before the change to layer %s was queued", rec.layer))
	}
	return nil
}

// Rewrite marks a layer as changed, so the next flush writes it even if no entry changed.
// A layer read from the legacy file is migrated to the current format this way.
func (s *storeImpl) Rewrite(layer string) error {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return err
	}
	rec, err := s.get(layer)
	if err != nil {
		return err
	}

	rec.addModification()
	rec = s.attach(rec, (*layerRecord).addModification)
	if !s.queue.Push(rec) {
		return store.NewError(store.RetCClosed, fmt.Sprintf("store closed before layer %s was queued", layer))
	}
	return nil
}

func (s *storeImpl) Flush() error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.flush()
}

func (s *storeImpl) Stats() store.Stats {
	return s.metrics.stats()
}

// WritePrometheus writes the metrics of this store in the prometheus text format
func (s *storeImpl) WritePrometheus(w io.Writer) {
	s.metrics.set.WritePrometheus(w)
}

func (s *storeImpl) Close() error {
	// writers that passed checkOpen have queued their records once the lock is held
	s.closeMu.Lock()
	closing := s.closed.CompareAndSwap(false, true)
	s.closeMu.Unlock()
	if !closing {
		return nil
	}

	s.stopBackground()

	// no new records are accepted after this point, the final flush drains the rest
	s.queue.Close()
	err := s.flush()
	if err != nil {
		log.Errorf("final flush of store %s failed: %v", s.config.RootDir, err)
	}

	log.Infof("closed store %s", s.config.RootDir)
	return err
}
