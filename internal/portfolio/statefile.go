package portfolio

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"stock_bot/pkg/logger"
)

// PositionMeta — то, чего нет в балансе брокера: состояние машины выходов.
type PositionMeta struct {
	PartialTaken    bool    `json:"partial_taken"`
	MaxPrice        float64 `json:"max_price"`
	Tag             string  `json:"tag"`
	FirstAcquiredAt int64   `json:"first_acquired_at"`
}

func (m PositionMeta) FirstAcquired() time.Time {
	if m.FirstAcquiredAt <= 0 {
		return time.Time{}
	}
	return time.Unix(m.FirstAcquiredAt, 0)
}

// StateStore — файловый кеш метаданных позиций, переживает рестарт процесса.
type StateStore struct {
	mu   sync.Mutex
	path string
	data map[string]PositionMeta
	prev []byte
}

func NewStateStore(path string) *StateStore {
	s := &StateStore{
		path: path,
		data: make(map[string]PositionMeta),
	}
	s.load()
	return s
}

func (s *StateStore) load() {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("failed to read position state %s: %v", s.path, err)
		}
		return
	}
	if err := sonic.Unmarshal(raw, &s.data); err != nil {
		logger.Warn("corrupt position state %s, starting clean: %v", s.path, err)
		s.data = make(map[string]PositionMeta)
		return
	}
	s.prev = raw
	logger.Info("loaded position state for %d symbols from %s", len(s.data), s.path)
}

func (s *StateStore) Get(symbol string) (PositionMeta, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.data[symbol]
	return m, ok
}

// Save — полная перезапись кеша. Без изменений на диск не ходим:
// вызывается на каждом цикле сверки.
func (s *StateStore) Save(metas map[string]PositionMeta) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := sonic.ConfigStd.Marshal(metas)
	if err != nil {
		logger.Error("failed to marshal position state: %v", err)
		return
	}
	if bytes.Equal(raw, s.prev) {
		return
	}

	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		logger.Error("failed to create state dir: %v", err)
		return
	}
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		logger.Error("failed to write position state: %v", err)
		return
	}
	if err := os.Rename(tmp, s.path); err != nil {
		logger.Error("failed to replace position state: %v", err)
		return
	}

	s.data = metas
	s.prev = raw
}
