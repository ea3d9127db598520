package export

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// DirSink 把导出文件写入目录，同名文件会被覆盖。
type DirSink struct {
	Dir string
}

func (s DirSink) Save(name string, data []byte) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	return os.WriteFile(filepath.Join(s.Dir, name), data, 0o644)
}

// MemorySink keeps the latest bytes per name.
type MemorySink struct {
	mu    sync.Mutex
	files map[string][]byte
	saves int
}

func (s *MemorySink) Save(name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.files == nil {
		s.files = map[string][]byte{}
	}
	s.files[name] = append([]byte(nil), data...)
	s.saves++
	return nil
}

// Get returns the saved bytes for name.
func (s *MemorySink) Get(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[name]
	return data, ok
}

// Names lists saved file names.
func (s *MemorySink) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.files))
	for n := range s.files {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Saves counts Save calls.
func (s *MemorySink) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
