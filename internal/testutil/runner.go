package testutil

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
)

// FakePdftoppm mimics `pdftoppm -png ... <in> <prefix>` by writing
// prefix-N.png fixtures. It satisfies pages.Runner.
type FakePdftoppm struct {
	T      testing.TB
	Pages  int   // pages to emit when no -l flag is passed
	Err    error // returned instead of rendering
	Stderr string

	mu    sync.Mutex
	Calls [][]string
}

func (f *FakePdftoppm) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, append([]string{name}, args...))
	f.mu.Unlock()

	if f.Err != nil {
		return nil, []byte(f.Stderr), f.Err
	}
	n := f.Pages
	for i := 0; i+1 < len(args); i++ {
		if args[i] == "-l" {
			if v, err := strconv.Atoi(args[i+1]); err == nil {
				n = v
			}
		}
	}
	prefix := args[len(args)-1]
	for p := 1; p <= n; p++ {
		WritePNG(f.T, fmt.Sprintf("%s-%d.png", prefix, p), 64, 48)
	}
	return nil, nil, nil
}
