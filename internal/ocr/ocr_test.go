package ocr

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"
)

var jpegBytes = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01, 0x01, 0x00, 0x00, 0x01}

// fakeEngine records every path it is given and behaves according to fn.
type fakeEngine struct {
	mu    sync.Mutex
	paths []string
	fn    func(ctx context.Context, path string) (string, error)
}

func (f *fakeEngine) Recognize(ctx context.Context, path string) (string, error) {
	f.mu.Lock()
	f.paths = append(f.paths, path)
	f.mu.Unlock()
	return f.fn(ctx, path)
}

func (f *fakeEngine) lastPath(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.paths) == 0 {
		t.Fatal("engine was never called")
	}
	return f.paths[len(f.paths)-1]
}

func newTestExtractor(t *testing.T, engine Engine, timeout time.Duration, slots int64) *Extractor {
	t.Helper()
	return NewExtractor(engine, Options{
		MaxBytes:      1024,
		MaxChars:      50,
		Timeout:       timeout,
		MaxConcurrent: slots,
		TempDir:       t.TempDir(),
	})
}

func assertGone(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("temp file %s still exists (err=%v)", path, err)
	}
}

func TestExtractTextSuccessCleansUp(t *testing.T) {
	engine := &fakeEngine{fn: func(_ context.Context, path string) (string, error) {
		info, err := os.Stat(path)
		if err != nil {
			return "", err
		}
		if info.Mode().Perm() != 0o600 {
			t.Errorf("temp file mode = %v, want 0600", info.Mode().Perm())
		}
		return "Un roman ma-\ngnifique\n\n  sur   la mer.\n", nil
	}}
	x := newTestExtractor(t, engine, time.Second, 2)

	text, err := x.ExtractText(context.Background(), jpegBytes)
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if text != "Un roman magnifique sur la mer." {
		t.Errorf("text = %q", text)
	}
	assertGone(t, engine.lastPath(t))
}

func TestExtractTextFailureCleansUp(t *testing.T) {
	engine := &fakeEngine{fn: func(context.Context, string) (string, error) {
		return "", errors.New("tesseract: exit status 1: Error opening data file /secret/path")
	}}
	x := newTestExtractor(t, engine, time.Second, 2)

	_, err := x.ExtractText(context.Background(), jpegBytes)
	if !errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("err = %v, want ErrExtractionFailed", err)
	}
	if err.Error() != ErrExtractionFailed.Error() {
		t.Errorf("engine details leaked: %q", err.Error())
	}
	assertGone(t, engine.lastPath(t))
}

func TestExtractTextTimeoutCleansUp(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	// The engine ignores ctx, like a process that cannot be killed.
	engine := &fakeEngine{fn: func(context.Context, string) (string, error) {
		<-release
		return "late", nil
	}}
	x := newTestExtractor(t, engine, 50*time.Millisecond, 1)

	start := time.Now()
	_, err := x.ExtractText(context.Background(), jpegBytes)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("caller blocked for %v past the timeout", elapsed)
	}
	assertGone(t, engine.lastPath(t))
}

func TestExtractTextRejectsBadInput(t *testing.T) {
	engine := &fakeEngine{fn: func(context.Context, string) (string, error) {
		t.Error("engine must not run for rejected input")
		return "", nil
	}}
	x := newTestExtractor(t, engine, time.Second, 1)

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrEmptyBuffer},
		{"too large", append(append([]byte{}, jpegBytes...), make([]byte, 2048)...), ErrTooLarge},
		{"not an image", []byte("%PDF-1.7 definitely not a cover"), ErrInvalidImage},
	}
	for _, tt := range tests {
		if _, err := x.ExtractText(context.Background(), tt.data); !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
	}
}

func TestExtractTextClampsOutput(t *testing.T) {
	engine := &fakeEngine{fn: func(context.Context, string) (string, error) {
		return "aaaaaaaaaa bbbbbbbbbb cccccccccc dddddddddd eeeeeeeeee ffffffffff", nil
	}}
	x := newTestExtractor(t, engine, time.Second, 1)

	text, err := x.ExtractText(context.Background(), jpegBytes)
	if err != nil {
		t.Fatal(err)
	}
	if n := len([]rune(text)); n > 50 {
		t.Errorf("text length %d exceeds MaxChars", n)
	}
}

type callerKey struct{}

// With two slots and four callers, the third and fourth runs start only after
// earlier runs finish, and in the order the callers arrived.
func TestExtractTextConcurrencyIsFIFO(t *testing.T) {
	started := make(chan int, 4)
	finish := make([]chan struct{}, 4)
	for i := range finish {
		finish[i] = make(chan struct{})
	}

	engine := &fakeEngine{fn: func(ctx context.Context, _ string) (string, error) {
		id := ctx.Value(callerKey{}).(int)
		started <- id
		<-finish[id]
		return "ok", nil
	}}
	x := newTestExtractor(t, engine, 5*time.Second, 2)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx := context.WithValue(context.Background(), callerKey{}, i)
			if _, err := x.ExtractText(ctx, jpegBytes); err != nil {
				t.Errorf("caller %d: %v", i, err)
			}
		}()
		// Let caller i reach the gate before caller i+1 is launched.
		time.Sleep(30 * time.Millisecond)
	}

	first := map[int]bool{<-started: true, <-started: true}
	if !first[0] || !first[1] {
		t.Fatalf("first runs = %v, want callers 0 and 1", first)
	}
	select {
	case id := <-started:
		t.Fatalf("caller %d started while both slots were busy", id)
	case <-time.After(50 * time.Millisecond):
	}

	close(finish[1])
	if id := <-started; id != 2 {
		t.Fatalf("after a slot freed, caller %d started, want 2", id)
	}
	close(finish[0])
	if id := <-started; id != 3 {
		t.Fatalf("caller %d started last, want 3", id)
	}
	close(finish[2])
	close(finish[3])
	wg.Wait()
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  bonjour\n\tle   monde  ", "bonjour le monde"},
		{"extra-\nordinaire", "extraordinaire"},
		{"extra- \r\n  ordinaire", "extraordinaire"},
		{"Jean-Paul Sartre", "Jean-Paul Sartre"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CleanText(tt.in); got != tt.want {
			t.Errorf("CleanText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
