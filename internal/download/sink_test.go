package download

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/file-converter/internal/domain"
)

func TestDirSink_WritesFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	sink, err := NewDirSink(dir, nil)
	require.NoError(t, err)

	require.NoError(t, sink.Deliver(context.Background(), domain.OutputFile{Name: "page1.png", Data: []byte("one")}))
	require.NoError(t, sink.Deliver(context.Background(), domain.OutputFile{Name: "page1.png", Data: []byte("two")}))

	data, err := os.ReadFile(filepath.Join(dir, "page1.png"))
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
	assert.Len(t, sink.Written(), 2)
}

func TestDirSink_StripsDirectories(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewDirSink(dir, nil)
	require.NoError(t, err)

	require.NoError(t, sink.Deliver(context.Background(), domain.OutputFile{Name: "../../escape.png", Data: []byte("x")}))
	_, err = os.Stat(filepath.Join(dir, "escape.png"))
	assert.NoError(t, err)
}

func TestDirSink_RejectsNamelessFile(t *testing.T) {
	sink, err := NewDirSink(t.TempDir(), nil)
	require.NoError(t, err)

	err = sink.Deliver(context.Background(), domain.OutputFile{Name: ""})
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
}

func TestMemorySink_ConcurrentDeliveries(t *testing.T) {
	sink := NewMemorySink()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = sink.Deliver(context.Background(), domain.OutputFile{Name: fmt.Sprintf("f%d", i)})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, sink.Len())
	assert.Len(t, sink.Files(), 20)
}

func TestMemorySink_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := NewMemorySink()
	assert.ErrorIs(t, sink.Deliver(ctx, domain.OutputFile{Name: "a"}), context.Canceled)
	assert.Equal(t, 0, sink.Len())
}

func TestSinkFunc(t *testing.T) {
	var got string
	sink := SinkFunc(func(_ context.Context, f domain.OutputFile) error {
		got = f.Name
		return nil
	})
	require.NoError(t, sink.Deliver(context.Background(), domain.OutputFile{Name: "x.png"}))
	assert.Equal(t, "x.png", got)
}
