package concurrent

import (
	"bufio"
	"io"
	"os"
	"path/filepath"

	"github.com/surge-downloader/m3u8dl/internal/engine/types"
	"github.com/surge-downloader/m3u8dl/internal/utils"
)

const mergeBufferSize = 1 * types.MB

// Merge concatenates the completed segments into outputPath in index order.
// The output is truncated first and synced to storage before returning.
func Merge(cm *CompletionMap, outputPath string) (int64, error) {
	files := cm.Ordered()

	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, &types.FileIOError{Op: "mkdir", Path: dir, Err: err}
		}
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return 0, &types.FileIOError{Op: "create", Path: outputPath, Err: err}
	}
	defer func() {
		if err := out.Close(); err != nil {
			utils.Debug("Merge: close %s: %v", outputPath, err)
		}
	}()

	w := bufio.NewWriterSize(out, mergeBufferSize)
	var written int64
	for _, path := range files {
		n, err := appendFile(w, path)
		written += n
		if err != nil {
			return written, err
		}
	}

	if err := w.Flush(); err != nil {
		return written, &types.FileIOError{Op: "write", Path: outputPath, Err: err}
	}
	if err := out.Sync(); err != nil {
		return written, &types.FileIOError{Op: "sync", Path: outputPath, Err: err}
	}
	return written, nil
}

func appendFile(w io.Writer, path string) (int64, error) {
	in, err := os.Open(path)
	if err != nil {
		return 0, &types.FileIOError{Op: "open", Path: path, Err: err}
	}
	defer func() {
		if err := in.Close(); err != nil {
			utils.Debug("Merge: close %s: %v", path, err)
		}
	}()

	n, err := io.Copy(w, in)
	if err != nil {
		return n, &types.FileIOError{Op: "read", Path: path, Err: err}
	}
	return n, nil
}
