package native

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/i2y/mcphub/internal/domain"
	"github.com/i2y/mcphub/internal/usecase"
)

// FileContent is one file returned by file_fetcher.
type FileContent struct {
	Encoding string `json:"encoding"` // utf-8, base64 or error
	Content  string `json:"content"`
}

// FileTools returns file_fetcher, which reads the regular files of a directory below root.
func FileTools(root string) []Tool {
	return []Tool{
		{
			Name: "file_fetcher",
			Description: "Reads all files from a given directory on the network share and returns their content. " +
				"Text files are returned as strings, and binary files are returned as Base64-encoded strings. " +
				"The path is relative to the root of the network share.",
			Group: usecase.NativeGroupUtility,
			Signature: &domain.Signature{Params: []domain.Param{
				{Name: "path", Description: "Directory relative to the share root."},
			}},
			Func: func(ctx context.Context, in Input) (interface{}, error) {
				return ReadDirectory(root, StringArg(in.Args, "path"))
			},
		},
	}
}

// ReadDirectory reads the regular files directly inside root/rel. Paths escaping root are rejected.
func ReadDirectory(root, rel string) (map[string]FileContent, error) {
	if root == "" {
		return nil, fmt.Errorf("file share root is not configured: %w", usecase.ErrAPINotConfigured)
	}
	base, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving share root: %w", err)
	}
	full, err := filepath.Abs(filepath.Join(base, rel))
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	if full != base && !strings.HasPrefix(full, base+string(filepath.Separator)) {
		return nil, fmt.Errorf("access denied: path is outside the network share")
	}

	info, err := os.Stat(full)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("invalid directory path: %s", rel)
	}

	entries, err := os.ReadDir(full)
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}
	files := make(map[string]FileContent)
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(full, e.Name()))
		switch {
		case err != nil:
			files[e.Name()] = FileContent{Encoding: "error", Content: err.Error()}
		case utf8.Valid(data):
			files[e.Name()] = FileContent{Encoding: "utf-8", Content: string(data)}
		default:
			files[e.Name()] = FileContent{Encoding: "base64", Content: base64.StdEncoding.EncodeToString(data)}
		}
	}
	return files, nil
}
