package compose

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"

	"mailconsole/internal/api"
)

const maxConcurrentReads = 4

// NewAttachment encodes data for transport. The MIME type comes from the
// content, refined by the file extension when the content alone is generic.
func NewAttachment(name string, data []byte) api.Attachment {
	return api.Attachment{
		Name:    filepath.Base(name),
		Type:    detectType(name, data),
		Content: base64.StdEncoding.EncodeToString(data),
	}
}

func detectType(name string, data []byte) string {
	detected := baseType(mimetype.Detect(data).String())
	byExt := baseType(mime.TypeByExtension(filepath.Ext(name)))

	switch {
	case byExt == "":
		return detected
	case detected == "application/octet-stream", detected == "text/plain":
		return byExt
	default:
		return detected
	}
}

func baseType(value string) string {
	if value == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(value)
	if err != nil {
		return value
	}
	return mediaType
}

// AttachFiles reads every path concurrently and appends each file as soon as
// its read completes. Completion order decides attachment order.
//
// Files are added independently: when a read fails, the remaining reads are
// cancelled, but files already attached stay in the draft. The error names
// the file that failed.
func (m *Model) AttachFiles(ctx context.Context, paths []string) error {
	read := m.readFile
	if read == nil {
		read = readFile
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentReads)

	for _, path := range paths {
		path := path
		g.Go(func() error {
			data, err := read(ctx, path)
			if err != nil {
				return fmt.Errorf("read attachment %s: %w", path, err)
			}
			m.Dispatch(AddAttachment{Attachment: NewAttachment(path, data)})
			return nil
		})
	}
	return g.Wait()
}

func readFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}
