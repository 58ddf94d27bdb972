package backend

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"

	apperr "occingest/cli/internal/errors"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-git/go-billy/v5"
)

// uploadField is the multipart field name Capture Center reads files from.
const uploadField = "files"

// File is one local file to transfer.
type File struct {
	Path        string
	Size        int64
	ContentType string
}

// DescribeFiles stats every path and infers its content type.
// It fails on the first missing file or directory, before anything is sent.
func DescribeFiles(fsys billy.Filesystem, paths []string) ([]File, int64, error) {
	files := make([]File, 0, len(paths))
	var total int64
	for _, p := range paths {
		info, err := fsys.Stat(p)
		if err != nil {
			return nil, 0, fmt.Errorf("stat %s: %w", p, err)
		}
		if info.IsDir() {
			return nil, 0, fmt.Errorf("%s is a directory", p)
		}
		files = append(files, File{Path: p, Size: info.Size(), ContentType: contentType(fsys, p)})
		total += info.Size()
	}
	return files, total, nil
}

// contentType infers a part's content type from the file extension and falls
// back to sniffing the content when the extension is unknown.
func contentType(fsys billy.Filesystem, path string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); ct != "" {
		return ct
	}
	f, err := fsys.Open(path)
	if err != nil {
		return "application/octet-stream"
	}
	defer f.Close()
	if mt, err := mimetype.DetectReader(f); err == nil && mt != nil {
		return mt.String()
	}
	return "application/octet-stream"
}

// attachFiles streams files as one multipart/form-data request.
// The timeout grows with the payload size; every opened file is closed before
// attachFiles returns, whether the call succeeded or not.
func (h *HTTP) attachFiles(ctx context.Context, path string, paths []string) error {
	errContext := "Attaching files"
	if len(paths) > 0 {
		errContext = "Attaching files " + paths[0] + "..."
	}
	files, total, err := DescribeFiles(h.fs, paths)
	if err != nil {
		return apperr.Wrap(apperr.InvalidInput, "cannot read input files", err).WithContext(errContext)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	written := make(chan error, 1)
	go func() {
		err := writeParts(mw, h.fs, files)
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
		written <- err
	}()

	_, err = h.do(ctx, request{
		method:      http.MethodPost,
		path:        path,
		body:        pr,
		contentType: mw.FormDataContentType(),
		timeout:     UploadTimeout(total, h.msPerMB, h.defaultTimeout),
		errContext:  errContext,
	})
	// Unblocks the writer if the request ended before the body was consumed.
	pr.Close()
	if werr := <-written; err == nil && werr != nil && werr != io.ErrClosedPipe {
		return apperr.Wrap(apperr.Transport, "stream upload body", werr).WithContext(errContext)
	}
	return err
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// writeParts copies each file into its own part.
func writeParts(mw *multipart.Writer, fsys billy.Filesystem, files []File) error {
	for _, f := range files {
		if err := writePart(mw, fsys, f); err != nil {
			return err
		}
	}
	return nil
}

func writePart(mw *multipart.Writer, fsys billy.Filesystem, f File) error {
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		uploadField, quoteEscaper.Replace(filepath.Base(f.Path))))
	hdr.Set("Content-Type", f.ContentType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return err
	}
	src, err := fsys.Open(f.Path)
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Path, err)
	}
	defer src.Close()
	if _, err := io.Copy(part, src); err != nil {
		return fmt.Errorf("read %s: %w", f.Path, err)
	}
	return nil
}
