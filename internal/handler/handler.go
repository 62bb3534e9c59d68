package handler

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/care-portal/internal/middleware"
	"github.com/jwalitptl/care-portal/internal/service/notification"
	"github.com/jwalitptl/care-portal/pkg/backend"
	"github.com/jwalitptl/care-portal/pkg/httputil"
)

// Session returns the caller's session, answering 401 when there is none.
func Session(c *gin.Context) (backend.Session, bool) {
	sess, err := middleware.SessionFrom(c)
	if err != nil {
		httputil.RespondWithError(c, http.StatusUnauthorized, err.Error())
		return backend.Session{}, false
	}
	return sess, true
}

// Fail answers with the toast for err. Services have already logged it.
func Fail(c *gin.Context, err error, fallback string) {
	n := notification.FromError(err, fallback)
	httputil.RespondWithError(c, httputil.StatusOf(err), n.Message)
}

// Applied answers a change the backend accepted. A nil view means the
// follow-up reload failed, so the caller gets the success message plus a
// refresh notice and no data.
func Applied[T any](c *gin.Context, status int, msg string, view *T) {
	if view == nil {
		httputil.RespondWithSuccess(c, status, msg+" "+notification.ReloadFailed, nil)
		return
	}
	httputil.RespondWithSuccess(c, status, msg, view)
}

// Files opens every upload under field. The returned closer closes them all.
func Files(form *multipart.Form, field string) ([]backend.File, io.Closer, error) {
	var files []backend.File
	closers := multiCloser{}
	if form == nil {
		return files, closers, nil
	}
	for _, fh := range form.File[field] {
		f, closer, err := File(fh)
		if err != nil {
			closers.Close()
			return nil, nil, err
		}
		files = append(files, f)
		closers = append(closers, closer)
	}
	return files, closers, nil
}

// File opens one upload as a backend attachment.
func File(fh *multipart.FileHeader) (backend.File, io.Closer, error) {
	f, err := fh.Open()
	if err != nil {
		return backend.File{}, nil, fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	return backend.File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Content:     f,
	}, f, nil
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var first error
	for _, c := range m {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
