package export

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rpattn/wellhistory/internal/domain"
)

// ServeWorkbook responds with the history of ref as an xlsx attachment.
func ServeWorkbook(w http.ResponseWriter, ref domain.EntityRef, entries []domain.HistoryEntry) error {
	var buf bytes.Buffer
	if err := WriteWorkbook(&buf, entries); err != nil {
		return err
	}

	w.Header().Set("Content-Type", MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", FileName(ref)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, err := buf.WriteTo(w)
	return err
}
