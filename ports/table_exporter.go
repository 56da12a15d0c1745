package ports

import (
	"io"

	"popdash/domain/population"
)

// TableExporter writes table rows to a downloadable document.
type TableExporter interface {
	WriteTable(w io.Writer, year string, rows []population.TableRow) error
	ContentType() string
}
