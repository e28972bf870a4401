package exporters

import "github.com/mrlokans/loremaster/internal/entities"

type BookExporter interface {
	Export(books []entities.Book) (ExportResult, error)
}

// BookReader provides read access to stored lorebooks.
type BookReader interface {
	ListLibrary() ([]entities.LibraryRecord, error)
	GetLorebook(id string) (*entities.Book, error)
}

type ExportResult struct {
	BooksProcessed   int      `json:"books_processed"`
	EntriesProcessed int      `json:"entries_processed"`
	BooksFailed      int      `json:"books_failed"`
	Files            []string `json:"files,omitempty"`
}
