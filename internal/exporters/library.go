package exporters

import (
	"fmt"
	"log"

	"github.com/mrlokans/loremaster/internal/entities"
)

// LibraryExporter exports every lorebook a BookReader holds.
type LibraryExporter struct {
	reader   BookReader
	exporter BookExporter
}

func NewLibraryExporter(reader BookReader, exporter BookExporter) *LibraryExporter {
	return &LibraryExporter{reader: reader, exporter: exporter}
}

// ExportAll loads every lorebook with its entries and exports them.
func (le *LibraryExporter) ExportAll() (ExportResult, error) {
	library, err := le.reader.ListLibrary()
	if err != nil {
		return ExportResult{}, fmt.Errorf("failed to list lorebooks: %w", err)
	}

	books := make([]entities.Book, 0, len(library))
	failed := 0
	for _, record := range library {
		book, err := le.reader.GetLorebook(record.ID)
		if err != nil {
			log.Printf("Failed to load lorebook '%s' (%s) for export: %v", record.Name, record.ID, err)
			failed++
			continue
		}
		books = append(books, *book)
	}

	result, err := le.exporter.Export(books)
	result.BooksFailed += failed
	if err != nil {
		return result, err
	}

	log.Printf("Export completed: %d lorebooks processed, %d entries processed, %d lorebooks failed",
		result.BooksProcessed, result.EntriesProcessed, result.BooksFailed)
	return result, nil
}
