package exporters

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/mrlokans/loremaster/internal/entities"
	"github.com/mrlokans/loremaster/internal/utils"
)

// JSONExporter writes lorebooks as import-compatible JSON documents:
//
//	{"name": "...", "entries": {"0": {...}, "1": {...}}}
//
// Entries are keyed by position so duplicate uids survive the round trip.
type JSONExporter struct {
	Dir string
}

func NewJSONExporter(dir string) *JSONExporter {
	return &JSONExporter{Dir: dir}
}

// EncodeBook writes one lorebook document to w.
func EncodeBook(w io.Writer, book entities.Book) error {
	var buf bytes.Buffer

	name, err := json.Marshal(book.Name)
	if err != nil {
		return fmt.Errorf("failed to encode name: %w", err)
	}
	buf.WriteString(`{"name":`)
	buf.Write(name)
	buf.WriteString(`,"entries":{`)
	for i, entry := range book.Entries {
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to encode entry %d: %w", entry.UID, err)
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(strconv.Itoa(i)))
		buf.WriteByte(':')
		buf.Write(data)
	}
	buf.WriteString("}}")

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, buf.Bytes(), "", "  "); err != nil {
		return fmt.Errorf("failed to format lorebook: %w", err)
	}
	pretty.WriteByte('\n')

	_, err = pretty.WriteTo(w)
	return err
}

// ExportBook writes book into the export directory and returns the file path.
func (exporter *JSONExporter) ExportBook(book entities.Book) (string, error) {
	if err := os.MkdirAll(exporter.Dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	outputPath := filepath.Join(exporter.Dir, utils.ExportFilename(book.Name, book.ID))
	tmpPath := outputPath + ".tmp"

	file, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	if err := EncodeBook(file, book); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return "", err
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to finalize export file: %w", err)
	}
	return outputPath, nil
}

// Export writes every book, continuing past individual failures.
func (exporter *JSONExporter) Export(books []entities.Book) (ExportResult, error) {
	result := ExportResult{}
	for _, book := range books {
		path, err := exporter.ExportBook(book)
		if err != nil {
			log.Printf("Failed to export lorebook '%s' (%s): %v", book.Name, book.ID, err)
			result.BooksFailed++
			continue
		}
		result.BooksProcessed++
		result.EntriesProcessed += len(book.Entries)
		result.Files = append(result.Files, path)
	}

	if result.BooksFailed > 0 && result.BooksProcessed == 0 {
		return result, fmt.Errorf("failed to export all %d lorebooks", result.BooksFailed)
	}
	return result, nil
}

var _ BookExporter = (*JSONExporter)(nil)
