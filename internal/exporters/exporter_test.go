package exporters

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/loremaster/internal/entities"
)

func sampleBook() entities.Book {
	first := entities.NewEntry()
	first.UID = 7
	first.Comment = "Dragon"
	first.Key = []string{"dragon", "wyrm"}
	first.Content = "Breathes fire"
	first.Extra = map[string]json.RawMessage{"order": json.RawMessage(`100`)}

	second := entities.NewEntry()
	second.UID = 7
	second.Comment = "Duplicate uid"

	return entities.Book{
		LibraryRecord: entities.LibraryRecord{ID: "book_1_abcdef", Name: "Bestiary: Vol/1", EntryCount: 2},
		Entries:       entities.Entries{first, second},
	}
}

func TestEncodeBook_RoundTripsThroughImport(t *testing.T) {
	book := sampleBook()

	var buf bytes.Buffer
	require.NoError(t, EncodeBook(&buf, book))

	doc := entities.ParseImport(buf.Bytes())
	assert.Equal(t, "Bestiary: Vol/1", doc.Name)
	require.Len(t, doc.Entries, 2)
	assert.Equal(t, "Dragon", doc.Entries[0].Comment)
	assert.Equal(t, []string{"dragon", "wyrm"}, doc.Entries[0].Key)
	assert.Equal(t, "100", string(doc.Entries[0].Extra["order"]))
	assert.Equal(t, "Duplicate uid", doc.Entries[1].Comment)
}

func TestEncodeBook_EmptyBook(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeBook(&buf, entities.Book{LibraryRecord: entities.LibraryRecord{Name: "Empty"}}))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "Empty", decoded["name"])
	assert.Equal(t, map[string]any{}, decoded["entries"])
}

func TestJSONExporter_Export(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	exporter := NewJSONExporter(dir)

	result, err := exporter.Export([]entities.Book{sampleBook()})
	require.NoError(t, err)
	assert.Equal(t, 1, result.BooksProcessed)
	assert.Equal(t, 2, result.EntriesProcessed)
	require.Len(t, result.Files, 1)

	assert.Equal(t, filepath.Join(dir, "Bestiary Vol1_book_1_abcdef.json"), result.Files[0])

	data, err := os.ReadFile(result.Files[0])
	require.NoError(t, err)
	assert.Len(t, entities.ParseImport(data).Entries, 2)

	_, err = os.Stat(result.Files[0] + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

type fakeReader struct {
	library []entities.LibraryRecord
	books   map[string]*entities.Book
	listErr error
}

func (f *fakeReader) ListLibrary() ([]entities.LibraryRecord, error) {
	return f.library, f.listErr
}

func (f *fakeReader) GetLorebook(id string) (*entities.Book, error) {
	book, ok := f.books[id]
	if !ok {
		return nil, entities.ErrLorebookNotFound
	}
	return book, nil
}

func TestLibraryExporter_ExportAll(t *testing.T) {
	book := sampleBook()
	reader := &fakeReader{
		library: []entities.LibraryRecord{book.LibraryRecord, {ID: "book_gone", Name: "Gone"}},
		books:   map[string]*entities.Book{book.ID: &book},
	}

	exporter := NewLibraryExporter(reader, NewJSONExporter(t.TempDir()))
	result, err := exporter.ExportAll()
	require.NoError(t, err)
	assert.Equal(t, 1, result.BooksProcessed)
	assert.Equal(t, 1, result.BooksFailed)

	reader.listErr = errors.New("database locked")
	_, err = exporter.ExportAll()
	assert.ErrorContains(t, err, "database locked")
}
