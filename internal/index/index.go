package index

// RecordIndex defines the record indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type RecordIndex interface {
	UpsertRecord(r RecordRow, body string, links []string) error
	DeleteRecord(path string) error
	GetChecksum(path string) (string, error)
	GetByHref(href string) (*RecordRow, error)
	Search(query string, limit int) ([]SearchResult, error)
	Backlinks(target string) ([]RecordRow, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies RecordIndex at compile time.
var _ RecordIndex = (*DB)(nil)
