package index

// Catalog defines the interface for record catalog operations. Consumers
// should depend on this interface rather than the concrete *DB type to
// facilitate testing with mocks.
type Catalog interface {
	UpsertRecord(r RecordRow, body string, related []string) error
	DeleteRecord(number string) error
	GetRecord(number string) (*RecordRow, error)
	ListRecords(limit, offset int, category, sort string) ([]RecordRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	Graph() ([]GraphNode, []GraphLink, error)
	Referencing(family string) ([]string, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies Catalog at compile time.
var _ Catalog = (*DB)(nil)
