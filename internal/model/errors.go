package model

import "github.com/rotisserie/eris"

// Error kinds shared by the pipelines. Wrap them with eris and test with
// eris.Is.
var (
	// ErrSourceMissing means the input file or document does not exist.
	ErrSourceMissing = eris.New("source missing")
	// ErrSourceMalformed means a row, cell or document could not be coerced.
	ErrSourceMalformed = eris.New("source malformed")
	// ErrProcessingFailed is any other failure while reading a source.
	ErrProcessingFailed = eris.New("processing failed")
	// ErrFetchFailed means the remote reference service could not be read.
	ErrFetchFailed = eris.New("fetch failed")
	// ErrRecordConflict means a record references an entity that does not
	// resolve.
	ErrRecordConflict = eris.New("record conflict")
	// ErrPersistenceFailure is a store write or commit failure.
	ErrPersistenceFailure = eris.New("persistence failure")
)
