package dumper

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	errorCreateSinkFormat = "creating %s: %w"
	errorFlushSinkFormat  = "flushing %s: %w"
	errorCloseSinkFormat  = "closing %s: %w"

	contentHeaderFormat        = "\n\n### %s ###\n\n"
	readErrorPlaceholderFormat = "[Error reading file: %v]\n"

	structureSinkName = "structure sink"
	contentSinkName   = "content sink"
)

type sink struct {
	name   string
	writer *bufio.Writer
	closer io.Closer
}

// Sinks holds the structure listing and content dump writers for one run.
// Writes are buffered and write errors surface from Close.
type Sinks struct {
	structure sink
	content   sink
	closed    bool
}

// NewSinks wraps two writers. Writers that implement io.Closer are closed by
// Close.
func NewSinks(structureWriter io.Writer, contentWriter io.Writer) *Sinks {
	return &Sinks{
		structure: newSink(structureSinkName, structureWriter),
		content:   newSink(contentSinkName, contentWriter),
	}
}

// OpenFileSinks truncates or creates both output files.
func OpenFileSinks(structurePath string, contentPath string) (*Sinks, error) {
	// #nosec G304
	structureFile, structureError := os.Create(structurePath)
	if structureError != nil {
		return nil, fmt.Errorf(errorCreateSinkFormat, structurePath, structureError)
	}
	// #nosec G304
	contentFile, contentError := os.Create(contentPath)
	if contentError != nil {
		_ = structureFile.Close()
		return nil, fmt.Errorf(errorCreateSinkFormat, contentPath, contentError)
	}
	sinks := NewSinks(structureFile, contentFile)
	sinks.structure.name = structurePath
	sinks.content.name = contentPath
	return sinks, nil
}

func newSink(name string, writer io.Writer) sink {
	created := sink{name: name, writer: bufio.NewWriter(writer)}
	if closer, isCloser := writer.(io.Closer); isCloser {
		created.closer = closer
	}
	return created
}

// WriteStructureLine appends one indented entry to the structure listing.
func (sinks *Sinks) WriteStructureLine(line string) {
	_, _ = sinks.structure.writer.WriteString(line)
	_ = sinks.structure.writer.WriteByte('\n')
}

// WriteContentBlock appends a path header followed by body to the content dump.
func (sinks *Sinks) WriteContentBlock(path string, body []byte) {
	_, _ = fmt.Fprintf(sinks.content.writer, contentHeaderFormat, path)
	_, _ = sinks.content.writer.Write(body)
}

// Close flushes and releases both sinks. It is safe to call more than once;
// only the first call has an effect.
func (sinks *Sinks) Close() error {
	if sinks.closed {
		return nil
	}
	sinks.closed = true
	return errors.Join(sinks.structure.close(), sinks.content.close())
}

func (target sink) close() error {
	var flushError, closeError error
	if err := target.writer.Flush(); err != nil {
		flushError = fmt.Errorf(errorFlushSinkFormat, target.name, err)
	}
	if target.closer != nil {
		if err := target.closer.Close(); err != nil {
			closeError = fmt.Errorf(errorCloseSinkFormat, target.name, err)
		}
	}
	return errors.Join(flushError, closeError)
}
